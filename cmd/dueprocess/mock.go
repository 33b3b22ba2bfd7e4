package main

import (
	"encoding/json"
	"fmt"

	"github.com/dusk-indust/dueprocess/internal/judge"
	"github.com/dusk-indust/dueprocess/internal/llm"
	"github.com/dusk-indust/dueprocess/internal/rubric"
	"github.com/dusk-indust/dueprocess/internal/verdict"
)

// mockScript provides deterministic scripted model responses for every stage
// of the audit graph, derived from the loaded rubric so deliberations cover
// every dimension regardless of which rubric is in play.
type mockScript struct {
	rubric *rubric.Rubric
}

func newMockScript(r *rubric.Rubric) *mockScript {
	return &mockScript{rubric: r}
}

// investigatorModel scripts the act-observe loop: one grounding tool call,
// then a final summary. The extra final response absorbs loop replays.
func (m *mockScript) investigatorModel(detective string) llm.Client {
	var action string
	switch detective {
	case "repo_investigator":
		action = `{"tool":"git_log","args":{"limit":20}}`
	case "doc_analyst":
		action = `{"tool":"list_dir","args":{"path":"."}}`
	default:
		action = `{"tool":"list_dir","args":{"path":"docs"}}`
	}
	return llm.NewScriptedClient(action, `{"final":"investigation complete"}`)
}

// extractorModel scripts the evidence extraction step for one detective.
func (m *mockScript) extractorModel(detective string) llm.Client {
	var payload string
	switch detective {
	case "repo_investigator":
		payload = `{"evidences":[{"goal":"Track commit quality","found":true,` +
			`"content":"Commits with meaningful messages",` +
			`"location":".git/logs","rationale":"History is descriptive",` +
			`"confidence":0.92}]}`
	case "doc_analyst":
		payload = `{"evidences":[{"goal":"Validate architecture claim","found":true,` +
			`"content":"Documentation describes a layered pipeline",` +
			`"location":"docs/architecture.md",` +
			`"rationale":"Claim is explicit in documentation",` +
			`"confidence":0.88}]}`
	default:
		payload = `{"evidences":[{"goal":"Locate referenced diagrams","found":false,` +
			`"location":"docs/","rationale":"No diagram files committed",` +
			`"confidence":0.7}]}`
	}
	return llm.NewScriptedClient(payload)
}

// mockScores are the per-persona scores used for every dimension.
var mockScores = map[verdict.JudgeRole]int{
	verdict.RoleProsecutor: 4,
	verdict.RoleDefense:    3,
	verdict.RoleTechLead:   4,
}

// judgeModel scripts a full deliberation covering every rubric dimension.
func (m *mockScript) judgeModel(role verdict.JudgeRole) llm.Client {
	d := judge.Deliberation{}
	for _, dim := range m.rubric.Dimensions {
		d.Opinions = append(d.Opinions, verdict.Opinion{
			Judge:         role,
			CriterionID:   dim.ID,
			Score:         mockScores[role],
			Argument:      fmt.Sprintf("Assessed %s from the evidence catalog.", dim.Name),
			CitedEvidence: []verdict.Ref{"repository_facts:1"},
		})
	}
	payload, err := json.Marshal(d)
	if err != nil {
		// Deliberation marshals from plain structs; this cannot fail.
		panic(err)
	}
	return llm.NewScriptedClient(string(payload))
}

// chiefModel scripts the executive summary; every numeric field is
// overwritten by the deterministic synthesis.
func (m *mockScript) chiefModel() llm.Client {
	return llm.NewScriptedClient(`{"executive_summary":` +
		`"The repository shows deliberate, well-documented progress with minor gaps.",` +
		`"overall_score":0,"criteria":[],"remediation_plan":""}`)
}
