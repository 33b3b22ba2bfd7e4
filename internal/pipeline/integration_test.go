package pipeline

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/dueprocess/internal/agent"
	"github.com/dusk-indust/dueprocess/internal/detective"
	"github.com/dusk-indust/dueprocess/internal/judge"
	"github.com/dusk-indust/dueprocess/internal/justice"
	"github.com/dusk-indust/dueprocess/internal/llm"
	"github.com/dusk-indust/dueprocess/internal/state"
	"github.com/dusk-indust/dueprocess/internal/verdict"
)

// scriptedInvestigator replays a grounded transcript.
type scriptedInvestigator struct{}

func (scriptedInvestigator) Run(context.Context, string, string, int) (*agent.Transcript, error) {
	return &agent.Transcript{Turns: []agent.Turn{
		{ToolName: "git_log", ToolArgs: map[string]any{"limit": 20}, ToolResult: "40 commits"},
		{Text: "history reviewed"},
	}}, nil
}

const (
	repoEvidenceJSON = `{"evidences":[{"goal":"commit messages are descriptive","found":true,"location":"git log","rationale":"conventional commits throughout","confidence":0.92}]}`
	docEvidenceJSON  = `{"evidences":[{"goal":"readme describes the pipeline","found":true,"location":"README.md","rationale":"sections match packages","confidence":0.88}]}`
	visEvidenceJSON  = `{"evidences":[{"goal":"architecture diagram exists","found":false,"location":"docs/","rationale":"no diagram committed","confidence":0.7}]}`
	summaryJSON      = `{"executive_summary":"The repository shows disciplined history.","overall_score":0,"criteria":[],"remediation_plan":""}`
)

func deliberation(role verdict.JudgeRole, score int) string {
	return `{"opinions":[{"judge":"` + string(role) + `","criterion_id":"git_history","score":` +
		strconv.Itoa(score) + `,"argument":"assessed from history","cited_evidence":["repository_facts:1"]}]}`
}

// TestGraph_MockAudit runs the real detective, judge, and chief justice
// stages over the executor with scripted models, end to end.
func TestGraph_MockAudit(t *testing.T) {
	detectives := []Node{
		stageNode(detective.New(detective.RepoInvestigator(), scriptedInvestigator{}, llm.NewScriptedClient(repoEvidenceJSON))),
		stageNode(detective.New(detective.DocAnalyst(), scriptedInvestigator{}, llm.NewScriptedClient(docEvidenceJSON))),
		stageNode(detective.New(detective.VisionInspector(), scriptedInvestigator{}, llm.NewScriptedClient(visEvidenceJSON))),
	}

	var judges []Node
	for _, spec := range []struct {
		role  verdict.JudgeRole
		score int
	}{
		{verdict.RoleProsecutor, 4},
		{verdict.RoleDefense, 3},
		{verdict.RoleTechLead, 4},
	} {
		stage, err := judge.New(spec.role, llm.NewScriptedClient(deliberation(spec.role, spec.score)))
		require.NoError(t, err)
		judges = append(judges, Node{Name: string(spec.role), Run: stage.Run})
	}

	chief := justice.New(llm.NewScriptedClient(summaryJSON))

	g, err := New(detectives, judges, Node{Name: "chief_justice", Run: chief.Run}, WithTracer(&RecordingTracer{}))
	require.NoError(t, err)

	st := state.New("https://example.com/repo", "/tmp/repo", "/tmp/docs", "", testRubric())
	require.NoError(t, g.Run(context.Background(), st))

	require.NotNil(t, st.FinalReport)
	report := st.FinalReport
	assert.Equal(t, "The repository shows disciplined history.", report.ExecutiveSummary)
	require.Len(t, report.Criteria, 1)
	// (4 + 3 + 4*1.3)/3.3 rounds to 4; no goal names the dimension, so the
	// fact-supremacy adjustment stays neutral.
	assert.Equal(t, 4, report.Criteria[0].FinalScore)
	assert.Equal(t, 4.0, report.OverallScore)
	assert.Empty(t, report.Criteria[0].DissentSummary)

	assert.Equal(t, 3, st.TotalEvidence())
	assert.Equal(t, 1, st.Breakdown[state.GroupVisualArtifacts])
}

func stageNode(s *detective.Stage) Node {
	return Node{Name: s.Name(), Run: s.Run}
}
