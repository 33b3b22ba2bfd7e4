package judge

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/dueprocess/internal/llm"
	"github.com/dusk-indust/dueprocess/internal/rubric"
	"github.com/dusk-indust/dueprocess/internal/state"
	"github.com/dusk-indust/dueprocess/internal/verdict"
)

func testState(t *testing.T) *state.State {
	t.Helper()
	r := &rubric.Rubric{
		Metadata: rubric.Metadata{RubricName: "engineering-practices", Version: "1"},
		Dimensions: []rubric.Dimension{
			{ID: "git_history", Name: "Git History Quality", TargetArtifact: rubric.TargetRepo},
			{ID: "doc_accuracy", Name: "Documentation Accuracy", TargetArtifact: rubric.TargetDocs},
		},
		SynthesisRules: rubric.SynthesisRules{
			SecurityOverride:     "a",
			FactSupremacy:        "b",
			FunctionalityWeight:  "c",
			DissentRequirement:   "d",
			VarianceReEvaluation: "e",
		},
	}
	s := state.New("https://example.com/repo", "/tmp/repo", "", "", r)
	require.NoError(t, s.Merge(state.Update{
		Evidences: map[state.Group][]verdict.Evidence{
			state.GroupRepositoryFacts: {
				{Goal: "git_history is descriptive", Found: true, Location: "git log", Rationale: "r", Confidence: 0.9},
			},
			state.GroupClaimSet: {
				{Goal: "doc_accuracy claims match code", Found: true, Location: "README.md", Rationale: "r", Confidence: 0.8},
			},
		},
	}))
	return s
}

func deliberationJSON(t *testing.T, opinions []verdict.Opinion) string {
	t.Helper()
	raw, err := json.Marshal(Deliberation{Opinions: opinions})
	require.NoError(t, err)
	return string(raw)
}

func validOpinions(role verdict.JudgeRole) []verdict.Opinion {
	return []verdict.Opinion{
		{Judge: role, CriterionID: "git_history", Score: 4, Argument: "clean history",
			CitedEvidence: []verdict.Ref{"repository_facts:1"}},
		{Judge: role, CriterionID: "doc_accuracy", Score: 3, Argument: "mostly accurate",
			CitedEvidence: []verdict.Ref{"claim_set:1"}},
	}
}

func TestStage_AcceptsValidDeliberation(t *testing.T) {
	role := verdict.RoleProsecutor
	model := llm.NewScriptedClient(deliberationJSON(t, validOpinions(role)))
	stage, err := New(role, model)
	require.NoError(t, err)

	update, err := stage.Run(context.Background(), testState(t))
	require.NoError(t, err)
	require.Len(t, update.Opinions, 2)
	assert.Equal(t, role, update.Opinions[0].Judge)
	assert.Len(t, model.Calls, 1)
}

func TestStage_RetriesWithFeedbackOnMissingDimension(t *testing.T) {
	role := verdict.RoleDefense
	incomplete := validOpinions(role)[:1]
	model := llm.NewScriptedClient(
		deliberationJSON(t, incomplete),
		deliberationJSON(t, validOpinions(role)),
	)
	stage, err := New(role, model)
	require.NoError(t, err)

	update, err := stage.Run(context.Background(), testState(t))
	require.NoError(t, err)
	assert.Len(t, update.Opinions, 2)

	require.Len(t, model.Calls, 2)
	assert.Contains(t, model.Calls[1], "previous response was rejected")
	assert.Contains(t, model.Calls[1], "doc_accuracy")
}

func TestStage_RetriesOnMalformedOutput(t *testing.T) {
	role := verdict.RoleTechLead
	model := llm.NewScriptedClient(
		`not a deliberation`,
		deliberationJSON(t, validOpinions(role)),
	)
	stage, err := New(role, model)
	require.NoError(t, err)

	update, err := stage.Run(context.Background(), testState(t))
	require.NoError(t, err)
	assert.Len(t, update.Opinions, 2)
}

func TestStage_ExhaustionIsFatal(t *testing.T) {
	role := verdict.RoleProsecutor
	// Every attempt omits a dimension; the last scripted response repeats.
	model := llm.NewScriptedClient(deliberationJSON(t, validOpinions(role)[:1]))
	stage, err := New(role, model)
	require.NoError(t, err)

	_, err = stage.Run(context.Background(), testState(t))
	require.Error(t, err)

	var de *DeliberationError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, MaxAttempts, de.Attempts)
	assert.Len(t, de.Violations, MaxAttempts)
	assert.Len(t, model.Calls, MaxAttempts)
}

func TestStage_RejectsRoleMismatch(t *testing.T) {
	role := verdict.RoleProsecutor
	wrong := validOpinions(verdict.RoleDefense)
	model := llm.NewScriptedClient(
		deliberationJSON(t, wrong),
		deliberationJSON(t, validOpinions(role)),
	)
	stage, err := New(role, model)
	require.NoError(t, err)

	_, err = stage.Run(context.Background(), testState(t))
	require.NoError(t, err)
	assert.Contains(t, model.Calls[1], "mismatched opinion judge")
}

func TestStage_RejectsFabricatedCitations(t *testing.T) {
	role := verdict.RoleDefense
	fabricated := validOpinions(role)
	fabricated[0].CitedEvidence = []verdict.Ref{"repository_facts:99"}
	model := llm.NewScriptedClient(
		deliberationJSON(t, fabricated),
		deliberationJSON(t, validOpinions(role)),
	)
	stage, err := New(role, model)
	require.NoError(t, err)

	_, err = stage.Run(context.Background(), testState(t))
	require.NoError(t, err)
	require.Len(t, model.Calls, 2)
	assert.Contains(t, model.Calls[1], "repository_facts:99")
}

func TestStage_RejectsUnknownCriterion(t *testing.T) {
	role := verdict.RoleTechLead
	unknown := validOpinions(role)
	unknown[0].CriterionID = "made_up"
	model := llm.NewScriptedClient(
		deliberationJSON(t, unknown),
		deliberationJSON(t, validOpinions(role)),
	)
	stage, err := New(role, model)
	require.NoError(t, err)

	_, err = stage.Run(context.Background(), testState(t))
	require.NoError(t, err)
	assert.Contains(t, model.Calls[1], "unknown criterion_id")
}

func TestStage_EmptyEvidenceIsFatal(t *testing.T) {
	role := verdict.RoleProsecutor
	model := llm.NewScriptedClient(deliberationJSON(t, validOpinions(role)))
	stage, err := New(role, model)
	require.NoError(t, err)

	r := &rubric.Rubric{
		Metadata:   rubric.Metadata{RubricName: "r"},
		Dimensions: []rubric.Dimension{{ID: "git_history", Name: "Git History", TargetArtifact: rubric.TargetRepo}},
		SynthesisRules: rubric.SynthesisRules{
			SecurityOverride: "a", FactSupremacy: "b", FunctionalityWeight: "c",
			DissentRequirement: "d", VarianceReEvaluation: "e",
		},
	}
	empty := state.New("", "/tmp/repo", "", "", r)

	_, err = stage.Run(context.Background(), empty)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "evidence catalog is empty")
	assert.Empty(t, model.Calls)
}

func TestNew_RejectsUnknownRole(t *testing.T) {
	_, err := New(verdict.JudgeRole("Bailiff"), llm.NewScriptedClient("x"))
	assert.Error(t, err)
}
