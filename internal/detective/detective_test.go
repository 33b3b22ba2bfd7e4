package detective

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/dueprocess/internal/agent"
	"github.com/dusk-indust/dueprocess/internal/llm"
	"github.com/dusk-indust/dueprocess/internal/rubric"
	"github.com/dusk-indust/dueprocess/internal/state"
)

// fakeInvestigator returns a canned transcript.
type fakeInvestigator struct {
	transcript *agent.Transcript
	sysPrompts []string
	tasks      []string
}

func (f *fakeInvestigator) Run(_ context.Context, systemPrompt, userMessage string, _ int) (*agent.Transcript, error) {
	f.sysPrompts = append(f.sysPrompts, systemPrompt)
	f.tasks = append(f.tasks, userMessage)
	return f.transcript, nil
}

func groundedTranscript() *agent.Transcript {
	return &agent.Transcript{Turns: []agent.Turn{
		{ToolName: "git_log", ToolArgs: map[string]any{"limit": 20}, ToolResult: "42 commits, 3 authors"},
		{Text: "History shows consistent incremental work."},
	}}
}

func ungroundedTranscript() *agent.Transcript {
	return &agent.Transcript{Turns: []agent.Turn{
		{Text: "The history is probably fine."},
	}}
}

func testState() *state.State {
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
	return state.New("https://example.com/repo", "/tmp/repo", "/tmp/docs", "", r)
}

const evidenceJSON = `{"evidences":[
	{"goal":"commit history is descriptive","found":true,"location":"git log","rationale":"messages follow conventional commits","confidence":0.92}
]}`

func TestStage_ProducesGroupedEvidence(t *testing.T) {
	inv := &fakeInvestigator{transcript: groundedTranscript()}
	stage := New(RepoInvestigator(), inv, llm.NewScriptedClient(evidenceJSON))

	update, err := stage.Run(context.Background(), testState())
	require.NoError(t, err)

	require.Len(t, update.Evidences, 1)
	evs := update.Evidences[state.GroupRepositoryFacts]
	require.Len(t, evs, 1)
	assert.Equal(t, "commit history is descriptive", evs[0].Goal)
	assert.True(t, evs[0].Found)
}

func TestStage_BriefingFiltersByTarget(t *testing.T) {
	inv := &fakeInvestigator{transcript: groundedTranscript()}
	stage := New(RepoInvestigator(), inv, llm.NewScriptedClient(evidenceJSON))

	_, err := stage.Run(context.Background(), testState())
	require.NoError(t, err)

	require.Len(t, inv.sysPrompts, 1)
	assert.Contains(t, inv.sysPrompts[0], "Git History Quality")
	assert.NotContains(t, inv.sysPrompts[0], "Documentation Accuracy",
		"repo investigator must not be briefed on docs dimensions")
	assert.Contains(t, inv.tasks[0], "/tmp/repo")
}

func TestStage_ZeroToolCallsIsGroundingError(t *testing.T) {
	inv := &fakeInvestigator{transcript: ungroundedTranscript()}
	stage := New(RepoInvestigator(), inv, llm.NewScriptedClient(evidenceJSON))

	_, err := stage.Run(context.Background(), testState())
	require.Error(t, err)

	var ge *GroundingError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, "repo_investigator", ge.Detective)
}

func TestStage_ZeroEvidenceIsGroundingError(t *testing.T) {
	inv := &fakeInvestigator{transcript: groundedTranscript()}
	stage := New(DocAnalyst(), inv, llm.NewScriptedClient(`{"evidences":[]}`))

	_, err := stage.Run(context.Background(), testState())
	var ge *GroundingError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, "doc_analyst", ge.Detective)
}

func TestStage_ExtractionSchemaMismatchIsFatal(t *testing.T) {
	inv := &fakeInvestigator{transcript: groundedTranscript()}
	stage := New(RepoInvestigator(), inv, llm.NewScriptedClient(`not json`))

	_, err := stage.Run(context.Background(), testState())
	require.Error(t, err)
	assert.True(t, llm.IsSchemaValidation(err))
}

func TestStage_InvalidEvidenceRejected(t *testing.T) {
	inv := &fakeInvestigator{transcript: groundedTranscript()}
	stage := New(RepoInvestigator(), inv, llm.NewScriptedClient(
		`{"evidences":[{"goal":"overconfident","found":true,"location":"x","rationale":"y","confidence":1.5}]}`,
	))

	_, err := stage.Run(context.Background(), testState())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "confidence")
}

func TestProfiles_GroupAssignments(t *testing.T) {
	assert.Equal(t, state.GroupRepositoryFacts, RepoInvestigator().Group)
	assert.Equal(t, state.GroupClaimSet, DocAnalyst().Group)
	assert.Equal(t, state.GroupVisualArtifacts, VisionInspector().Group)
}
