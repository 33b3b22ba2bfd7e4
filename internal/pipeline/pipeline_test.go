package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/dueprocess/internal/rubric"
	"github.com/dusk-indust/dueprocess/internal/state"
	"github.com/dusk-indust/dueprocess/internal/verdict"
)

func testRubric() *rubric.Rubric {
	return &rubric.Rubric{
		Metadata:   rubric.Metadata{RubricName: "engineering-practices", Version: "1"},
		Dimensions: []rubric.Dimension{{ID: "git_history", Name: "Git History", TargetArtifact: rubric.TargetRepo}},
		SynthesisRules: rubric.SynthesisRules{
			SecurityOverride: "a", FactSupremacy: "b", FunctionalityWeight: "c",
			DissentRequirement: "d", VarianceReEvaluation: "e",
		},
	}
}

func evidenceNode(name string, group state.Group, goals ...string) Node {
	return Node{Name: name, Run: func(context.Context, *state.State) (state.Update, error) {
		evs := make([]verdict.Evidence, len(goals))
		for i, goal := range goals {
			evs[i] = verdict.Evidence{Goal: goal, Found: true, Location: "loc", Rationale: "r", Confidence: 0.9}
		}
		return state.Update{Evidences: map[state.Group][]verdict.Evidence{group: evs}}, nil
	}}
}

func emptyNode(name string) Node {
	return Node{Name: name, Run: func(context.Context, *state.State) (state.Update, error) {
		return state.Update{}, nil
	}}
}

func opinionNode(name string, role verdict.JudgeRole, score int) Node {
	return Node{Name: name, Run: func(_ context.Context, snap *state.State) (state.Update, error) {
		if snap.TotalEvidence() == 0 {
			return state.Update{}, fmt.Errorf("%s started before the evidence barrier", name)
		}
		return state.Update{Opinions: []verdict.Opinion{{
			Judge: role, CriterionID: "git_history", Score: score,
			Argument: "a", CitedEvidence: []verdict.Ref{"repository_facts:1"},
		}}}, nil
	}}
}

func reportNode() Node {
	return Node{Name: "chief_justice", Run: func(_ context.Context, snap *state.State) (state.Update, error) {
		if len(snap.Opinions) != 3 {
			return state.Update{}, fmt.Errorf("chief started with %d opinions, want 3", len(snap.Opinions))
		}
		return state.Update{FinalReport: &verdict.AuditReport{ExecutiveSummary: "ok", OverallScore: 4}}, nil
	}}
}

func standardDetectives() []Node {
	return []Node{
		evidenceNode("repo_investigator", state.GroupRepositoryFacts, "commit history is clean", "tests exist"),
		evidenceNode("doc_analyst", state.GroupClaimSet, "readme matches code"),
		emptyNode("vision_inspector"),
	}
}

func standardJudges() []Node {
	return []Node{
		opinionNode("prosecutor", verdict.RoleProsecutor, 4),
		opinionNode("defense", verdict.RoleDefense, 3),
		opinionNode("tech_lead", verdict.RoleTechLead, 4),
	}
}

func TestGraph_HappyPath(t *testing.T) {
	g, err := New(standardDetectives(), standardJudges(), reportNode())
	require.NoError(t, err)

	st := state.New("url", "/tmp/repo", "", "", testRubric())
	require.NoError(t, g.Run(context.Background(), st))

	require.NotNil(t, st.FinalReport)
	assert.Equal(t, "ok", st.FinalReport.ExecutiveSummary)
	assert.Equal(t, 2, st.Breakdown[state.GroupRepositoryFacts])
	assert.Equal(t, 1, st.Breakdown[state.GroupClaimSet])
	assert.Equal(t, 0, st.Breakdown[state.GroupVisualArtifacts])
	assert.Len(t, st.Opinions, 3)
	assert.Empty(t, st.Diagnostic)
}

func TestGraph_ZeroEvidenceRoutesToErrorHandler(t *testing.T) {
	detectives := []Node{emptyNode("repo_investigator"), emptyNode("doc_analyst")}
	g, err := New(detectives, standardJudges(), reportNode())
	require.NoError(t, err)

	st := state.New("url", "/tmp/repo", "", "", testRubric())
	runErr := g.Run(context.Background(), st)
	require.Error(t, runErr)

	var af *AggregationFailure
	require.ErrorAs(t, runErr, &af)
	assert.Nil(t, st.FinalReport)
	assert.Contains(t, st.Diagnostic, "no evidence collected")
}

func TestGraph_DetectiveErrorIsFatalNotRouted(t *testing.T) {
	boom := errors.New("investigation made zero tool calls")
	detectives := []Node{
		{Name: "repo_investigator", Run: func(context.Context, *state.State) (state.Update, error) {
			return state.Update{}, boom
		}},
		evidenceNode("doc_analyst", state.GroupClaimSet, "claim"),
	}
	g, err := New(detectives, standardJudges(), reportNode())
	require.NoError(t, err)

	st := state.New("url", "/tmp/repo", "", "", testRubric())
	runErr := g.Run(context.Background(), st)
	require.ErrorIs(t, runErr, boom)
	assert.Empty(t, st.Diagnostic, "fatal node errors bypass the error handler")
	assert.Nil(t, st.FinalReport)
}

func TestGraph_ChiefFailureRoutesToErrorHandler(t *testing.T) {
	chief := Node{Name: "chief_justice", Run: func(context.Context, *state.State) (state.Update, error) {
		return state.Update{}, fmt.Errorf("judge opinions do not cover all rubric dimensions")
	}}
	g, err := New(standardDetectives(), standardJudges(), chief)
	require.NoError(t, err)

	st := state.New("url", "/tmp/repo", "", "", testRubric())
	runErr := g.Run(context.Background(), st)
	require.Error(t, runErr)
	assert.Nil(t, st.FinalReport)
	assert.Contains(t, st.Diagnostic, "do not cover all rubric dimensions")
}

func TestGraph_JudgesWaitForEvidenceBarrier(t *testing.T) {
	// opinionNode fails if it observes an empty evidence catalog, so a
	// passing run proves the barrier held.
	for i := 0; i < 10; i++ {
		g, err := New(standardDetectives(), standardJudges(), reportNode())
		require.NoError(t, err)
		st := state.New("url", "/tmp/repo", "", "", testRubric())
		require.NoError(t, g.Run(context.Background(), st))
	}
}

func TestGraph_TracerSeesAllNodes(t *testing.T) {
	tracer := &RecordingTracer{}
	g, err := New(standardDetectives(), standardJudges(), reportNode(), WithTracer(tracer))
	require.NoError(t, err)

	st := state.New("url", "/tmp/repo", "", "", testRubric())
	require.NoError(t, g.Run(context.Background(), st))

	finished := make(map[string]bool)
	for _, ev := range tracer.Events {
		if ev.Finished {
			require.NoError(t, ev.Err)
			finished[ev.Name] = true
		}
	}
	for _, name := range []string{
		"repo_investigator", "doc_analyst", "vision_inspector",
		"aggregate_evidence", "prosecutor", "defense", "tech_lead", "chief_justice",
	} {
		assert.True(t, finished[name], "missing finish event for %s", name)
	}
}

// panicTracer simulates broken instrumentation.
type panicTracer struct{}

func (panicTracer) NodeStarted(string)         { panic("tracer start") }
func (panicTracer) NodeFinished(string, error) { panic("tracer finish") }

func TestGraph_TracerPanicNeverMasksNodeResult(t *testing.T) {
	g, err := New(standardDetectives(), standardJudges(), reportNode(), WithTracer(panicTracer{}))
	require.NoError(t, err)

	st := state.New("url", "/tmp/repo", "", "", testRubric())
	require.NoError(t, g.Run(context.Background(), st), "tracer panics must not affect the run")
	require.NotNil(t, st.FinalReport)

	boom := errors.New("node failure")
	failing := []Node{{Name: "repo_investigator", Run: func(context.Context, *state.State) (state.Update, error) {
		return state.Update{}, boom
	}}}
	g2, err := New(failing, standardJudges(), reportNode(), WithTracer(panicTracer{}))
	require.NoError(t, err)
	st2 := state.New("url", "/tmp/repo", "", "", testRubric())
	assert.ErrorIs(t, g2.Run(context.Background(), st2), boom,
		"the node's own error must survive a panicking tracer")
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, standardJudges(), reportNode())
	assert.Error(t, err)

	_, err = New(standardDetectives(), nil, reportNode())
	assert.Error(t, err)

	_, err = New(standardDetectives(), standardJudges(), Node{})
	assert.Error(t, err)
}
