// Package detective implements the evidence-gathering stages of the audit
// pipeline. A detective drives a tool-augmented investigator over the
// repository or documentation, then extracts a typed evidence list from the
// full investigation transcript. Findings must be grounded: a run with zero
// tool calls or zero extracted evidence is a fatal GroundingError, never a
// silently empty result.
package detective

import (
	"context"
	"fmt"
	"strings"

	"github.com/dusk-indust/dueprocess/internal/agent"
	"github.com/dusk-indust/dueprocess/internal/llm"
	"github.com/dusk-indust/dueprocess/internal/rubric"
	"github.com/dusk-indust/dueprocess/internal/state"
	"github.com/dusk-indust/dueprocess/internal/verdict"
)

// DefaultMaxSteps bounds the investigator's tool loop.
const DefaultMaxSteps = 10

// GroundingError reports a detective whose findings are not grounded in real
// tool access. It is fatal at the pipeline level; there is no automatic
// retry.
type GroundingError struct {
	Detective string
	Reason    string
}

// Error implements the error interface.
func (e *GroundingError) Error() string {
	return fmt.Sprintf("detective %s: %s", e.Detective, e.Reason)
}

// Profile parameterizes one detective instance. The three detectives are
// instances of the same stage logic, differing only in name, evidence group,
// rubric target filter, and briefing.
type Profile struct {
	// Name identifies the detective in errors and traces.
	Name string
	// Group is the evidence group this detective writes to.
	Group state.Group
	// Target selects which rubric dimensions this detective is briefed on.
	Target rubric.TargetArtifact
	// Briefing is the persona instruction prefixed to the system prompt.
	Briefing string
}

// RepoInvestigator inspects the repository itself: history, structure,
// security posture.
func RepoInvestigator() Profile {
	return Profile{
		Name:   "repo_investigator",
		Group:  state.GroupRepositoryFacts,
		Target: rubric.TargetRepo,
		Briefing: "You are a forensic repository investigator. Inspect the " +
			"repository's files, structure, and git history, and report " +
			"verifiable facts. Every finding must come from a tool result.",
	}
}

// DocAnalyst cross-examines the documentation and external report claims.
func DocAnalyst() Profile {
	return Profile{
		Name:   "doc_analyst",
		Group:  state.GroupClaimSet,
		Target: rubric.TargetDocs,
		Briefing: "You are a documentation analyst. Extract the claims the " +
			"documentation and external report make about this project and " +
			"check each one against the repository. Every claim verdict " +
			"must come from a tool result.",
	}
}

// VisionInspector examines visual artifacts referenced by the report:
// diagrams, screenshots, rendered output.
func VisionInspector() Profile {
	return Profile{
		Name:   "vision_inspector",
		Group:  state.GroupVisualArtifacts,
		Target: rubric.TargetDocs,
		Briefing: "You are a visual artifact inspector. Locate diagrams, " +
			"screenshots, and rendered artifacts referenced by the report " +
			"and verify they exist and match what the report describes. " +
			"Every finding must come from a tool result.",
	}
}

// Stage runs one detective over the pipeline state.
type Stage struct {
	profile      Profile
	investigator agent.Investigator
	extractor    llm.Client
	maxSteps     int
}

// New creates a detective stage. extractor turns the raw investigation
// transcript into typed evidence.
func New(profile Profile, investigator agent.Investigator, extractor llm.Client) *Stage {
	return &Stage{
		profile:      profile,
		investigator: investigator,
		extractor:    extractor,
		maxSteps:     DefaultMaxSteps,
	}
}

// Name returns the detective's name.
func (s *Stage) Name() string { return s.profile.Name }

// evidencePayload is the extraction schema.
type evidencePayload struct {
	Evidences []verdict.Evidence `json:"evidences"`
}

// Run investigates and returns a partial state update containing this
// detective's evidence group.
func (s *Stage) Run(ctx context.Context, snap *state.State) (state.Update, error) {
	transcript, err := s.investigator.Run(ctx, s.systemPrompt(snap), s.taskMessage(snap), s.maxSteps)
	if err != nil {
		return state.Update{}, fmt.Errorf("detective %s: investigate: %w", s.profile.Name, err)
	}
	if transcript.ToolCallCount() == 0 {
		return state.Update{}, &GroundingError{
			Detective: s.profile.Name,
			Reason:    "investigation made zero tool calls, findings would be ungrounded",
		}
	}

	var payload evidencePayload
	if err := s.extractor.InvokeStructured(ctx, s.extractionPrompt(transcript), &payload); err != nil {
		return state.Update{}, fmt.Errorf("detective %s: extract evidence: %w", s.profile.Name, err)
	}
	if len(payload.Evidences) == 0 {
		return state.Update{}, &GroundingError{
			Detective: s.profile.Name,
			Reason:    "extraction produced zero evidence records",
		}
	}
	for i, ev := range payload.Evidences {
		if err := ev.Validate(); err != nil {
			return state.Update{}, fmt.Errorf("detective %s: evidence %d: %w", s.profile.Name, i+1, err)
		}
	}

	return state.Update{
		Evidences: map[state.Group][]verdict.Evidence{
			s.profile.Group: payload.Evidences,
		},
	}, nil
}

func (s *Stage) systemPrompt(snap *state.State) string {
	var b strings.Builder
	b.WriteString(s.profile.Briefing)
	b.WriteString("\n\n")
	b.WriteString(rubric.FormatMetadata(snap.Metadata))
	b.WriteString("\n")
	b.WriteString(rubric.FormatDimensions(snap.Dimensions, s.profile.Target))
	return b.String()
}

func (s *Stage) taskMessage(snap *state.State) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Repository path: %s.", snap.RepoPath)
	if snap.RepoURL != "" {
		fmt.Fprintf(&b, " Repository URL: %s.", snap.RepoURL)
	}
	if snap.DocPath != "" {
		fmt.Fprintf(&b, " Docs path: %s.", snap.DocPath)
	}
	if snap.ReportPath != "" {
		fmt.Fprintf(&b, " External report path: %s.", snap.ReportPath)
	}
	b.WriteString(" Investigate and report your findings.")
	return b.String()
}

func (s *Stage) extractionPrompt(transcript *agent.Transcript) string {
	var b strings.Builder
	b.WriteString("Extract every verifiable finding from the investigation transcript below ")
	b.WriteString("as an evidence record: goal, found, content, location, rationale, and a ")
	b.WriteString("confidence between 0 and 1. Only include findings backed by a tool result.\n\n")
	b.WriteString("Transcript:\n")
	b.WriteString(transcript.Serialize())
	b.WriteString("\nRespond with JSON: {\"evidences\": [...]}")
	return b.String()
}
