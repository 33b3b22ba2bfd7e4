// Package judge implements the three judicial stages of the audit pipeline.
// Each judge is a parameterized instance of the same deliberation logic: it
// receives the full evidence catalog and the rubric, and must return exactly
// one scored opinion per rubric dimension in a single structured response.
// Responses that violate the deliberation contract are retried with
// corrective feedback up to a fixed bound; exhausting the bound is fatal.
package judge

import (
	"context"
	"fmt"
	"strings"

	"github.com/dusk-indust/dueprocess/internal/llm"
	"github.com/dusk-indust/dueprocess/internal/rubric"
	"github.com/dusk-indust/dueprocess/internal/state"
	"github.com/dusk-indust/dueprocess/internal/verdict"
)

// MaxAttempts bounds the deliberation retry loop.
const MaxAttempts = 3

// DeliberationError reports a judge that exhausted its retry budget without
// producing a contract-satisfying deliberation. Fatal.
type DeliberationError struct {
	Judge    verdict.JudgeRole
	Attempts int
	// Violations holds the rejection reason of each failed attempt.
	Violations []string
}

// Error implements the error interface.
func (e *DeliberationError) Error() string {
	return fmt.Sprintf("judge %s: deliberation failed after %d attempts: %s",
		e.Judge, e.Attempts, strings.Join(e.Violations, "; "))
}

// personas holds the fixed persona instruction per judicial role.
var personas = map[verdict.JudgeRole]string{
	verdict.RoleProsecutor: "You are the Prosecutor: adversarial and " +
		"skeptical. Penalize claims the evidence does not prove. Absence of " +
		"evidence for a claimed capability counts against it.",
	verdict.RoleDefense: "You are the Defense: charitable and " +
		"context-aware. Reward demonstrated intent and effort, and give " +
		"credit for partial implementations the evidence supports.",
	verdict.RoleTechLead: "You are the Tech Lead: pragmatic and " +
		"architecture-focused. Score maintainability, structure, and " +
		"engineering judgment as the evidence shows them, ignoring polish " +
		"that does not affect the codebase's health.",
}

// Deliberation is a judge's single structured response: one opinion per
// rubric dimension.
type Deliberation struct {
	Opinions []verdict.Opinion `json:"opinions"`
}

// Stage runs one judge over the pipeline state.
type Stage struct {
	role  verdict.JudgeRole
	model llm.Client
}

// New creates a judge stage for the given role.
func New(role verdict.JudgeRole, model llm.Client) (*Stage, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("judge: unknown role %q", role)
	}
	return &Stage{role: role, model: model}, nil
}

// Role returns the stage's judicial role.
func (s *Stage) Role() verdict.JudgeRole { return s.role }

// Run deliberates over the evidence catalog and returns a partial state
// update containing one opinion per rubric dimension.
func (s *Stage) Run(ctx context.Context, snap *state.State) (state.Update, error) {
	if len(snap.Dimensions) == 0 {
		return state.Update{}, fmt.Errorf("judge %s: no rubric dimensions to score", s.role)
	}
	entries := verdict.FlattenEvidence(snap.EvidenceGroups())
	if len(entries) == 0 {
		return state.Update{}, fmt.Errorf("judge %s: evidence catalog is empty", s.role)
	}
	known := verdict.RefSet(entries)
	base := s.buildPrompt(snap, entries)

	var violations []string
	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		prompt := base
		if len(violations) > 0 {
			prompt += "\n\nYour previous response was rejected:\n- " +
				strings.Join(violations, "\n- ") +
				"\nCorrect every problem above and respond again."
		}

		var d Deliberation
		if err := s.model.InvokeStructured(ctx, prompt, &d); err != nil {
			if llm.IsSchemaValidation(err) {
				violations = append(violations, err.Error())
				continue
			}
			return state.Update{}, fmt.Errorf("judge %s: deliberate: %w", s.role, err)
		}

		if err := s.validate(d, snap.Dimensions, known); err != nil {
			violations = append(violations, err.Error())
			continue
		}
		return state.Update{Opinions: d.Opinions}, nil
	}

	return state.Update{}, &DeliberationError{
		Judge:      s.role,
		Attempts:   MaxAttempts,
		Violations: violations,
	}
}

// validate enforces the deliberation contract: role match, known criterion
// ids, per-opinion citation validity, and full dimension coverage.
func (s *Stage) validate(d Deliberation, dimensions []rubric.Dimension, known map[verdict.Ref]bool) error {
	if len(d.Opinions) == 0 {
		return fmt.Errorf("%s returned no opinions", s.role)
	}

	required := make(map[string]bool, len(dimensions))
	for _, dim := range dimensions {
		required[dim.ID] = true
	}
	returned := make(map[string]bool, len(d.Opinions))

	for _, o := range d.Opinions {
		if o.Judge != s.role {
			return fmt.Errorf("%s returned mismatched opinion judge=%s", s.role, o.Judge)
		}
		if !required[o.CriterionID] {
			return fmt.Errorf("%s returned unknown criterion_id: %s", s.role, o.CriterionID)
		}
		if err := o.Validate(known); err != nil {
			return fmt.Errorf("%s: %w", s.role, err)
		}
		returned[o.CriterionID] = true
	}

	var missing []string
	for _, dim := range dimensions {
		if !returned[dim.ID] {
			missing = append(missing, dim.ID)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%s did not score all dimensions, missing: %s",
			s.role, strings.Join(missing, ", "))
	}
	return nil
}

func (s *Stage) buildPrompt(snap *state.State, entries []verdict.RefEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Judge role: %s\n", s.role)
	b.WriteString(personas[s.role])
	b.WriteString("\n")
	b.WriteString("You must score every rubric dimension, with one opinion per dimension, ")
	b.WriteString("and set criterion_id exactly to the dimension id.\n")
	b.WriteString("You must base your opinions only on the evidence list below. ")
	b.WriteString("In cited_evidence, include only evidence reference IDs from the list.\n\n")
	b.WriteString(rubric.FormatMetadata(snap.Metadata))
	b.WriteString("\n\n")
	b.WriteString(rubric.FormatSynthesisRules(snap.SynthesisRules))
	b.WriteString("\n\n")
	b.WriteString(rubric.FormatDimensions(snap.Dimensions, ""))
	b.WriteString("\n\nEvidence list:\n")
	b.WriteString(verdict.EvidenceCatalog(entries))
	b.WriteString("\n\nReturn JSON: {\"opinions\": [...]} covering all dimensions.")
	return b.String()
}
