package rubric

import (
	"fmt"
	"strings"
)

// Prompt block helpers shared by detective, judge, and chief justice prompts.

// FormatMetadata renders rubric metadata as a compact multiline block.
func FormatMetadata(m Metadata) string {
	return fmt.Sprintf(
		"Rubric metadata:\n- name: %s\n- grading_target: %s\n- version: %s",
		m.RubricName, m.GradingTarget, m.Version,
	)
}

// FormatSynthesisRules renders the synthesis policy text for prompts.
func FormatSynthesisRules(r SynthesisRules) string {
	return fmt.Sprintf(
		"Synthesis rules:\n"+
			"- security_override: %s\n"+
			"- fact_supremacy: %s\n"+
			"- functionality_weight: %s\n"+
			"- dissent_requirement: %s\n"+
			"- variance_re_evaluation: %s",
		r.SecurityOverride, r.FactSupremacy, r.FunctionalityWeight,
		r.DissentRequirement, r.VarianceReEvaluation,
	)
}

// FormatDimensions renders dimension blocks. If target is non-empty, only
// dimensions for that artifact are included.
func FormatDimensions(dimensions []Dimension, target TargetArtifact) string {
	selected := dimensions
	if target != "" {
		selected = FilterDimensions(dimensions, target)
	}
	if len(selected) == 0 {
		return "Dimensions:\n- none"
	}

	lines := []string{"Dimensions:"}
	for _, d := range selected {
		lines = append(lines,
			fmt.Sprintf("- id=%s | name=%s | target_artifact=%s", d.ID, d.Name, d.TargetArtifact),
			fmt.Sprintf("  forensic_instruction: %s", d.ForensicInstruction),
			fmt.Sprintf("  success_pattern: %s", d.SuccessPattern),
			fmt.Sprintf("  failure_pattern: %s", d.FailurePattern),
		)
	}
	return strings.Join(lines, "\n")
}

// FormatFull renders the full rubric without summarization.
func FormatFull(r *Rubric) string {
	return FormatMetadata(r.Metadata) + "\n\n" +
		FormatSynthesisRules(r.SynthesisRules) + "\n\n" +
		FormatDimensions(r.Dimensions, "")
}
