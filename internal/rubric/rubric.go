// Package rubric defines the weighted rubric consumed by the audit pipeline:
// evaluation dimensions, synthesis policy text, and rubric metadata. Rubrics
// are loaded and validated before the pipeline starts; a malformed rubric is
// an ingestion-time error and is never surfaced mid-pipeline.
package rubric

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// TargetArtifact selects which artifact a dimension evaluates.
type TargetArtifact string

const (
	// TargetRepo dimensions are investigated against the cloned repository.
	TargetRepo TargetArtifact = "github_repo"
	// TargetDocs dimensions are investigated against documentation and the
	// external report.
	TargetDocs TargetArtifact = "docs"
)

// Valid reports whether the target artifact is a known value.
func (t TargetArtifact) Valid() bool {
	return t == TargetRepo || t == TargetDocs
}

// Dimension is one rubric dimension to be evaluated.
type Dimension struct {
	ID                  string         `yaml:"id" json:"id"`
	Name                string         `yaml:"name" json:"name"`
	TargetArtifact      TargetArtifact `yaml:"target_artifact" json:"target_artifact"`
	ForensicInstruction string         `yaml:"forensic_instruction" json:"forensic_instruction"`
	SuccessPattern      string         `yaml:"success_pattern" json:"success_pattern"`
	FailurePattern      string         `yaml:"failure_pattern" json:"failure_pattern"`
}

// SynthesisRules carries the five free-text synthesis policies. These are
// LLM-facing guidance only; the numeric enforcement of the same policies is
// hardcoded in the chief justice stage.
type SynthesisRules struct {
	SecurityOverride     string `yaml:"security_override" json:"security_override"`
	FactSupremacy        string `yaml:"fact_supremacy" json:"fact_supremacy"`
	FunctionalityWeight  string `yaml:"functionality_weight" json:"functionality_weight"`
	DissentRequirement   string `yaml:"dissent_requirement" json:"dissent_requirement"`
	VarianceReEvaluation string `yaml:"variance_re_evaluation" json:"variance_re_evaluation"`
}

// Metadata describes the rubric document itself.
type Metadata struct {
	RubricName    string `yaml:"rubric_name" json:"rubric_name"`
	GradingTarget string `yaml:"grading_target" json:"grading_target"`
	Version       string `yaml:"version" json:"version"`
}

// Rubric is a complete rubric document.
type Rubric struct {
	Metadata       Metadata       `yaml:"rubric_metadata" json:"rubric_metadata"`
	Dimensions     []Dimension    `yaml:"dimensions" json:"dimensions"`
	SynthesisRules SynthesisRules `yaml:"synthesis_rules" json:"synthesis_rules"`
}

// Load reads and validates a rubric YAML file.
func Load(path string) (*Rubric, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("rubric: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates rubric YAML.
func Parse(data []byte) (*Rubric, error) {
	var r Rubric
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("rubric: decode: %w", err)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

// Validate enforces the rubric ingestion contract: at least one dimension,
// unique non-empty ids, known target artifacts, and all five synthesis-rule
// policies present.
func (r *Rubric) Validate() error {
	if len(r.Dimensions) == 0 {
		return fmt.Errorf("rubric: no dimensions defined")
	}
	seen := make(map[string]bool, len(r.Dimensions))
	for _, d := range r.Dimensions {
		if strings.TrimSpace(d.ID) == "" {
			return fmt.Errorf("rubric: dimension with empty id")
		}
		if seen[d.ID] {
			return fmt.Errorf("rubric: duplicate dimension id %q", d.ID)
		}
		seen[d.ID] = true
		if !d.TargetArtifact.Valid() {
			return fmt.Errorf("rubric: dimension %q has unknown target_artifact %q", d.ID, d.TargetArtifact)
		}
	}
	rules := map[string]string{
		"security_override":      r.SynthesisRules.SecurityOverride,
		"fact_supremacy":         r.SynthesisRules.FactSupremacy,
		"functionality_weight":   r.SynthesisRules.FunctionalityWeight,
		"dissent_requirement":    r.SynthesisRules.DissentRequirement,
		"variance_re_evaluation": r.SynthesisRules.VarianceReEvaluation,
	}
	for name, text := range rules {
		if strings.TrimSpace(text) == "" {
			return fmt.Errorf("rubric: synthesis rule %s is empty", name)
		}
	}
	return nil
}

// DimensionIDs returns the set of all dimension ids.
func (r *Rubric) DimensionIDs() map[string]bool {
	ids := make(map[string]bool, len(r.Dimensions))
	for _, d := range r.Dimensions {
		ids[d.ID] = true
	}
	return ids
}

// FilterDimensions returns the dimensions targeting the given artifact.
func FilterDimensions(dimensions []Dimension, target TargetArtifact) []Dimension {
	var out []Dimension
	for _, d := range dimensions {
		if d.TargetArtifact == target {
			out = append(out, d)
		}
	}
	return out
}
