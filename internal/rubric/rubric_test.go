package rubric

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleRubric = `
rubric_metadata:
  rubric_name: Code Quality Audit
  grading_target: backend service
  version: "1.2"
dimensions:
  - id: git_history
    name: Git History
    target_artifact: github_repo
    forensic_instruction: Evaluate commit quality and traceability.
    success_pattern: Frequent meaningful commits with clear rationale.
    failure_pattern: Sparse noisy commits with weak traceability.
  - id: security_audit
    name: Security Audit
    target_artifact: github_repo
    forensic_instruction: Look for secret handling and input validation.
    success_pattern: No secrets in tree, inputs validated.
    failure_pattern: Hardcoded credentials, unchecked input.
  - id: doc_accuracy
    name: Documentation Accuracy
    target_artifact: docs
    forensic_instruction: Verify documented claims against the report.
    success_pattern: Claims match implementation.
    failure_pattern: Claims contradict the code.
synthesis_rules:
  security_override: Low security scores take precedence.
  fact_supremacy: Evidence outweighs judge claims.
  functionality_weight: Tech lead opinion gets priority.
  dissent_requirement: High variance requires a dissent summary.
  variance_re_evaluation: Re-examine evidence when judges diverge.
`

func TestParse_ValidRubric(t *testing.T) {
	r, err := Parse([]byte(sampleRubric))
	require.NoError(t, err)

	assert.Equal(t, "Code Quality Audit", r.Metadata.RubricName)
	require.Len(t, r.Dimensions, 3)
	assert.Equal(t, TargetRepo, r.Dimensions[0].TargetArtifact)
	assert.Equal(t, TargetDocs, r.Dimensions[2].TargetArtifact)
	assert.Equal(t,
		map[string]bool{"git_history": true, "security_audit": true, "doc_accuracy": true},
		r.DimensionIDs())
}

func TestParse_RejectsDuplicateIDs(t *testing.T) {
	r, err := Parse([]byte(sampleRubric))
	require.NoError(t, err)

	r.Dimensions = append(r.Dimensions, r.Dimensions[0])
	err = r.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate dimension id")
}

func TestParse_RejectsUnknownTargetArtifact(t *testing.T) {
	r, err := Parse([]byte(sampleRubric))
	require.NoError(t, err)

	r.Dimensions[0].TargetArtifact = "wiki"
	assert.Error(t, r.Validate())
}

func TestParse_RejectsMissingSynthesisRule(t *testing.T) {
	r, err := Parse([]byte(sampleRubric))
	require.NoError(t, err)

	r.SynthesisRules.FactSupremacy = "  "
	err = r.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fact_supremacy")
}

func TestParse_RejectsEmptyDimensions(t *testing.T) {
	_, err := Parse([]byte("rubric_metadata:\n  rubric_name: x\n"))
	assert.Error(t, err)
}

func TestFilterDimensions(t *testing.T) {
	r, err := Parse([]byte(sampleRubric))
	require.NoError(t, err)

	repoDims := FilterDimensions(r.Dimensions, TargetRepo)
	require.Len(t, repoDims, 2)
	docDims := FilterDimensions(r.Dimensions, TargetDocs)
	require.Len(t, docDims, 1)
	assert.Equal(t, "doc_accuracy", docDims[0].ID)
}

func TestFormatDimensions_FilteredAndEmpty(t *testing.T) {
	r, err := Parse([]byte(sampleRubric))
	require.NoError(t, err)

	block := FormatDimensions(r.Dimensions, TargetDocs)
	assert.Contains(t, block, "id=doc_accuracy")
	assert.NotContains(t, block, "id=git_history")

	assert.Equal(t, "Dimensions:\n- none", FormatDimensions(nil, TargetRepo))
}
