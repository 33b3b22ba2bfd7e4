// Package verdict defines the courtroom data model: evidence collected by
// detectives, opinions rendered by judges, and the synthesized audit report.
// All values are immutable once created; later stages reference evidence via
// composite reference ids rather than mutating it.
package verdict

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// JudgeRole identifies one of the three fixed judicial personas.
type JudgeRole string

const (
	// RoleProsecutor is the adversarial judge that penalizes unproven claims.
	RoleProsecutor JudgeRole = "Prosecutor"
	// RoleDefense is the charitable judge that rewards intent and effort.
	RoleDefense JudgeRole = "Defense"
	// RoleTechLead is the architecture and maintainability focused judge.
	RoleTechLead JudgeRole = "TechLead"
)

// Roles lists every judicial persona in bench order.
var Roles = []JudgeRole{RoleProsecutor, RoleDefense, RoleTechLead}

// Valid reports whether the role is one of the three known personas.
func (r JudgeRole) Valid() bool {
	switch r {
	case RoleProsecutor, RoleDefense, RoleTechLead:
		return true
	}
	return false
}

// Evidence is an atomic fact record produced by a detective stage.
type Evidence struct {
	// Goal is the specific claim or question being investigated.
	Goal string `json:"goal"`
	// Found reports whether the artifact exists.
	Found bool `json:"found"`
	// Content is the content or summary of the finding, if any.
	Content string `json:"content,omitempty"`
	// Location is a file path, commit hash, or document section.
	Location string `json:"location"`
	// Rationale explains the confidence in this evidence.
	Rationale string `json:"rationale"`
	// Confidence is a score in [0, 1].
	Confidence float64 `json:"confidence"`
}

// Validate checks the construction-time invariants of an Evidence record.
func (e Evidence) Validate() error {
	if strings.TrimSpace(e.Goal) == "" {
		return fmt.Errorf("evidence: goal must not be empty")
	}
	if e.Confidence < 0 || e.Confidence > 1 {
		return fmt.Errorf("evidence: confidence %v outside [0, 1]", e.Confidence)
	}
	return nil
}

// Opinion is a judge's scored assessment of a single rubric dimension.
type Opinion struct {
	Judge       JudgeRole `json:"judge"`
	CriterionID string    `json:"criterion_id"`
	// Score is an integer in [1, 5].
	Score    int    `json:"score"`
	Argument string `json:"argument"`
	// CitedEvidence holds evidence reference ids; it must be non-empty and
	// every reference must resolve to a real evidence entry.
	CitedEvidence []Ref `json:"cited_evidence"`
}

// Validate checks an Opinion against the set of known evidence references.
func (o Opinion) Validate(known map[Ref]bool) error {
	if !o.Judge.Valid() {
		return fmt.Errorf("opinion: unknown judge role %q", o.Judge)
	}
	if o.Score < 1 || o.Score > 5 {
		return fmt.Errorf("opinion: score %d outside [1, 5] for %s", o.Score, o.CriterionID)
	}
	if len(o.CitedEvidence) == 0 {
		return fmt.Errorf("opinion: no cited evidence for %s", o.CriterionID)
	}
	var unknown []string
	for _, ref := range o.CitedEvidence {
		if !known[ref] {
			unknown = append(unknown, string(ref))
		}
	}
	if len(unknown) > 0 {
		return fmt.Errorf("opinion: cited unknown evidence references: %s", strings.Join(unknown, ", "))
	}
	return nil
}

// CriterionResult is the synthesized outcome for one rubric dimension.
// It is created exactly once per dimension by the chief justice stage.
type CriterionResult struct {
	DimensionID   string `json:"dimension_id"`
	DimensionName string `json:"dimension_name"`
	// FinalScore is the deterministic score in [1, 5].
	FinalScore int `json:"final_score"`
	// JudgeOpinions holds every opinion rendered for this dimension.
	JudgeOpinions []Opinion `json:"judge_opinions"`
	// DissentSummary is set only when score variance across judges exceeds
	// the dissent threshold.
	DissentSummary string `json:"dissent_summary,omitempty"`
	// Remediation holds specific improvement instructions.
	Remediation string `json:"remediation"`
}

// AuditReport is the terminal artifact of a successful audit run.
type AuditReport struct {
	RepoURL          string            `json:"repo_url"`
	ExecutiveSummary string            `json:"executive_summary"`
	OverallScore     float64           `json:"overall_score"`
	Criteria         []CriterionResult `json:"criteria"`
	RemediationPlan  string            `json:"remediation_plan"`
}

// ---------------------------------------------------------------------------
// Evidence references
// ---------------------------------------------------------------------------

// Ref is a composite evidence reference of the form "<group>:<index>", where
// index is 1-based within its group.
type Ref string

// NewRef builds a Ref from a group name and a 1-based index.
func NewRef(group string, index int) Ref {
	return Ref(group + ":" + strconv.Itoa(index))
}

// Split returns the group name and 1-based index encoded in the reference.
func (r Ref) Split() (group string, index int, err error) {
	i := strings.LastIndex(string(r), ":")
	if i < 0 {
		return "", 0, fmt.Errorf("verdict: malformed evidence reference %q", r)
	}
	group = string(r[:i])
	index, err = strconv.Atoi(string(r[i+1:]))
	if err != nil || group == "" || index < 1 {
		return "", 0, fmt.Errorf("verdict: malformed evidence reference %q", r)
	}
	return group, index, nil
}

// RefEntry pairs an evidence reference with the evidence it resolves to.
type RefEntry struct {
	Ref      Ref
	Evidence Evidence
}

// FlattenEvidence converts grouped evidence into a flat reference list.
// Groups are visited in sorted name order so the catalog is stable across
// runs; within a group the detective's own ordering is preserved.
func FlattenEvidence(groups map[string][]Evidence) []RefEntry {
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []RefEntry
	for _, name := range names {
		for i, e := range groups[name] {
			out = append(out, RefEntry{Ref: NewRef(name, i+1), Evidence: e})
		}
	}
	return out
}

// RefSet returns the set of references in the flattened catalog, for
// citation validation.
func RefSet(entries []RefEntry) map[Ref]bool {
	set := make(map[Ref]bool, len(entries))
	for _, entry := range entries {
		set[entry.Ref] = true
	}
	return set
}

// ---------------------------------------------------------------------------
// Prompt-facing formatting
// ---------------------------------------------------------------------------

// FormatEvidenceLine renders one evidence catalog line as presented to
// judges and the chief justice.
func FormatEvidenceLine(ref Ref, e Evidence) string {
	return fmt.Sprintf(
		"- %s | found=%t | location=%s | goal=%s | rationale=%s | confidence=%.2f | content=%s",
		ref, e.Found, e.Location, e.Goal, e.Rationale, e.Confidence, e.Content,
	)
}

// FormatOpinionLine renders one opinion catalog line.
func FormatOpinionLine(o Opinion) string {
	cited := make([]string, len(o.CitedEvidence))
	for i, ref := range o.CitedEvidence {
		cited[i] = string(ref)
	}
	return fmt.Sprintf(
		"- judge=%s criterion=%s score=%d cited=[%s] argument=%s",
		o.Judge, o.CriterionID, o.Score, strings.Join(cited, ", "), o.Argument,
	)
}

// EvidenceCatalog renders the full evidence catalog, one line per reference.
func EvidenceCatalog(entries []RefEntry) string {
	lines := make([]string, len(entries))
	for i, entry := range entries {
		lines[i] = FormatEvidenceLine(entry.Ref, entry.Evidence)
	}
	return strings.Join(lines, "\n")
}

// OpinionCatalog renders the full opinion catalog, one line per opinion.
func OpinionCatalog(opinions []Opinion) string {
	lines := make([]string, len(opinions))
	for i, o := range opinions {
		lines[i] = FormatOpinionLine(o)
	}
	return strings.Join(lines, "\n")
}
