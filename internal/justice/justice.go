// Package justice implements the chief justice stage: the deterministic
// synthesis algorithm that reconciles divergent judge opinions into one final
// score per rubric dimension, plus the LLM-authored executive summary. Only
// the summary prose comes from the model; every score, dissent summary, and
// remediation entry in the final report is computed here and overwrites
// whatever the model returned.
package justice

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/dusk-indust/dueprocess/internal/llm"
	"github.com/dusk-indust/dueprocess/internal/rubric"
	"github.com/dusk-indust/dueprocess/internal/state"
	"github.com/dusk-indust/dueprocess/internal/verdict"
)

const (
	// SecurityScoreThreshold: security-flagged scores at or below this
	// trigger the security override.
	SecurityScoreThreshold = 2
	// ScoreVarianceThreshold: variance above this triggers a dissent summary.
	ScoreVarianceThreshold = 2
	// techLeadWeight is the functionality-weight multiplier for the TechLead.
	techLeadWeight = 1.3
)

// CoverageError reports rubric dimensions left uncovered by judge opinions
// or by the final report. Fatal: the pipeline refuses to synthesize a report
// from incomplete inputs.
type CoverageError struct {
	Where   string
	Missing []string
}

// Error implements the error interface.
func (e *CoverageError) Error() string {
	return fmt.Sprintf("%s does not cover all rubric dimensions, missing: %s",
		e.Where, strings.Join(e.Missing, ", "))
}

// ---------------------------------------------------------------------------
// Deterministic synthesis rules
// ---------------------------------------------------------------------------

// ScoreVariance returns max−min across the opinions' scores and whether the
// spread is wide enough to require a dissent summary.
func ScoreVariance(opinions []verdict.Opinion) (float64, bool) {
	if len(opinions) < 2 {
		return 0, false
	}
	lo, hi := opinions[0].Score, opinions[0].Score
	for _, o := range opinions[1:] {
		if o.Score < lo {
			lo = o.Score
		}
		if o.Score > hi {
			hi = o.Score
		}
	}
	variance := float64(hi - lo)
	return variance, variance > ScoreVarianceThreshold
}

// securityOverride reports whether any security-named criterion was scored
// at or below the threshold. A low security score is a hard ceiling, not an
// input to averaging.
func securityOverride(opinions []verdict.Opinion) (int, bool) {
	triggered := false
	minScore := 0
	for _, o := range opinions {
		if !strings.Contains(strings.ToLower(o.CriterionID), "security") {
			continue
		}
		if o.Score <= SecurityScoreThreshold {
			triggered = true
		}
		if minScore == 0 || o.Score < minScore {
			minScore = o.Score
		}
	}
	return minScore, triggered
}

// factSupremacy returns the evidence-based score adjustment: −1 when
// negative findings outnumber positive ones, +1 when positive findings
// outnumber negatives by more than 2×, otherwise 0.
func factSupremacy(evidence []verdict.Evidence) int {
	positive, negative := 0, 0
	for _, e := range evidence {
		if e.Found && e.Confidence > 0.5 {
			positive++
		} else {
			negative++
		}
	}
	switch {
	case negative > positive:
		return -1
	case positive > negative*2:
		return 1
	}
	return 0
}

// functionalityWeight computes the weighted-average base score with the
// TechLead's opinion weighted at 1.3×.
func functionalityWeight(opinions []verdict.Opinion) int {
	weightedSum, totalWeight := 0.0, 0.0
	for _, o := range opinions {
		weight := 1.0
		if o.Judge == verdict.RoleTechLead {
			weight = techLeadWeight
		}
		weightedSum += float64(o.Score) * weight
		totalWeight += weight
	}
	if totalWeight == 0 {
		return 3
	}
	return int(math.Round(weightedSum / totalWeight))
}

func clampScore(score int) int {
	if score < 1 {
		return 1
	}
	if score > 5 {
		return 5
	}
	return score
}

// relevantEvidence selects the evidence heuristically associated with a
// dimension: goal text containing the dimension id or name. Known weak
// point: a dimension whose evidence goals are phrased differently will match
// nothing, and the fact-supremacy adjustment then stays neutral.
func relevantEvidence(entries []verdict.RefEntry, dim rubric.Dimension) []verdict.Evidence {
	var out []verdict.Evidence
	name := strings.ToLower(dim.Name)
	for _, entry := range entries {
		goal := strings.ToLower(entry.Evidence.Goal)
		if strings.Contains(goal, dim.ID) || strings.Contains(goal, name) {
			out = append(out, entry.Evidence)
		}
	}
	return out
}

// SynthesizeCriterion runs the full deterministic rule set for one dimension.
func SynthesizeCriterion(dim rubric.Dimension, opinions []verdict.Opinion, evidence []verdict.Evidence) verdict.CriterionResult {
	variance, needsDissent := ScoreVariance(opinions)

	base := functionalityWeight(opinions)
	if minSecurity, triggered := securityOverride(opinions); triggered {
		base = minSecurity
	}
	final := clampScore(base + factSupremacy(evidence))

	dissent := ""
	if needsDissent {
		dissent = dissentSummary(opinions, variance, final)
	}

	return verdict.CriterionResult{
		DimensionID:    dim.ID,
		DimensionName:  dim.Name,
		FinalScore:     final,
		JudgeOpinions:  opinions,
		DissentSummary: dissent,
		Remediation:    remediation(opinions, evidence, final, dim.ID),
	}
}

func dissentSummary(opinions []verdict.Opinion, variance float64, final int) string {
	scores := make(map[verdict.JudgeRole]string, len(opinions))
	for _, o := range opinions {
		scores[o.Judge] = fmt.Sprint(o.Score)
	}
	get := func(role verdict.JudgeRole) string {
		if s, ok := scores[role]; ok {
			return s
		}
		return "N/A"
	}
	return fmt.Sprintf(
		"Score variance of %.0f detected across judges. Prosecutor: %s, Defense: %s, TechLead: %s. "+
			"Final score (%d) weighted toward TechLead evaluation.",
		variance, get(verdict.RoleProsecutor), get(verdict.RoleDefense), get(verdict.RoleTechLead), final,
	)
}

// remediation composes per-dimension improvement guidance: missing artifact
// locations, then the Prosecutor's argument when its score is critical, then
// the TechLead's when its score needs work.
func remediation(opinions []verdict.Opinion, evidence []verdict.Evidence, final int, dimensionID string) string {
	if final >= 4 {
		return "No remediation required. Criterion meets quality standards."
	}

	var parts []string

	var locations []string
	for _, e := range evidence {
		if e.Location != "" && !e.Found {
			locations = append(locations, e.Location)
		}
	}
	if len(locations) > 0 {
		if len(locations) > 3 {
			locations = locations[:3]
		}
		parts = append(parts, "Address missing artifacts at: "+strings.Join(locations, ", "))
	}

	if o, ok := firstByRole(opinions, verdict.RoleProsecutor); ok && o.Score <= 2 {
		parts = append(parts, "Address security/concerns raised by Prosecutor: "+truncate(o.Argument, 100))
	}
	if o, ok := firstByRole(opinions, verdict.RoleTechLead); ok && o.Score <= 3 {
		parts = append(parts, "Improve architectural patterns per TechLead: "+truncate(o.Argument, 100))
	}

	if len(parts) == 0 {
		return fmt.Sprintf("Review and improve %s to meet success patterns defined in rubric.", dimensionID)
	}
	return strings.Join(parts, "; ")
}

func firstByRole(opinions []verdict.Opinion, role verdict.JudgeRole) (verdict.Opinion, bool) {
	for _, o := range opinions {
		if o.Judge == role {
			return o, true
		}
	}
	return verdict.Opinion{}, false
}

// truncate caps s at n characters, never splitting a multibyte rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// RemediationPlan groups dimensions by severity into a markdown plan.
func RemediationPlan(criteria []verdict.CriterionResult) string {
	var low, medium []verdict.CriterionResult
	for _, c := range criteria {
		switch {
		case c.FinalScore <= 2:
			low = append(low, c)
		case c.FinalScore == 3:
			medium = append(medium, c)
		}
	}

	parts := []string{"# Remediation Plan\n"}
	section := func(title string, items []verdict.CriterionResult) {
		parts = append(parts, "\n## "+title+"\n")
		for _, c := range items {
			parts = append(parts,
				fmt.Sprintf("\n### %s (%s)", c.DimensionName, c.DimensionID),
				fmt.Sprintf("- Current Score: %d/5", c.FinalScore),
				"- Action: "+c.Remediation,
			)
		}
	}

	if len(low) > 0 {
		section("Priority 1: Critical Issues (Score <= 2)", low)
	}
	if len(medium) > 0 {
		section("Priority 2: Improvements Needed (Score 3)", medium)
	}
	if len(low) == 0 && len(medium) == 0 {
		parts = append(parts,
			"\n## Status: All Criteria Meet Quality Standards\n",
			"No remediation required. The codebase meets all evaluated criteria.",
		)
	}
	return strings.Join(parts, "\n")
}

// ---------------------------------------------------------------------------
// Stage
// ---------------------------------------------------------------------------

// Stage is the chief justice node.
type Stage struct {
	model llm.Client
}

// New creates the chief justice stage. The model is used only for the
// executive summary.
func New(model llm.Client) *Stage {
	return &Stage{model: model}
}

// Run synthesizes the final report. Preconditions: non-empty evidence, and
// opinions covering every rubric dimension.
func (s *Stage) Run(ctx context.Context, snap *state.State) (state.Update, error) {
	if len(snap.Dimensions) == 0 {
		return state.Update{}, fmt.Errorf("chief justice: no rubric dimensions")
	}
	entries := verdict.FlattenEvidence(snap.EvidenceGroups())
	if len(entries) == 0 {
		return state.Update{}, fmt.Errorf("chief justice: no evidence collected, run detectives first")
	}
	if len(snap.Opinions) == 0 {
		return state.Update{}, fmt.Errorf("chief justice: no opinions rendered, run judges first")
	}

	required := make(map[string]bool, len(snap.Dimensions))
	for _, dim := range snap.Dimensions {
		required[dim.ID] = true
	}
	judged := make(map[string]bool, len(snap.Opinions))
	byDimension := make(map[string][]verdict.Opinion)
	for _, o := range snap.Opinions {
		judged[o.CriterionID] = true
		byDimension[o.CriterionID] = append(byDimension[o.CriterionID], o)
	}
	if missing := missingDimensions(required, judged); len(missing) > 0 {
		return state.Update{}, &CoverageError{Where: "judge opinions", Missing: missing}
	}

	// Deterministic synthesis, one result per dimension in rubric order.
	var criteria []verdict.CriterionResult
	for _, dim := range snap.Dimensions {
		opinions := byDimension[dim.ID]
		if len(opinions) == 0 {
			continue
		}
		criteria = append(criteria, SynthesizeCriterion(dim, opinions, relevantEvidence(entries, dim)))
	}

	overall := 3.0
	if len(criteria) > 0 {
		scores := make([]float64, len(criteria))
		for i, c := range criteria {
			scores[i] = float64(c.FinalScore)
		}
		overall = stat.Mean(scores, nil)
	}
	plan := RemediationPlan(criteria)

	var report verdict.AuditReport
	if err := s.model.InvokeStructured(ctx, s.summaryPrompt(snap, entries, overall), &report); err != nil {
		return state.Update{}, fmt.Errorf("chief justice: executive summary: %w", err)
	}

	// The model contributes prose only; the deterministic values win.
	report.RepoURL = snap.RepoURL
	report.Criteria = criteria
	report.OverallScore = overall
	report.RemediationPlan = plan

	covered := make(map[string]bool, len(report.Criteria))
	for _, c := range report.Criteria {
		covered[c.DimensionID] = true
	}
	if missing := missingDimensions(required, covered); len(missing) > 0 {
		return state.Update{}, &CoverageError{Where: "final report", Missing: missing}
	}

	return state.Update{FinalReport: &report}, nil
}

func missingDimensions(required, present map[string]bool) []string {
	var missing []string
	for id := range required {
		if !present[id] {
			missing = append(missing, id)
		}
	}
	sort.Strings(missing)
	return missing
}

func (s *Stage) summaryPrompt(snap *state.State, entries []verdict.RefEntry, overall float64) string {
	var b strings.Builder
	b.WriteString("Generate an executive summary for this audit report based on the ")
	b.WriteString("synthesized judge opinions and evidence below. The scores have already ")
	b.WriteString("been determined using deterministic rules (Security Override, Fact Supremacy, ")
	b.WriteString("Functionality Weight).\n\n")
	fmt.Fprintf(&b, "Repository URL: %s\n", snap.RepoURL)
	fmt.Fprintf(&b, "Total evidence entries: %d\n", len(entries))
	fmt.Fprintf(&b, "Total opinions: %d\n", len(snap.Opinions))
	fmt.Fprintf(&b, "Overall score: %.1f/5\n\n", overall)
	b.WriteString(rubric.FormatMetadata(snap.Metadata))
	b.WriteString("\n\n")
	b.WriteString(rubric.FormatSynthesisRules(snap.SynthesisRules))
	b.WriteString("\n\n")
	b.WriteString(rubric.FormatDimensions(snap.Dimensions, ""))
	b.WriteString("\n\nEvidence list:\n")
	b.WriteString(verdict.EvidenceCatalog(entries))
	b.WriteString("\n\nJudge opinions:\n")
	b.WriteString(verdict.OpinionCatalog(snap.Opinions))
	b.WriteString("\n\nSynthesis rules applied:\n")
	fmt.Fprintf(&b, "- Security Override: Scores <= %d take precedence\n", SecurityScoreThreshold)
	b.WriteString("- Fact Supremacy: Evidence determines final score adjustments\n")
	fmt.Fprintf(&b, "- Functionality Weight: Tech Lead opinions weighted at %.1fx\n", techLeadWeight)
	fmt.Fprintf(&b, "- Dissent Requirement: Variance > %d triggers dissent summary\n", ScoreVarianceThreshold)
	return b.String()
}
