// Package report renders a finished audit report for humans and machines:
// markdown for committing next to the audited repo, JSON for downstream
// tooling, and a styled terminal summary for interactive runs.
package report

import (
	"fmt"
	"strings"

	"github.com/dusk-indust/dueprocess/internal/verdict"
)

// Markdown renders the report as human-readable markdown.
func Markdown(r *verdict.AuditReport) string {
	var b strings.Builder

	b.WriteString("# Audit Report\n\n")
	fmt.Fprintf(&b, "- Repository: `%s`\n", r.RepoURL)
	fmt.Fprintf(&b, "- Overall score: **%.1f/5**\n\n", r.OverallScore)

	b.WriteString("## Executive Summary\n\n")
	b.WriteString(r.ExecutiveSummary)
	b.WriteString("\n\n")

	b.WriteString("## Dimension Scores\n\n")
	b.WriteString("| Dimension ID | Name | Final Score |\n")
	b.WriteString("| --- | --- | ---: |\n")
	for _, c := range r.Criteria {
		fmt.Fprintf(&b, "| `%s` | %s | %d/5 |\n", c.DimensionID, c.DimensionName, c.FinalScore)
	}

	b.WriteString("\n## Criteria Details\n\n")
	for _, c := range r.Criteria {
		fmt.Fprintf(&b, "### %s (`%s`)\n\n", c.DimensionName, c.DimensionID)
		fmt.Fprintf(&b, "- Final score: **%d/5**\n", c.FinalScore)
		fmt.Fprintf(&b, "- Remediation: %s\n", c.Remediation)
		if c.DissentSummary != "" {
			fmt.Fprintf(&b, "- Dissent summary: %s\n", c.DissentSummary)
		}
		b.WriteString("\nJudge opinions:\n")
		for _, o := range c.JudgeOpinions {
			cited := make([]string, len(o.CitedEvidence))
			for i, ref := range o.CitedEvidence {
				cited[i] = string(ref)
			}
			fmt.Fprintf(&b, "- **%s** (%d/5): %s [cited: %s]\n",
				o.Judge, o.Score, o.Argument, strings.Join(cited, ", "))
		}
		b.WriteString("\n")
	}

	b.WriteString("## Remediation Plan\n\n")
	b.WriteString(r.RemediationPlan)
	b.WriteString("\n")
	return b.String()
}
