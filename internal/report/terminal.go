package report

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/dusk-indust/dueprocess/internal/verdict"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("63"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244"))

	scoreStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("42"))

	lowScoreStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("203"))

	dissentStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 2)
)

// Terminal renders a compact styled synthesis summary for interactive runs.
func Terminal(r *verdict.AuditReport) string {
	var rows []string
	rows = append(rows, titleStyle.Render("Chief Justice Synthesis"))
	rows = append(rows, labelStyle.Render("Repository  ")+r.RepoURL)
	rows = append(rows, labelStyle.Render("Final score ")+styleScore(r.OverallScore))
	rows = append(rows, labelStyle.Render("Criteria    ")+strconv.Itoa(len(r.Criteria)))

	variance := maxScoreVariance(r)
	note := "within tolerance"
	if variance > 2 {
		note = "re-evaluation recommended"
	}
	rows = append(rows, labelStyle.Render("Variance    ")+fmt.Sprintf("%d point(s) (%s)", variance, note))

	rows = append(rows, "")
	for _, c := range r.Criteria {
		line := fmt.Sprintf("%-24s %s", c.DimensionName, styleDimScore(c.FinalScore))
		if c.DissentSummary != "" {
			line += "  " + dissentStyle.Render("dissent")
		}
		rows = append(rows, line)
	}

	return boxStyle.Render(strings.Join(rows, "\n"))
}

func styleScore(score float64) string {
	text := fmt.Sprintf("%.1f/5", score)
	if score < 3 {
		return lowScoreStyle.Render(text)
	}
	return scoreStyle.Render(text)
}

func styleDimScore(score int) string {
	text := fmt.Sprintf("%d/5", score)
	if score <= 2 {
		return lowScoreStyle.Render(text)
	}
	return scoreStyle.Render(text)
}

// maxScoreVariance returns the largest per-criterion judge score spread.
func maxScoreVariance(r *verdict.AuditReport) int {
	max := 0
	for _, c := range r.Criteria {
		if len(c.JudgeOpinions) == 0 {
			continue
		}
		lo, hi := c.JudgeOpinions[0].Score, c.JudgeOpinions[0].Score
		for _, o := range c.JudgeOpinions[1:] {
			if o.Score < lo {
				lo = o.Score
			}
			if o.Score > hi {
				hi = o.Score
			}
		}
		if hi-lo > max {
			max = hi - lo
		}
	}
	return max
}
