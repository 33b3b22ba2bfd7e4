package tools

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Commit is one parsed git log entry.
type Commit struct {
	Hash    string `json:"hash"`
	Author  string `json:"author"`
	Date    string `json:"date"`
	Subject string `json:"subject"`
}

// GitLogSummary summarizes a repository's recent history.
type GitLogSummary struct {
	Commits      []Commit       `json:"commits"`
	TotalListed  int            `json:"totalListed"`
	AuthorCounts map[string]int `json:"authorCounts"`
}

// logFieldSep separates the pretty-format fields; unit separator cannot
// appear in commit metadata.
const logFieldSep = "\x1f"

// GitLog runs `git log` in the given repository and returns structured
// commit summaries, newest first, capped at limit entries.
func GitLog(ctx context.Context, repoPath string, limit int) (*GitLogSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	format := strings.Join([]string{"%H", "%an", "%ad", "%s"}, logFieldSep)
	cmd := exec.CommandContext(ctx, "git", "-C", repoPath, "log",
		"--pretty=format:"+format, "--date=short", "-n", fmt.Sprint(limit))

	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("gitlog: %s: %s", repoPath, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, fmt.Errorf("gitlog: %s: %w", repoPath, err)
	}

	return parseGitLog(string(out)), nil
}

func parseGitLog(out string) *GitLogSummary {
	summary := &GitLogSummary{AuthorCounts: make(map[string]int)}
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.SplitN(line, logFieldSep, 4)
		if len(fields) != 4 {
			continue
		}
		c := Commit{Hash: fields[0], Author: fields[1], Date: fields[2], Subject: fields[3]}
		summary.Commits = append(summary.Commits, c)
		summary.AuthorCounts[c.Author]++
	}
	summary.TotalListed = len(summary.Commits)
	return summary
}
