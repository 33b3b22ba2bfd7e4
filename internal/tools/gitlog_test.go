package tools

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGitLog(t *testing.T) {
	out := strings.Join([]string{
		"abc123\x1fAlice\x1f2026-01-10\x1ffix: handle nil token",
		"def456\x1fBob\x1f2026-01-09\x1ffeat: add refresh endpoint",
		"789abc\x1fAlice\x1f2026-01-08\x1fchore: bump deps",
	}, "\n")

	summary := parseGitLog(out)
	require.Len(t, summary.Commits, 3)
	assert.Equal(t, 3, summary.TotalListed)
	assert.Equal(t, "abc123", summary.Commits[0].Hash)
	assert.Equal(t, "fix: handle nil token", summary.Commits[0].Subject)
	assert.Equal(t, 2, summary.AuthorCounts["Alice"])
	assert.Equal(t, 1, summary.AuthorCounts["Bob"])
}

func TestParseGitLog_SkipsMalformedLines(t *testing.T) {
	out := "abc123\x1fAlice\x1f2026-01-10\x1fok\n\nnot a commit line\n"

	summary := parseGitLog(out)
	require.Len(t, summary.Commits, 1)
	assert.Equal(t, "ok", summary.Commits[0].Subject)
}

func TestParseGitLog_SubjectKeepsSeparatorTail(t *testing.T) {
	// A subject containing the separator stays intact because SplitN caps
	// at four fields.
	out := "abc\x1fAlice\x1f2026-01-10\x1fpart one\x1fpart two"

	summary := parseGitLog(out)
	require.Len(t, summary.Commits, 1)
	assert.Equal(t, "part one\x1fpart two", summary.Commits[0].Subject)
}
