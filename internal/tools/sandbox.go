// Package tools implements the evidence-gathering tools detectives use to
// ground their findings in real repository access: sandboxed file reads,
// git history summaries, tree-sitter structural analysis, and report search.
// The tools are exposed to investigators through an MCP server.
package tools

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// maxReadBytes caps a single file read so a tool result stays prompt-sized.
const maxReadBytes = 128 * 1024

// Sandbox confines file access to a repository root. Every path argument is
// resolved relative to the root and rejected if it escapes it.
type Sandbox struct {
	root string
}

// NewSandbox creates a Sandbox rooted at the given directory.
func NewSandbox(root string) (*Sandbox, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("sandbox: resolve root %s: %w", root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("sandbox: stat root %s: %w", abs, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("sandbox: root %s is not a directory", abs)
	}
	return &Sandbox{root: abs}, nil
}

// Root returns the absolute sandbox root.
func (s *Sandbox) Root() string { return s.root }

// resolve maps a relative path inside the sandbox to an absolute path,
// rejecting traversal outside the root.
func (s *Sandbox) resolve(rel string) (string, error) {
	if filepath.IsAbs(rel) {
		return "", fmt.Errorf("sandbox: absolute path %q not allowed", rel)
	}
	abs := filepath.Join(s.root, filepath.Clean(rel))
	if abs != s.root && !strings.HasPrefix(abs, s.root+string(filepath.Separator)) {
		return "", fmt.Errorf("sandbox: path %q escapes sandbox root", rel)
	}
	return abs, nil
}

// ReadFile returns the content of a file inside the sandbox, truncated to
// maxReadBytes.
func (s *Sandbox) ReadFile(rel string) (string, error) {
	abs, err := s.resolve(rel)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return "", fmt.Errorf("sandbox: read %s: %w", rel, err)
	}
	if len(data) > maxReadBytes {
		data = data[:maxReadBytes]
	}
	return string(data), nil
}

// DirEntry describes one entry returned by ListDir.
type DirEntry struct {
	Name  string `json:"name"`
	IsDir bool   `json:"isDir"`
	Size  int64  `json:"size"`
}

// ListDir lists a directory inside the sandbox, sorted by name.
func (s *Sandbox) ListDir(rel string) ([]DirEntry, error) {
	abs, err := s.resolve(rel)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("sandbox: list %s: %w", rel, err)
	}
	out := make([]DirEntry, 0, len(entries))
	for _, e := range entries {
		var size int64
		if info, err := e.Info(); err == nil {
			size = info.Size()
		}
		out = append(out, DirEntry{Name: e.Name(), IsDir: e.IsDir(), Size: size})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// TextMatch is one line matched by SearchText.
type TextMatch struct {
	Path string `json:"path"`
	Line int    `json:"line"`
	Text string `json:"text"`
}

// skipDirs are directories never descended into during a text search.
var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
	"target":       true,
	"__pycache__":  true,
}

// SearchText walks the sandbox and returns lines containing the query as a
// substring, up to maxResults matches. Binary-looking files are skipped.
func (s *Sandbox) SearchText(query string, maxResults int) ([]TextMatch, error) {
	if query == "" {
		return nil, fmt.Errorf("sandbox: empty search query")
	}
	if maxResults <= 0 {
		maxResults = 50
	}

	var matches []TextMatch
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entries are skipped, not fatal
		}
		if d.IsDir() {
			if skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if len(matches) >= maxResults {
			return filepath.SkipAll
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return nil
		}
		found, err := searchFile(path, rel, query, maxResults-len(matches))
		if err != nil {
			return nil
		}
		matches = append(matches, found...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("sandbox: search: %w", err)
	}
	return matches, nil
}

func searchFile(abs, rel, query string, limit int) ([]TextMatch, error) {
	f, err := os.Open(abs)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var matches []TextMatch
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()
		if strings.ContainsRune(text, 0) {
			return matches, nil // binary file
		}
		if strings.Contains(text, query) {
			matches = append(matches, TextMatch{Path: rel, Line: line, Text: strings.TrimSpace(text)})
			if len(matches) >= limit {
				return matches, nil
			}
		}
	}
	return matches, scanner.Err()
}
