package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFile(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, &ProjectConfig{}, cfg)
}

func TestLoad_YML(t *testing.T) {
	dir := t.TempDir()
	content := "mode: real\nmodel: gpt-4.1\ndocsPath: documentation\ncaseDB: .dueprocess/case.kuzu\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dueprocess.yml"), []byte(content), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "real", cfg.Mode)
	assert.Equal(t, "gpt-4.1", cfg.Model)
	assert.Equal(t, "documentation", cfg.DocsPath)
	assert.Equal(t, ".dueprocess/case.kuzu", cfg.CaseDB)
}

func TestLoad_YamlFallback(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dueprocess.yaml"), []byte("mode: mock\n"), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "mock", cfg.Mode)
}

func TestLoad_MalformedYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dueprocess.yml"), []byte("mode: [unclosed"), 0o644))

	_, err := Load(dir)
	require.Error(t, err)
}
