// Package config loads project-level audit defaults from dueprocess.yml.
// Flags always win over the config file; the file only fills in values the
// invocation left unset.
package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ProjectConfig holds audit defaults loaded from dueprocess.yml.
type ProjectConfig struct {
	Mode       string `yaml:"mode,omitempty"`
	Model      string `yaml:"model,omitempty"`
	DocsPath   string `yaml:"docsPath,omitempty"`
	RubricPath string `yaml:"rubricPath,omitempty"`
	ReportPath string `yaml:"reportPath,omitempty"`
	ReportDB   string `yaml:"reportDB,omitempty"`
	CaseDB     string `yaml:"caseDB,omitempty"`
	Output     string `yaml:"output,omitempty"`
}

// Load attempts to read dueprocess.yml or dueprocess.yaml from the given
// directory. Returns a zero-value config (not an error) if no config file
// exists.
func Load(dir string) (*ProjectConfig, error) {
	for _, name := range []string{"dueprocess.yml", "dueprocess.yaml"} {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var cfg ProjectConfig
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
		return &cfg, nil
	}
	return &ProjectConfig{}, nil
}
