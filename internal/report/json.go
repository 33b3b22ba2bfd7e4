package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dusk-indust/dueprocess/internal/verdict"
)

// Envelope is the top-level JSON export structure.
type Envelope struct {
	ExportedAt string               `json:"exportedAt"`
	Report     *verdict.AuditReport `json:"report"`
}

// JSON renders the report as an indented JSON envelope with an export
// timestamp.
func JSON(r *verdict.AuditReport) ([]byte, error) {
	env := Envelope{
		ExportedAt: time.Now().UTC().Format(time.RFC3339),
		Report:     r,
	}
	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("report: marshal: %w", err)
	}
	return append(data, '\n'), nil
}

// WriteFile renders the report to path, choosing the format from the file
// extension: ".json" gets the JSON envelope, everything else markdown.
func WriteFile(r *verdict.AuditReport, path string) error {
	var data []byte
	if filepath.Ext(path) == ".json" {
		var err error
		data, err = JSON(r)
		if err != nil {
			return err
		}
	} else {
		data = []byte(Markdown(r))
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("report: create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("report: write %s: %w", path, err)
	}
	return nil
}
