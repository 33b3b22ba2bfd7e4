package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dusk-indust/dueprocess/internal/tools"
)

var serveFlags struct {
	repoPath   string
	reportPath string
	reportDB   string
	addr       string
}

var serveToolsCmd = &cobra.Command{
	Use:   "serve-tools",
	Short: "Serve the evidence-gathering tools over HTTP (MCP)",
	Long: `Starts the evidence MCP server over streamable HTTP so external agents
can investigate the repository with the same tool surface the built-in
detectives use. The server runs until interrupted.`,
	RunE: runServeTools,
}

func init() {
	f := serveToolsCmd.Flags()
	f.StringVar(&serveFlags.repoPath, "repo-path", ".", "Repository root to expose")
	f.StringVar(&serveFlags.reportPath, "report-pdf", "", "Optional external report file to index")
	f.StringVar(&serveFlags.reportDB, "report-db", "", "Postgres DSN for pgvector report search (default: in-memory substring search)")
	f.StringVar(&serveFlags.addr, "addr", ":8321", "Listen address")
}

func runServeTools(cmd *cobra.Command, _ []string) error {
	abs, err := filepath.Abs(serveFlags.repoPath)
	if err != nil {
		return fmt.Errorf("resolve repo path: %w", err)
	}
	if info, err := os.Stat(abs); err != nil || !info.IsDir() {
		return fmt.Errorf("repo path does not exist or is not a directory: %s", abs)
	}

	sandbox, err := tools.NewSandbox(abs)
	if err != nil {
		return fmt.Errorf("open repository sandbox: %w", err)
	}
	searcher, err := buildReportSearcher(cmd.Context(), serveFlags.reportPath, serveFlags.reportDB)
	if err != nil {
		return err
	}
	if closer, ok := searcher.(io.Closer); ok {
		defer closer.Close()
	}

	svc := tools.NewEvidenceService(sandbox, searcher)
	fmt.Fprintf(cmd.OutOrStdout(), "Serving evidence tools for %s on %s\n", abs, serveFlags.addr)
	return tools.RunMCPServer(cmd.Context(), svc, serveFlags.addr)
}
