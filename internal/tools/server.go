package tools

import (
	"context"
	"fmt"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// version is set by the linker at build time.
var version = "dev"

// --- MCP Tool Input Types ---
// These structs define the JSON schema for each MCP tool's input.
// The MCP Go SDK auto-generates JSON schemas from struct tags.

// ReadFileInput is the input for the read_file MCP tool.
type ReadFileInput struct {
	Path string `json:"path" jsonschema:"path of the file to read, relative to the repository root"`
}

// ReadFileOutput is the result of the read_file MCP tool.
type ReadFileOutput struct {
	Content string `json:"content"`
}

// ListDirInput is the input for the list_dir MCP tool.
type ListDirInput struct {
	Path string `json:"path,omitempty" jsonschema:"directory to list, relative to the repository root (default: the root itself)"`
}

// ListDirOutput is the result of the list_dir MCP tool.
type ListDirOutput struct {
	Entries []DirEntry `json:"entries"`
}

// SearchTextInput is the input for the search_text MCP tool.
type SearchTextInput struct {
	Query      string `json:"query" jsonschema:"substring to search for across repository files"`
	MaxResults int    `json:"maxResults,omitempty" jsonschema:"maximum number of matching lines (default: 50)"`
}

// SearchTextOutput is the result of the search_text MCP tool.
type SearchTextOutput struct {
	Matches []TextMatch `json:"matches"`
	Total   int         `json:"total"`
}

// GitLogInput is the input for the git_log MCP tool.
type GitLogInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"maximum number of commits to list (default: 50)"`
}

// GitLogOutput is the result of the git_log MCP tool.
type GitLogOutput struct {
	Summary GitLogSummary `json:"summary"`
}

// AnalyzeStructureInput is the input for the analyze_structure MCP tool.
type AnalyzeStructureInput struct {
	Path string `json:"path" jsonschema:"source file to analyze, relative to the repository root. Supported: go, python, typescript, rust"`
}

// AnalyzeStructureOutput is the result of the analyze_structure MCP tool.
type AnalyzeStructureOutput struct {
	Report StructureReport `json:"report"`
}

// SearchReportInput is the input for the search_report MCP tool.
type SearchReportInput struct {
	Query string `json:"query" jsonschema:"claim or topic to look up in the external report"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of passages (default: 5)"`
}

// SearchReportOutput is the result of the search_report MCP tool.
type SearchReportOutput struct {
	Passages []Passage `json:"passages"`
}

// ---------------------------------------------------------------------------
// Service
// ---------------------------------------------------------------------------

// EvidenceService holds the state shared by the evidence MCP tools: the
// repository sandbox, the structure analyzer, and an optional report
// searcher. A nil searcher disables search_report.
type EvidenceService struct {
	sandbox  *Sandbox
	analyzer *StructureAnalyzer
	searcher ReportSearcher
}

// NewEvidenceService creates the service for one audit run.
func NewEvidenceService(sandbox *Sandbox, searcher ReportSearcher) *EvidenceService {
	return &EvidenceService{
		sandbox:  sandbox,
		analyzer: NewStructureAnalyzer(),
		searcher: searcher,
	}
}

// ReadFile returns the content of a repository file.
func (s *EvidenceService) ReadFile(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input ReadFileInput,
) (*mcp.CallToolResult, ReadFileOutput, error) {
	if input.Path == "" {
		return nil, ReadFileOutput{}, fmt.Errorf("path is required")
	}
	content, err := s.sandbox.ReadFile(input.Path)
	if err != nil {
		return nil, ReadFileOutput{}, err
	}
	return nil, ReadFileOutput{Content: content}, nil
}

// ListDir lists a repository directory.
func (s *EvidenceService) ListDir(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input ListDirInput,
) (*mcp.CallToolResult, ListDirOutput, error) {
	path := input.Path
	if path == "" {
		path = "."
	}
	entries, err := s.sandbox.ListDir(path)
	if err != nil {
		return nil, ListDirOutput{}, err
	}
	return nil, ListDirOutput{Entries: entries}, nil
}

// SearchText searches repository files for a substring.
func (s *EvidenceService) SearchText(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input SearchTextInput,
) (*mcp.CallToolResult, SearchTextOutput, error) {
	matches, err := s.sandbox.SearchText(input.Query, input.MaxResults)
	if err != nil {
		return nil, SearchTextOutput{}, err
	}
	return nil, SearchTextOutput{Matches: matches, Total: len(matches)}, nil
}

// GitLog summarizes the repository's commit history.
func (s *EvidenceService) GitLog(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input GitLogInput,
) (*mcp.CallToolResult, GitLogOutput, error) {
	summary, err := GitLog(ctx, s.sandbox.Root(), input.Limit)
	if err != nil {
		return nil, GitLogOutput{}, err
	}
	return nil, GitLogOutput{Summary: *summary}, nil
}

// AnalyzeStructure parses one source file and reports its structure.
func (s *EvidenceService) AnalyzeStructure(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input AnalyzeStructureInput,
) (*mcp.CallToolResult, AnalyzeStructureOutput, error) {
	if input.Path == "" {
		return nil, AnalyzeStructureOutput{}, fmt.Errorf("path is required")
	}
	content, err := s.sandbox.ReadFile(input.Path)
	if err != nil {
		return nil, AnalyzeStructureOutput{}, err
	}
	report, err := s.analyzer.Analyze(input.Path, []byte(content))
	if err != nil {
		return nil, AnalyzeStructureOutput{}, err
	}
	return nil, AnalyzeStructureOutput{Report: *report}, nil
}

// SearchReport looks up passages in the external report.
func (s *EvidenceService) SearchReport(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchReportInput,
) (*mcp.CallToolResult, SearchReportOutput, error) {
	if s.searcher == nil {
		return nil, SearchReportOutput{}, fmt.Errorf("no report loaded for this run")
	}
	passages, err := s.searcher.Search(ctx, input.Query, input.Limit)
	if err != nil {
		return nil, SearchReportOutput{}, err
	}
	return nil, SearchReportOutput{Passages: passages}, nil
}

// ---------------------------------------------------------------------------
// Server
// ---------------------------------------------------------------------------

// NewEvidenceMCPServer creates an MCP server with all evidence tools
// registered. search_report is only registered when a report searcher is
// configured, so detectives never see a tool that cannot succeed.
func NewEvidenceMCPServer(svc *EvidenceService) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "dueprocess-evidence",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "read_file",
		Description: "Read a file from the repository under audit. Paths are relative to the repository root; reads are truncated to 128KB.",
	}, svc.ReadFile)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_dir",
		Description: "List a directory in the repository under audit, sorted by name.",
	}, svc.ListDir)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_text",
		Description: "Search repository files for lines containing a substring. Skips binary files and dependency directories.",
	}, svc.SearchText)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "git_log",
		Description: "Summarize the repository's git history: recent commits, newest first, with per-author commit counts.",
	}, svc.GitLog)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "analyze_structure",
		Description: "Parse one source file with tree-sitter and report its structure: functions with line ranges and branch complexity, type counts, and comment density.",
	}, svc.AnalyzeStructure)

	if svc.searcher != nil {
		mcp.AddTool(server, &mcp.Tool{
			Name:        "search_report",
			Description: "Search the external report for passages relevant to a claim or topic.",
		}, svc.SearchReport)
	}

	return server
}

// Connect wires the evidence server to an in-process MCP client over
// in-memory transports and returns the connected client session.
func Connect(ctx context.Context, svc *EvidenceService) (*mcp.ClientSession, error) {
	server := NewEvidenceMCPServer(svc)
	clientTransport, serverTransport := mcp.NewInMemoryTransports()

	if _, err := server.Connect(ctx, serverTransport, nil); err != nil {
		return nil, fmt.Errorf("tools: connect server: %w", err)
	}

	client := mcp.NewClient(&mcp.Implementation{
		Name:    "dueprocess-investigator",
		Version: version,
	}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		return nil, fmt.Errorf("tools: connect client: %w", err)
	}
	return session, nil
}

// RunMCPServer starts an HTTP server exposing the evidence MCP tools.
func RunMCPServer(ctx context.Context, svc *EvidenceService, addr string) error {
	server := NewEvidenceMCPServer(svc)

	handler := mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server { return server },
		nil,
	)

	httpServer := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// Shutdown gracefully when context is cancelled.
	go func() {
		<-ctx.Done()
		httpServer.Shutdown(context.Background())
	}()

	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
