package main

import (
	"context"
	_ "embed"
	"fmt"
	"io"
	"log"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dusk-indust/dueprocess/internal/agent"
	"github.com/dusk-indust/dueprocess/internal/casefile"
	"github.com/dusk-indust/dueprocess/internal/config"
	"github.com/dusk-indust/dueprocess/internal/detective"
	"github.com/dusk-indust/dueprocess/internal/judge"
	"github.com/dusk-indust/dueprocess/internal/justice"
	"github.com/dusk-indust/dueprocess/internal/llm"
	"github.com/dusk-indust/dueprocess/internal/pipeline"
	"github.com/dusk-indust/dueprocess/internal/report"
	"github.com/dusk-indust/dueprocess/internal/rubric"
	"github.com/dusk-indust/dueprocess/internal/state"
	"github.com/dusk-indust/dueprocess/internal/tools"
	"github.com/dusk-indust/dueprocess/internal/verdict"
)

//go:embed rubric.yaml
var defaultRubricYAML []byte

var auditFlags struct {
	repoURL    string
	repoPath   string
	docsPath   string
	reportPath string
	reportDB   string
	rubricPath string
	mode       string
	model      string
	caseDB     string
	out        string
	jsonOut    bool
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Run the full courtroom audit over a repository",
	Long: `Audit a repository against a weighted rubric.

Usage:
  dueprocess audit --repo-url https://github.com/example/repo
  dueprocess audit --repo-path ./checkout --docs-path ./checkout/docs

Mock mode (the default) replays deterministic model responses and needs no
API key. Real mode talks to an OpenAI-compatible endpoint; set
OPENAI_API_KEY, and OPENAI_BASE_URL for non-default providers.`,
	RunE: runAudit,
}

func init() {
	f := auditCmd.Flags()
	f.StringVar(&auditFlags.repoURL, "repo-url", "", "Repository URL to clone and audit")
	f.StringVar(&auditFlags.repoPath, "repo-path", "", "Path to an already cloned local repository")
	f.StringVar(&auditFlags.docsPath, "docs-path", "docs", "Documentation path inside the repository")
	f.StringVar(&auditFlags.reportPath, "report-pdf", "", "Optional external report file to index for the doc analyst")
	f.StringVar(&auditFlags.reportDB, "report-db", "", "Postgres DSN for pgvector report search (default: in-memory substring search)")
	f.StringVar(&auditFlags.rubricPath, "rubric", "", "Rubric YAML path (default: built-in engineering-practices rubric)")
	f.StringVar(&auditFlags.mode, "mode", "mock", "Model mode: mock (deterministic) or real (provider-backed)")
	f.StringVar(&auditFlags.model, "model", llm.DefaultModel, "Model id for real mode")
	f.StringVar(&auditFlags.caseDB, "case-db", "", "Persist the verdict graph to a KuzuDB case file at this path")
	f.StringVarP(&auditFlags.out, "output", "o", "", "Write the report to this path (.json or markdown)")
	f.BoolVar(&auditFlags.jsonOut, "json", false, "Print the report JSON to stdout")
	auditCmd.MarkFlagsMutuallyExclusive("repo-url", "repo-path")
}

func runAudit(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	applyProjectConfig(cmd)
	runID := uuid.NewString()
	log.Printf("audit run %s starting", runID)

	repoURL, repoPath, cleanup, err := resolveRepository(ctx, auditFlags.repoURL, auditFlags.repoPath)
	if err != nil {
		return err
	}
	defer cleanup()

	r, err := loadRubric(auditFlags.rubricPath)
	if err != nil {
		return err
	}

	searcher, err := buildReportSearcher(ctx, auditFlags.reportPath, auditFlags.reportDB)
	if err != nil {
		return err
	}
	if closer, ok := searcher.(io.Closer); ok {
		defer closer.Close()
	}

	sandbox, err := tools.NewSandbox(repoPath)
	if err != nil {
		return fmt.Errorf("open repository sandbox: %w", err)
	}
	svc := tools.NewEvidenceService(sandbox, searcher)
	session, err := tools.Connect(ctx, svc)
	if err != nil {
		return fmt.Errorf("connect evidence tools: %w", err)
	}
	toolSession := agent.NewMCPSession(session)
	defer toolSession.Close()

	st := state.New(repoURL, repoPath, auditFlags.docsPath, auditFlags.reportPath, r)

	g, err := buildGraph(auditFlags.mode, auditFlags.model, r, toolSession)
	if err != nil {
		return err
	}

	if err := g.Run(ctx, st); err != nil {
		if st.Diagnostic != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "Audit failed: %s\n", st.Diagnostic)
		}
		return fmt.Errorf("audit: %w", err)
	}

	final := st.FinalReport
	fmt.Fprintln(cmd.OutOrStdout(), report.Terminal(final))

	if auditFlags.jsonOut {
		data, err := report.JSON(final)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), string(data))
	}
	if auditFlags.out != "" {
		if err := report.WriteFile(final, auditFlags.out); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Report written to: %s\n", auditFlags.out)
	}
	if auditFlags.caseDB != "" {
		if err := persistCaseFile(ctx, auditFlags.caseDB, st); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Case file written to: %s\n", auditFlags.caseDB)
	}
	return nil
}

// applyProjectConfig fills unset flags from dueprocess.yml in the working
// directory. Explicit flags always win.
func applyProjectConfig(cmd *cobra.Command) {
	cwd, err := os.Getwd()
	if err != nil {
		return
	}
	cfg, err := config.Load(cwd)
	if err != nil {
		log.Printf("ignoring malformed dueprocess.yml: %v", err)
		return
	}

	flags := cmd.Flags()
	apply := func(flag string, dst *string, val string) {
		if val != "" && !flags.Changed(flag) {
			*dst = val
		}
	}
	apply("mode", &auditFlags.mode, cfg.Mode)
	apply("model", &auditFlags.model, cfg.Model)
	apply("docs-path", &auditFlags.docsPath, cfg.DocsPath)
	apply("rubric", &auditFlags.rubricPath, cfg.RubricPath)
	apply("report-pdf", &auditFlags.reportPath, cfg.ReportPath)
	apply("report-db", &auditFlags.reportDB, cfg.ReportDB)
	apply("case-db", &auditFlags.caseDB, cfg.CaseDB)
	apply("output", &auditFlags.out, cfg.Output)
}

// resolveRepository returns the repo URL, a local working path, and a cleanup
// function. Local paths are validated in place; URLs are cloned into a
// temporary directory that cleanup removes.
func resolveRepository(ctx context.Context, repoURL, repoPath string) (string, string, func(), error) {
	noop := func() {}
	if repoPath != "" {
		abs, err := filepath.Abs(repoPath)
		if err != nil {
			return "", "", noop, fmt.Errorf("resolve repo path: %w", err)
		}
		info, err := os.Stat(abs)
		if err != nil || !info.IsDir() {
			return "", "", noop, fmt.Errorf("local repo path does not exist or is not a directory: %s", abs)
		}
		return "local:" + abs, abs, noop, nil
	}
	if repoURL == "" {
		return "", "", noop, fmt.Errorf("either --repo-url or --repo-path is required")
	}

	tempRoot, err := os.MkdirTemp("", "dueprocess-repo-")
	if err != nil {
		return "", "", noop, fmt.Errorf("create clone directory: %w", err)
	}
	cleanup := func() { _ = os.RemoveAll(tempRoot) }

	target := filepath.Join(tempRoot, repoNameFromURL(repoURL))
	clone := exec.CommandContext(ctx, "git", "clone", "--depth", "50", repoURL, target)
	if out, err := clone.CombinedOutput(); err != nil {
		cleanup()
		return "", "", noop, fmt.Errorf("clone %s: %w\n%s", repoURL, err, strings.TrimSpace(string(out)))
	}
	return repoURL, target, cleanup, nil
}

// repoNameFromURL extracts a directory name from a repository URL.
func repoNameFromURL(repoURL string) string {
	path := repoURL
	if u, err := url.Parse(repoURL); err == nil && u.Path != "" {
		path = u.Path
	}
	name := filepath.Base(strings.TrimRight(path, "/"))
	name = strings.TrimSuffix(name, ".git")
	if name == "" || name == "." || name == "/" {
		return "repo"
	}
	return name
}

func loadRubric(path string) (*rubric.Rubric, error) {
	if path != "" {
		return rubric.Load(path)
	}
	return rubric.Parse(defaultRubricYAML)
}

// buildReportSearcher indexes the external report for the search_report tool.
// Without a report path the tool is simply not registered. With a Postgres
// DSN the report is embedded into a pgvector index; otherwise a substring
// searcher over the raw text is used.
func buildReportSearcher(ctx context.Context, path, dsn string) (tools.ReportSearcher, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read report %s: %w", path, err)
	}
	source := filepath.Base(path)
	if dsn == "" {
		return tools.NewPlainSearcher(source, string(raw)), nil
	}

	embedder, err := llm.NewOpenAIClient("")
	if err != nil {
		return nil, fmt.Errorf("report database embeddings: %w", err)
	}
	searcher, err := tools.NewPGVectorSearcher(ctx, dsn, embedder, llm.DefaultEmbeddingDims)
	if err != nil {
		return nil, err
	}
	if err := searcher.Ingest(ctx, source, tools.SplitChunks(string(raw), 1000, 200)); err != nil {
		searcher.Close()
		return nil, fmt.Errorf("index report: %w", err)
	}
	return searcher, nil
}

// buildGraph assembles the full audit graph for the selected mode.
func buildGraph(mode, model string, r *rubric.Rubric, session agent.ToolSession) (*pipeline.Graph, error) {
	var detectives, judges []pipeline.Node
	var chief pipeline.Node

	switch mode {
	case "mock":
		script := newMockScript(r)
		for _, profile := range []detective.Profile{
			detective.RepoInvestigator(), detective.DocAnalyst(), detective.VisionInspector(),
		} {
			inv := agent.NewLoopInvestigator(script.investigatorModel(profile.Name), session)
			stage := detective.New(profile, inv, script.extractorModel(profile.Name))
			detectives = append(detectives, pipeline.Node{Name: stage.Name(), Run: stage.Run})
		}
		for _, role := range verdict.Roles {
			stage, err := judge.New(role, script.judgeModel(role))
			if err != nil {
				return nil, err
			}
			judges = append(judges, pipeline.Node{Name: strings.ToLower(string(role)), Run: stage.Run})
		}
		chiefStage := justice.New(script.chiefModel())
		chief = pipeline.Node{Name: "chief_justice", Run: chiefStage.Run}

	case "real":
		client, err := llm.NewOpenAIClient(model)
		if err != nil {
			return nil, err
		}
		// One run-scoped cache shared by every stage.
		cached := llm.NewCachedClient(client)
		for _, profile := range []detective.Profile{
			detective.RepoInvestigator(), detective.DocAnalyst(), detective.VisionInspector(),
		} {
			inv := agent.NewLoopInvestigator(cached, session)
			stage := detective.New(profile, inv, cached)
			detectives = append(detectives, pipeline.Node{Name: stage.Name(), Run: stage.Run})
		}
		for _, role := range verdict.Roles {
			stage, err := judge.New(role, cached)
			if err != nil {
				return nil, err
			}
			judges = append(judges, pipeline.Node{Name: strings.ToLower(string(role)), Run: stage.Run})
		}
		chiefStage := justice.New(cached)
		chief = pipeline.Node{Name: "chief_justice", Run: chiefStage.Run}

	default:
		return nil, fmt.Errorf("unknown mode: %s (available: mock, real)", mode)
	}

	return pipeline.New(detectives, judges, chief, pipeline.WithTracer(pipeline.NewLogTracer()))
}

// persistCaseFile writes the verdict graph to a KuzuDB case file.
func persistCaseFile(ctx context.Context, path string, st *state.State) error {
	store, err := casefile.NewKuzuFileStore(path)
	if err != nil {
		return fmt.Errorf("open case file: %w", err)
	}
	defer store.Close()
	if err := casefile.PersistRun(ctx, store, st); err != nil {
		return fmt.Errorf("persist case file: %w", err)
	}
	return nil
}
