//go:build cgo

package casefile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	kuzu "github.com/kuzudb/go-kuzu"

	"github.com/dusk-indust/dueprocess/internal/verdict"
)

// KuzuStore implements the Store interface using KuzuDB as the graph backend.
// It requires CGO because the go-kuzu driver wraps KuzuDB's C library.
type KuzuStore struct {
	db   *kuzu.Database
	conn *kuzu.Connection
}

// Compile-time check that KuzuStore satisfies Store.
var _ Store = (*KuzuStore)(nil)

// NewKuzuStore creates a KuzuStore backed by an in-memory KuzuDB instance.
func NewKuzuStore() (*KuzuStore, error) {
	return openKuzu(":memory:")
}

// NewKuzuFileStore creates a KuzuStore backed by a file-based KuzuDB at the
// given directory path. KuzuDB creates the leaf directory itself for new
// databases, so the case file survives across audit runs.
func NewKuzuFileStore(dbPath string) (*KuzuStore, error) {
	// Ensure parent directory exists (KuzuDB creates the leaf directory).
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("kuzu: create parent directory: %w", err)
	}
	return openKuzu(dbPath)
}

func openKuzu(dbPath string) (*KuzuStore, error) {
	cfg := kuzu.DefaultSystemConfig()
	db, err := kuzu.OpenDatabase(dbPath, cfg)
	if err != nil {
		return nil, fmt.Errorf("kuzu: open database: %w", err)
	}
	conn, err := kuzu.OpenConnection(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("kuzu: open connection: %w", err)
	}
	return &KuzuStore{db: db, conn: conn}, nil
}

// Close releases the KuzuDB connection and database.
func (s *KuzuStore) Close() error {
	if s.conn != nil {
		s.conn.Close()
	}
	if s.db != nil {
		s.db.Close()
	}
	return nil
}

// ddlStatements defines the Cypher DDL executed by InitSchema.
// Order matters: node tables must precede relationship tables.
var ddlStatements = []string{
	`CREATE NODE TABLE IF NOT EXISTS Evidence(
		ref STRING,
		goal STRING,
		found BOOLEAN,
		location STRING,
		rationale STRING,
		confidence DOUBLE,
		content STRING,
		PRIMARY KEY(ref)
	)`,
	`CREATE NODE TABLE IF NOT EXISTS Opinion(
		id STRING,
		judge STRING,
		criterion_id STRING,
		score INT64,
		argument STRING,
		PRIMARY KEY(id)
	)`,
	`CREATE NODE TABLE IF NOT EXISTS Criterion(
		id STRING,
		name STRING,
		final_score INT64,
		dissent STRING,
		remediation STRING,
		PRIMARY KEY(id)
	)`,
	`CREATE REL TABLE IF NOT EXISTS CITES(FROM Opinion TO Evidence)`,
	`CREATE REL TABLE IF NOT EXISTS ASSESSED_BY(FROM Criterion TO Opinion)`,
}

// InitSchema creates all node and relationship tables if they do not exist.
func (s *KuzuStore) InitSchema(context.Context) error {
	for _, stmt := range ddlStatements {
		res, err := s.conn.Query(stmt)
		if err != nil {
			return fmt.Errorf("kuzu: init schema: %w", err)
		}
		res.Close()
	}
	return nil
}

// AddEvidence inserts an Evidence node.
func (s *KuzuStore) AddEvidence(_ context.Context, ref verdict.Ref, e verdict.Evidence) error {
	return s.exec(
		`CREATE (e:Evidence {
			ref: $ref,
			goal: $goal,
			found: $found,
			location: $location,
			rationale: $rationale,
			confidence: $confidence,
			content: $content
		})`,
		map[string]any{
			"ref":        string(ref),
			"goal":       e.Goal,
			"found":      e.Found,
			"location":   e.Location,
			"rationale":  e.Rationale,
			"confidence": e.Confidence,
			"content":    e.Content,
		},
	)
}

// AddOpinion inserts an Opinion node.
func (s *KuzuStore) AddOpinion(_ context.Context, o verdict.Opinion) error {
	return s.exec(
		`CREATE (o:Opinion {
			id: $id,
			judge: $judge,
			criterion_id: $cid,
			score: $score,
			argument: $argument
		})`,
		map[string]any{
			"id":       OpinionID(o),
			"judge":    string(o.Judge),
			"cid":      o.CriterionID,
			"score":    int64(o.Score),
			"argument": o.Argument,
		},
	)
}

// AddCriterion inserts a Criterion node.
func (s *KuzuStore) AddCriterion(_ context.Context, c verdict.CriterionResult) error {
	return s.exec(
		`CREATE (c:Criterion {
			id: $id,
			name: $name,
			final_score: $score,
			dissent: $dissent,
			remediation: $remediation
		})`,
		map[string]any{
			"id":          c.DimensionID,
			"name":        c.DimensionName,
			"score":       int64(c.FinalScore),
			"dissent":     c.DissentSummary,
			"remediation": c.Remediation,
		},
	)
}

// AddCitation inserts a CITES edge from an opinion to the evidence it cites.
func (s *KuzuStore) AddCitation(_ context.Context, opinionID string, ref verdict.Ref) error {
	return s.exec(
		`MATCH (o:Opinion {id: $src}), (e:Evidence {ref: $dst})
		 CREATE (o)-[:CITES]->(e)`,
		map[string]any{"src": opinionID, "dst": string(ref)},
	)
}

// AddAssessment inserts an ASSESSED_BY edge from a criterion to an opinion.
func (s *KuzuStore) AddAssessment(_ context.Context, criterionID, opinionID string) error {
	return s.exec(
		`MATCH (c:Criterion {id: $src}), (o:Opinion {id: $dst})
		 CREATE (c)-[:ASSESSED_BY]->(o)`,
		map[string]any{"src": criterionID, "dst": opinionID},
	)
}

// Citations returns the evidence references the opinion cites.
func (s *KuzuStore) Citations(_ context.Context, opinionID string) ([]verdict.Ref, error) {
	rows, err := s.query(
		"MATCH (o:Opinion {id: $id})-[:CITES]->(e:Evidence) RETURN e.ref",
		map[string]any{"id": opinionID},
	)
	if err != nil {
		return nil, err
	}
	out := make([]verdict.Ref, 0, len(rows))
	for _, r := range rows {
		out = append(out, verdict.Ref(toString(r[0])))
	}
	return out, nil
}

// OpinionIDs returns the opinions that assessed the criterion.
func (s *KuzuStore) OpinionIDs(_ context.Context, criterionID string) ([]string, error) {
	rows, err := s.query(
		"MATCH (c:Criterion {id: $id})-[:ASSESSED_BY]->(o:Opinion) RETURN o.id",
		map[string]any{"id": criterionID},
	)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, toString(r[0]))
	}
	return out, nil
}

// Stats counts stored nodes and citation edges.
func (s *KuzuStore) Stats(context.Context) (*CaseStats, error) {
	stats := &CaseStats{}
	counts := []struct {
		cypher string
		dst    *int
	}{
		{"MATCH (e:Evidence) RETURN count(e)", &stats.EvidenceCount},
		{"MATCH (o:Opinion) RETURN count(o)", &stats.OpinionCount},
		{"MATCH (c:Criterion) RETURN count(c)", &stats.CriterionCount},
		{"MATCH (:Opinion)-[r:CITES]->(:Evidence) RETURN count(r)", &stats.CitationCount},
	}
	for _, c := range counts {
		rows, err := s.query(c.cypher, nil)
		if err != nil {
			return nil, err
		}
		if len(rows) > 0 && len(rows[0]) > 0 {
			*c.dst = toInt(rows[0][0])
		}
	}
	return stats, nil
}

// ---------------------------------------------------------------------------
// Cypher helpers
// ---------------------------------------------------------------------------

// exec runs a parameterized Cypher statement and discards the result.
func (s *KuzuStore) exec(cypher string, params map[string]any) error {
	stmt, err := s.conn.Prepare(cypher)
	if err != nil {
		return fmt.Errorf("kuzu: prepare: %w", err)
	}
	defer stmt.Close()

	res, err := s.conn.Execute(stmt, params)
	if err != nil {
		return fmt.Errorf("kuzu: execute: %w", err)
	}
	res.Close()
	return nil
}

// query runs a parameterized Cypher statement and collects all result rows.
// Each row is a []any slice with values in column order.
func (s *KuzuStore) query(cypher string, params map[string]any) ([][]any, error) {
	var res *kuzu.QueryResult
	var err error

	if len(params) == 0 {
		res, err = s.conn.Query(cypher)
	} else {
		var stmt *kuzu.PreparedStatement
		stmt, err = s.conn.Prepare(cypher)
		if err != nil {
			return nil, fmt.Errorf("kuzu: prepare: %w", err)
		}
		defer stmt.Close()
		res, err = s.conn.Execute(stmt, params)
	}
	if err != nil {
		return nil, fmt.Errorf("kuzu: query: %w", err)
	}
	defer res.Close()

	var rows [][]any
	for res.HasNext() {
		tuple, err := res.Next()
		if err != nil {
			return nil, fmt.Errorf("kuzu: next: %w", err)
		}
		vals, err := tuple.GetAsSlice()
		if err != nil {
			return nil, fmt.Errorf("kuzu: row values: %w", err)
		}
		rows = append(rows, vals)
	}
	return rows, nil
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func toInt(v any) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case int:
		return n
	case int32:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}
