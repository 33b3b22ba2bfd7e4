package tools

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	// Postgres driver registered for database/sql.
	_ "github.com/lib/pq"
)

// Passage is one report excerpt returned by a search.
type Passage struct {
	Text   string  `json:"text"`
	Source string  `json:"source"`
	Score  float64 `json:"score"`
}

// ReportSearcher finds report passages relevant to a query. The doc analyst
// detective uses it to check documentation claims against the external
// report.
type ReportSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]Passage, error)
}

// SplitChunks splits report text into overlapping chunks for indexing.
// Paragraph boundaries are preferred; oversized paragraphs are split hard.
func SplitChunks(text string, chunkSize, overlap int) []string {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = 0
	}

	var chunks []string
	var current strings.Builder
	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, strings.TrimSpace(current.String()))
			current.Reset()
		}
	}

	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if current.Len()+len(para) > chunkSize {
			flush()
		}
		for len(para) > chunkSize {
			chunks = append(chunks, para[:chunkSize])
			para = para[chunkSize-overlap:]
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(para)
	}
	flush()
	return chunks
}

// ---------------------------------------------------------------------------
// Plain-text fallback
// ---------------------------------------------------------------------------

// Compile-time interface check.
var _ ReportSearcher = (*PlainSearcher)(nil)

// PlainSearcher scores chunks by query term overlap. It serves runs without
// a configured vector database, including mock mode.
type PlainSearcher struct {
	chunks []string
	source string
}

// NewPlainSearcher indexes report text in memory.
func NewPlainSearcher(source, text string) *PlainSearcher {
	return &PlainSearcher{
		chunks: SplitChunks(text, 1000, 200),
		source: source,
	}
}

// Search returns the chunks sharing the most query terms, best first.
func (p *PlainSearcher) Search(_ context.Context, query string, limit int) ([]Passage, error) {
	if limit <= 0 {
		limit = 5
	}
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return nil, fmt.Errorf("docsearch: empty query")
	}

	var passages []Passage
	for _, chunk := range p.chunks {
		lower := strings.ToLower(chunk)
		hits := 0
		for _, term := range terms {
			if strings.Contains(lower, term) {
				hits++
			}
		}
		if hits == 0 {
			continue
		}
		passages = append(passages, Passage{
			Text:   chunk,
			Source: p.source,
			Score:  float64(hits) / float64(len(terms)),
		})
	}
	sort.SliceStable(passages, func(i, j int) bool { return passages[i].Score > passages[j].Score })
	if len(passages) > limit {
		passages = passages[:limit]
	}
	return passages, nil
}

// ---------------------------------------------------------------------------
// Postgres / pgvector backend
// ---------------------------------------------------------------------------

// Embedder produces vector embeddings for text batches.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Compile-time interface check.
var _ ReportSearcher = (*PGVectorSearcher)(nil)

// PGVectorSearcher performs semantic search over report chunks stored in
// Postgres with the pgvector extension. It is enabled when a DSN is
// configured; otherwise runs fall back to PlainSearcher.
type PGVectorSearcher struct {
	db       *sql.DB
	embedder Embedder
	dims     int
}

// NewPGVectorSearcher opens the database and ensures the chunk table exists.
func NewPGVectorSearcher(ctx context.Context, dsn string, embedder Embedder, dims int) (*PGVectorSearcher, error) {
	if dims <= 0 {
		dims = 768
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("docsearch: open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("docsearch: ping postgres: %w", err)
	}

	s := &PGVectorSearcher{db: db, embedder: embedder, dims: dims}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *PGVectorSearcher) initSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS report_chunks (
			id UUID PRIMARY KEY,
			source TEXT NOT NULL,
			chunk_index INT NOT NULL,
			content TEXT NOT NULL,
			embedding vector(%d) NOT NULL
		)`, s.dims),
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("docsearch: init schema: %w", err)
		}
	}
	return nil
}

// Ingest embeds report chunks and stores them, replacing any prior chunks
// for the same source.
func (s *PGVectorSearcher) Ingest(ctx context.Context, source string, chunks []string) error {
	if len(chunks) == 0 {
		return fmt.Errorf("docsearch: no chunks to ingest for %s", source)
	}
	embeddings, err := s.embedder.Embed(ctx, chunks)
	if err != nil {
		return fmt.Errorf("docsearch: embed chunks: %w", err)
	}
	if len(embeddings) != len(chunks) {
		return fmt.Errorf("docsearch: embedder returned %d vectors for %d chunks", len(embeddings), len(chunks))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("docsearch: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM report_chunks WHERE source = $1`, source); err != nil {
		return fmt.Errorf("docsearch: clear prior chunks: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO report_chunks (id, source, chunk_index, content, embedding)
		VALUES ($1, $2, $3, $4, $5)
	`)
	if err != nil {
		return fmt.Errorf("docsearch: prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, chunk := range chunks {
		if _, err := stmt.ExecContext(ctx, uuid.New(), source, i, chunk, pgvector.NewVector(embeddings[i])); err != nil {
			return fmt.Errorf("docsearch: insert chunk %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// Search embeds the query and returns the nearest chunks by cosine distance.
func (s *PGVectorSearcher) Search(ctx context.Context, query string, limit int) ([]Passage, error) {
	if limit <= 0 {
		limit = 5
	}
	vectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("docsearch: embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("docsearch: embedder returned %d vectors for query", len(vectors))
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT content, source, 1 - (embedding <=> $1) AS similarity
		FROM report_chunks
		ORDER BY embedding <=> $1
		LIMIT $2
	`, pgvector.NewVector(vectors[0]), limit)
	if err != nil {
		return nil, fmt.Errorf("docsearch: query: %w", err)
	}
	defer rows.Close()

	var passages []Passage
	for rows.Next() {
		var p Passage
		if err := rows.Scan(&p.Text, &p.Source, &p.Score); err != nil {
			return nil, fmt.Errorf("docsearch: scan: %w", err)
		}
		passages = append(passages, p)
	}
	return passages, rows.Err()
}

// Close releases the database handle.
func (s *PGVectorSearcher) Close() error {
	return s.db.Close()
}
