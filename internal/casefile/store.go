// Package casefile persists a completed audit run as a small verdict graph:
// Evidence, Opinion, and Criterion nodes connected by CITES (opinion cites
// evidence) and ASSESSED_BY (criterion assessed by opinion) edges. The graph
// makes citation trails queryable after the run: which evidence an opinion
// leaned on, and which opinions produced a criterion's score.
package casefile

import (
	"context"
	"fmt"
	"io"

	"github.com/dusk-indust/dueprocess/internal/state"
	"github.com/dusk-indust/dueprocess/internal/verdict"
)

// Store is the interface for the case file backend.
// Implementations: KuzuStore (persistent, cgo), MemStore (in-memory).
type Store interface {
	io.Closer

	// InitSchema is called once before any data is inserted.
	InitSchema(ctx context.Context) error

	// Write operations.
	AddEvidence(ctx context.Context, ref verdict.Ref, e verdict.Evidence) error
	AddOpinion(ctx context.Context, o verdict.Opinion) error
	AddCriterion(ctx context.Context, c verdict.CriterionResult) error
	AddCitation(ctx context.Context, opinionID string, ref verdict.Ref) error
	AddAssessment(ctx context.Context, criterionID, opinionID string) error

	// Read operations.
	Citations(ctx context.Context, opinionID string) ([]verdict.Ref, error)
	OpinionIDs(ctx context.Context, criterionID string) ([]string, error)
	Stats(ctx context.Context) (*CaseStats, error)
}

// CaseStats summarizes the stored case file.
type CaseStats struct {
	EvidenceCount  int `json:"evidenceCount"`
	OpinionCount   int `json:"opinionCount"`
	CriterionCount int `json:"criterionCount"`
	CitationCount  int `json:"citationCount"`
}

// OpinionID builds the stable node id for an opinion: "<judge>/<criterion>".
// A judge renders at most one opinion per criterion, so the pair is unique.
func OpinionID(o verdict.Opinion) string {
	return string(o.Judge) + "/" + o.CriterionID
}

// PersistRun writes a completed run's evidence, opinions, and synthesized
// criteria into the store, including the citation and assessment edges.
func PersistRun(ctx context.Context, store Store, st *state.State) error {
	if st.FinalReport == nil {
		return fmt.Errorf("casefile: run has no final report to persist")
	}
	if err := store.InitSchema(ctx); err != nil {
		return err
	}

	for _, entry := range verdict.FlattenEvidence(st.EvidenceGroups()) {
		if err := store.AddEvidence(ctx, entry.Ref, entry.Evidence); err != nil {
			return err
		}
	}

	for _, o := range st.Opinions {
		if err := store.AddOpinion(ctx, o); err != nil {
			return err
		}
		for _, ref := range o.CitedEvidence {
			if err := store.AddCitation(ctx, OpinionID(o), ref); err != nil {
				return err
			}
		}
	}

	for _, c := range st.FinalReport.Criteria {
		if err := store.AddCriterion(ctx, c); err != nil {
			return err
		}
		for _, o := range c.JudgeOpinions {
			if err := store.AddAssessment(ctx, c.DimensionID, OpinionID(o)); err != nil {
				return err
			}
		}
	}
	return nil
}
