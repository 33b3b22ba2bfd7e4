package casefile

import (
	"context"
	"sync"

	"github.com/dusk-indust/dueprocess/internal/verdict"
)

// Compile-time assertion: *MemStore satisfies Store.
var _ Store = (*MemStore)(nil)

// MemStore implements Store using Go maps. Thread-safe via sync.RWMutex.
type MemStore struct {
	mu          sync.RWMutex
	evidence    map[verdict.Ref]verdict.Evidence
	opinions    map[string]verdict.Opinion
	criteria    map[string]verdict.CriterionResult
	citations   map[string][]verdict.Ref
	assessments map[string][]string
}

// NewMemStore returns an initialized MemStore ready for use.
func NewMemStore() *MemStore {
	return &MemStore{
		evidence:    make(map[verdict.Ref]verdict.Evidence),
		opinions:    make(map[string]verdict.Opinion),
		criteria:    make(map[string]verdict.CriterionResult),
		citations:   make(map[string][]verdict.Ref),
		assessments: make(map[string][]string),
	}
}

// InitSchema is a no-op for the in-memory store.
func (m *MemStore) InitSchema(context.Context) error { return nil }

// AddEvidence stores an evidence node keyed by its reference.
func (m *MemStore) AddEvidence(_ context.Context, ref verdict.Ref, e verdict.Evidence) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evidence[ref] = e
	return nil
}

// AddOpinion stores an opinion node keyed by its OpinionID.
func (m *MemStore) AddOpinion(_ context.Context, o verdict.Opinion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opinions[OpinionID(o)] = o
	return nil
}

// AddCriterion stores a criterion node keyed by its dimension id.
func (m *MemStore) AddCriterion(_ context.Context, c verdict.CriterionResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.criteria[c.DimensionID] = c
	return nil
}

// AddCitation records a CITES edge.
func (m *MemStore) AddCitation(_ context.Context, opinionID string, ref verdict.Ref) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.citations[opinionID] = append(m.citations[opinionID], ref)
	return nil
}

// AddAssessment records an ASSESSED_BY edge.
func (m *MemStore) AddAssessment(_ context.Context, criterionID, opinionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assessments[criterionID] = append(m.assessments[criterionID], opinionID)
	return nil
}

// Citations returns the evidence references cited by the opinion.
func (m *MemStore) Citations(_ context.Context, opinionID string) ([]verdict.Ref, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]verdict.Ref(nil), m.citations[opinionID]...), nil
}

// OpinionIDs returns the opinions that assessed the criterion.
func (m *MemStore) OpinionIDs(_ context.Context, criterionID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.assessments[criterionID]...), nil
}

// Stats counts the stored nodes and citation edges.
func (m *MemStore) Stats(context.Context) (*CaseStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	citations := 0
	for _, refs := range m.citations {
		citations += len(refs)
	}
	return &CaseStats{
		EvidenceCount:  len(m.evidence),
		OpinionCount:   len(m.opinions),
		CriterionCount: len(m.criteria),
		CitationCount:  citations,
	}, nil
}

// Close is a no-op for the in-memory store.
func (m *MemStore) Close() error { return nil }
