// Package state holds the pipeline's shared accumulator and the reducer that
// merges concurrent partial updates into it. Nodes never mutate the running
// state in place: each node returns an Update, and the graph executor applies
// it through Merge. This is the only write path, which is what keeps the
// parallel detective and judge branches race-free.
package state

import (
	"fmt"

	"github.com/dusk-indust/dueprocess/internal/rubric"
	"github.com/dusk-indust/dueprocess/internal/verdict"
)

// Group identifies a detective evidence group. The set is closed and
// validated on merge so a typo can never create an orphan group invisible
// to synthesis.
type Group string

const (
	// GroupRepositoryFacts is produced by the repo investigator.
	GroupRepositoryFacts Group = "repository_facts"
	// GroupClaimSet is produced by the doc analyst.
	GroupClaimSet Group = "claim_set"
	// GroupVisualArtifacts is produced by the vision inspector.
	GroupVisualArtifacts Group = "visual_artifacts"
)

// Groups lists every known evidence group.
var Groups = []Group{GroupRepositoryFacts, GroupClaimSet, GroupVisualArtifacts}

// Valid reports whether the group is one of the closed set.
func (g Group) Valid() bool {
	switch g {
	case GroupRepositoryFacts, GroupClaimSet, GroupVisualArtifacts:
		return true
	}
	return false
}

// State is the accumulator threading through the whole audit graph.
type State struct {
	RepoURL    string
	RepoPath   string
	DocPath    string
	ReportPath string

	// Rubric inputs, fixed before the pipeline starts.
	Dimensions     []rubric.Dimension
	Metadata       rubric.Metadata
	SynthesisRules rubric.SynthesisRules

	// Evidences maps each detective group to the evidence it collected.
	// Populated exactly once per detective; never cleared or rewritten.
	Evidences map[Group][]verdict.Evidence

	// Opinions accumulates every judge's per-dimension opinions in branch
	// completion order. Order is not semantically significant; consumers
	// group by criterion id.
	Opinions []verdict.Opinion

	// Breakdown counts evidence per group, set by the aggregation node.
	Breakdown map[Group]int

	// FinalReport is write-once, set only by the chief justice node.
	FinalReport *verdict.AuditReport

	// Diagnostic carries the failure message when the run is routed to the
	// error handler.
	Diagnostic string
}

// New creates a State with empty evidence and opinion accumulators.
func New(repoURL, repoPath, docPath, reportPath string, r *rubric.Rubric) *State {
	return &State{
		RepoURL:        repoURL,
		RepoPath:       repoPath,
		DocPath:        docPath,
		ReportPath:     reportPath,
		Dimensions:     r.Dimensions,
		Metadata:       r.Metadata,
		SynthesisRules: r.SynthesisRules,
		Evidences:      make(map[Group][]verdict.Evidence),
		Breakdown:      make(map[Group]int),
	}
}

// EvidenceGroups returns the evidence map keyed by plain strings, the shape
// consumed by catalog flattening.
func (s *State) EvidenceGroups() map[string][]verdict.Evidence {
	out := make(map[string][]verdict.Evidence, len(s.Evidences))
	for g, list := range s.Evidences {
		out[string(g)] = list
	}
	return out
}

// TotalEvidence returns the number of evidence records across all groups.
func (s *State) TotalEvidence() int {
	total := 0
	for _, list := range s.Evidences {
		total += len(list)
	}
	return total
}

// Snapshot returns a copy of the state safe to hand to a concurrently
// running node. Slice and map containers are copied; the element values are
// immutable by contract.
func (s *State) Snapshot() *State {
	cp := *s
	cp.Evidences = make(map[Group][]verdict.Evidence, len(s.Evidences))
	for g, list := range s.Evidences {
		cp.Evidences[g] = append([]verdict.Evidence(nil), list...)
	}
	cp.Opinions = append([]verdict.Opinion(nil), s.Opinions...)
	cp.Breakdown = make(map[Group]int, len(s.Breakdown))
	for g, n := range s.Breakdown {
		cp.Breakdown[g] = n
	}
	return &cp
}

// Update is a partial state update returned by a single node. Zero-value
// fields are no-ops under Merge.
type Update struct {
	Evidences   map[Group][]verdict.Evidence
	Opinions    []verdict.Opinion
	Breakdown   map[Group]int
	FinalReport *verdict.AuditReport
	Diagnostic  string
}

// Merge applies one partial update to the running state.
//
// Evidences merge by deep union with list-append-per-key: updates to
// different keys never conflict, and updates to the same key concatenate in
// arrival order. Opinions concatenate append-only. The reducer is safe to
// apply incrementally as each sibling branch completes; only the within-key
// arrival order is non-deterministic across runs.
func (s *State) Merge(u Update) error {
	for g, list := range u.Evidences {
		if !g.Valid() {
			return fmt.Errorf("state: unknown evidence group %q", g)
		}
		s.Evidences[g] = append(s.Evidences[g], list...)
	}
	s.Opinions = append(s.Opinions, u.Opinions...)
	for g, n := range u.Breakdown {
		if !g.Valid() {
			return fmt.Errorf("state: unknown evidence group %q in breakdown", g)
		}
		s.Breakdown[g] = n
	}
	if u.FinalReport != nil {
		if s.FinalReport != nil {
			return fmt.Errorf("state: final report is write-once")
		}
		s.FinalReport = u.FinalReport
	}
	if u.Diagnostic != "" {
		s.Diagnostic = u.Diagnostic
	}
	return nil
}
