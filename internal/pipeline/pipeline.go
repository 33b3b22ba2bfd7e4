// Package pipeline implements the audit graph executor: a single-pass DAG of
// fan-out/fan-in stages with conditional error routing. Nodes are pure
// functions from a state snapshot to a partial update; the executor owns all
// concurrency and applies every update through the state reducer, so node
// logic never touches shared mutable structures.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/dusk-indust/dueprocess/internal/state"
)

// Node is one executable graph node.
type Node struct {
	Name string
	Run  func(ctx context.Context, snap *state.State) (state.Update, error)
}

// AggregationFailure reports that the detective phase produced zero evidence
// in total. It is routed to the error handler rather than crashing the run.
type AggregationFailure struct {
	Reason string
}

// Error implements the error interface.
func (e *AggregationFailure) Error() string {
	return "aggregation failed: " + e.Reason
}

// Graph is the fixed audit topology:
//
//	START → detectives (parallel) → aggregation →(continue|error)
//	      → judges (parallel) → chief justice →(end|error)
//	      → error handler
//
// There are no cycles and no graph-level retries; retries exist only inside
// the judge stage's validation loop.
type Graph struct {
	detectives []Node
	judges     []Node
	chief      Node
	tracer     Tracer
}

// Option configures a Graph.
type Option func(*Graph)

// WithTracer instruments node execution with the given tracer.
func WithTracer(t Tracer) Option {
	return func(g *Graph) { g.tracer = t }
}

// New creates the audit graph from its stage nodes.
func New(detectives []Node, judges []Node, chief Node, opts ...Option) (*Graph, error) {
	if len(detectives) == 0 {
		return nil, fmt.Errorf("pipeline: at least one detective node required")
	}
	if len(judges) == 0 {
		return nil, fmt.Errorf("pipeline: at least one judge node required")
	}
	if chief.Run == nil {
		return nil, fmt.Errorf("pipeline: chief justice node required")
	}
	g := &Graph{detectives: detectives, judges: judges, chief: chief, tracer: NopTracer{}}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Run executes the graph over st. On the caught failure paths (zero
// aggregate evidence, chief justice failure) the error handler records a
// diagnostic on the state and the triggering error is returned alongside it;
// every other node error is fatal and propagates directly.
func (g *Graph) Run(ctx context.Context, st *state.State) error {
	// Phase 1: parallel detectives with a full barrier before aggregation.
	if err := g.fanOut(ctx, st, g.detectives); err != nil {
		return err
	}

	// Phase 2: aggregation with a conditional error edge.
	if err := g.runNode(ctx, st, Node{Name: "aggregate_evidence", Run: aggregateEvidence}); err != nil {
		var af *AggregationFailure
		if errors.As(err, &af) {
			g.runErrorHandler(ctx, st, err)
		}
		return err
	}

	// Phase 3: parallel judges, barrier before synthesis.
	if err := g.fanOut(ctx, st, g.judges); err != nil {
		return err
	}

	// Phase 4: chief justice with a conditional end/error edge.
	if err := g.runNode(ctx, st, g.chief); err != nil {
		g.runErrorHandler(ctx, st, err)
		return err
	}
	if st.FinalReport == nil {
		err := fmt.Errorf("pipeline: chief justice produced no report")
		g.runErrorHandler(ctx, st, err)
		return err
	}
	return nil
}

// fanOut runs sibling nodes concurrently against snapshots of st, waits for
// all of them, then merges their updates in completion order. The merge
// happens only on the executor goroutine; siblings never write shared state.
func (g *Graph) fanOut(ctx context.Context, st *state.State, nodes []Node) error {
	updates := make(chan state.Update, len(nodes))
	eg, gctx := errgroup.WithContext(ctx)

	for _, node := range nodes {
		snap := st.Snapshot()
		eg.Go(func() error {
			u, err := g.traced(gctx, node, snap)
			if err != nil {
				return err
			}
			updates <- u
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}
	close(updates)

	for u := range updates {
		if err := st.Merge(u); err != nil {
			return fmt.Errorf("pipeline: merge: %w", err)
		}
	}
	return nil
}

// runNode executes a single node and merges its update.
func (g *Graph) runNode(ctx context.Context, st *state.State, node Node) error {
	u, err := g.traced(ctx, node, st.Snapshot())
	if err != nil {
		return err
	}
	if err := st.Merge(u); err != nil {
		return fmt.Errorf("pipeline: merge %s: %w", node.Name, err)
	}
	return nil
}

// traced wraps a node run with tracer notifications. A panicking tracer must
// never mask the node's own result, so tracer calls are isolated.
func (g *Graph) traced(ctx context.Context, node Node, snap *state.State) (state.Update, error) {
	safeTrace(func() { g.tracer.NodeStarted(node.Name) })
	u, err := node.Run(ctx, snap)
	safeTrace(func() { g.tracer.NodeFinished(node.Name, err) })
	return u, err
}

func safeTrace(fn func()) {
	defer func() { _ = recover() }()
	fn()
}

// runErrorHandler records the diagnostic for a caught failure. The error
// handler is terminal: the run ends with no final report.
func (g *Graph) runErrorHandler(ctx context.Context, st *state.State, cause error) {
	handler := Node{
		Name: "error_handler",
		Run: func(context.Context, *state.State) (state.Update, error) {
			return state.Update{Diagnostic: cause.Error()}, nil
		},
	}
	// The handler cannot fail; a merge error here would mean the diagnostic
	// field itself is broken, which the tests pin down.
	_ = g.runNode(ctx, st, handler)
}

// aggregateEvidence is the fan-in barrier node between detectives and
// judges: it validates that the detectives produced any evidence at all and
// records the per-group breakdown.
func aggregateEvidence(_ context.Context, snap *state.State) (state.Update, error) {
	total := snap.TotalEvidence()
	if total == 0 {
		return state.Update{}, &AggregationFailure{
			Reason: "no evidence collected, all detective nodes came back empty",
		}
	}
	breakdown := make(map[state.Group]int, len(snap.Evidences))
	for group, list := range snap.Evidences {
		breakdown[group] = len(list)
	}
	return state.Update{Breakdown: breakdown}, nil
}
