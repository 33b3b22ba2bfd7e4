package pipeline

import (
	"log"
	"sync"
	"time"
)

// Tracer observes node execution for diagnostics. Implementations must be
// safe for concurrent use: sibling nodes report from their own goroutines.
type Tracer interface {
	NodeStarted(name string)
	NodeFinished(name string, err error)
}

// NopTracer discards all events.
type NopTracer struct{}

func (NopTracer) NodeStarted(string)         {}
func (NopTracer) NodeFinished(string, error) {}

// Compile-time interface checks.
var (
	_ Tracer = NopTracer{}
	_ Tracer = (*LogTracer)(nil)
	_ Tracer = (*RecordingTracer)(nil)
)

// LogTracer logs node lifecycle events with durations.
type LogTracer struct {
	mu      sync.Mutex
	started map[string]time.Time
}

// NewLogTracer creates a LogTracer.
func NewLogTracer() *LogTracer {
	return &LogTracer{started: make(map[string]time.Time)}
}

// NodeStarted records the start time and logs the event.
func (t *LogTracer) NodeStarted(name string) {
	t.mu.Lock()
	t.started[name] = time.Now()
	t.mu.Unlock()
	log.Printf("node %s: started", name)
}

// NodeFinished logs the outcome with the elapsed time.
func (t *LogTracer) NodeFinished(name string, err error) {
	t.mu.Lock()
	start, ok := t.started[name]
	delete(t.started, name)
	t.mu.Unlock()

	elapsed := time.Duration(0)
	if ok {
		elapsed = time.Since(start)
	}
	if err != nil {
		log.Printf("node %s: failed after %s: %v", name, elapsed.Round(time.Millisecond), err)
		return
	}
	log.Printf("node %s: completed in %s", name, elapsed.Round(time.Millisecond))
}

// NodeEvent is one recorded tracer event.
type NodeEvent struct {
	Name     string
	Finished bool
	Err      error
}

// RecordingTracer captures events in order, for tests.
type RecordingTracer struct {
	mu     sync.Mutex
	Events []NodeEvent
}

// NodeStarted records a start event.
func (t *RecordingTracer) NodeStarted(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Events = append(t.Events, NodeEvent{Name: name})
}

// NodeFinished records a finish event.
func (t *RecordingTracer) NodeFinished(name string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Events = append(t.Events, NodeEvent{Name: name, Finished: true, Err: err})
}
