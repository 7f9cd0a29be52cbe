package agent

import (
	"fmt"

	"github.com/google/uuid"

	"askdb/internal/retrieval"
	"askdb/internal/store"
)

// RunState is the mutable record threaded through one workflow run. It
// is owned by a single run from start to finish; nothing in it is
// shared across concurrent runs.
type RunState struct {
	ID       string
	Question Question

	Route       Route
	Passages    []retrieval.Passage
	Constraints Constraints
	Query       CandidateQuery
	Execution   store.ExecutionResult
	Answer      FinalAnswer

	trace []string
}

func newRunState(q Question) *RunState {
	return &RunState{ID: uuid.NewString(), Question: q}
}

// Tracef appends one formatted line to the run's trace. The trace is
// append-only and records step transitions in execution order.
func (s *RunState) Tracef(format string, args ...any) {
	s.trace = append(s.trace, fmt.Sprintf(format, args...))
}

// Trace returns a copy of the trace lines recorded so far.
func (s *RunState) Trace() []string {
	out := make([]string, len(s.trace))
	copy(out, s.trace)
	return out
}
