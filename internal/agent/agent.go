package agent

import (
	"context"
	"fmt"

	"askdb/internal/logging"
	"askdb/internal/oracle"
	"askdb/internal/retrieval"
	"askdb/internal/store"
)

// step is the workflow position after a stage completes. Each stage
// returns the next step explicitly, so the bounded-retry behavior is
// visible in one place instead of scattered through conditionals.
type step int

const (
	stepRoute step = iota
	stepRetrieve
	stepPlan
	stepGenerate
	stepExecute
	stepRepair
	stepSynthesize
	stepDone
)

// Agent wires the pipeline stages around shared read-only
// collaborators. One Agent serves concurrent runs; each run owns its
// own RunState.
type Agent struct {
	retriever *retrieval.Retriever
	store     *store.Store
	schema    string

	router      *Router
	planner     *Planner
	generator   *Generator
	repairer    *Repairer
	synthesizer *Synthesizer

	topK       int
	maxRepairs int
}

// New builds an agent. The schema description is introspected once
// here and reused verbatim as a prompt field by every run.
func New(ctx context.Context, ret *retrieval.Retriever, st *store.Store, o oracle.Oracle, topK, maxRepairs int) (*Agent, error) {
	schema, err := st.Schema(ctx)
	if err != nil {
		return nil, fmt.Errorf("introspect schema: %w", err)
	}
	if topK <= 0 {
		topK = 3
	}
	if maxRepairs <= 0 {
		maxRepairs = 2
	}
	return &Agent{
		retriever:   ret,
		store:       st,
		schema:      schema,
		router:      NewRouter(o),
		planner:     NewPlanner(o),
		generator:   NewGenerator(o),
		repairer:    NewRepairer(o),
		synthesizer: NewSynthesizer(o),
		topK:        topK,
		maxRepairs:  maxRepairs,
	}, nil
}

// Run answers one question. Stage failures degrade the answer rather
// than abort it; the only error returned is context cancellation.
func (a *Agent) Run(ctx context.Context, question, formatHint string) (Result, error) {
	st := newRunState(Question{Text: question, FormatHint: formatHint})
	log := logging.For(logging.CategoryRouter).With("run_id", st.ID)
	log.Debugw("starting run", "question", question, "format", formatHint)

	for next := stepRoute; next != stepDone; {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		next = a.advance(ctx, st, next)
	}

	return Result{
		Answer:      st.Answer.Value,
		SQL:         st.Query.SQL,
		Confidence:  st.Answer.Confidence,
		Explanation: st.Answer.Explanation,
		Citations:   st.Answer.Citations,
		Trace:       st.Trace(),
	}, nil
}

func (a *Agent) advance(ctx context.Context, st *RunState, current step) step {
	switch current {
	case stepRoute:
		st.Tracef("ROUTER: Classifying query type")
		st.Route = a.router.Route(ctx, st.Question.Text)
		st.Tracef("ROUTER: Route = %s", st.Route)
		if st.Route == RouteSQL {
			return stepPlan
		}
		return stepRetrieve

	case stepRetrieve:
		st.Tracef("RETRIEVER: Fetching relevant documents")
		st.Passages = a.retriever.Retrieve(st.Question.Text, a.topK)
		st.Tracef("RETRIEVER: Retrieved %d chunks: %v", len(st.Passages), passageIDs(st.Passages))
		return stepPlan

	case stepPlan:
		st.Tracef("PLANNER: Extracting constraints")
		st.Constraints = a.planner.Extract(ctx, st.Question.Text, st.Passages, a.schema)
		st.Tracef("PLANNER: Constraints = %s", st.Constraints)
		if st.Route == RouteRAG {
			return stepSynthesize
		}
		return stepGenerate

	case stepGenerate:
		st.Tracef("SQLGEN: Generating SQL query")
		st.Query = a.generator.Generate(ctx, st.Question, a.schema, st.Constraints)
		st.Tracef("SQLGEN: Generated query: %s", clip(st.Query.SQL, 100))
		return stepExecute

	case stepExecute:
		st.Tracef("EXECUTOR: Running SQL query")
		st.Execution = a.store.Execute(ctx, st.Query.SQL)
		if st.Execution.Success {
			st.Tracef("EXECUTOR: Success! Got %d rows", len(st.Execution.Rows))
			return stepSynthesize
		}
		st.Tracef("EXECUTOR: Error - %s", st.Execution.Err)
		if st.Query.Repairs < a.maxRepairs {
			return stepRepair
		}
		st.Tracef("EXECUTOR: Repair budget exhausted")
		return stepSynthesize

	case stepRepair:
		repaired, fast := a.repairer.Repair(ctx, st.Query.SQL, st.Execution.Err, a.schema)
		st.Query.SQL = repaired
		st.Query.Repairs++
		how := "oracle rewrite"
		if fast {
			how = "deterministic fix"
		}
		st.Tracef("REPAIR: Attempt %d (%s): %s", st.Query.Repairs, how, clip(repaired, 100))
		return stepExecute

	case stepSynthesize:
		st.Tracef("SYNTHESIZER: Generating final answer")
		st.Answer = a.synthesizer.Synthesize(ctx, st.Question, st.Execution, st.Passages, st.Query.Repairs)
		st.Tracef("SYNTHESIZER: Final answer = %v", st.Answer.Value)
		return stepDone

	default:
		return stepDone
	}
}

func passageIDs(passages []retrieval.Passage) []string {
	ids := make([]string, len(passages))
	for i, p := range passages {
		ids[i] = p.ID
	}
	return ids
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
