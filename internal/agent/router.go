package agent

import (
	"context"
	"strings"

	"askdb/internal/logging"
	"askdb/internal/oracle"
)

const routeInstruction = "Classify the question. KPI calculations need hybrid (docs+SQL). Return only: rag, sql, or hybrid."

// Router classifies a question into an answering strategy.
type Router struct {
	oracle oracle.Oracle
}

// NewRouter creates a router backed by the given oracle.
func NewRouter(o oracle.Oracle) *Router { return &Router{oracle: o} }

// Route never fails: an unreachable oracle or an unparseable reply
// both fall back to the hybrid strategy.
func (r *Router) Route(ctx context.Context, question string) Route {
	reply, err := r.oracle.Invoke(ctx, oracle.Fields{
		{Name: "Instruction", Value: routeInstruction},
		{Name: "Question", Value: question},
	})
	if err != nil {
		logging.For(logging.CategoryRouter).Warnw("route classification failed, defaulting to hybrid", "error", err)
		return RouteHybrid
	}
	return normalizeRoute(reply)
}

// normalizeRoute maps free-text classification output onto a Route.
// Hybrid wins any ambiguity: it is the richer strategy, so mistaken
// recall costs less than a mistaken narrow route.
func normalizeRoute(reply string) Route {
	t := strings.ToLower(reply)
	switch {
	case strings.Contains(t, "hybrid") || strings.Contains(t, "both"):
		return RouteHybrid
	case strings.Contains(t, "sql"):
		return RouteSQL
	case strings.Contains(t, "rag"):
		return RouteRAG
	default:
		return RouteHybrid
	}
}
