package agent

import (
	"context"
	"strings"

	"askdb/internal/logging"
	"askdb/internal/oracle"
	"askdb/internal/sqlfix"
)

const repairInstruction = `Fix the failed SQLite query. MUST quote "Order Details". JOIN Orders for dates. Check all table names.`

// Repairer rewrites a failed query using the engine's error message.
type Repairer struct {
	oracle oracle.Oracle
}

// NewRepairer creates a repairer backed by the given oracle.
func NewRepairer(o oracle.Oracle) *Repairer { return &Repairer{oracle: o} }

// Repair returns a repaired query and whether the deterministic fast
// path produced it. The fast path applies the typo-fix rewrites alone;
// it is taken when those change the text and the error looks like a
// syntax or name-resolution problem. Otherwise the oracle proposes a
// fix, which passes through the same typo rewrites before re-execution.
func (r *Repairer) Repair(ctx context.Context, failed, errMsg, schema string) (string, bool) {
	fixed := sqlfix.FixTypos(failed)
	if fixed != failed && isNameOrSyntaxError(errMsg) {
		return fixed, true
	}

	reply, err := r.oracle.Invoke(ctx, oracle.Fields{
		{Name: "Instruction", Value: repairInstruction},
		{Name: "Failed Query", Value: failed},
		{Name: "Error", Value: errMsg},
		{Name: "Schema", Value: schema},
	})
	if err != nil {
		logging.For(logging.CategoryRepair).Warnw("oracle repair failed, keeping typo-fixed query", "error", err)
		return fixed, false
	}
	return sqlfix.FixTypos(sqlfix.StripFences(reply)), false
}

func isNameOrSyntaxError(errMsg string) bool {
	lower := strings.ToLower(errMsg)
	return strings.Contains(lower, "syntax") || strings.Contains(lower, "no such")
}
