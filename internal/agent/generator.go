package agent

import (
	"context"
	"strings"

	"askdb/internal/logging"
	"askdb/internal/oracle"
	"askdb/internal/sqlfix"
)

const generateInstruction = `Generate a SQLite query. MUST use "Order Details" with quotes. Use AS aliases. Use strftime for dates.`

// Generator turns a question plus constraints into a candidate SQL
// query, normalized through the deterministic rewrite rules.
type Generator struct {
	oracle oracle.Oracle
}

// NewGenerator creates a generator backed by the given oracle.
func NewGenerator(o oracle.Oracle) *Generator { return &Generator{oracle: o} }

// Generate returns a zero-repair CandidateQuery. An oracle failure
// yields an empty query; the executor will fail it and hand the error
// to the repair loop rather than aborting the run.
func (g *Generator) Generate(ctx context.Context, q Question, schema string, cons Constraints) CandidateQuery {
	reply, err := g.oracle.Invoke(ctx, oracle.Fields{
		{Name: "Instruction", Value: generateInstruction},
		{Name: "Question", Value: q.Text},
		{Name: "Schema", Value: schema},
		{Name: "Constraints", Value: cons.String()},
		{Name: "Format", Value: q.FormatHint},
	})
	if err != nil {
		logging.For(logging.CategorySQL).Warnw("sql generation failed", "error", err)
		return CandidateQuery{}
	}

	sql := sqlfix.NormalizeOpts(sqlfix.StripFences(reply), sqlfix.Options{
		IntendedAverage: intendsAverage(q, cons),
	})
	return CandidateQuery{SQL: sql}
}

// intendsAverage reports whether the question actually asks for an
// average, so the normalizer keeps a division by a distinct-order
// count instead of treating it as a mistaken total-to-average rewrite.
func intendsAverage(q Question, cons Constraints) bool {
	if cons.KPIFormula == "AOV" {
		return true
	}
	lower := strings.ToLower(q.Text)
	return strings.Contains(lower, "average") || strings.Contains(lower, "aov")
}
