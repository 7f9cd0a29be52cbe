package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"askdb/internal/logging"
	"askdb/internal/oracle"
	"askdb/internal/retrieval"
	"askdb/internal/sqlfix"
)

const extractInstruction = "Extract constraints from the question and documents. Reply with JSON using keys date_range {start, end}, kpi_formula, categories, entities."

// Planner extracts structured query constraints from the question and
// its retrieved documents.
type Planner struct {
	oracle oracle.Oracle
}

// NewPlanner creates a planner backed by the given oracle.
func NewPlanner(o oracle.Oracle) *Planner { return &Planner{oracle: o} }

// Extract never fails: when the oracle is unreachable or its reply is
// not parseable JSON, a keyword scan over the available text fills in
// whatever constraints it can recognize.
func (p *Planner) Extract(ctx context.Context, question string, passages []retrieval.Passage, schema string) Constraints {
	fields := oracle.Fields{
		{Name: "Instruction", Value: extractInstruction},
		{Name: "Question", Value: question},
		{Name: "Documents", Value: renderPassages(passages)},
		{Name: "Schema", Value: schema},
	}

	reply, err := p.oracle.Invoke(ctx, fields)
	if err != nil {
		logging.For(logging.CategoryPlanner).Warnw("constraint extraction failed, using keyword fallback", "error", err)
		return keywordConstraints(question)
	}

	if c, ok := parseConstraints(reply); ok {
		return c
	}
	return keywordConstraints(reply)
}

// renderPassages formats passages for a prompt field, one per line
// prefixed by its chunk id.
func renderPassages(passages []retrieval.Passage) string {
	if len(passages) == 0 {
		return "No documents"
	}
	parts := make([]string, len(passages))
	for i, p := range passages {
		parts[i] = fmt.Sprintf("[%s] %s", p.ID, p.Text)
	}
	return strings.Join(parts, "\n\n")
}

func parseConstraints(reply string) (Constraints, bool) {
	var c Constraints
	if err := json.Unmarshal([]byte(sqlfix.StripFences(reply)), &c); err != nil {
		return Constraints{}, false
	}
	return c, true
}

var (
	reYearMonth = regexp.MustCompile(`\b((?:19|20)\d{2})-(0[1-9]|1[0-2])\b`)
	reMonthName = regexp.MustCompile(`(?i)\b(january|february|march|april|may|june|july|august|september|october|november|december)\s+((?:19|20)\d{2})\b`)
)

var monthsByName = map[string]time.Month{
	"january": time.January, "february": time.February, "march": time.March,
	"april": time.April, "may": time.May, "june": time.June,
	"july": time.July, "august": time.August, "september": time.September,
	"october": time.October, "november": time.November, "december": time.December,
}

// keywordConstraints recognizes explicit year-month tokens, month
// names, and the common KPI phrasings in free text.
func keywordConstraints(text string) Constraints {
	var c Constraints
	lower := strings.ToLower(text)

	if m := reYearMonth.FindStringSubmatch(text); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		c.DateRange = monthRange(year, time.Month(month))
	} else if m := reMonthName.FindStringSubmatch(lower); m != nil {
		year, _ := strconv.Atoi(m[2])
		c.DateRange = monthRange(year, monthsByName[m[1]])
	}

	switch {
	case strings.Contains(lower, "aov") || strings.Contains(lower, "average order value"):
		c.KPIFormula = "AOV"
	case strings.Contains(lower, "margin"):
		c.KPIFormula = "GrossMargin"
	}

	return c
}

func monthRange(year int, month time.Month) *DateRange {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, -1)
	return &DateRange{
		Start: start.Format("2006-01-02"),
		End:   end.Format("2006-01-02"),
	}
}
