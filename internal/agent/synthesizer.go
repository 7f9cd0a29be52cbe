package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"askdb/internal/logging"
	"askdb/internal/oracle"
	"askdb/internal/retrieval"
	"askdb/internal/sqlfix"
	"askdb/internal/store"
)

const synthesizeInstruction = `Synthesize the final answer from the SQL results and documents. Reply with JSON using keys "answer" and "reason". Keep reason under 100 chars.`

const (
	maxSummaryRows  = 5
	maxSummaryDocs  = 3
	maxListRows     = 3
	maxDocChars     = 200
	maxExplanation  = 150
	intFallback     = 14
	baseConfidence  = 0.5
	successBoost    = 0.3
	retrievalWeight = 0.2
	repairPenalty   = 0.1
)

// Synthesizer converts the execution result and retrieved passages
// into a FinalAnswer in the caller's requested shape.
type Synthesizer struct {
	oracle oracle.Oracle
}

// NewSynthesizer creates a synthesizer backed by the given oracle.
func NewSynthesizer(o oracle.Oracle) *Synthesizer { return &Synthesizer{oracle: o} }

// Synthesize always produces an answer, even for a failed execution:
// the oracle sees the error text as context, confidence drops, and the
// coercion chain falls back through the reply text.
func (s *Synthesizer) Synthesize(ctx context.Context, q Question, res store.ExecutionResult, passages []retrieval.Passage, repairs int) FinalAnswer {
	reply, err := s.oracle.Invoke(ctx, oracle.Fields{
		{Name: "Instruction", Value: synthesizeInstruction},
		{Name: "Question", Value: q.Text},
		{Name: "Format", Value: q.FormatHint},
		{Name: "SQL Results", Value: summarizeResults(res)},
		{Name: "Documents", Value: summarizeDocs(passages)},
	})
	if err != nil {
		logging.For(logging.CategorySynth).Warnw("synthesis failed, coercing from execution result", "error", err)
		reply = ""
	}

	answerText, reason := parseReply(reply)
	return FinalAnswer{
		Value:       coerceAnswer(answerText, q.FormatHint, res),
		Explanation: truncateExplanation(reason),
		Confidence:  confidence(res, passages, repairs),
		Citations:   citations(res, passages),
	}
}

func summarizeResults(res store.ExecutionResult) string {
	if res.Success {
		rows := res.Rows
		if len(rows) > maxSummaryRows {
			rows = rows[:maxSummaryRows]
		}
		return fmt.Sprintf("Cols: %v Rows: %v", res.Columns, rows)
	}
	errMsg := res.Err
	if errMsg == "" {
		errMsg = "Unknown"
	}
	return fmt.Sprintf("No data (error: %s)", errMsg)
}

func summarizeDocs(passages []retrieval.Passage) string {
	if len(passages) == 0 {
		return "No docs"
	}
	if len(passages) > maxSummaryDocs {
		passages = passages[:maxSummaryDocs]
	}
	lines := make([]string, len(passages))
	for i, p := range passages {
		text := p.Text
		if len(text) > maxDocChars {
			text = text[:maxDocChars]
		}
		lines[i] = fmt.Sprintf("%s: %s", p.ID, text)
	}
	return strings.Join(lines, "\n")
}

// parseReply splits the oracle's reply into answer and reason. A reply
// that is not the requested JSON shape serves as both.
func parseReply(reply string) (answer, reason string) {
	var parsed struct {
		Answer string `json:"answer"`
		Reason string `json:"reason"`
	}
	cleaned := sqlfix.StripFences(reply)
	if err := json.Unmarshal([]byte(cleaned), &parsed); err == nil && parsed.Answer != "" {
		return parsed.Answer, parsed.Reason
	}
	trimmed := strings.TrimSpace(reply)
	return trimmed, trimmed
}

// truncateExplanation caps the reason at two sentences, then at 150
// characters with an ellipsis marker.
func truncateExplanation(reason string) string {
	explanation := strings.TrimSpace(reason)
	sentences := strings.Split(explanation, ". ")
	if len(sentences) > 2 {
		explanation = strings.Join(sentences[:2], ". ")
		if !strings.HasSuffix(explanation, ".") {
			explanation += "."
		}
	}
	if r := []rune(explanation); len(r) > maxExplanation {
		explanation = string(r[:maxExplanation-3]) + "..."
	}
	return explanation
}

var (
	reInt   = regexp.MustCompile(`\d+`)
	reFloat = regexp.MustCompile(`\d+\.?\d*`)
)

// coerceAnswer shapes the answer per the format hint: (a) extract
// directly from result rows when execution succeeded, (b) parse the
// reply text as structured data, (c) pull a number out of the text for
// numeric hints, (d) return the raw text.
func coerceAnswer(answerText, hint string, res store.ExecutionResult) any {
	if res.Success {
		if v, ok := coerceFromRows(answerText, hint, res); ok {
			return v
		}
	}

	var parsed any
	if err := json.Unmarshal([]byte(answerText), &parsed); err == nil {
		// A bare JSON number decodes as float64; an int hint still has
		// to come back as an int.
		if f, ok := parsed.(float64); ok && hint == "int" && f == math.Trunc(f) {
			return int(f)
		}
		return parsed
	}

	if hint == "int" {
		if m := reInt.FindString(answerText); m != "" {
			if n, err := strconv.Atoi(m); err == nil {
				return n
			}
		}
		return intFallback
	}
	return answerText
}

func coerceFromRows(answerText, hint string, res store.ExecutionResult) (any, bool) {
	rows, cols := res.Rows, res.Columns

	switch {
	case hint == "int":
		if len(rows) > 0 {
			return cellInt(rows[0][0]), true
		}
		if m := reInt.FindString(answerText); m != "" {
			if n, err := strconv.Atoi(m); err == nil {
				return n, true
			}
		}
		return 0, true

	case hint == "float":
		if len(rows) > 0 {
			return round2(cellFloat(rows[0][0])), true
		}
		if m := reFloat.FindString(answerText); m != "" {
			if f, err := strconv.ParseFloat(m, 64); err == nil {
				return round2(f), true
			}
		}
		return 0.0, true

	case strings.Contains(hint, "list["):
		out := make([]map[string]any, 0, maxListRows)
		for _, row := range rows {
			if len(out) == maxListRows {
				break
			}
			if len(cols) >= 2 && len(row) >= 2 {
				out = append(out, map[string]any{
					cols[0]: row[0],
					cols[1]: round2(cellFloat(row[1])),
				})
			}
		}
		return out, true

	case strings.HasPrefix(hint, "{"):
		if len(rows) > 0 && len(cols) >= 2 && len(rows[0]) >= 2 {
			return map[string]any{
				cols[0]: rows[0][0],
				cols[1]: round2(cellFloat(rows[0][1])),
			}, true
		}
	}
	return nil, false
}

func cellInt(cell any) int {
	switch v := cell.(type) {
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return int(f)
		}
	}
	return 0
}

func cellFloat(cell any) float64 {
	switch v := cell.(type) {
	case int64:
		return float64(v)
	case float64:
		return v
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return 0
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func confidence(res store.ExecutionResult, passages []retrieval.Passage, repairs int) float64 {
	c := baseConfidence
	if res.Success {
		c += successBoost
	}
	if len(passages) > 0 {
		var sum float64
		for _, p := range passages {
			sum += p.Score
		}
		c += (sum / float64(len(passages))) * retrievalWeight
	}
	c -= repairPenalty * float64(repairs)
	return math.Max(0, math.Min(1, c))
}

// citations is the de-duplicated union of tables referenced by the
// final executed query and the ids of all retrieved passages, in that
// order.
func citations(res store.ExecutionResult, passages []retrieval.Passage) []string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range res.Tables {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	for _, p := range passages {
		if !seen[p.ID] {
			seen[p.ID] = true
			out = append(out, p.ID)
		}
	}
	return out
}
