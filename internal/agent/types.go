// Package agent implements the question-answering workflow: routing,
// retrieval, constraint planning, SQL generation, bounded repair, and
// answer synthesis, sequenced by an explicit state machine.
package agent

import "encoding/json"

// Route selects the answering strategy for a question.
type Route string

const (
	RouteRAG    Route = "rag"
	RouteSQL    Route = "sql"
	RouteHybrid Route = "hybrid"
)

// Question is the immutable request input. FormatHint names the shape
// the caller wants the answer coerced into: "int", "float", a
// "list[...]" hint, a "{...}" record hint, or free text.
type Question struct {
	Text       string
	FormatHint string
}

// DateRange bounds a query period with inclusive ISO dates.
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Constraints is the structured query plan extracted from the question
// and retrieved documents. All fields are optional; the zero value is
// the valid "no constraints" plan.
type Constraints struct {
	DateRange  *DateRange `json:"date_range,omitempty"`
	KPIFormula string     `json:"kpi_formula,omitempty"`
	Categories []string   `json:"categories,omitempty"`
	Entities   []string   `json:"entities,omitempty"`
}

// String renders the constraints as compact JSON for prompt fields.
func (c Constraints) String() string {
	b, err := json.Marshal(c)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// CandidateQuery is the SQL under consideration plus the number of
// repair attempts already spent on it.
type CandidateQuery struct {
	SQL     string
	Repairs int
}

// FinalAnswer is the synthesized response for one question.
type FinalAnswer struct {
	Value       any
	Explanation string
	Confidence  float64
	Citations   []string
}

// Result is what Run returns to the caller. SQL is the last candidate
// query attempted, empty when the route never reached generation.
type Result struct {
	Answer      any      `json:"final_answer"`
	SQL         string   `json:"sql"`
	Confidence  float64  `json:"confidence"`
	Explanation string   `json:"explanation"`
	Citations   []string `json:"citations"`
	Trace       []string `json:"trace"`
}
