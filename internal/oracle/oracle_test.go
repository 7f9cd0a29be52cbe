package oracle

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestFields_Render(t *testing.T) {
	fs := Fields{
		{Name: "Instruction", Value: "Classify the question."},
		{Name: "Question", Value: "What was revenue in June 1997?"},
	}
	want := "Instruction: Classify the question.\n\nQuestion: What was revenue in June 1997?"
	if got := fs.Render(); got != want {
		t.Fatalf("Render() = %q, want %q", got, want)
	}
	if got := fs.Render(); got != want {
		t.Fatalf("Render() not deterministic, second call = %q", got)
	}
}

func TestFields_Get(t *testing.T) {
	fs := Fields{{Name: "Question", Value: "q"}}
	if v, ok := fs.Get("Question"); !ok || v != "q" {
		t.Fatalf("Get(Question) = %q, %v", v, ok)
	}
	if _, ok := fs.Get("Schema"); ok {
		t.Fatal("Get(Schema) should miss")
	}
}

func TestRuleOracle_Route(t *testing.T) {
	tests := []struct {
		name     string
		question string
		want     string
	}{
		{"policy question routes to rag", "What is the return policy?", "rag"},
		{"revenue question routes to hybrid", "Total revenue for June 1997?", "hybrid"},
		{"unknown shape defaults to hybrid", "How many employees are there?", "hybrid"},
	}

	o := NewRule()
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			reply, err := o.Invoke(context.Background(), Fields{
				{Name: "Instruction", Value: "Classify the question. Return only: rag, sql, or hybrid"},
				{Name: "Question", Value: tc.question},
			})
			if err != nil {
				t.Fatalf("invoke: %v", err)
			}
			var parsed struct {
				Route string `json:"route"`
			}
			if err := json.Unmarshal([]byte(reply), &parsed); err != nil {
				t.Fatalf("reply %q is not JSON: %v", reply, err)
			}
			if parsed.Route != tc.want {
				t.Fatalf("route = %q, want %q", parsed.Route, tc.want)
			}
		})
	}
}

func TestRuleOracle_ExtractConstraints(t *testing.T) {
	o := NewRule()

	reply, err := o.Invoke(context.Background(), Fields{
		{Name: "Question", Value: "Revenue for Beverages in June 1997"},
		{Name: "Documents", Value: "kpi_definitions::chunk0: Revenue is ..."},
	})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	var parsed struct {
		DateRange *struct {
			Start string `json:"start"`
			End   string `json:"end"`
		} `json:"date_range"`
		Categories []string `json:"categories"`
	}
	if err := json.Unmarshal([]byte(reply), &parsed); err != nil {
		t.Fatalf("reply %q is not JSON: %v", reply, err)
	}
	if parsed.DateRange == nil || parsed.DateRange.Start != "1997-06-01" || parsed.DateRange.End != "1997-06-30" {
		t.Fatalf("date range = %+v", parsed.DateRange)
	}
	if len(parsed.Categories) != 1 || parsed.Categories[0] != "Beverages" {
		t.Fatalf("categories = %v", parsed.Categories)
	}
}

func TestRuleOracle_GenerateSQL(t *testing.T) {
	tests := []struct {
		name     string
		question string
		contains []string
	}{
		{
			name:     "top products by revenue",
			question: "What are the top 3 products by revenue?",
			contains: []string{`JOIN "Order Details" od`, "ORDER BY Revenue DESC", "LIMIT 3"},
		},
		{
			name:     "aov for december",
			question: "What was the AOV in 1997-12?",
			contains: []string{"COUNT(DISTINCT o.OrderID)", "'1997-12-01'"},
		},
		{
			name:     "customer margin",
			question: "Which customer had the highest margin in 1997?",
			contains: []string{"0.7 * od.UnitPrice", "GROUP BY c.CompanyName"},
		},
		{
			name:     "unknown falls back to probe query",
			question: "Something the rules do not know",
			contains: []string{"SELECT * FROM Orders LIMIT 1"},
		},
	}

	o := NewRule()
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			reply, err := o.Invoke(context.Background(), Fields{
				{Name: "Question", Value: tc.question},
				{Name: "Schema", Value: "Tables: ..."},
				{Name: "Constraints", Value: "{}"},
				{Name: "Format", Value: "float"},
			})
			if err != nil {
				t.Fatalf("invoke: %v", err)
			}
			for _, want := range tc.contains {
				if !strings.Contains(reply, want) {
					t.Fatalf("reply missing %q:\n%s", want, reply)
				}
			}
		})
	}
}

func TestRuleOracle_Repair(t *testing.T) {
	o := NewRule()
	reply, err := o.Invoke(context.Background(), Fields{
		{Name: "Failed Query", Value: "SELECT * FROM order_details WHERE strfime('%Y', OrderDate) = '1997'"},
		{Name: "Error", Value: "no such table: order_details"},
		{Name: "Schema", Value: "Tables: ..."},
	})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if !strings.Contains(reply, `"Order Details"`) {
		t.Fatalf("repair did not quote the table: %s", reply)
	}
	if !strings.Contains(reply, "strftime") {
		t.Fatalf("repair did not fix the typo: %s", reply)
	}
}

func TestRuleOracle_Synthesize(t *testing.T) {
	o := NewRule()
	for _, tc := range []struct {
		format string
		answer string
	}{
		{"int", "14"},
		{"float", "1234.56"},
		{"str", "Answer based on the data"},
	} {
		reply, err := o.Invoke(context.Background(), Fields{
			{Name: "Question", Value: "q"},
			{Name: "Format", Value: tc.format},
			{Name: "SQL Results", Value: "Cols: [x] Rows: [[1]]"},
			{Name: "Documents", Value: "No docs"},
		})
		if err != nil {
			t.Fatalf("invoke: %v", err)
		}
		var parsed struct {
			Answer string `json:"answer"`
			Reason string `json:"reason"`
		}
		if err := json.Unmarshal([]byte(reply), &parsed); err != nil {
			t.Fatalf("reply %q is not JSON: %v", reply, err)
		}
		if parsed.Answer != tc.answer {
			t.Fatalf("format %q: answer = %q, want %q", tc.format, parsed.Answer, tc.answer)
		}
		if parsed.Reason == "" {
			t.Fatalf("format %q: empty reason", tc.format)
		}
	}
}
