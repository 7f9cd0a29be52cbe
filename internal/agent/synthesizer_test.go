package agent

import (
	"math"
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"

	"askdb/internal/retrieval"
	"askdb/internal/store"
)

func TestCoerceAnswer_FromRows(t *testing.T) {
	res := store.ExecutionResult{
		Success: true,
		Columns: []string{"ProductName", "Revenue"},
		Rows: [][]any{
			{"Chai", 141.675},
			{"Chang", 380.0},
			{"Aniseed Syrup", int64(45)},
			{"Chef Anton's Cajun Seasoning", 44.0},
		},
	}

	t.Run("int takes first cell", func(t *testing.T) {
		intRes := store.ExecutionResult{Success: true, Columns: []string{"n"}, Rows: [][]any{{int64(42)}}}
		if got := coerceAnswer("ignored", "int", intRes); got != 42 {
			t.Fatalf("got %v (%T), want 42", got, got)
		}
	})

	t.Run("float rounds first cell to two places", func(t *testing.T) {
		floatRes := store.ExecutionResult{
			Success: true,
			Columns: []string{"Revenue"},
			Rows:    [][]any{{141.675}, {380.0}},
		}
		if got := coerceAnswer("ignored", "float", floatRes); got != 141.68 {
			t.Fatalf("got %v, want 141.68", got)
		}
	})

	t.Run("list hint caps at three two-field records", func(t *testing.T) {
		got, ok := coerceAnswer("ignored", "list[{str, float}]", res).([]map[string]any)
		if !ok {
			t.Fatalf("got %T, want []map[string]any", got)
		}
		if len(got) != 3 {
			t.Fatalf("len = %d, want 3", len(got))
		}
		want := map[string]any{"ProductName": "Chai", "Revenue": 141.68}
		if !reflect.DeepEqual(got[0], want) {
			t.Fatalf("first record = %v, want %v", got[0], want)
		}
		if got[2]["Revenue"] != 45.0 {
			t.Fatalf("third revenue = %v, want 45", got[2]["Revenue"])
		}
	})

	t.Run("object hint takes first row", func(t *testing.T) {
		got, ok := coerceAnswer("ignored", "{str: float}", res).(map[string]any)
		if !ok {
			t.Fatalf("got %T, want map", got)
		}
		if got["ProductName"] != "Chai" || got["Revenue"] != 141.68 {
			t.Fatalf("record = %v", got)
		}
	})

	t.Run("int with empty rows parses answer text", func(t *testing.T) {
		empty := store.ExecutionResult{Success: true, Columns: []string{"n"}}
		if got := coerceAnswer("there were 7 orders", "int", empty); got != 7 {
			t.Fatalf("got %v, want 7", got)
		}
	})
}

func TestCoerceAnswer_Fallbacks(t *testing.T) {
	failed := store.ExecutionResult{Success: false, Err: "no such table"}

	t.Run("json answer text", func(t *testing.T) {
		got := coerceAnswer("1234.56", "float", failed)
		if got != 1234.56 {
			t.Fatalf("got %v, want 1234.56", got)
		}
	})

	t.Run("bare json number stays int for int hint", func(t *testing.T) {
		got := coerceAnswer("42", "int", failed)
		if got != 42 {
			t.Fatalf("got %v (%T), want int 42", got, got)
		}
	})

	t.Run("int regex from text", func(t *testing.T) {
		if got := coerceAnswer("around 14 units", "int", failed); got != 14 {
			t.Fatalf("got %v, want 14", got)
		}
	})

	t.Run("int fallback when no number", func(t *testing.T) {
		if got := coerceAnswer("no idea", "int", failed); got != intFallback {
			t.Fatalf("got %v, want %d", got, intFallback)
		}
	})

	t.Run("raw text for free-form hint", func(t *testing.T) {
		if got := coerceAnswer("Beverages sold best", "str", failed); got != "Beverages sold best" {
			t.Fatalf("got %v", got)
		}
	})
}

func TestTruncateExplanation(t *testing.T) {
	t.Run("short reason unchanged", func(t *testing.T) {
		if got := truncateExplanation("Computed from SQL."); got != "Computed from SQL." {
			t.Fatalf("got %q", got)
		}
	})

	t.Run("capped at two sentences", func(t *testing.T) {
		got := truncateExplanation("First. Second. Third. Fourth.")
		if got != "First. Second." {
			t.Fatalf("got %q", got)
		}
	})

	t.Run("hard cap at 150 chars with ellipsis", func(t *testing.T) {
		got := truncateExplanation(strings.Repeat("x", 300))
		if len(got) != 150 {
			t.Fatalf("len = %d, want 150", len(got))
		}
		if !strings.HasSuffix(got, "...") {
			t.Fatalf("missing ellipsis: %q", got)
		}
	})

	t.Run("multi-byte text truncates on rune boundary", func(t *testing.T) {
		got := truncateExplanation(strings.Repeat("é", 300))
		if !utf8.ValidString(got) {
			t.Fatalf("invalid UTF-8: %q", got)
		}
		if n := utf8.RuneCountInString(got); n != 150 {
			t.Fatalf("rune count = %d, want 150", n)
		}
	})
}

func TestConfidence(t *testing.T) {
	ok := store.ExecutionResult{Success: true}
	fail := store.ExecutionResult{Success: false}
	passages := []retrieval.Passage{{ID: "a", Score: 0.5}, {ID: "b", Score: 0.3}}

	tests := []struct {
		name     string
		res      store.ExecutionResult
		passages []retrieval.Passage
		repairs  int
		want     float64
	}{
		{"success no docs", ok, nil, 0, 0.8},
		{"success with docs", ok, passages, 0, 0.88},
		{"failure no docs", fail, nil, 0, 0.5},
		{"repairs penalized", ok, nil, 2, 0.6},
		{"exhausted failure", fail, nil, 2, 0.3},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := confidence(tc.res, tc.passages, tc.repairs)
			if math.Abs(got-tc.want) > 1e-9 {
				t.Fatalf("confidence = %v, want %v", got, tc.want)
			}
			if got < 0 || got > 1 {
				t.Fatalf("confidence %v out of range", got)
			}
		})
	}
}

func TestCitations(t *testing.T) {
	res := store.ExecutionResult{Tables: []string{"Orders", "Order Details"}}
	passages := []retrieval.Passage{
		{ID: "kpi_definitions.md::chunk1"},
		{ID: "kpi_definitions.md::chunk1"},
		{ID: "product_policy.md::chunk0"},
	}

	got := citations(res, passages)
	want := []string{"Orders", "Order Details", "kpi_definitions.md::chunk1", "product_policy.md::chunk0"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("citations = %v, want %v", got, want)
	}
}

func TestSummarizeResults(t *testing.T) {
	res := store.ExecutionResult{
		Success: true,
		Columns: []string{"n"},
		Rows:    [][]any{{1}, {2}, {3}, {4}, {5}, {6}, {7}},
	}
	got := summarizeResults(res)
	if !strings.Contains(got, "Cols: [n]") {
		t.Fatalf("missing columns: %q", got)
	}
	if strings.Contains(got, "6") || strings.Contains(got, "7") {
		t.Fatalf("summary not capped at five rows: %q", got)
	}

	failed := summarizeResults(store.ExecutionResult{Success: false, Err: "boom"})
	if failed != "No data (error: boom)" {
		t.Fatalf("got %q", failed)
	}
}
