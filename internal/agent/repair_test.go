package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"askdb/internal/oracle"
)

// failOracle fails the test if invoked.
type failOracle struct{ t *testing.T }

func (f *failOracle) Invoke(context.Context, oracle.Fields) (string, error) {
	f.t.Fatal("oracle invoked on the deterministic fast path")
	return "", nil
}

// cannedOracle returns a fixed reply for every request.
type cannedOracle struct {
	reply string
	err   error
	calls int
}

func (c *cannedOracle) Invoke(context.Context, oracle.Fields) (string, error) {
	c.calls++
	return c.reply, c.err
}

func TestRepairer_FastPath(t *testing.T) {
	r := NewRepairer(&failOracle{t: t})

	failed := "SELECT CustomerID FROM order_details WHERE strfime('%Y', OrderDate) = '1997'"
	repaired, fast := r.Repair(context.Background(), failed, "no such column: OrderDate", "schema")
	if !fast {
		t.Fatal("expected the deterministic fast path")
	}
	if !strings.Contains(repaired, `"Order Details"`) || !strings.Contains(repaired, "strftime") {
		t.Fatalf("fast path did not fix the query: %s", repaired)
	}
}

func TestRepairer_OracleRewrite(t *testing.T) {
	o := &cannedOracle{reply: "```sql\nSELECT * FROM order_details\n```"}
	r := NewRepairer(o)

	// No typo for the fast path to fix, so the oracle must be asked.
	repaired, fast := r.Repair(context.Background(), "SELECT * FROM Nonsense", "no such table: Nonsense", "schema")
	if fast {
		t.Fatal("fast path taken with nothing to fix")
	}
	if o.calls != 1 {
		t.Fatalf("oracle calls = %d, want 1", o.calls)
	}
	if repaired != `SELECT * FROM "Order Details"` {
		t.Fatalf("repaired = %q", repaired)
	}
}

func TestRepairer_SemanticErrorSkipsFastPath(t *testing.T) {
	o := &cannedOracle{reply: "SELECT 1"}
	r := NewRepairer(o)

	// The typo fixer would change the text, but the error is not a
	// syntax or name problem, so the oracle decides.
	failed := "SELECT * FROM order_details"
	_, fast := r.Repair(context.Background(), failed, "ambiguous column name: OrderID", "schema")
	if fast {
		t.Fatal("fast path taken for a non-name, non-syntax error")
	}
	if o.calls != 1 {
		t.Fatalf("oracle calls = %d, want 1", o.calls)
	}
}

func TestRepairer_OracleErrorKeepsTypoFix(t *testing.T) {
	o := &cannedOracle{err: errors.New("model unavailable")}
	r := NewRepairer(o)

	failed := "SELECT * FROM Orders WHERE x BETWEN 1 AND 2"
	repaired, fast := r.Repair(context.Background(), failed, "ambiguous column name: x", "schema")
	if fast {
		t.Fatal("fast path should not apply to an ambiguity error")
	}
	if !strings.Contains(repaired, "BETWEEN") {
		t.Fatalf("typo fix lost: %s", repaired)
	}
}
