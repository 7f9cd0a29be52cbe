// Package oracle abstracts the text-generation collaborator behind the
// pipeline. Callers describe each request as an ordered list of named
// fields; implementations turn the rendered prompt into free text.
// Replies may be malformed or off-format, so callers always parse
// defensively.
package oracle

import (
	"context"
	"fmt"
	"strings"
)

// Field is one named section of a prompt.
type Field struct {
	Name  string
	Value string
}

// Fields is an ordered prompt. Rendering is deterministic so that
// identical requests produce identical prompt text.
type Fields []Field

// Render flattens the fields into prompt text, one "Name: value"
// block per field in order.
func (fs Fields) Render() string {
	var b strings.Builder
	for i, f := range fs {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "%s: %s", f.Name, f.Value)
	}
	return b.String()
}

// Get returns the value of the first field with the given name.
func (fs Fields) Get(name string) (string, bool) {
	for _, f := range fs {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// Oracle produces a reply for a rendered prompt.
type Oracle interface {
	Invoke(ctx context.Context, fields Fields) (string, error)
}
