// Package logging provides categorized loggers for the askdb pipeline.
// Each pipeline stage logs under its own named zap logger so a single
// run can be followed stage by stage with `askdb --verbose`.
package logging

import (
	"sync"

	"go.uber.org/zap"
)

// Category identifies a pipeline stage or subsystem.
type Category string

const (
	CategoryRouter    Category = "router"
	CategoryRetrieval Category = "retrieval"
	CategoryPlanner   Category = "planner"
	CategorySQL       Category = "sql"
	CategoryExecutor  Category = "executor"
	CategoryRepair    Category = "repair"
	CategorySynth     Category = "synth"
	CategoryStore     Category = "store"
	CategoryOracle    Category = "oracle"
)

var (
	mu   sync.RWMutex
	base = zap.NewNop()
)

// Initialize installs the process logger. Call once at startup;
// before Initialize all logging is a no-op, which keeps library
// consumers and tests quiet by default.
func Initialize(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	if l != nil {
		base = l
	}
}

// For returns the sugared logger for a category.
func For(c Category) *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return base.Named(string(c)).Sugar()
}
