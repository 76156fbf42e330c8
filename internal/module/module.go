// Package module defines the internal contract that built-in and
// external action providers satisfy (§3, §4 "Module abstraction").
package module

import (
	"context"
	"encoding/json"
	"time"
)

// OutcomeType distinguishes the two action-outcome variants (§3).
type OutcomeType int

const (
	// Internal outcomes carry a single structured JSON value.
	Internal OutcomeType = iota
	// External outcomes carry raw stdout/stderr text captured from a
	// subprocess, plus parsed Results when stdout was valid JSON.
	External
)

// Outcome is the sum type described in §3: Internal (Results only) or
// External (raw Stdout/Stderr, with Results parsed when possible).
type Outcome struct {
	Type        OutcomeType
	Results     json.RawMessage
	Stdout      string
	Stderr      string
	CompletedAt time.Time
	Duration    time.Duration
}

// ActionDescriptor carries the input/output JSON-schema of a single
// action (§3). The schemas are opaque to the core; only the action's
// existence and name matter for dispatch.
type ActionDescriptor struct {
	Name         string
	InputSchema  json.RawMessage
	OutputSchema json.RawMessage
}

// Module is identified by a unique name and publishes a fixed set of
// actions. Modules are immutable after registration (§3).
type Module interface {
	Name() string
	Actions() map[string]ActionDescriptor
	ExecuteAction(ctx context.Context, action string, params json.RawMessage) (Outcome, error)
}
