package module

import (
	"context"
	"encoding/json"
	"time"

	"github.com/agentic/rpc-agent/internal/agenterr"
)

// Ping is the built-in liveness-check module; scenario 2 in §8 drives a
// non-blocking ping end to end through the job executor and spool.
type Ping struct{}

var pingActions = map[string]ActionDescriptor{
	"ping": {
		Name:         "ping",
		InputSchema:  json.RawMessage(`{"type":"object"}`),
		OutputSchema: json.RawMessage(`{"type":"object","properties":{"pong":{"type":"string"}}}`),
	},
}

func (Ping) Name() string                          { return "ping" }
func (Ping) Actions() map[string]ActionDescriptor { return pingActions }

func (Ping) ExecuteAction(ctx context.Context, action string, params json.RawMessage) (Outcome, error) {
	start := time.Now()
	if action != "ping" {
		return Outcome{}, &agenterr.Request{Reason: "unknown action 'ping." + action + "'"}
	}
	out, err := json.Marshal(map[string]string{"pong": time.Now().UTC().Format(time.RFC3339Nano)})
	if err != nil {
		return Outcome{}, &agenterr.Request{Reason: "failed to marshal results: " + err.Error()}
	}
	return Outcome{
		Type:        Internal,
		Results:     out,
		CompletedAt: time.Now(),
		Duration:    time.Since(start),
	}, nil
}
