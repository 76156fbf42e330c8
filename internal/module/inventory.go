package module

import (
	"context"
	"encoding/json"
	"os"
	"runtime"
	"time"

	"github.com/agentic/rpc-agent/internal/agenterr"
)

// Inventory reports basic facts about the host the agent runs on, the
// third built-in module named in §4.2.
type Inventory struct {
	StartedAt time.Time
}

var inventoryActions = map[string]ActionDescriptor{
	"facts": {
		Name:         "facts",
		InputSchema:  json.RawMessage(`{"type":"object"}`),
		OutputSchema: json.RawMessage(`{"type":"object"}`),
	},
}

func (Inventory) Name() string                          { return "inventory" }
func (Inventory) Actions() map[string]ActionDescriptor { return inventoryActions }

func (i Inventory) ExecuteAction(ctx context.Context, action string, params json.RawMessage) (Outcome, error) {
	start := time.Now()
	if action != "facts" {
		return Outcome{}, &agenterr.Request{Reason: "unknown action 'inventory." + action + "'"}
	}
	hostname, _ := os.Hostname()
	facts := map[string]any{
		"hostname":  hostname,
		"os":        runtime.GOOS,
		"arch":      runtime.GOARCH,
		"pid":       os.Getpid(),
		"uptime_s":  time.Since(i.StartedAt).Seconds(),
		"num_cpu":   runtime.NumCPU(),
		"go_version": runtime.Version(),
	}
	out, err := json.Marshal(facts)
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
