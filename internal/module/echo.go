package module

import (
	"context"
	"encoding/json"
	"time"

	"github.com/agentic/rpc-agent/internal/agenterr"
)

// Echo is the built-in module used for the round-trip/idempotence
// property in §8: echo({message: s}) returns {message: s}.
type Echo struct{}

var echoActions = map[string]ActionDescriptor{
	"echo": {
		Name:         "echo",
		InputSchema:  json.RawMessage(`{"type":"object","properties":{"message":{"type":"string"}},"required":["message"]}`),
		OutputSchema: json.RawMessage(`{"type":"object","properties":{"message":{"type":"string"}}}`),
	},
}

func (Echo) Name() string                          { return "echo" }
func (Echo) Actions() map[string]ActionDescriptor { return echoActions }

func (Echo) ExecuteAction(ctx context.Context, action string, params json.RawMessage) (Outcome, error) {
	start := time.Now()
	if action != "echo" {
		return Outcome{}, &agenterr.Request{Reason: "unknown action 'echo." + action + "'"}
	}
	var in struct {
		Message string `json:"message"`
	}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &in); err != nil {
			return Outcome{}, &agenterr.Request{Reason: "invalid params: " + err.Error()}
		}
	}
	out, err := json.Marshal(map[string]string{"message": in.Message})
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
