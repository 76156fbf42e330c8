package module_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/agentic/rpc-agent/internal/module"
	"github.com/stretchr/testify/require"
)

func TestEchoIsIdempotent(t *testing.T) {
	params, err := json.Marshal(map[string]string{"message": "hello"})
	require.NoError(t, err)

	outcome, err := module.Echo{}.ExecuteAction(context.Background(), "echo", params)
	require.NoError(t, err)
	require.Equal(t, module.Internal, outcome.Type)

	var out struct {
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(outcome.Results, &out))
	require.Equal(t, "hello", out.Message)
}

func TestEchoUnknownAction(t *testing.T) {
	_, err := module.Echo{}.ExecuteAction(context.Background(), "shout", nil)
	require.Error(t, err)
}

func TestEchoRejectsMalformedParams(t *testing.T) {
	_, err := module.Echo{}.ExecuteAction(context.Background(), "echo", json.RawMessage(`not json`))
	require.Error(t, err)
}
