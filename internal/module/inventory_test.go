package module_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/agentic/rpc-agent/internal/module"
	"github.com/stretchr/testify/require"
)

func TestInventoryFacts(t *testing.T) {
	inv := module.Inventory{StartedAt: time.Now().Add(-time.Minute)}
	outcome, err := inv.ExecuteAction(context.Background(), "facts", nil)
	require.NoError(t, err)

	var facts map[string]any
	require.NoError(t, json.Unmarshal(outcome.Results, &facts))
	require.Contains(t, facts, "hostname")
	require.Contains(t, facts, "uptime_s")
	require.Greater(t, facts["uptime_s"], float64(0))
}

func TestInventoryUnknownAction(t *testing.T) {
	inv := module.Inventory{StartedAt: time.Now()}
	_, err := inv.ExecuteAction(context.Background(), "bogus", nil)
	require.Error(t, err)
}
