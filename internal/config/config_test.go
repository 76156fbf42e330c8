package config_test

import (
	"testing"

	"github.com/agentic/rpc-agent/internal/config"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)
	require.NotEmpty(t, cfg.SpoolDir)
	require.Equal(t, 32, cfg.WorkerLimit)
}

func TestLoadHonorsEnvironmentOverride(t *testing.T) {
	t.Setenv("AGENT_URI", "cth://overridden/agent")
	cfg, err := config.Load()
	require.NoError(t, err)
	require.Equal(t, "cth://overridden/agent", cfg.AgentURI)
}

func TestLoadAddsTrailingSeparatorToSpoolDir(t *testing.T) {
	t.Setenv("AGENT_SPOOL_DIR", "/tmp/spool-no-slash")
	cfg, err := config.Load()
	require.NoError(t, err)
	require.Equal(t, "/tmp/spool-no-slash/", cfg.SpoolDir)
}
