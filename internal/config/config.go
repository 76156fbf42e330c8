// Package config loads the agent's runtime configuration from a .env
// file (when present) and the process environment, the same layering
// the source agent used.
package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config carries the configuration inputs named in §6 of the spec plus
// the supervisor's tunables.
type Config struct {
	SpoolDir          string
	CACertPath        string
	ClientCertPath    string
	ClientKeyPath     string
	ServerFingerprint string // optional, pins the broker's leaf cert
	BrokerURL         string
	BrokerEndpoint    string // broker URI used as the sole login endpoint
	AgentURI          string
	ExternalModDir    string
	HeartbeatPeriod   time.Duration
	MsgTimeout        time.Duration
	WorkerLimit       int
}

// Load reads a .env file if one is present and overlays the
// environment. Any failure to load .env, a missing file included, is
// logged and otherwise ignored.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("config: .env file not found, relying on environment variables")
	}

	cfg := &Config{
		SpoolDir:          ensureTrailingSep(getEnv("AGENT_SPOOL_DIR", "/var/lib/rpc-agent/spool/")),
		CACertPath:        getEnv("AGENT_CA_CERT", "./certs/ca.crt"),
		ClientCertPath:    getEnv("AGENT_CLIENT_CERT", "./certs/client.crt"),
		ClientKeyPath:     getEnv("AGENT_CLIENT_KEY", "./certs/client.key"),
		ServerFingerprint: strings.TrimSpace(getEnv("AGENT_SERVER_FINGERPRINT", "")),
		BrokerURL:         getEnv("AGENT_BROKER_URL", "wss://localhost:8443/agent/connect"),
		BrokerEndpoint:    getEnv("AGENT_BROKER_ENDPOINT", "cth://server"),
		AgentURI:          getEnv("AGENT_URI", "cth://localhost/agent"),
		ExternalModDir:    getEnv("AGENT_MODULES_DIR", "./modules"),
		HeartbeatPeriod:   30 * time.Second,
		MsgTimeout:        5 * time.Second,
		WorkerLimit:       32,
	}

	if cfg.SpoolDir == "" {
		return nil, fmt.Errorf("config: spool-dir must not be empty")
	}
	return cfg, nil
}

func ensureTrailingSep(dir string) string {
	if dir == "" {
		return dir
	}
	if strings.HasSuffix(dir, string(os.PathSeparator)) {
		return dir
	}
	return dir + string(os.PathSeparator)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
