// Package spool implements the crash-safe on-disk job store (C1).
// Every write is a whole-file replacement; the spool's durability
// guarantee is "eventually visible on disk after return" — no fsync is
// required by the protocol (§4.1).
package spool

import (
	"os"
	"path/filepath"

	"github.com/agentic/rpc-agent/internal/agenterr"
)

// Store creates per-job directories under a fixed root and writes their
// status/stdout/stderr files.
type Store struct {
	root string
}

// New ensures the configured spool root exists, creating it if absent.
// Failure to create it is fatal to the agent (§4.1, §7).
func New(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, &agenterr.Fatal{Op: "create spool root", Err: err}
	}
	return &Store{root: root}, nil
}

// CreateJobDir creates <root>/<jobID> and returns its path. Failure is
// a request-processing error (§3 invariants, §4.5 step 2).
func (s *Store) CreateJobDir(jobID string) (string, error) {
	dir := filepath.Join(s.root, jobID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", &agenterr.RequestProcessing{Reason: "failed to create directory '" + dir + "': " + err.Error()}
	}
	return dir, nil
}

// Write truncates and rewrites <dir>/<filename> with text in full.
// Failure is a *file* error (§4.1, §7): logged, best-effort, never
// fatal to the agent.
func (s *Store) Write(dir, filename, text string) error {
	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return &agenterr.File{Op: "write " + path, Err: err}
	}
	return nil
}

// Root returns the configured spool root, mainly for diagnostics.
func (s *Store) Root() string { return s.root }
