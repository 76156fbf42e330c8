// Package extmodule implements the external, subprocess-backed module
// adapter (C3): every regular file found in the external-modules
// directory is wrapped by one Adapter and exposed through the same
// module.Module interface as the built-ins, the way the manifest-driven
// script runner in the teacher codebase (internal/runner/manifest.go,
// internal/runner/executor.go) turned an allowlisted script into a
// callable action — generalized here to arbitrary subprocess modules
// instead of a fixed shell-script allowlist, and without the
// sandboxing Non-goal §1 excludes.
package extmodule

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/agentic/rpc-agent/internal/agenterr"
	"github.com/agentic/rpc-agent/internal/module"
)

// introspectArg is passed to the subprocess once at load time so it can
// describe its own action list and schemas (§4.3: "implementation may
// call with a well-known argument or read a sidecar manifest").
const introspectArg = "--metadata"

// introspectTimeout bounds the one-time startup introspection call;
// the spec places no deadline on actual action invocations (§5), but an
// introspection call that never returns would hang agent startup.
const introspectTimeout = 10 * time.Second

type metadataAction struct {
	Name   string          `json:"name"`
	Input  json.RawMessage `json:"input,omitempty"`
	Output json.RawMessage `json:"output,omitempty"`
}

type metadataResponse struct {
	Actions []metadataAction `json:"actions"`
}

// Adapter is a module.Module backed by an external executable.
type Adapter struct {
	path    string
	name    string
	actions map[string]module.ActionDescriptor
}

// Load instantiates an adapter for the executable at path, running its
// one-time introspection call to learn its action list and schemas.
func Load(path string) (*Adapter, error) {
	actions, err := introspect(path)
	if err != nil {
		return nil, err
	}
	return &Adapter{
		path:    path,
		name:    filepath.Base(path),
		actions: actions,
	}, nil
}

func introspect(path string) (map[string]module.ActionDescriptor, error) {
	// A sidecar manifest is cheaper and more predictable than spawning
	// the binary when one is present.
	if b, err := os.ReadFile(path + ".manifest.json"); err == nil {
		var resp metadataResponse
		if jsonErr := json.Unmarshal(b, &resp); jsonErr == nil {
			return toDescriptors(resp), nil
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), introspectTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, path, introspectArg)
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("introspecting external module %q: %w", path, err)
	}
	var resp metadataResponse
	if err := json.Unmarshal(out, &resp); err != nil {
		return nil, fmt.Errorf("introspecting external module %q: invalid metadata: %w", path, err)
	}
	return toDescriptors(resp), nil
}

func toDescriptors(resp metadataResponse) map[string]module.ActionDescriptor {
	descriptors := make(map[string]module.ActionDescriptor, len(resp.Actions))
	for _, a := range resp.Actions {
		descriptors[a.Name] = module.ActionDescriptor{
			Name:         a.Name,
			InputSchema:  a.Input,
			OutputSchema: a.Output,
		}
	}
	return descriptors
}

func (a *Adapter) Name() string                          { return a.name }
func (a *Adapter) Actions() map[string]module.ActionDescriptor { return a.actions }

// ExecuteAction spawns the subprocess, feeds it params on stdin, and
// captures stdout/stderr to completion (§4.3 steps 1-4).
func (a *Adapter) ExecuteAction(ctx context.Context, action string, params json.RawMessage) (module.Outcome, error) {
	if _, ok := a.actions[action]; !ok {
		return module.Outcome{}, &agenterr.Request{Reason: fmt.Sprintf("unknown action '%s.%s'", a.name, action)}
	}

	start := time.Now()
	cmd := exec.CommandContext(ctx, a.path, action)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return module.Outcome{}, &agenterr.Request{Reason: "failed to open stdin: " + err.Error()}
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return module.Outcome{}, &agenterr.Request{Reason: "failed to start subprocess: " + err.Error()}
	}

	if len(params) > 0 {
		_, _ = stdin.Write(params)
	}
	_ = stdin.Close()

	waitErr := cmd.Wait()

	if waitErr != nil {
		return module.Outcome{}, &agenterr.Request{Reason: stderr.String()}
	}
	if !json.Valid(stdout.Bytes()) {
		return module.Outcome{}, &agenterr.Request{Reason: stderr.String()}
	}

	return module.Outcome{
		Type:        module.External,
		Results:     json.RawMessage(stdout.Bytes()),
		Stdout:      stdout.String(),
		Stderr:      stderr.String(),
		CompletedAt: time.Now(),
		Duration:    time.Since(start),
	}, nil
}
