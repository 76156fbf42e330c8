// Package registry implements the module registry (C2): it registers
// the built-in modules and scans the external-module directory at
// startup, then serves read-only lookups for the lifetime of the
// agent (§4.2). Mirrors AgentEndpoint's constructor and
// list_modules() in the original implementation.
package registry

import (
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/agentic/rpc-agent/internal/extmodule"
	"github.com/agentic/rpc-agent/internal/module"
)

// Registry is populated once and thereafter read-only; no runtime
// reload (§4.2).
type Registry struct {
	modules map[string]module.Module
}

// Load registers the built-in modules and scans externalModDir for
// external modules, instantiating an adapter for each regular file
// found. A module that fails to load is logged and skipped, not fatal
// to the agent (mirrors the original's per-file try/catch).
func Load(externalModDir string) *Registry {
	r := &Registry{modules: make(map[string]module.Module)}

	r.register(module.Echo{})
	r.register(module.Inventory{StartedAt: time.Now()})
	r.register(module.Ping{})

	entries, err := os.ReadDir(externalModDir)
	if err != nil {
		log.Printf("registry: no external modules loaded from %q: %v", externalModDir, err)
	} else {
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			path := filepath.Join(externalModDir, entry.Name())
			adapter, err := extmodule.Load(path)
			if err != nil {
				log.Printf("registry: failed to load external module %q: %v", path, err)
				continue
			}
			r.register(adapter)
		}
	}

	r.list()
	return r
}

func (r *Registry) register(m module.Module) {
	r.modules[m.Name()] = m
}

// Lookup resolves (module_name). A miss surfaces as a *validation*
// error at the caller (§4.2, §7).
func (r *Registry) Lookup(name string) (module.Module, bool) {
	m, ok := r.modules[name]
	return m, ok
}

func (r *Registry) list() {
	log.Println("registry: loaded modules:")
	for name, m := range r.modules {
		log.Printf("registry:   %s", name)
		for action := range m.Actions() {
			log.Printf("registry:       %s", action)
		}
	}
}
