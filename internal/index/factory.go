// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemo Contributors

package index

import (
	"sync"

	mnemoerr "github.com/mnemo-dev/mnemo/pkg/errors"
)

// Config selects and parameterizes the snapshot backend.
type Config struct {
	Backend string
	Dir     string
}

// Factory creates a Backend from a backend config.
type Factory func(cfg *Config) (Backend, error)

var (
	factories   = map[string]Factory{}
	factoriesMu sync.RWMutex
)

// RegisterBackend registers a factory for a named snapshot backend.
// Backend packages call this from init(). Goroutine-safe.
func RegisterBackend(name string, factory Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[name] = factory
}

// resolveBackend returns the effective backend name, defaulting to sqlite-vec.
func resolveBackend(cfg *Config) string {
	if cfg.Backend == "" {
		return "sqlite-vec"
	}
	return cfg.Backend
}

// New creates the snapshot backend for the configured name.
func New(cfg *Config) (Backend, error) {
	backend := resolveBackend(cfg)

	factoriesMu.RLock()
	factory, ok := factories[backend]
	factoriesMu.RUnlock()
	if !ok {
		return nil, mnemoerr.Errorf(mnemoerr.CodeIndexBackendUnsupported, "unsupported index backend: %q", backend)
	}

	return factory(cfg)
}
