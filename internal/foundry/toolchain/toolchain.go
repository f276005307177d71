// Package toolchain implements the toolchain-manager capability of
// spec.md §4.9: "looks up the toolchain id from the pipeline's
// config; if found, attaches it; else fails." Grounded on
// ide-toolchain-manager.c.
package toolchain

import (
	"context"
	"sync"

	"github.com/akatz-ai/tmplfoundry/internal/errs"
)

// Toolchain is the handle attached to a pipeline once resolved.
type Toolchain struct {
	ID          string
	DisplayName string
	HostTriplet string
}

// Manager holds the set of known toolchains, keyed by id, the way a
// plugin-contributed set of toolchain providers would register them.
type Manager struct {
	mu    sync.RWMutex
	known map[string]Toolchain
}

// NewManager returns an empty Manager.
func NewManager() *Manager {
	return &Manager{known: make(map[string]Toolchain)}
}

// Register adds a known toolchain, overwriting any prior entry with
// the same id.
func (m *Manager) Register(tc Toolchain) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.known[tc.ID] = tc
}

// PrepareAsync looks up toolchainID among the registered toolchains.
func (m *Manager) PrepareAsync(ctx context.Context, toolchainID string) (Toolchain, error) {
	if err := ctx.Err(); err != nil {
		return Toolchain{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	tc, ok := m.known[toolchainID]
	if !ok {
		return Toolchain{}, errs.Newf(errs.RuntimeError, "unknown toolchain %q", toolchainID)
	}
	return tc, nil
}
