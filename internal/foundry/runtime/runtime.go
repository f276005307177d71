// Package runtime implements the runtime-manager capability of
// spec.md §4.9: "walks its provider set; the first provider that can
// install the pipeline's requested runtime id is asked to
// bootstrap_async; on success, the resulting runtime is attached to
// the pipeline. If no provider matches but a runtime of that id
// already exists, that is treated as success." Grounded on
// ide-runtime-provider.c / ide-runtime-manager.c.
package runtime

import (
	"context"

	"github.com/akatz-ai/tmplfoundry/internal/errs"
	"github.com/akatz-ai/tmplfoundry/internal/foundry/provider"
)

// Runtime is the handle attached to a pipeline once prepared.
type Runtime struct {
	ID          string
	DisplayName string
}

// Provider can bootstrap a Runtime for a requested id.
type Provider interface {
	provider.Extension
	CanInstall(id string) bool
	BootstrapAsync(ctx context.Context, id string) (Runtime, error)
}

// Manager walks a provider set to satisfy a pipeline's requested
// runtime id.
type Manager struct {
	providers *provider.Set[Provider]
}

// NewManager returns a Manager over an empty provider set.
func NewManager() *Manager {
	return &Manager{providers: provider.NewSet[Provider]()}
}

// AddProvider loads and registers p.
func (m *Manager) AddProvider(p Provider) error {
	return m.providers.Add(p)
}

// PrepareAsync resolves requestedID: the first provider whose
// CanInstall(requestedID) is true bootstraps it. If no provider
// matches and existing already carries the requested id, existing is
// returned unchanged (treated as success per spec.md §4.9). Otherwise
// fails.
func (m *Manager) PrepareAsync(ctx context.Context, requestedID string, existing *Runtime) (Runtime, error) {
	for _, p := range m.providers.All() {
		if !p.CanInstall(requestedID) {
			continue
		}
		rt, err := p.BootstrapAsync(ctx, requestedID)
		if err != nil {
			return Runtime{}, errs.Wrapf(errs.RuntimeError, err, "bootstrapping runtime %q via provider %q", requestedID, p.ID())
		}
		return rt, nil
	}
	if existing != nil && existing.ID == requestedID {
		return *existing, nil
	}
	return Runtime{}, errs.Newf(errs.RuntimeError, "no provider can install runtime %q", requestedID)
}
