package config

import (
	"os"
	"sort"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
)

// writebackDelay is how long the Manager waits after a config goes
// dirty before clearing its dirty bit, so a burst of setter calls is
// coalesced into one writeback event. That event writes no config
// field to disk; only the current selection is persisted (SetCurrent).
// Matches the teacher's 3s debounce knobs
// (e.g. OrchestratorConfig.PollInterval-adjacent settle windows).
const writebackDelay = 3 * time.Second

// Provider supplies an ordered set of configs, e.g. one per plugin
// that contributes build configurations (a meson/cmake/etc. backend).
// Grounded on ide-config-provider.c.
type Provider interface {
	ID() string
	Configs() []*Config
}

// selection is the on-disk persisted state: one scalar per project,
// the user-chosen config id (§6 "Persisted state").
type selection struct {
	CurrentID string `toml:"current_id"`
}

// Manager orders configuration providers, exposes the ordered list,
// tracks the current selection, and debounces clearing of dirty
// configs' dirty bits (config fields are not persisted). Grounded on ide-config-manager.c.
type Manager struct {
	mu sync.Mutex

	providers  []Provider
	statePath  string
	current    *Config
	userChosen bool

	pending map[string]*time.Timer

	onCurrentChanged func(*Config)
}

// NewManager creates a Manager persisting the current selection under
// statePath (a TOML file).
func NewManager(statePath string) *Manager {
	return &Manager{
		statePath: statePath,
		pending:   make(map[string]*time.Timer),
	}
}

// OnCurrentChanged installs the callback invoked whenever the current
// config selection changes (including at load time).
func (m *Manager) OnCurrentChanged(fn func(*Config)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onCurrentChanged = fn
}

// AddProvider registers a provider and re-sorts the provider list by
// ID so ordering is deterministic regardless of registration order.
func (m *Manager) AddProvider(p Provider) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.providers = append(m.providers, p)
	sort.Slice(m.providers, func(i, j int) bool {
		return m.providers[i].ID() < m.providers[j].ID()
	})
}

// Configs returns every config across every provider, in provider
// order, each wired to mark pending writeback on change.
func (m *Manager) Configs() []*Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.configsLocked()
}

func (m *Manager) configsLocked() []*Config {
	var all []*Config
	for _, p := range m.providers {
		for _, c := range p.Configs() {
			c.OnChange(m.scheduleWriteback)
			all = append(all, c)
		}
	}
	return all
}

// Load determines the current config: the persisted id if the
// provider set still has it, else the provider-chosen default (first
// config of the first provider), and notifies observers once.
func (m *Manager) Load() (*Config, error) {
	var persisted selection
	if data, err := os.ReadFile(m.statePath); err == nil {
		if _, err := toml.Decode(string(data), &persisted); err != nil {
			return nil, err
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	m.mu.Lock()
	all := m.configsLocked()

	var chosen *Config
	if persisted.CurrentID != "" {
		for _, c := range all {
			if c.ID == persisted.CurrentID {
				chosen = c
				break
			}
		}
	}
	userChosen := chosen != nil
	if chosen == nil && len(all) > 0 {
		chosen = all[0] // provider-chosen default
	}
	m.current = chosen
	m.userChosen = userChosen
	cb := m.onCurrentChanged
	m.mu.Unlock()

	if cb != nil {
		cb(chosen)
	}
	return chosen, nil
}

// Current returns the currently selected config, or nil if none.
func (m *Manager) Current() *Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// SetCurrent selects a config by id and persists the selection
// synchronously (selection itself is not debounced; only dirty-config
// field writeback is).
func (m *Manager) SetCurrent(id string) error {
	m.mu.Lock()
	all := m.configsLocked()
	var chosen *Config
	for _, c := range all {
		if c.ID == id {
			chosen = c
			break
		}
	}
	if chosen == nil {
		m.mu.Unlock()
		return os.ErrNotExist
	}
	m.current = chosen
	m.userChosen = true
	cb := m.onCurrentChanged
	m.mu.Unlock()

	if err := m.persistSelection(id); err != nil {
		return err
	}
	if cb != nil {
		cb(chosen)
	}
	return nil
}

func (m *Manager) persistSelection(id string) error {
	f, err := os.Create(m.statePath)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(selection{CurrentID: id})
}

// scheduleWriteback clears a dirty config's dirty bit writebackDelay
// after its last mutation, coalescing repeated mutations of the same
// config. It writes nothing to disk.
func (m *Manager) scheduleWriteback(c *Config) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if t, ok := m.pending[c.ID]; ok {
		t.Stop()
	}
	m.pending[c.ID] = time.AfterFunc(writebackDelay, func() {
		c.ClearDirty()
		m.mu.Lock()
		delete(m.pending, c.ID)
		m.mu.Unlock()
	})
}

// FlushPending stops every pending writeback timer and clears the dirty
// bit of every dirty config at once. It writes nothing to disk.
func (m *Manager) FlushPending() {
	m.mu.Lock()
	pending := make([]*time.Timer, 0, len(m.pending))
	for _, t := range m.pending {
		pending = append(pending, t)
	}
	m.mu.Unlock()
	for _, t := range pending {
		t.Stop()
	}
	for _, c := range m.Configs() {
		if c.Dirty() {
			c.ClearDirty()
		}
	}
}
