// Package config models a build configuration and the manager that
// orders, selects, and persists configurations on behalf of the build
// manager. Grounded on ide-config.c / ide-config-manager.c and on the
// teacher's internal/config (TOML-backed settings, dirty/sequence
// bookkeeping borrowed from its LoggingConfig/AgentConfig shape).
package config

import (
	"fmt"
	"sync"
)

// Locality constrains where a config's build artifacts may live.
type Locality string

const (
	InTree    Locality = "in_tree"
	OutOfTree Locality = "out_of_tree"
	Default   Locality = "default" // both
)

// Config is one named build configuration.
type Config struct {
	mu sync.Mutex

	ID          string
	DisplayName string
	RuntimeID   string
	ToolchainID string
	AppID       string

	Prefix    string
	PrefixSet bool

	ConfigOpts         []string
	RunOpts            []string
	BuildCommands      []string
	PostInstallCmds    []string
	PrependPath        []string
	AppendPath         []string
	Environment        map[string]string
	RuntimeEnvironment map[string]string

	Parallelism int
	Debug       bool
	Locality    Locality

	dirty bool
	seq   uint64

	// onChange is invoked after a mutation unless suppressed (§4.10
	// invariant: "emitting the change signal can be blocked during
	// internal mutation to avoid feedback loops").
	onChange   func(*Config)
	suppressed bool
}

// New creates a Config with the given id, defaulting Locality to Default.
func New(id string) *Config {
	return &Config{
		ID:                 id,
		Locality:           Default,
		Environment:        make(map[string]string),
		RuntimeEnvironment: make(map[string]string),
	}
}

// OnChange installs the callback invoked after every field mutation
// (unless mutation is happening inside Suppress).
func (c *Config) OnChange(fn func(*Config)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = fn
}

// Suppress runs fn with change notification disabled, preventing the
// feedback loop a persistence-triggered re-load could otherwise cause.
func (c *Config) Suppress(fn func()) {
	c.mu.Lock()
	c.suppressed = true
	c.mu.Unlock()

	fn()

	c.mu.Lock()
	c.suppressed = false
	c.mu.Unlock()
}

// Dirty reports whether the config has unpersisted changes.
func (c *Config) Dirty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dirty
}

// Seq returns the monotonic sequence counter. It never decreases.
func (c *Config) Seq() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// markChanged sets dirty, bumps the sequence, and notifies observers.
// Must be called with c.mu held.
func (c *Config) markChanged() {
	c.dirty = true
	c.seq++
	if c.onChange != nil && !c.suppressed {
		cb := c.onChange
		c.mu.Unlock()
		cb(c)
		c.mu.Lock()
	}
}

// ClearDirty resets the dirty bit after a successful persist. It does
// not touch the sequence counter.
func (c *Config) ClearDirty() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dirty = false
}

// SetDisplayName sets the display name, marking the config dirty.
func (c *Config) SetDisplayName(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.DisplayName = name
	c.markChanged()
}

// SetRuntimeID sets the runtime id, marking the config dirty.
func (c *Config) SetRuntimeID(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.RuntimeID = id
	c.markChanged()
}

// SetToolchainID sets the toolchain id, marking the config dirty.
func (c *Config) SetToolchainID(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ToolchainID = id
	c.markChanged()
}

// SetPrefix sets an explicit install prefix, marking the config dirty.
func (c *Config) SetPrefix(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Prefix = prefix
	c.PrefixSet = true
	c.markChanged()
}

// SetParallelism sets the build parallelism, marking the config dirty.
func (c *Config) SetParallelism(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Parallelism = n
	c.markChanged()
}

// SetDebug toggles the debug build flag, marking the config dirty.
func (c *Config) SetDebug(debug bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Debug = debug
	c.markChanged()
}

// SetEnv sets an environment variable, marking the config dirty.
func (c *Config) SetEnv(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Environment[key] = value
	c.markChanged()
}

// ResolvedPath returns PATH with PrependPath/AppendPath applied around
// base, joined with os-appropriate separators by the caller.
func (c *Config) ResolvedPath(base []string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.PrependPath)+len(base)+len(c.AppendPath))
	out = append(out, c.PrependPath...)
	out = append(out, base...)
	out = append(out, c.AppendPath...)
	return out
}

func (c *Config) String() string {
	return fmt.Sprintf("Config{id=%s runtime=%s toolchain=%s}", c.ID, c.RuntimeID, c.ToolchainID)
}
