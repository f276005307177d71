// Package target implements the BuildTarget contract (spec.md §3
// "BuildTarget") and a TOML-fixture-backed demo Provider so
// list_targets_async has a real aggregable source to exercise end to
// end. Grounded on ide-build-target.c / ide-simple-build-target.c.
package target

import "path/filepath"

// Kind classifies what a Target produces.
type Kind string

const (
	KindNone          Kind = "none"
	KindExecutable    Kind = "executable"
	KindSharedLibrary Kind = "shared_library"
	KindStaticLibrary Kind = "static_library"
	KindFile          Kind = "file"
)

// Target is one build/install/run target a pipeline can produce.
type Target struct {
	Name             string
	DisplayName      string
	InstallDirectory string
	Priority         int
	Argv             []string
	Cwd              string
	Language         string
	Kind             Kind
}

// Normalize fills in the defaults spec.md §3 names: Language defaults
// to "asm", and Argv, when empty, is derived from Name joined onto
// InstallDirectory when both are relative-aware (i.e. InstallDirectory
// is set and Name is not already absolute).
func (t *Target) Normalize() {
	if t.Language == "" {
		t.Language = "asm"
	}
	if len(t.Argv) == 0 && t.InstallDirectory != "" && !filepath.IsAbs(t.Name) {
		t.Argv = []string{filepath.Join(t.InstallDirectory, t.Name)}
	}
}

// Provider aggregates zero or more Targets for a pipeline. Concrete
// providers are plugin-contributed; Provider is the capability the
// build manager's list_targets_async (§4.8) consumes.
type Provider interface {
	ID() string
	Load() error
	Unload() error
	ListTargets() ([]Target, error)
}
