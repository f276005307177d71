package target

import (
	"os"

	"github.com/BurntSushi/toml"

	"github.com/akatz-ai/tmplfoundry/internal/errs"
)

// fixtureFile is the on-disk shape of a TOML target fixture: a
// top-level list of [[target]] tables.
type fixtureFile struct {
	Target []fixtureTarget `toml:"target"`
}

type fixtureTarget struct {
	Name             string   `toml:"name"`
	DisplayName      string   `toml:"display_name"`
	InstallDirectory string   `toml:"install_directory"`
	Priority         int      `toml:"priority"`
	Argv             []string `toml:"argv"`
	Cwd              string   `toml:"cwd"`
	Language         string   `toml:"language"`
	Kind             string   `toml:"kind"`
}

// FixtureProvider loads a fixed list of Targets from a TOML file on
// Load, so the CLI's `targets` subcommand and list_targets_async have
// at least one real aggregable source. Grounded on
// ide-simple-build-target.c, which likewise exposes a single
// statically-configured target.
type FixtureProvider struct {
	id      string
	path    string
	targets []Target
}

// NewFixtureProvider returns a provider that will load its targets
// from path (a TOML document of `[[target]]` tables) on Load.
func NewFixtureProvider(id, path string) *FixtureProvider {
	return &FixtureProvider{id: id, path: path}
}

func (p *FixtureProvider) ID() string { return p.id }

// Load reads and parses the fixture file. A missing file is not an
// error: the provider simply contributes zero targets (spec.md §7:
// "Provider load failures are logged but never fatal").
func (p *FixtureProvider) Load() error {
	data, err := os.ReadFile(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			p.targets = nil
			return nil
		}
		return errs.Wrapf(errs.RuntimeError, err, "reading target fixture %s", p.path)
	}

	var f fixtureFile
	if _, err := toml.Decode(string(data), &f); err != nil {
		return errs.Wrapf(errs.RuntimeError, err, "parsing target fixture %s", p.path)
	}

	targets := make([]Target, 0, len(f.Target))
	for _, ft := range f.Target {
		t := Target{
			Name:             ft.Name,
			DisplayName:      ft.DisplayName,
			InstallDirectory: ft.InstallDirectory,
			Priority:         ft.Priority,
			Argv:             ft.Argv,
			Cwd:              ft.Cwd,
			Language:         ft.Language,
			Kind:             Kind(ft.Kind),
		}
		if t.Kind == "" {
			t.Kind = KindExecutable
		}
		t.Normalize()
		targets = append(targets, t)
	}
	p.targets = targets
	return nil
}

func (p *FixtureProvider) Unload() error {
	p.targets = nil
	return nil
}

func (p *FixtureProvider) ListTargets() ([]Target, error) {
	return p.targets, nil
}
