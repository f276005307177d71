package target

import (
	"os"
	"testing"
)

func TestNormalizeDefaultsLanguage(t *testing.T) {
	tg := Target{Name: "app"}
	tg.Normalize()
	if tg.Language != "asm" {
		t.Errorf("got language %q, want asm", tg.Language)
	}
}

func TestNormalizeDerivesArgv(t *testing.T) {
	tg := Target{Name: "app", InstallDirectory: "/usr/local/bin"}
	tg.Normalize()
	if len(tg.Argv) != 1 || tg.Argv[0] != "/usr/local/bin/app" {
		t.Errorf("got argv %v", tg.Argv)
	}
}

func TestNormalizePreservesExplicitArgv(t *testing.T) {
	tg := Target{Name: "app", InstallDirectory: "/usr/local/bin", Argv: []string{"custom"}}
	tg.Normalize()
	if len(tg.Argv) != 1 || tg.Argv[0] != "custom" {
		t.Errorf("got argv %v, want unchanged", tg.Argv)
	}
}

func TestNormalizeSkipsArgvForAbsoluteName(t *testing.T) {
	tg := Target{Name: "/opt/app", InstallDirectory: "/usr/local/bin"}
	tg.Normalize()
	if len(tg.Argv) != 0 {
		t.Errorf("got argv %v, want none derived for absolute name", tg.Argv)
	}
}

func TestFixtureProviderMissingFileYieldsEmpty(t *testing.T) {
	p := NewFixtureProvider("demo", "/nonexistent/targets.toml")
	if err := p.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	targets, err := p.ListTargets()
	if err != nil {
		t.Fatal(err)
	}
	if len(targets) != 0 {
		t.Errorf("got %d targets, want 0", len(targets))
	}
}

func TestFixtureProviderLoadsTOML(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/targets.toml"
	doc := `
[[target]]
name = "hello"
display_name = "Hello World"
install_directory = "/usr/local/bin"
priority = 10
kind = "executable"
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	p := NewFixtureProvider("demo", path)
	if err := p.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	targets, err := p.ListTargets()
	if err != nil {
		t.Fatal(err)
	}
	if len(targets) != 1 {
		t.Fatalf("got %d targets, want 1", len(targets))
	}
	got := targets[0]
	if got.Name != "hello" || got.DisplayName != "Hello World" || got.Priority != 10 {
		t.Errorf("got %+v", got)
	}
	if got.Kind != KindExecutable {
		t.Errorf("got kind %v", got.Kind)
	}
	if len(got.Argv) != 1 || got.Argv[0] != "/usr/local/bin/hello" {
		t.Errorf("got argv %v", got.Argv)
	}
}
