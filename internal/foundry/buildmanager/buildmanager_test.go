package buildmanager

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/akatz-ai/tmplfoundry/internal/errs"
	"github.com/akatz-ai/tmplfoundry/internal/foundry/config"
	"github.com/akatz-ai/tmplfoundry/internal/foundry/device"
	"github.com/akatz-ai/tmplfoundry/internal/foundry/diagnostic"
	"github.com/akatz-ai/tmplfoundry/internal/foundry/pipeline"
	"github.com/akatz-ai/tmplfoundry/internal/foundry/provider"
	"github.com/akatz-ai/tmplfoundry/internal/foundry/runtime"
	"github.com/akatz-ai/tmplfoundry/internal/foundry/target"
	"github.com/akatz-ai/tmplfoundry/internal/foundry/toolchain"
)

type stubRuntimeProvider struct{ id string }

func (p *stubRuntimeProvider) ID() string    { return p.id }
func (p *stubRuntimeProvider) Load() error   { return nil }
func (p *stubRuntimeProvider) Unload() error { return nil }
func (p *stubRuntimeProvider) CanInstall(id string) bool { return true }
func (p *stubRuntimeProvider) BootstrapAsync(ctx context.Context, id string) (runtime.Runtime, error) {
	return runtime.Runtime{ID: id, DisplayName: id}, nil
}

type stubTargetProvider struct {
	id      string
	targets []target.Target
	err     error
}

func (p *stubTargetProvider) ID() string    { return p.id }
func (p *stubTargetProvider) Load() error   { return nil }
func (p *stubTargetProvider) Unload() error { return nil }
func (p *stubTargetProvider) ListTargets() ([]target.Target, error) {
	return p.targets, p.err
}

type blockingSaver struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newBlockingSaver() *blockingSaver {
	return &blockingSaver{entered: make(chan struct{}), release: make(chan struct{})}
}

func (s *blockingSaver) SaveAll(ctx context.Context) error {
	s.once.Do(func() { close(s.entered) })
	<-s.release
	return nil
}

type noopSaver struct{}

func (noopSaver) SaveAll(ctx context.Context) error { return nil }

func newTestManager(t *testing.T, saver BufferSaver) *Manager {
	t.Helper()
	cfg := config.New("cfg1")
	cfg.SetRuntimeID("host")
	cfg.SetToolchainID("gcc")

	dev := device.NewStatic("host", device.Info{Kind: "local", HostTriplet: "x86_64-pc-linux-gnu"})

	runtimes := runtime.NewManager()
	if err := runtimes.AddProvider(&stubRuntimeProvider{id: "host-provider"}); err != nil {
		t.Fatal(err)
	}

	toolchains := toolchain.NewManager()
	toolchains.Register(toolchain.Toolchain{ID: "gcc", DisplayName: "GCC"})

	targets := provider.NewSet[target.Provider]()

	return New(cfg, "host", dev, runtimes, toolchains, targets, saver, func(configID, deviceID string) pipeline.Pipeline {
		return pipeline.NewMemory(configID, deviceID)
	})
}

func TestStartReachesCanBuild(t *testing.T) {
	m := newTestManager(t, noopSaver{})
	if err := m.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !m.CanBuild() {
		t.Error("expected CanBuild true after Start")
	}
	if m.Pipeline() == nil {
		t.Error("expected a pipeline after Start")
	}
}

func TestInvalidateReplacesPipeline(t *testing.T) {
	m := newTestManager(t, noopSaver{})
	if err := m.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	oldID := m.Pipeline().ID()

	cfg := config.New("cfg2")
	cfg.SetRuntimeID("host")
	cfg.SetToolchainID("gcc")
	if err := m.SetConfig(context.Background(), cfg); err != nil {
		t.Fatal(err)
	}
	if m.Pipeline().ID() == oldID {
		t.Error("expected a new pipeline identity after SetConfig")
	}
	if !m.CanBuild() {
		t.Error("expected CanBuild true after re-invalidate")
	}
}

func TestInvalidateMarksBrokenOnToolchainFailure(t *testing.T) {
	m := newTestManager(t, noopSaver{})
	cfg := config.New("cfg1")
	cfg.SetRuntimeID("host")
	cfg.SetToolchainID("does-not-exist")
	m.cfg = cfg

	var warnings int
	m.OnDiagnostic(func(d diagnostic.Diagnostic) {
		if d.Severity == diagnostic.Warning {
			warnings++
		}
	})

	err := m.Start(context.Background())
	if err == nil {
		t.Fatal("expected error from broken preparation chain")
	}
	if m.CanBuild() {
		t.Error("expected CanBuild false after broken preparation")
	}
	if m.Pipeline() == nil {
		t.Error("expected pipeline to still be set (broken, not nil)")
	}
	if warnings != 1 {
		t.Errorf("got %d warning diagnostics, want 1", warnings)
	}
}

func TestBuildRequiresCanBuild(t *testing.T) {
	m := newTestManager(t, noopSaver{})
	err := m.Build(context.Background(), pipeline.PhaseBuild, nil)
	if !errs.HasKind(err, errs.InvalidState) {
		t.Fatalf("got %v, want InvalidState", err)
	}
}

func TestBuildHappyPathEmitsSignals(t *testing.T) {
	m := newTestManager(t, noopSaver{})
	if err := m.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	var started, finished, failed int
	m.OnBuildStarted(func(p pipeline.Pipeline) { started++ })
	m.OnBuildFinished(func(p pipeline.Pipeline) { finished++ })
	m.OnBuildFailed(func(p pipeline.Pipeline) { failed++ })

	if err := m.Build(context.Background(), pipeline.PhaseBuild, nil); err != nil {
		t.Fatal(err)
	}
	if started != 1 || finished != 1 || failed != 0 {
		t.Errorf("got started=%d finished=%d failed=%d", started, finished, failed)
	}
	if m.LastBuildTime().IsZero() {
		t.Error("expected LastBuildTime to be set")
	}
	if !m.CanExport() {
		t.Error("expected CanExport true after reaching PhaseBuild")
	}
}

func TestBuildFailurePathEmitsFailed(t *testing.T) {
	m := newTestManager(t, noopSaver{})
	if err := m.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	mem := m.Pipeline().(*pipeline.Memory)
	mem.FailAdvance = true

	var failed, finished int
	m.OnBuildFailed(func(p pipeline.Pipeline) { failed++ })
	m.OnBuildFinished(func(p pipeline.Pipeline) { finished++ })

	if err := m.Build(context.Background(), pipeline.PhaseBuild, nil); err == nil {
		t.Fatal("expected error")
	}
	if failed != 1 || finished != 0 {
		t.Errorf("got failed=%d finished=%d", failed, finished)
	}
}

func TestBuildSingleInFlightPerAction(t *testing.T) {
	saver := newBlockingSaver()
	m := newTestManager(t, saver)
	if err := m.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() {
		done <- m.Build(context.Background(), pipeline.PhaseBuild, nil)
	}()
	<-saver.entered

	err := m.Build(context.Background(), pipeline.PhaseBuild, nil)
	if !errs.HasKind(err, errs.InvalidState) {
		t.Fatalf("got %v, want InvalidState for concurrent build", err)
	}

	close(saver.release)
	if err := <-done; err != nil {
		t.Fatal(err)
	}
}

func TestBuildResolvesDefaultTarget(t *testing.T) {
	m := newTestManager(t, noopSaver{})
	if err := m.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	want := target.Target{Name: "app", Kind: target.KindExecutable}
	if err := m.targets.Add(&stubTargetProvider{id: "fixtures", targets: []target.Target{want}}); err != nil {
		t.Fatal(err)
	}
	m.SetDefaultBuildTarget("app")

	if err := m.Build(context.Background(), pipeline.PhaseBuild, nil); err != nil {
		t.Fatal(err)
	}
	mem := m.Pipeline().(*pipeline.Memory)
	if len(mem.LastTargets) != 1 || mem.LastTargets[0].Name != "app" {
		t.Errorf("got LastTargets %+v", mem.LastTargets)
	}
}

func TestListTargetsAsyncAggregates(t *testing.T) {
	m := newTestManager(t, noopSaver{})
	if err := m.targets.Add(&stubTargetProvider{id: "a", targets: []target.Target{{Name: "x"}}}); err != nil {
		t.Fatal(err)
	}
	if err := m.targets.Add(&stubTargetProvider{id: "b", targets: []target.Target{{Name: "y"}}}); err != nil {
		t.Fatal(err)
	}
	all, err := m.ListTargetsAsync(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Errorf("got %d targets, want 2", len(all))
	}
}

func TestListTargetsAsyncFailsWhenEmpty(t *testing.T) {
	m := newTestManager(t, noopSaver{})
	if err := m.targets.Add(&stubTargetProvider{id: "a", err: errors.New("boom")}); err != nil {
		t.Fatal(err)
	}
	_, err := m.ListTargetsAsync(context.Background())
	if !errs.HasKind(err, errs.NotSupported) {
		t.Fatalf("got %v, want NotSupported", err)
	}
}

func TestObserveBranchOnlyInvalidatesOnChange(t *testing.T) {
	m := newTestManager(t, noopSaver{})
	if err := m.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	firstID := m.Pipeline().ID()

	if err := m.ObserveBranch(context.Background(), "main"); err != nil {
		t.Fatal(err)
	}
	if m.Pipeline().ID() == firstID {
		t.Error("expected invalidate on first branch observation")
	}
	secondID := m.Pipeline().ID()

	if err := m.ObserveBranch(context.Background(), "main"); err != nil {
		t.Fatal(err)
	}
	if m.Pipeline().ID() != secondID {
		t.Error("expected no invalidate for unchanged branch")
	}
}

func TestRunningTimeZeroWhenIdle(t *testing.T) {
	m := newTestManager(t, noopSaver{})
	if got := m.RunningTime(); got != 0 {
		t.Errorf("got %v, want 0", got)
	}
}

func TestCancelReplacesMasterToken(t *testing.T) {
	m := newTestManager(t, noopSaver{})
	if err := m.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	oldCtx := m.masterCtx
	m.Cancel()
	select {
	case <-oldCtx.Done():
	case <-time.After(time.Second):
		t.Fatal("expected old master context to be cancelled")
	}
	if m.masterCtx.Err() != nil {
		t.Error("expected new master context to be alive")
	}
}
