// Package buildmanager implements the build manager of spec.md §3
// "BuildManager" and §4.8: it owns the current pipeline, reacts to
// configuration/device/branch changes by invalidating and rebuilding
// it, dispatches build/clean/rebuild/install/export, and tracks
// diagnostic counters and running time. Grounded on the concurrency
// shape of the teacher's internal/orchestrator/orchestrator.go (mutex-
// guarded state, goroutine-dispatched async operations, a master
// cancellation token each operation chains into).
package buildmanager

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

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

// BufferSaver is the buffer-manager collaborator capability spec.md
// §4.8 references: "first save-all open modified buffers".
type BufferSaver interface {
	SaveAll(ctx context.Context) error
}

// PipelineFactory constructs a fresh pipeline for (configID, deviceID),
// the shape Invalidate needs each time it tears down and reallocates.
type PipelineFactory func(configID, deviceID string) pipeline.Pipeline

// PipelineHandler receives the current pipeline on a build-started,
// build-failed, or build-finished signal (spec.md §6).
type PipelineHandler func(pipeline.Pipeline)

// NotifyHandler mirrors pipeline.NotifyHandler for the manager's own
// busy/message signal.
type NotifyHandler func(busy bool, message string)

// DiagnosticHandler mirrors pipeline.DiagnosticHandler for diagnostics
// that have already been folded into the manager's counters.
type DiagnosticHandler func(diagnostic.Diagnostic)

// Manager is the BuildManager of spec.md §3: cancellation token,
// current pipeline, last build time, branch name, default build
// target, diagnostic/warning/error counters, running-time timer, and
// the {started, can_build, building, needs_rediagnose, has_configured}
// flag set.
type Manager struct {
	mu sync.Mutex

	dev        device.Device
	runtimes   *runtime.Manager
	toolchains *toolchain.Manager
	targets    *provider.Set[target.Provider]
	saver      BufferSaver
	newPipeline PipelineFactory

	cfg      *config.Config
	deviceID string
	branch   string

	current  pipeline.Pipeline
	started  bool
	canBuild bool
	building bool

	needsRediagnose bool
	hasConfigured   bool

	defaultBuildTarget string
	lastBuildTime      time.Time
	buildStart         time.Time

	diagCounter diagnostic.Counter

	inFlight map[string]bool

	masterCtx    context.Context
	masterCancel context.CancelFunc
	shuttingDown bool

	timerCancel context.CancelFunc

	onBuildStarted  PipelineHandler
	onBuildFailed   PipelineHandler
	onBuildFinished PipelineHandler
	onNotify        NotifyHandler
	onDiagnostic    DiagnosticHandler
	onRediagnose    func()
}

// New constructs a Manager bound to its collaborators. cfg and
// deviceID identify the initial (config, device) pair; dev answers
// device.info_async for deviceID.
func New(cfg *config.Config, deviceID string, dev device.Device, runtimes *runtime.Manager, toolchains *toolchain.Manager, targets *provider.Set[target.Provider], saver BufferSaver, factory PipelineFactory) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		dev:          dev,
		runtimes:     runtimes,
		toolchains:   toolchains,
		targets:      targets,
		saver:        saver,
		newPipeline:  factory,
		cfg:          cfg,
		deviceID:     deviceID,
		inFlight:     make(map[string]bool),
		masterCtx:    ctx,
		masterCancel: cancel,
	}
}

// Observable state (spec.md §6 build-manager action surface).

func (m *Manager) Started() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started
}

func (m *Manager) Busy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.building
}

func (m *Manager) CanBuild() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.canBuild && !m.building
}

func (m *Manager) CanExport() bool {
	m.mu.Lock()
	p := m.current
	busy := m.building
	m.mu.Unlock()
	if p == nil || busy {
		return false
	}
	return p.CanExport()
}

func (m *Manager) Pipeline() pipeline.Pipeline {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

func (m *Manager) ErrorCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.diagCounter.Error
}

func (m *Manager) WarningCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.diagCounter.Warning
}

func (m *Manager) HasDiagnostics() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.diagCounter.HasDiagnostics()
}

func (m *Manager) LastBuildTime() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastBuildTime
}

func (m *Manager) RunningTime() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.building {
		return 0
	}
	return time.Since(m.buildStart)
}

func (m *Manager) DefaultBuildTarget() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.defaultBuildTarget
}

// SetDefaultBuildTarget sets the default-build-target(string) command
// of spec.md §6. It does not invalidate the pipeline.
func (m *Manager) SetDefaultBuildTarget(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultBuildTarget = name
}

// Signal registration (spec.md §6: build-started/build-failed/
// build-finished(pipeline), notify(busy|message)).

func (m *Manager) OnBuildStarted(h PipelineHandler)  { m.mu.Lock(); m.onBuildStarted = h; m.mu.Unlock() }
func (m *Manager) OnBuildFailed(h PipelineHandler)   { m.mu.Lock(); m.onBuildFailed = h; m.mu.Unlock() }
func (m *Manager) OnBuildFinished(h PipelineHandler) { m.mu.Lock(); m.onBuildFinished = h; m.mu.Unlock() }
func (m *Manager) OnNotify(h NotifyHandler)          { m.mu.Lock(); m.onNotify = h; m.mu.Unlock() }
func (m *Manager) OnDiagnostic(h DiagnosticHandler)  { m.mu.Lock(); m.onDiagnostic = h; m.mu.Unlock() }

// OnRediagnose installs the callback invoked after a successful build
// reaches Build (or Configure for the first time). Grounded on
// spec.md §4.8: "schedule a rediagnose pass over all open buffers".
func (m *Manager) OnRediagnose(h func()) { m.mu.Lock(); m.onRediagnose = h; m.mu.Unlock() }

func (m *Manager) emitBuildStarted(p pipeline.Pipeline) {
	m.mu.Lock()
	h := m.onBuildStarted
	m.mu.Unlock()
	if h != nil {
		h(p)
	}
}

func (m *Manager) emitBuildFailed(p pipeline.Pipeline) {
	m.mu.Lock()
	h := m.onBuildFailed
	m.mu.Unlock()
	if h != nil {
		h(p)
	}
}

func (m *Manager) emitBuildFinished(p pipeline.Pipeline) {
	m.mu.Lock()
	h := m.onBuildFinished
	m.mu.Unlock()
	if h != nil {
		h(p)
	}
}

func (m *Manager) handleDiagnostic(d diagnostic.Diagnostic) {
	m.mu.Lock()
	m.diagCounter.Add(d)
	h := m.onDiagnostic
	m.mu.Unlock()
	if h != nil {
		h(d)
	}
}

func (m *Manager) handlePipelineNotify(busy bool, message string) {
	h := func() NotifyHandler {
		m.mu.Lock()
		defer m.mu.Unlock()
		return m.onNotify
	}()
	if h != nil {
		h(busy, message)
	}
}

// Start sets started := true and invalidates (spec.md §4.8 "Start").
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	m.started = true
	m.mu.Unlock()
	return m.Invalidate(ctx)
}

// Shutdown marks the manager as shutting down and fires the master
// cancellation token, aborting any in-flight operation. A subsequent
// Invalidate will tear down the current pipeline without building a
// replacement (spec.md §4.8 "if context is shutting down ... do not
// build a new pipeline").
func (m *Manager) Shutdown() {
	m.mu.Lock()
	m.shuttingDown = true
	cancel := m.masterCancel
	m.mu.Unlock()
	cancel()
}

// Cancel replaces the master cancellation token with a fresh one and
// signals the current pipeline to stop (spec.md §5 "Cancellation").
func (m *Manager) Cancel() {
	m.mu.Lock()
	oldCancel := m.masterCancel
	ctx, cancel := context.WithCancel(context.Background())
	m.masterCtx = ctx
	m.masterCancel = cancel
	m.mu.Unlock()
	oldCancel()
}

// mergeCancel derives a context that is cancelled when either caller
// or master is cancelled (spec.md §5: "each dispatched operation
// chains its caller-supplied token with the manager's master token").
func mergeCancel(caller, master context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(caller)
	stop := make(chan struct{})
	go func() {
		select {
		case <-master.Done():
			cancel()
		case <-stop:
		}
	}()
	return ctx, func() {
		close(stop)
		cancel()
	}
}

// SetConfig changes the manager's current config and invalidates.
func (m *Manager) SetConfig(ctx context.Context, cfg *config.Config) error {
	m.mu.Lock()
	m.cfg = cfg
	m.mu.Unlock()
	return m.Invalidate(ctx)
}

// SetDevice changes the manager's current device and invalidates.
func (m *Manager) SetDevice(ctx context.Context, deviceID string, dev device.Device) error {
	m.mu.Lock()
	m.deviceID = deviceID
	m.dev = dev
	m.mu.Unlock()
	return m.Invalidate(ctx)
}

// ObserveBranch invalidates only when name differs from the
// previously observed branch (spec.md §4.8 "VCS observation": "only
// invalidate on a branch-name change, not on arbitrary index changes").
func (m *Manager) ObserveBranch(ctx context.Context, name string) error {
	m.mu.Lock()
	changed := name != m.branch
	if changed {
		m.branch = name
	}
	m.mu.Unlock()
	if !changed {
		return nil
	}
	return m.Invalidate(ctx)
}

// Invalidate tears down the current pipeline (synthesizing a
// build-failed if one was in flight), resets counters, and — unless
// shutting down or not started — allocates and prepares a new
// pipeline for the current (config, device) pair (spec.md §4.8).
func (m *Manager) Invalidate(ctx context.Context) error {
	m.mu.Lock()
	wasBuilding := m.building
	old := m.current
	m.mu.Unlock()

	if wasBuilding {
		if old != nil {
			m.emitBuildFailed(old)
		}
		m.stopTimer()
		m.mu.Lock()
		m.building = false
		m.mu.Unlock()
	}

	m.mu.Lock()
	m.diagCounter.Reset()
	m.current = nil
	m.canBuild = false
	m.hasConfigured = false
	started := m.started
	shuttingDown := m.shuttingDown
	cfg := m.cfg
	deviceID := m.deviceID
	dev := m.dev
	m.mu.Unlock()

	if shuttingDown || ctx.Err() != nil || !started {
		return nil
	}

	p := m.newPipeline(cfg.ID, deviceID)
	p.OnDiagnostic(m.handleDiagnostic)
	p.OnNotify(m.handlePipelineNotify)

	info, err := dev.InfoAsync(ctx)
	if err != nil {
		return m.markBroken(p, err)
	}
	_ = info

	rt, err := m.runtimes.PrepareAsync(ctx, cfg.RuntimeID, p.Runtime())
	if err != nil {
		return m.markBroken(p, err)
	}
	p.AttachRuntime(rt)

	tc, err := m.toolchains.PrepareAsync(ctx, cfg.ToolchainID)
	if err != nil {
		return m.markBroken(p, err)
	}
	p.AttachToolchain(tc)

	if err := p.Init(ctx); err != nil {
		return m.markBroken(p, err)
	}

	m.mu.Lock()
	m.current = p
	m.canBuild = true
	m.mu.Unlock()
	return nil
}

// markBroken records p as the current pipeline (so callers can still
// inspect it) but leaves can_build false, and reports the failure as a
// warning diagnostic (spec.md §4.8: "mark the pipeline broken, emit a
// warning, and leave can_build = false").
func (m *Manager) markBroken(p pipeline.Pipeline, cause error) error {
	m.mu.Lock()
	m.current = p
	m.canBuild = false
	m.mu.Unlock()
	m.handleDiagnostic(diagnostic.Diagnostic{
		Severity: diagnostic.Warning,
		Message:  fmt.Sprintf("pipeline preparation failed: %v", cause),
	})
	return errs.Wrap(errs.RuntimeError, "pipeline preparation failed", cause)
}

func (m *Manager) beginAction(name string) (func(), error) {
	m.mu.Lock()
	if m.inFlight[name] {
		m.mu.Unlock()
		return nil, errs.Newf(errs.InvalidState, "%s already in progress", name)
	}
	m.inFlight[name] = true
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		delete(m.inFlight, name)
		m.mu.Unlock()
	}, nil
}

func (m *Manager) readyPipeline() (pipeline.Pipeline, context.Context, error) {
	m.mu.Lock()
	p := m.current
	canBuild := m.canBuild
	building := m.building
	masterCtx := m.masterCtx
	m.mu.Unlock()
	if p == nil || !canBuild || building {
		return nil, nil, errs.New(errs.InvalidState, "pipeline not ready")
	}
	return p, masterCtx, nil
}

func (m *Manager) beginBuilding() {
	m.mu.Lock()
	m.building = true
	m.buildStart = time.Now()
	m.mu.Unlock()
	m.startTimer()
}

func (m *Manager) endBuilding() {
	m.stopTimer()
	m.mu.Lock()
	m.building = false
	m.mu.Unlock()
}

// startTimer begins a 1 Hz notification while building (spec.md
// §4.8 "Timer").
func (m *Manager) startTimer() {
	m.mu.Lock()
	if m.timerCancel != nil {
		m.timerCancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.timerCancel = cancel
	m.mu.Unlock()

	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.handlePipelineNotify(true, fmt.Sprintf("building (%s)", m.RunningTime().Round(time.Second)))
			}
		}
	}()
}

func (m *Manager) stopTimer() {
	m.mu.Lock()
	cancel := m.timerCancel
	m.timerCancel = nil
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Build requests phase (and, optionally, specific targets) on the
// current pipeline (spec.md §4.8 "build(phase, targets?)").
func (m *Manager) Build(ctx context.Context, phase pipeline.Phase, targets []target.Target) error {
	end, err := m.beginAction("build")
	if err != nil {
		return err
	}
	defer end()

	p, masterCtx, err := m.readyPipeline()
	if err != nil {
		return err
	}

	opCtx, cancelOp := mergeCancel(ctx, masterCtx)
	defer cancelOp()

	m.beginBuilding()
	defer m.endBuilding()
	m.emitBuildStarted(p)

	if phase >= pipeline.PhaseBuild && m.saver != nil {
		if err := m.saver.SaveAll(opCtx); err != nil {
			m.emitBuildFailed(p)
			return errs.Wrap(errs.RuntimeError, "save-all failed", err)
		}
	}

	m.mu.Lock()
	defaultTarget := m.defaultBuildTarget
	m.mu.Unlock()

	if targets == nil && defaultTarget != "" && phase < pipeline.PhaseInstall {
		if all, lerr := m.ListTargetsAsync(opCtx); lerr == nil {
			for _, t := range all {
				if t.Name == defaultTarget {
					targets = []target.Target{t}
					break
				}
			}
		}
	}

	if err := p.Advance(opCtx, phase, targets, false, false); err != nil {
		m.emitBuildFailed(p)
		return err
	}

	m.mu.Lock()
	m.lastBuildTime = time.Now()
	rediagnose := phase >= pipeline.PhaseBuild || !m.hasConfigured
	m.hasConfigured = true
	m.mu.Unlock()

	if rediagnose {
		m.mu.Lock()
		h := m.onRediagnose
		m.mu.Unlock()
		if h != nil {
			h()
		}
	}

	m.emitBuildFinished(p)
	return nil
}

// Clean delegates directly to the pipeline's clean path (spec.md
// §4.8 "clean(phase): direct delegation to pipeline").
func (m *Manager) Clean(ctx context.Context, phase pipeline.Phase) error {
	return m.delegate(ctx, "clean", func(p pipeline.Pipeline, opCtx context.Context) error {
		return p.Advance(opCtx, phase, nil, true, false)
	})
}

// Rebuild delegates directly to the pipeline's rebuild path.
func (m *Manager) Rebuild(ctx context.Context, phase pipeline.Phase, targets []target.Target) error {
	return m.delegate(ctx, "rebuild", func(p pipeline.Pipeline, opCtx context.Context) error {
		return p.Advance(opCtx, phase, targets, false, true)
	})
}

// Install delegates directly to the pipeline.
func (m *Manager) Install(ctx context.Context) error {
	return m.delegate(ctx, "install", func(p pipeline.Pipeline, opCtx context.Context) error {
		return p.Install(opCtx)
	})
}

// Export delegates directly to the pipeline, requiring CanExport.
func (m *Manager) Export(ctx context.Context) error {
	return m.delegate(ctx, "export", func(p pipeline.Pipeline, opCtx context.Context) error {
		if !p.CanExport() {
			return errs.New(errs.InvalidState, "pipeline cannot export")
		}
		return p.Export(opCtx)
	})
}

func (m *Manager) delegate(ctx context.Context, action string, fn func(pipeline.Pipeline, context.Context) error) error {
	end, err := m.beginAction(action)
	if err != nil {
		return err
	}
	defer end()

	p, masterCtx, err := m.readyPipeline()
	if err != nil {
		return err
	}

	opCtx, cancelOp := mergeCancel(ctx, masterCtx)
	defer cancelOp()

	m.beginBuilding()
	defer m.endBuilding()
	m.emitBuildStarted(p)

	if err := fn(p, opCtx); err != nil {
		m.emitBuildFailed(p)
		return err
	}

	m.mu.Lock()
	m.lastBuildTime = time.Now()
	m.mu.Unlock()
	m.emitBuildFinished(p)
	return nil
}

// ListTargetsAsync aggregates every target-provider's targets
// concurrently (spec.md §4.8 "list_targets_async"). Providers are
// queried in parallel via errgroup without WithContext, so one
// provider's failure never cancels the others (SPEC_FULL.md domain-
// stack decision); it fails with NotSupported only when the combined
// result is empty.
func (m *Manager) ListTargetsAsync(ctx context.Context) ([]target.Target, error) {
	providers := m.targets.All()
	results := make([][]target.Target, len(providers))

	g := new(errgroup.Group)
	for i, p := range providers {
		i, p := i, p
		g.Go(func() error {
			ts, err := p.ListTargets()
			if err != nil {
				return err
			}
			results[i] = ts
			return nil
		})
	}
	firstErr := g.Wait()

	var all []target.Target
	for _, ts := range results {
		all = append(all, ts...)
	}
	if len(all) == 0 {
		if firstErr != nil {
			return nil, errs.Wrap(errs.NotSupported, "no provider yielded any target", firstErr)
		}
		return nil, errs.New(errs.NotSupported, "no provider yielded any target")
	}
	return all, nil
}
