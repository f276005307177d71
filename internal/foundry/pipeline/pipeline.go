// Package pipeline defines the Pipeline interface the build manager
// depends on (spec.md §1: "the pipeline's internal stage ordering and
// stage execution is specified as an interface ... not implemented in
// detail") plus a minimal in-memory reference implementation used by
// tests and the demo CLI. Grounded on ide-pipeline.c's phase-ordered
// state machine.
package pipeline

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/akatz-ai/tmplfoundry/internal/errs"
	"github.com/akatz-ai/tmplfoundry/internal/foundry/diagnostic"
	"github.com/akatz-ai/tmplfoundry/internal/foundry/runtime"
	"github.com/akatz-ai/tmplfoundry/internal/foundry/target"
	"github.com/akatz-ai/tmplfoundry/internal/foundry/toolchain"
)

// Phase is a discrete stage a Pipeline progresses through (spec.md
// glossary: "Configure, Build, Install, Export — the set is opaque to
// this spec"). Ordered so `>=` comparisons make sense.
type Phase int

const (
	PhaseNone Phase = iota
	PhaseConfigure
	PhaseBuild
	PhaseInstall
	PhaseExport
)

func (p Phase) String() string {
	switch p {
	case PhaseNone:
		return "none"
	case PhaseConfigure:
		return "configure"
	case PhaseBuild:
		return "build"
	case PhaseInstall:
		return "install"
	case PhaseExport:
		return "export"
	default:
		return "unknown"
	}
}

// State is one of the DAG states spec.md §3 names for Pipeline:
// Unprepared → Initializing → Ready → Running → (Ready | Failed).
type State int

const (
	StateUnprepared State = iota
	StateInitializing
	StateReady
	StateRunning
	StateFailed
)

// DiagnosticHandler receives diagnostics emitted during a pipeline
// operation (the "diagnostic(d)" signal of spec.md §3).
type DiagnosticHandler func(diagnostic.Diagnostic)

// NotifyHandler receives busy/message state changes (the "notify
// (busy|message)" signal of spec.md §3).
type NotifyHandler func(busy bool, message string)

// Pipeline is the capability the build manager drives. ConfigID and
// DeviceID identify the (config, device) pair the pipeline was
// allocated for (spec.md §4.8: "construct a new pipeline with
// (current config, current device)").
type Pipeline interface {
	ID() string
	ConfigID() string
	DeviceID() string
	State() State
	Busy() bool
	Message() string
	CanExport() bool

	// Init drives the pipeline from Unprepared/Initializing to Ready,
	// after the build manager's device/runtime/toolchain preparation
	// chain (§4.9) has already attached runtime/toolchain to it.
	Init(ctx context.Context) error

	// Advance requests phase (and, optionally, specific targets) be
	// reached or re-run. clean/rebuild reuse Advance with different
	// semantics the caller encodes via the clean/rebuild flags.
	Advance(ctx context.Context, phase Phase, targets []target.Target, clean, rebuild bool) error

	// Install and Export are direct operations beyond the phase chain
	// (spec.md §4.8: "clean(phase), rebuild(phase, targets?),
	// install, export: direct delegation to pipeline").
	Install(ctx context.Context) error
	Export(ctx context.Context) error

	OnDiagnostic(DiagnosticHandler)
	OnNotify(NotifyHandler)

	// Runtime and Toolchain expose whatever the preparation chain
	// (§4.9) has attached so far; AttachRuntime/AttachToolchain are
	// called by the build manager as each prepare step succeeds.
	Runtime() *runtime.Runtime
	AttachRuntime(runtime.Runtime)
	Toolchain() *toolchain.Toolchain
	AttachToolchain(toolchain.Toolchain)
}

// Memory is a minimal reference Pipeline: it tracks state and phase
// in memory and calls its handlers synchronously, enough to exercise
// the build manager's state machine and the CLI without a real build
// backend.
type Memory struct {
	mu sync.Mutex

	id       string
	configID string
	deviceID string

	state   State
	phase   Phase
	busy    bool
	message string

	runtime   *runtime.Runtime
	toolchain *toolchain.Toolchain

	diagHandlers   []DiagnosticHandler
	notifyHandlers []NotifyHandler

	// FailInit, when true, makes Init fail (used by tests to exercise
	// the build manager's "pipeline broken" path).
	FailInit bool
	// FailAdvance, when true, makes Advance fail once per call.
	FailAdvance bool

	// LastTargets records the targets passed to the most recent
	// Advance call, for tests that need to see what the build manager
	// resolved.
	LastTargets []target.Target
}

// NewMemory allocates a fresh in-memory pipeline for (configID,
// deviceID), assigning it a uuid identity that the CLI reports as the
// pipeline's ID. The build manager keeps no registry keyed by it.
func NewMemory(configID, deviceID string) *Memory {
	return &Memory{
		id:       uuid.NewString(),
		configID: configID,
		deviceID: deviceID,
		state:    StateUnprepared,
	}
}

func (p *Memory) ID() string       { return p.id }
func (p *Memory) ConfigID() string { return p.configID }
func (p *Memory) DeviceID() string { return p.deviceID }

func (p *Memory) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Memory) Busy() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.busy
}

func (p *Memory) Message() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.message
}

func (p *Memory) Runtime() *runtime.Runtime {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.runtime
}

func (p *Memory) AttachRuntime(rt runtime.Runtime) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.runtime = &rt
}

func (p *Memory) Toolchain() *toolchain.Toolchain {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.toolchain
}

func (p *Memory) AttachToolchain(tc toolchain.Toolchain) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.toolchain = &tc
}

func (p *Memory) CanExport() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.phase >= PhaseBuild && p.state == StateReady
}

func (p *Memory) OnDiagnostic(h DiagnosticHandler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.diagHandlers = append(p.diagHandlers, h)
}

func (p *Memory) OnNotify(h NotifyHandler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notifyHandlers = append(p.notifyHandlers, h)
}

func (p *Memory) emitNotify(busy bool, message string) {
	p.mu.Lock()
	p.busy = busy
	p.message = message
	handlers := append([]NotifyHandler(nil), p.notifyHandlers...)
	p.mu.Unlock()
	for _, h := range handlers {
		h(busy, message)
	}
}

// Init transitions Unprepared -> Initializing -> Ready (or Failed).
func (p *Memory) Init(ctx context.Context) error {
	p.mu.Lock()
	p.state = StateInitializing
	p.mu.Unlock()
	p.emitNotify(true, "initializing")

	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	if p.FailInit {
		p.state = StateFailed
		p.mu.Unlock()
		p.emitNotify(false, "init failed")
		return errs.New(errs.RuntimeError, "pipeline init failed")
	}
	p.state = StateReady
	p.mu.Unlock()
	p.emitNotify(false, "ready")
	return nil
}

// Advance moves the pipeline to phase, simulating work by calling the
// busy notifier around the transition. clean/rebuild are accepted for
// interface completeness; the in-memory pipeline has no cached
// artifacts to actually invalidate, so they only affect messaging.
func (p *Memory) Advance(ctx context.Context, phase Phase, targets []target.Target, clean, rebuild bool) error {
	p.mu.Lock()
	if p.state != StateReady {
		p.mu.Unlock()
		return errs.Newf(errs.InvalidState, "pipeline not ready (state=%v)", p.state)
	}
	p.state = StateRunning
	p.mu.Unlock()

	verb := "building"
	if clean {
		verb = "cleaning"
	} else if rebuild {
		verb = "rebuilding"
	}
	p.emitNotify(true, verb+" to "+phase.String())

	if err := ctx.Err(); err != nil {
		p.mu.Lock()
		p.state = StateReady
		p.mu.Unlock()
		return err
	}

	p.mu.Lock()
	p.LastTargets = targets
	if p.FailAdvance {
		p.FailAdvance = false
		p.state = StateFailed
		p.mu.Unlock()
		p.emitNotify(false, "build failed")
		return errs.New(errs.RuntimeError, "advance failed")
	}
	p.phase = phase
	p.state = StateReady
	p.mu.Unlock()
	p.emitNotify(false, "")
	return nil
}

func (p *Memory) Install(ctx context.Context) error {
	return p.Advance(ctx, PhaseInstall, nil, false, false)
}

func (p *Memory) Export(ctx context.Context) error {
	return p.Advance(ctx, PhaseExport, nil, false, false)
}

// EmitDiagnostic is exposed for tests and the demo CLI to synthesize
// diagnostics as if a real build backend produced them.
func (p *Memory) EmitDiagnostic(d diagnostic.Diagnostic) {
	p.mu.Lock()
	handlers := append([]DiagnosticHandler(nil), p.diagHandlers...)
	p.mu.Unlock()
	for _, h := range handlers {
		h(d)
	}
}
