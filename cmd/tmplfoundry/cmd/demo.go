package cmd

import (
	"context"
	"path/filepath"

	"github.com/akatz-ai/tmplfoundry/internal/foundry/buildmanager"
	"github.com/akatz-ai/tmplfoundry/internal/foundry/config"
	"github.com/akatz-ai/tmplfoundry/internal/foundry/device"
	"github.com/akatz-ai/tmplfoundry/internal/foundry/diagnostic"
	"github.com/akatz-ai/tmplfoundry/internal/foundry/pipeline"
	"github.com/akatz-ai/tmplfoundry/internal/logging"
	"github.com/akatz-ai/tmplfoundry/internal/foundry/provider"
	"github.com/akatz-ai/tmplfoundry/internal/foundry/runtime"
	"github.com/akatz-ai/tmplfoundry/internal/foundry/target"
	"github.com/akatz-ai/tmplfoundry/internal/foundry/toolchain"
)

var fixturesPath string

func init() {
	rootCmd.PersistentFlags().StringVar(&fixturesPath, "fixtures", "", "TOML file of demo build targets (default: <workdir>/targets.toml)")
}

// hostRuntimeProvider bootstraps whatever runtime id it is asked for,
// standing in for a real plugin-contributed runtime provider so the
// CLI's preparation chain (spec.md §4.9) has something to walk.
type hostRuntimeProvider struct{}

func (hostRuntimeProvider) ID() string    { return "host-runtime-provider" }
func (hostRuntimeProvider) Load() error   { return nil }
func (hostRuntimeProvider) Unload() error { return nil }
func (hostRuntimeProvider) CanInstall(id string) bool { return true }
func (hostRuntimeProvider) BootstrapAsync(ctx context.Context, id string) (runtime.Runtime, error) {
	return runtime.Runtime{ID: id, DisplayName: id}, nil
}

// newDemoManager wires a buildmanager.Manager over stub device/
// runtime/toolchain providers and the TOML-fixture target provider, so
// build/clean/rebuild/status/targets have a real (if toy) foundry to
// drive end to end.
func newDemoManager(dir string) (*buildmanager.Manager, error) {
	cfg := config.New("default")
	cfg.SetRuntimeID("host")
	cfg.SetToolchainID("host-toolchain")

	dev := device.NewStatic("host", device.Info{Kind: "local", HostTriplet: "x86_64-pc-linux-gnu"})

	runtimes := runtime.NewManager()
	if err := runtimes.AddProvider(hostRuntimeProvider{}); err != nil {
		return nil, err
	}

	toolchains := toolchain.NewManager()
	toolchains.Register(toolchain.Toolchain{ID: "host-toolchain", DisplayName: "Host Toolchain", HostTriplet: "x86_64-pc-linux-gnu"})

	targets := provider.NewSet[target.Provider]()
	path := fixturesPath
	if path == "" {
		path = filepath.Join(dir, "targets.toml")
	}
	fixture := target.NewFixtureProvider("fixtures", path)
	if err := targets.Add(fixture); err != nil {
		return nil, err
	}

	mgr := buildmanager.New(cfg, "host", dev, runtimes, toolchains, targets, nil, func(configID, deviceID string) pipeline.Pipeline {
		return pipeline.NewMemory(configID, deviceID)
	})

	lg := logging.WithConfig(logger, cfg.ID)
	mgr.OnNotify(func(busy bool, message string) {
		if message != "" && verbose {
			printlnStatus(message)
		}
	})
	mgr.OnDiagnostic(func(d diagnostic.Diagnostic) {
		printlnStatus(d.String())
		lg.Warn("diagnostic", "severity", d.Severity.String(), "message", d.Message)
	})
	mgr.OnBuildStarted(func(p pipeline.Pipeline) { lg.Info("build-started", "pipeline", p.ID()) })
	mgr.OnBuildFailed(func(p pipeline.Pipeline) { lg.Warn("build-failed", "pipeline", p.ID()) })
	mgr.OnBuildFinished(func(p pipeline.Pipeline) { lg.Info("build-finished", "pipeline", p.ID()) })

	return mgr, mgr.Start(context.Background())
}

func printlnStatus(s string) {
	w := stdout()
	w.Write([]byte(s))
	w.Write([]byte("\n"))
}
