package cmd

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/akatz-ai/tmplfoundry/internal/foundry/pipeline"
)

var buildPhase string

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Advance the demo pipeline to a phase",
	Args:  cobra.NoArgs,
	RunE:  runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)
	buildCmd.Flags().StringVar(&buildPhase, "phase", "build", "phase to reach: configure, build, install, export")
}

func parsePhase(name string) (pipeline.Phase, error) {
	switch name {
	case "configure":
		return pipeline.PhaseConfigure, nil
	case "build":
		return pipeline.PhaseBuild, nil
	case "install":
		return pipeline.PhaseInstall, nil
	case "export":
		return pipeline.PhaseExport, nil
	default:
		return pipeline.PhaseNone, fmt.Errorf("unknown phase %q", name)
	}
}

func runBuild(cmd *cobra.Command, args []string) error {
	dir, err := getWorkDir()
	if err != nil {
		return err
	}
	mgr, err := newDemoManager(dir)
	if err != nil {
		return err
	}

	phase, err := parsePhase(buildPhase)
	if err != nil {
		return err
	}

	if err := mgr.Build(context.Background(), phase, nil); err != nil {
		fmt.Fprintln(stdout(), color.RedString("build failed: %v", err))
		return err
	}
	fmt.Fprintln(stdout(), color.GreenString("build reached phase %s", phase))
	return nil
}
