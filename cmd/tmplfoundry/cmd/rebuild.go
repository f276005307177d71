package cmd

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var rebuildPhase string

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuild the demo pipeline at a phase",
	Args:  cobra.NoArgs,
	RunE:  runRebuild,
}

func init() {
	rootCmd.AddCommand(rebuildCmd)
	rebuildCmd.Flags().StringVar(&rebuildPhase, "phase", "build", "phase to rebuild: configure, build, install, export")
}

func runRebuild(cmd *cobra.Command, args []string) error {
	dir, err := getWorkDir()
	if err != nil {
		return err
	}
	mgr, err := newDemoManager(dir)
	if err != nil {
		return err
	}

	phase, err := parsePhase(rebuildPhase)
	if err != nil {
		return err
	}

	if err := mgr.Rebuild(context.Background(), phase, nil); err != nil {
		fmt.Fprintln(stdout(), color.RedString("rebuild failed: %v", err))
		return err
	}
	fmt.Fprintln(stdout(), color.GreenString("rebuild reached phase %s", phase))
	return nil
}
