package cmd

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var cleanPhase string

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Clean the demo pipeline at a phase",
	Args:  cobra.NoArgs,
	RunE:  runClean,
}

func init() {
	rootCmd.AddCommand(cleanCmd)
	cleanCmd.Flags().StringVar(&cleanPhase, "phase", "build", "phase to clean: configure, build, install, export")
}

func runClean(cmd *cobra.Command, args []string) error {
	dir, err := getWorkDir()
	if err != nil {
		return err
	}
	mgr, err := newDemoManager(dir)
	if err != nil {
		return err
	}

	phase, err := parsePhase(cleanPhase)
	if err != nil {
		return err
	}

	if err := mgr.Clean(context.Background(), phase); err != nil {
		fmt.Fprintln(stdout(), color.RedString("clean failed: %v", err))
		return err
	}
	fmt.Fprintln(stdout(), color.GreenString("clean reached phase %s", phase))
	return nil
}
