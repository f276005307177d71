package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var targetsJSON bool

var targetsCmd = &cobra.Command{
	Use:   "targets",
	Short: "List targets aggregated from the fixture provider",
	Args:  cobra.NoArgs,
	RunE:  runTargets,
}

func init() {
	rootCmd.AddCommand(targetsCmd)
	targetsCmd.Flags().BoolVarP(&targetsJSON, "json", "j", false, "output as JSON")
}

func runTargets(cmd *cobra.Command, args []string) error {
	dir, err := getWorkDir()
	if err != nil {
		return err
	}
	mgr, err := newDemoManager(dir)
	if err != nil {
		return err
	}

	targets, err := mgr.ListTargetsAsync(context.Background())
	if err != nil {
		return err
	}

	w := stdout()
	if targetsJSON {
		data, err := json.MarshalIndent(targets, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(data))
		return nil
	}

	for _, t := range targets {
		fmt.Fprintf(w, "%-20s %-10s %s\n", t.Name, t.Kind, t.Argv)
	}
	return nil
}
