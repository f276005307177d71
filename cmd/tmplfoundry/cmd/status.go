package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the demo build manager's observable state",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().BoolVarP(&statusJSON, "json", "j", false, "output as JSON")
}

type statusReport struct {
	Pipeline      string `json:"pipeline,omitempty"`
	Busy          bool   `json:"busy"`
	CanBuild      bool   `json:"can_build"`
	CanExport     bool   `json:"can_export"`
	WarningCount  int    `json:"warning_count"`
	ErrorCount    int    `json:"error_count"`
	HasDiagnostic bool   `json:"has_diagnostics"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	dir, err := getWorkDir()
	if err != nil {
		return err
	}
	mgr, err := newDemoManager(dir)
	if err != nil {
		return err
	}

	report := statusReport{
		Busy:          mgr.Busy(),
		CanBuild:      mgr.CanBuild(),
		CanExport:     mgr.CanExport(),
		WarningCount:  mgr.WarningCount(),
		ErrorCount:    mgr.ErrorCount(),
		HasDiagnostic: mgr.HasDiagnostics(),
	}
	if p := mgr.Pipeline(); p != nil {
		report.Pipeline = p.ID()
	}

	if statusJSON {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout(), string(data))
		return nil
	}

	w := stdout()
	fmt.Fprintf(w, "pipeline:     %s\n", orNone(report.Pipeline))
	fmt.Fprintf(w, "busy:         %v\n", report.Busy)
	fmt.Fprintf(w, "can-build:    %v\n", report.CanBuild)
	fmt.Fprintf(w, "can-export:   %v\n", report.CanExport)
	fmt.Fprintf(w, "warnings:     %d\n", report.WarningCount)
	fmt.Fprintf(w, "errors:       %d\n", report.ErrorCount)
	return nil
}

func orNone(s string) string {
	if s == "" {
		return "<none>"
	}
	return s
}
