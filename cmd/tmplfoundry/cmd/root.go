package cmd

import (
	"io"
	"log/slog"
	"os"

	"github.com/fatih/color"
	colorable "github.com/mattn/go-colorable"
	"github.com/spf13/cobra"

	"github.com/akatz-ai/tmplfoundry/internal/logging"
)

var (
	// Version is set at build time via ldflags.
	Version = "dev"

	verbose   bool
	workDir   string
	noColor   bool
	logFormat string
	logFile   string

	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "tmplfoundry",
	Short: "tmplfoundry - template expansion and a toy build foundry",
	Long: `tmplfoundry renders the expression-templating language described by
this repo's internal/tmplengine packages, and drives a demo build
manager (internal/foundry) over stub runtime/toolchain/device/target
providers.

render   expands a template file against a var document
build    advances a demo pipeline to a phase
clean    cleans a demo pipeline at a phase
rebuild  rebuilds a demo pipeline at a phase
status   prints the demo build manager's observable state
targets  lists targets aggregated from the fixture provider`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		l, _, err := logging.New(logging.Format(logFormat), level, os.Stderr, logFile)
		if err != nil {
			return err
		}
		logger = l
		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&workDir, "workdir", "C", "", "working directory (default: current)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored diagnostic output")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "json", "structured log encoding: json or text")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "also tee structured logs to this file")

	logger = logging.NewDefault()

	rootCmd.Version = Version
	rootCmd.SetVersionTemplate("tmplfoundry {{.Version}}\n")
}

// stdout returns a writer that translates ANSI escapes on platforms
// that need it (Windows consoles); color.NoColor is toggled per the
// --no-color flag, mirroring the teacher's color-aware CLI output.
func stdout() io.Writer {
	color.NoColor = noColor
	return colorable.NewColorableStdout()
}

// getWorkDir returns the effective working directory for file-system
// relative operations (templates, fixtures).
func getWorkDir() (string, error) {
	if workDir != "" {
		return workDir, nil
	}
	return os.Getwd()
}
