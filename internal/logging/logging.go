// Package logging provides structured logging infrastructure shared by
// the template engine and the build foundry. Grounded on the teacher's
// internal/logging (slog-based, JSON by default, optional file tee).
package logging

import (
	"io"
	"log/slog"
	"os"
)

// Format selects the slog handler encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// New creates a logger writing to w (plus, if file is non-empty,
// tee'd into that file opened in append mode) at the given level.
func New(format Format, level slog.Level, w io.Writer, file string) (*slog.Logger, io.Closer, error) {
	var closer io.Closer
	dest := w

	if file != "" {
		f, err := os.OpenFile(file, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, nil, err
		}
		closer = f
		dest = io.MultiWriter(w, f)
	}

	return slog.New(newHandler(format, dest, level)), closer, nil
}

// NewDefault creates a default JSON logger writing to stderr at Info.
func NewDefault() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

// NewForTest creates a silent logger for unit tests.
func NewForTest() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newHandler(format Format, w io.Writer, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	switch format {
	case FormatText:
		return slog.NewTextHandler(w, opts)
	default:
		return slog.NewJSONHandler(w, opts)
	}
}

// WithPipeline returns a logger annotated with the active pipeline id.
func WithPipeline(logger *slog.Logger, pipelineID string) *slog.Logger {
	return logger.With("pipeline_id", pipelineID)
}

// WithConfig returns a logger annotated with the active config id.
func WithConfig(logger *slog.Logger, configID string) *slog.Logger {
	return logger.With("config_id", configID)
}

// WithPhase returns a logger annotated with the build phase in
// progress.
func WithPhase(logger *slog.Logger, phase string) *slog.Logger {
	return logger.With("phase", phase)
}
