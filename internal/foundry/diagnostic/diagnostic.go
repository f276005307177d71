// Package diagnostic defines the Diagnostic value the build manager
// counts and surfaces (spec.md §3 "Diagnostic"). Grounded on
// ide-diagnostic.c.
package diagnostic

import "fmt"

// Severity classifies a Diagnostic. Order matters for sorting: more
// severe sorts later so the highest-severity diagnostic in a batch is
// the last one seen.
type Severity int

const (
	Note Severity = iota
	Warning
	Error
	Fatal
)

func (s Severity) String() string {
	switch s {
	case Note:
		return "note"
	case Warning:
		return "warning"
	case Error:
		return "error"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Range is a half-open source span within File. Either end may be the
// zero Position when the diagnostic has no precise location.
type Range struct {
	Start Position
	End   Position
}

// Position is a 1-based line/column pair.
type Position struct {
	Line   int
	Column int
}

// Diagnostic is one message emitted by a pipeline during a build.
type Diagnostic struct {
	Severity Severity
	File     string
	Range    *Range
	Message  string
}

func (d Diagnostic) String() string {
	if d.File == "" {
		return fmt.Sprintf("%s: %s", d.Severity, d.Message)
	}
	if d.Range == nil {
		return fmt.Sprintf("%s:%s: %s", d.File, d.Severity, d.Message)
	}
	return fmt.Sprintf("%s:%d:%d:%s: %s", d.File, d.Range.Start.Line, d.Range.Start.Column, d.Severity, d.Message)
}

// Counter tallies diagnostics by severity the way the build manager's
// diagnostic_count/warning_count/error_count fields do (spec.md §3).
type Counter struct {
	Total   int
	Warning int
	Error   int
}

// Add folds d into the counter per spec.md §3: "diagnostic_count++,
// plus warning_count for Warning and error_count for Error|Fatal".
func (c *Counter) Add(d Diagnostic) {
	c.Total++
	switch d.Severity {
	case Warning:
		c.Warning++
	case Error, Fatal:
		c.Error++
	}
}

// Reset zeroes all counters, e.g. when a pipeline is torn down.
func (c *Counter) Reset() {
	*c = Counter{}
}

// HasDiagnostics reports whether any diagnostic has been counted.
func (c *Counter) HasDiagnostics() bool {
	return c.Total > 0
}
