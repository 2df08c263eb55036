// Package export writes validation results and dry-run plans in terminal,
// JSON, and Markdown formats.
package export

import (
	"io"
	"time"

	"github.com/fedtools/fedcheck/internal/model"
)

// Report bundles everything a writer needs for one validation run.
//
// Design decision: We wrap outcomes and the summary together rather than
// passing them separately, so adding output-only metadata later does not
// ripple through every writer signature.
type Report struct {
	// GeneratedAt is when the run finished.
	GeneratedAt time.Time `json:"generated_at"`

	// TargetsFile is the target list the run was started with.
	TargetsFile string `json:"targets_file,omitempty"`

	// Summary holds the aggregate counts.
	Summary model.Summary `json:"summary"`

	// Outcomes are the per-target validation results.
	Outcomes []model.ValidationOutcome `json:"outcomes"`
}

// NewReport creates a Report for the given run.
func NewReport(outcomes []model.ValidationOutcome, summary model.Summary, targetsFile string) *Report {
	return &Report{
		GeneratedAt: time.Now(),
		TargetsFile: targetsFile,
		Summary:     summary,
		Outcomes:    outcomes,
	}
}

// Broken returns the outcomes that failed validation.
func (r *Report) Broken() []model.ValidationOutcome {
	var broken []model.ValidationOutcome
	for _, o := range r.Outcomes {
		if !o.Accessible {
			broken = append(broken, o)
		}
	}
	return broken
}

// Writer defines the interface for result output.
// Implementations write validation results in various formats.
//
// Design decision: We use an interface to allow different output formats
// and destinations. This enables writing to files, stdout, or network
// connections with the same API.
type Writer interface {
	// Write outputs the report to the configured destination.
	// Returns the number of bytes written and any error encountered.
	Write(report *Report) (int, error)

	// WritePlan outputs a dry-run plan instead of results.
	WritePlan(plan model.Plan) (int, error)
}

// MultiWriter writes to multiple Writers simultaneously.
// This is useful for outputting to both terminal and file.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the report to all configured Writers.
// Returns the total bytes written across all writers.
// Stops on first error encountered.
func (m *MultiWriter) Write(report *Report) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(report)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WritePlan outputs the plan to all configured Writers.
func (m *MultiWriter) WritePlan(plan model.Plan) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WritePlan(plan)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for result writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}
