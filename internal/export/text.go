package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/fedtools/fedcheck/internal/model"
)

// TextWriter outputs results in a compact terminal format. This is the
// default writer for interactive use.
type TextWriter struct {
	baseWriter

	// showAll includes accessible targets in the listing, not only broken
	// ones. Broken URLs are always listed.
	showAll bool
}

// TextWriterOption configures a TextWriter.
type TextWriterOption func(*TextWriter)

// WithShowAll lists every target, not just the broken ones.
func WithShowAll() TextWriterOption {
	return func(w *TextWriter) {
		w.showAll = true
	}
}

// NewTextWriter creates a TextWriter that outputs to the given writer.
func NewTextWriter(output io.Writer, opts ...TextWriterOption) *TextWriter {
	w := &TextWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the report in terminal format.
func (w *TextWriter) Write(report *Report) (int, error) {
	var b strings.Builder

	fmt.Fprintf(&b, "Checked %d target(s): %d accessible, %d broken (%d from cache, %.1f%% ok)\n",
		report.Summary.Total,
		report.Summary.Accessible,
		report.Summary.Broken,
		report.Summary.FromCache,
		report.Summary.AccessibleRate(),
	)

	for _, name := range sortedKeys(report.Summary.ByFederation) {
		gc := report.Summary.ByFederation[name]
		fmt.Fprintf(&b, "  %-24s %d/%d accessible\n", name, gc.Accessible, gc.Total)
	}

	listed := report.Outcomes
	if !w.showAll {
		listed = report.Broken()
	}
	if len(listed) > 0 {
		fmt.Fprintln(&b)
		for _, o := range listed {
			fmt.Fprintln(&b, formatOutcome(o))
		}
	}

	return w.output.Write([]byte(b.String()))
}

// formatOutcome renders one outcome as a single line.
func formatOutcome(o model.ValidationOutcome) string {
	mark := "ok  "
	detail := fmt.Sprintf("%d", o.StatusCode)

	if !o.Accessible {
		mark = "FAIL"
		detail = string(o.ErrorKind)
		if o.ErrorKind == model.ErrorKindHTTP {
			detail = fmt.Sprintf("%s %d", o.ErrorKind, o.StatusCode)
		}
	}

	source := ""
	if o.FromCache {
		source = " (cached)"
	}

	line := fmt.Sprintf("%s %s [%s]%s", mark, o.Target.URL, detail, source)
	if o.RedirectedTo != "" {
		line += " -> " + o.RedirectedTo
	}
	return line
}

// WritePlan outputs a dry-run plan in terminal format.
func (w *TextWriter) WritePlan(plan model.Plan) (int, error) {
	var b strings.Builder

	fmt.Fprintf(&b, "Plan: %d unique URL(s), %d fresh in cache (%.1f%% hit rate), %d to probe\n",
		plan.Total, plan.Cached, plan.CacheHitRate, plan.ToProbe)
	fmt.Fprintf(&b, "Estimated duration: %.1fs\n", plan.EstimatedSeconds)

	for _, name := range sortedKeys(plan.PerGroup) {
		gp := plan.PerGroup[name]
		fmt.Fprintf(&b, "  %-24s %d URL(s), %d cached, %d to probe\n", name, gp.Total, gp.Cached, gp.ToProbe)
	}

	return w.output.Write([]byte(b.String()))
}
