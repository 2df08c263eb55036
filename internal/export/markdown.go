package export

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/nao1215/markdown"

	"github.com/fedtools/fedcheck/internal/model"
)

// MarkdownWriter outputs results in Markdown format.
// This format is designed for documentation and sharing with federation
// operators.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation which provides:
// 1. Type-safe markdown generation
// 2. Support for tables, lists, and code blocks
// 3. GitHub-flavored markdown alerts
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the full report in Markdown format.
func (w *MarkdownWriter) Write(report *Report) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeFederations(md, report.Summary)
	w.writeBroken(md, report)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with overall counts.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *Report) {
	md.H1("URL Validation Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Generated", report.GeneratedAt.Format("2006-01-02 15:04:05 MST")},
			{"Targets", strconv.Itoa(report.Summary.Total)},
			{"Accessible", strconv.Itoa(report.Summary.Accessible)},
			{"Broken", strconv.Itoa(report.Summary.Broken)},
			{"From cache", strconv.Itoa(report.Summary.FromCache)},
			{"Accessible rate", fmt.Sprintf("%.1f%%", report.Summary.AccessibleRate())},
		},
	})
	md.PlainText("")

	switch {
	case report.Summary.Total == 0:
		md.Note("No targets were validated.")
	case report.Summary.Broken == 0:
		md.Tip("All validated URLs are reachable.")
	default:
		md.Warningf("%d URL(s) failed validation and need operator attention.", report.Summary.Broken)
	}
	md.PlainText("")
}

// writeFederations writes the per-federation breakdown table.
func (w *MarkdownWriter) writeFederations(md *markdown.Markdown, sum model.Summary) {
	if len(sum.ByFederation) == 0 {
		return
	}

	md.H2("By Federation")
	md.PlainText("")

	rows := make([][]string, 0, len(sum.ByFederation))
	for _, name := range sortedKeys(sum.ByFederation) {
		gc := sum.ByFederation[name]
		rows = append(rows, []string{
			name,
			strconv.Itoa(gc.Total),
			strconv.Itoa(gc.Accessible),
			strconv.Itoa(gc.Broken),
		})
	}

	md.Table(markdown.TableSet{
		Header: []string{"Federation", "Total", "Accessible", "Broken"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeBroken writes a table of every failed target.
func (w *MarkdownWriter) writeBroken(md *markdown.Markdown, report *Report) {
	broken := report.Broken()
	if len(broken) == 0 {
		return
	}

	md.H2("Broken URLs")
	md.PlainText("")

	rows := make([][]string, len(broken))
	for i, o := range broken {
		status := "-"
		if o.StatusCode != 0 {
			status = strconv.Itoa(o.StatusCode)
		}
		rows[i] = []string{
			"`" + truncateString(o.Target.URL, 60) + "`",
			o.Target.EntityID,
			o.Target.Federation,
			string(o.ErrorKind),
			status,
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"URL", "Entity", "Federation", "Failure", "Status"},
		Rows:   rows,
	})
	md.PlainText("")
}

// WritePlan outputs a dry-run plan in Markdown format.
func (w *MarkdownWriter) WritePlan(plan model.Plan) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Validation Plan")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Unique URLs", strconv.Itoa(plan.Total)},
			{"Fresh in cache", strconv.Itoa(plan.Cached)},
			{"To probe", strconv.Itoa(plan.ToProbe)},
			{"Cache hit rate", fmt.Sprintf("%.1f%%", plan.CacheHitRate)},
			{"Estimated duration", fmt.Sprintf("%.1fs", plan.EstimatedSeconds)},
		},
	})
	md.PlainText("")

	if len(plan.PerGroup) > 0 {
		md.H2("By Federation")
		md.PlainText("")

		rows := make([][]string, 0, len(plan.PerGroup))
		for _, name := range sortedKeys(plan.PerGroup) {
			gp := plan.PerGroup[name]
			rows = append(rows, []string{
				name,
				strconv.Itoa(gp.Total),
				strconv.Itoa(gp.Cached),
				strconv.Itoa(gp.ToProbe),
			})
		}

		md.Table(markdown.TableSet{
			Header: []string{"Federation", "Unique URLs", "Cached", "To Probe"},
			Rows:   rows,
		})
		md.PlainText("")
	}

	return len(md.String()), md.Build()
}

// sortedKeys returns the map's keys in ascending order, for stable tables.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
