// Package log provides structured logging for fedcheck, built on slog,
// with automatic sanitization of URL attributes.
//
// Privacy-statement URLs taken from federation metadata occasionally embed
// credentials or session tokens in userinfo or query parameters. Logs are
// routinely shared in federation operator tickets, so the handler strips
// those parts before any record reaches the underlying handler.
package log

import (
	"context"
	"io"
	"log/slog"
	"net/url"
	"strings"
)

// urlKeys are attribute keys whose string values are treated as URLs.
var urlKeys = map[string]bool{
	"url":           true,
	"target":        true,
	"final_url":     true,
	"redirected_to": true,
	"path":          true,
}

// URLSanitizingHandler wraps an slog.Handler and strips credentials and
// query strings from URL-valued attributes.
//
// Design decision: A handler wrapper rather than a custom logger, because
// it composes with standard slog APIs and works with any underlying
// handler (text or JSON).
type URLSanitizingHandler struct {
	handler slog.Handler
}

// NewURLSanitizingHandler wraps handler. A nil handler falls back to
// slog.Default's handler.
func NewURLSanitizingHandler(handler slog.Handler) *URLSanitizingHandler {
	if handler == nil {
		handler = slog.Default().Handler()
	}
	return &URLSanitizingHandler{handler: handler}
}

// Enabled delegates to the underlying handler.
func (h *URLSanitizingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle sanitizes the record's attributes and passes it on.
func (h *URLSanitizingHandler) Handle(ctx context.Context, r slog.Record) error {
	sanitized := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		sanitized.AddAttrs(h.sanitizeAttr(a))
		return true
	})
	return h.handler.Handle(ctx, sanitized)
}

// WithAttrs returns a new handler with sanitized attributes added.
func (h *URLSanitizingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		out[i] = h.sanitizeAttr(a)
	}
	return &URLSanitizingHandler{handler: h.handler.WithAttrs(out)}
}

// WithGroup returns a new handler with the given group name.
func (h *URLSanitizingHandler) WithGroup(name string) slog.Handler {
	return &URLSanitizingHandler{handler: h.handler.WithGroup(name)}
}

// sanitizeAttr sanitizes one attribute, recursing into groups.
func (h *URLSanitizingHandler) sanitizeAttr(a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		out := make([]slog.Attr, len(attrs))
		for i, ga := range attrs {
			out[i] = h.sanitizeAttr(ga)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(out...)}
	}

	if a.Value.Kind() != slog.KindString {
		return a
	}
	if !urlKeys[strings.ToLower(a.Key)] {
		return a
	}

	return slog.String(a.Key, SanitizeURL(a.Value.String()))
}

// SanitizeURL strips userinfo, query and fragment from an http(s) URL.
// Non-URL strings pass through unchanged.
func SanitizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return raw
	}
	if u.User == nil && u.RawQuery == "" && u.Fragment == "" {
		return raw
	}

	u.User = nil
	if u.RawQuery != "" {
		u.RawQuery = "..."
	}
	u.Fragment = ""
	return u.String()
}

// NewLogger creates a logger writing text records to w, sanitized. Verbose
// enables debug level; otherwise only warnings and errors are emitted.
func NewLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}

	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(NewURLSanitizingHandler(handler))
}
