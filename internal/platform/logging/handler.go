package logging

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

const redactedValue = "[REDACTED]"

var sensitiveKeyParts = []string{"token", "secret", "password", "authorization"}

// ClippingHandler rewrites attributes before they reach the next handler:
// secret-looking keys are redacted and long string values (raw wire lines,
// decode errors) are cut to maxBytes.
type ClippingHandler struct {
	next     slog.Handler
	maxBytes int
}

func WrapHandler(next slog.Handler, maxBytes int) slog.Handler {
	if next == nil {
		return nil
	}
	return &ClippingHandler{next: next, maxBytes: maxBytes}
}

func (h *ClippingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *ClippingHandler) Handle(ctx context.Context, rec slog.Record) error {
	out := slog.NewRecord(rec.Time, rec.Level, rec.Message, rec.PC)
	rec.Attrs(func(attr slog.Attr) bool {
		out.AddAttrs(h.rewrite(attr))
		return true
	})
	return h.next.Handle(ctx, out)
}

func (h *ClippingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	rewritten := make([]slog.Attr, 0, len(attrs))
	for _, attr := range attrs {
		rewritten = append(rewritten, h.rewrite(attr))
	}
	return &ClippingHandler{next: h.next.WithAttrs(rewritten), maxBytes: h.maxBytes}
}

func (h *ClippingHandler) WithGroup(name string) slog.Handler {
	return &ClippingHandler{next: h.next.WithGroup(name), maxBytes: h.maxBytes}
}

func (h *ClippingHandler) rewrite(attr slog.Attr) slog.Attr {
	attr.Value = attr.Value.Resolve()
	if isSensitiveKey(strings.ToLower(attr.Key)) {
		return slog.String(attr.Key, redactedValue)
	}
	switch attr.Value.Kind() {
	case slog.KindString:
		return slog.String(attr.Key, Clip(attr.Value.String(), h.maxBytes))
	case slog.KindGroup:
		group := attr.Value.Group()
		out := make([]any, 0, len(group))
		for _, a := range group {
			out = append(out, h.rewrite(a))
		}
		return slog.Group(attr.Key, out...)
	case slog.KindAny:
		if err, ok := attr.Value.Any().(error); ok {
			return slog.String(attr.Key, Clip(err.Error(), h.maxBytes))
		}
	}
	return attr
}

// Clip shortens s to at most maxBytes and notes how much was dropped.
// maxBytes <= 0 disables clipping.
func Clip(s string, maxBytes int) string {
	if maxBytes <= 0 || len(s) <= maxBytes {
		return s
	}
	return fmt.Sprintf("%s...(+%d bytes)", s[:maxBytes], len(s)-maxBytes)
}

func isSensitiveKey(key string) bool {
	for _, part := range sensitiveKeyParts {
		if strings.Contains(key, part) {
			return true
		}
	}
	return false
}
