// Package tracing times the stages of a request. Spans nest through
// contexts and a finished trace is written as one debug log record.
package tracing

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
)

type contextKey struct{}

// Span is one timed stage. Name and TraceID are fixed at creation.
type Span struct {
	Name    string
	TraceID string

	start time.Time

	mu       sync.Mutex
	duration time.Duration
	ended    bool
	attrs    []slog.Attr
	children []*Span
}

// StartSpan opens a root span for traceID.
func StartSpan(ctx context.Context, name, traceID string) (context.Context, *Span) {
	s := &Span{Name: name, TraceID: traceID, start: time.Now()}
	return context.WithValue(ctx, contextKey{}, s), s
}

// StartChildSpan opens a span under the one in ctx. Without a parent the
// span is a detached root with no trace ID.
func StartChildSpan(ctx context.Context, name string) (context.Context, *Span) {
	parent := SpanFromContext(ctx)
	s := &Span{Name: name, start: time.Now()}
	if parent != nil {
		s.TraceID = parent.TraceID
		parent.mu.Lock()
		parent.children = append(parent.children, s)
		parent.mu.Unlock()
	}
	return context.WithValue(ctx, contextKey{}, s), s
}

func SpanFromContext(ctx context.Context) *Span {
	s, _ := ctx.Value(contextKey{}).(*Span)
	return s
}

// End fixes the span's duration. Later calls are ignored.
func (s *Span) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ended {
		s.duration = time.Since(s.start)
		s.ended = true
	}
}

// Duration returns the elapsed time, or the time so far for an open span.
func (s *Span) Duration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ended {
		return time.Since(s.start)
	}
	return s.duration
}

func (s *Span) SetAttr(key string, value any) {
	s.mu.Lock()
	s.attrs = append(s.attrs, slog.Any(key, value))
	s.mu.Unlock()
}

// Names lists the tree depth-first.
func (s *Span) Names() []string {
	var names []string
	s.walk("", func(_ string, sp *Span) { names = append(names, sp.Name) })
	return names
}

func (s *Span) walk(prefix string, fn func(path string, sp *Span)) {
	path := s.Name
	if prefix != "" {
		path = prefix + " > " + s.Name
	}
	fn(path, s)
	s.mu.Lock()
	children := append([]*Span(nil), s.children...)
	s.mu.Unlock()
	for _, c := range children {
		c.walk(path, fn)
	}
}

// Log writes the trace as a single debug record: one group per span keyed
// by its path from the root.
func (s *Span) Log(logger *slog.Logger) {
	ctx := context.Background()
	if !logger.Enabled(ctx, slog.LevelDebug) {
		return
	}
	attrs := []slog.Attr{
		slog.String("trace_id", s.TraceID),
		slog.Float64("duration_ms", millis(s.Duration())),
	}
	s.walk("", func(path string, sp *Span) {
		if sp == s {
			return
		}
		sp.mu.Lock()
		group := make([]any, 0, len(sp.attrs)+2)
		group = append(group, slog.Float64("duration_ms", millis(sp.duration)))
		group = append(group, slog.Int("depth", strings.Count(path, " > ")))
		for _, a := range sp.attrs {
			group = append(group, a)
		}
		sp.mu.Unlock()
		attrs = append(attrs, slog.Group(path, group...))
	})
	logger.LogAttrs(ctx, slog.LevelDebug, s.Name, attrs...)
}

func millis(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
