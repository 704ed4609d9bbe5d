package tracing

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestSpanTree(t *testing.T) {
	ctx, root := StartSpan(context.Background(), "request", "trace-1")
	cctx, digest := StartChildSpan(ctx, "digest")
	_, lookup := StartChildSpan(cctx, "cache.lookup")
	lookup.End()
	digest.End()
	_, score := StartChildSpan(ctx, "similarity")
	score.SetAttr("score", 42.0)
	score.End()
	root.End()

	want := []string{"request", "digest", "cache.lookup", "similarity"}
	got := root.Names()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Names() = %v, want %v", got, want)
	}
	if lookup.TraceID != "trace-1" {
		t.Errorf("grandchild trace id = %q, want trace-1", lookup.TraceID)
	}
}

func TestStartChildSpan_NoParent(t *testing.T) {
	ctx, span := StartChildSpan(context.Background(), "orphan")
	if SpanFromContext(ctx) != span {
		t.Error("child span not stored in context")
	}
	if span.TraceID != "" {
		t.Errorf("orphan trace id = %q, want empty", span.TraceID)
	}
}

func TestLog(t *testing.T) {
	ctx, root := StartSpan(context.Background(), "request", "trace-2")
	_, child := StartChildSpan(ctx, "rank")
	child.SetAttr("candidates", 3)
	child.End()
	root.End()

	var buf bytes.Buffer
	root.Log(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	out := buf.String()
	if strings.Count(out, "\n") != 1 {
		t.Errorf("trace logged as %d records, want 1:\n%s", strings.Count(out, "\n"), out)
	}
	for _, want := range []string{"msg=request", "trace_id=trace-2", `"request > rank.candidates"=3`, `"request > rank.depth"=1`} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	root.Log(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})))
	if buf.Len() != 0 {
		t.Errorf("span logged above debug level: %s", buf.String())
	}
}

func TestEnd_Idempotent(t *testing.T) {
	_, s := StartSpan(context.Background(), "request", "")
	s.End()
	first := s.Duration()
	time.Sleep(2 * time.Millisecond)
	s.End()
	if s.Duration() != first {
		t.Errorf("second End changed duration from %v to %v", first, s.Duration())
	}
}
