package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestGenerateDocuments(t *testing.T) {
	docs := generateDocuments(5, 100, 42)
	again := generateDocuments(5, 100, 42)
	for i := range docs {
		if len(docs[i]) != 100 {
			t.Errorf("doc %d has %d bytes, want 100", i, len(docs[i]))
		}
		if docs[i] != again[i] {
			t.Errorf("doc %d differs across runs with the same seed", i)
		}
	}
	if docs[0] == docs[1] {
		t.Error("consecutive documents are identical")
	}
}

func TestBuildRequest(t *testing.T) {
	docs := []string{"first document", "second document"}
	tests := []struct {
		op   Operation
		path string
	}{
		{OpDigest, "/api/v1/digest"},
		{OpSimilarity, "/api/v1/similarity"},
		{OpRank, "/api/v1/rank"},
	}
	for _, tt := range tests {
		path, body, err := buildRequest(tt.op, docs, 1)
		if err != nil {
			t.Fatalf("buildRequest(%s): %v", tt.op, err)
		}
		if path != tt.path {
			t.Errorf("path = %s, want %s", path, tt.path)
		}
		if !json.Valid(body) {
			t.Errorf("%s body is not JSON: %s", tt.op, body)
		}
	}
	if _, _, err := buildRequest("bogus", docs, 0); err == nil {
		t.Error("expected error for unknown operation")
	}
}

func TestRecorder(t *testing.T) {
	r := NewRecorder()
	r.Record(OpDigest, time.Millisecond, http.StatusOK, nil)
	r.Record(OpRank, 2*time.Millisecond, http.StatusBadRequest, nil)
	r.Record(OpSimilarity, 0, 0, errors.New("refused"))

	total, failed := r.Totals()
	if total != 3 || failed != 2 {
		t.Errorf("totals = %d/%d, want 3/2", total, failed)
	}
	if r.ops[OpRank].errors != 1 || len(r.ops[OpRank].latencies) != 1 {
		t.Errorf("rank = %+v", r.ops[OpRank])
	}
	if len(r.ops[OpSimilarity].latencies) != 0 {
		t.Error("transport failure recorded a latency")
	}
	if r.codes[http.StatusBadRequest] != 1 || r.codes[0] != 0 {
		t.Errorf("codes = %v", r.codes)
	}
}

func TestParseOperations(t *testing.T) {
	ops, err := parseOperations("rank, digest,rank")
	if err != nil || len(ops) != 2 || ops[0] != OpRank || ops[1] != OpDigest {
		t.Errorf("parseOperations = %v, %v", ops, err)
	}
	if _, err := parseOperations("digest,upload"); err == nil {
		t.Error("expected error for unknown operation")
	}
}

func TestPercentile(t *testing.T) {
	sorted := []time.Duration{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	if got := percentile(sorted, 50); got != 5 {
		t.Errorf("p50 = %d, want 5", got)
	}
	if got := percentile(sorted, 99); got != 10 {
		t.Errorf("p99 = %d, want 10", got)
	}
	if got := percentile(nil, 50); got != 0 {
		t.Errorf("percentile(nil) = %d, want 0", got)
	}
}

func TestRun(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"cache_hit":true}`))
	}))
	defer srv.Close()

	cfg := Config{BaseURL: srv.URL, Concurrency: 2, Duration: 100 * time.Millisecond}
	rec := Run(context.Background(), cfg, generateDocuments(3, 64, 1))
	total, failed := rec.Totals()
	if total == 0 || failed != 0 {
		t.Fatalf("totals = %d/%d", total, failed)
	}
	if rec.cacheHits == 0 {
		t.Error("cache hits not counted")
	}

	cfg.Operations = allOperations
	var out bytes.Buffer
	if err := writeReport(&out, rec, cfg); err != nil {
		t.Fatalf("writeReport: %v", err)
	}
	for _, want := range []string{"digest", "similarity", "status codes: 200="} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("report missing %q:\n%s", want, out.String())
		}
	}
}

func TestWriteReport_NoRequests(t *testing.T) {
	if err := writeReport(io.Discard, NewRecorder(), Config{Duration: time.Second}); err == nil {
		t.Error("expected error when nothing completed")
	}
}
