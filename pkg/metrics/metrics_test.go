package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewWithRegistry_RegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry(reg)

	m.DigestsComputedTotal.WithLabelValues("computed").Inc()
	m.DigestsComputedTotal.WithLabelValues("computed").Inc()
	m.SimilarityScores.Observe(87.5)
	m.CorpusDocuments.Set(1003)

	if got := testutil.ToFloat64(m.DigestsComputedTotal.WithLabelValues("computed")); got != 2 {
		t.Errorf("digests computed = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.CorpusDocuments); got != 1003 {
		t.Errorf("corpus documents = %v, want 1003", got)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	joined := strings.Join(names, ",")
	for _, want := range []string{"fbhash_digests_computed_total", "fbhash_similarity_score", "fbhash_corpus_documents"} {
		if !strings.Contains(joined, want) {
			t.Errorf("metric %s not gathered (have %s)", want, joined)
		}
	}
}

func TestNewWithRegistry_Twice(t *testing.T) {
	NewWithRegistry(prometheus.NewRegistry())
	NewWithRegistry(prometheus.NewRegistry())
}

func TestNewServer_ServesGatherer(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry(reg)
	m.CacheHitsTotal.Add(3)

	srv := NewServer(0, reg)
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "cache_hits_total 3") {
		t.Errorf("scrape output missing cache hits:\n%s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/metrics", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST status = %d, want 405", rec.Code)
	}
}

func TestServe_StopsOnCancel(t *testing.T) {
	srv := NewServer(0, prometheus.NewRegistry())
	srv.Addr = "127.0.0.1:0"
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, srv) }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
