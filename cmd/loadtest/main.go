package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"golang.org/x/sync/errgroup"
)

type Config struct {
	BaseURL     string
	Concurrency int
	Duration    time.Duration
	DocBytes    int
	Documents   int
	Seed        int64
	Operations  []Operation
}

// Operation is one kind of request the load test issues.
type Operation string

const (
	OpDigest     Operation = "digest"
	OpSimilarity Operation = "similarity"
	OpRank       Operation = "rank"
)

var allOperations = []Operation{OpDigest, OpSimilarity, OpRank}

func parseOperations(list string) ([]Operation, error) {
	var ops []Operation
	for _, name := range strings.Split(list, ",") {
		op := Operation(strings.TrimSpace(name))
		if !slices.Contains(allOperations, op) {
			return nil, fmt.Errorf("unknown operation %q", name)
		}
		if !slices.Contains(ops, op) {
			ops = append(ops, op)
		}
	}
	return ops, nil
}

type opResult struct {
	requests  int64
	errors    int64
	latencies []time.Duration
}

// Recorder accumulates outcomes from all workers.
type Recorder struct {
	mu        sync.Mutex
	ops       map[Operation]*opResult
	codes     map[int]int64
	cacheHits int64
}

func NewRecorder() *Recorder {
	return &Recorder{
		ops:   make(map[Operation]*opResult),
		codes: make(map[int]int64),
	}
}

// Record counts one request. Transport failures carry no latency or status.
func (r *Recorder) Record(op Operation, latency time.Duration, status int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.ops[op]
	if !ok {
		res = &opResult{}
		r.ops[op] = res
	}
	res.requests++
	if err != nil {
		res.errors++
		return
	}
	if status < 200 || status >= 300 {
		res.errors++
	}
	res.latencies = append(res.latencies, latency)
	r.codes[status]++
}

func (r *Recorder) CacheHit() {
	r.mu.Lock()
	r.cacheHits++
	r.mu.Unlock()
}

// Totals returns the request and error counts across operations.
func (r *Recorder) Totals() (requests, failed int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, res := range r.ops {
		requests += res.requests
		failed += res.errors
	}
	return requests, failed
}

func main() {
	baseURL := flag.String("url", "http://localhost:8090", "base URL of the digest service")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	docBytes := flag.Int("doc-bytes", 4096, "size of each generated document")
	documents := flag.Int("documents", 50, "number of distinct generated documents")
	seed := flag.Int64("seed", 42, "random seed for generated documents")
	opList := flag.String("ops", "digest,similarity,rank", "comma-separated operations to exercise")
	flag.Parse()

	ops, err := parseOperations(*opList)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	cfg := Config{
		BaseURL:     strings.TrimRight(*baseURL, "/"),
		Concurrency: *concurrency,
		Duration:    *duration,
		DocBytes:    *docBytes,
		Documents:   *documents,
		Seed:        *seed,
		Operations:  ops,
	}

	fmt.Printf("Load testing %s: %d workers for %s, %d documents of %d bytes (%s)\n\n",
		cfg.BaseURL, cfg.Concurrency, cfg.Duration, cfg.Documents, cfg.DocBytes, *opList)

	rec := Run(context.Background(), cfg, generateDocuments(cfg.Documents, cfg.DocBytes, cfg.Seed))
	if err := writeReport(os.Stdout, rec, cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// generateDocuments returns n letter documents where each one shares most
// of its content with the previous one, so similarity scores vary.
func generateDocuments(n, size int, seed int64) []string {
	const letters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	rng := rand.New(rand.NewSource(seed))
	buf := make([]byte, size)
	for i := range buf {
		buf[i] = letters[rng.Intn(len(letters))]
	}
	docs := make([]string, n)
	for i := range docs {
		for range size/10 + 1 {
			buf[rng.Intn(size)] = letters[rng.Intn(len(letters))]
		}
		docs[i] = string(buf)
	}
	return docs
}

// buildRequest returns the endpoint and JSON body for the i-th request.
func buildRequest(op Operation, docs []string, i int) (string, []byte, error) {
	doc := docs[i%len(docs)]
	var path string
	var body any
	switch op {
	case OpDigest:
		path, body = "/api/v1/digest", map[string]any{"content": doc}
	case OpSimilarity:
		path, body = "/api/v1/similarity", map[string]any{
			"a": map[string]any{"content": doc},
			"b": map[string]any{"content": docs[(i+1)%len(docs)]},
		}
	case OpRank:
		path, body = "/api/v1/rank", map[string]any{"content": doc, "limit": 5}
	default:
		return "", nil, fmt.Errorf("unknown operation %q", op)
	}
	data, err := json.Marshal(body)
	return path, data, err
}

// Run drives cfg.Concurrency workers against the service until
// cfg.Duration elapses or ctx is cancelled.
func Run(ctx context.Context, cfg Config, docs []string) *Recorder {
	if len(cfg.Operations) == 0 {
		cfg.Operations = allOperations
	}
	rec := NewRecorder()
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        cfg.Concurrency * 2,
			MaxIdleConnsPerHost: cfg.Concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}
	defer client.CloseIdleConnections()

	ctx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	for w := range cfg.Concurrency {
		g.Go(func() error {
			for i := w; ctx.Err() == nil; i++ {
				op := cfg.Operations[i%len(cfg.Operations)]
				issue(ctx, client, rec, cfg.BaseURL, op, docs, i)
			}
			return nil
		})
	}
	g.Wait()
	return rec
}

func issue(ctx context.Context, client *http.Client, rec *Recorder, baseURL string, op Operation, docs []string, i int) {
	path, body, err := buildRequest(op, docs, i)
	if err != nil {
		rec.Record(op, 0, 0, err)
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+path, bytes.NewReader(body))
	if err != nil {
		rec.Record(op, 0, 0, err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := client.Do(req)
	latency := time.Since(start)
	if err != nil {
		// Requests cut off by the end of the run are not failures.
		if ctx.Err() == nil {
			rec.Record(op, latency, 0, err)
		}
		return
	}
	defer resp.Body.Close()
	if op == OpDigest {
		var out struct {
			CacheHit bool `json:"cache_hit"`
		}
		if json.NewDecoder(resp.Body).Decode(&out) == nil && out.CacheHit {
			rec.CacheHit()
		}
	}
	io.Copy(io.Discard, resp.Body)
	rec.Record(op, latency, resp.StatusCode, nil)
}

func writeReport(w io.Writer, rec *Recorder, cfg Config) error {
	total, failed := rec.Totals()
	if total == 0 {
		return errors.New("no requests completed; is the service running?")
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Operation", "Requests", "Errors", "P50", "P95", "P99", "Max", "StdDev"})
	for _, op := range cfg.Operations {
		res, ok := rec.ops[op]
		if !ok {
			continue
		}
		lat := slices.Clone(res.latencies)
		slices.Sort(lat)
		var slowest time.Duration
		if len(lat) > 0 {
			slowest = lat[len(lat)-1]
		}
		tw.AppendRow(table.Row{
			op, res.requests, res.errors,
			round(percentile(lat, 50)), round(percentile(lat, 95)), round(percentile(lat, 99)),
			round(slowest), round(stddev(lat)),
		})
	}
	tw.AppendFooter(table.Row{
		"total", total, failed,
		fmt.Sprintf("%.1f req/s", float64(total)/cfg.Duration.Seconds()),
		fmt.Sprintf("%.2f%% errors", float64(failed)/float64(total)*100),
		fmt.Sprintf("%d cache hits", rec.cacheHits),
	})
	cols := make([]table.ColumnConfig, 0, 7)
	for i := 2; i <= 8; i++ {
		cols = append(cols, table.ColumnConfig{Number: i, Align: text.AlignRight})
	}
	tw.SetColumnConfigs(cols)
	tw.Render()

	codes := make([]int, 0, len(rec.codes))
	for code := range rec.codes {
		codes = append(codes, code)
	}
	slices.Sort(codes)
	parts := make([]string, len(codes))
	for i, code := range codes {
		parts[i] = strconv.Itoa(code) + "=" + strconv.FormatInt(rec.codes[code], 10)
	}
	_, err := fmt.Fprintf(w, "status codes: %s\n", strings.Join(parts, " "))
	return err
}

func round(d time.Duration) time.Duration {
	return d.Round(10 * time.Microsecond)
}

func stddev(latencies []time.Duration) time.Duration {
	if len(latencies) == 0 {
		return 0
	}
	var sum float64
	for _, l := range latencies {
		sum += float64(l)
	}
	mean := sum / float64(len(latencies))
	var sq float64
	for _, l := range latencies {
		d := float64(l) - mean
		sq += d * d
	}
	return time.Duration(math.Sqrt(sq / float64(len(latencies))))
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	return sorted[max(0, min(idx, len(sorted)-1))]
}
