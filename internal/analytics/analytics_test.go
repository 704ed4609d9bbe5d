package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/FbHash-Similarity-Platform/pkg/kafka"
)

type fakePublisher struct {
	mu     sync.Mutex
	events []kafka.Event
	err    error
}

func (p *fakePublisher) PublishBatch(_ context.Context, events []kafka.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, events...)
	return nil
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

func TestCollector_PublishesOnClose(t *testing.T) {
	pub := &fakePublisher{}
	c := NewCollector(pub, nil, CollectorConfig{BatchSize: 50, FlushInterval: time.Hour})
	c.Start(context.Background())

	c.TrackDigest(DigestEvent{CorpusID: "c", Chunks: 10, Fingerprints: 8})
	c.TrackScore(ScoreEvent{CorpusID: "c", Score: 42})
	c.TrackRank(RankEvent{CorpusID: "c", TopMatch: "doc-1", TopScore: 90})
	c.Close()

	if pub.count() != 3 {
		t.Fatalf("published %d events, want 3", pub.count())
	}
	var got map[string]any
	if err := json.Unmarshal(mustEncode(t, pub.events[1]), &got); err != nil {
		t.Fatal(err)
	}
	if got["type"] != string(EventScore) || got["score"] != 42.0 {
		t.Errorf("score event = %v", got)
	}
	if pub.events[0].Key != "c" {
		t.Errorf("event key = %q, want corpus id", pub.events[0].Key)
	}
	if pub.events[2].Type != string(EventRank) {
		t.Errorf("event type = %q, want rank", pub.events[2].Type)
	}
}

func mustEncode(t *testing.T, e kafka.Event) []byte {
	t.Helper()
	msgs, err := kafka.Encode(e)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return msgs[0].Value
}

func TestCollector_FlushesFullBatch(t *testing.T) {
	pub := &fakePublisher{}
	c := NewCollector(pub, nil, CollectorConfig{BatchSize: 2, FlushInterval: time.Hour})
	c.Start(context.Background())
	defer c.Close()

	c.TrackScore(ScoreEvent{Score: 1})
	c.TrackScore(ScoreEvent{Score: 2})

	deadline := time.Now().Add(2 * time.Second)
	for pub.count() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if pub.count() != 2 {
		t.Errorf("published %d events before close, want 2", pub.count())
	}
}

func TestCollector_DropsWhenBufferFull(t *testing.T) {
	pub := &fakePublisher{}
	c := NewCollector(pub, nil, CollectorConfig{BufferSize: 1})
	// Not started: the second event cannot be buffered.
	c.TrackScore(ScoreEvent{Score: 1})
	c.TrackScore(ScoreEvent{Score: 2})

	if got := c.Aggregator().Stats().DroppedEvents; got != 1 {
		t.Errorf("dropped = %d, want 1", got)
	}
	c.Start(context.Background())
	c.Close()
	if pub.count() != 1 {
		t.Errorf("published %d events, want 1", pub.count())
	}
}

func TestCollector_PublishFailureCountsDropped(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	c := NewCollector(pub, nil, CollectorConfig{})
	c.Start(context.Background())
	c.TrackScore(ScoreEvent{Score: 1})
	c.Close()
	if got := c.Aggregator().Stats().DroppedEvents; got != 1 {
		t.Errorf("dropped = %d, want 1", got)
	}
}

func TestCollector_TrackAfterClose(t *testing.T) {
	pub := &fakePublisher{}
	c := NewCollector(pub, nil, CollectorConfig{})
	c.Start(context.Background())
	c.TrackScore(ScoreEvent{Score: 10})
	c.Close()

	c.TrackScore(ScoreEvent{Score: 20})
	c.TrackDigest(DigestEvent{})
	c.TrackRank(RankEvent{})
	c.Close()

	s := c.Aggregator().Stats()
	if s.TotalScores != 2 || s.TotalDigests != 1 || s.TotalRanks != 1 {
		t.Errorf("stats = %+v, want every event aggregated", s)
	}
	if s.DroppedEvents != 3 {
		t.Errorf("dropped = %d, want 3", s.DroppedEvents)
	}
	if pub.count() != 1 {
		t.Errorf("published %d events, want 1", pub.count())
	}
}

func TestCollector_ConcurrentTrackAndClose(t *testing.T) {
	c := NewCollector(&fakePublisher{}, nil, CollectorConfig{BufferSize: 16})
	c.Start(context.Background())

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 200 {
				c.TrackScore(ScoreEvent{Score: 50})
			}
		}()
	}
	c.Close()
	wg.Wait()

	if got := c.Aggregator().Stats().TotalScores; got != 1600 {
		t.Errorf("total scores = %d, want 1600", got)
	}
}

func TestCollector_NilPublisher(t *testing.T) {
	c := NewCollector(nil, nil, CollectorConfig{})
	c.Start(context.Background())
	c.TrackDigest(DigestEvent{CacheHit: true})
	c.Close()
	s := c.Aggregator().Stats()
	if s.TotalDigests != 1 || s.CacheHits != 1 || s.DroppedEvents != 0 {
		t.Errorf("stats = %+v", s)
	}
}

func TestAggregator_Stats(t *testing.T) {
	a := NewAggregator()
	a.recordScore(ScoreEvent{Score: 0, LatencyMs: 1})
	a.recordScore(ScoreEvent{Score: 50, LatencyMs: 2})
	a.recordScore(ScoreEvent{Score: 100, LatencyMs: 3})
	a.recordRank(RankEvent{TopMatch: "b", LatencyMs: 4})
	a.recordRank(RankEvent{TopMatch: "a", LatencyMs: 5})
	a.recordRank(RankEvent{TopMatch: "b", LatencyMs: 6})
	a.recordDigest(DigestEvent{CacheHit: false, LatencyMs: 7})

	s := a.Stats()
	if s.TotalScores != 3 || s.TotalRanks != 3 || s.TotalDigests != 1 {
		t.Errorf("totals = %d/%d/%d", s.TotalScores, s.TotalRanks, s.TotalDigests)
	}
	if s.ZeroScores != 1 || s.AvgScore != 50 {
		t.Errorf("zero=%d avg=%v", s.ZeroScores, s.AvgScore)
	}
	wantBands := []int64{1, 0, 1, 0, 0, 1}
	for i, b := range s.ScoreHistogram {
		if b.Count != wantBands[i] {
			t.Errorf("band %v-%v = %d, want %d", b.Low, b.High, b.Count, wantBands[i])
		}
	}
	if len(s.TopMatches) != 2 || s.TopMatches[0] != (MatchCount{Name: "b", Count: 2}) {
		t.Errorf("top matches = %+v", s.TopMatches)
	}
	if s.P50LatencyMs != 4 || s.P99LatencyMs != 7 || s.AvgLatencyMs != 4 {
		t.Errorf("latency avg=%v p50=%d p99=%d", s.AvgLatencyMs, s.P50LatencyMs, s.P99LatencyMs)
	}
	if s.CacheMisses != 1 {
		t.Errorf("cache misses = %d, want 1", s.CacheMisses)
	}
}

func TestBand(t *testing.T) {
	tests := []struct {
		score float64
		want  int
	}{
		{0, 0}, {19.999, 0}, {20, 1}, {79.5, 3}, {99.99999, 4}, {100, 5},
	}
	for _, tt := range tests {
		if got := band(tt.score); got != tt.want {
			t.Errorf("band(%v) = %d, want %d", tt.score, got, tt.want)
		}
	}
}
