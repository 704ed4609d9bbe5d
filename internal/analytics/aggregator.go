package analytics

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

const maxLatencySamples = 10000

// AggregatedStats summarises activity since startup.
type AggregatedStats struct {
	TotalDigests      int64        `json:"total_digests"`
	TotalScores       int64        `json:"total_scores"`
	TotalRanks        int64        `json:"total_ranks"`
	CacheHits         int64        `json:"cache_hits"`
	CacheMisses       int64        `json:"cache_misses"`
	DroppedEvents     int64        `json:"dropped_events"`
	ZeroScores        int64        `json:"zero_scores"`
	AvgScore          float64      `json:"avg_score"`
	ScoreHistogram    []ScoreBand  `json:"score_histogram"`
	AvgLatencyMs      float64      `json:"avg_latency_ms"`
	P50LatencyMs      int64        `json:"p50_latency_ms"`
	P95LatencyMs      int64        `json:"p95_latency_ms"`
	P99LatencyMs      int64        `json:"p99_latency_ms"`
	TopMatches        []MatchCount `json:"top_matches"`
	RequestsPerMinute float64      `json:"requests_per_minute"`
}

// ScoreBand counts scores in [Low, High).
type ScoreBand struct {
	Low   float64 `json:"low"`
	High  float64 `json:"high"`
	Count int64   `json:"count"`
}

// MatchCount counts how often a corpus document was the best match.
type MatchCount struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

var bandEdges = []float64{0, 20, 40, 60, 80, 100}

// Aggregator keeps in-memory statistics over tracked events.
type Aggregator struct {
	mu         sync.RWMutex
	digests    atomic.Int64
	scores     atomic.Int64
	ranks      atomic.Int64
	cacheHits  atomic.Int64
	cacheMiss  atomic.Int64
	dropped    atomic.Int64
	zeroScores atomic.Int64
	scoreSum   float64
	bands      []int64
	latencies  []int64
	topMatches map[string]int64
	startTime  time.Time
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		bands:      make([]int64, len(bandEdges)),
		latencies:  make([]int64, 0, 1024),
		topMatches: make(map[string]int64),
		startTime:  time.Now(),
	}
}

func (a *Aggregator) recordDigest(e DigestEvent) {
	a.digests.Add(1)
	if e.CacheHit {
		a.cacheHits.Add(1)
	} else {
		a.cacheMiss.Add(1)
	}
	a.mu.Lock()
	a.addLatency(e.LatencyMs)
	a.mu.Unlock()
}

func (a *Aggregator) recordScore(e ScoreEvent) {
	a.scores.Add(1)
	if e.Score == 0 {
		a.zeroScores.Add(1)
	}
	a.mu.Lock()
	a.scoreSum += e.Score
	a.bands[band(e.Score)]++
	a.addLatency(e.LatencyMs)
	a.mu.Unlock()
}

func (a *Aggregator) recordRank(e RankEvent) {
	a.ranks.Add(1)
	a.mu.Lock()
	if e.TopMatch != "" {
		a.topMatches[e.TopMatch]++
	}
	a.addLatency(e.LatencyMs)
	a.mu.Unlock()
}

// addLatency keeps the most recent samples; callers hold mu.
func (a *Aggregator) addLatency(ms int64) {
	if len(a.latencies) == maxLatencySamples {
		copy(a.latencies, a.latencies[1:])
		a.latencies = a.latencies[:maxLatencySamples-1]
	}
	a.latencies = append(a.latencies, ms)
}

// band returns the histogram slot for score; 100 has its own slot.
func band(score float64) int {
	for i := 1; i < len(bandEdges); i++ {
		if score < bandEdges[i] {
			return i - 1
		}
	}
	return len(bandEdges) - 1
}

// Stats returns a snapshot of the aggregated statistics.
func (a *Aggregator) Stats() AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		TotalDigests:  a.digests.Load(),
		TotalScores:   a.scores.Load(),
		TotalRanks:    a.ranks.Load(),
		CacheHits:     a.cacheHits.Load(),
		CacheMisses:   a.cacheMiss.Load(),
		DroppedEvents: a.dropped.Load(),
		ZeroScores:    a.zeroScores.Load(),
	}
	if stats.TotalScores > 0 {
		stats.AvgScore = a.scoreSum / float64(stats.TotalScores)
	}
	stats.ScoreHistogram = make([]ScoreBand, len(bandEdges))
	for i, low := range bandEdges {
		high := 100.0
		if i+1 < len(bandEdges) {
			high = bandEdges[i+1]
		}
		stats.ScoreHistogram[i] = ScoreBand{Low: low, High: high, Count: a.bands[i]}
	}
	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	stats.TopMatches = topN(a.topMatches, 10)
	if elapsed := time.Since(a.startTime).Minutes(); elapsed > 0 {
		stats.RequestsPerMinute = float64(stats.TotalDigests+stats.TotalScores+stats.TotalRanks) / elapsed
	}
	return stats
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func topN(counts map[string]int64, n int) []MatchCount {
	result := make([]MatchCount, 0, len(counts))
	for name, count := range counts {
		result = append(result, MatchCount{Name: name, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Name < result[j].Name
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
