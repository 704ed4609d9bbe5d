package analytics

import "time"

type EventType string

const (
	EventDigest EventType = "digest"
	EventScore  EventType = "score"
	EventRank   EventType = "rank"
)

// DigestEvent records one digest computation.
type DigestEvent struct {
	Type         EventType `json:"type"`
	DocumentID   string    `json:"document_id,omitempty"`
	CorpusID     string    `json:"corpus_id"`
	SizeBytes    int       `json:"size_bytes"`
	Chunks       int       `json:"chunks"`
	Fingerprints int       `json:"fingerprints"`
	CacheHit     bool      `json:"cache_hit"`
	LatencyMs    int64     `json:"latency_ms"`
	Timestamp    time.Time `json:"timestamp"`
	RequestID    string    `json:"request_id,omitempty"`
}

// ScoreEvent records one pairwise similarity score.
type ScoreEvent struct {
	Type      EventType `json:"type"`
	Left      string    `json:"left,omitempty"`
	Right     string    `json:"right,omitempty"`
	CorpusID  string    `json:"corpus_id"`
	Score     float64   `json:"score"`
	LatencyMs int64     `json:"latency_ms"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

// RankEvent records a ranking of one document against the corpus.
type RankEvent struct {
	Type      EventType `json:"type"`
	CorpusID  string    `json:"corpus_id"`
	Returned  int       `json:"returned"`
	TopMatch  string    `json:"top_match,omitempty"`
	TopScore  float64   `json:"top_score"`
	LatencyMs int64     `json:"latency_ms"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}
