// Package analytics tracks digest and similarity activity. Events feed an
// in-process aggregator and, when Kafka is configured, are published in
// batches to the events topic.
package analytics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/FbHash-Similarity-Platform/pkg/kafka"
)

// Publisher writes a batch of events to the event bus.
type Publisher interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

// CollectorConfig tunes buffering and batching.
type CollectorConfig struct {
	BufferSize    int
	BatchSize     int
	FlushInterval time.Duration
}

// Collector buffers events and publishes them from a background goroutine.
// Track never blocks; events are dropped when the buffer is full.
type Collector struct {
	publisher     Publisher
	aggregator    *Aggregator
	eventCh       chan kafka.Event
	batchSize     int
	flushInterval time.Duration
	logger        *slog.Logger
	done          chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewCollector creates a Collector. publisher may be nil, in which case
// events only reach the aggregator.
func NewCollector(publisher Publisher, aggregator *Aggregator, cfg CollectorConfig) *Collector {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 10000
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = time.Second
	}
	if aggregator == nil {
		aggregator = NewAggregator()
	}
	return &Collector{
		publisher:     publisher,
		aggregator:    aggregator,
		eventCh:       make(chan kafka.Event, cfg.BufferSize),
		batchSize:     cfg.BatchSize,
		flushInterval: cfg.FlushInterval,
		logger:        slog.Default().With("component", "analytics-collector"),
		done:          make(chan struct{}),
	}
}

// Aggregator returns the aggregator fed by this collector.
func (c *Collector) Aggregator() *Aggregator {
	return c.aggregator
}

// Start launches the publishing loop. It stops when ctx is cancelled or
// Close is called, flushing whatever is buffered.
func (c *Collector) Start(ctx context.Context) {
	go func() {
		defer close(c.done)
		ticker := time.NewTicker(c.flushInterval)
		defer ticker.Stop()
		batch := make([]kafka.Event, 0, c.batchSize)
		for {
			select {
			case event, ok := <-c.eventCh:
				if !ok {
					c.flush(context.Background(), batch)
					return
				}
				batch = append(batch, event)
				if len(batch) >= c.batchSize {
					c.flush(ctx, batch)
					batch = batch[:0]
				}
			case <-ticker.C:
				c.flush(ctx, batch)
				batch = batch[:0]
			case <-ctx.Done():
				batch = c.drainRemaining(batch)
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				c.flush(flushCtx, batch)
				cancel()
				return
			}
		}
	}()
	c.logger.Info("analytics collector started",
		"buffer_size", cap(c.eventCh),
		"batch_size", c.batchSize,
		"publishing", c.publisher != nil,
	)
}

// TrackDigest records a digest computation.
func (c *Collector) TrackDigest(e DigestEvent) {
	e.Type = EventDigest
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	c.aggregator.recordDigest(e)
	c.track(e.CorpusID, e.Type, e)
}

// TrackScore records a similarity score.
func (c *Collector) TrackScore(e ScoreEvent) {
	e.Type = EventScore
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	c.aggregator.recordScore(e)
	c.track(e.CorpusID, e.Type, e)
}

// TrackRank records a ranking request.
func (c *Collector) TrackRank(e RankEvent) {
	e.Type = EventRank
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	c.aggregator.recordRank(e)
	c.track(e.CorpusID, e.Type, e)
}

func (c *Collector) track(key string, typ EventType, value any) {
	if c.publisher == nil {
		return
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		c.aggregator.dropped.Add(1)
		return
	}
	select {
	case c.eventCh <- kafka.Event{Key: key, Type: string(typ), Value: value}:
	default:
		c.aggregator.dropped.Add(1)
		c.logger.Warn("analytics event dropped (buffer full)")
	}
}

// Close stops the publishing loop after flushing buffered events. Events
// tracked after Close still reach the aggregator but are counted as dropped
// instead of published. Close is idempotent.
func (c *Collector) Close() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.eventCh)
	}
	c.mu.Unlock()
	<-c.done
}

func (c *Collector) drainRemaining(batch []kafka.Event) []kafka.Event {
	for {
		select {
		case event, ok := <-c.eventCh:
			if !ok {
				return batch
			}
			batch = append(batch, event)
		default:
			return batch
		}
	}
}

func (c *Collector) flush(ctx context.Context, batch []kafka.Event) {
	if len(batch) == 0 || c.publisher == nil {
		return
	}
	if err := c.publisher.PublishBatch(ctx, batch); err != nil {
		c.aggregator.dropped.Add(int64(len(batch)))
		c.logger.Error("failed to publish analytics events", "count", len(batch), "error", err)
		return
	}
	c.logger.Debug("analytics events published", "count", len(batch))
}
