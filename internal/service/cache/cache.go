// Package cache stores computed digests in Redis so repeated requests for
// the same content against the same corpus skip hashing.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/FbHash-Similarity-Platform/internal/digest"
	pkgredis "github.com/Adithya-Monish-Kumar-K/FbHash-Similarity-Platform/pkg/redis"
	"golang.org/x/sync/singleflight"
)

const keyPrefix = "digest:"

// Backend is the subset of the Redis client the cache uses.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// Stats reports cache effectiveness since startup.
type Stats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

// DigestCache is a read-through digest cache.
type DigestCache struct {
	backend Backend
	ttl     time.Duration
	group   singleflight.Group
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// New creates a DigestCache on top of backend, usually a *redis.Client.
func New(backend Backend, ttl time.Duration) *DigestCache {
	return &DigestCache{
		backend: backend,
		ttl:     ttl,
		logger:  slog.Default().With("component", "digest-cache"),
	}
}

// Get looks up the digest of content under corpusID.
func (c *DigestCache) Get(ctx context.Context, corpusID string, content []byte) (*digest.Digest, bool) {
	key := BuildKey(corpusID, content)
	data, err := c.backend.Get(ctx, key)
	if err != nil {
		if !pkgredis.IsMiss(err) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.misses.Add(1)
		return nil, false
	}
	var d digest.Digest
	if err := json.Unmarshal(data, &d); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	c.logger.Debug("cache hit", "key", key)
	return &d, true
}

// Set stores d as the digest of content under corpusID. Failures are logged
// and otherwise ignored.
func (c *DigestCache) Set(ctx context.Context, corpusID string, content []byte, d *digest.Digest) {
	key := BuildKey(corpusID, content)
	data, err := json.Marshal(d)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.backend.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached digest or computes, stores and returns
// it. Concurrent calls for the same key share one computation. The bool
// result reports whether the digest came from the cache.
func (c *DigestCache) GetOrCompute(
	ctx context.Context,
	corpusID string,
	content []byte,
	computeFn func() (*digest.Digest, error),
) (*digest.Digest, bool, error) {
	if d, ok := c.Get(ctx, corpusID, content); ok {
		return d, true, nil
	}
	key := BuildKey(corpusID, content)
	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		d, err := computeFn()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, corpusID, content, d)
		return d, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*digest.Digest), false, nil
}

// Invalidate drops every cached digest.
func (c *DigestCache) Invalidate(ctx context.Context) error {
	deleted, err := c.backend.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating digest cache: %w", err)
	}
	c.logger.Info("cache invalidate", "keys_deleted", deleted)
	return nil
}

// Stats returns hit and miss counters.
func (c *DigestCache) Stats() Stats {
	s := Stats{Hits: c.hits.Load(), Misses: c.misses.Load()}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s
}

// BuildKey derives the cache key for content digested against corpusID.
func BuildKey(corpusID string, content []byte) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s:%d:", corpusID, len(content))
	h.Write(content)
	return fmt.Sprintf("%s%x", keyPrefix, h.Sum(nil)[:16])
}
