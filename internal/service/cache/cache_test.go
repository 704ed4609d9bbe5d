package cache

import (
	"context"
	"errors"
	"path"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/FbHash-Similarity-Platform/internal/digest"
	pkgredis "github.com/Adithya-Monish-Kumar-K/FbHash-Similarity-Platform/pkg/redis"
)

type memBackend struct {
	mu   sync.Mutex
	data map[string][]byte
	ttls map[string]time.Duration
}

func newMemBackend() *memBackend {
	return &memBackend{data: make(map[string][]byte), ttls: make(map[string]time.Duration)}
}

func (m *memBackend) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, pkgredis.ErrMiss
	}
	return v, nil
}

func (m *memBackend) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	m.ttls[key] = ttl
	return nil
}

func (m *memBackend) FlushByPattern(_ context.Context, pattern string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k := range m.data {
		if ok, _ := path.Match(pattern, k); ok {
			delete(m.data, k)
			n++
		}
	}
	return n, nil
}

func TestBuildKey(t *testing.T) {
	k1 := BuildKey("corpus-a", []byte("hello world"))
	if !strings.HasPrefix(k1, keyPrefix) {
		t.Errorf("key %q missing prefix", k1)
	}
	if k1 != BuildKey("corpus-a", []byte("hello world")) {
		t.Error("BuildKey is not deterministic")
	}
	if k1 == BuildKey("corpus-b", []byte("hello world")) {
		t.Error("different corpora share a key")
	}
	if k1 == BuildKey("corpus-a", []byte("hello worle")) {
		t.Error("different contents share a key")
	}
}

func TestGetOrCompute(t *testing.T) {
	backend := newMemBackend()
	c := New(backend, time.Minute)
	ctx := context.Background()
	content := []byte("abcdefghijklmnop")

	var calls atomic.Int32
	compute := func() (*digest.Digest, error) {
		calls.Add(1)
		return digest.NewBuilder(nil).Build(content), nil
	}

	d1, cached, err := c.GetOrCompute(ctx, "c", content, compute)
	if err != nil || cached {
		t.Fatalf("first call: cached=%v err=%v", cached, err)
	}
	d2, cached, err := c.GetOrCompute(ctx, "c", content, compute)
	if err != nil || !cached {
		t.Fatalf("second call: cached=%v err=%v", cached, err)
	}
	if calls.Load() != 1 {
		t.Errorf("compute called %d times, want 1", calls.Load())
	}
	if d1.Len() != d2.Len() || d1.Chunks() != d2.Chunks() {
		t.Errorf("cached digest differs: %d/%d vs %d/%d", d2.Len(), d2.Chunks(), d1.Len(), d1.Chunks())
	}
	if ttl := backend.ttls[BuildKey("c", content)]; ttl != time.Minute {
		t.Errorf("ttl = %v, want 1m", ttl)
	}

	s := c.Stats()
	if s.Hits != 1 || s.Misses != 1 || s.HitRate != 0.5 {
		t.Errorf("stats = %+v", s)
	}
}

func TestGetOrCompute_Error(t *testing.T) {
	c := New(newMemBackend(), time.Minute)
	boom := errors.New("boom")
	_, _, err := c.GetOrCompute(context.Background(), "c", []byte("x"), func() (*digest.Digest, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
	if _, ok := c.Get(context.Background(), "c", []byte("x")); ok {
		t.Error("failed computation was cached")
	}
}

func TestGet_CorruptEntry(t *testing.T) {
	backend := newMemBackend()
	c := New(backend, 0)
	backend.data[BuildKey("c", []byte("x"))] = []byte("{not json")
	if _, ok := c.Get(context.Background(), "c", []byte("x")); ok {
		t.Error("corrupt entry reported as hit")
	}
}

func TestInvalidate(t *testing.T) {
	backend := newMemBackend()
	c := New(backend, 0)
	ctx := context.Background()
	c.Set(ctx, "c", []byte("one"), digest.NewBuilder(nil).Build([]byte("one two three")))
	c.Set(ctx, "c", []byte("two"), digest.NewBuilder(nil).Build([]byte("four five six")))
	backend.data["other:key"] = []byte("keep")

	if err := c.Invalidate(ctx); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if len(backend.data) != 1 {
		t.Errorf("%d keys left, want 1", len(backend.data))
	}
}
