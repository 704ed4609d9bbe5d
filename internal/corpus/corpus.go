// Package corpus computes the reference-corpus statistics FbHash uses to
// weight fingerprints by rarity. A Corpus is built once from an ordered
// collection of documents and is read-only afterwards, so it can be shared
// by concurrent digest computations.
package corpus

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/FbHash-Similarity-Platform/internal/fingerprint"
	"github.com/Adithya-Monish-Kumar-K/FbHash-Similarity-Platform/internal/weighting"
	apperrors "github.com/Adithya-Monish-Kumar-K/FbHash-Similarity-Platform/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Mode selects what DocumentFrequency counts.
type Mode string

const (
	// ModeOccurrence counts every chunk occurrence of a fingerprint across
	// the whole corpus.
	ModeOccurrence Mode = "occurrence"
	// ModeContainment counts the corpus documents that contain a
	// fingerprint at least once.
	ModeContainment Mode = "containment"
)

// ParseMode converts a configuration string into a Mode. The empty string
// selects ModeOccurrence.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeOccurrence:
		return ModeOccurrence, nil
	case ModeContainment:
		return ModeContainment, nil
	default:
		return "", fmt.Errorf("%w: unknown corpus mode %q", apperrors.ErrInvalidInput, s)
	}
}

// Options controls corpus construction.
type Options struct {
	Mode    Mode
	Workers int
}

// Corpus holds per-fingerprint statistics over N reference documents.
type Corpus struct {
	mode        Mode
	size        int
	totalChunks int
	occurrences map[uint64]int
	containing  map[uint64]int
	id          string
}

// Stats summarises a corpus.
type Stats struct {
	Documents            int    `json:"documents"`
	TotalChunks          int    `json:"total_chunks"`
	DistinctFingerprints int    `json:"distinct_fingerprints"`
	Mode                 Mode   `json:"mode"`
	ID                   string `json:"id"`
}

// New hashes every document and accumulates the corpus statistics.
// Documents are processed concurrently; the result does not depend on the
// number of workers.
func New(ctx context.Context, docs [][]byte, opts Options) (*Corpus, error) {
	mode, err := ParseMode(string(opts.Mode))
	if err != nil {
		return nil, err
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	start := time.Now()
	c := &Corpus{
		mode:        mode,
		size:        len(docs),
		occurrences: make(map[uint64]int),
		containing:  make(map[uint64]int),
		id:          identify(docs, mode),
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, doc := range docs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			table := weighting.Frequencies(fingerprint.Fingerprints(doc))
			mu.Lock()
			defer mu.Unlock()
			for fp, n := range table.Counts {
				c.occurrences[fp] += n
				c.containing[fp]++
				c.totalChunks += n
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("computing corpus statistics: %w", err)
	}

	slog.Default().With("component", "corpus").Info("corpus statistics computed",
		"documents", c.size,
		"total_chunks", c.totalChunks,
		"distinct_fingerprints", len(c.occurrences),
		"mode", c.mode,
		"duration", time.Since(start),
	)
	return c, nil
}

// FromStrings is a convenience wrapper around New for string documents.
func FromStrings(ctx context.Context, docs []string, opts Options) (*Corpus, error) {
	raw := make([][]byte, len(docs))
	for i, d := range docs {
		raw[i] = []byte(d)
	}
	return New(ctx, raw, opts)
}

// Size returns N, the number of corpus documents.
func (c *Corpus) Size() int {
	return c.size
}

// Mode reports which document-frequency semantics the corpus uses.
func (c *Corpus) Mode() Mode {
	return c.mode
}

// ID identifies the corpus contents and mode. Digests computed against
// corpora with different IDs are not comparable.
func (c *Corpus) ID() string {
	return c.id
}

// Occurrences returns the total number of chunk occurrences of fp across
// all corpus documents.
func (c *Corpus) Occurrences(fp uint64) int {
	return c.occurrences[fp]
}

// Containing returns the number of corpus documents containing fp.
func (c *Corpus) Containing(fp uint64) int {
	return c.containing[fp]
}

// DocumentFrequency returns the frequency used for document weighting.
func (c *Corpus) DocumentFrequency(fp uint64) int {
	if c.mode == ModeContainment {
		return c.Containing(fp)
	}
	return c.Occurrences(fp)
}

// Weight returns the document weight of fp against this corpus.
func (c *Corpus) Weight(fp uint64) float64 {
	return weighting.DocumentWeight(c.DocumentFrequency(fp), c.size)
}

// Stats returns a summary of the corpus.
func (c *Corpus) Stats() Stats {
	return Stats{
		Documents:            c.size,
		TotalChunks:          c.totalChunks,
		DistinctFingerprints: len(c.occurrences),
		Mode:                 c.mode,
		ID:                   c.id,
	}
}

func identify(docs [][]byte, mode Mode) string {
	h := sha256.New()
	h.Write([]byte(mode))
	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], uint64(fingerprint.ChunkSize))
	h.Write(lenBuf[:])
	for _, doc := range docs {
		binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(doc)))
		h.Write(lenBuf[:])
		h.Write(doc)
	}
	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:16])
}
