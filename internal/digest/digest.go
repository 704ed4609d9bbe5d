// Package digest builds FbHash digests: for each fingerprint of a document,
// the product of its in-document chunk weight and its corpus document weight.
//
// A Digest is sparse. To compare digests of different documents, project
// them onto a shared Index (the sorted union of their fingerprints) with
// Vector; fingerprints missing from a digest project to zero.
package digest

import (
	"encoding/json"
	"fmt"
	"iter"
	"math"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/FbHash-Similarity-Platform/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/FbHash-Similarity-Platform/internal/fingerprint"
	"github.com/Adithya-Monish-Kumar-K/FbHash-Similarity-Platform/internal/weighting"
	apperrors "github.com/Adithya-Monish-Kumar-K/FbHash-Similarity-Platform/pkg/errors"
)

// Entry is the weight of one fingerprint.
type Entry struct {
	Fingerprint uint64  `json:"fp"`
	Weight      float64 `json:"w"`
}

// Digest maps fingerprints to weights. Entries keep the order in which
// fingerprints first appear in the document.
type Digest struct {
	entries []Entry
	pos     map[uint64]int
	chunks  int
}

// Builder computes digests against a fixed corpus. It is safe for
// concurrent use.
type Builder struct {
	corpus *corpus.Corpus
}

// NewBuilder returns a Builder weighting fingerprints against c. A nil
// corpus weights every fingerprint as unseen.
func NewBuilder(c *corpus.Corpus) *Builder {
	return &Builder{corpus: c}
}

// Corpus returns the corpus the builder weights against.
func (b *Builder) Corpus() *corpus.Corpus {
	return b.corpus
}

// Build computes the digest of doc. Documents shorter than the chunk size
// produce an empty digest.
func (b *Builder) Build(doc []byte) *Digest {
	fps := fingerprint.Fingerprints(doc)
	table := weighting.Frequencies(fps)
	d := &Digest{
		entries: make([]Entry, 0, table.Len()),
		pos:     make(map[uint64]int, table.Len()),
		chunks:  len(fps),
	}
	for _, fp := range table.Keys {
		d.pos[fp] = len(d.entries)
		d.entries = append(d.entries, Entry{
			Fingerprint: fp,
			Weight:      weighting.ChunkWeight(table.Count(fp)) * b.documentWeight(fp),
		})
	}
	return d
}

func (b *Builder) documentWeight(fp uint64) float64 {
	if b.corpus == nil {
		return weighting.DocumentWeight(0, 0)
	}
	return b.corpus.Weight(fp)
}

// FromEntries reassembles a digest from stored entries.
func FromEntries(entries []Entry, chunks int) (*Digest, error) {
	d := &Digest{
		entries: make([]Entry, 0, len(entries)),
		pos:     make(map[uint64]int, len(entries)),
		chunks:  chunks,
	}
	for _, e := range entries {
		if _, dup := d.pos[e.Fingerprint]; dup {
			return nil, fmt.Errorf("%w: duplicate fingerprint %d in digest", apperrors.ErrInvalidInput, e.Fingerprint)
		}
		if math.IsNaN(e.Weight) || math.IsInf(e.Weight, 0) {
			return nil, fmt.Errorf("%w: non-finite weight for fingerprint %d", apperrors.ErrInvalidInput, e.Fingerprint)
		}
		d.pos[e.Fingerprint] = len(d.entries)
		d.entries = append(d.entries, e)
	}
	return d, nil
}

// Len returns the number of distinct fingerprints.
func (d *Digest) Len() int {
	return len(d.entries)
}

// Chunks returns the number of chunks the document produced.
func (d *Digest) Chunks() int {
	return d.chunks
}

// Empty reports whether the digest has no fingerprints.
func (d *Digest) Empty() bool {
	return len(d.entries) == 0
}

// Entries returns a copy of the digest entries in first-seen order.
func (d *Digest) Entries() []Entry {
	out := make([]Entry, len(d.entries))
	copy(out, d.entries)
	return out
}

// All iterates over the entries in first-seen order without copying.
func (d *Digest) All() iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		for _, e := range d.entries {
			if !yield(e) {
				return
			}
		}
	}
}

// Weight returns the weight of fp and whether the digest contains it.
func (d *Digest) Weight(fp uint64) (float64, bool) {
	i, ok := d.pos[fp]
	if !ok {
		return 0, false
	}
	return d.entries[i].Weight, true
}

// Norm returns the Euclidean length of the digest.
func (d *Digest) Norm() float64 {
	var sum float64
	for _, e := range d.entries {
		sum += e.Weight * e.Weight
	}
	return math.Sqrt(sum)
}

// Legacy returns the weights over the digest's own distinct fingerprints in
// first-seen order. Vectors produced this way line up only when both sides
// share the same fingerprint set in the same order; use Vector for
// comparisons between different documents.
func (d *Digest) Legacy() []float64 {
	out := make([]float64, len(d.entries))
	for i, e := range d.entries {
		out[i] = e.Weight
	}
	return out
}

// Vector projects the digest onto idx, zero-filling absent fingerprints.
func (d *Digest) Vector(idx Index) []float64 {
	out := make([]float64, len(idx.fps))
	for i, fp := range idx.fps {
		if j, ok := d.pos[fp]; ok {
			out[i] = d.entries[j].Weight
		}
	}
	return out
}

type digestJSON struct {
	Chunks  int     `json:"chunks"`
	Entries []Entry `json:"entries"`
}

// MarshalJSON encodes the digest with its entries in first-seen order.
func (d *Digest) MarshalJSON() ([]byte, error) {
	entries := d.entries
	if entries == nil {
		entries = []Entry{}
	}
	return json.Marshal(digestJSON{Chunks: d.chunks, Entries: entries})
}

// UnmarshalJSON decodes a digest produced by MarshalJSON.
func (d *Digest) UnmarshalJSON(data []byte) error {
	var raw digestJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	decoded, err := FromEntries(raw.Entries, raw.Chunks)
	if err != nil {
		return err
	}
	*d = *decoded
	return nil
}

// Index is an ordered fingerprint set shared by digests that will be
// compared position by position.
type Index struct {
	fps []uint64
}

// NewIndex returns the sorted union of the digests' fingerprints.
func NewIndex(digests ...*Digest) Index {
	seen := make(map[uint64]struct{})
	for _, d := range digests {
		for _, e := range d.entries {
			seen[e.Fingerprint] = struct{}{}
		}
	}
	fps := make([]uint64, 0, len(seen))
	for fp := range seen {
		fps = append(fps, fp)
	}
	sort.Slice(fps, func(i, j int) bool { return fps[i] < fps[j] })
	return Index{fps: fps}
}

// Len returns the number of fingerprints in the index.
func (idx Index) Len() int {
	return len(idx.fps)
}

// Fingerprints returns a copy of the indexed fingerprints.
func (idx Index) Fingerprints() []uint64 {
	out := make([]uint64, len(idx.fps))
	copy(out, idx.fps)
	return out
}

// Align projects every digest onto the union of their fingerprints.
func Align(digests ...*Digest) [][]float64 {
	idx := NewIndex(digests...)
	out := make([][]float64, len(digests))
	for i, d := range digests {
		out[i] = d.Vector(idx)
	}
	return out
}
