// Package reference assembles a loaded corpus into everything needed to
// score documents against it: the corpus statistics, a digest builder and
// the digests of the corpus members themselves.
package reference

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/Adithya-Monish-Kumar-K/FbHash-Similarity-Platform/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/FbHash-Similarity-Platform/internal/corpus/loader"
	"github.com/Adithya-Monish-Kumar-K/FbHash-Similarity-Platform/internal/digest"
	"github.com/Adithya-Monish-Kumar-K/FbHash-Similarity-Platform/internal/similarity"
	"github.com/Adithya-Monish-Kumar-K/FbHash-Similarity-Platform/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/FbHash-Similarity-Platform/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Set is an immutable reference corpus ready for scoring.
type Set struct {
	Corpus     *corpus.Corpus
	Builder    *digest.Builder
	Candidates []similarity.Candidate
}

// Load reads the corpus described by cfg and builds a Set from it.
func Load(ctx context.Context, cfg config.CorpusConfig) (*Set, error) {
	docs, err := loader.Load(ctx, cfg.Path, loader.Format(cfg.Format), cfg.Workers)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrCorpusUnavailable, err)
	}
	return New(ctx, docs, corpus.Options{Mode: corpus.Mode(cfg.Mode), Workers: cfg.Workers})
}

// New computes corpus statistics over docs and digests every member.
func New(ctx context.Context, docs []loader.Document, opts corpus.Options) (*Set, error) {
	c, err := corpus.New(ctx, loader.Contents(docs), opts)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	builder := digest.NewBuilder(c)
	candidates := make([]similarity.Candidate, len(docs))

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, doc := range docs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			candidates[i] = similarity.Candidate{Name: doc.Name, Digest: builder.Build(doc.Content)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("digesting corpus members: %w", err)
	}
	slog.Default().With("component", "reference").Info("corpus members digested",
		"documents", len(candidates),
		"duration", time.Since(start),
	)
	return &Set{Corpus: c, Builder: builder, Candidates: candidates}, nil
}

// Digest builds the digest of doc against the reference corpus.
func (s *Set) Digest(doc []byte) *digest.Digest {
	return s.Builder.Build(doc)
}

// Rank returns the limit corpus members most similar to target.
func (s *Set) Rank(target *digest.Digest, limit int) []similarity.Match {
	return similarity.Rank(target, s.Candidates, limit)
}
