// Package handler exposes digest, similarity and ranking operations over
// HTTP.
package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/FbHash-Similarity-Platform/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/FbHash-Similarity-Platform/internal/digest"
	"github.com/Adithya-Monish-Kumar-K/FbHash-Similarity-Platform/internal/reference"
	"github.com/Adithya-Monish-Kumar-K/FbHash-Similarity-Platform/internal/service/cache"
	"github.com/Adithya-Monish-Kumar-K/FbHash-Similarity-Platform/internal/similarity"
	"github.com/Adithya-Monish-Kumar-K/FbHash-Similarity-Platform/internal/store"
	apperrors "github.com/Adithya-Monish-Kumar-K/FbHash-Similarity-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/FbHash-Similarity-Platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/FbHash-Similarity-Platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/FbHash-Similarity-Platform/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/FbHash-Similarity-Platform/pkg/tracing"
)

// DigestStore persists digests by document id.
type DigestStore interface {
	Save(ctx context.Context, rec store.Record) error
	Get(ctx context.Context, documentID string) (*store.Record, error)
	Delete(ctx context.Context, documentID string) error
}

// Options bounds request handling.
type Options struct {
	MaxDocumentBytes int64
	RankLimit        int
}

type Handler struct {
	ref       *reference.Set
	cache     *cache.DigestCache
	store     DigestStore
	collector *analytics.Collector
	metrics   *metrics.Metrics
	maxBytes  int64
	rankLimit int
	logger    *slog.Logger
}

// New creates a Handler. cache, store, collector and m may be nil.
func New(ref *reference.Set, digestCache *cache.DigestCache, digestStore DigestStore,
	collector *analytics.Collector, m *metrics.Metrics, opts Options) *Handler {
	if opts.MaxDocumentBytes <= 0 {
		opts.MaxDocumentBytes = 16 << 20
	}
	if opts.RankLimit <= 0 {
		opts.RankLimit = 10
	}
	return &Handler{
		ref:       ref,
		cache:     digestCache,
		store:     digestStore,
		collector: collector,
		metrics:   m,
		maxBytes:  opts.MaxDocumentBytes,
		rankLimit: opts.RankLimit,
		logger:    slog.Default().With("component", "digest-handler"),
	}
}

// Register mounts the API routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/digest", h.Digest)
	mux.HandleFunc("GET /api/v1/digests/{id}", h.GetDigest)
	mux.HandleFunc("DELETE /api/v1/digests/{id}", h.DeleteDigest)
	mux.HandleFunc("POST /api/v1/similarity", h.Similarity)
	mux.HandleFunc("POST /api/v1/rank", h.Rank)
	mux.HandleFunc("GET /api/v1/corpus", h.Corpus)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
	mux.HandleFunc("GET /api/v1/analytics", h.Analytics)
}

// DocumentInput names a document either by content or by the id of a
// stored digest. Content takes precedence.
type DocumentInput struct {
	DocumentID    string  `json:"document_id,omitempty"`
	Content       *string `json:"content,omitempty"`
	ContentBase64 string  `json:"content_base64,omitempty"`
}

func (in DocumentInput) hasContent() bool {
	return in.Content != nil || in.ContentBase64 != ""
}

type DigestRequest struct {
	DocumentInput
	IncludeEntries bool `json:"include_entries"`
}

type DigestResponse struct {
	DocumentID   string         `json:"document_id,omitempty"`
	CorpusID     string         `json:"corpus_id"`
	Chunks       int            `json:"chunks"`
	Fingerprints int            `json:"fingerprints"`
	Norm         float64        `json:"norm"`
	CacheHit     bool           `json:"cache_hit"`
	Stored       bool           `json:"stored"`
	Entries      []digest.Entry `json:"entries,omitempty"`
}

type SimilarityRequest struct {
	A DocumentInput `json:"a"`
	B DocumentInput `json:"b"`
}

type SimilarityResponse struct {
	Score        float64 `json:"score"`
	DisplayScore float64 `json:"display_score"`
	CorpusID     string  `json:"corpus_id"`
}

type RankRequest struct {
	DocumentInput
	Limit int `json:"limit"`
}

type RankResponse struct {
	CorpusID string             `json:"corpus_id"`
	Matches  []similarity.Match `json:"matches"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func (h *Handler) Digest(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	var req DigestRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if !req.hasContent() {
		h.writeError(w, r, apperrors.New(apperrors.ErrInvalidInput, "content or content_base64 is required"))
		return
	}
	content, err := h.content(req.DocumentInput)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	d, cacheHit, err := h.computeDigest(ctx, content)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := DigestResponse{
		DocumentID:   req.DocumentID,
		CorpusID:     h.ref.Corpus.ID(),
		Chunks:       d.Chunks(),
		Fingerprints: d.Len(),
		Norm:         d.Norm(),
		CacheHit:     cacheHit,
	}
	if req.IncludeEntries {
		resp.Entries = d.Entries()
	}
	if req.DocumentID != "" && h.store != nil {
		err := h.store.Save(ctx, store.NewRecord(req.DocumentID, h.ref.Corpus.ID(), content, d))
		h.observeStoreWrite(err)
		if err != nil {
			log.Error("storing digest failed", "document_id", req.DocumentID, "error", err)
			h.writeError(w, r, err)
			return
		}
		resp.Stored = true
	}

	latencyMs := time.Since(start).Milliseconds()
	log.Info("digest computed",
		"document_id", req.DocumentID,
		"bytes", len(content),
		"chunks", d.Chunks(),
		"fingerprints", d.Len(),
		"cache_hit", cacheHit,
		"latency_ms", latencyMs,
	)
	if h.collector != nil {
		h.collector.TrackDigest(analytics.DigestEvent{
			DocumentID:   req.DocumentID,
			CorpusID:     resp.CorpusID,
			SizeBytes:    len(content),
			Chunks:       d.Chunks(),
			Fingerprints: d.Len(),
			CacheHit:     cacheHit,
			LatencyMs:    latencyMs,
			Timestamp:    time.Now().UTC(),
			RequestID:    middleware.GetRequestID(ctx),
		})
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) GetDigest(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		h.writeError(w, r, apperrors.New(apperrors.ErrDocumentNotFound, "digest store is disabled"))
		return
	}
	rec, err := h.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	resp := DigestResponse{
		DocumentID:   rec.DocumentID,
		CorpusID:     rec.CorpusID,
		Chunks:       rec.Digest.Chunks(),
		Fingerprints: rec.Digest.Len(),
		Norm:         rec.Digest.Norm(),
		Stored:       true,
	}
	if r.URL.Query().Get("entries") == "true" {
		resp.Entries = rec.Digest.Entries()
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) DeleteDigest(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		h.writeError(w, r, apperrors.New(apperrors.ErrDocumentNotFound, "digest store is disabled"))
		return
	}
	if err := h.store.Delete(r.Context(), r.PathValue("id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Similarity(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()

	var req SimilarityRequest
	if err := h.decode(w, r, &req); err != nil {
		h.countSimilarity(err)
		h.writeError(w, r, err)
		return
	}
	a, err := h.resolve(ctx, req.A)
	if err != nil {
		h.countSimilarity(err)
		h.writeError(w, r, fmt.Errorf("document a: %w", err))
		return
	}
	b, err := h.resolve(ctx, req.B)
	if err != nil {
		h.countSimilarity(err)
		h.writeError(w, r, fmt.Errorf("document b: %w", err))
		return
	}

	_, span := tracing.StartChildSpan(ctx, "similarity.compare")
	score := similarity.Compare(a, b)
	span.SetAttr("score", score)
	span.End()
	h.countSimilarity(nil)
	if h.metrics != nil {
		h.metrics.SimilarityScores.Observe(score)
	}
	latencyMs := time.Since(start).Milliseconds()
	logger.FromContext(ctx).Info("similarity scored",
		"a", describe(req.A),
		"b", describe(req.B),
		"score", score,
		"latency_ms", latencyMs,
	)
	if h.collector != nil {
		h.collector.TrackScore(analytics.ScoreEvent{
			Left:      req.A.DocumentID,
			Right:     req.B.DocumentID,
			CorpusID:  h.ref.Corpus.ID(),
			Score:     score,
			LatencyMs: latencyMs,
			Timestamp: time.Now().UTC(),
			RequestID: middleware.GetRequestID(ctx),
		})
	}
	h.writeJSON(w, http.StatusOK, SimilarityResponse{
		Score:        score,
		DisplayScore: similarity.Round(score),
		CorpusID:     h.ref.Corpus.ID(),
	})
}

func (h *Handler) Rank(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()

	var req RankRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.Limit < 0 {
		h.writeError(w, r, apperrors.New(apperrors.ErrInvalidInput, "limit must not be negative"))
		return
	}
	limit := req.Limit
	if limit == 0 {
		limit = h.rankLimit
	}
	target, err := h.resolve(ctx, req.DocumentInput)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	_, span := tracing.StartChildSpan(ctx, "rank")
	matches := h.ref.Rank(target, limit)
	span.SetAttr("candidates", len(h.ref.Candidates))
	span.End()
	latencyMs := time.Since(start).Milliseconds()
	logger.FromContext(ctx).Info("rank completed",
		"document", describe(req.DocumentInput),
		"candidates", len(h.ref.Candidates),
		"returned", len(matches),
		"latency_ms", latencyMs,
	)
	if h.collector != nil {
		event := analytics.RankEvent{
			CorpusID:  h.ref.Corpus.ID(),
			Returned:  len(matches),
			LatencyMs: latencyMs,
			Timestamp: time.Now().UTC(),
			RequestID: middleware.GetRequestID(ctx),
		}
		if len(matches) > 0 {
			event.TopMatch = matches[0].Name
			event.TopScore = matches[0].Score
		}
		h.collector.TrackRank(event)
	}
	h.writeJSON(w, http.StatusOK, RankResponse{CorpusID: h.ref.Corpus.ID(), Matches: matches})
}

func (h *Handler) Corpus(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.ref.Corpus.Stats())
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	h.writeJSON(w, http.StatusOK, h.cache.Stats())
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, r, apperrors.New(apperrors.ErrCorpusUnavailable, "caching is disabled"))
		return
	}
	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

// Analytics reports request statistics aggregated by the event collector.
func (h *Handler) Analytics(w http.ResponseWriter, r *http.Request) {
	if h.collector == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	h.writeJSON(w, http.StatusOK, h.collector.Aggregator().Stats())
}

// resolve returns the digest for in, computing it from content or loading
// it from the store.
func (h *Handler) resolve(ctx context.Context, in DocumentInput) (*digest.Digest, error) {
	if in.hasContent() {
		content, err := h.content(in)
		if err != nil {
			return nil, err
		}
		d, _, err := h.computeDigest(ctx, content)
		return d, err
	}
	if in.DocumentID == "" {
		return nil, apperrors.New(apperrors.ErrInvalidInput, "content, content_base64 or document_id is required")
	}
	if h.store == nil {
		return nil, apperrors.Newf(apperrors.ErrDocumentNotFound, "digest store is disabled, cannot load %s", in.DocumentID)
	}
	_, span := tracing.StartChildSpan(ctx, "store.get")
	rec, err := h.store.Get(ctx, in.DocumentID)
	span.End()
	if err != nil {
		return nil, err
	}
	if rec.CorpusID != h.ref.Corpus.ID() {
		return nil, fmt.Errorf("%w: %s was digested against corpus %s", apperrors.ErrIncomparableDigest, in.DocumentID, rec.CorpusID)
	}
	if h.metrics != nil {
		h.metrics.DigestsComputedTotal.WithLabelValues("store").Inc()
	}
	return rec.Digest, nil
}

func (h *Handler) content(in DocumentInput) ([]byte, error) {
	var content []byte
	if in.Content != nil {
		content = []byte(*in.Content)
	} else {
		decoded, err := base64.StdEncoding.DecodeString(in.ContentBase64)
		if err != nil {
			return nil, apperrors.Newf(apperrors.ErrInvalidInput, "content_base64: %v", err)
		}
		content = decoded
	}
	if int64(len(content)) > h.maxBytes {
		return nil, apperrors.Newf(apperrors.ErrDocumentTooLarge,
			"document is %d bytes, limit is %d", len(content), h.maxBytes)
	}
	return content, nil
}

func (h *Handler) computeDigest(ctx context.Context, content []byte) (*digest.Digest, bool, error) {
	ctx, span := tracing.StartChildSpan(ctx, "digest")
	defer span.End()
	span.SetAttr("bytes", len(content))
	compute := func() (*digest.Digest, error) {
		_, buildSpan := tracing.StartChildSpan(ctx, "digest.build")
		defer buildSpan.End()
		start := time.Now()
		d := h.ref.Digest(content)
		if h.metrics != nil {
			h.metrics.DigestDuration.Observe(time.Since(start).Seconds())
			h.metrics.DigestChunks.Observe(float64(d.Chunks()))
		}
		return d, nil
	}
	if h.cache == nil {
		d, _ := compute()
		h.observeDigest(false)
		return d, false, nil
	}
	d, hit, err := h.cache.GetOrCompute(ctx, h.ref.Corpus.ID(), content, compute)
	if err != nil {
		return nil, false, err
	}
	span.SetAttr("cache_hit", hit)
	h.observeDigest(hit)
	if h.metrics != nil {
		if hit {
			h.metrics.CacheHitsTotal.Inc()
		} else {
			h.metrics.CacheMissesTotal.Inc()
		}
	}
	return d, hit, nil
}

func (h *Handler) observeDigest(cacheHit bool) {
	if h.metrics == nil {
		return
	}
	source := "computed"
	if cacheHit {
		source = "cache"
	}
	h.metrics.DigestsComputedTotal.WithLabelValues(source).Inc()
}

func (h *Handler) observeStoreWrite(err error) {
	if h.metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	h.metrics.DigestStoreWritesTotal.WithLabelValues(status).Inc()
}

func (h *Handler) countSimilarity(err error) {
	if h.metrics == nil {
		return
	}
	result := "scored"
	switch {
	case err == nil:
	case apperrors.HTTPStatusCode(err) < http.StatusInternalServerError:
		result = "invalid"
	default:
		result = "error"
	}
	h.metrics.SimilarityRequests.WithLabelValues(result).Inc()
}

// decode reads a JSON body bounded by the document size limit. Base64 and
// JSON escaping can expand content, so the body limit is generous.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 4*h.maxBytes+1<<20)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return apperrors.Newf(apperrors.ErrDocumentTooLarge,
				"request body exceeds %d bytes", maxErr.Limit)
		}
		return apperrors.Newf(apperrors.ErrInvalidInput, "invalid request body: %v", err)
	}
	return nil
}

func describe(in DocumentInput) string {
	if in.DocumentID != "" {
		return in.DocumentID
	}
	return "inline"
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatusCode(err)
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("request failed", "path", r.URL.Path, "error", err)
	}
	h.writeJSON(w, status, ErrorResponse{Error: apperrors.PublicMessage(err), Code: apperrors.Code(err)})
}
