// Package store persists digests in PostgreSQL so similarity requests can
// refer to previously digested documents by id.
package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/FbHash-Similarity-Platform/internal/digest"
	apperrors "github.com/Adithya-Monish-Kumar-K/FbHash-Similarity-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/FbHash-Similarity-Platform/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/FbHash-Similarity-Platform/pkg/resilience"
)

const schema = `CREATE TABLE IF NOT EXISTS digests (
	document_id    TEXT PRIMARY KEY,
	corpus_id      TEXT NOT NULL,
	content_sha256 TEXT NOT NULL,
	chunk_count    INT NOT NULL,
	entries        JSONB NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Record is a stored digest and its provenance.
type Record struct {
	DocumentID    string         `json:"document_id"`
	CorpusID      string         `json:"corpus_id"`
	ContentSHA256 string         `json:"content_sha256"`
	Digest        *digest.Digest `json:"-"`
	CreatedAt     time.Time      `json:"created_at"`
}

// Store is a digest repository backed by the digests table.
type Store struct {
	db     *postgres.Client
	retry  resilience.RetryConfig
	logger *slog.Logger
}

// New creates a Store on db.
func New(db *postgres.Client) *Store {
	return &Store{
		db: db,
		retry: resilience.RetryConfig{
			MaxAttempts:  3,
			InitialDelay: 50 * time.Millisecond,
			MaxDelay:     time.Second,
			Retryable:    retryable,
		},
		logger: slog.Default().With("component", "digest-store"),
	}
}

// Migrate creates the digests table when it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.Migrate(ctx, schema); err != nil {
		return fmt.Errorf("creating digests table: %w", err)
	}
	return nil
}

// NewRecord builds the record for a digest of content.
func NewRecord(documentID, corpusID string, content []byte, d *digest.Digest) Record {
	sum := sha256.Sum256(content)
	return Record{
		DocumentID:    documentID,
		CorpusID:      corpusID,
		ContentSHA256: hex.EncodeToString(sum[:]),
		Digest:        d,
	}
}

// Save inserts or replaces the digest stored under rec.DocumentID.
func (s *Store) Save(ctx context.Context, rec Record) error {
	if rec.DocumentID == "" {
		return fmt.Errorf("%w: document id is required", apperrors.ErrInvalidInput)
	}
	entries, err := json.Marshal(rec.Digest.Entries())
	if err != nil {
		return fmt.Errorf("marshaling digest entries: %w", err)
	}
	err = resilience.Retry(ctx, "digest-store-save", s.retry, func(ctx context.Context) error {
		return s.db.InTx(ctx, func(tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO digests (document_id, corpus_id, content_sha256, chunk_count, entries)
				 VALUES ($1, $2, $3, $4, $5)
				 ON CONFLICT (document_id) DO UPDATE SET
				   corpus_id = EXCLUDED.corpus_id,
				   content_sha256 = EXCLUDED.content_sha256,
				   chunk_count = EXCLUDED.chunk_count,
				   entries = EXCLUDED.entries,
				   created_at = now()`,
				rec.DocumentID, rec.CorpusID, rec.ContentSHA256, rec.Digest.Chunks(), entries,
			)
			return err
		})
	})
	if err != nil {
		return fmt.Errorf("saving digest %s: %w", rec.DocumentID, err)
	}
	s.logger.Debug("digest saved", "document_id", rec.DocumentID, "fingerprints", rec.Digest.Len())
	return nil
}

// Get loads the digest stored under documentID.
func (s *Store) Get(ctx context.Context, documentID string) (*Record, error) {
	return resilience.Do(ctx, "digest-store-get", s.retry, func(ctx context.Context) (*Record, error) {
		var (
			rec     Record
			chunks  int
			entries []byte
		)
		err := s.db.DB.QueryRowContext(ctx,
			`SELECT document_id, corpus_id, content_sha256, chunk_count, entries, created_at
			 FROM digests WHERE document_id = $1`,
			documentID,
		).Scan(&rec.DocumentID, &rec.CorpusID, &rec.ContentSHA256, &chunks, &entries, &rec.CreatedAt)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrDocumentNotFound, documentID)
		}
		if err != nil {
			return nil, fmt.Errorf("querying digest %s: %w", documentID, err)
		}
		d, err := decodeEntries(entries, chunks)
		if err != nil {
			return nil, fmt.Errorf("digest %s: %w", documentID, err)
		}
		rec.Digest = d
		return &rec, nil
	})
}

// Delete removes the digest stored under documentID.
func (s *Store) Delete(ctx context.Context, documentID string) error {
	result, err := s.db.DB.ExecContext(ctx, `DELETE FROM digests WHERE document_id = $1`, documentID)
	if err != nil {
		return fmt.Errorf("deleting digest %s: %w", documentID, err)
	}
	if err := checkDeleted(result, documentID); err != nil {
		return err
	}
	s.logger.Info("digest deleted", "document_id", documentID)
	return nil
}

func checkDeleted(result sql.Result, documentID string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete of digest %s: %w", documentID, err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", apperrors.ErrDocumentNotFound, documentID)
	}
	return nil
}

func decodeEntries(data []byte, chunks int) (*digest.Digest, error) {
	var entries []digest.Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrCorruptDigest, err)
	}
	d, err := digest.FromEntries(entries, chunks)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrCorruptDigest, err)
	}
	return d, nil
}

// retryable rejects errors another attempt cannot fix.
func retryable(err error) bool {
	if postgres.IsTransient(err) {
		return true
	}
	for _, permanent := range []error{
		context.Canceled,
		context.DeadlineExceeded,
		apperrors.ErrInvalidInput,
		apperrors.ErrDocumentNotFound,
		apperrors.ErrCorruptDigest,
	} {
		if errors.Is(err, permanent) {
			return false
		}
	}
	return true
}
