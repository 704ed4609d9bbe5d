// Package errors defines the sentinel errors shared across the platform and
// maps them onto HTTP status codes and stable machine-readable codes.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrDocumentNotFound   = errors.New("document not found")
	ErrCorpusUnavailable  = errors.New("corpus unavailable")
	ErrCorruptDigest      = errors.New("corrupt digest")
	ErrDocumentTooLarge   = errors.New("document too large")
	ErrIncomparableDigest = errors.New("digests computed against different corpora")
	ErrInternal           = errors.New("internal error")
	ErrTimeout            = errors.New("operation timed out")
)

type kind struct {
	status int
	code   string
	// public kinds expose their message even on 5xx responses.
	public bool
}

var kinds = []struct {
	sentinel error
	kind
}{
	{ErrInvalidInput, kind{http.StatusBadRequest, "invalid_input", true}},
	{ErrCorruptDigest, kind{http.StatusBadRequest, "corrupt_digest", true}},
	{ErrDocumentNotFound, kind{http.StatusNotFound, "not_found", true}},
	{ErrIncomparableDigest, kind{http.StatusConflict, "incomparable_digest", true}},
	{ErrDocumentTooLarge, kind{http.StatusRequestEntityTooLarge, "document_too_large", true}},
	{ErrCorpusUnavailable, kind{http.StatusServiceUnavailable, "corpus_unavailable", true}},
	{ErrTimeout, kind{http.StatusServiceUnavailable, "timeout", false}},
}

var internal = kind{http.StatusInternalServerError, "internal", false}

func classify(err error) kind {
	for _, k := range kinds {
		if errors.Is(err, k.sentinel) {
			return k.kind
		}
	}
	return internal
}

// AppError attaches a caller-facing message to a sentinel. StatusCode, when
// set, overrides the sentinel's status.
type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return e.Err.Error() + ": " + e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, message string) *AppError {
	return &AppError{Err: sentinel, Message: message}
}

func Newf(sentinel error, format string, args ...any) *AppError {
	return New(sentinel, fmt.Sprintf(format, args...))
}

// WithStatus returns a copy of e answering with code.
func (e *AppError) WithStatus(code int) *AppError {
	out := *e
	out.StatusCode = code
	return &out
}

// HTTPStatusCode maps err onto a response status.
func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.StatusCode != 0 {
		return appErr.StatusCode
	}
	return classify(err).status
}

// Code returns a stable identifier for err suitable for API clients.
func Code(err error) string {
	return classify(err).code
}

// PublicMessage returns the text safe to show a caller. Unclassified
// failures are reduced to "internal error".
func PublicMessage(err error) string {
	if classify(err).public {
		return err.Error()
	}
	if errors.Is(err, ErrTimeout) {
		return ErrTimeout.Error()
	}
	return ErrInternal.Error()
}
