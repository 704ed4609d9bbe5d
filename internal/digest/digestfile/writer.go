// Package digestfile stores digests on disk in .fbh files: a fixed binary
// header, a JSON body holding the digest entries, and a footer carrying a
// CRC32 of the body.
package digestfile

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/FbHash-Similarity-Platform/internal/digest"
	"github.com/Adithya-Monish-Kumar-K/FbHash-Similarity-Platform/internal/fingerprint"
)

// MagicBytes identifies a digest file ("FBHD").
const (
	MagicBytes    uint32 = 0x46424844
	FormatVersion uint32 = 1
	HeaderSize    int    = 32
	FooterSize    int    = 16
	Extension            = ".fbh"
)

// Header is the 32-byte header written at the start of every digest file.
type Header struct {
	Magic      uint32
	Version    uint32
	ChunkSize  uint32
	EntryCount uint32
	Chunks     uint64
	CreatedAt  int64
}

// File is a digest together with the metadata needed to compare it later.
type File struct {
	Name      string
	CorpusID  string
	CreatedAt time.Time
	Digest    *digest.Digest
}

type body struct {
	Name     string         `json:"name"`
	CorpusID string         `json:"corpus_id"`
	Entries  []digest.Entry `json:"entries"`
}

// Encode writes f in digest file format.
func Encode(w io.Writer, f File) error {
	entries := f.Digest.Entries()
	bodyData, err := json.Marshal(body{Name: f.Name, CorpusID: f.CorpusID, Entries: entries})
	if err != nil {
		return fmt.Errorf("marshaling digest body: %w", err)
	}
	created := f.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	header := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(header[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(header[4:8], FormatVersion)
	binary.LittleEndian.PutUint32(header[8:12], uint32(fingerprint.ChunkSize))
	binary.LittleEndian.PutUint32(header[12:16], uint32(len(entries)))
	binary.LittleEndian.PutUint64(header[16:24], uint64(f.Digest.Chunks()))
	binary.LittleEndian.PutUint64(header[24:32], uint64(created.Unix()))

	footer := make([]byte, FooterSize)
	binary.LittleEndian.PutUint32(footer[0:4], crc32.ChecksumIEEE(bodyData))
	binary.LittleEndian.PutUint64(footer[8:16], uint64(len(bodyData)))

	var buf bytes.Buffer
	buf.Grow(HeaderSize + len(bodyData) + FooterSize)
	buf.Write(header)
	buf.Write(bodyData)
	buf.Write(footer)
	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("writing digest: %w", err)
	}
	return nil
}

// Writer creates digest files in a directory.
type Writer struct {
	dir string
}

// NewWriter creates a Writer that writes digest files into dir.
func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

// Write atomically stores f as <dir>/<base name of f.Name>.fbh. It writes
// to a .tmp file first and renames on success.
func (w *Writer) Write(f File) (string, error) {
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return "", fmt.Errorf("creating digest directory: %w", err)
	}
	finalPath := filepath.Join(w.dir, FileName(f.Name))
	tmpPath := finalPath + ".tmp"

	out, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("creating temp digest file: %w", err)
	}
	defer os.Remove(tmpPath)
	defer out.Close()
	if err := Encode(out, f); err != nil {
		return "", err
	}
	if err := out.Sync(); err != nil {
		return "", fmt.Errorf("syncing digest file: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("closing digest file: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return "", fmt.Errorf("renaming digest file: %w", err)
	}
	return finalPath, nil
}

// FileName derives the digest file name for a document name.
func FileName(name string) string {
	base := filepath.Base(name)
	if base == "." || base == string(filepath.Separator) || base == "" {
		base = "digest"
	}
	return strings.TrimSuffix(base, Extension) + Extension
}
