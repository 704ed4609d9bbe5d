package digestfile

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/FbHash-Similarity-Platform/internal/digest"
	"github.com/Adithya-Monish-Kumar-K/FbHash-Similarity-Platform/internal/fingerprint"
	apperrors "github.com/Adithya-Monish-Kumar-K/FbHash-Similarity-Platform/pkg/errors"
)

// Decode parses a digest file image.
func Decode(data []byte) (*File, error) {
	if len(data) < HeaderSize+FooterSize {
		return nil, fmt.Errorf("%w: file too short (%d bytes)", apperrors.ErrCorruptDigest, len(data))
	}
	header := Header{
		Magic:      binary.LittleEndian.Uint32(data[0:4]),
		Version:    binary.LittleEndian.Uint32(data[4:8]),
		ChunkSize:  binary.LittleEndian.Uint32(data[8:12]),
		EntryCount: binary.LittleEndian.Uint32(data[12:16]),
		Chunks:     binary.LittleEndian.Uint64(data[16:24]),
		CreatedAt:  int64(binary.LittleEndian.Uint64(data[24:32])),
	}
	if header.Magic != MagicBytes {
		return nil, fmt.Errorf("%w: bad magic bytes %x", apperrors.ErrCorruptDigest, header.Magic)
	}
	if header.Version != FormatVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", apperrors.ErrCorruptDigest, header.Version)
	}
	if header.ChunkSize != uint32(fingerprint.ChunkSize) {
		return nil, fmt.Errorf("%w: digest uses chunk size %d, want %d",
			apperrors.ErrIncomparableDigest, header.ChunkSize, fingerprint.ChunkSize)
	}

	footer := data[len(data)-FooterSize:]
	checksum := binary.LittleEndian.Uint32(footer[0:4])
	bodySize := binary.LittleEndian.Uint64(footer[8:16])
	bodyData := data[HeaderSize : len(data)-FooterSize]
	if uint64(len(bodyData)) != bodySize {
		return nil, fmt.Errorf("%w: body is %d bytes, footer says %d", apperrors.ErrCorruptDigest, len(bodyData), bodySize)
	}
	if crc32.ChecksumIEEE(bodyData) != checksum {
		return nil, fmt.Errorf("%w: checksum mismatch", apperrors.ErrCorruptDigest)
	}

	var b body
	if err := json.Unmarshal(bodyData, &b); err != nil {
		return nil, fmt.Errorf("%w: parsing body: %v", apperrors.ErrCorruptDigest, err)
	}
	if uint32(len(b.Entries)) != header.EntryCount {
		return nil, fmt.Errorf("%w: %d entries, header says %d", apperrors.ErrCorruptDigest, len(b.Entries), header.EntryCount)
	}
	d, err := digest.FromEntries(b.Entries, int(header.Chunks))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrCorruptDigest, err)
	}
	return &File{
		Name:      b.Name,
		CorpusID:  b.CorpusID,
		CreatedAt: time.Unix(header.CreatedAt, 0),
		Digest:    d,
	}, nil
}

// Read loads the digest file at path.
func Read(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading digest file: %w", err)
	}
	f, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// IsDigestFile reports whether path looks like a digest file, by extension
// and magic bytes.
func IsDigestFile(path string) bool {
	if !strings.EqualFold(filepath.Ext(path), Extension) {
		return false
	}
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	magic := make([]byte, 4)
	if _, err := f.Read(magic); err != nil {
		return false
	}
	return bytes.Equal(magic, binary.LittleEndian.AppendUint32(nil, MagicBytes))
}
