package digestfile

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/FbHash-Similarity-Platform/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/FbHash-Similarity-Platform/internal/digest"
	apperrors "github.com/Adithya-Monish-Kumar-K/FbHash-Similarity-Platform/pkg/errors"
)

func testDigest(t *testing.T) *digest.Digest {
	t.Helper()
	c, err := corpus.FromStrings(context.Background(), []string{"abcdefghijklmnop", "qrstuvwxyzabcdef"}, corpus.Options{})
	if err != nil {
		t.Fatalf("building corpus: %v", err)
	}
	return digest.NewBuilder(c).Build([]byte("abcdefghijkabcdefgh"))
}

func TestWriteRead_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	d := testDigest(t)
	created := time.Unix(1700000000, 0)

	path, err := NewWriter(dir).Write(File{Name: "docs/report.txt", CorpusID: "c1", CreatedAt: created, Digest: d})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if filepath.Base(path) != "report.txt.fbh" {
		t.Errorf("path = %s, want report.txt.fbh", path)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("temp file left behind: %v", err)
	}
	if !IsDigestFile(path) {
		t.Error("IsDigestFile = false for written file")
	}

	f, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if f.Name != "docs/report.txt" || f.CorpusID != "c1" || !f.CreatedAt.Equal(created) {
		t.Errorf("metadata = %q %q %v", f.Name, f.CorpusID, f.CreatedAt)
	}
	if f.Digest.Chunks() != d.Chunks() || f.Digest.Len() != d.Len() {
		t.Fatalf("digest shape = %d/%d, want %d/%d", f.Digest.Chunks(), f.Digest.Len(), d.Chunks(), d.Len())
	}
	want := d.Entries()
	for i, e := range f.Digest.Entries() {
		if e != want[i] {
			t.Errorf("entry %d = %+v, want %+v", i, e, want[i])
		}
	}
}

func TestDecode_Corruption(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, File{Name: "a", Digest: testDigest(t)}); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	image := buf.Bytes()

	tests := []struct {
		name   string
		mutate func([]byte) []byte
	}{
		{"truncated", func(b []byte) []byte { return b[:HeaderSize] }},
		{"bad magic", func(b []byte) []byte { b[0] ^= 0xff; return b }},
		{"bad version", func(b []byte) []byte { b[4] = 9; return b }},
		{"flipped body byte", func(b []byte) []byte { b[HeaderSize+2] ^= 0x01; return b }},
		{"extra body byte", func(b []byte) []byte {
			out := append([]byte{}, b[:HeaderSize+1]...)
			out = append(out, ' ')
			return append(out, b[HeaderSize+1:]...)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := tt.mutate(append([]byte{}, image...))
			_, err := Decode(data)
			if !errors.Is(err, apperrors.ErrCorruptDigest) {
				t.Errorf("Decode error = %v, want ErrCorruptDigest", err)
			}
		})
	}
}

func TestDecode_ChunkSizeMismatch(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, File{Name: "a", Digest: testDigest(t)}); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	data := buf.Bytes()
	data[8] = 8
	if _, err := Decode(data); !errors.Is(err, apperrors.ErrIncomparableDigest) {
		t.Errorf("Decode error = %v, want ErrIncomparableDigest", err)
	}
}

func TestEncode_EmptyDigest(t *testing.T) {
	empty := digest.NewBuilder(nil).Build([]byte("short"))
	var buf bytes.Buffer
	if err := Encode(&buf, File{Name: "short", Digest: empty}); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	f, err := Decode(buf.Bytes())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !f.Digest.Empty() {
		t.Errorf("decoded digest has %d entries, want 0", f.Digest.Len())
	}
}

func TestFileName(t *testing.T) {
	tests := map[string]string{
		"a.txt":         "a.txt.fbh",
		"/x/y/b":        "b.fbh",
		"already.fbh":   "already.fbh",
		"":              "digest.fbh",
		"dir/sub/c.bin": "c.bin.fbh",
	}
	for in, want := range tests {
		if got := FileName(in); got != want {
			t.Errorf("FileName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIsDigestFile_PlainFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fake.fbh")
	if err := os.WriteFile(path, []byte("not a digest"), 0644); err != nil {
		t.Fatal(err)
	}
	if IsDigestFile(path) {
		t.Error("IsDigestFile = true for plain text file")
	}
}
