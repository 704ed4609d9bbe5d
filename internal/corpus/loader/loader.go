// Package loader reads reference-corpus documents from disk. A corpus is
// either a directory holding one document per regular file or a text file
// holding one document per line.
package loader

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	apperrors "github.com/Adithya-Monish-Kumar-K/FbHash-Similarity-Platform/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Format names a corpus layout on disk.
type Format string

const (
	FormatAuto  Format = ""
	FormatDir   Format = "dir"
	FormatLines Format = "lines"
)

const maxLineBytes = 16 * 1024 * 1024

// Document is one corpus member.
type Document struct {
	Name    string
	Content []byte
}

// Load reads the corpus at path. FormatAuto picks FormatDir for directories
// and FormatLines otherwise. Documents are returned in a stable order: file
// name order for directories, line order for line files.
func Load(ctx context.Context, path string, format Format, workers int) ([]Document, error) {
	logger := slog.Default().With("component", "corpus-loader")
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat corpus %s: %w", path, err)
	}
	if format == FormatAuto {
		format = FormatLines
		if info.IsDir() {
			format = FormatDir
		}
	}
	var docs []Document
	switch format {
	case FormatDir:
		docs, err = loadDir(ctx, path, workers)
	case FormatLines:
		docs, err = loadLines(path)
	default:
		return nil, fmt.Errorf("%w: unknown corpus format %q", apperrors.ErrInvalidInput, format)
	}
	if err != nil {
		return nil, err
	}
	logger.Info("corpus loaded", "path", path, "format", format, "documents", len(docs))
	return docs, nil
}

// Contents returns the raw content of each document, preserving order.
func Contents(docs []Document) [][]byte {
	out := make([][]byte, len(docs))
	for i, d := range docs {
		out[i] = d.Content
	}
	return out
}

func loadDir(ctx context.Context, dir string, workers int) ([]Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading corpus directory: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.Type().IsRegular() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	docs := make([]Document, len(names))
	g, gctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i, name := range names {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(filepath.Join(dir, name))
			if err != nil {
				return fmt.Errorf("reading corpus document %s: %w", name, err)
			}
			docs[i] = Document{Name: name, Content: data}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return docs, nil
}

func loadLines(path string) ([]Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening corpus file: %w", err)
	}
	defer f.Close()

	var docs []Document
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for line := 1; scanner.Scan(); line++ {
		content := make([]byte, len(scanner.Bytes()))
		copy(content, scanner.Bytes())
		docs = append(docs, Document{
			Name:    fmt.Sprintf("%s:%d", filepath.Base(path), line),
			Content: content,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning corpus file: %w", err)
	}
	return docs, nil
}
