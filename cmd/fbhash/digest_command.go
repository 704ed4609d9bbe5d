package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/FbHash-Similarity-Platform/internal/digest/digestfile"
	apperrors "github.com/Adithya-Monish-Kumar-K/FbHash-Similarity-Platform/pkg/errors"
)

type digestSummary struct {
	File         string  `json:"file"`
	Chunks       int     `json:"chunks"`
	Fingerprints int     `json:"fingerprints"`
	Norm         float64 `json:"norm"`
	CorpusID     string  `json:"corpus_id,omitempty"`
	Output       string  `json:"output,omitempty"`
}

func newDigestCommand(ctx *commandContext) *cobra.Command {
	var outDir string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "digest <file>...",
		Short: "Compute the digest of one or more files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			builder, corpusID, err := ctx.builder(cmd.Context())
			if err != nil {
				return err
			}
			var writer *digestfile.Writer
			if outDir != "" {
				if err := checkOutputNames(args); err != nil {
					return err
				}
				writer = digestfile.NewWriter(outDir)
			}

			summaries := make([]digestSummary, 0, len(args))
			for _, path := range args {
				content, err := readDocument(path)
				if err != nil {
					return err
				}
				d := builder.Build(content)
				summary := digestSummary{
					File:         path,
					Chunks:       d.Chunks(),
					Fingerprints: d.Len(),
					Norm:         d.Norm(),
					CorpusID:     corpusID,
				}
				if writer != nil {
					out, err := writer.Write(digestfile.File{Name: path, CorpusID: corpusID, Digest: d})
					if err != nil {
						return fmt.Errorf("writing digest for %s: %w", path, err)
					}
					summary.Output = out
				}
				summaries = append(summaries, summary)
			}

			if asJSON {
				return writeJSON(cmd, summaries)
			}
			headers := []string{"File", "Chunks", "Fingerprints", "Norm"}
			if outDir != "" {
				headers = append(headers, "Digest File")
			}
			tbl := newResultTable(headers...)
			for _, s := range summaries {
				tbl.addRow(
					s.File,
					strconv.Itoa(s.Chunks),
					strconv.Itoa(s.Fingerprints),
					strconv.FormatFloat(s.Norm, 'f', 4, 64),
					s.Output,
				)
			}
			if corpusID != "" {
				tbl.setCaption("weighted by corpus %s", corpusID)
			} else {
				tbl.setCaption("unweighted, no corpus configured")
			}
			tbl.render(cmd.OutOrStdout())
			return nil
		},
	}
	cmd.Flags().StringVar(&outDir, "out", "", "Write .fbh digest files into this directory")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

// checkOutputNames rejects inputs that would land on the same digest file,
// such as a/x.txt and b/x.txt.
func checkOutputNames(paths []string) error {
	seen := make(map[string]string, len(paths))
	for _, path := range paths {
		name := digestfile.FileName(path)
		if prev, ok := seen[name]; ok {
			return fmt.Errorf("%w: %s and %s both write %s", apperrors.ErrInvalidInput, prev, path, name)
		}
		seen[name] = path
	}
	return nil
}
