package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/FbHash-Similarity-Platform/internal/digest"
	"github.com/Adithya-Monish-Kumar-K/FbHash-Similarity-Platform/internal/digest/digestfile"
	"github.com/Adithya-Monish-Kumar-K/FbHash-Similarity-Platform/internal/similarity"
	apperrors "github.com/Adithya-Monish-Kumar-K/FbHash-Similarity-Platform/pkg/errors"
)

type comparison struct {
	A            string  `json:"a"`
	B            string  `json:"b"`
	Score        float64 `json:"score"`
	DisplayScore float64 `json:"display_score"`
}

type comparand struct {
	digest   *digest.Digest
	corpusID string
}

func newCompareCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "compare <a> <b>",
		Short: "Score the similarity of two files or .fbh digest files",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadComparand(cmd.Context(), ctx, args[0])
			if err != nil {
				return err
			}
			b, err := loadComparand(cmd.Context(), ctx, args[1])
			if err != nil {
				return err
			}
			if a.corpusID != b.corpusID {
				return fmt.Errorf("%w: %s uses corpus %q, %s uses corpus %q",
					apperrors.ErrIncomparableDigest, args[0], a.corpusID, args[1], b.corpusID)
			}

			score := similarity.Compare(a.digest, b.digest)
			result := comparison{A: args[0], B: args[1], Score: score, DisplayScore: similarity.Round(score)}
			if asJSON {
				return writeJSON(cmd, result)
			}
			fmt.Fprintln(cmd.OutOrStdout(), strconv.FormatFloat(result.DisplayScore, 'f', similarity.DisplayPrecision, 64))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

// loadComparand reads a stored digest file or digests a raw file against
// the configured corpus.
func loadComparand(ctx context.Context, cc *commandContext, path string) (comparand, error) {
	if digestfile.IsDigestFile(path) {
		f, err := digestfile.Read(path)
		if err != nil {
			return comparand{}, err
		}
		return comparand{digest: f.Digest, corpusID: f.CorpusID}, nil
	}
	builder, corpusID, err := cc.builder(ctx)
	if err != nil {
		return comparand{}, err
	}
	content, err := readDocument(path)
	if err != nil {
		return comparand{}, err
	}
	return comparand{digest: builder.Build(content), corpusID: corpusID}, nil
}
