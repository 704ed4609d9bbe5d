package main

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/FbHash-Similarity-Platform/internal/similarity"
)

func newRankCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "rank <file>",
		Short: "List the corpus members most similar to a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := ctx.reference(cmd.Context(), true)
			if err != nil {
				return err
			}
			content, err := readDocument(args[0])
			if err != nil {
				return err
			}
			if limit <= 0 {
				limit = ctx.config.Digest.RankLimit
			}
			matches := ref.Rank(ref.Digest(content), limit)

			if asJSON {
				return writeJSON(cmd, matches)
			}
			tbl := newResultTable("#", "Document", "Score")
			for i, m := range matches {
				tbl.addRow(
					strconv.Itoa(i+1),
					m.Name,
					strconv.FormatFloat(similarity.Round(m.Score), 'f', similarity.DisplayPrecision, 64),
				)
			}
			tbl.setCaption("%d of %d documents, corpus %s", len(matches), ref.Corpus.Size(), ref.Corpus.ID())
			tbl.render(cmd.OutOrStdout())
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Number of matches to show (default from config)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}
