package main

import (
	"strconv"

	"github.com/spf13/cobra"
)

func newCorpusCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "corpus",
		Short: "Inspect the reference corpus",
	}
	cmd.AddCommand(newCorpusStatsCommand(ctx))
	return cmd
}

func newCorpusStatsCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show corpus statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := ctx.reference(cmd.Context(), true)
			if err != nil {
				return err
			}
			stats := ref.Corpus.Stats()
			if asJSON {
				return writeJSON(cmd, stats)
			}
			tbl := newResultTable("Statistic", "Count")
			tbl.addRow("Documents", strconv.Itoa(stats.Documents))
			tbl.addRow("Total chunks", strconv.Itoa(stats.TotalChunks))
			tbl.addRow("Distinct fingerprints", strconv.Itoa(stats.DistinctFingerprints))
			tbl.setCaption("corpus %s, %s mode", stats.ID, stats.Mode)
			tbl.render(cmd.OutOrStdout())
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}
