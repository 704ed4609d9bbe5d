package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var flags globalFlags
	ctx := newCommandContext(&flags)

	rootCmd := &cobra.Command{
		Use:           "fbhash",
		Short:         "Frequency-based similarity hashing for documents",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := ctx.ensureConfig(cmd)
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&flags.config, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&flags.corpus, "corpus", "", "Reference corpus directory or line file")
	rootCmd.PersistentFlags().StringVar(&flags.corpusFormat, "corpus-format", "", "Corpus layout: dir or lines (default: detect)")
	rootCmd.PersistentFlags().StringVar(&flags.mode, "mode", "", "Document frequency mode: occurrence or containment")

	rootCmd.AddCommand(newDigestCommand(ctx))
	rootCmd.AddCommand(newCompareCommand(ctx))
	rootCmd.AddCommand(newRankCommand(ctx))
	rootCmd.AddCommand(newCorpusCommand(ctx))

	return rootCmd
}
