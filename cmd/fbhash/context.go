package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/FbHash-Similarity-Platform/internal/digest"
	"github.com/Adithya-Monish-Kumar-K/FbHash-Similarity-Platform/internal/reference"
	"github.com/Adithya-Monish-Kumar-K/FbHash-Similarity-Platform/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/FbHash-Similarity-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/FbHash-Similarity-Platform/pkg/logger"
)

type globalFlags struct {
	config       string
	logLevel     string
	corpus       string
	corpusFormat string
	mode         string
}

type commandContext struct {
	flags *globalFlags

	configOnce sync.Once
	config     *config.Config
	configErr  error

	refOnce sync.Once
	ref     *reference.Set
	refErr  error
}

func newCommandContext(flags *globalFlags) *commandContext {
	return &commandContext{flags: flags}
}

// ensureConfig loads the configuration once and routes logs to the
// command's stderr so stdout carries only results.
func (c *commandContext) ensureConfig(cmd *cobra.Command) (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, err := config.Load(strings.TrimSpace(c.flags.config))
		if err != nil {
			c.configErr = err
			return
		}
		if c.flags.corpus != "" {
			cfg.Corpus.Path = c.flags.corpus
		}
		if c.flags.corpusFormat != "" {
			cfg.Corpus.Format = c.flags.corpusFormat
		}
		if c.flags.mode != "" {
			cfg.Corpus.Mode = c.flags.mode
		}
		level := cfg.Logging.Level
		if c.flags.logLevel != "" {
			level = c.flags.logLevel
		} else if c.flags.config == "" {
			level = "warn"
		}
		if _, err := logger.ParseLevel(level); err != nil {
			c.configErr = fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
			return
		}
		logger.SetupWriter(cmd.ErrOrStderr(), level, "text")
		c.config = cfg
		if (c.flags.mode != "" || c.flags.corpusFormat != "") && !c.corpusConfigured() {
			c.config, c.configErr = nil, fmt.Errorf("%w: --mode and --corpus-format need a corpus (use --corpus or FBH_CORPUS_PATH)", apperrors.ErrInvalidInput)
		}
	})
	return c.config, c.configErr
}

// corpusConfigured reports whether a corpus was named on the command line,
// in a config file or through FBH_CORPUS_PATH.
func (c *commandContext) corpusConfigured() bool {
	if c.flags.corpus != "" || c.flags.config != "" {
		return true
	}
	return c.config != nil && c.config.Corpus.Path != config.DefaultCorpusPath
}

// reference loads the configured corpus once. With required unset and no
// corpus configured it returns nil and digests weigh every fingerprint 1.
func (c *commandContext) reference(ctx context.Context, required bool) (*reference.Set, error) {
	if !c.corpusConfigured() {
		if required {
			return nil, fmt.Errorf("%w: a corpus is required (use --corpus)", apperrors.ErrInvalidInput)
		}
		return nil, nil
	}
	c.refOnce.Do(func() {
		if c.config == nil {
			c.refErr = fmt.Errorf("configuration not loaded")
			return
		}
		c.ref, c.refErr = reference.Load(ctx, c.config.Corpus)
	})
	return c.ref, c.refErr
}

// builder returns the digest builder and the id of the corpus it weighs
// against, or an empty id when no corpus is in use.
func (c *commandContext) builder(ctx context.Context) (*digest.Builder, string, error) {
	ref, err := c.reference(ctx, false)
	if err != nil {
		return nil, "", err
	}
	if ref == nil {
		return digest.NewBuilder(nil), "", nil
	}
	return ref.Builder, ref.Corpus.ID(), nil
}

func readDocument(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, nil
}
