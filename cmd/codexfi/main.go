// Command codexfi is a thin composition root: it wires the configured
// vector store, embedder, extractor, ledger, and names directory into one
// Engine and exercises it end to end. It is not a CLI surface — there are
// no subcommands, no flags beyond what config.Load reads from the
// environment. Host applications are expected to import internal packages'
// exported counterparts (see the root codexfi package) rather than shell
// out to this binary.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/codexfi/memory/internal/capability"
	"github.com/codexfi/memory/internal/config"
	"github.com/codexfi/memory/internal/engine"
	"github.com/codexfi/memory/internal/ledger"
	"github.com/codexfi/memory/internal/logging"
	"github.com/codexfi/memory/internal/names"
	"github.com/codexfi/memory/internal/providers/anthropicextractor"
	"github.com/codexfi/memory/internal/providers/voyageembedder"
	"github.com/codexfi/memory/internal/vectorstore"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "codexfi:", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	logger := logging.New(cfg.DataDir, slog.LevelInfo)

	led, err := ledger.Open(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}

	nameDir, err := names.Open(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open names directory: %w", err)
	}

	storePath := cfg.DataDir + "/memories.db"
	store, err := vectorstore.Open(ctx, storePath, cfg.EmbeddingDims)
	if err != nil {
		return fmt.Errorf("open vector store: %w", err)
	}
	defer store.Close()

	embedder := voyageembedder.New(cfg.VoyageAPIKey, cfg.EmbeddingDims, led)

	var extractor capability.Extractor
	switch cfg.ExtractionProvider {
	case config.ProviderAnthropic:
		extractor = anthropicextractor.New(cfg.AnthropicAPIKey, led)
	default:
		return fmt.Errorf("unsupported extraction provider %q (xai and google extractors are not wired into this binary)", cfg.ExtractionProvider)
	}

	eng, err := engine.New(cfg, store, embedder, extractor, led, nameDir, logger)
	if err != nil {
		return fmt.Errorf("construct engine: %w", err)
	}

	logger.Info("codexfi engine ready", "data_dir", cfg.DataDir, "extraction_provider", cfg.ExtractionProvider)

	const smokeTestUserID = "codexfi-smoke-test"
	events, err := eng.Ingest(ctx, smokeTestUserID, []capability.Message{
		{Role: "user", Content: "We use PostgreSQL 16 as our primary database."},
	}, engine.IngestOptions{})
	if err != nil {
		return fmt.Errorf("ingest smoke test: %w", err)
	}
	logger.Info("ingest complete", "events", len(events))

	results, err := eng.Search(ctx, "what database do we use", smokeTestUserID, engine.SearchOptions{})
	if err != nil {
		return fmt.Errorf("search smoke test: %w", err)
	}
	logger.Info("search complete", "results", len(results))

	return nil
}
