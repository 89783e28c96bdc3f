// Package main is the maintenance entry point of the engine. It trains a
// tokenizer from a corpus directory, saves and catalogs the artifacts, backs
// them up when a bucket is configured and verifies the catalog.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/aristath/qengine/internal/config"
	"github.com/aristath/qengine/internal/di"
	"github.com/aristath/qengine/internal/modules/artifacts"
	"github.com/aristath/qengine/internal/modules/sessions"
	"github.com/aristath/qengine/pkg/logger"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func main() {
	verifyOnly := flag.Bool("verify", false, "only verify cataloged artifacts")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.LogPretty,
	})
	logger.SetGlobalLogger(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	container, err := di.Wire(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	defer container.Close()

	if !*verifyOnly {
		if err := train(ctx, container, log); err != nil {
			log.Error().Err(err).Msg("Training failed")
			container.Close()
			os.Exit(1)
		}
	}

	if _, err := container.MaintenanceService.Run(ctx); err != nil {
		log.Error().Err(err).Msg("Maintenance failed")
		container.Close()
		os.Exit(1)
	}
}

func train(ctx context.Context, c *di.Container, log zerolog.Logger) error {
	cfg := c.Config
	if cfg.CorpusDir == "" {
		log.Info().Msg("No corpus directory configured, skipping training")
		return nil
	}

	texts, err := readCorpus(cfg.CorpusDir)
	if err != nil {
		return err
	}
	log.Info().Str("corpus", cfg.CorpusDir).Int("texts", len(texts)).Msg("Corpus loaded")

	c.Tokenizer.Train(texts, cfg.MinFrequency)

	// Each run saves under its own id so earlier catalog rows keep matching their files
	id := uuid.NewString()
	base := cfg.TokenizerVersionBase(id)
	if err := c.Tokenizer.Save(base); err != nil {
		return err
	}

	artifact, err := artifacts.Describe(cfg.TokenizerName, base, c.Tokenizer)
	if err != nil {
		return err
	}
	artifact.ID = id
	artifact, err = c.ArtifactRepo.Record(ctx, artifact)
	if err != nil {
		return err
	}
	log.Info().
		Str("id", artifact.ID).
		Str("path", base).
		Int("tokens", artifact.TokenCount).
		Msg("Tokenizer saved")

	reportSamples(c, log)

	if c.BackupService == nil {
		return nil
	}
	if _, err := c.BackupService.Backup(ctx, artifact); err != nil {
		return err
	}
	_, err = c.BackupService.RotateOldBackups(ctx, artifact.Name, cfg.Backup.Keep)
	return err
}

// reportSamples logs the entanglement neighbours of the configured sample tokens
// and ranks the samples against each other with a session processor
func reportSamples(c *di.Container, log zerolog.Logger) {
	samples := c.Config.SampleTokens
	if len(samples) == 0 {
		return
	}

	for _, token := range samples {
		neighbours := c.Tokenizer.EntangledTokens(token, 5)
		event := log.Info().Str("token", token)
		for _, n := range neighbours {
			event = event.Float64(n.Token, n.Score)
		}
		event.Int("neighbours", len(neighbours)).Msg("Entangled tokens")
	}

	id, err := c.Sessions.Open()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to open session for sample search")
		return
	}
	defer c.Sessions.Close(id)

	err = c.Sessions.With(id, func(s *sessions.Session) error {
		results := s.Processor.SearchTokens(samples[0], samples, 0)
		for _, r := range results {
			log.Info().
				Str("query", samples[0]).
				Str("token", r.Token).
				Float64("score", r.Score).
				Msg("Search result")
		}
		return nil
	})
	if err != nil {
		log.Warn().Err(err).Str("session", id).Msg("Sample search failed")
	}
}
