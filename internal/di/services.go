package di

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/aristath/qengine/internal/modules/artifacts"
	"github.com/aristath/qengine/internal/modules/processor"
	"github.com/aristath/qengine/internal/modules/quantum"
	"github.com/aristath/qengine/internal/modules/sessions"
	"github.com/aristath/qengine/internal/modules/tokenizer"
	"github.com/aristath/qengine/internal/reliability"
	"github.com/rs/zerolog"
)

// InitializeRepositories creates the data access layer
func InitializeRepositories(container *Container, log zerolog.Logger) {
	container.ArtifactRepo = artifacts.NewRepository(container.CatalogDB.Conn(), log)
}

// InitializeServices creates the tokenizer, the session pool and the reliability services.
// The latest cataloged version of the tokenizer is loaded, falling back to the
// unversioned base when the catalog has none.
func InitializeServices(ctx context.Context, container *Container, log zerolog.Logger) error {
	cfg := container.Config

	tok, err := tokenizer.New(cfg.VocabSize, cfg.Dimension, log)
	if err != nil {
		return fmt.Errorf("failed to create tokenizer: %w", err)
	}
	base := cfg.TokenizerBase()
	latest, err := container.ArtifactRepo.Latest(ctx, cfg.TokenizerName)
	if err != nil {
		return fmt.Errorf("failed to look up tokenizer %s: %w", cfg.TokenizerName, err)
	}
	if latest != nil {
		base = latest.BasePath
	}
	if _, statErr := os.Stat(tokenizer.VocabularyPath(base)); statErr == nil {
		if err := tok.Load(base); err != nil {
			return fmt.Errorf("failed to load tokenizer %s: %w", base, err)
		}
	} else if !errors.Is(statErr, os.ErrNotExist) {
		return fmt.Errorf("failed to stat tokenizer %s: %w", base, statErr)
	}
	container.Tokenizer = tok
	container.Embedding = tokenizer.NewTrainedEmbedding(tok)

	container.Sessions = sessions.NewPool(sessions.Config{
		NumQubits: cfg.NumQubits,
		Computer: quantum.Options{
			Register: quantum.RegisterOptions{
				MaxQubits:   cfg.MaxQubits,
				Seed:        cfg.Seed,
				MemoryProbe: quantum.SystemMemoryProbe,
			},
		},
		Processor:   processor.Config{Embedding: container.Embedding},
		MaxSessions: cfg.MaxSessions,
	}, log)

	if cfg.Backup.Enabled() {
		uploader, err := reliability.NewS3Uploader(ctx, reliability.S3Config{
			Bucket:    cfg.Backup.Bucket,
			Endpoint:  cfg.Backup.Endpoint,
			Region:    cfg.Backup.Region,
			AccessKey: cfg.Backup.AccessKey,
			SecretKey: cfg.Backup.SecretKey,
		}, log)
		if err != nil {
			return fmt.Errorf("failed to create backup uploader: %w", err)
		}
		container.BackupService = reliability.NewArtifactBackupService(
			uploader, container.ArtifactRepo, cfg.StagingDir(), log)
	}

	container.MaintenanceService = reliability.NewMaintenanceService(
		container.CatalogDB, container.ArtifactRepo, cfg.DataDir, nil, log)

	return nil
}
