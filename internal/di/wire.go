// Package di provides dependency injection wiring and initialization.
package di

import (
	"context"
	"fmt"

	"github.com/aristath/qengine/internal/config"
	"github.com/rs/zerolog"
)

// Wire initializes all dependencies and returns a fully configured container.
// Order of operations:
// 1. Initialize databases
// 2. Initialize repositories
// 3. Initialize services
func Wire(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{Config: cfg}

	if err := InitializeDatabases(container, log); err != nil {
		return nil, err
	}

	InitializeRepositories(container, log)

	if err := InitializeServices(ctx, container, log); err != nil {
		container.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	log.Info().
		Int("vocabulary", container.Tokenizer.Size()).
		Bool("backup", container.BackupService != nil).
		Msg("Dependency injection wiring completed successfully")

	return container, nil
}
