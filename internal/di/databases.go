package di

import (
	"fmt"

	"github.com/aristath/qengine/internal/database"
	"github.com/rs/zerolog"
)

// InitializeDatabases opens the catalog database and applies its schema
func InitializeDatabases(container *Container, log zerolog.Logger) error {
	catalogDB, err := database.New(database.Config{
		Path:    container.Config.CatalogPath(),
		Profile: database.ProfileStandard,
		Name:    "artifacts",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize artifacts database: %w", err)
	}

	if err := catalogDB.Migrate(); err != nil {
		catalogDB.Close()
		return fmt.Errorf("failed to migrate artifacts database: %w", err)
	}
	container.CatalogDB = catalogDB

	log.Debug().Str("path", catalogDB.Path()).Msg("Artifacts database ready")
	return nil
}
