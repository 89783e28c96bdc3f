/**
 * Package di provides dependency injection type definitions.
 *
 * The Container holds every long-lived resource of the engine. Nothing is kept
 * in process globals; entry points build a Container with Wire and pass it down.
 */
package di

import (
	"github.com/aristath/qengine/internal/config"
	"github.com/aristath/qengine/internal/database"
	"github.com/aristath/qengine/internal/modules/artifacts"
	"github.com/aristath/qengine/internal/modules/sessions"
	"github.com/aristath/qengine/internal/modules/tokenizer"
	"github.com/aristath/qengine/internal/reliability"
)

// Container holds all dependencies for the engine
type Container struct {
	Config *config.Config

	// Databases
	CatalogDB *database.DB // Saved tokenizer artifacts and their backups

	// Repositories
	ArtifactRepo *artifacts.Repository

	// Language layer
	Tokenizer *tokenizer.Tokenizer
	Embedding tokenizer.Embedding // search embedding shared by every session
	Sessions  *sessions.Pool

	// Reliability
	BackupService      *reliability.ArtifactBackupService // nil when no backup bucket is configured
	MaintenanceService *reliability.MaintenanceService
}

// Close releases the container's resources
func (c *Container) Close() error {
	if c.CatalogDB != nil {
		return c.CatalogDB.Close()
	}
	return nil
}
