package reliability

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/aristath/qengine/internal/modules/artifacts"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/disk"
)

const (
	// criticalFreeBytes halts maintenance; a full entanglement matrix at the
	// vocabulary cap is about 512 MB
	criticalFreeBytes = 512 << 20
	lowFreeBytes      = 4 << 30
)

// DiskProbe reports the free bytes of the filesystem holding path
type DiskProbe func(path string) (uint64, error)

// SystemDiskProbe reads free space through gopsutil
func SystemDiskProbe(path string) (uint64, error) {
	usage, err := disk.Usage(path)
	if err != nil {
		return 0, err
	}
	return usage.Free, nil
}

// HealthChecker is implemented by database.DB
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// ArtifactLister is implemented by artifacts.Repository
type ArtifactLister interface {
	List(ctx context.Context) ([]artifacts.Artifact, error)
}

// MaintenanceReport summarizes a maintenance run
type MaintenanceReport struct {
	FreeBytes uint64
	Checked   int
	Missing   []string // artifact IDs whose files are gone
	Corrupted []string // artifact IDs whose files no longer match the catalog
}

// MaintenanceService verifies the catalog database and the artifact files it describes
type MaintenanceService struct {
	db      HealthChecker
	catalog ArtifactLister
	dataDir string
	probe   DiskProbe
	log     zerolog.Logger
}

// NewMaintenanceService creates a maintenance service. probe defaults to SystemDiskProbe.
func NewMaintenanceService(
	db HealthChecker,
	catalog ArtifactLister,
	dataDir string,
	probe DiskProbe,
	log zerolog.Logger,
) *MaintenanceService {
	if probe == nil {
		probe = SystemDiskProbe
	}
	return &MaintenanceService{
		db:      db,
		catalog: catalog,
		dataDir: dataDir,
		probe:   probe,
		log:     log.With().Str("service", "maintenance").Logger(),
	}
}

// Run checks database integrity and free disk space, then re-verifies every
// cataloged artifact's checksums. Only integrity and critical disk failures are errors.
func (m *MaintenanceService) Run(ctx context.Context) (MaintenanceReport, error) {
	var report MaintenanceReport

	if err := m.db.HealthCheck(ctx); err != nil {
		m.log.Error().Err(err).Msg("CRITICAL: catalog database failed health check")
		return report, fmt.Errorf("catalog health check failed: %w", err)
	}

	free, err := m.probe(m.dataDir)
	if err != nil {
		m.log.Warn().Err(err).Msg("Disk space probe failed, skipping check")
	} else {
		report.FreeBytes = free
		if free < criticalFreeBytes {
			m.log.Error().Uint64("free_bytes", free).Msg("CRITICAL: insufficient disk space")
			return report, fmt.Errorf("only %d bytes free in %s", free, m.dataDir)
		}
		if free < lowFreeBytes {
			m.log.Warn().Uint64("free_bytes", free).Msg("Disk space running low")
		}
	}

	list, err := m.catalog.List(ctx)
	if err != nil {
		return report, err
	}

	for _, a := range list {
		report.Checked++
		ok, err := verifyArtifact(a)
		switch {
		case errors.Is(err, os.ErrNotExist):
			m.log.Warn().Str("id", a.ID).Str("artifact", a.Name).Msg("Artifact files missing")
			report.Missing = append(report.Missing, a.ID)
		case err != nil:
			return report, fmt.Errorf("failed to verify artifact %s: %w", a.ID, err)
		case !ok:
			m.log.Error().Str("id", a.ID).Str("artifact", a.Name).Msg("Artifact checksum mismatch")
			report.Corrupted = append(report.Corrupted, a.ID)
		}
	}

	m.log.Info().
		Int("checked", report.Checked).
		Int("missing", len(report.Missing)).
		Int("corrupted", len(report.Corrupted)).
		Msg("Maintenance completed")

	return report, nil
}

func verifyArtifact(a artifacts.Artifact) (bool, error) {
	for _, f := range []struct{ path, want string }{
		{a.VocabularyPath(), a.VocabularyChecksum},
		{a.MatrixPath(), a.MatrixChecksum},
	} {
		got, err := artifacts.FileChecksum(f.path)
		if err != nil {
			return false, err
		}
		if got != f.want {
			return false, nil
		}
	}
	return true, nil
}
