package reliability

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aristath/qengine/internal/modules/artifacts"
	"github.com/aristath/qengine/internal/utils"
	"github.com/rs/zerolog"
)

const (
	backupKeyPrefix     = "qengine-"
	backupKeySuffix     = ".tar.gz"
	backupTimeLayout    = "2006-01-02-150405.000"
	metadataFilename    = "backup-metadata.json"
	backupFormatVersion = "1.0.0"
)

// ErrChecksumMismatch is returned when an artifact file no longer matches its catalog checksum
var ErrChecksumMismatch = errors.New("artifact checksum mismatch")

// BackupRecorder stores completed backups against their artifact
type BackupRecorder interface {
	RecordBackup(ctx context.Context, b artifacts.Backup) error
}

// BackupMetadata is written into every archive
type BackupMetadata struct {
	Timestamp  time.Time      `json:"timestamp"`
	Version    string         `json:"version"`
	ArtifactID string         `json:"artifact_id"`
	Name       string         `json:"name"`
	VocabSize  int            `json:"vocab_size"`
	Dimension  int            `json:"dimension"`
	TokenCount int            `json:"token_count"`
	Files      []FileMetadata `json:"files"`
}

// FileMetadata describes one file inside an archive
type FileMetadata struct {
	Filename  string `json:"filename"`
	SizeBytes int64  `json:"size_bytes"`
	Checksum  string `json:"checksum"`
}

// BackupInfo is a backup archive found in object storage
type BackupInfo struct {
	Key       string
	Name      string
	Timestamp time.Time
	SizeBytes int64
}

// ArtifactBackupService archives saved tokenizers and uploads them off-site
type ArtifactBackupService struct {
	uploader   Uploader
	recorder   BackupRecorder
	stagingDir string
	now        func() time.Time
	log        zerolog.Logger
}

// NewArtifactBackupService creates a backup service. recorder may be nil.
func NewArtifactBackupService(
	uploader Uploader,
	recorder BackupRecorder,
	stagingDir string,
	log zerolog.Logger,
) *ArtifactBackupService {
	return &ArtifactBackupService{
		uploader:   uploader,
		recorder:   recorder,
		stagingDir: stagingDir,
		now:        time.Now,
		log:        log.With().Str("service", "artifact_backup").Logger(),
	}
}

// BackupKey returns the object key of an archive of name taken at ts
func BackupKey(name string, ts time.Time) string {
	return backupKeyPrefix + name + "-" + ts.UTC().Format(backupTimeLayout) + backupKeySuffix
}

// Backup verifies the artifact files against their catalog checksums, packs them
// with a metadata file into a tar.gz archive and uploads it.
func (s *ArtifactBackupService) Backup(ctx context.Context, a artifacts.Artifact) (artifacts.Backup, error) {
	timer := utils.NewTimer("artifact_backup", s.log)
	s.log.Info().Str("artifact", a.Name).Str("id", a.ID).Msg("Starting artifact backup")

	files := []struct {
		path     string
		checksum string
	}{
		{a.VocabularyPath(), a.VocabularyChecksum},
		{a.MatrixPath(), a.MatrixChecksum},
	}

	timestamp := s.now().UTC()
	metadata := BackupMetadata{
		Timestamp:  timestamp,
		Version:    backupFormatVersion,
		ArtifactID: a.ID,
		Name:       a.Name,
		VocabSize:  a.VocabSize,
		Dimension:  a.Dimension,
		TokenCount: a.TokenCount,
		Files:      make([]FileMetadata, 0, len(files)),
	}

	for _, f := range files {
		info, err := os.Stat(f.path)
		if err != nil {
			return artifacts.Backup{}, fmt.Errorf("failed to stat %s: %w", f.path, err)
		}
		checksum, err := artifacts.FileChecksum(f.path)
		if err != nil {
			return artifacts.Backup{}, fmt.Errorf("failed to calculate checksum for %s: %w", f.path, err)
		}
		if f.checksum != "" && checksum != f.checksum {
			return artifacts.Backup{}, fmt.Errorf("%w: %s has %s, catalog has %s",
				ErrChecksumMismatch, f.path, checksum, f.checksum)
		}

		metadata.Files = append(metadata.Files, FileMetadata{
			Filename:  filepath.Base(f.path),
			SizeBytes: info.Size(),
			Checksum:  checksum,
		})
	}

	if err := os.MkdirAll(s.stagingDir, 0755); err != nil {
		return artifacts.Backup{}, fmt.Errorf("failed to create staging directory: %w", err)
	}
	staging, err := os.MkdirTemp(s.stagingDir, "backup-")
	if err != nil {
		return artifacts.Backup{}, fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(staging)

	metadataPath := filepath.Join(staging, metadataFilename)
	if err := writeMetadata(metadataPath, metadata); err != nil {
		return artifacts.Backup{}, fmt.Errorf("failed to write metadata: %w", err)
	}

	key := BackupKey(a.Name, timestamp)
	archivePath := filepath.Join(staging, key)
	if err := createArchive(archivePath, []string{files[0].path, files[1].path, metadataPath}); err != nil {
		return artifacts.Backup{}, fmt.Errorf("failed to create archive: %w", err)
	}

	archiveInfo, err := os.Stat(archivePath)
	if err != nil {
		return artifacts.Backup{}, fmt.Errorf("failed to stat archive: %w", err)
	}
	archive, err := os.Open(archivePath)
	if err != nil {
		return artifacts.Backup{}, fmt.Errorf("failed to open archive: %w", err)
	}
	defer archive.Close()

	if err := s.uploader.Upload(ctx, key, archive, archiveInfo.Size()); err != nil {
		return artifacts.Backup{}, fmt.Errorf("failed to upload backup: %w", err)
	}

	backup := artifacts.Backup{
		ArtifactID: a.ID,
		ObjectKey:  key,
		SizeBytes:  archiveInfo.Size(),
		UploadedAt: timestamp,
	}
	if s.recorder != nil {
		if err := s.recorder.RecordBackup(ctx, backup); err != nil {
			return backup, fmt.Errorf("backup uploaded but not recorded: %w", err)
		}
	}

	timer.Stop(map[string]interface{}{"key": key})
	s.log.Info().
		Str("key", key).
		Int64("size_bytes", archiveInfo.Size()).
		Msg("Artifact backup completed")

	return backup, nil
}

// ListBackups returns the archives of the named artifact, newest first
func (s *ArtifactBackupService) ListBackups(ctx context.Context, name string) ([]BackupInfo, error) {
	prefix := backupKeyPrefix + name + "-"
	objects, err := s.uploader.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}

	backups := make([]BackupInfo, 0, len(objects))
	for _, obj := range objects {
		if !strings.HasPrefix(obj.Key, prefix) || !strings.HasSuffix(obj.Key, backupKeySuffix) {
			continue
		}

		stamp := strings.TrimSuffix(strings.TrimPrefix(obj.Key, prefix), backupKeySuffix)
		timestamp, err := time.Parse(backupTimeLayout, stamp)
		if err != nil {
			// Another artifact whose name extends this one ("bible" vs "bible-kjv")
			s.log.Debug().Str("key", obj.Key).Msg("Skipping object with unparsable timestamp")
			continue
		}

		backups = append(backups, BackupInfo{
			Key:       obj.Key,
			Name:      name,
			Timestamp: timestamp,
			SizeBytes: obj.SizeBytes,
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].Timestamp.After(backups[j].Timestamp)
	})

	return backups, nil
}

// RotateOldBackups deletes all but the newest keep archives of the named artifact.
// At least one archive is always kept.
func (s *ArtifactBackupService) RotateOldBackups(ctx context.Context, name string, keep int) (int, error) {
	if keep < 1 {
		keep = 1
	}

	backups, err := s.ListBackups(ctx, name)
	if err != nil {
		return 0, err
	}
	if len(backups) <= keep {
		return 0, nil
	}

	deleted := 0
	for _, b := range backups[keep:] {
		if err := s.uploader.Delete(ctx, b.Key); err != nil {
			s.log.Error().Err(err).Str("key", b.Key).Msg("Failed to delete old backup")
			continue
		}
		deleted++
	}

	s.log.Info().
		Str("artifact", name).
		Int("deleted", deleted).
		Int("remaining", len(backups)-deleted).
		Msg("Backup rotation completed")

	return deleted, nil
}

func writeMetadata(path string, metadata BackupMetadata) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(metadata)
}

func createArchive(archivePath string, paths []string) (err error) {
	archiveFile, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("failed to create archive file: %w", err)
	}
	defer func() {
		if cerr := archiveFile.Close(); err == nil {
			err = cerr
		}
	}()

	gzipWriter := gzip.NewWriter(archiveFile)
	tarWriter := tar.NewWriter(gzipWriter)

	for _, path := range paths {
		if err := addFileToArchive(tarWriter, path, filepath.Base(path)); err != nil {
			return fmt.Errorf("failed to add %s to archive: %w", path, err)
		}
	}

	if err := tarWriter.Close(); err != nil {
		return err
	}
	return gzipWriter.Close()
}

func addFileToArchive(tarWriter *tar.Writer, filePath, nameInArchive string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}

	header := &tar.Header{
		Name:    nameInArchive,
		Size:    info.Size(),
		Mode:    int64(info.Mode().Perm()),
		ModTime: info.ModTime(),
	}
	if err := tarWriter.WriteHeader(header); err != nil {
		return err
	}

	_, err = io.Copy(tarWriter, file)
	return err
}
