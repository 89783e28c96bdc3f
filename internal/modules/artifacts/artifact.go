// Package artifacts catalogs saved tokenizer artifacts (vocabulary record plus
// entanglement matrix) and their off-site backups.
package artifacts

import (
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/aristath/qengine/internal/modules/tokenizer"
)

// Artifact describes one saved tokenizer
type Artifact struct {
	ID                 string
	Name               string
	BasePath           string
	VocabSize          int
	Dimension          int
	TokenCount         int
	VocabularyChecksum string
	MatrixChecksum     string
	CreatedAt          time.Time
}

// VocabularyPath returns the path of the structured vocabulary record
func (a Artifact) VocabularyPath() string {
	return tokenizer.VocabularyPath(a.BasePath)
}

// MatrixPath returns the path of the entanglement matrix file
func (a Artifact) MatrixPath() string {
	return tokenizer.MatrixPath(a.BasePath)
}

// Backup is a record of an uploaded artifact archive
type Backup struct {
	ArtifactID string
	ObjectKey  string
	SizeBytes  int64
	UploadedAt time.Time
}

// Describe builds a catalog entry for a tokenizer that has been saved at base.
// Checksums are taken from the files on disk.
func Describe(name, base string, tok *tokenizer.Tokenizer) (Artifact, error) {
	vocabSum, err := FileChecksum(tokenizer.VocabularyPath(base))
	if err != nil {
		return Artifact{}, fmt.Errorf("failed to checksum vocabulary: %w", err)
	}
	matrixSum, err := FileChecksum(tokenizer.MatrixPath(base))
	if err != nil {
		return Artifact{}, fmt.Errorf("failed to checksum entanglement matrix: %w", err)
	}

	return Artifact{
		Name:               name,
		BasePath:           base,
		VocabSize:          tok.VocabSize(),
		Dimension:          tok.Dimension(),
		TokenCount:         tok.Size(),
		VocabularyChecksum: vocabSum,
		MatrixChecksum:     matrixSum,
	}, nil
}

// FileChecksum returns the SHA256 checksum of a file as "sha256:<hex>"
func FileChecksum(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}

	return fmt.Sprintf("sha256:%x", hash.Sum(nil)), nil
}
