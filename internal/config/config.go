// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/aristath/qengine/internal/modules/quantum"
	"github.com/aristath/qengine/internal/modules/tokenizer"
	"github.com/aristath/qengine/internal/utils"
	"github.com/joho/godotenv"
)

// Config holds engine configuration
type Config struct {
	DataDir   string // Base directory for tokenizer artifacts and the catalog (always absolute)
	LogLevel  string
	LogPretty bool

	NumQubits    int
	MaxQubits    int
	VocabSize    int
	Dimension    int
	MinFrequency int
	Seed         uint64 // 0 seeds from the clock
	MaxSessions  int

	CorpusDir     string
	TokenizerName string
	SampleTokens  []string // tokens whose entanglement neighbours the trainer reports

	Backup BackupConfig
}

// BackupConfig holds S3-compatible artifact backup settings
type BackupConfig struct {
	Bucket    string
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Keep      int // archives kept per artifact by rotation
}

// Enabled reports whether a backup bucket is configured
func (b BackupConfig) Enabled() bool {
	return b.Bucket != ""
}

// Load reads configuration from .env and environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg, err := FromEnv()
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return cfg, nil
}

// FromEnv builds and validates configuration from the current environment
// without touching the filesystem
func FromEnv() (*Config, error) {
	dataDir, err := filepath.Abs(getEnv("QENGINE_DATA_DIR", "./data"))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	cfg := &Config{
		DataDir:       dataDir,
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogPretty:     getEnvAsBool("LOG_PRETTY", true),
		NumQubits:     getEnvAsInt("QENGINE_NUM_QUBITS", 8),
		MaxQubits:     getEnvAsInt("QENGINE_MAX_QUBITS", quantum.DefaultMaxQubits),
		VocabSize:     getEnvAsInt("QENGINE_VOCAB_SIZE", 1000),
		Dimension:     getEnvAsInt("QENGINE_DIMENSION", 64),
		MinFrequency:  getEnvAsInt("QENGINE_MIN_FREQUENCY", 1),
		Seed:          getEnvAsUint64("QENGINE_SEED", 0),
		MaxSessions:   getEnvAsInt("QENGINE_MAX_SESSIONS", 0),
		CorpusDir:     getEnv("QENGINE_CORPUS_DIR", ""),
		TokenizerName: getEnv("QENGINE_TOKENIZER_NAME", "tokenizer"),
		SampleTokens:  utils.ParseCSV(getEnv("QENGINE_SAMPLE_TOKENS", "")),
		Backup: BackupConfig{
			Bucket:    getEnv("QENGINE_BACKUP_BUCKET", ""),
			Endpoint:  getEnv("QENGINE_BACKUP_ENDPOINT", ""),
			Region:    getEnv("QENGINE_BACKUP_REGION", "auto"),
			AccessKey: getEnv("QENGINE_BACKUP_ACCESS_KEY", ""),
			SecretKey: getEnv("QENGINE_BACKUP_SECRET_KEY", ""),
			Keep:      getEnvAsInt("QENGINE_BACKUP_KEEP", 5),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks value ranges. Errors are *quantum.ConfigurationError.
func (c *Config) Validate() error {
	if err := quantum.ValidateQubitCount(c.NumQubits, c.MaxQubits); err != nil {
		return err
	}
	if c.VocabSize <= 0 || c.VocabSize > tokenizer.MaxVocabSize {
		return quantum.NewConfigurationError("vocab_size", c.VocabSize,
			fmt.Sprintf("must be in [1, %d]", tokenizer.MaxVocabSize))
	}
	if c.Dimension <= 0 {
		return quantum.NewConfigurationError("dimension", c.Dimension, "must be positive")
	}
	if c.MinFrequency < 1 {
		return quantum.NewConfigurationError("min_frequency", c.MinFrequency, "must be at least 1")
	}
	if c.MaxSessions < 0 {
		return quantum.NewConfigurationError("max_sessions", c.MaxSessions, "must not be negative")
	}
	if c.TokenizerName == "" || filepath.Base(c.TokenizerName) != c.TokenizerName {
		return quantum.NewConfigurationError("tokenizer_name", c.TokenizerName, "must be a plain file name")
	}
	if c.Backup.Enabled() && (c.Backup.AccessKey == "") != (c.Backup.SecretKey == "") {
		return quantum.NewConfigurationError("backup_credentials", "<redacted>",
			"access key and secret key must be set together")
	}
	return nil
}

// TokenizerBase returns the unversioned base path, used when the catalog has no entry for the tokenizer
func (c *Config) TokenizerBase() string {
	return filepath.Join(c.DataDir, "tokenizers", c.TokenizerName)
}

// TokenizerVersionBase returns the save base of one trained version of the tokenizer.
// Versions live in separate directories and never share files.
func (c *Config) TokenizerVersionBase(version string) string {
	return filepath.Join(c.DataDir, "tokenizers", c.TokenizerName, version, c.TokenizerName)
}

// CatalogPath returns the artifact catalog database path
func (c *Config) CatalogPath() string {
	return filepath.Join(c.DataDir, "artifacts.db")
}

// StagingDir returns the scratch directory used to build backup archives
func (c *Config) StagingDir() string {
	return filepath.Join(c.DataDir, "backup-staging")
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsUint64(key string, defaultValue uint64) uint64 {
	if value := os.Getenv(key); value != "" {
		if uintVal, err := strconv.ParseUint(value, 10, 64); err == nil {
			return uintVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
