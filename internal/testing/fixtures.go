package testing

import (
	"path/filepath"
	"testing"

	"github.com/aristath/qengine/internal/modules/tokenizer"
	"github.com/rs/zerolog"
)

// NewCorpusFixture returns a small corpus with repeated tokens of varying frequency
func NewCorpusFixture() []string {
	return []string{
		"In the beginning was the Word, and the Word was with God.",
		"The light shines in the darkness, and the darkness has not overcome it.",
		"Love is patient, love is kind.",
		"Faith, hope and love abide; the greatest of these is love.",
	}
}

// NewTrainedTokenizer trains a tokenizer on NewCorpusFixture
func NewTrainedTokenizer(t *testing.T, vocabSize, dimension int) *tokenizer.Tokenizer {
	t.Helper()

	tok, err := tokenizer.New(vocabSize, dimension, zerolog.Nop())
	if err != nil {
		t.Fatalf("Failed to create tokenizer: %v", err)
	}
	tok.Train(NewCorpusFixture(), 1)
	return tok
}

// SaveTokenizer saves tok under a temporary directory and returns the base path
func SaveTokenizer(t *testing.T, tok *tokenizer.Tokenizer, name string) string {
	t.Helper()

	base := filepath.Join(t.TempDir(), name)
	if err := tok.Save(base); err != nil {
		t.Fatalf("Failed to save tokenizer: %v", err)
	}
	return base
}
