package di

import (
	"context"
	"testing"

	"github.com/aristath/qengine/internal/config"
	"github.com/aristath/qengine/internal/modules/artifacts"
	"github.com/aristath/qengine/internal/modules/sessions"
	"github.com/aristath/qengine/internal/modules/tokenizer"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		DataDir:       t.TempDir(),
		NumQubits:     3,
		MaxQubits:     20,
		VocabSize:     100,
		Dimension:     64,
		MinFrequency:  1,
		Seed:          1,
		TokenizerName: "tokenizer",
	}
}

func TestWire(t *testing.T) {
	cfg := testConfig(t)

	container, err := Wire(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Close() })

	assert.NotNil(t, container.CatalogDB)
	assert.NotNil(t, container.ArtifactRepo)
	assert.NotNil(t, container.Tokenizer)
	assert.Equal(t, "trained", container.Embedding.Name())
	assert.NotNil(t, container.Sessions)
	assert.NotNil(t, container.MaintenanceService)
	assert.Nil(t, container.BackupService)
	assert.Zero(t, container.Tokenizer.Size())

	list, err := container.ArtifactRepo.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestWire_LoadsSavedTokenizer(t *testing.T) {
	cfg := testConfig(t)

	tok, err := tokenizer.New(cfg.VocabSize, cfg.Dimension, zerolog.Nop())
	require.NoError(t, err)
	tok.Train([]string{"blessed are the meek"}, 1)
	require.NoError(t, tok.Save(cfg.TokenizerBase()))

	container, err := Wire(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Close() })

	assert.Equal(t, 4, container.Tokenizer.Size())
	id, ok := container.Tokenizer.ID("meek")
	assert.True(t, ok)
	assert.Equal(t, 3, id)
}

func TestWire_PrefersLatestCatalogedVersion(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	unversioned, err := tokenizer.New(cfg.VocabSize, cfg.Dimension, zerolog.Nop())
	require.NoError(t, err)
	unversioned.Train([]string{"blessed are the meek"}, 1)
	require.NoError(t, unversioned.Save(cfg.TokenizerBase()))

	first, err := Wire(ctx, cfg, zerolog.Nop())
	require.NoError(t, err)

	versioned, err := tokenizer.New(cfg.VocabSize, cfg.Dimension, zerolog.Nop())
	require.NoError(t, err)
	versioned.Train([]string{"the lord is my shepherd"}, 1)
	base := cfg.TokenizerVersionBase("v2")
	require.NoError(t, versioned.Save(base))
	a, err := artifacts.Describe(cfg.TokenizerName, base, versioned)
	require.NoError(t, err)
	_, err = first.ArtifactRepo.Record(ctx, a)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	container, err := Wire(ctx, cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Close() })

	_, ok := container.Tokenizer.ID("shepherd")
	assert.True(t, ok)
	_, ok = container.Tokenizer.ID("meek")
	assert.False(t, ok)
}

func TestWire_SessionsUseTrainedEmbedding(t *testing.T) {
	cfg := testConfig(t)

	container, err := Wire(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Close() })

	container.Tokenizer.Train([]string{"faith hope love", "love never fails"}, 1)

	id, err := container.Sessions.Open()
	require.NoError(t, err)
	require.NoError(t, container.Sessions.With(id, func(s *sessions.Session) error {
		results := s.Processor.SearchTokens("love", []string{"faith", "love"}, 1)
		require.Len(t, results, 1)
		assert.Equal(t, "love", results[0].Token)
		assert.Equal(t, 3, s.Computer.NumQubits())
		return nil
	}))
}
