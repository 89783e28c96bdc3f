package processor

import (
	"errors"
	"math/cmplx"
	"testing"

	"github.com/aristath/qengine/internal/modules/quantum"
	"github.com/aristath/qengine/internal/modules/tokenizer"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProcessor(t *testing.T, qubits int, cfg Config) *Processor {
	t.Helper()
	computer, err := quantum.NewComputer(qubits, quantum.Options{
		Register: quantum.RegisterOptions{Seed: 99},
	}, zerolog.Nop())
	require.NoError(t, err)
	return New(computer, cfg, zerolog.Nop())
}

func TestSample_CertainOutcome(t *testing.T) {
	p := newTestProcessor(t, 2, Config{})

	for i := 0; i < 100; i++ {
		idx, err := p.Sample([]float64{1.0, 0.0, 0.0}, 1.0)
		require.NoError(t, err)
		assert.Equal(t, 0, idx)
	}
}

func TestSample_FollowsDistribution(t *testing.T) {
	p := newTestProcessor(t, 1, Config{})

	const trials = 4000
	ones := 0
	for i := 0; i < trials; i++ {
		idx, err := p.Sample([]float64{0.2, 0.8}, 1.0)
		require.NoError(t, err)
		ones += idx
	}
	assert.InDelta(t, 0.8, float64(ones)/trials, 0.04)
}

func TestSample_HighTemperatureFlattens(t *testing.T) {
	p := newTestProcessor(t, 1, Config{})

	const trials = 4000
	ones := 0
	for i := 0; i < trials; i++ {
		idx, err := p.Sample([]float64{0.1, 0.9}, 100.0)
		require.NoError(t, err)
		ones += idx
	}
	assert.InDelta(t, 0.5, float64(ones)/trials, 0.05)
}

func TestSample_ZeroTemperatureIsGreedy(t *testing.T) {
	p := newTestProcessor(t, 2, Config{})

	idx, err := p.Sample([]float64{0.1, 0.2, 0.6, 0.1}, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, idx)
}

func TestSample_LoadsAmplitudesIntoRegister(t *testing.T) {
	p := newTestProcessor(t, 2, Config{})

	_, err := p.Sample([]float64{0.25, 0.75}, 1.0)
	require.NoError(t, err)

	probs := p.Computer().Probabilities()
	assert.InDelta(t, 0.25, probs[0], 1e-6)
	assert.InDelta(t, 0.75, probs[1], 1e-6)
	assert.Equal(t, 0.0, probs[2])
	assert.Equal(t, 0.0, probs[3])
}

func TestSample_Errors(t *testing.T) {
	p := newTestProcessor(t, 1, Config{})

	_, err := p.Sample(nil, 1.0)
	assert.True(t, quantum.IsConfigurationError(err))

	_, err = p.Sample([]float64{0.5, -0.1}, 1.0)
	assert.True(t, quantum.IsConfigurationError(err))

	_, err = p.Sample([]float64{0.3, 0.3, 0.4}, 1.0)
	assert.True(t, errors.Is(err, quantum.ErrDimensionMismatch))
}

func TestAttention_AmplifiesStrongestComponent(t *testing.T) {
	p := newTestProcessor(t, 2, Config{})

	state, err := p.Attention([]complex128{1, 0, 0, 0}, [][]complex128{{0, 1, 0, 0}})
	require.NoError(t, err)
	require.Len(t, state, 4)

	// (1, 1)/sqrt(2) -> amplify index 0 -> (2, 1)/sqrt(5)
	assert.InDelta(t, 0.8, cmplx.Abs(state[0])*cmplx.Abs(state[0]), 1e-12)
	assert.InDelta(t, 0.2, cmplx.Abs(state[1])*cmplx.Abs(state[1]), 1e-12)
}

func TestAttention_Deterministic(t *testing.T) {
	query := []complex128{0.3, 0.1i, 0.5, 0}
	keys := [][]complex128{{0.2, 0.2, 0, 0.1}, {0, 0, 0.4i, 0.9}}

	first, err := newTestProcessor(t, 2, Config{}).Attention(query, keys)
	require.NoError(t, err)
	second, err := newTestProcessor(t, 2, Config{}).Attention(query, keys)
	require.NoError(t, err)

	assert.Equal(t, first, second)

	norm := 0.0
	for _, a := range first {
		norm += real(a)*real(a) + imag(a)*imag(a)
	}
	assert.InDelta(t, 1.0, norm, quantum.NormTolerance)
}

func TestAttention_PadsShortVectors(t *testing.T) {
	p := newTestProcessor(t, 3, Config{})

	state, err := p.Attention([]complex128{0, 1}, nil)
	require.NoError(t, err)
	require.Len(t, state, 8)
	assert.InDelta(t, 1.0, cmplx.Abs(state[1]), 1e-12)
}

func TestAttention_CancellingInputsFallBackToGroundState(t *testing.T) {
	p := newTestProcessor(t, 1, Config{})

	state, err := p.Attention([]complex128{1, 0}, [][]complex128{{-1, 0}})
	require.NoError(t, err)
	assert.Equal(t, []complex128{1, 0}, state)
}

func TestAttention_DimensionMismatch(t *testing.T) {
	p := newTestProcessor(t, 1, Config{})

	_, err := p.Attention([]complex128{1, 0, 0}, nil)
	assert.True(t, errors.Is(err, quantum.ErrDimensionMismatch))

	_, err = p.Attention([]complex128{1, 0}, [][]complex128{{1, 0, 1}})
	assert.True(t, errors.Is(err, quantum.ErrDimensionMismatch))
}

func TestSearchTokens_SelfMatchRanksFirst(t *testing.T) {
	p := newTestProcessor(t, 1, Config{})

	results := p.SearchTokens("love", []string{"love", "hate", "neutral"}, 1)

	require.Len(t, results, 1)
	assert.Equal(t, "love", results[0].Token)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
	assert.InDelta(t, DefaultEntanglementBonus, results[0].Weighted, 1e-9)
}

func TestSearchTokens_TopK(t *testing.T) {
	p := newTestProcessor(t, 1, Config{})
	candidates := []string{"grace", "mercy", "peace", "grace"}

	all := p.SearchTokens("grace", candidates, 0)
	require.Len(t, all, 4)
	assert.Equal(t, "grace", all[0].Token)
	assert.Equal(t, "grace", all[1].Token)
	for i := 1; i < len(all); i++ {
		assert.GreaterOrEqual(t, all[i-1].Weighted, all[i].Weighted)
	}

	assert.Len(t, p.SearchTokens("grace", candidates, 10), 4)
	assert.Empty(t, p.SearchTokens("grace", nil, 3))
}

func TestNew_WithTrainedEmbedding(t *testing.T) {
	tok, err := tokenizer.New(50, 64, zerolog.Nop())
	require.NoError(t, err)
	tok.Train([]string{"faith hope love", "love is patient", "love is kind"}, 1)

	p := newTestProcessor(t, 1, Config{
		Embedding:         tokenizer.NewTrainedEmbedding(tok),
		EntanglementBonus: 1.0,
	})

	assert.Equal(t, "trained", p.Embedding().Name())
	results := p.SearchTokens("love", []string{"hope", "love", "kind"}, 0)
	require.Len(t, results, 3)
	assert.Equal(t, "love", results[0].Token)
	assert.InDelta(t, results[0].Score, results[0].Weighted, 1e-12)
}

func TestNew_DefaultsToHashEmbedding(t *testing.T) {
	p := newTestProcessor(t, 1, Config{})
	assert.Equal(t, "hash", p.Embedding().Name())
	assert.Equal(t, DefaultSearchDimension, p.Embedding().Dimension())
}
