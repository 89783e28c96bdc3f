// Package processor provides the attention, sampling and token-search primitives
// the text-generation layer builds on.
package processor

import (
	"fmt"
	"math"
	"sort"

	"github.com/aristath/qengine/internal/modules/quantum"
	"github.com/aristath/qengine/internal/modules/tokenizer"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/cmplxs"
	"gonum.org/v1/gonum/floats"
)

const (
	// DefaultEntanglementBonus is the constant weight applied to search scores
	DefaultEntanglementBonus = 0.5

	// DefaultSearchDimension is the hash-embedding length used when no embedding is configured
	DefaultSearchDimension = 64

	// samplingEpsilon keeps log(p) finite for zero probabilities
	samplingEpsilon = 1e-10
)

// Config configures a Processor
type Config struct {
	Embedding         tokenizer.Embedding // search embedding, a HashEmbedding when nil
	EntanglementBonus float64             // DefaultEntanglementBonus when 0
}

// ScoredToken is a search result
type ScoredToken struct {
	Token    string
	Score    float64 // |<query|candidate>|
	Weighted float64 // Score * entanglement bonus, used for ranking
}

// Processor runs language-model primitives on a Computer.
// Attention and Sample mutate the computer's register, so a Processor shares the
// computer's single-owner rule.
type Processor struct {
	computer          *quantum.Computer
	embedding         tokenizer.Embedding
	entanglementBonus float64
	log               zerolog.Logger
}

// New creates a processor bound to computer
func New(computer *quantum.Computer, cfg Config, log zerolog.Logger) *Processor {
	embedding := cfg.Embedding
	if embedding == nil {
		embedding = tokenizer.NewHashEmbedding(DefaultSearchDimension)
	}
	bonus := cfg.EntanglementBonus
	if bonus == 0 {
		bonus = DefaultEntanglementBonus
	}

	return &Processor{
		computer:          computer,
		embedding:         embedding,
		entanglementBonus: bonus,
		log: log.With().
			Str("component", "quantum_processor").
			Str("embedding", embedding.Name()).
			Logger(),
	}
}

// Computer returns the underlying computer
func (p *Processor) Computer() *quantum.Computer {
	return p.computer
}

// Embedding returns the search embedding strategy
func (p *Processor) Embedding() tokenizer.Embedding {
	return p.embedding
}

// Attention loads query + sum(keys) into the register, amplifies the most probable
// basis state once and returns the resulting state. Vectors shorter than the
// register are zero-padded.
func (p *Processor) Attention(query []complex128, keys [][]complex128) ([]complex128, error) {
	reg := p.computer.Register()
	dim := reg.Dimension()

	working := make([]complex128, dim)
	if err := accumulate(working, query, dim); err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	for i, key := range keys {
		if err := accumulate(working, key, dim); err != nil {
			return nil, fmt.Errorf("key %d: %w", i, err)
		}
	}

	if err := reg.SetState(working); err != nil {
		return nil, err
	}

	focus := floats.MaxIdx(reg.Probabilities())
	if err := p.computer.AmplitudeAmplification(focus, 1); err != nil {
		return nil, err
	}

	p.log.Debug().Int("keys", len(keys)).Int("focus", focus).Msg("Attention computed")
	return reg.State(), nil
}

func accumulate(dst, v []complex128, dim int) error {
	if len(v) > dim {
		return fmt.Errorf("%w: vector of length %d for register dimension %d",
			quantum.ErrDimensionMismatch, len(v), dim)
	}
	cmplxs.Add(dst[:len(v)], v)
	return nil
}

// Sample draws an index from probabilities sharpened or flattened by temperature:
// p' = softmax(log(p + eps) / temperature). The amplitudes sqrt(p') are loaded
// directly into the register and measured. temperature <= 0 selects the argmax.
func (p *Processor) Sample(probabilities []float64, temperature float64) (int, error) {
	reg := p.computer.Register()

	if len(probabilities) == 0 {
		return 0, quantum.NewConfigurationError("probabilities", 0, "must not be empty")
	}
	if len(probabilities) > reg.Dimension() {
		return 0, fmt.Errorf("%w: %d probabilities for register dimension %d",
			quantum.ErrDimensionMismatch, len(probabilities), reg.Dimension())
	}
	for i, prob := range probabilities {
		if prob < 0 || math.IsNaN(prob) || math.IsInf(prob, 0) {
			return 0, quantum.NewConfigurationError("probabilities", prob,
				fmt.Sprintf("entry %d must be a finite non-negative number", i))
		}
	}

	if temperature <= 0 || math.IsNaN(temperature) {
		return floats.MaxIdx(probabilities), nil
	}

	logits := make([]float64, len(probabilities))
	for i, prob := range probabilities {
		logits[i] = math.Log(prob+samplingEpsilon) / temperature
	}
	lse := floats.LogSumExp(logits)

	amplitudes := make([]complex128, len(probabilities))
	for i, l := range logits {
		amplitudes[i] = complex(math.Sqrt(math.Exp(l-lse)), 0)
	}
	if err := reg.SetState(amplitudes); err != nil {
		return 0, err
	}

	return reg.MeasureAll(), nil
}

// SearchTokens ranks candidates by their overlap with query under the configured
// embedding. topK <= 0 returns every candidate. Ties keep candidate order.
func (p *Processor) SearchTokens(query string, candidates []string, topK int) []ScoredToken {
	q := p.embedding.Embed(query)

	results := make([]ScoredToken, len(candidates))
	for i, candidate := range candidates {
		score := tokenizer.Overlap(q, p.embedding.Embed(candidate))
		results[i] = ScoredToken{
			Token:    candidate,
			Score:    score,
			Weighted: score * p.entanglementBonus,
		}
	}

	sort.SliceStable(results, func(a, b int) bool {
		return results[a].Weighted > results[b].Weighted
	})

	if topK > 0 && topK < len(results) {
		results = results[:topK]
	}
	return results
}
