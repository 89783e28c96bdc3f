package tokenizer

import (
	"math"
	"math/cmplx"
	"strings"

	"gonum.org/v1/gonum/cmplxs"
)

// Embedding maps a string onto a unit-norm complex vector.
// Implementations live in distinct spaces; vectors from different strategies must not be compared.
type Embedding interface {
	Name() string
	Dimension() int
	Embed(text string) []complex128
}

// TrainedEmbedding embeds text with the tokenizer's token states
type TrainedEmbedding struct {
	tokenizer *Tokenizer
}

// NewTrainedEmbedding wraps a tokenizer
func NewTrainedEmbedding(t *Tokenizer) *TrainedEmbedding {
	return &TrainedEmbedding{tokenizer: t}
}

// Name identifies the strategy
func (e *TrainedEmbedding) Name() string {
	return "trained"
}

// Dimension returns the tokenizer state length
func (e *TrainedEmbedding) Dimension() int {
	return e.tokenizer.Dimension()
}

// Embed sums the states of the tokens in text and normalizes the result
func (e *TrainedEmbedding) Embed(text string) []complex128 {
	out := e.tokenizer.sumStates(Tokenize(text))
	normalize(out)
	return out
}

// sumStates adds up the states of toks in a single read section so a
// concurrent Load cannot change the dimension between tokens
func (t *Tokenizer) sumStates(toks []string) []complex128 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]complex128, t.dimension)
	for _, tok := range toks {
		if id, ok := t.tokenToID[tok]; ok {
			cmplxs.Add(out, t.tokens[id].State)
			continue
		}
		cmplxs.Add(out, buildState(tok, 1, t.dimension))
	}
	return out
}

// HashEmbedding is an ad hoc embedding derived from the text hash and its runes.
// It does not need a trained vocabulary.
type HashEmbedding struct {
	dimension int
}

// NewHashEmbedding creates a hash embedding of the given dimension
func NewHashEmbedding(dimension int) *HashEmbedding {
	if dimension <= 0 {
		dimension = 1
	}
	return &HashEmbedding{dimension: dimension}
}

// Name identifies the strategy
func (e *HashEmbedding) Name() string {
	return "hash"
}

// Dimension returns the vector length
func (e *HashEmbedding) Dimension() int {
	return e.dimension
}

// Embed places one phase-rotated component per rune at hash(text)+rune offsets
func (e *HashEmbedding) Embed(text string) []complex128 {
	lower := strings.ToLower(text)
	out := make([]complex128, e.dimension)
	dim := uint64(e.dimension)
	h := tokenHash(lower)

	for i, r := range []rune(lower) {
		idx := (h + uint64(i)*31 + uint64(r)) % dim
		phase := 2 * math.Pi * float64(r%256) / 256
		out[idx] += cmplx.Exp(complex(0, phase))
	}

	normalize(out)
	return out
}
