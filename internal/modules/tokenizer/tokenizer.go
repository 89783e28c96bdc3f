// Package tokenizer provides the quantum vocabulary: frequency-derived token
// amplitudes, deterministic token states and the pairwise state-overlap matrix.
package tokenizer

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/aristath/qengine/internal/modules/quantum"
	"github.com/aristath/qengine/internal/utils"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
)

const (
	// MaxVocabSize caps the vocabulary; the entanglement matrix is V*V float64 (~512 MB at the cap)
	MaxVocabSize = 8192

	// UnknownToken is rendered by Decode for ids outside the vocabulary
	UnknownToken = "<unk>"
)

// Token is a vocabulary entry. It is immutable after training.
type Token struct {
	Text      string
	Frequency int
	Amplitude complex128 // sqrt(relative frequency); imaginary part is always zero
	State     []complex128
}

// TokenScore pairs a token with a score
type TokenScore struct {
	Token string
	Score float64
}

// Tokenizer builds and serves a bounded quantum vocabulary.
// Train and Load take exclusive access; every other method may be called concurrently.
type Tokenizer struct {
	mu           sync.RWMutex
	vocabSize    int
	dimension    int
	tokens       []Token
	tokenToID    map[string]int
	entanglement *mat.SymDense // nil while the vocabulary is empty
	log          zerolog.Logger
}

// New creates an untrained tokenizer
func New(vocabSize, dimension int, log zerolog.Logger) (*Tokenizer, error) {
	if err := validateSizes(vocabSize, dimension); err != nil {
		return nil, err
	}

	return &Tokenizer{
		vocabSize: vocabSize,
		dimension: dimension,
		tokenToID: make(map[string]int),
		log:       log.With().Str("component", "quantum_tokenizer").Logger(),
	}, nil
}

func validateSizes(vocabSize, dimension int) error {
	if vocabSize <= 0 || vocabSize > MaxVocabSize {
		return quantum.NewConfigurationError("vocab_size", vocabSize,
			fmt.Sprintf("must be in [1, %d]", MaxVocabSize))
	}
	if dimension <= 0 {
		return quantum.NewConfigurationError("dimension", dimension, "must be positive")
	}
	return nil
}

// Train builds the vocabulary from texts, dropping tokens seen fewer than
// minFrequency times and keeping the vocabSize most frequent ones. Ties keep
// first-occurrence order. Any previous vocabulary is replaced.
func (t *Tokenizer) Train(texts []string, minFrequency int) {
	if minFrequency < 1 {
		minFrequency = 1
	}
	timer := utils.NewTimer("train_vocabulary", t.log)

	counts := make(map[string]int)
	var order []string
	for _, text := range texts {
		for _, tok := range Tokenize(text) {
			if _, seen := counts[tok]; !seen {
				order = append(order, tok)
			}
			counts[tok]++
		}
	}

	kept := make([]string, 0, len(order))
	for _, tok := range order {
		if counts[tok] >= minFrequency {
			kept = append(kept, tok)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool {
		return counts[kept[i]] > counts[kept[j]]
	})
	if len(kept) > t.vocabSize {
		kept = kept[:t.vocabSize]
	}

	total := 0
	for _, tok := range kept {
		total += counts[tok]
	}

	tokens := make([]Token, len(kept))
	tokenToID := make(map[string]int, len(kept))
	for id, tok := range kept {
		amp := complex(math.Sqrt(float64(counts[tok]))/math.Sqrt(float64(total)), 0)
		tokens[id] = Token{
			Text:      tok,
			Frequency: counts[tok],
			Amplitude: amp,
			State:     buildState(tok, amp, t.dimension),
		}
		tokenToID[tok] = id
	}

	matrix := buildEntanglementMatrix(tokens, t.log)

	t.mu.Lock()
	t.tokens = tokens
	t.tokenToID = tokenToID
	t.entanglement = matrix
	t.mu.Unlock()

	timer.Stop(map[string]interface{}{"vocabulary": len(tokens)})
	t.log.Info().
		Int("texts", len(texts)).
		Int("distinct_tokens", len(order)).
		Int("vocabulary", len(tokens)).
		Int("min_frequency", minFrequency).
		Msg("Vocabulary trained")
}

// Encode maps text to token ids. Unknown tokens resolve to the vocabulary entry
// with the largest state overlap; with an empty vocabulary a hash-derived id is used.
func (t *Tokenizer) Encode(text string) []int {
	toks := Tokenize(text)

	t.mu.RLock()
	defer t.mu.RUnlock()

	ids := make([]int, 0, len(toks))
	for _, tok := range toks {
		if id, ok := t.tokenToID[tok]; ok {
			ids = append(ids, id)
			continue
		}
		if len(t.tokens) == 0 {
			t.log.Debug().Err(quantum.ErrEmptyVocabulary).Str("token", tok).Msg("Using hash fallback id")
			ids = append(ids, int(tokenHash(tok)%uint64(t.vocabSize)))
			continue
		}
		ids = append(ids, t.nearest(buildState(tok, 1, t.dimension)))
	}
	return ids
}

// nearest linearly scans the vocabulary for the largest |overlap|; the lowest id wins ties.
// Caller holds the read lock.
func (t *Tokenizer) nearest(state []complex128) int {
	best, bestScore := 0, -1.0
	for id := range t.tokens {
		if score := Overlap(t.tokens[id].State, state); score > bestScore {
			best, bestScore = id, score
		}
	}
	return best
}

// Decode joins token texts with single spaces
func (t *Tokenizer) Decode(ids []int) string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	words := make([]string, len(ids))
	for i, id := range ids {
		if id >= 0 && id < len(t.tokens) {
			words[i] = t.tokens[id].Text
		} else {
			words[i] = UnknownToken
		}
	}
	return strings.Join(words, " ")
}

// EntangledTokens returns up to topK other tokens with the highest overlap with token.
// topK <= 0 returns every other token. Unknown tokens and an empty vocabulary yield no results.
func (t *Tokenizer) EntangledTokens(token string, topK int) []TokenScore {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if len(t.tokens) == 0 {
		t.log.Debug().Err(quantum.ErrEmptyVocabulary).Str("token", token).Msg("No entangled tokens")
		return []TokenScore{}
	}

	id, ok := t.tokenToID[strings.ToLower(token)]
	if !ok {
		return []TokenScore{}
	}

	scores := make([]TokenScore, 0, len(t.tokens)-1)
	for j := range t.tokens {
		if j == id {
			continue
		}
		scores = append(scores, TokenScore{Token: t.tokens[j].Text, Score: t.entanglement.At(id, j)})
	}
	sort.SliceStable(scores, func(a, b int) bool {
		return scores[a].Score > scores[b].Score
	})

	if topK > 0 && topK < len(scores) {
		scores = scores[:topK]
	}
	return scores
}

// Size returns the number of trained tokens
func (t *Tokenizer) Size() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.tokens)
}

// VocabSize returns the configured vocabulary capacity
func (t *Tokenizer) VocabSize() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.vocabSize
}

// Dimension returns the token-state length
func (t *Tokenizer) Dimension() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.dimension
}

// Token returns a copy of the entry for id
func (t *Tokenizer) Token(id int) (Token, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if id < 0 || id >= len(t.tokens) {
		return Token{}, false
	}
	tok := t.tokens[id]
	tok.State = append([]complex128(nil), tok.State...)
	return tok, true
}

// ID returns the id of a token text
func (t *Tokenizer) ID(text string) (int, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	id, ok := t.tokenToID[text]
	return id, ok
}

// Entanglement returns matrix entry (i, j)
func (t *Tokenizer) Entanglement(i, j int) (float64, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n := len(t.tokens)
	if i < 0 || j < 0 || i >= n || j >= n {
		return 0, false
	}
	return t.entanglement.At(i, j), true
}
