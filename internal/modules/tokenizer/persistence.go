package tokenizer

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/aristath/qengine/internal/modules/quantum"
	"github.com/vmihailenco/msgpack/v5"
	"gonum.org/v1/gonum/mat"
)

const (
	vocabularySuffix = ".json"
	matrixSuffix     = ".entanglement.msgpack"
)

// tokenRecord is the persisted form of a Token
type tokenRecord struct {
	Frequency        int       `json:"frequency"`
	AmplitudeReal    float64   `json:"amplitude_real"`
	AmplitudeImag    float64   `json:"amplitude_imag"`
	QuantumStateReal []float64 `json:"quantum_state_real"`
	QuantumStateImag []float64 `json:"quantum_state_imag"`
}

// vocabularyRecord is the structured vocabulary artifact
type vocabularyRecord struct {
	VocabSize int                    `json:"vocab_size"`
	Dimension int                    `json:"dimension"`
	Vocab     map[string]tokenRecord `json:"vocab"`
	TokenToID map[string]int         `json:"token_to_id"`
	IDToToken map[int]string         `json:"id_to_token"`
}

// matrixRecord is the binary entanglement artifact (row-major Size x Size)
type matrixRecord struct {
	Size int       `msgpack:"size"`
	Data []float64 `msgpack:"data"`
}

// VocabularyPath returns the structured artifact path for a base name
func VocabularyPath(base string) string {
	return base + vocabularySuffix
}

// MatrixPath returns the binary entanglement artifact path for a base name
func MatrixPath(base string) string {
	return base + matrixSuffix
}

// Save writes the vocabulary record and the entanglement matrix next to each other
func (t *Tokenizer) Save(base string) error {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if dir := filepath.Dir(base); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create artifact directory: %w", err)
		}
	}

	record := vocabularyRecord{
		VocabSize: t.vocabSize,
		Dimension: t.dimension,
		Vocab:     make(map[string]tokenRecord, len(t.tokens)),
		TokenToID: make(map[string]int, len(t.tokens)),
		IDToToken: make(map[int]string, len(t.tokens)),
	}
	for id, tok := range t.tokens {
		re := make([]float64, len(tok.State))
		im := make([]float64, len(tok.State))
		for i, c := range tok.State {
			re[i], im[i] = real(c), imag(c)
		}
		record.Vocab[tok.Text] = tokenRecord{
			Frequency:        tok.Frequency,
			AmplitudeReal:    real(tok.Amplitude),
			AmplitudeImag:    imag(tok.Amplitude),
			QuantumStateReal: re,
			QuantumStateImag: im,
		}
		record.TokenToID[tok.Text] = id
		record.IDToToken[id] = tok.Text
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal vocabulary: %w", err)
	}
	if err := os.WriteFile(VocabularyPath(base), data, 0644); err != nil {
		return fmt.Errorf("failed to write vocabulary: %w", err)
	}

	n := len(t.tokens)
	matrix := matrixRecord{Size: n, Data: make([]float64, n*n)}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			matrix.Data[i*n+j] = t.entanglement.At(i, j)
		}
	}
	packed, err := msgpack.Marshal(&matrix)
	if err != nil {
		return fmt.Errorf("failed to encode entanglement matrix: %w", err)
	}
	if err := os.WriteFile(MatrixPath(base), packed, 0644); err != nil {
		return fmt.Errorf("failed to write entanglement matrix: %w", err)
	}

	t.log.Info().Str("base", base).Int("vocabulary", n).Msg("Tokenizer saved")
	return nil
}

// Load replaces the tokenizer contents with a saved artifact. A missing or
// mismatched entanglement artifact is rebuilt from the token states.
func (t *Tokenizer) Load(base string) error {
	data, err := os.ReadFile(VocabularyPath(base))
	if err != nil {
		return fmt.Errorf("failed to read vocabulary: %w", err)
	}

	var record vocabularyRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return fmt.Errorf("failed to parse vocabulary: %w", err)
	}
	if err := validateSizes(record.VocabSize, record.Dimension); err != nil {
		return fmt.Errorf("invalid vocabulary artifact: %w", err)
	}

	tokens, tokenToID, err := tokensFromRecord(record)
	if err != nil {
		return fmt.Errorf("invalid vocabulary artifact: %w", err)
	}

	matrix, err := loadMatrix(MatrixPath(base), len(tokens))
	if err != nil {
		t.log.Warn().
			Err(err).
			Str("base", base).
			Int("vocabulary", len(tokens)).
			Msg("Rebuilding entanglement matrix (O(V^2))")
		matrix = buildEntanglementMatrix(tokens, t.log)
	}

	t.mu.Lock()
	t.vocabSize = record.VocabSize
	t.dimension = record.Dimension
	t.tokens = tokens
	t.tokenToID = tokenToID
	t.entanglement = matrix
	t.mu.Unlock()

	t.log.Info().Str("base", base).Int("vocabulary", len(tokens)).Msg("Tokenizer loaded")
	return nil
}

func tokensFromRecord(record vocabularyRecord) ([]Token, map[string]int, error) {
	n := len(record.IDToToken)
	if len(record.TokenToID) != n || len(record.Vocab) != n {
		return nil, nil, fmt.Errorf("inconsistent sizes: %d ids, %d tokens, %d entries",
			n, len(record.TokenToID), len(record.Vocab))
	}

	tokens := make([]Token, n)
	tokenToID := make(map[string]int, n)
	for id := 0; id < n; id++ {
		text, ok := record.IDToToken[id]
		if !ok {
			return nil, nil, fmt.Errorf("missing id %d", id)
		}
		if record.TokenToID[text] != id {
			return nil, nil, fmt.Errorf("token %q maps to %d, expected %d", text, record.TokenToID[text], id)
		}
		entry, ok := record.Vocab[text]
		if !ok {
			return nil, nil, fmt.Errorf("missing entry for token %q", text)
		}
		if len(entry.QuantumStateReal) != record.Dimension || len(entry.QuantumStateImag) != record.Dimension {
			return nil, nil, fmt.Errorf("token %q state has wrong dimension", text)
		}

		state := make([]complex128, record.Dimension)
		for i := range state {
			state[i] = complex(entry.QuantumStateReal[i], entry.QuantumStateImag[i])
		}
		tokens[id] = Token{
			Text:      text,
			Frequency: entry.Frequency,
			Amplitude: complex(entry.AmplitudeReal, entry.AmplitudeImag),
			State:     state,
		}
		tokenToID[text] = id
	}
	return tokens, tokenToID, nil
}

func loadMatrix(path string, n int) (*mat.SymDense, error) {
	packed, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s not found", quantum.ErrStaleCache, path)
		}
		return nil, fmt.Errorf("%w: %v", quantum.ErrStaleCache, err)
	}

	var record matrixRecord
	if err := msgpack.Unmarshal(packed, &record); err != nil {
		return nil, fmt.Errorf("%w: %v", quantum.ErrStaleCache, err)
	}
	if record.Size != n || len(record.Data) != n*n {
		return nil, fmt.Errorf("%w: matrix size %d does not match vocabulary size %d",
			quantum.ErrStaleCache, record.Size, n)
	}
	if n == 0 {
		return nil, nil
	}
	return mat.NewSymDense(n, record.Data), nil
}
