package tokenizer

import (
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/aristath/qengine/internal/modules/quantum"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/cmplxs"
)

func catDogCorpus() []string {
	texts := make([]string, 0, 20)
	for i := 0; i < 10; i++ {
		texts = append(texts, "the cat sat", "the dog sat")
	}
	return texts
}

func newTrained(t *testing.T, vocabSize, dimension int, texts []string, minFrequency int) *Tokenizer {
	t.Helper()
	tok, err := New(vocabSize, dimension, zerolog.Nop())
	require.NoError(t, err)
	tok.Train(texts, minFrequency)
	return tok
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		input    string
		expected []string
	}{
		{"Hello, World!", []string{"hello", ",", "world", "!"}},
		{"In the beginning; God: created?", []string{"in", "the", "beginning", ";", "god", ":", "created", "?"}},
		{"it's", []string{"it", "s"}},
		{"   ", nil},
		{"snake_case 42", []string{"snake_case", "42"}},
		{"Ελληνικά λόγος.", []string{"ελληνικά", "λόγος", "."}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, Tokenize(tt.input))
		})
	}
}

func TestNew_InvalidSizes(t *testing.T) {
	for _, sizes := range [][2]int{{0, 16}, {-1, 16}, {MaxVocabSize + 1, 16}, {10, 0}, {10, -3}} {
		_, err := New(sizes[0], sizes[1], zerolog.Nop())
		require.Error(t, err, "sizes %v", sizes)
		assert.True(t, quantum.IsConfigurationError(err))
	}
}

func TestTrain_CatDogScenario(t *testing.T) {
	tok := newTrained(t, 100, 32, catDogCorpus(), 2)

	require.Equal(t, 4, tok.Size())

	expected := map[string]int{"the": 20, "sat": 20, "cat": 10, "dog": 10}
	for text, freq := range expected {
		id, ok := tok.ID(text)
		require.True(t, ok, "token %q should be kept", text)
		entry, ok := tok.Token(id)
		require.True(t, ok)
		assert.Equal(t, text, entry.Text)
		assert.Equal(t, freq, entry.Frequency)
	}

	// id_to_token and token_to_id form a bijection over 0..V-1
	seen := make(map[string]bool)
	for id := 0; id < tok.Size(); id++ {
		entry, ok := tok.Token(id)
		require.True(t, ok)
		assert.False(t, seen[entry.Text])
		seen[entry.Text] = true
		back, ok := tok.ID(entry.Text)
		require.True(t, ok)
		assert.Equal(t, id, back)
	}

	// frequency ties keep first-occurrence order
	ids := tok.Encode("the sat cat dog")
	assert.Equal(t, []int{0, 1, 2, 3}, ids)
}

func TestTrain_AmplitudesAndStates(t *testing.T) {
	tok := newTrained(t, 100, 32, catDogCorpus(), 1)

	the, _ := tok.Token(0)
	assert.InDelta(t, math.Sqrt(20.0/60.0), real(the.Amplitude), 1e-12)
	assert.Equal(t, 0.0, imag(the.Amplitude))

	ampSquares := 0.0
	for id := 0; id < tok.Size(); id++ {
		entry, _ := tok.Token(id)
		ampSquares += real(entry.Amplitude) * real(entry.Amplitude)
		require.Len(t, entry.State, 32)
		assert.InDelta(t, 1.0, cmplxs.Norm(entry.State, 2), 1e-9)
	}
	assert.InDelta(t, 1.0, ampSquares, 1e-12)
}

func TestTrain_MinFrequencyAndVocabCap(t *testing.T) {
	filtered := newTrained(t, 100, 16, catDogCorpus(), 15)
	assert.Equal(t, 2, filtered.Size())
	_, ok := filtered.ID("cat")
	assert.False(t, ok)

	capped := newTrained(t, 3, 16, catDogCorpus(), 1)
	assert.Equal(t, 3, capped.Size())
	_, ok = capped.ID("dog")
	assert.False(t, ok, "least frequent, latest token is dropped first")
}

func TestTrain_RetrainReplacesVocabulary(t *testing.T) {
	tok := newTrained(t, 100, 16, catDogCorpus(), 1)
	tok.Train([]string{"light light darkness"}, 1)

	assert.Equal(t, 2, tok.Size())
	_, ok := tok.ID("cat")
	assert.False(t, ok)
	id, ok := tok.ID("light")
	require.True(t, ok)
	assert.Equal(t, 0, id)
}

func TestEntanglementMatrix_SymmetricWithUnitDiagonal(t *testing.T) {
	tok := newTrained(t, 100, 24, []string{
		"in the beginning was the word",
		"and the word was with god",
		"and the word was god.",
	}, 1)

	n := tok.Size()
	require.Greater(t, n, 3)
	for i := 0; i < n; i++ {
		d, ok := tok.Entanglement(i, i)
		require.True(t, ok)
		assert.Equal(t, 1.0, d)
		for j := 0; j < n; j++ {
			a, _ := tok.Entanglement(i, j)
			b, _ := tok.Entanglement(j, i)
			assert.Equal(t, a, b)
			assert.GreaterOrEqual(t, a, 0.0)
			assert.LessOrEqual(t, a, 1.0+1e-9)
		}
	}

	_, ok := tok.Entanglement(n, 0)
	assert.False(t, ok)
}

func TestTrain_EmptyCorpus(t *testing.T) {
	tok := newTrained(t, 50, 16, nil, 1)
	assert.Equal(t, 0, tok.Size())

	ids := tok.Encode("x")
	require.Len(t, ids, 1)
	assert.GreaterOrEqual(t, ids[0], 0)
	assert.Less(t, ids[0], 50)
	assert.Equal(t, ids, tok.Encode("x"), "hash fallback is deterministic")

	assert.Empty(t, tok.EntangledTokens("x", 3))
	assert.Equal(t, "<unk>", tok.Decode([]int{0}))
}

func TestEncode_DeterministicAndUnknownTokens(t *testing.T) {
	tok := newTrained(t, 100, 32, catDogCorpus(), 1)

	first := tok.Encode("The cat sat on the mat!")
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, tok.Encode("The cat sat on the mat!"))
	}

	require.Len(t, first, 7)
	for _, id := range first {
		assert.GreaterOrEqual(t, id, 0)
		assert.Less(t, id, tok.Size())
	}

	assert.Empty(t, tok.Encode(""))
}

func TestEncode_UnknownTokenPicksLargestOverlap(t *testing.T) {
	tok := newTrained(t, 100, 32, catDogCorpus(), 1)

	unknown := "kitten"
	state := buildState(unknown, 1, 32)
	best, bestScore := -1, -1.0
	for id := 0; id < tok.Size(); id++ {
		entry, _ := tok.Token(id)
		if s := Overlap(entry.State, state); s > bestScore {
			best, bestScore = id, s
		}
	}

	assert.Equal(t, []int{best}, tok.Encode(unknown))
}

func TestBuildState_FullSpanStatesCoincide(t *testing.T) {
	// Once 10*len(token) covers the dimension every state is a shifted phase ramp.
	assert.InDelta(t, 1.0, Overlap(buildState("love", 1, 32), buildState("faith", 1, 32)), 1e-9)
	assert.Less(t, Overlap(buildState("love", 1, 64), buildState("faith", 1, 64)), 0.99)
}

func TestDecode(t *testing.T) {
	tok := newTrained(t, 100, 32, catDogCorpus(), 1)

	assert.Equal(t, "the cat sat", tok.Decode(tok.Encode("The  cat   sat")))
	assert.Equal(t, "the dog sat", tok.Decode(tok.Encode("the dog sat")))
	assert.Equal(t, "the <unk>", tok.Decode([]int{0, 99}))
	assert.Equal(t, "", tok.Decode(nil))
}

func TestEntangledTokens(t *testing.T) {
	tok := newTrained(t, 100, 32, catDogCorpus(), 1)

	results := tok.EntangledTokens("the", 2)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.NotEqual(t, "the", r.Token)
	}
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)

	all := tok.EntangledTokens("THE", 0)
	assert.Len(t, all, 3, "topK <= 0 returns every other token")

	assert.Len(t, tok.EntangledTokens("the", 10), 3)
	assert.Empty(t, tok.EntangledTokens("unseen", 2))
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	corpus := append(catDogCorpus(), "in the beginning was the word.")
	original := newTrained(t, 100, 48, corpus, 1)

	base := filepath.Join(t.TempDir(), "artifacts", "vocab")
	require.NoError(t, original.Save(base))
	assert.FileExists(t, VocabularyPath(base))
	assert.FileExists(t, MatrixPath(base))

	loaded, err := New(1, 1, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, loaded.Load(base))

	assert.Equal(t, original.Size(), loaded.Size())
	assert.Equal(t, 100, loaded.VocabSize())
	assert.Equal(t, 48, loaded.Dimension())

	for _, text := range corpus {
		assert.Equal(t, original.Encode(text), loaded.Encode(text))
	}
	assert.Equal(t, original.Encode("unseen words here"), loaded.Encode("unseen words here"))

	for i := 0; i < original.Size(); i++ {
		a, _ := original.Token(i)
		b, _ := loaded.Token(i)
		assert.Equal(t, a, b)
		for j := 0; j < original.Size(); j++ {
			x, _ := original.Entanglement(i, j)
			y, _ := loaded.Entanglement(i, j)
			assert.Equal(t, x, y)
		}
	}
}

func TestLoad_RebuildsMissingMatrix(t *testing.T) {
	original := newTrained(t, 100, 32, catDogCorpus(), 1)
	base := filepath.Join(t.TempDir(), "vocab")
	require.NoError(t, original.Save(base))
	require.NoError(t, os.Remove(MatrixPath(base)))

	loaded, err := New(10, 10, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, loaded.Load(base))

	for i := 0; i < original.Size(); i++ {
		for j := 0; j < original.Size(); j++ {
			x, _ := original.Entanglement(i, j)
			y, _ := loaded.Entanglement(i, j)
			assert.InDelta(t, x, y, 1e-12)
		}
	}
}

func TestLoad_RebuildsMismatchedMatrix(t *testing.T) {
	small := newTrained(t, 100, 32, []string{"alpha beta"}, 1)
	big := newTrained(t, 100, 32, catDogCorpus(), 1)

	dir := t.TempDir()
	smallBase := filepath.Join(dir, "small")
	bigBase := filepath.Join(dir, "big")
	require.NoError(t, small.Save(smallBase))
	require.NoError(t, big.Save(bigBase))
	require.NoError(t, os.Rename(MatrixPath(smallBase), MatrixPath(bigBase)))

	loaded, err := New(10, 10, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, loaded.Load(bigBase))

	require.Equal(t, 4, loaded.Size())
	d, ok := loaded.Entanglement(3, 3)
	require.True(t, ok)
	assert.Equal(t, 1.0, d)
}

func TestLoad_Errors(t *testing.T) {
	tok, err := New(10, 10, zerolog.Nop())
	require.NoError(t, err)

	dir := t.TempDir()
	assert.Error(t, tok.Load(filepath.Join(dir, "missing")))

	garbage := filepath.Join(dir, "garbage")
	require.NoError(t, os.WriteFile(VocabularyPath(garbage), []byte("{not json"), 0644))
	assert.Error(t, tok.Load(garbage))

	bad := filepath.Join(dir, "bad")
	require.NoError(t, os.WriteFile(VocabularyPath(bad), []byte(`{"vocab_size":0,"dimension":4}`), 0644))
	assert.Error(t, tok.Load(bad))

	assert.Equal(t, 0, tok.Size(), "failed loads leave the tokenizer untouched")
}

func TestSaveLoad_EmptyVocabulary(t *testing.T) {
	tok := newTrained(t, 10, 8, nil, 1)
	base := filepath.Join(t.TempDir(), "empty")
	require.NoError(t, tok.Save(base))

	loaded, err := New(10, 8, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, loaded.Load(base))
	assert.Equal(t, 0, loaded.Size())
	assert.Len(t, loaded.Encode("x"), 1)
}

func TestTokenizer_ConcurrentReaders(t *testing.T) {
	tok := newTrained(t, 100, 32, catDogCorpus(), 1)
	want := tok.Encode("the cat sat on a dog")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for k := 0; k < 50; k++ {
				assert.Equal(t, want, tok.Encode("the cat sat on a dog"))
				_ = tok.EntangledTokens("cat", 2)
				_ = tok.Decode(want)
			}
		}()
	}
	wg.Wait()
}
