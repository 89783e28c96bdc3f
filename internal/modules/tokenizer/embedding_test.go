package tokenizer

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/cmplxs"
)

func TestEmbeddings_ImplementInterface(t *testing.T) {
	tok := newTrained(t, 100, 32, catDogCorpus(), 1)

	strategies := []Embedding{NewTrainedEmbedding(tok), NewHashEmbedding(32)}
	names := map[string]bool{}
	for _, e := range strategies {
		names[e.Name()] = true
		assert.Equal(t, 32, e.Dimension())

		v := e.Embed("the cat")
		require.Len(t, v, 32)
		assert.InDelta(t, 1.0, cmplxs.Norm(v, 2), 1e-9)
		assert.Equal(t, v, e.Embed("the cat"), "%s must be deterministic", e.Name())
	}
	assert.Len(t, names, 2, "strategies must be distinguishable by name")
}

func TestTrainedEmbedding_KnownTokenUsesTrainedState(t *testing.T) {
	tok := newTrained(t, 100, 32, catDogCorpus(), 1)
	emb := NewTrainedEmbedding(tok)

	id, ok := tok.ID("cat")
	require.True(t, ok)
	entry, _ := tok.Token(id)

	assert.InDelta(t, 1.0, Overlap(entry.State, emb.Embed("Cat")), 1e-9)
}

func TestTrainedEmbedding_EmptyTextIsBasisVector(t *testing.T) {
	tok := newTrained(t, 100, 8, catDogCorpus(), 1)
	v := NewTrainedEmbedding(tok).Embed("")
	assert.Equal(t, complex128(1), v[0])
}

func TestTrainedEmbedding_ConsistentDuringReload(t *testing.T) {
	dir := t.TempDir()
	small := filepath.Join(dir, "small")
	large := filepath.Join(dir, "large")
	require.NoError(t, newTrained(t, 100, 16, catDogCorpus(), 1).Save(small))
	require.NoError(t, newTrained(t, 100, 48, catDogCorpus(), 1).Save(large))

	tok := newTrained(t, 100, 16, catDogCorpus(), 1)
	emb := NewTrainedEmbedding(tok)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 40; i++ {
			base := small
			if i%2 == 0 {
				base = large
			}
			assert.NoError(t, tok.Load(base))
		}
	}()

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for k := 0; k < 200; k++ {
				v := emb.Embed("the cat sat on the mat")
				assert.Contains(t, []int{16, 48}, len(v))
				assert.InDelta(t, 1.0, cmplxs.Norm(v, 2), 1e-9)
			}
		}()
	}
	wg.Wait()
}

func TestHashEmbedding_SelfOverlapIsOne(t *testing.T) {
	emb := NewHashEmbedding(64)

	love := emb.Embed("love")
	assert.InDelta(t, 1.0, Overlap(love, emb.Embed("LOVE")), 1e-9)
	assert.Less(t, Overlap(love, emb.Embed("hate")), 1.0-1e-6)
}

func TestHashEmbedding_InvalidDimension(t *testing.T) {
	emb := NewHashEmbedding(0)
	assert.Equal(t, 1, emb.Dimension())
	assert.Len(t, emb.Embed("anything"), 1)
}
