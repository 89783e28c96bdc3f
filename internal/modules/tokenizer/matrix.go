package tokenizer

import (
	"runtime"

	"github.com/aristath/qengine/internal/utils"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// buildEntanglementMatrix computes |<state_i|state_j>| for every token pair.
// Rows are filled in parallel; each worker writes a disjoint set of entries.
func buildEntanglementMatrix(tokens []Token, log zerolog.Logger) *mat.SymDense {
	n := len(tokens)
	if n == 0 {
		return nil
	}
	defer utils.OperationTimer("entanglement_matrix", log)()

	m := mat.NewSymDense(n, nil)

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			m.SetSym(i, i, 1)
			for j := i + 1; j < n; j++ {
				m.SetSym(i, j, Overlap(tokens[i].State, tokens[j].State))
			}
			return nil
		})
	}
	// workers only write disjoint entries and never fail
	g.Wait()

	log.Debug().Int("size", n).Msg("Entanglement matrix built")
	return m
}
