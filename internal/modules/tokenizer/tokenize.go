package tokenizer

import (
	"math"
	"math/cmplx"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/cespare/xxhash/v2"
	"gonum.org/v1/gonum/cmplxs"
)

// tokenPattern matches runs of word characters or a single punctuation mark
var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}_]+|[.,!?;:]`)

// Tokenize lower-cases text and splits it into word and punctuation tokens
func Tokenize(text string) []string {
	return tokenPattern.FindAllString(strings.ToLower(text), -1)
}

// tokenHash is the stable hash every token state is derived from
func tokenHash(token string) uint64 {
	return xxhash.Sum64String(token)
}

// buildState spreads amplitude over min(dimension, 10*len(token)) consecutive
// components starting at hash(token) mod dimension, with phase 2*pi*i/dimension
// on the i-th component, and normalizes the result.
func buildState(token string, amplitude complex128, dimension int) []complex128 {
	state := make([]complex128, dimension)

	span := 10 * utf8.RuneCountInString(token)
	if span > dimension {
		span = dimension
	}

	base := int(tokenHash(token) % uint64(dimension))
	for i := 0; i < span; i++ {
		phase := 2 * math.Pi * float64(i) / float64(dimension)
		state[(base+i)%dimension] = amplitude * cmplx.Exp(complex(0, phase))
	}

	normalize(state)
	return state
}

// normalize rescales v to unit norm; a zero vector becomes the first basis vector
func normalize(v []complex128) {
	if len(v) == 0 {
		return
	}
	n := cmplxs.Norm(v, 2)
	if n < 1e-12 || math.IsNaN(n) {
		for i := range v {
			v[i] = 0
		}
		v[0] = 1
		return
	}
	cmplxs.Scale(complex(1/n, 0), v)
}

// Overlap returns |<a|b>|
func Overlap(a, b []complex128) float64 {
	return cmplx.Abs(cmplxs.Dot(a, b))
}
