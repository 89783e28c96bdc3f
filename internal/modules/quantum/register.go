package quantum

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/cmplxs"
	"gonum.org/v1/gonum/stat/distuv"
)

const (
	// NormTolerance is the allowed deviation of the state norm from 1
	NormTolerance = 1e-9

	// degenerateThreshold is the norm below which a vector cannot be normalized
	degenerateThreshold = 1e-12

	// MaxHistory is the number of measurement records kept by a register
	MaxHistory = 1024

	// NoQubit marks a full-register measurement in the history
	NoQubit = -1
)

// Measurement is a single entry of the register's measurement log
type Measurement struct {
	Qubit   int // NoQubit for a full-register read
	Outcome int
}

// RegisterOptions configures a Register
type RegisterOptions struct {
	MaxQubits   int         // ceiling on num_qubits (DefaultMaxQubits when 0)
	Seed        uint64      // RNG seed for measurements (time-seeded when 0)
	MemoryProbe MemoryProbe // optional available-memory check
}

// Register owns the state vector of n simulated qubits.
// Qubit q is bit q of the basis index. A Register is not safe for concurrent use.
type Register struct {
	numQubits int
	state     []complex128
	src       rand.Source
	history   []Measurement
	log       zerolog.Logger
}

// NewRegister creates a register initialized to |0...0>
func NewRegister(numQubits int, opts RegisterOptions, log zerolog.Logger) (*Register, error) {
	if err := ValidateQubitCount(numQubits, opts.MaxQubits); err != nil {
		return nil, err
	}

	regLog := log.With().Str("component", "quantum_register").Int("qubits", numQubits).Logger()
	if err := checkMemory(numQubits, opts.MemoryProbe, regLog); err != nil {
		return nil, err
	}

	seed := opts.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	r := &Register{
		numQubits: numQubits,
		state:     make([]complex128, 1<<uint(numQubits)),
		src:       rand.NewPCG(seed, seed^0x9e3779b97f4a7c15),
		log:       regLog,
	}
	r.state[0] = 1

	return r, nil
}

// NumQubits returns the number of qubits
func (r *Register) NumQubits() int {
	return r.numQubits
}

// Dimension returns the length of the state vector (2^n)
func (r *Register) Dimension() int {
	return len(r.state)
}

// State returns a copy of the amplitudes
func (r *Register) State() []complex128 {
	out := make([]complex128, len(r.state))
	copy(out, r.state)
	return out
}

// Reset puts the register back into |0...0>
func (r *Register) Reset() {
	for i := range r.state {
		r.state[i] = 0
	}
	r.state[0] = 1
}

// SetState loads raw amplitudes, zero-padding to 2^n, and normalizes them.
// A zero vector resets the register instead of failing.
func (r *Register) SetState(amplitudes []complex128) error {
	if len(amplitudes) > len(r.state) {
		return fmt.Errorf("%w: %d amplitudes for a %d-dimensional register",
			ErrDimensionMismatch, len(amplitudes), len(r.state))
	}

	n := copy(r.state, amplitudes)
	for i := n; i < len(r.state); i++ {
		r.state[i] = 0
	}
	r.normalize()
	return nil
}

// ApplyGate applies a one- or two-qubit gate and renormalizes.
// For two-qubit gates the first index is the high bit of the gate's local basis,
// so CNOT is applied as ApplyGate(CNOT, control, target).
func (r *Register) ApplyGate(g Gate, qubits ...int) error {
	arity := g.Arity()
	if arity == 0 {
		return NewConfigurationError("gate", g.Name, "matrix must be 2x2 or 4x4")
	}
	if len(qubits) != arity {
		return NewConfigurationError("qubit_indices", qubits,
			fmt.Sprintf("gate %s acts on %d qubit(s)", g.Name, arity))
	}
	for _, q := range qubits {
		if err := r.checkQubit(q); err != nil {
			return err
		}
	}

	if arity == 1 {
		r.applySingle(g, qubits[0])
	} else {
		if qubits[0] == qubits[1] {
			return NewConfigurationError("qubit_indices", qubits, "two-qubit gate needs distinct qubits")
		}
		r.applyPair(g, qubits[0], qubits[1])
	}

	r.normalize()
	return nil
}

func (r *Register) applySingle(g Gate, q int) {
	m00, m01 := g.Matrix.At(0, 0), g.Matrix.At(0, 1)
	m10, m11 := g.Matrix.At(1, 0), g.Matrix.At(1, 1)

	bit := 1 << uint(q)
	for i := range r.state {
		if i&bit != 0 {
			continue
		}
		j := i | bit
		a0, a1 := r.state[i], r.state[j]
		r.state[i] = m00*a0 + m01*a1
		r.state[j] = m10*a0 + m11*a1
	}
}

func (r *Register) applyPair(g Gate, high, low int) {
	var m [4][4]complex128
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			m[row][col] = g.Matrix.At(row, col)
		}
	}

	hb := 1 << uint(high)
	lb := 1 << uint(low)
	for i := range r.state {
		if i&hb != 0 || i&lb != 0 {
			continue
		}
		idx := [4]int{i, i | lb, i | hb, i | hb | lb}
		var in [4]complex128
		for k, x := range idx {
			in[k] = r.state[x]
		}
		for row, x := range idx {
			r.state[x] = m[row][0]*in[0] + m[row][1]*in[1] + m[row][2]*in[2] + m[row][3]*in[3]
		}
	}
}

// PhaseFlip negates the amplitudes at the given basis indices
func (r *Register) PhaseFlip(indices ...int) error {
	for _, idx := range indices {
		if err := r.checkIndex(idx); err != nil {
			return err
		}
	}
	for _, idx := range indices {
		r.state[idx] = -r.state[idx]
	}
	return nil
}

// ScaleAmplitude multiplies one amplitude by factor and renormalizes
func (r *Register) ScaleAmplitude(index int, factor complex128) error {
	if err := r.checkIndex(index); err != nil {
		return err
	}
	r.state[index] *= factor
	r.normalize()
	return nil
}

// Probabilities returns |amplitude|^2 for every basis state
func (r *Register) Probabilities() []float64 {
	probs := make([]float64, len(r.state))
	for i, a := range r.state {
		probs[i] = real(a)*real(a) + imag(a)*imag(a)
	}
	return probs
}

// Measure samples a single qubit, collapses the state onto the outcome and
// records it in the history.
func (r *Register) Measure(qubit int) (int, error) {
	if err := r.checkQubit(qubit); err != nil {
		return 0, err
	}

	bit := 1 << uint(qubit)
	var p0, p1 float64
	for i, a := range r.state {
		p := real(a)*real(a) + imag(a)*imag(a)
		if i&bit == 0 {
			p0 += p
		} else {
			p1 += p
		}
	}

	outcome := r.sample([]float64{p0, p1})

	for i := range r.state {
		if (i&bit != 0) != (outcome == 1) {
			r.state[i] = 0
		}
	}
	r.normalize()
	r.record(qubit, outcome)

	return outcome, nil
}

// MeasureAll samples a full basis index. The state is left untouched.
func (r *Register) MeasureAll() int {
	outcome := r.sample(r.Probabilities())
	r.record(NoQubit, outcome)
	return outcome
}

// Entanglement returns the probability mass of basis states in which qubits a and b agree.
// This is a correlation proxy, not an entanglement entropy.
func (r *Register) Entanglement(a, b int) (float64, error) {
	if err := r.checkQubit(a); err != nil {
		return 0, err
	}
	if err := r.checkQubit(b); err != nil {
		return 0, err
	}

	ba := 1 << uint(a)
	bb := 1 << uint(b)
	agree := 0.0
	for i, amp := range r.state {
		if (i&ba != 0) == (i&bb != 0) {
			agree += real(amp)*real(amp) + imag(amp)*imag(amp)
		}
	}
	return agree, nil
}

// History returns a copy of the most recent measurements, oldest first
func (r *Register) History() []Measurement {
	out := make([]Measurement, len(r.history))
	copy(out, r.history)
	return out
}

// Norm returns the L2 norm of the state
func (r *Register) Norm() float64 {
	return cmplxs.Norm(r.state, 2)
}

// normalize rescales the state to unit norm, falling back to |0...0> when the
// vector is degenerate.
func (r *Register) normalize() {
	n := cmplxs.Norm(r.state, 2)
	if n < degenerateThreshold || math.IsNaN(n) || math.IsInf(n, 0) {
		r.log.Debug().Err(ErrDegenerateState).Float64("norm", n).Msg("Resetting register to |0...0>")
		r.Reset()
		return
	}
	cmplxs.Scale(complex(1/n, 0), r.state)
}

func (r *Register) sample(weights []float64) int {
	return int(distuv.NewCategorical(weights, r.src).Rand())
}

func (r *Register) record(qubit, outcome int) {
	if len(r.history) >= MaxHistory {
		r.history = append(r.history[:0], r.history[len(r.history)-MaxHistory+1:]...)
	}
	r.history = append(r.history, Measurement{Qubit: qubit, Outcome: outcome})
}

func (r *Register) checkQubit(q int) error {
	if q < 0 || q >= r.numQubits {
		return &ConfigurationError{
			Field:  "qubit",
			Value:  q,
			Reason: fmt.Sprintf("register has %d qubits", r.numQubits),
			Err:    ErrInvalidQubit,
		}
	}
	return nil
}

func (r *Register) checkIndex(idx int) error {
	if idx < 0 || idx >= len(r.state) {
		return NewConfigurationError("basis_index", idx,
			fmt.Sprintf("register dimension is %d", len(r.state)))
	}
	return nil
}
