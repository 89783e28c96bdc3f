package quantum

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"
)

// Options configures a Computer
type Options struct {
	Register RegisterOptions
	Gates    *GateLibrary // shared gate set, a fresh library when nil
}

// Oracle marks solutions on a register, typically by phase flips
type Oracle func(r *Register) error

// PhaseOracle returns an oracle that negates the amplitudes of the marked basis states
func PhaseOracle(marked ...int) Oracle {
	return func(r *Register) error {
		return r.PhaseFlip(marked...)
	}
}

// Computer orchestrates a register and the gate library.
// It exclusively owns its register and is not safe for concurrent use.
type Computer struct {
	register *Register
	gates    *GateLibrary
	log      zerolog.Logger
}

// NewComputer creates a computer with a fresh numQubits register
func NewComputer(numQubits int, opts Options, log zerolog.Logger) (*Computer, error) {
	reg, err := NewRegister(numQubits, opts.Register, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create register: %w", err)
	}

	gates := opts.Gates
	if gates == nil {
		gates = NewGateLibrary()
	}

	return &Computer{
		register: reg,
		gates:    gates,
		log:      log.With().Str("component", "quantum_computer").Logger(),
	}, nil
}

// Register returns the owned register
func (c *Computer) Register() *Register {
	return c.register
}

// Gates returns the gate library
func (c *Computer) Gates() *GateLibrary {
	return c.gates
}

// NumQubits returns the register width
func (c *Computer) NumQubits() int {
	return c.register.NumQubits()
}

// CreateSuperposition applies H to qubit
func (c *Computer) CreateSuperposition(qubit int) error {
	return c.register.ApplyGate(c.gates.H, qubit)
}

// CreateEntanglement applies H to a followed by CNOT(a -> b)
func (c *Computer) CreateEntanglement(a, b int) error {
	if err := c.register.ApplyGate(c.gates.H, a); err != nil {
		return err
	}
	return c.register.ApplyGate(c.gates.CNOT, a, b)
}

// AmplitudeAmplification doubles the amplitude at targetIndex and renormalizes,
// iterations times. It is a simplified stand-in for Grover diffusion.
func (c *Computer) AmplitudeAmplification(targetIndex, iterations int) error {
	for i := 0; i < iterations; i++ {
		if err := c.register.ScaleAmplitude(targetIndex, 2); err != nil {
			return err
		}
	}
	return nil
}

// GroverSearch puts every qubit in superposition, then runs oracle + diffusion
// iterations times and returns a sampled basis index. iterations <= 0 uses
// floor(pi/4 * sqrt(2^n)).
func (c *Computer) GroverSearch(oracle Oracle, iterations int) (int, error) {
	if oracle == nil {
		return 0, NewConfigurationError("oracle", nil, "oracle is required")
	}
	if iterations <= 0 {
		iterations = OptimalGroverIterations(c.register.Dimension())
	}

	c.register.Reset()
	if err := c.applyToAll(c.gates.H); err != nil {
		return 0, err
	}

	for i := 0; i < iterations; i++ {
		if err := oracle(c.register); err != nil {
			return 0, fmt.Errorf("oracle failed at iteration %d: %w", i, err)
		}
		if err := c.diffuse(); err != nil {
			return 0, err
		}
	}

	result := c.register.MeasureAll()
	c.log.Debug().Int("iterations", iterations).Int("result", result).Msg("Grover search completed")
	return result, nil
}

// diffuse performs H-all, X-all, multi-controlled Z, X-all, H-all
func (c *Computer) diffuse() error {
	if err := c.applyToAll(c.gates.H); err != nil {
		return err
	}
	if err := c.applyToAll(c.gates.X); err != nil {
		return err
	}
	if err := c.register.PhaseFlip(c.register.Dimension() - 1); err != nil {
		return err
	}
	if err := c.applyToAll(c.gates.X); err != nil {
		return err
	}
	return c.applyToAll(c.gates.H)
}

// QuantumFourierTransform applies H to each listed qubit followed by RY(pi/2^d)
// on every later qubit at distance d. This approximates the controlled-phase ladder.
func (c *Computer) QuantumFourierTransform(qubits []int) error {
	for i, q := range qubits {
		if err := c.register.ApplyGate(c.gates.H, q); err != nil {
			return err
		}
		for k := i + 1; k < len(qubits); k++ {
			angle := math.Pi / math.Pow(2, float64(k-i))
			if err := c.register.ApplyGate(c.gates.RY(angle), qubits[k]); err != nil {
				return err
			}
		}
	}
	return nil
}

// Measure measures one qubit and collapses the state
func (c *Computer) Measure(qubit int) (int, error) {
	return c.register.Measure(qubit)
}

// MeasureAll samples a basis index without collapsing
func (c *Computer) MeasureAll() int {
	return c.register.MeasureAll()
}

// Probabilities returns the basis-state probabilities
func (c *Computer) Probabilities() []float64 {
	return c.register.Probabilities()
}

// State returns a copy of the register amplitudes
func (c *Computer) State() []complex128 {
	return c.register.State()
}

// Entanglement returns the bit-agreement mass of qubits a and b
func (c *Computer) Entanglement(a, b int) (float64, error) {
	return c.register.Entanglement(a, b)
}

// OptimalGroverIterations returns floor(pi/4 * sqrt(n)), at least 1
func OptimalGroverIterations(n int) int {
	it := int(math.Floor(math.Pi / 4 * math.Sqrt(float64(n))))
	if it < 1 {
		return 1
	}
	return it
}

func (c *Computer) applyToAll(g Gate) error {
	for q := 0; q < c.register.NumQubits(); q++ {
		if err := c.register.ApplyGate(g, q); err != nil {
			return err
		}
	}
	return nil
}
