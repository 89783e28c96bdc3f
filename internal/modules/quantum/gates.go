package quantum

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"
)

// Gate is a unitary matrix acting on one (2x2) or two (4x4) qubits.
// Gates are shared between registers and must never be mutated.
type Gate struct {
	Name   string
	Matrix *mat.CDense
}

// Arity returns how many qubits the gate acts on (0 if the matrix has an unsupported shape)
func (g Gate) Arity() int {
	if g.Matrix == nil {
		return 0
	}
	r, c := g.Matrix.Dims()
	switch {
	case r == 2 && c == 2:
		return 1
	case r == 4 && c == 4:
		return 2
	}
	return 0
}

// GateLibrary holds the fixed gates used by a Computer
type GateLibrary struct {
	X    Gate
	Y    Gate
	Z    Gate
	H    Gate
	S    Gate
	T    Gate
	CNOT Gate
}

// NewGateLibrary builds the standard gate set
func NewGateLibrary() *GateLibrary {
	invSqrt2 := complex(1/math.Sqrt2, 0)

	return &GateLibrary{
		X: newGate("X", 2, []complex128{
			0, 1,
			1, 0,
		}),
		Y: newGate("Y", 2, []complex128{
			0, -1i,
			1i, 0,
		}),
		Z: newGate("Z", 2, []complex128{
			1, 0,
			0, -1,
		}),
		H: newGate("H", 2, []complex128{
			invSqrt2, invSqrt2,
			invSqrt2, -invSqrt2,
		}),
		S: newGate("S", 2, []complex128{
			1, 0,
			0, 1i,
		}),
		T: newGate("T", 2, []complex128{
			1, 0,
			0, cmplx.Exp(complex(0, math.Pi/4)),
		}),
		CNOT: newGate("CNOT", 4, []complex128{
			1, 0, 0, 0,
			0, 1, 0, 0,
			0, 0, 0, 1,
			0, 0, 1, 0,
		}),
	}
}

// RY returns the parametrized Y rotation by theta
func (l *GateLibrary) RY(theta float64) Gate {
	c := complex(math.Cos(theta/2), 0)
	s := complex(math.Sin(theta/2), 0)
	return newGate("RY", 2, []complex128{
		c, -s,
		s, c,
	})
}

func newGate(name string, size int, data []complex128) Gate {
	return Gate{Name: name, Matrix: mat.NewCDense(size, size, data)}
}
