package quantum

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/mem"
)

const (
	// HardMaxQubits is the absolute register ceiling: 24 qubits is 256 MB per state vector.
	HardMaxQubits = 24

	// DefaultMaxQubits is the ceiling applied when none is configured (16 MB per state vector).
	DefaultMaxQubits = 20

	bytesPerAmplitude = 16 // complex128
)

// MemoryProbe reports the memory currently available to the process, in bytes
type MemoryProbe func() (uint64, error)

// SystemMemoryProbe reads available memory from the operating system
func SystemMemoryProbe() (uint64, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, fmt.Errorf("failed to read virtual memory stats: %w", err)
	}
	return vm.Available, nil
}

// StateBytes returns the size of a state vector for numQubits qubits
func StateBytes(numQubits int) uint64 {
	return uint64(bytesPerAmplitude) << uint(numQubits)
}

// ValidateQubitCount checks numQubits against the configured ceiling
func ValidateQubitCount(numQubits, maxQubits int) error {
	if maxQubits <= 0 {
		maxQubits = DefaultMaxQubits
	}
	if maxQubits > HardMaxQubits {
		return NewConfigurationError("max_qubits", maxQubits,
			fmt.Sprintf("must not exceed %d", HardMaxQubits))
	}
	if numQubits <= 0 {
		return NewConfigurationError("num_qubits", numQubits, "must be positive")
	}
	if numQubits > maxQubits {
		return NewConfigurationError("num_qubits", numQubits,
			fmt.Sprintf("exceeds ceiling of %d qubits (%d bytes per state)", maxQubits, StateBytes(maxQubits)))
	}
	return nil
}

// checkMemory refuses a state vector larger than half of the available memory.
// A failing probe is logged and ignored.
func checkMemory(numQubits int, probe MemoryProbe, log zerolog.Logger) error {
	if probe == nil {
		return nil
	}

	available, err := probe()
	if err != nil {
		log.Warn().Err(err).Msg("Memory probe failed, skipping register memory check")
		return nil
	}

	required := StateBytes(numQubits)
	if required > available/2 {
		return NewConfigurationError("num_qubits", numQubits,
			fmt.Sprintf("state vector needs %d bytes, only %d available", required, available))
	}
	return nil
}
