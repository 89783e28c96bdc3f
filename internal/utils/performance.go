package utils

import (
	"time"

	"github.com/rs/zerolog"
)

// SlowOperationThreshold is the duration above which timers log a warning.
// Entanglement-matrix builds for large vocabularies routinely approach it.
const SlowOperationThreshold = 30 * time.Second

// Timer measures the duration of a named operation
type Timer struct {
	start time.Time
	name  string
	log   zerolog.Logger
}

// NewTimer creates a new timer with the given name
func NewTimer(name string, log zerolog.Logger) *Timer {
	return &Timer{
		start: time.Now(),
		name:  name,
		log:   log,
	}
}

// Stop logs the elapsed duration with optional fields and returns it
func (t *Timer) Stop(fields map[string]interface{}) time.Duration {
	duration := time.Since(t.start)

	event := t.log.Debug()
	if duration > SlowOperationThreshold {
		event = t.log.Warn()
	}
	event = event.
		Str("operation", t.name).
		Dur("duration_ms", duration).
		Fields(fields)

	if duration > SlowOperationThreshold {
		event.Msg("Slow operation detected")
	} else {
		event.Msg("Performance measurement")
	}

	return duration
}

// OperationTimer provides a defer-friendly way to measure operation duration
//
// Usage:
//
//	func Build() {
//	    defer utils.OperationTimer("build", log)()
//	}
func OperationTimer(operation string, log zerolog.Logger) func() {
	t := NewTimer(operation, log)
	return func() {
		t.Stop(nil)
	}
}
