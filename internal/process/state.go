package process

import "time"

// State represents the current state of a pipe process.
type State string

// Process states.
const (
	StateIdle     State = "idle"     // Not started
	StateRunning  State = "running"  // Accepting input
	StateStopping State = "stopping" // Input closed, waiting for exit
	StateExited   State = "exited"   // Exited on its own
	StateError    State = "error"    // Failed to start or exited non-zero
)

// Info contains information about a pipe process.
type Info struct {
	ID           string
	State        State
	PID          int
	StartedAt    time.Time
	BytesWritten int64
	BytesRead    int64
	ExitCode     int
	LastError    error
}
