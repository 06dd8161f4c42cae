package process

import (
	"errors"
	"fmt"
	"time"
)

// ErrProcessGone is returned by signal delivery when the target no longer exists.
var ErrProcessGone = errors.New("process already exited")

// ErrTermNotDelivered means the platform had no way to ask the process to
// close; only a forced stop can end it.
var ErrTermNotDelivered = errors.New("graceful termination not deliverable")

// SpawnError reports that the OS refused to launch the command.
type SpawnError struct {
	Command string
	Err     error
}

func (e *SpawnError) Error() string { return fmt.Sprintf("spawn %q: %v", e.Command, e.Err) }
func (e *SpawnError) Unwrap() error { return e.Err }

// SignalError reports a signal that could not be delivered, usually EPERM.
type SignalError struct {
	PID    int
	Signal string
	Err    error
}

func (e *SignalError) Error() string {
	return fmt.Sprintf("send %s to pid %d: %v", e.Signal, e.PID, e.Err)
}
func (e *SignalError) Unwrap() error { return e.Err }

// EarlyExitError is returned by ConfirmAlive when the child died inside the
// confirmation window.
type EarlyExitError struct {
	PID    int
	Window time.Duration
	Err    error
}

func (e *EarlyExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("process %d exited before start duration %s: %v", e.PID, e.Window, e.Err)
	}
	return fmt.Sprintf("process %d exited before start duration %s", e.PID, e.Window)
}
func (e *EarlyExitError) Unwrap() error { return e.Err }
