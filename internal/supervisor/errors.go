package supervisor

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/loykin/bloomctl/internal/process"
)

var (
	// ErrAlreadyRunning is wrapped with the owning PID when a live record exists.
	ErrAlreadyRunning = errors.New("already running")
	// ErrGracefulTimeout never leaves the package; it triggers a forced stop.
	ErrGracefulTimeout = errors.New("graceful stop timed out")
	ErrStartInProgress = errors.New("another start is in progress")
	ErrStillAlive      = errors.New("process still alive after forced stop")
	ErrNotLaunched     = errors.New("no process launched by this supervisor")
)

type (
	SpawnError  = process.SpawnError
	SignalError = process.SignalError
)

// PortConflictError reports a port held by a process this supervisor does
// not own. Known is false when the owner could not be identified.
type PortConflictError struct {
	Port  int
	PID   int
	Known bool
}

func (e *PortConflictError) Error() string {
	if e.Known {
		return fmt.Sprintf("port %d is held by pid %d, which was not started by bloomctl", e.Port, e.PID)
	}
	return fmt.Sprintf("port %d is held by a process that could not be identified", e.Port)
}

type DependencyUnavailableError struct {
	Kind    string
	Address string
	Timeout time.Duration
}

func (e *DependencyUnavailableError) Error() string {
	return fmt.Sprintf("dependency %s at %s not reachable within %s", e.Kind, e.Address, e.Timeout)
}

type PrerequisiteError struct {
	Missing []string
}

func (e *PrerequisiteError) Error() string {
	return "missing prerequisites: " + strings.Join(e.Missing, ", ")
}
