package process

import (
	"errors"
	"io"
	"os"
	"sync"
	"time"
)

const (
	pollInterval = 50 * time.Millisecond
	waitDelay    = 2 * time.Second
)

// Handle tracks a launched child. Done is closed once the child has been
// reaped; Err then holds the result of Wait.
type Handle struct {
	pid  int
	done chan struct{}

	mu  sync.Mutex
	err error
}

func (h *Handle) PID() int { return h.pid }

func (h *Handle) Done() <-chan struct{} { return h.done }

func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Exited reports whether the child has already been reaped.
func (h *Handle) Exited() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Controller launches, probes and signals OS processes.
type Controller struct{}

func NewController() *Controller { return &Controller{} }

// Launch starts the process described by s and returns once the OS has
// accepted it. Output goes to plain append files for detached children,
// to rotating writers otherwise, or to the supervisor's stdio when
// InheritStdio is set and no destination is configured.
func (c *Controller) Launch(s Spec) (*Handle, error) {
	cmd := s.BuildCommand()
	if s.WorkDir != "" {
		cmd.Dir = s.WorkDir
	}
	if s.Env != nil {
		cmd.Env = s.Env
	}
	configureSysProcAttr(cmd, s.Detached)
	// grandchildren holding an output pipe must not block the reaper
	cmd.WaitDelay = waitDelay

	var closeAfterStart, closeAfterWait []io.Closer
	stdout, stderr := s.Log.Paths(s.Name)
	switch {
	case stdout == "" && stderr == "":
		if s.InheritStdio {
			cmd.Stdout = os.Stdout
			cmd.Stderr = os.Stderr
		}
	case s.Detached:
		outF, errF, err := s.Log.OpenFiles(s.Name)
		if err != nil {
			return nil, &SpawnError{Command: s.Command, Err: err}
		}
		if outF != nil {
			cmd.Stdout = outF
			closeAfterStart = append(closeAfterStart, outF)
		}
		if errF != nil {
			cmd.Stderr = errF
			closeAfterStart = append(closeAfterStart, errF)
		}
	default:
		outW, errW, _ := s.Log.Writers(s.Name)
		if outW != nil {
			cmd.Stdout = outW
			closeAfterWait = append(closeAfterWait, outW)
		}
		if errW != nil {
			cmd.Stderr = errW
			closeAfterWait = append(closeAfterWait, errW)
		}
	}

	err := cmd.Start()
	closeAll(closeAfterStart)
	if err != nil {
		closeAll(closeAfterWait)
		return nil, &SpawnError{Command: s.Command, Err: err}
	}

	h := &Handle{pid: cmd.Process.Pid, done: make(chan struct{})}
	go func() {
		werr := cmd.Wait()
		closeAll(closeAfterWait)
		h.mu.Lock()
		h.err = werr
		h.mu.Unlock()
		close(h.done)
	}()
	return h, nil
}

func closeAll(cs []io.Closer) {
	for _, c := range cs {
		_ = c.Close()
	}
}

// ConfirmAlive waits for d and fails if the child exits first.
func ConfirmAlive(h *Handle, d time.Duration) error {
	if d <= 0 {
		if h.Exited() {
			return &EarlyExitError{PID: h.pid, Window: d, Err: h.Err()}
		}
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-h.done:
		return &EarlyExitError{PID: h.pid, Window: d, Err: h.Err()}
	case <-t.C:
		return nil
	}
}

// IsAlive reports whether pid refers to a live process. A process owned by
// another user still counts as alive.
func (c *Controller) IsAlive(pid int) bool { return pidAlive(pid) }

// StartTime returns the OS start time of pid, or the zero time.
func (c *Controller) StartTime(pid int) time.Time { return startTime(pid) }

// StopGraceful asks pid (and its group, when it leads one) to terminate and
// waits up to timeout for it to go away.
func (c *Controller) StopGraceful(pid int, timeout time.Duration) (bool, error) {
	return stopWith(pid, timeout, sendTerm)
}

// StopForced kills pid unconditionally and waits up to timeout.
func (c *Controller) StopForced(pid int, timeout time.Duration) (bool, error) {
	return stopWith(pid, timeout, sendKill)
}

func stopWith(pid int, timeout time.Duration, send func(int) error) (bool, error) {
	if !pidAlive(pid) {
		return true, nil
	}
	if err := send(pid); err != nil {
		if errors.Is(err, ErrProcessGone) {
			return true, nil
		}
		if errors.Is(err, ErrTermNotDelivered) {
			return false, nil
		}
		return false, err
	}
	return waitExit(pid, timeout), nil
}

// waitExit polls until pid is gone or timeout elapses.
func waitExit(pid int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if !pidAlive(pid) {
			return true
		}
		if !time.Now().Before(deadline) {
			return false
		}
		time.Sleep(pollInterval)
	}
}
