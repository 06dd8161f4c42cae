// Package supervisor runs the lifecycle of one managed process bound to a
// TCP port: prerequisite checks, conflict resolution, dependency wait,
// spawn, and graceful-then-forced stop.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/loykin/bloomctl/internal/dependency"
	"github.com/loykin/bloomctl/internal/env"
	"github.com/loykin/bloomctl/internal/history"
	"github.com/loykin/bloomctl/internal/lock"
	"github.com/loykin/bloomctl/internal/logger"
	"github.com/loykin/bloomctl/internal/metrics"
	"github.com/loykin/bloomctl/internal/process"
	"github.com/loykin/bloomctl/internal/state"
)

const (
	// HostVar and PortVar hand the bind address to the managed process.
	HostVar = "BLOOMCTL_HOST"
	PortVar = "BLOOMCTL_PORT"

	// reuseTolerance absorbs the second-granularity timestamp in the record.
	reuseTolerance = time.Second
	listenPoll     = 200 * time.Millisecond
	portSettle     = time.Second
)

type StateStore interface {
	Write(r state.Record) error
	Read() (state.Record, bool)
	Clear() error
}

type PortProbe interface {
	IsOccupied(ctx context.Context, host string, port int) bool
	OccupantOf(ctx context.Context, port int) (int, bool)
}

type ProcessController interface {
	Launch(s process.Spec) (*process.Handle, error)
	IsAlive(pid int) bool
	StartTime(pid int) time.Time
	StopGraceful(pid int, timeout time.Duration) (bool, error)
	StopForced(pid int, timeout time.Duration) (bool, error)
	HasMarker(pid int, value string) (bool, error)
}

type DependencyWaiter interface {
	WaitReady(ctx context.Context, probe dependency.Probe, timeout time.Duration) bool
}

// Options parameterizes one supervised instance.
type Options struct {
	Name     string
	Command  string
	WorkDir  string
	Host     string
	Port     int
	Env      []string
	EnvFiles []string

	Background     bool
	Force          bool
	SkipDependency bool

	RequireBinaries []string
	RequireFiles    []string

	StartConfirm   time.Duration
	StartupTimeout time.Duration
	GracePeriod    time.Duration
	ForceTimeout   time.Duration

	Dependency dependency.Config
	Log        logger.FileConfig
	// LockPath enables the advisory lock when set.
	LockPath string
}

func (o *Options) applyDefaults() {
	if o.Host == "" {
		o.Host = "127.0.0.1"
	}
	if o.GracePeriod <= 0 {
		o.GracePeriod = 5 * time.Second
	}
	if o.ForceTimeout <= 0 {
		o.ForceTimeout = 3 * time.Second
	}
	if o.StartupTimeout < 0 {
		o.StartupTimeout = 0
	}
	if o.Dependency.Timeout <= 0 {
		o.Dependency.Timeout = dependency.DefaultTimeout
	}
	if o.Dependency.Interval <= 0 {
		o.Dependency.Interval = dependency.DefaultInterval
	}
}

// StopOptions controls a single stop.
type StopOptions struct {
	Force          bool
	StopDependency bool
}

// Deps carries the collaborators. Nil fields are not defaulted; use
// NewDefault for the production wiring.
type Deps struct {
	Store   StateStore
	Ports   PortProbe
	Procs   ProcessController
	Waiter  DependencyWaiter
	Logger  *slog.Logger
	History *history.Recorder
}

// Result describes how a Start or Stop concluded.
type Result struct {
	State              State  `json:"state"`
	PID                int    `json:"pid,omitempty"`
	Port               int    `json:"port"`
	Kind               string `json:"kind,omitempty"`
	StaleCleared       bool   `json:"stale_cleared,omitempty"`
	Noop               bool   `json:"noop,omitempty"`
	DependencyDegraded bool   `json:"dependency_degraded,omitempty"`
	Listening          bool   `json:"listening,omitempty"`
	StopMode           string `json:"stop_mode,omitempty"`
	StillOccupied      bool   `json:"still_occupied,omitempty"`
}

type Supervisor struct {
	opts     Options
	marker   string
	store    StateStore
	ports    PortProbe
	procs    ProcessController
	waiter   DependencyWaiter
	probe    dependency.Probe
	logger   *slog.Logger
	history  *history.Recorder
	lookPath func(string) (string, error)

	mu     sync.Mutex
	state  State
	handle *process.Handle
}

func New(opts Options, d Deps) (*Supervisor, error) {
	if strings.TrimSpace(opts.Name) == "" {
		return nil, errors.New("supervisor: name is required")
	}
	if opts.Port < 1 || opts.Port > 65535 {
		return nil, fmt.Errorf("supervisor: port %d out of range", opts.Port)
	}
	if d.Store == nil || d.Ports == nil || d.Procs == nil {
		return nil, errors.New("supervisor: store, port probe and process controller are required")
	}
	opts.applyDefaults()
	l := d.Logger
	if l == nil {
		l = slog.Default()
	}
	s := &Supervisor{
		opts:     opts,
		marker:   process.Marker(opts.Name, opts.Port),
		store:    d.Store,
		ports:    d.Ports,
		procs:    d.Procs,
		waiter:   d.Waiter,
		logger:   l.With("name", opts.Name),
		history:  d.History,
		lookPath: exec.LookPath,
		state:    StateIdle,
	}
	if opts.Dependency.Enabled() {
		p, err := dependency.New(opts.Dependency.Type, opts.Dependency.Address)
		if err != nil {
			return nil, err
		}
		s.probe = p
		if s.waiter == nil {
			s.waiter = dependency.NewWaiter(opts.Dependency.Interval, s.logger)
		}
	}
	metrics.SetCurrentState(opts.Name, string(StateIdle), AllStates)
	return s, nil
}

func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Marker is the identity tag carried in the environment of spawned children.
func (s *Supervisor) Marker() string { return s.marker }

// Handle returns the child launched by Start, if any.
func (s *Supervisor) Handle() *process.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle
}

func (s *Supervisor) transition(ctx context.Context, to State, pid int, detail string) {
	s.mu.Lock()
	from := s.state
	s.state = to
	s.mu.Unlock()

	if !CanTransition(from, to) {
		s.logger.Debug("unexpected state transition", "from", from, "to", to)
	}
	attrs := []any{"from", from, "state", to, "port", s.opts.Port}
	if pid > 0 {
		attrs = append(attrs, "pid", pid)
	}
	if detail != "" {
		attrs = append(attrs, "detail", detail)
	}
	switch to {
	case StateFailed, StateConflict:
		s.logger.Error("state transition", attrs...)
	default:
		s.logger.Info("state transition", attrs...)
	}
	metrics.RecordStateTransition(s.opts.Name, string(from), string(to))
	metrics.SetCurrentState(s.opts.Name, string(to), AllStates)
	s.record(ctx, history.Event{Type: history.EventTransition, From: string(from), To: string(to), PID: pid, Detail: detail})
}

func (s *Supervisor) record(ctx context.Context, e history.Event) {
	e.Name = s.opts.Name
	e.Port = s.opts.Port
	e.Host = s.opts.Host
	s.history.Record(ctx, e)
}

func (s *Supervisor) fail(ctx context.Context, res *Result, pid int, err error) (*Result, error) {
	s.transition(ctx, StateFailed, pid, err.Error())
	res.State = StateFailed
	return res, err
}

func (s *Supervisor) acquireLock() (*flock.Flock, error) {
	if s.opts.LockPath == "" {
		return nil, nil
	}
	return lock.Acquire(s.opts.LockPath)
}

func release(l *flock.Flock) {
	if l != nil {
		_ = l.Unlock()
	}
}

// Start brings the managed process up. It returns once the process is
// confirmed alive (and listening, or the startup window elapsed).
func (s *Supervisor) Start(ctx context.Context) (*Result, error) {
	res := &Result{Port: s.opts.Port}

	if err := s.checkPrerequisites(); err != nil {
		return s.fail(ctx, res, 0, err)
	}
	l, err := s.acquireLock()
	if err != nil {
		return s.fail(ctx, res, 0, err)
	}
	defer release(l)

	s.transition(ctx, StateStarting, 0, "")

	if rec, ok := s.store.Read(); ok {
		if !s.isStale(rec) {
			if rec.IsPending() {
				return s.fail(ctx, res, rec.PID, fmt.Errorf("%w (supervisor pid %d)", ErrStartInProgress, rec.PID))
			}
			res.PID = rec.PID
			return s.fail(ctx, res, rec.PID, fmt.Errorf("%s %w (pid %d, port %d)", s.opts.Name, ErrAlreadyRunning, rec.PID, rec.Port))
		}
		s.clearStale(ctx, rec)
		res.StaleCleared = true
	}

	if s.ports.IsOccupied(ctx, s.opts.Host, s.opts.Port) {
		if err := s.resolveOccupant(ctx); err != nil {
			var pc *PortConflictError
			if errors.As(err, &pc) {
				s.transition(ctx, StateConflict, pc.PID, err.Error())
				res.State = StateConflict
				return res, err
			}
			return s.fail(ctx, res, 0, err)
		}
	}

	if s.probe != nil && !s.opts.SkipDependency {
		if err := s.awaitDependency(ctx); err != nil {
			var du *DependencyUnavailableError
			if errors.As(err, &du) && !s.opts.Dependency.Required {
				s.logger.Warn("dependency unavailable; continuing without it", "kind", du.Kind, "address", du.Address, "timeout", du.Timeout)
				res.DependencyDegraded = true
			} else {
				return s.fail(ctx, res, 0, err)
			}
		}
	}

	h, kind, err := s.spawn(ctx)
	if err != nil {
		return s.fail(ctx, res, 0, err)
	}
	res.PID = h.PID()
	res.Kind = string(kind)

	s.mu.Lock()
	s.handle = h
	s.mu.Unlock()
	s.transition(ctx, StateRunning, h.PID(), string(kind))
	res.State = StateRunning

	res.Listening = s.waitListening(ctx, h)
	return res, nil
}

func (s *Supervisor) checkPrerequisites() error {
	var missing []string
	seen := map[string]bool{}
	bins := s.opts.RequireBinaries
	if exe := (&process.Spec{Command: s.opts.Command}).Executable(); exe != "" {
		bins = append([]string{exe}, bins...)
	}
	for _, b := range bins {
		if b == "" || seen[b] {
			continue
		}
		seen[b] = true
		if strings.ContainsRune(b, filepath.Separator) || strings.ContainsRune(b, '/') {
			if _, err := os.Stat(s.workPath(b)); err != nil {
				missing = append(missing, "binary "+b)
			}
			continue
		}
		if _, err := s.lookPath(b); err != nil {
			missing = append(missing, "binary "+b)
		}
	}
	for _, f := range s.opts.RequireFiles {
		if _, err := os.Stat(s.workPath(f)); err != nil {
			missing = append(missing, "file "+f)
		}
	}
	if len(missing) > 0 {
		return &PrerequisiteError{Missing: missing}
	}
	return nil
}

func (s *Supervisor) workPath(p string) string {
	if filepath.IsAbs(p) || s.opts.WorkDir == "" {
		return p
	}
	return filepath.Join(s.opts.WorkDir, p)
}

// isStale reports whether rec no longer describes a live process. A live
// PID that started after the record was written belongs to someone else.
func (s *Supervisor) isStale(rec state.Record) bool {
	if !s.procs.IsAlive(rec.PID) {
		return true
	}
	if rec.IsPending() {
		return false
	}
	if st := s.procs.StartTime(rec.PID); !st.IsZero() && st.After(rec.StartedAt.Add(reuseTolerance)) {
		return true
	}
	return false
}

func (s *Supervisor) clearStale(ctx context.Context, rec state.Record) {
	s.logger.Warn("clearing stale lifecycle record", "pid", rec.PID, "kind", rec.Kind, "started_at", rec.StartedAt)
	if err := s.store.Clear(); err != nil {
		s.logger.Warn("failed to remove stale record", "error", err)
	}
	metrics.IncStaleCleared(s.opts.Name)
	s.record(ctx, history.Event{Type: history.EventStaleCleared, PID: rec.PID, Kind: string(rec.Kind)})
}

// owns reports whether pid was spawned by an instance with our marker.
func (s *Supervisor) owns(pid int) bool {
	if pid <= 0 || pid == os.Getpid() {
		return false
	}
	ok, err := s.procs.HasMarker(pid, s.marker)
	if err != nil {
		s.logger.Debug("cannot read occupant environment", "pid", pid, "error", err)
		return false
	}
	return ok
}

func (s *Supervisor) resolveOccupant(ctx context.Context) error {
	pid, known := s.ports.OccupantOf(ctx, s.opts.Port)
	if !known || !s.owns(pid) {
		metrics.IncConflict(s.opts.Name)
		s.record(ctx, history.Event{Type: history.EventConflict, PID: pid})
		return &PortConflictError{Port: s.opts.Port, PID: pid, Known: known}
	}
	s.logger.Warn("port held by an earlier bloomctl instance; stopping it", "pid", pid, "force", s.opts.Force)
	if _, err := s.escalate(pid, s.opts.Force); err != nil {
		return err
	}
	if !s.waitPortFree(ctx, s.opts.Host, s.opts.Port, portSettle) {
		return &PortConflictError{Port: s.opts.Port, PID: pid, Known: true}
	}
	return nil
}

func (s *Supervisor) awaitDependency(ctx context.Context) error {
	d := s.opts.Dependency
	log := s.logger.With("kind", d.Type, "address", d.Address)
	began := time.Now()
	deadline := began.Add(d.Timeout)

	// the first attempt spends from the same budget as the retries
	firstCtx, cancel := context.WithDeadline(ctx, deadline)
	err := s.probe(firstCtx)
	cancel()
	ready := err == nil
	if !ready && d.StartCommand != "" {
		log.Info("dependency not reachable; launching start command", "command", d.StartCommand)
		if _, lerr := s.procs.Launch(s.auxSpec("dependency", d.StartCommand, true)); lerr != nil {
			log.Warn("dependency start command failed", "error", lerr)
		}
	}
	if remaining := time.Until(deadline); !ready && remaining > 0 {
		log.Info("waiting for dependency", "timeout", remaining)
		ready = s.waiter.WaitReady(ctx, s.probe, remaining)
	}
	metrics.ObserveDependencyWait(s.opts.Name, d.Type, ready, time.Since(began).Seconds())
	if ready {
		log.Info("dependency ready", "elapsed", time.Since(began).Round(time.Millisecond))
		return nil
	}
	s.record(ctx, history.Event{Type: history.EventDependency, Detail: d.Type + " " + d.Address})
	return &DependencyUnavailableError{Kind: d.Type, Address: d.Address, Timeout: d.Timeout}
}

func (s *Supervisor) auxSpec(suffix, command string, detached bool) process.Spec {
	return process.Spec{
		Name:     s.opts.Name + "-" + suffix,
		Command:  command,
		WorkDir:  s.opts.WorkDir,
		Detached: detached,
		Log:      s.opts.Log,
	}
}

func (s *Supervisor) childEnv() ([]string, error) {
	e := env.New().FromOS()
	for _, f := range s.opts.EnvFiles {
		if _, err := e.WithFile(s.workPath(f)); err != nil {
			return nil, fmt.Errorf("load env file %s: %w", f, err)
		}
	}
	extra := append([]string{}, s.opts.Env...)
	extra = append(extra,
		HostVar+"="+s.opts.Host,
		PortVar+"="+strconv.Itoa(s.opts.Port),
		process.MarkerVar+"="+s.marker,
	)
	return e.Merge(extra), nil
}

func (s *Supervisor) spawn(ctx context.Context) (*process.Handle, state.Kind, error) {
	childEnv, err := s.childEnv()
	if err != nil {
		return nil, "", err
	}
	kind := state.KindProcess
	if s.opts.Background {
		kind = state.KindBackgroundJob
	}
	pending := state.Record{
		PID:       os.Getpid(),
		Kind:      state.KindPending,
		Port:      s.opts.Port,
		Host:      s.opts.Host,
		StartedAt: time.Now(),
		Instance:  s.marker,
	}
	if err := s.store.Write(pending); err != nil {
		return nil, "", fmt.Errorf("write pending record: %w", err)
	}

	spec := process.Spec{
		Name:         s.opts.Name,
		Command:      s.opts.Command,
		WorkDir:      s.opts.WorkDir,
		Env:          childEnv,
		Detached:     s.opts.Background,
		InheritStdio: !s.opts.Background,
		Log:          s.opts.Log,
	}
	h, err := s.procs.Launch(spec)
	if err != nil {
		_ = s.store.Clear()
		return nil, "", err
	}
	s.logger.Debug("launched", "pid", h.PID(), "command", s.opts.Command, "detached", s.opts.Background)

	if err := process.ConfirmAlive(h, s.opts.StartConfirm); err != nil {
		_ = s.store.Clear()
		return nil, "", &SpawnError{Command: s.opts.Command, Err: err}
	}

	rec := state.Record{
		PID:       h.PID(),
		Kind:      kind,
		Port:      s.opts.Port,
		Host:      s.opts.Host,
		StartedAt: time.Now(),
		Instance:  s.marker,
	}
	if err := s.store.Write(rec); err != nil {
		_, _ = s.procs.StopForced(h.PID(), s.opts.ForceTimeout)
		_ = s.store.Clear()
		return nil, "", fmt.Errorf("write lifecycle record: %w", err)
	}
	return h, kind, nil
}

// waitListening polls the port until the child accepts connections, the
// child exits or StartupTimeout elapses. Only a warning is logged on failure.
func (s *Supervisor) waitListening(ctx context.Context, h *process.Handle) bool {
	if s.opts.StartupTimeout <= 0 {
		return false
	}
	deadline := time.NewTimer(s.opts.StartupTimeout)
	defer deadline.Stop()
	tick := time.NewTicker(listenPoll)
	defer tick.Stop()
	for {
		if s.ports.IsOccupied(ctx, s.opts.Host, s.opts.Port) {
			s.logger.Info("listening", "pid", h.PID(), "host", s.opts.Host, "port", s.opts.Port)
			return true
		}
		select {
		case <-h.Done():
			s.logger.Warn("process exited before it started listening", "pid", h.PID(), "error", h.Err())
			return false
		case <-ctx.Done():
			return false
		case <-deadline.C:
			s.logger.Warn("process is not listening yet", "pid", h.PID(), "timeout", s.opts.StartupTimeout)
			return false
		case <-tick.C:
		}
	}
}

func (s *Supervisor) waitPortFree(ctx context.Context, host string, port int, d time.Duration) bool {
	deadline := time.Now().Add(d)
	for {
		if !s.ports.IsOccupied(ctx, host, port) {
			return true
		}
		if time.Now().After(deadline) || ctx.Err() != nil {
			return false
		}
		time.Sleep(listenPoll / 4)
	}
}

// gracefulStop returns ErrGracefulTimeout when pid outlives the grace period.
func (s *Supervisor) gracefulStop(pid int) error {
	done, err := s.procs.StopGraceful(pid, s.opts.GracePeriod)
	if err != nil {
		return err
	}
	if !done {
		return ErrGracefulTimeout
	}
	return nil
}

// escalate stops pid gracefully, then forcibly, and names the mode that
// ended it. Signal delivery failures are returned unchanged.
func (s *Supervisor) escalate(pid int, forceOnly bool) (string, error) {
	if !forceOnly {
		err := s.gracefulStop(pid)
		if err == nil {
			metrics.IncStop(s.opts.Name, "graceful")
			return "graceful", nil
		}
		if !errors.Is(err, ErrGracefulTimeout) {
			return "", err
		}
		s.logger.Warn("graceful stop timed out; forcing", "pid", pid, "grace", s.opts.GracePeriod)
	}
	done, err := s.procs.StopForced(pid, s.opts.ForceTimeout)
	if err != nil {
		return "", err
	}
	if !done {
		return "", fmt.Errorf("%w: pid %d", ErrStillAlive, pid)
	}
	metrics.IncStop(s.opts.Name, "forced")
	return "forced", nil
}

// Stop ends the managed process. Nothing to stop is a successful no-op.
func (s *Supervisor) Stop(ctx context.Context, o StopOptions) (*Result, error) {
	l, err := s.acquireLock()
	if err != nil {
		return s.fail(ctx, &Result{Port: s.opts.Port}, 0, err)
	}
	defer release(l)
	return s.stop(ctx, o)
}

func (s *Supervisor) stop(ctx context.Context, o StopOptions) (*Result, error) {
	res := &Result{Port: s.opts.Port}
	s.transition(ctx, StateStopping, 0, "")

	// the record's address wins: start may have been given --host/--port
	host, port := s.opts.Host, s.opts.Port
	pid := 0
	if rec, ok := s.store.Read(); ok {
		switch {
		case rec.IsPending() && s.procs.IsAlive(rec.PID):
			return s.fail(ctx, res, rec.PID, fmt.Errorf("%w (supervisor pid %d)", ErrStartInProgress, rec.PID))
		case s.isStale(rec):
			s.clearStale(ctx, rec)
			res.StaleCleared = true
		default:
			pid = rec.PID
			res.Kind = string(rec.Kind)
			host, port = recordAddr(rec, host, port)
			res.Port = port
		}
	}
	if pid == 0 {
		pid = s.recoverOccupant(ctx)
	}
	if pid == 0 {
		s.logger.Info("nothing to stop", "port", s.opts.Port)
		res.Noop = true
		s.transition(ctx, StateStopped, 0, "noop")
		res.State = StateStopped
		return s.finishStop(ctx, res, o)
	}
	res.PID = pid

	mode, err := s.escalate(pid, o.Force)
	if err != nil {
		var se *SignalError
		if errors.As(err, &se) {
			// the process may still be running; keep the claim
			return s.fail(ctx, res, pid, err)
		}
		_ = s.store.Clear()
		return s.fail(ctx, res, pid, err)
	}
	res.StopMode = mode
	if err := s.store.Clear(); err != nil {
		s.logger.Warn("failed to remove lifecycle record", "error", err)
	}

	if !s.waitPortFree(ctx, host, port, portSettle) {
		res.StillOccupied = true
		s.logger.Warn("port still occupied after stop; manual intervention may be required", "host", host, "port", port)
	}
	s.transition(ctx, StateStopped, pid, mode)
	res.State = StateStopped
	return s.finishStop(ctx, res, o)
}

// recordAddr returns the address a record claims, falling back to host and
// port for fields an older writer left empty.
func recordAddr(rec state.Record, host string, port int) (string, int) {
	if rec.Host != "" {
		host = rec.Host
	}
	if rec.Port > 0 {
		port = rec.Port
	}
	return host, port
}

// recoverOccupant finds a process of ours holding the port when no record
// exists. Foreign and unidentified occupants are reported, never returned.
func (s *Supervisor) recoverOccupant(ctx context.Context) int {
	if !s.ports.IsOccupied(ctx, s.opts.Host, s.opts.Port) {
		return 0
	}
	pid, known := s.ports.OccupantOf(ctx, s.opts.Port)
	if known && s.owns(pid) {
		s.logger.Info("recovered untracked instance from port owner", "pid", pid)
		return pid
	}
	if known {
		s.logger.Warn("port held by a process not started by bloomctl; leaving it alone", "pid", pid)
	} else {
		s.logger.Warn("port held by an unidentified process; leaving it alone")
	}
	return 0
}

func (s *Supervisor) finishStop(ctx context.Context, res *Result, o StopOptions) (*Result, error) {
	if !o.StopDependency {
		return res, nil
	}
	cmd := s.opts.Dependency.StopCommand
	if cmd == "" {
		s.logger.Info("no dependency stop command configured")
		return res, nil
	}
	s.logger.Info("stopping dependency", "command", cmd)
	h, err := s.procs.Launch(s.auxSpec("dependency-stop", cmd, false))
	if err != nil {
		return res, fmt.Errorf("dependency stop: %w", err)
	}
	timeout := s.opts.Dependency.Timeout
	select {
	case <-h.Done():
		if err := h.Err(); err != nil {
			return res, fmt.Errorf("dependency stop command: %w", err)
		}
		return res, nil
	case <-ctx.Done():
		return res, ctx.Err()
	case <-time.After(timeout):
		_, _ = s.procs.StopForced(h.PID(), s.opts.ForceTimeout)
		return res, fmt.Errorf("dependency stop command did not finish within %s", timeout)
	}
}

// Wait blocks a foreground Start until the child exits or ctx is cancelled,
// in which case the child is stopped.
func (s *Supervisor) Wait(ctx context.Context) (*Result, error) {
	h := s.Handle()
	if h == nil {
		return nil, ErrNotLaunched
	}
	select {
	case <-h.Done():
		return s.childExited(ctx, h)
	case <-ctx.Done():
		s.logger.Info("termination requested; stopping", "pid", h.PID())
		return s.stop(context.WithoutCancel(ctx), StopOptions{})
	}
}

func (s *Supervisor) childExited(ctx context.Context, h *process.Handle) (*Result, error) {
	res := &Result{Port: s.opts.Port, PID: h.PID()}
	rec, ok := s.store.Read()
	if !ok || rec.PID != h.PID() {
		// someone else stopped it and already released the claim
		s.transition(ctx, StateStopped, h.PID(), "stopped externally")
		res.State = StateStopped
		return res, nil
	}
	_ = s.store.Clear()
	if err := h.Err(); err != nil {
		return s.fail(ctx, res, h.PID(), fmt.Errorf("%s exited: %w", s.opts.Name, err))
	}
	s.transition(ctx, StateStopped, h.PID(), "exited")
	res.State = StateStopped
	return res, nil
}
