// Package dependency polls an optional service the managed app relies on
// until it becomes reachable or a deadline passes.
package dependency

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	DefaultTimeout  = 30 * time.Second
	DefaultInterval = 2 * time.Second
)

// Config is the [dependency] section of the supervisor configuration.
type Config struct {
	Type         string        `mapstructure:"type"`
	Address      string        `mapstructure:"address"`
	Timeout      time.Duration `mapstructure:"timeout"`
	Interval     time.Duration `mapstructure:"interval"`
	Required     bool          `mapstructure:"required"`
	StartCommand string        `mapstructure:"start_command"`
	StopCommand  string        `mapstructure:"stop_command"`
}

// Enabled reports whether a dependency is configured at all.
func (c Config) Enabled() bool { return c.Type != "" && c.Address != "" }

type Waiter struct {
	Interval time.Duration
	Logger   *slog.Logger
}

func NewWaiter(interval time.Duration, l *slog.Logger) *Waiter {
	if l == nil {
		l = slog.Default()
	}
	return &Waiter{Interval: interval, Logger: l}
}

// WaitReady calls probe immediately and then every Interval until it
// succeeds or timeout elapses. Each call is bounded by the remaining time.
func (w *Waiter) WaitReady(ctx context.Context, probe Probe, timeout time.Duration) bool {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	interval := w.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	attempt := 0
	b := backoff.WithContext(backoff.NewConstantBackOff(interval), ctx)
	err := backoff.RetryNotify(func() error {
		attempt++
		return probe(ctx)
	}, b, func(err error, next time.Duration) {
		w.Logger.Debug("dependency not ready", "attempt", attempt, "retry_in", next, "error", err)
	})
	if err != nil {
		w.Logger.Debug("dependency wait gave up", "attempts", attempt, "error", err)
		return false
	}
	return true
}
