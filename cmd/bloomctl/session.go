package main

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"

	"github.com/loykin/bloomctl/internal/config"
	"github.com/loykin/bloomctl/internal/history"
	"github.com/loykin/bloomctl/internal/history/factory"
	"github.com/loykin/bloomctl/internal/lock"
	"github.com/loykin/bloomctl/internal/logger"
	"github.com/loykin/bloomctl/internal/metrics"
	"github.com/loykin/bloomctl/internal/supervisor"
)

// registry is shared by every session in the process; the lifecycle
// collectors register once.
var registry = prometheus.NewRegistry()

// session bundles what one CLI invocation needs: configuration, logger,
// metrics registry and history recorder.
type session struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	recorder *history.Recorder
}

func openSession(configPath string, fs *pflag.FlagSet, verbose bool) (*session, error) {
	cfg, err := config.Load(configPath, fs)
	if err != nil {
		return nil, err
	}
	lc := cfg.Log.Logger()
	if verbose {
		lc.Slog.Level = logger.LevelDebug
	}
	l := lc.NewSlogger()

	if err := metrics.Register(registry); err != nil {
		l.Warn("metrics registration failed", "error", err)
	}

	var sinks []history.Sink
	if cfg.History.DSN != "" {
		sink, err := factory.NewSinkFromDSN(cfg.History.DSN)
		if err != nil {
			// history is best-effort; the lifecycle continues without it
			l.Warn("history sink unavailable", "error", err)
		} else {
			sinks = append(sinks, sink)
		}
	}
	rec := history.NewRecorder(l, sinks...)
	l.Debug("session opened", "run_id", rec.RunID(), "config", configPath)

	return &session{cfg: cfg, logger: l, registry: registry, recorder: rec}, nil
}

func (s *session) supervisor(opts supervisor.Options) (*supervisor.Supervisor, error) {
	return supervisor.NewDefault(opts, s.cfg.StateFile, s.logger, s.recorder)
}

// Close flushes metrics to the textfile, if configured, and releases the
// history sinks.
func (s *session) Close() {
	if path := s.cfg.Metrics.Textfile; path != "" {
		if err := metrics.WriteTextfile(path, s.registry); err != nil {
			s.logger.Warn("metrics textfile write failed", "path", path, "error", err)
		}
	}
	if err := s.recorder.Close(); err != nil {
		s.logger.Warn("history sink close failed", "error", err)
	}
}

// options maps configuration and start flags onto supervisor options.
func options(cfg *config.Config, f StartFlags) supervisor.Options {
	o := supervisor.Options{
		Name:            cfg.Name,
		Command:         cfg.LaunchCommand(f.DevMode),
		WorkDir:         cfg.WorkDir,
		Host:            cfg.Host,
		Port:            cfg.Port,
		Env:             cfg.Env,
		EnvFiles:        cfg.EnvFiles,
		Background:      f.Background,
		Force:           f.Force,
		SkipDependency:  f.SkipDependency,
		RequireBinaries: cfg.RequireBinaries,
		RequireFiles:    cfg.RequireFiles,
		StartConfirm:    cfg.StartConfirm,
		StartupTimeout:  cfg.StartupTimeout,
		GracePeriod:     cfg.GracePeriod,
		ForceTimeout:    cfg.ForceTimeout,
		Dependency:      cfg.Dependency,
		Log:             cfg.Log.Logger().File,
	}
	if cfg.Lock {
		o.LockPath = lock.PathFor(cfg.StateFile)
	}
	return o
}
