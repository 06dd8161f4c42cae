package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/loykin/bloomctl/internal/metrics"
	"github.com/loykin/bloomctl/internal/server"
	"github.com/loykin/bloomctl/internal/supervisor"
)

type command struct {
	out io.Writer
}

func (c command) Start(cmd *cobra.Command, configPath string, f StartFlags) error {
	sess, err := openSession(configPath, cmd.Flags(), f.Verbose)
	if err != nil {
		return err
	}
	defer sess.Close()

	sup, err := sess.supervisor(options(sess.cfg, f))
	if err != nil {
		return err
	}

	if f.Background {
		res, err := sup.Start(contextOf(cmd))
		if err != nil {
			return err
		}
		c.printResult(sess.cfg.Name, res)
		return nil
	}

	sigCtx, stopSignals := signal.NotifyContext(contextOf(cmd), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()
	ctx, stop := context.WithCancel(sigCtx)
	defer stop()

	res, err := sup.Start(ctx)
	if err != nil {
		return err
	}
	c.printResult(sess.cfg.Name, res)

	if addr := sess.cfg.Admin.Listen; addr != "" {
		srv := server.NewServer(addr, server.NewRouter(sup, stop, sess.registry, ""))
		sess.logger.Info("admin endpoint listening", "addr", addr)
		defer func() {
			shutCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutCtx)
		}()
	}
	if iv := sess.cfg.Metrics.SampleInterval; iv > 0 {
		cs := metrics.NewChildSampler(sess.cfg.Name, iv)
		if err := cs.Register(sess.registry); err != nil {
			sess.logger.Warn("child metrics unavailable", "error", err)
		} else {
			cs.Start(ctx, res.PID)
			defer cs.Stop()
		}
	}

	res, err = sup.Wait(ctx)
	if err != nil {
		return err
	}
	c.printResult(sess.cfg.Name, res)
	return nil
}

func (c command) Stop(cmd *cobra.Command, configPath string, f StopFlags) error {
	sess, err := openSession(configPath, cmd.Flags(), f.Verbose)
	if err != nil {
		return err
	}
	defer sess.Close()

	sup, err := sess.supervisor(options(sess.cfg, StartFlags{}))
	if err != nil {
		return err
	}
	res, err := sup.Stop(contextOf(cmd), supervisor.StopOptions{Force: f.Force, StopDependency: f.StopDependency})
	if res != nil {
		c.printResult(sess.cfg.Name, res)
	}
	return err
}

func (c command) Status(cmd *cobra.Command, configPath string, f StatusFlags) error {
	sess, err := openSession(configPath, cmd.Flags(), false)
	if err != nil {
		return err
	}
	defer sess.Close()

	sup, err := sess.supervisor(options(sess.cfg, StartFlags{}))
	if err != nil {
		return err
	}
	st := sup.Status(contextOf(cmd))
	if f.JSON {
		c.printJSON(st)
		return nil
	}
	c.printStatus(st)
	return nil
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func (c command) printResult(name string, r *supervisor.Result) {
	switch {
	case r.Noop:
		_, _ = fmt.Fprintf(c.out, "%s is not running\n", name)
	case r.State == supervisor.StateRunning:
		_, _ = fmt.Fprintf(c.out, "%s running (pid %d, port %d, %s)\n", name, r.PID, r.Port, r.Kind)
	case r.State == supervisor.StateStopped && r.StopMode != "":
		_, _ = fmt.Fprintf(c.out, "%s stopped (pid %d, %s)\n", name, r.PID, r.StopMode)
	default:
		_, _ = fmt.Fprintf(c.out, "%s %s\n", name, r.State)
	}
}

func (c command) printStatus(st supervisor.Status) {
	_, _ = fmt.Fprintf(c.out, "%-10s %s\n", "name:", st.Name)
	_, _ = fmt.Fprintf(c.out, "%-10s %s\n", "state:", st.State)
	if st.PID > 0 {
		_, _ = fmt.Fprintf(c.out, "%-10s %d (%s, alive=%t)\n", "pid:", st.PID, st.Kind, st.Alive)
		_, _ = fmt.Fprintf(c.out, "%-10s %s\n", "started:", st.StartedAt.Format(time.RFC3339))
	}
	_, _ = fmt.Fprintf(c.out, "%-10s %s:%d (occupied=%t)\n", "address:", st.Host, st.Port, st.PortOccupied)
	if st.PortOccupied && st.OccupantKnown && !st.OccupantOurs {
		_, _ = fmt.Fprintf(c.out, "%-10s pid %d (not started by bloomctl)\n", "occupant:", st.OccupantPID)
	}
}

func (c command) printJSON(v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	_, _ = fmt.Fprintln(c.out, string(b))
}
