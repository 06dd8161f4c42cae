package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := buildRoot()
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// buildRoot creates the root command and its subcommands.
func buildRoot() *cobra.Command {
	globalFlags := &GlobalFlags{}
	root := createRootCommand(globalFlags)
	root.AddCommand(
		createStartCommand(globalFlags, &StartFlags{}),
		createStopCommand(globalFlags, &StopFlags{}),
		createStatusCommand(globalFlags, &StatusFlags{}),
	)
	return root
}

func createRootCommand(flags *GlobalFlags) *cobra.Command {
	root := &cobra.Command{
		Use:   "bloomctl",
		Short: "Local supervisor for a single port-bound service",
		Long: `bloomctl starts, stops and inspects one locally managed service
bound to a TCP port, waiting for its dependency and refusing to disturb
processes it did not start.

Examples:
  bloomctl start                       # run in the foreground
  bloomctl start --background --port 7001
  bloomctl stop --stopDependency
  bloomctl status --json`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "path to TOML config file (optional)")
	return root
}

func createStartCommand(g *GlobalFlags, f *StartFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the managed service",
		Long: `Start the managed service after checking prerequisites, resolving any
port conflict and waiting for the configured dependency.

In the foreground (default) bloomctl stays attached and stops the service
on SIGINT or SIGTERM. With --background it returns once the service is up.

Examples:
  bloomctl start --devMode
  bloomctl start --background --host 0.0.0.0 --port 7001
  bloomctl start --skipDependency --verbose`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return command{out: cmd.OutOrStdout()}.Start(cmd, g.ConfigPath, *f)
		},
	}
	cmd.Flags().BoolVar(&f.Background, "background", false, "detach the service and return once it is up")
	cmd.Flags().BoolVar(&f.DevMode, "devMode", false, "launch dev_command instead of command")
	cmd.Flags().String("host", "127.0.0.1", "bind host handed to the service")
	cmd.Flags().Int("port", 7000, "bind port handed to the service")
	cmd.Flags().BoolVar(&f.SkipDependency, "skipDependency", false, "do not wait for the configured dependency")
	cmd.Flags().BoolVarP(&f.Verbose, "verbose", "v", false, "debug logging")
	cmd.Flags().BoolVar(&f.Force, "force", false, "force-kill an earlier bloomctl instance holding the port")
	return cmd
}

func createStopCommand(g *GlobalFlags, f *StopFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the managed service",
		Long: `Stop the managed service: graceful termination first, forced after the
grace period. Stopping a service that is not running succeeds.

Examples:
  bloomctl stop
  bloomctl stop --force --stopDependency`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return command{out: cmd.OutOrStdout()}.Stop(cmd, g.ConfigPath, *f)
		},
	}
	cmd.Flags().BoolVar(&f.Force, "force", false, "skip graceful termination")
	cmd.Flags().BoolVar(&f.StopDependency, "stopDependency", false, "run dependency.stop_command afterwards")
	cmd.Flags().BoolVarP(&f.Verbose, "verbose", "v", false, "debug logging")
	return cmd
}

func createStatusCommand(g *GlobalFlags, f *StatusFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the recorded instance and port state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return command{out: cmd.OutOrStdout()}.Status(cmd, g.ConfigPath, *f)
		},
	}
	cmd.Flags().BoolVar(&f.JSON, "json", false, "print status as JSON")
	return cmd
}
