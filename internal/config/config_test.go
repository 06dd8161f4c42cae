package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func writeTOML(t *testing.T, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bloomctl.toml")
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write toml: %v", err)
	}
	return path
}

func flags(args ...string) *pflag.FlagSet {
	fs := pflag.NewFlagSet("start", pflag.ContinueOnError)
	fs.String("host", "127.0.0.1", "")
	fs.Int("port", 7000, "")
	fs.Bool("force", false, "")
	_ = fs.Parse(args)
	return fs
}

func TestLoadDefaults(t *testing.T) {
	c, err := Load("", nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Name != "soundbloom" || c.Port != 7000 || c.Host != "127.0.0.1" {
		t.Fatalf("unexpected identity defaults: %+v", c)
	}
	if c.GracePeriod != 5*time.Second || c.ForceTimeout != 3*time.Second {
		t.Fatalf("escalation defaults: grace=%v force=%v", c.GracePeriod, c.ForceTimeout)
	}
	if c.StartConfirm != 500*time.Millisecond || c.StartupTimeout != 30*time.Second {
		t.Fatalf("start defaults: confirm=%v startup=%v", c.StartConfirm, c.StartupTimeout)
	}
	if c.Dependency.Enabled() || c.Dependency.Required {
		t.Fatalf("dependency should be off by default: %+v", c.Dependency)
	}
	if c.Dependency.Interval != 2*time.Second {
		t.Fatalf("dependency interval default: %v", c.Dependency.Interval)
	}
	if c.Lock {
		t.Fatal("lock should be opt-in")
	}
}

func TestLoadFile(t *testing.T) {
	path := writeTOML(t, `
name = "bloom-dev"
command = "python3 -m http.server"
port = 7100
lock = true
env = ["A=1"]
require_binaries = ["python3"]
grace_period = "2s"

[dependency]
type = "bolt"
address = "localhost:7687"
timeout = "10s"
required = true
start_command = "neo4j start"

[log]
level = "debug"
format = "json"
dir = "/var/log/bloom"

[history]
dsn = "sqlite:///tmp/bloom.db"
`)
	c, err := Load(path, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Name != "bloom-dev" || c.Port != 7100 || !c.Lock {
		t.Fatalf("top-level keys not applied: %+v", c)
	}
	if c.GracePeriod != 2*time.Second {
		t.Fatalf("grace_period: %v", c.GracePeriod)
	}
	if len(c.Env) != 1 || c.Env[0] != "A=1" || len(c.RequireBinaries) != 1 {
		t.Fatalf("lists: env=%v bins=%v", c.Env, c.RequireBinaries)
	}
	d := c.Dependency
	if d.Type != "bolt" || d.Address != "localhost:7687" || d.Timeout != 10*time.Second || !d.Required || d.StartCommand != "neo4j start" {
		t.Fatalf("dependency: %+v", d)
	}
	if d.Interval != 2*time.Second {
		t.Fatalf("unset nested key lost its default: %v", d.Interval)
	}
	lc := c.Log.Logger()
	if lc.Slog.Format != "json" || lc.Slog.Level != "debug" || lc.File.Dir != "/var/log/bloom" {
		t.Fatalf("log: %+v", lc)
	}
	if c.History.DSN != "sqlite:///tmp/bloom.db" {
		t.Fatalf("history: %q", c.History.DSN)
	}
}

func TestPrecedence(t *testing.T) {
	path := writeTOML(t, "port = 7100\nhost = \"0.0.0.0\"\n[log]\nlevel = \"warn\"\n")

	c, err := Load(path, flags())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Port != 7100 || c.Host != "0.0.0.0" {
		t.Fatalf("file should beat defaults and unchanged flags: %s:%d", c.Host, c.Port)
	}

	t.Setenv("BLOOMCTL_PORT", "7200")
	t.Setenv("BLOOMCTL_LOG_LEVEL", "error")
	c, err = Load(path, flags())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Port != 7200 || c.Log.Level != "error" {
		t.Fatalf("env should beat file: port=%d level=%s", c.Port, c.Log.Level)
	}

	c, err = Load(path, flags("--port", "7300", "--host", "localhost"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Port != 7300 || c.Host != "localhost" {
		t.Fatalf("flags should beat env: %s:%d", c.Host, c.Port)
	}
}

func TestValidate(t *testing.T) {
	cases := map[string]string{
		"port":       "port = 70000\n",
		"name":       "name = \"a:b\"\n",
		"command":    "command = \"  \"\n",
		"dependency": "[dependency]\ntype = \"redis\"\naddress = \"x:1\"\n",
		"format":     "[log]\nformat = \"xml\"\n",
		"level":      "[log]\nlevel = \"loud\"\n",
		"duration":   "grace_period = \"-1s\"\n",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeTOML(t, data), nil); err == nil {
				t.Fatalf("expected validation error for %q", data)
			}
		})
	}
}

func TestValidateJoinsErrors(t *testing.T) {
	c := Config{Port: 0, Log: LogConfig{Format: "text", Level: "info"}}
	err := c.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"name is required", "command is required", "port 0", "state_file"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml"), nil); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestHelpers(t *testing.T) {
	c := Config{WorkDir: "/srv/bloom", Command: "run", DevCommand: "demo"}
	if got := c.ResolveWorkPath("pyproject.toml"); got != filepath.Join("/srv/bloom", "pyproject.toml") {
		t.Fatalf("relative: %s", got)
	}
	if got := c.ResolveWorkPath("/etc/x"); got != "/etc/x" {
		t.Fatalf("absolute: %s", got)
	}
	if c.LaunchCommand(false) != "run" || c.LaunchCommand(true) != "demo" {
		t.Fatal("launch command selection")
	}
	c.DevCommand = ""
	if c.LaunchCommand(true) != "run" {
		t.Fatal("dev mode without dev_command falls back to command")
	}
}
