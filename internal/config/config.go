package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/loykin/bloomctl/internal/dependency"
	"github.com/loykin/bloomctl/internal/logger"
)

// EnvPrefix prefixes every environment override, e.g. BLOOMCTL_LOG_LEVEL.
const EnvPrefix = "BLOOMCTL"

// Config is the full supervisor configuration after defaults, the TOML
// file, environment and flags have been applied in that order.
type Config struct {
	Name            string            `mapstructure:"name"`
	Command         string            `mapstructure:"command"`
	DevCommand      string            `mapstructure:"dev_command"`
	WorkDir         string            `mapstructure:"work_dir"`
	Host            string            `mapstructure:"host"`
	Port            int               `mapstructure:"port"`
	StateFile       string            `mapstructure:"state_file"`
	Lock            bool              `mapstructure:"lock"`
	Env             []string          `mapstructure:"env"`
	EnvFiles        []string          `mapstructure:"env_files"`
	RequireBinaries []string          `mapstructure:"require_binaries"`
	RequireFiles    []string          `mapstructure:"require_files"`
	StartConfirm    time.Duration     `mapstructure:"start_confirm"`
	StartupTimeout  time.Duration     `mapstructure:"startup_timeout"`
	GracePeriod     time.Duration     `mapstructure:"grace_period"`
	ForceTimeout    time.Duration     `mapstructure:"force_timeout"`
	Dependency      dependency.Config `mapstructure:"dependency"`
	Log             LogConfig         `mapstructure:"log"`
	History         HistoryConfig     `mapstructure:"history"`
	Metrics         MetricsConfig     `mapstructure:"metrics"`
	Admin           AdminConfig       `mapstructure:"admin"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Color      bool   `mapstructure:"color"`
	TimeStamps bool   `mapstructure:"timestamps"`
	File       string `mapstructure:"file"`
	Dir        string `mapstructure:"dir"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

type HistoryConfig struct {
	DSN string `mapstructure:"dsn"`
}

type MetricsConfig struct {
	Textfile       string        `mapstructure:"textfile"`
	SampleInterval time.Duration `mapstructure:"sample_interval"`
}

type AdminConfig struct {
	Listen string `mapstructure:"listen"`
}

// Logger converts the [log] section into the logger package configuration.
func (c LogConfig) Logger() logger.Config {
	return logger.Config{
		Slog: logger.SlogConfig{
			Level:      logger.Level(c.Level),
			Format:     logger.Format(c.Format),
			Color:      c.Color,
			TimeStamps: c.TimeStamps,
			File:       c.File,
		},
		File: logger.FileConfig{
			Dir:        c.Dir,
			MaxSizeMB:  c.MaxSizeMB,
			MaxBackups: c.MaxBackups,
			MaxAgeDays: c.MaxAgeDays,
			Compress:   c.Compress,
		},
	}
}

// FlagKeys maps CLI flag names onto configuration keys.
var FlagKeys = map[string]string{
	"host": "host",
	"port": "port",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("name", "soundbloom")
	v.SetDefault("command", "poetry run python SoundBloom/SoundBloom.py")
	v.SetDefault("dev_command", "poetry run python examples/soundbloom_demo.py")
	v.SetDefault("work_dir", ".")
	v.SetDefault("host", "127.0.0.1")
	v.SetDefault("port", 7000)
	v.SetDefault("state_file", filepath.Join(".bloomctl", "bloomctl.state"))
	v.SetDefault("lock", false)
	v.SetDefault("env", []string{})
	v.SetDefault("env_files", []string{})
	v.SetDefault("require_binaries", []string{})
	v.SetDefault("require_files", []string{})
	v.SetDefault("start_confirm", 500*time.Millisecond)
	v.SetDefault("startup_timeout", 30*time.Second)
	v.SetDefault("grace_period", 5*time.Second)
	v.SetDefault("force_timeout", 3*time.Second)

	v.SetDefault("dependency.type", "")
	v.SetDefault("dependency.address", "")
	v.SetDefault("dependency.timeout", dependency.DefaultTimeout)
	v.SetDefault("dependency.interval", dependency.DefaultInterval)
	v.SetDefault("dependency.required", false)
	v.SetDefault("dependency.start_command", "")
	v.SetDefault("dependency.stop_command", "")

	v.SetDefault("log.level", string(logger.LevelInfo))
	v.SetDefault("log.format", string(logger.FormatText))
	v.SetDefault("log.color", true)
	v.SetDefault("log.timestamps", true)
	v.SetDefault("log.file", "")
	v.SetDefault("log.dir", filepath.Join(".bloomctl", "logs"))
	v.SetDefault("log.max_size_mb", logger.DefaultMaxSizeMB)
	v.SetDefault("log.max_backups", logger.DefaultMaxBackups)
	v.SetDefault("log.max_age_days", logger.DefaultMaxAgeDays)
	v.SetDefault("log.compress", false)

	v.SetDefault("history.dsn", "")
	v.SetDefault("metrics.textfile", "")
	v.SetDefault("metrics.sample_interval", 5*time.Second)
	v.SetDefault("admin.listen", "")
}

// Load reads configuration from path (optional), BLOOMCTL_* environment
// variables and the flags in fs that appear in FlagKeys.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	if fs != nil {
		for name, key := range FlagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Name) == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if strings.ContainsAny(c.Name, ":/\\ ") {
		errs = append(errs, fmt.Errorf("name %q must not contain ':', '/', '\\' or spaces", c.Name))
	}
	if strings.TrimSpace(c.Command) == "" {
		errs = append(errs, errors.New("command is required"))
	}
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range 1..65535", c.Port))
	}
	if strings.TrimSpace(c.StateFile) == "" {
		errs = append(errs, errors.New("state_file is required"))
	}
	for key, d := range map[string]time.Duration{
		"start_confirm":   c.StartConfirm,
		"startup_timeout": c.StartupTimeout,
		"grace_period":    c.GracePeriod,
		"force_timeout":   c.ForceTimeout,
	} {
		if d < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative", key))
		}
	}
	if c.Dependency.Type != "" {
		if _, err := dependency.New(c.Dependency.Type, c.Dependency.Address); err != nil {
			errs = append(errs, err)
		}
	}
	switch logger.Format(c.Log.Format) {
	case logger.FormatText, logger.FormatJSON:
	default:
		errs = append(errs, fmt.Errorf("log.format %q must be text or json", c.Log.Format))
	}
	switch logger.Level(strings.ToLower(c.Log.Level)) {
	case logger.LevelDebug, logger.LevelInfo, logger.LevelWarn, "warning", logger.LevelError:
	default:
		errs = append(errs, fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}
	return errors.Join(errs...)
}

// ResolveWorkPath interprets p relative to WorkDir unless it is absolute.
func (c *Config) ResolveWorkPath(p string) string {
	if filepath.IsAbs(p) || c.WorkDir == "" {
		return p
	}
	return filepath.Join(c.WorkDir, p)
}

// LaunchCommand returns dev_command when dev is set and configured.
func (c *Config) LaunchCommand(dev bool) string {
	if dev && strings.TrimSpace(c.DevCommand) != "" {
		return c.DevCommand
	}
	return c.Command
}
