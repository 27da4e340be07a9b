// Package config loads onboard's settings from a YAML or TOML file, a .env
// file, ONBOARD_* environment variables and command line flags, in
// increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/zdunecki/onboarding/pkg/session"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "ONBOARD"

type APIConfig struct {
	// URL is the backend base URL. Empty keeps submissions offline.
	URL     string        `mapstructure:"url" yaml:"url" toml:"url"`
	Token   string        `mapstructure:"token" yaml:"token" toml:"token"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout" toml:"timeout"`
	Retries int           `mapstructure:"retries" yaml:"retries" toml:"retries"`
	// Offline keeps answers local even when URL is set.
	Offline bool `mapstructure:"offline" yaml:"offline" toml:"offline"`
}

type SessionConfig struct {
	Driver string `mapstructure:"driver" yaml:"driver" toml:"driver"`
	Path   string `mapstructure:"path" yaml:"path" toml:"path"`
}

type CatalogConfig struct {
	// Dir overrides the embedded catalog.
	Dir string `mapstructure:"dir" yaml:"dir" toml:"dir"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level" toml:"level"`
	Format string `mapstructure:"format" yaml:"format" toml:"format"`
	// File receives the terminal wizard's log output.
	File string `mapstructure:"file" yaml:"file" toml:"file"`
}

type ServerConfig struct {
	Port  int  `mapstructure:"port" yaml:"port" toml:"port"`
	Watch bool `mapstructure:"watch" yaml:"watch" toml:"watch"`
}

type Config struct {
	API     APIConfig     `mapstructure:"api" yaml:"api" toml:"api"`
	Session SessionConfig `mapstructure:"session" yaml:"session" toml:"session"`
	Catalog CatalogConfig `mapstructure:"catalog" yaml:"catalog" toml:"catalog"`
	Log     LogConfig     `mapstructure:"log" yaml:"log" toml:"log"`
	Server  ServerConfig  `mapstructure:"server" yaml:"server" toml:"server"`
}

// FlagKeys maps config keys to the command line flags that override them.
// Flags missing from the set handed to Load are ignored.
var FlagKeys = map[string]string{
	"api.url":        "api-url",
	"api.offline":    "offline",
	"catalog.dir":    "catalog",
	"log.level":      "log-level",
	"session.driver": "session-driver",
	"session.path":   "session-path",
	"server.port":    "port",
	"server.watch":   "watch",
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		API:     APIConfig{Timeout: 10 * time.Second, Retries: 2},
		Session: SessionConfig{Driver: session.DriverFile},
		Log:     LogConfig{Level: "info", Format: "console"},
		Server:  ServerConfig{Port: 8080},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("api.url", d.API.URL)
	v.SetDefault("api.token", d.API.Token)
	v.SetDefault("api.timeout", d.API.Timeout)
	v.SetDefault("api.retries", d.API.Retries)
	v.SetDefault("api.offline", d.API.Offline)
	v.SetDefault("session.driver", d.Session.Driver)
	v.SetDefault("session.path", d.Session.Path)
	v.SetDefault("catalog.dir", d.Catalog.Dir)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.watch", d.Server.Watch)
}

// Load reads path (when non-empty), then the .env file in the working
// directory, then ONBOARD_* variables, then the changed flags of flags
// (which may be nil). A missing .env is not an error; a missing config file
// named explicitly is.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml", ".toml":
		default:
			return Config{}, fmt.Errorf("unsupported config format %q (use .yaml or .toml)", filepath.Ext(path))
		}
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	// Existing environment wins over .env.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for key, name := range FlagKeys {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return Config{}, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
		// A driver picked on the command line does not inherit the path
		// configured for another driver.
		if changed(flags, "session-driver") && !changed(flags, "session-path") {
			v.Set("session.path", "")
		}
	}

	var cfg Config
	if err := v.UnmarshalExact(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	cfg.Fill()
	return cfg, cfg.Validate()
}

func changed(flags *pflag.FlagSet, name string) bool {
	f := flags.Lookup(name)
	return f != nil && f.Changed
}

// DefaultPath returns the first of ./onboard.yaml, ./onboard.toml and the
// same names under ~/.onboard that exists, or "".
func DefaultPath() string {
	candidates := []string{"onboard.yaml", "onboard.yml", "onboard.toml"}
	var dirs []string
	dirs = append(dirs, ".")
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, ".onboard"))
	}
	for _, dir := range dirs {
		for _, name := range candidates {
			p := filepath.Join(dir, name)
			if _, err := os.Stat(p); err == nil {
				return p
			}
		}
	}
	return ""
}

// Fill resolves settings that depend on others. It only sets empty fields.
func (c *Config) Fill() {
	if c.Session.Path == "" {
		switch c.Session.Driver {
		case session.DriverSQLite:
			c.Session.Path = session.DefaultPath("session.db")
		case session.DriverFile:
			c.Session.Path = session.DefaultPath("session.json")
		}
	}
	if c.Log.File == "" {
		c.Log.File = session.DefaultPath("onboard.log")
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch c.Session.Driver {
	case session.DriverFile, session.DriverSQLite, session.DriverMemory:
	default:
		return fmt.Errorf("unknown session driver %q", c.Session.Driver)
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	if c.API.Retries < 0 {
		return fmt.Errorf("api retries must not be negative")
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	return nil
}

// Encode writes c in the given file format ("yaml" or "toml").
func (c Config) Encode(w io.Writer, format string) error {
	switch strings.ToLower(format) {
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(c); err != nil {
			return err
		}
		return enc.Close()
	case "toml":
		return toml.NewEncoder(w).Encode(c)
	default:
		return fmt.Errorf("unsupported config format %q (use yaml or toml)", format)
	}
}
