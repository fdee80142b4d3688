// Package config loads the olette configuration.
//
// Settings are layered: built-in defaults, then the TOML config file, then
// OLETTE_* environment variables (OLETTE_SESSION_SLOT, OLETTE_ENGINE_URL,
// ...), then command-line flags applied by the caller.
//
// Durations are written as strings ("1.5s", "168h") so the file stays
// readable; the typed accessors parse them.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"

	"github.com/matzehuels/olette/pkg/autostep"
	"github.com/matzehuels/olette/pkg/engine"
	"github.com/matzehuels/olette/pkg/layout"
	"github.com/matzehuels/olette/pkg/observability"
	"github.com/matzehuels/olette/pkg/store"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "OLETTE"

// Config holds all application configuration.
type Config struct {
	Engine  EngineConfig  `mapstructure:"engine" toml:"engine"`
	Session SessionConfig `mapstructure:"session" toml:"session"`
	Store   store.Config  `mapstructure:"store" toml:"store"`
	Layout  LayoutConfig  `mapstructure:"layout" toml:"layout"`
	Server  ServerConfig  `mapstructure:"server" toml:"server"`
	Tracing TracingConfig `mapstructure:"tracing" toml:"tracing"`
	Log     LogConfig     `mapstructure:"log" toml:"log"`
}

type EngineConfig struct {
	URL     string `mapstructure:"url" toml:"url"`
	Timeout string `mapstructure:"timeout" toml:"timeout"`
}

type SessionConfig struct {
	Slot  string `mapstructure:"slot" toml:"slot"`
	TTL   string `mapstructure:"ttl" toml:"ttl"`
	Delay string `mapstructure:"delay" toml:"delay"`
	Rule  string `mapstructure:"rule" toml:"rule"`
}

type LayoutConfig struct {
	Width        float64 `mapstructure:"width" toml:"width"`
	Height       float64 `mapstructure:"height" toml:"height"`
	Charge       float64 `mapstructure:"charge" toml:"charge"`
	LinkDistance float64 `mapstructure:"link_distance" toml:"link_distance"`
}

type ServerConfig struct {
	Addr        string `mapstructure:"addr" toml:"addr"`
	MaxSessions int    `mapstructure:"max_sessions" toml:"max_sessions"`
	IdleTimeout string `mapstructure:"idle_timeout" toml:"idle_timeout"`
}

type TracingConfig struct {
	Endpoint   string  `mapstructure:"endpoint" toml:"endpoint"`
	SampleRate float64 `mapstructure:"sample_rate" toml:"sample_rate"`
}

type LogConfig struct {
	Level string `mapstructure:"level" toml:"level"`
}

// Default returns the built-in configuration.
func Default() Config {
	lc := layout.DefaultConfig()
	return Config{
		Engine: EngineConfig{
			URL:     "http://127.0.0.1:8787",
			Timeout: "30s",
		},
		Session: SessionConfig{
			Slot:  "default",
			TTL:   store.DefaultTTL.String(),
			Delay: autostep.DefaultDelay.String(),
			Rule:  string(engine.RuleAuto),
		},
		Store: store.Config{
			Backend:         store.BackendFile,
			MongoDatabase:   "olette",
			MongoCollection: "slots",
		},
		Layout: LayoutConfig{
			Width:        lc.Width,
			Height:       lc.Height,
			Charge:       lc.Charge,
			LinkDistance: lc.LinkDistance,
		},
		Server: ServerConfig{
			Addr:        "127.0.0.1:8080",
			MaxSessions: 64,
			IdleTimeout: "30m",
		},
		Tracing: TracingConfig{
			SampleRate: 1.0,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// DefaultPath returns ~/.config/olette/config.toml.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("get config dir: %w", err)
	}
	return filepath.Join(dir, "olette", "config.toml"), nil
}

// =============================================================================
// Loading
// =============================================================================

// Load reads configuration from path and the environment. An empty path
// means [DefaultPath], which may be absent; an explicit path must exist.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	} else if explicit || !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("engine.url", d.Engine.URL)
	v.SetDefault("engine.timeout", d.Engine.Timeout)

	v.SetDefault("session.slot", d.Session.Slot)
	v.SetDefault("session.ttl", d.Session.TTL)
	v.SetDefault("session.delay", d.Session.Delay)
	v.SetDefault("session.rule", d.Session.Rule)

	v.SetDefault("store.backend", d.Store.Backend)
	v.SetDefault("store.dir", d.Store.Dir)
	v.SetDefault("store.redis_addr", d.Store.RedisAddr)
	v.SetDefault("store.redis_password", d.Store.RedisPassword)
	v.SetDefault("store.redis_db", d.Store.RedisDB)
	v.SetDefault("store.mongo_uri", d.Store.MongoURI)
	v.SetDefault("store.mongo_database", d.Store.MongoDatabase)
	v.SetDefault("store.mongo_collection", d.Store.MongoCollection)

	v.SetDefault("layout.width", d.Layout.Width)
	v.SetDefault("layout.height", d.Layout.Height)
	v.SetDefault("layout.charge", d.Layout.Charge)
	v.SetDefault("layout.link_distance", d.Layout.LinkDistance)

	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.max_sessions", d.Server.MaxSessions)
	v.SetDefault("server.idle_timeout", d.Server.IdleTimeout)

	v.SetDefault("tracing.endpoint", d.Tracing.Endpoint)
	v.SetDefault("tracing.sample_rate", d.Tracing.SampleRate)

	v.SetDefault("log.level", d.Log.Level)
}

// Write encodes cfg as TOML at path, creating parent directories. An
// existing file is only replaced when overwrite is set.
func Write(path string, cfg Config, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config %s already exists", path)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return nil
}

// =============================================================================
// Validation
// =============================================================================

// Validate checks configuration for issues and returns warnings. Invalid
// values fall back to their defaults in the typed accessors.
func (c *Config) Validate() []string {
	var warnings []string

	for _, d := range []struct{ key, val string }{
		{"engine.timeout", c.Engine.Timeout},
		{"session.ttl", c.Session.TTL},
		{"session.delay", c.Session.Delay},
		{"server.idle_timeout", c.Server.IdleTimeout},
	} {
		if d.val == "" {
			continue
		}
		if v, err := time.ParseDuration(d.val); err != nil || v < 0 {
			warnings = append(warnings, fmt.Sprintf("%s %q is not a valid duration", d.key, d.val))
		}
	}

	if _, err := engine.ParseRuleKind(c.Session.Rule); err != nil {
		warnings = append(warnings, fmt.Sprintf("session.rule %q is not one of auto, duplicate, cancel", c.Session.Rule))
	}

	switch c.Store.Backend {
	case "", store.BackendFile, store.BackendMemory:
	case store.BackendRedis:
		if c.Store.RedisAddr == "" {
			warnings = append(warnings, "store backend 'redis' is configured but redis_addr is empty")
		}
	case store.BackendMongo:
		if c.Store.MongoURI == "" {
			warnings = append(warnings, "store backend 'mongo' is configured but mongo_uri is empty")
		}
	default:
		warnings = append(warnings, fmt.Sprintf("unknown store backend '%s'", c.Store.Backend))
	}

	if c.Layout.Width <= 0 || c.Layout.Height <= 0 {
		warnings = append(warnings, fmt.Sprintf("layout size %.0fx%.0f is not positive", c.Layout.Width, c.Layout.Height))
	}

	if c.Server.MaxSessions < 0 {
		warnings = append(warnings, fmt.Sprintf("server max_sessions %d is negative", c.Server.MaxSessions))
	}

	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		warnings = append(warnings, fmt.Sprintf("tracing sample_rate %.2f is outside [0.0, 1.0]", c.Tracing.SampleRate))
	}

	return warnings
}

// =============================================================================
// Typed Accessors
// =============================================================================

func duration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}

// EngineTimeout returns the per-call engine timeout.
func (c *Config) EngineTimeout() time.Duration {
	return duration(c.Engine.Timeout, 30*time.Second)
}

// SlotTTL returns how long a persisted slot lives.
func (c *Config) SlotTTL() time.Duration {
	return duration(c.Session.TTL, store.DefaultTTL)
}

// Delay returns the auto-step delay.
func (c *Config) Delay() time.Duration {
	return duration(c.Session.Delay, autostep.DefaultDelay)
}

// Rule returns the default rule kind.
func (c *Config) Rule() engine.RuleKind {
	r, err := engine.ParseRuleKind(c.Session.Rule)
	if err != nil {
		return engine.RuleAuto
	}
	return r
}

// IdleTimeout returns how long an unused server session is kept.
func (c *Config) IdleTimeout() time.Duration {
	return duration(c.Server.IdleTimeout, 30*time.Minute)
}

// LayoutConfig returns the force parameters with the configured overrides.
func (c *Config) LayoutConfig() layout.Config {
	lc := layout.DefaultConfig()
	if c.Layout.Width > 0 && c.Layout.Height > 0 {
		lc.Width, lc.Height = c.Layout.Width, c.Layout.Height
	}
	if c.Layout.Charge != 0 {
		lc.Charge = c.Layout.Charge
	}
	if c.Layout.LinkDistance > 0 {
		lc.LinkDistance = c.Layout.LinkDistance
	}
	return lc
}

// TracingConfig returns the tracer settings for version.
func (c *Config) TracingConfig(version string) *observability.TracingConfig {
	tc := observability.DefaultTracingConfig()
	tc.OTLPEndpoint = c.Tracing.Endpoint
	tc.SampleRate = c.Tracing.SampleRate
	if version != "" {
		tc.ServiceVersion = version
	}
	return tc
}
