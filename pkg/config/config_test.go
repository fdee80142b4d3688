package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/matzehuels/olette/pkg/autostep"
	"github.com/matzehuels/olette/pkg/engine"
	"github.com/matzehuels/olette/pkg/store"
)

func hasWarning(warnings []string, substr string) bool {
	for _, w := range warnings {
		if strings.Contains(w, substr) {
			return true
		}
	}
	return false
}

func TestValidate_Default(t *testing.T) {
	cfg := Default()
	if warnings := cfg.Validate(); len(warnings) != 0 {
		t.Errorf("default config should have no warnings, got %v", warnings)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   string
	}{
		{"bad delay", func(c *Config) { c.Session.Delay = "soon" }, "session.delay"},
		{"negative ttl", func(c *Config) { c.Session.TTL = "-1h" }, "session.ttl"},
		{"bad timeout", func(c *Config) { c.Engine.Timeout = "30" }, "engine.timeout"},
		{"bad rule", func(c *Config) { c.Session.Rule = "beta" }, "session.rule"},
		{"redis without addr", func(c *Config) { c.Store.Backend = store.BackendRedis }, "redis_addr"},
		{"mongo without uri", func(c *Config) { c.Store.Backend = store.BackendMongo }, "mongo_uri"},
		{"unknown backend", func(c *Config) { c.Store.Backend = "sqlite" }, "unknown store backend"},
		{"zero layout", func(c *Config) { c.Layout.Width = 0 }, "layout size"},
		{"negative sessions", func(c *Config) { c.Server.MaxSessions = -1 }, "max_sessions"},
		{"sample rate", func(c *Config) { c.Tracing.SampleRate = 1.5 }, "sample_rate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(&cfg)
			if w := cfg.Validate(); !hasWarning(w, tt.want) {
				t.Errorf("expected warning about %s, got %v", tt.want, w)
			}
		})
	}
}

func TestAccessors(t *testing.T) {
	cfg := Default()
	if cfg.Delay() != autostep.DefaultDelay {
		t.Errorf("Delay() = %v", cfg.Delay())
	}
	if cfg.SlotTTL() != store.DefaultTTL {
		t.Errorf("SlotTTL() = %v", cfg.SlotTTL())
	}
	if cfg.EngineTimeout() != 30*time.Second || cfg.IdleTimeout() != 30*time.Minute {
		t.Errorf("timeouts = %v, %v", cfg.EngineTimeout(), cfg.IdleTimeout())
	}
	if cfg.Rule() != engine.RuleAuto {
		t.Errorf("Rule() = %v", cfg.Rule())
	}

	cfg.Session.Delay = "nonsense"
	cfg.Session.Rule = "nonsense"
	if cfg.Delay() != autostep.DefaultDelay || cfg.Rule() != engine.RuleAuto {
		t.Error("invalid values should fall back to defaults")
	}

	cfg.Session.Delay = "250ms"
	cfg.Session.Rule = "cancel"
	if cfg.Delay() != 250*time.Millisecond || cfg.Rule() != engine.RuleCancel {
		t.Errorf("Delay() = %v, Rule() = %v", cfg.Delay(), cfg.Rule())
	}
}

func TestLayoutConfig(t *testing.T) {
	cfg := Default()
	cfg.Layout.Width, cfg.Layout.Height = 1200, 800
	cfg.Layout.Charge = -300
	lc := cfg.LayoutConfig()
	if lc.Width != 1200 || lc.Height != 800 || lc.Charge != -300 || lc.LinkDistance != 80 {
		t.Errorf("LayoutConfig() = %+v", lc)
	}
}

func TestTracingConfig(t *testing.T) {
	cfg := Default()
	cfg.Tracing.Endpoint = "localhost:4317"
	tc := cfg.TracingConfig("1.2.3")
	if tc.OTLPEndpoint != "localhost:4317" || tc.ServiceVersion != "1.2.3" || tc.ServiceName != "olette" {
		t.Errorf("TracingConfig() = %+v", tc)
	}
}

func TestWriteAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg := Default()
	cfg.Session.Slot = "lambda"
	cfg.Session.Delay = "2s"
	cfg.Store.Backend = store.BackendMemory
	cfg.Layout.LinkDistance = 120

	if err := Write(path, cfg, false); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := Write(path, cfg, false); err == nil {
		t.Error("Write should refuse to overwrite")
	}
	if err := Write(path, cfg, true); err != nil {
		t.Errorf("Write(overwrite): %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `delay = "2s"`) {
		t.Errorf("durations should be written as strings:\n%s", data)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Session.Slot != "lambda" || got.Delay() != 2*time.Second {
		t.Errorf("session = %+v", got.Session)
	}
	if got.Store.Backend != store.BackendMemory || got.Layout.LinkDistance != 120 {
		t.Errorf("loaded config = %+v", got)
	}
	if got.Server.Addr != cfg.Server.Addr {
		t.Errorf("Server.Addr = %q", got.Server.Addr)
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[session]\nslot = \"mine\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Session.Slot != "mine" {
		t.Errorf("Slot = %q", cfg.Session.Slot)
	}
	if cfg.Session.Delay != autostep.DefaultDelay.String() || cfg.Store.Backend != store.BackendFile {
		t.Errorf("defaults lost: %+v", cfg)
	}
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("OLETTE_SESSION_SLOT", "from-env")
	t.Setenv("OLETTE_STORE_BACKEND", "memory")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Session.Slot != "from-env" || cfg.Store.Backend != store.BackendMemory {
		t.Errorf("env overrides not applied: %+v", cfg)
	}
}

func TestLoad_MissingExplicitPath(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Error("Load should fail for a missing explicit path")
	}
}
