// Package cli implements the olette command-line interface.
package cli

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/olette/pkg/buildinfo"
	"github.com/matzehuels/olette/pkg/config"
	"github.com/matzehuels/olette/pkg/engine/remote"
	"github.com/matzehuels/olette/pkg/errors"
	"github.com/matzehuels/olette/pkg/observability"
	"github.com/matzehuels/olette/pkg/session"
	"github.com/matzehuels/olette/pkg/store"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "olette"

	// defaultSettleTicks bounds how long headless commands let the layout cool.
	defaultSettleTicks = 300
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	// Persistent flag values. Empty means "use the config file".
	configPath string
	engineURL  string
	slotName   string
	backend    string
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "Olette steps through term-graph rewrites",
		Long:         `Olette is an interactive debugger for term-graph rewriting. It loads a term into a rewrite engine, draws the resulting graph and lets you apply rewrites one at a time, automatically, or backwards through history.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())

	flags := root.PersistentFlags()
	flags.StringVar(&c.configPath, "config", "", "config file (default ~/.config/olette/config.toml)")
	flags.StringVar(&c.engineURL, "engine", "", "rewrite engine base URL")
	flags.StringVar(&c.slotName, "slot", "", "persisted session slot name")
	flags.StringVar(&c.backend, "store", "", "slot store backend: file, memory, redis, mongo")
	c.registerFlagCompletions(root)

	root.AddCommand(c.debugCommand())
	root.AddCommand(c.runCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.exportCommand())
	root.AddCommand(c.slotCommand())
	root.AddCommand(c.configCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Config & Wiring
// =============================================================================

// loadConfig reads the config file and applies the persistent flags on top.
func (c *CLI) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, err
	}
	if c.engineURL != "" {
		cfg.Engine.URL = c.engineURL
	}
	if c.slotName != "" {
		cfg.Session.Slot = c.slotName
	}
	if c.backend != "" {
		cfg.Store.Backend = c.backend
	}
	if err := errors.ValidateSlotName(cfg.Session.Slot); err != nil {
		return nil, err
	}
	for _, w := range cfg.Validate() {
		c.Logger.Warn(w)
	}
	if lvl, err := log.ParseLevel(cfg.Log.Level); err == nil && c.Logger.GetLevel() > lvl {
		c.Logger.SetLevel(lvl)
	}
	return cfg, nil
}

// openSlot opens the configured store and returns a handle on the slot.
// The caller closes the returned store.
func (c *CLI) openSlot(ctx context.Context, cfg *config.Config) (*store.Slot, store.Store, error) {
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	c.Logger.Debug("store opened", "backend", store.BackendName(st), "slot", cfg.Session.Slot)
	return store.NewSlot(st, cfg.Session.Slot, cfg.SlotTTL()), st, nil
}

// newEngine creates the HTTP engine client.
func (c *CLI) newEngine(cfg *config.Config) (*remote.Client, error) {
	client, err := remote.New(cfg.Engine.URL, remote.WithTimeout(cfg.EngineTimeout()))
	if err != nil {
		return nil, fmt.Errorf("engine %q: %w", cfg.Engine.URL, err)
	}
	return client, nil
}

// newSession wires an engine client, the slot and a logger into a session.
// The caller closes the returned store.
func (c *CLI) newSession(ctx context.Context, cfg *config.Config, logger *log.Logger) (*session.Session, store.Store, error) {
	eng, err := c.newEngine(cfg)
	if err != nil {
		return nil, nil, err
	}
	slot, st, err := c.openSlot(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	lc := cfg.LayoutConfig()
	sess := session.New(session.Options{
		Engine: eng,
		Slot:   slot,
		Layout: &lc,
		Rule:   cfg.Rule(),
		Delay:  cfg.Delay(),
		Logger: logger,
	})
	return sess, st, nil
}

// initTracing starts the tracer when an endpoint is configured and returns
// its shutdown function.
func (c *CLI) initTracing(ctx context.Context, cfg *config.Config) func() {
	tp, err := observability.InitTracing(ctx, cfg.TracingConfig(buildinfo.Version))
	if err != nil {
		c.Logger.Warn("tracing disabled", "err", err)
		return func() {}
	}
	if tp.Enabled() {
		c.Logger.Debug("tracing enabled", "endpoint", cfg.Tracing.Endpoint)
	}
	return func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			c.Logger.Warn("tracing shutdown", "err", err)
		}
	}
}

// =============================================================================
// Paths
// =============================================================================

// scenePath returns the default output path for an exported scene.
func scenePath(slot string, cursor int, ext string) string {
	return filepath.Clean(fmt.Sprintf("%s-%s-%d.%s", appName, slot, cursor, ext))
}
