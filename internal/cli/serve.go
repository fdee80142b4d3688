package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/matzehuels/olette/internal/server"
	"github.com/matzehuels/olette/pkg/engine"
	"github.com/matzehuels/olette/pkg/store"
)

// serveOptions holds flags for the serve command.
type serveOptions struct {
	addr        string
	maxSessions int
	noSlots     bool
}

// serveCommand creates the HTTP session server command.
func (c *CLI) serveCommand() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve debugger sessions over HTTP",
		Long: `Run an HTTP server that hosts independent debugger sessions.

Each session talks to the configured engine under its own session id.
Sessions created with a slot name are persisted to the configured store.`,
		Example: `  olette serve
  olette serve --addr :9000 --max-sessions 16
  olette serve --store redis`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", "", "listen address (default from config)")
	cmd.Flags().IntVar(&opts.maxSessions, "max-sessions", 0, "maximum live sessions (default from config)")
	cmd.Flags().BoolVar(&opts.noSlots, "no-slots", false, "do not persist sessions to the store")

	return cmd
}

func (c *CLI) runServe(ctx context.Context, opts serveOptions) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	if opts.addr != "" {
		cfg.Server.Addr = opts.addr
	}
	if opts.maxSessions > 0 {
		cfg.Server.MaxSessions = opts.maxSessions
	}
	defer c.initTracing(ctx, cfg)()

	client, err := c.newEngine(cfg)
	if err != nil {
		return err
	}

	var st store.Store
	if !opts.noSlots {
		if st, err = store.Open(ctx, cfg.Store); err != nil {
			return err
		}
		defer st.Close()
	}

	lc := cfg.LayoutConfig()
	srv := server.New(server.Config{
		MaxSessions: cfg.Server.MaxSessions,
		IdleTimeout: cfg.IdleTimeout(),
		Layout:      &lc,
		Rule:        cfg.Rule(),
		Delay:       cfg.Delay(),
		Store:       st,
		SlotTTL:     cfg.SlotTTL(),
	}, func(id string) (engine.Engine, error) {
		return client.Session(id), nil
	}, c.Logger)

	printSuccess("Serving sessions on %s", StyleLink.Render("http://"+cfg.Server.Addr+"/sessions"))
	printDetail("engine %s", client)
	if st != nil {
		printDetail("slots in %s store", store.BackendName(st))
	}
	printDetail("press ctrl+c to stop")

	err = srv.ListenAndServe(ctx, cfg.Server.Addr)
	if errors.Is(err, context.Canceled) {
		printNewline()
		printInfo("Server stopped")
		return nil
	}
	return err
}
