package cli

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

// debugCommand creates the interactive debugger command.
func (c *CLI) debugCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "debug [term]",
		Short: "Step through rewrites interactively",
		Long: `Open the interactive debugger.

With a term argument the term is loaded into the engine. Without one the
debugger resumes from the persisted slot, if there is one.

Select a node with tab (cycles through reducible nodes) or the arrow keys and
press enter to rewrite it. Every step is saved to the slot.`,
		Example: `  olette debug '(\x.x x) (\y.y)'
  olette debug --slot church
  olette debug --engine http://localhost:9000`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			defer c.initTracing(ctx, cfg)()

			// The terminal belongs to the debugger; logs go to its footer.
			tail := &tailWriter{}
			sess, st, err := c.newSession(ctx, cfg, newLogger(tail, c.Logger.GetLevel()))
			if err != nil {
				return err
			}
			defer st.Close()

			if len(args) == 1 {
				spinner := newSpinnerWithContext(ctx, "Loading term...")
				spinner.Start()
				err := sess.Load(ctx, args[0])
				spinner.Stop()
				if err != nil {
					return fmt.Errorf("load: %w", err)
				}
			} else if ok, err := sess.Resume(ctx); err != nil {
				c.Logger.Warn("resume failed", "slot", cfg.Session.Slot, "err", err)
			} else if ok {
				c.Logger.Debug("resumed", "slot", cfg.Session.Slot, "nodes", sess.Status().Nodes)
			}

			p := tea.NewProgram(newDebugModel(ctx, sess, tail), tea.WithAltScreen(), tea.WithContext(ctx))
			if _, err := p.Run(); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return fmt.Errorf("debugger: %w", err)
			}

			if status := sess.Status(); status.Loaded {
				printSuccess("Session saved to slot %s", StyleHighlight.Render(cfg.Session.Slot))
				printGraphStats(status)
			}
			return nil
		},
	}
}
