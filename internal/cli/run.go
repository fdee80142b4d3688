package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/olette/pkg/autostep"
	"github.com/matzehuels/olette/pkg/graph"
	"github.com/matzehuels/olette/pkg/render/scene"
	"github.com/matzehuels/olette/pkg/session"
)

// Output formats of the run command.
const (
	formatSVG  = "svg"
	formatJSON = "json"
	formatDOT  = "dot"
	formatPNG  = "png"
	formatPDF  = "pdf"
)

// runOptions holds flags for the run command.
type runOptions struct {
	output string
	format string
	delay  string
	settle int
}

// runCommand creates the headless auto-step command.
func (c *CLI) runCommand() *cobra.Command {
	opts := runOptions{format: formatSVG, delay: "0", settle: defaultSettleTicks}

	cmd := &cobra.Command{
		Use:   "run <term>",
		Short: "Rewrite a term to normal form without the debugger",
		Long: `Load a term and auto-step it until no node is reducible.

The final graph is written as an SVG scene (default) or as graph JSON, and
saved to the slot so 'olette debug' can pick up where the run ended.`,
		Example: `  olette run '(\x.x) y'
  olette run '(\x.x x) (\y.y)' -o result.svg
  olette run '(\x.x) y' --format json -o result.json
  olette run '(\x.x) y' --delay 0.5`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runRun(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default olette-<slot>-<step>.<format>)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", opts.format, "output format: svg, json")
	cmd.Flags().StringVar(&opts.delay, "delay", opts.delay, "pause between steps (seconds or Go duration)")
	cmd.Flags().IntVar(&opts.settle, "settle", opts.settle, "layout ticks before writing the scene")

	return cmd
}

func (c *CLI) runRun(cmd *cobra.Command, term string, opts runOptions) error {
	ctx := cmd.Context()
	logger := loggerFromContext(ctx)

	if opts.format != formatSVG && opts.format != formatJSON {
		return fmt.Errorf("unsupported format %q (want svg or json)", opts.format)
	}
	delay, err := session.ParseDelay(opts.delay)
	if err != nil {
		return err
	}

	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	defer c.initTracing(ctx, cfg)()

	sess, st, err := c.newSession(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()
	if err := sess.SetDelay(delay); err != nil {
		return err
	}

	prog := newProgress(logger)
	spinner := newSpinnerWithContext(ctx, "Loading term...")
	spinner.Start()
	if err := sess.Load(ctx, term); err != nil {
		spinner.StopWithError("Load failed")
		return err
	}

	spinner.Update("Reducing...")
	out, err := sess.RunAuto(ctx, func(o autostep.Outcome) {
		if o == autostep.Stepped {
			spinner.Update("Reducing... step %d", sess.Status().Steps)
		}
	})
	spinner.Stop()
	if err != nil {
		return err
	}

	status := sess.Status()
	switch out {
	case autostep.Exhausted, autostep.NotRunning:
		prog.done(fmt.Sprintf("Normal form after %d steps", status.Steps))
	default:
		logger.Warn("run ended early", "outcome", out, "steps", status.Steps)
	}

	if _, err := sess.Settle(opts.settle); err != nil {
		logger.Warn("layout did not settle", "err", err)
	}

	path := opts.output
	if path == "" {
		path = scenePath(cfg.Session.Slot, status.Cursor, opts.format)
	}
	if err := writeGraph(sess.Graph(), path, opts.format); err != nil {
		return err
	}

	printSuccess("Reduced in %d steps", status.Steps)
	printGraphStats(status)
	printFile(path)
	printNewline()
	printNextStep("Step through it", fmt.Sprintf("%s debug --slot %s", appName, cfg.Session.Slot))
	return nil
}

// writeGraph writes g as an SVG scene or as graph JSON.
func writeGraph(g graph.Graph, path, format string) error {
	if format == formatJSON {
		return graph.WriteFile(g, path)
	}
	if err := os.WriteFile(path, scene.RenderSVG(g, scene.WithBackground("white")), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
