package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/olette/pkg/errors"
	"github.com/matzehuels/olette/pkg/graph"
	"github.com/matzehuels/olette/pkg/render"
	"github.com/matzehuels/olette/pkg/render/nodelink"
	"github.com/matzehuels/olette/pkg/render/scene"
)

// Renderers of the export command.
const (
	rendererScene    = "scene"
	rendererGraphviz = "graphviz"
)

// exportOptions holds flags for the export command.
type exportOptions struct {
	input    string
	output   string
	format   string
	renderer string
	scale    float64
	ports    bool
	titles   bool
}

// exportCommand creates the export command.
func (c *CLI) exportCommand() *cobra.Command {
	opts := exportOptions{format: formatSVG, renderer: rendererScene, scale: 2, titles: true}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Render the persisted session to a file",
		Long: `Render the graph saved in the slot (or a graph JSON file) without
contacting the engine.

The scene renderer draws the debugger canvas. The graphviz renderer draws a
node-link diagram with neato at the saved positions. PNG and PDF output
require rsvg-convert.`,
		Example: `  olette export
  olette export --slot church -o church.png --format png
  olette export --renderer graphviz --ports
  olette export --format dot -o graph.dot
  olette export -i graph.json -o graph.svg`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runExport(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.input, "input", "i", "", "graph JSON file to render instead of the slot")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default olette-<slot>-0.<format>)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", opts.format, "output format: svg, png, pdf, dot, json")
	cmd.Flags().StringVarP(&opts.renderer, "renderer", "r", opts.renderer, "renderer: scene, graphviz")
	cmd.Flags().Float64Var(&opts.scale, "scale", opts.scale, "PNG scale factor")
	cmd.Flags().BoolVar(&opts.ports, "ports", false, "label wire ends with port numbers (graphviz)")
	cmd.Flags().BoolVar(&opts.titles, "titles", opts.titles, "show node titles (graphviz)")

	return cmd
}

func (c *CLI) runExport(ctx context.Context, opts exportOptions) error {
	logger := loggerFromContext(ctx)

	g, name, err := c.exportSource(ctx, opts.input)
	if err != nil {
		return err
	}
	logger.Debug("exporting", "source", name, "nodes", len(g.Nodes), "format", opts.format, "renderer", opts.renderer)

	data, err := renderExport(ctx, g, opts)
	if err != nil {
		return err
	}

	path := opts.output
	if path == "" {
		path = scenePath(name, 0, opts.format)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	printSuccess("Exported %s", StyleHighlight.Render(name))
	printFile(path)
	return nil
}

// exportSource reads the graph to export from a file or the configured slot.
func (c *CLI) exportSource(ctx context.Context, input string) (graph.Graph, string, error) {
	if input != "" {
		g, err := graph.ReadFile(input)
		if err != nil {
			return graph.Graph{}, "", err
		}
		return g, strings.TrimSuffix(filepath.Base(input), filepath.Ext(input)), nil
	}

	cfg, err := c.loadConfig()
	if err != nil {
		return graph.Graph{}, "", err
	}
	slot, st, err := c.openSlot(ctx, cfg)
	if err != nil {
		return graph.Graph{}, "", err
	}
	defer st.Close()

	snapshot, ok, err := slot.Load(ctx)
	if err != nil {
		return graph.Graph{}, "", err
	}
	if !ok {
		return graph.Graph{}, "", errors.New(errors.ErrCodeNotFound, "slot %q is empty", slot.Name())
	}
	g, err := graph.Unmarshal(snapshot)
	if err != nil {
		return graph.Graph{}, "", errors.Wrap(errors.ErrCodeInvalidSnapshot, err, "decode slot %q", slot.Name())
	}
	return g, slot.Name(), nil
}

// renderExport renders g in the requested format.
func renderExport(ctx context.Context, g graph.Graph, opts exportOptions) ([]byte, error) {
	switch opts.format {
	case formatJSON:
		return graph.Marshal(g)
	case formatDOT:
		return []byte(nodelink.ToDOT(g, nodelink.Options{Ports: opts.ports, Titles: opts.titles})), nil
	case formatSVG, formatPNG, formatPDF:
	default:
		return nil, fmt.Errorf("unsupported format %q (want svg, png, pdf, dot or json)", opts.format)
	}

	switch opts.renderer {
	case rendererScene:
		svg := scene.RenderSVG(g, scene.WithBackground("white"))
		switch opts.format {
		case formatPNG:
			return render.ToPNG(svg, opts.scale)
		case formatPDF:
			return render.ToPDF(svg)
		}
		return svg, nil
	case rendererGraphviz:
		dot := nodelink.ToDOT(g, nodelink.Options{Ports: opts.ports, Titles: opts.titles})
		switch opts.format {
		case formatPNG:
			return nodelink.RenderPNG(ctx, dot, opts.scale)
		case formatPDF:
			return nodelink.RenderPDF(ctx, dot)
		}
		return nodelink.RenderSVG(ctx, dot)
	}
	return nil, fmt.Errorf("unknown renderer %q (want scene or graphviz)", opts.renderer)
}
