package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"
)

// Execute runs the olette CLI with args and returns an error if the command
// fails. Diagnostics go to stderr at info level, or debug with --verbose.
//
// Example:
//
//	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer cancel()
//	if err := cli.Execute(ctx, os.Args[1:]); err != nil {
//	    os.Exit(1)
//	}
func Execute(ctx context.Context, args []string) error {
	var verbose bool

	c := New(os.Stderr, LogInfo)
	root := c.RootCommand()
	root.SetArgs(args)
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")

	attach := root.PersistentPreRunE
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		level := LogInfo
		if verbose {
			level = LogDebug
		}
		c.SetLogLevel(level)
		return attach(cmd, args)
	}

	return root.ExecuteContext(ctx)
}
