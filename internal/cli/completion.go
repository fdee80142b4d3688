package cli

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/olette/pkg/store"
)

// completionCommand creates the completion command for generating shell completions.
func (c *CLI) completionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for olette.

Bash:
  $ source <(olette completion bash)

Zsh:
  $ olette completion zsh > "${fpath[1]}/_olette"

Fish:
  $ olette completion fish > ~/.config/fish/completions/olette.fish

PowerShell:
  PS> olette completion powershell | Out-String | Invoke-Expression

Slot names (--slot) complete from the file store; --store completes backend names.
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
			return nil
		},
	}

	return cmd
}

// registerFlagCompletions wires dynamic completions for the persistent flags.
func (c *CLI) registerFlagCompletions(root *cobra.Command) {
	_ = root.RegisterFlagCompletionFunc("store", cobra.FixedCompletions(
		[]string{store.BackendFile, store.BackendMemory, store.BackendRedis, store.BackendMongo},
		cobra.ShellCompDirectiveNoFileComp,
	))
	_ = root.RegisterFlagCompletionFunc("slot", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		dir, err := store.DefaultDir()
		if err != nil {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		return slotNames(dir, toComplete), cobra.ShellCompDirectiveNoFileComp
	})
}

// slotNames lists the file-store slots in dir that start with prefix.
func slotNames(dir, prefix string) []string {
	matches, _ := filepath.Glob(filepath.Join(dir, "*.json"))
	var names []string
	for _, m := range matches {
		name := strings.TrimSuffix(filepath.Base(m), ".json")
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
