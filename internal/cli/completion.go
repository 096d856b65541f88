package cli

import "github.com/spf13/cobra"

// completionCommand creates the completion command.
func (c *CLI) completionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate a completion script for gdsmesh.

Besides subcommands and flags, the scripts complete the values of
"convert --format" (binary, ascii) and offer .gds/.gds2/.gdsii files as
layout arguments and .yaml/.yml/.toml files for --stack.

Load for the current shell:

  bash:        source <(gdsmesh completion bash)
  zsh:         source <(gdsmesh completion zsh)
  fish:        gdsmesh completion fish | source
  powershell:  gdsmesh completion powershell | Out-String | Invoke-Expression

To install permanently, write the script to your shell's completion
directory, for example:

  gdsmesh completion bash > /etc/bash_completion.d/gdsmesh
  gdsmesh completion zsh > "${fpath[1]}/_gdsmesh"
  gdsmesh completion fish > ~/.config/fish/completions/gdsmesh.fish
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletionV2(out, true)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			default:
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
		},
	}
}

var (
	layoutExts = []string{"gds", "gds2", "gdsii"}
	stackExts  = []string{"toml", "yaml", "yml"}
)

// completeLayout offers layout files for the single FILE argument.
func completeLayout(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return layoutExts, cobra.ShellCompDirectiveFilterFileExt
}

// completeStackFlag restricts --stack completion to stack files.
func completeStackFlag(cmd *cobra.Command) {
	_ = cmd.RegisterFlagCompletionFunc("stack", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return stackExts, cobra.ShellCompDirectiveFilterFileExt
	})
}
