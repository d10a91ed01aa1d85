package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mercator-hq/mixpolicy/pkg/cli"
)

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion script",
	Long: `Generate shell completion script for mixpolicy.

Bash:
  $ source <(mixpolicy completion bash)

Zsh:
  $ mixpolicy completion zsh > "${fpath[1]}/_mixpolicy"
  $ compinit

Fish:
  $ mixpolicy completion fish | source

PowerShell:
  PS> mixpolicy completion powershell | Out-String | Invoke-Expression
`,
	ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
	Args:      cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletion(out)
		case "zsh":
			return rootCmd.GenZshCompletion(out)
		case "fish":
			return rootCmd.GenFishCompletion(out, true)
		case "powershell":
			return rootCmd.GenPowerShellCompletion(out)
		default:
			return cli.NewConfigError("shell", fmt.Sprintf("unsupported shell: %s", args[0]))
		}
	},
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.AddCommand(completionCmd)
}
