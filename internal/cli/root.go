// Package cli provides the command-line interface for bqrun.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/leapstack-labs/bqrun/internal/cli/commands"
	"github.com/leapstack-labs/bqrun/internal/cli/config"
	"github.com/leapstack-labs/bqrun/internal/format"
	"github.com/leapstack-labs/bqrun/internal/observability"
	"github.com/spf13/cobra"
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "bqrun",
		Short: "bqrun - run SQL against BigQuery from your editor or terminal",
		Long: `bqrun submits a SQL document, or a selection of it, to Google BigQuery
and renders the returned rows as JSON lines, CSV or an aligned table.
A dry run reports the bytes the query would process without running it.

The same engine backs the terminal commands and the language server
used by editor integrations.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Skip config loading for help and completion commands
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			manager := config.NewManager(config.Options{
				File:  cfgFile,
				Flags: cmd.Root().PersistentFlags(),
			})
			cfg, err := manager.Load()
			if err != nil {
				return err
			}

			logger := observability.NewLogger(cmd.ErrOrStderr(), cfg.LogFormat, cfg.Verbose)
			manager.SetLogger(logger)

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx = context.WithValue(ctx, config.LoggerKey(), logger)
			ctx = context.WithValue(ctx, config.ManagerKey(), manager)
			cmd.SetContext(ctx)

			// Print config file used (if verbose)
			if cfg.Verbose {
				if used := manager.FileUsed(); used != "" {
					_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Using config file: %s\n", used)
				}
			}

			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
`)

	// Global persistent flags
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: nearest bqrun.yaml)")
	flags.String("key-filename", "", "Path to a service account key file")
	flags.String("project-id", "", "Google Cloud project that runs the job")
	flags.Bool("use-legacy-sql", false, "Use legacy SQL instead of GoogleSQL")
	flags.String("location", "", "Job location (default: US)")
	flags.Int64("maximum-bytes-billed", 0, "Fail the job if it would bill more bytes (0 = project default)")
	flags.StringP("output", "o", "", "Output format (json|csv|table)")
	flags.Bool("pretty", true, "Pretty-print JSON rows")
	flags.BoolP("verbose", "v", false, "Verbose output")
	flags.String("log-format", "", "Log format (text|json)")

	// Register completion for output flag
	_ = rootCmd.RegisterFlagCompletionFunc("output", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return format.Names, cobra.ShellCompDirectiveNoFileComp
	})
	_ = rootCmd.RegisterFlagCompletionFunc("log-format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"text", "json"}, cobra.ShellCompDirectiveNoFileComp
	})
	_ = rootCmd.RegisterFlagCompletionFunc("location", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"US", "EU"}, cobra.ShellCompDirectiveNoFileComp
	})

	// Add subcommands
	rootCmd.AddCommand(commands.NewVersionCommand(Version, GitCommit, BuildDate))
	rootCmd.AddCommand(commands.NewRunCommand())
	rootCmd.AddCommand(commands.NewRunSelectedCommand())
	rootCmd.AddCommand(commands.NewDryRunCommand())
	rootCmd.AddCommand(commands.NewREPLCommand())
	rootCmd.AddCommand(commands.NewLSPCommand(Version))
	rootCmd.AddCommand(commands.NewConfigCommand())
	rootCmd.AddCommand(NewCompletionCommand())

	return rootCmd
}

// Execute runs the root command. An interrupt cancels the command context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := NewRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if !commands.IsReported(err) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return err
	}
	return nil
}

// NewCompletionCommand creates the completion command.
func NewCompletionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for bqrun.

To load completions:

Bash:
  $ source <(bqrun completion bash)

Zsh:
  $ bqrun completion zsh > "${fpath[1]}/_bqrun"

Fish:
  $ bqrun completion fish | source

PowerShell:
  PS> bqrun completion powershell | Out-String | Invoke-Expression
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
