package commands

import (
	"log/slog"

	"github.com/leapstack-labs/bqrun/internal/cli/config"
	"github.com/leapstack-labs/bqrun/internal/editor"
	"github.com/leapstack-labs/bqrun/internal/observability"
	"github.com/leapstack-labs/bqrun/internal/query"
	"github.com/leapstack-labs/bqrun/internal/runner"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

// serviceFactory opens the remote query service. Tests replace it.
var serviceFactory query.ServiceFactory = query.NewBigQueryService

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Manager  *config.Manager
	Logger   *slog.Logger
	Metrics  *observability.Metrics
	Executor *query.Executor
	Notifier *editor.TerminalNotifier
	Runner   *runner.Runner
}

// NewCommandContext creates a CommandContext whose output surface is the
// command's stdout and whose notifications go to its stderr. reg may be nil.
func NewCommandContext(cmd *cobra.Command, reg prometheus.Registerer) *CommandContext {
	manager := config.GetManager(cmd.Context())
	logger := config.GetLogger(cmd.Context())
	metrics := observability.NewMetrics(reg)
	exec := query.NewExecutor(serviceFactory, metrics, logger)
	notifier := editor.NewTerminalNotifier(cmd.ErrOrStderr())

	return &CommandContext{
		Manager:  manager,
		Logger:   logger,
		Metrics:  metrics,
		Executor: exec,
		Notifier: notifier,
		Runner: runner.New(runner.Options{
			Config:   manager,
			Executor: exec,
			Output:   editor.NewWriterOutput(cmd.OutOrStdout()),
			Notifier: notifier,
			Logger:   logger,
		}),
	}
}
