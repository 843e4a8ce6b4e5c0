// Package runner wires editor input, configuration, query execution and
// result formatting into the three user commands: run the whole document,
// run the selection, and dry run the document.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/leapstack-labs/bqrun/internal/apperr"
	"github.com/leapstack-labs/bqrun/internal/cli/config"
	"github.com/leapstack-labs/bqrun/internal/editor"
	"github.com/leapstack-labs/bqrun/internal/format"
	"github.com/leapstack-labs/bqrun/internal/query"
)

// Messages for missing input.
const (
	MsgNoEditor    = "No active editor window was found"
	MsgEmptyEditor = "The editor window is empty"
	MsgNoSelection = "No text is currently selected"
)

// ConfigSource supplies configuration snapshots.
type ConfigSource interface {
	Current() config.Config
}

// Executor runs a query request.
type Executor interface {
	Execute(ctx context.Context, req query.Request) (*query.Result, error)
}

// Runner holds the collaborators shared by every command invocation.
type Runner struct {
	config    ConfigSource
	executor  Executor
	formatter *format.Formatter
	output    editor.Output
	notifier  editor.Notifier
	logger    *slog.Logger
}

// Options configure a Runner. Formatter and Logger are optional.
type Options struct {
	Config    ConfigSource
	Executor  Executor
	Formatter *format.Formatter
	Output    editor.Output
	Notifier  editor.Notifier
	Logger    *slog.Logger
}

// New creates a Runner.
func New(opts Options) *Runner {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	formatter := opts.Formatter
	if formatter == nil {
		formatter = format.NewFormatter(logger)
	}
	return &Runner{
		config:    opts.Config,
		executor:  opts.Executor,
		formatter: formatter,
		output:    opts.Output,
		notifier:  opts.Notifier,
		logger:    logger,
	}
}

// RunQuery runs the full text of the active editor.
func (r *Runner) RunQuery(ctx context.Context, ws editor.Workspace) error {
	return r.invoke(ctx, "run", ws, documentText, false)
}

// RunSelectedQuery runs the selected text of the active editor.
func (r *Runner) RunSelectedQuery(ctx context.Context, ws editor.Workspace) error {
	return r.invoke(ctx, "run_selected", ws, selectedText, false)
}

// DryRun estimates the full text of the active editor without running it.
func (r *Runner) DryRun(ctx context.Context, ws editor.Workspace) error {
	return r.invoke(ctx, "dry_run", ws, documentText, true)
}

type extractFunc func(editor.Workspace) (string, error)

func documentText(ws editor.Workspace) (string, error) {
	ed, ok := activeEditor(ws)
	if !ok {
		return "", apperr.New(apperr.Input, MsgNoEditor)
	}
	text := strings.TrimSpace(ed.Text())
	if text == "" {
		return "", apperr.New(apperr.Input, MsgEmptyEditor)
	}
	return text, nil
}

func selectedText(ws editor.Workspace) (string, error) {
	ed, ok := activeEditor(ws)
	if !ok {
		return "", apperr.New(apperr.Input, MsgNoEditor)
	}
	sel, ok := ed.Selection()
	text := strings.TrimSpace(sel)
	if !ok || text == "" {
		return "", apperr.New(apperr.Input, MsgNoSelection)
	}
	return text, nil
}

func activeEditor(ws editor.Workspace) (editor.Editor, bool) {
	if ws == nil {
		return nil, false
	}
	ed, ok := ws.ActiveEditor()
	return ed, ok && ed != nil
}

func (r *Runner) invoke(ctx context.Context, command string, ws editor.Workspace, extract extractFunc, dryRun bool) error {
	logger := r.logger.With("command", command, "invocation_id", uuid.NewString())

	text, err := extract(ws)
	if err != nil {
		return r.fail(logger, err)
	}

	cfg := r.config.Current()
	logger.Debug("executing query", "bytes", len(text), "dry_run", dryRun, "location", cfg.Location)

	res, err := r.executor.Execute(ctx, query.Request{
		Text:   text,
		DryRun: dryRun,
		Config: cfg,
		OnSubmit: func(jobID string) {
			r.notifier.Info("BigQuery job ID: " + jobID)
		},
	})
	if err != nil {
		return r.fail(logger, err)
	}

	r.write(cfg, res)
	logger.Info("query finished", "job_id", res.JobID, "rows", len(res.Rows), "dry_run", res.DryRun)
	return nil
}

// write renders a result. Lines are built before anything is appended so a
// formatting problem never leaves partial output.
func (r *Runner) write(cfg config.Config, res *query.Result) {
	var lines []string
	if res.DryRun {
		lines = []string{
			fmt.Sprintf("Results for job %s (dry run):", res.JobID),
			fmt.Sprintf("Total bytes processed: %d", res.BytesProcessed),
		}
	} else {
		lines = append([]string{fmt.Sprintf("Results for job %s:", res.JobID)},
			r.formatter.Lines(res.Rows, cfg.OutputFormat, cfg.PrettyPrintJSON)...)
	}

	r.output.Show(cfg.PreserveFocus)
	for _, line := range lines {
		r.output.AppendLine(line)
	}
}

func (r *Runner) fail(logger *slog.Logger, err error) error {
	logger.Warn("query failed", "kind", apperr.KindOf(err), "job_id", apperr.JobIDOf(err), "error", err)
	r.notifier.Error(err.Error())
	return err
}
