package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/leapstack-labs/bqrun/internal/editor"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// reportedError marks an error the notifier has already shown to the user.
type reportedError struct{ err error }

func (e *reportedError) Error() string { return e.err.Error() }
func (e *reportedError) Unwrap() error { return e.err }

// IsReported reports whether err was already printed by a command.
func IsReported(err error) bool {
	var r *reportedError
	return errors.As(err, &r)
}

func reported(err error) error {
	if err == nil {
		return nil
	}
	return &reportedError{err: err}
}

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run [file|-]",
		Short: "Run a SQL file as a BigQuery query",
		Long: `Run the whole content of a SQL file as a BigQuery query and print the rows.

With no argument, or "-", the query is read from stdin. When stdin is a
terminal an interactive session is started instead.`,
		Example: `  bqrun run report.sql
  bqrun run report.sql -o table
  echo 'SELECT 1 AS x' | bqrun run`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && isTerminal(cmd.InOrStdin()) {
				return runREPL(cmd)
			}
			doc, err := readDocument(cmd, args)
			if err != nil {
				return err
			}
			cmdCtx := NewCommandContext(cmd, nil)
			ws := editor.Single{Editor: &editor.DocumentEditor{Doc: doc}}
			return reported(cmdCtx.Runner.RunQuery(cmd.Context(), ws))
		},
	}
}

// NewRunSelectedCommand creates the run-selected command.
func NewRunSelectedCommand() *cobra.Command {
	var selection string

	cmd := &cobra.Command{
		Use:   "run-selected <file|-> --selection <range>",
		Short: "Run part of a SQL file as a BigQuery query",
		Long: `Run the selected part of a SQL file as a BigQuery query.

The selection uses 1-based positions: "LINE:COL-LINE:COL" selects from the
first cursor position up to the second, "LINE-LINE" selects whole lines.`,
		Example: `  bqrun run-selected report.sql --selection 3-7
  bqrun run-selected report.sql --selection 2:1-2:24`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readDocument(cmd, args)
			if err != nil {
				return err
			}
			ed := &editor.DocumentEditor{Doc: doc}
			if selection != "" {
				rng, err := editor.ParseRange(selection)
				if err != nil {
					return fmt.Errorf("invalid --selection: %w", err)
				}
				ed.Sel = &rng
			}
			cmdCtx := NewCommandContext(cmd, nil)
			return reported(cmdCtx.Runner.RunSelectedQuery(cmd.Context(), editor.Single{Editor: ed}))
		},
	}

	cmd.Flags().StringVarP(&selection, "selection", "s", "", "Selected range (LINE:COL-LINE:COL or LINE-LINE)")
	return cmd
}

// NewDryRunCommand creates the dry-run command.
func NewDryRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "dry-run [file|-]",
		Short: "Report the bytes a query would process",
		Long: `Submit a SQL file to BigQuery as a dry run. Nothing is executed; the job
ID and the estimated number of bytes processed are printed.`,
		Example: `  bqrun dry-run report.sql
  cat report.sql | bqrun dry-run`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readDocument(cmd, args)
			if err != nil {
				return err
			}
			cmdCtx := NewCommandContext(cmd, nil)
			ws := editor.Single{Editor: &editor.DocumentEditor{Doc: doc}}
			return reported(cmdCtx.Runner.DryRun(cmd.Context(), ws))
		},
	}
}

// readDocument loads the named file, or stdin for "-" or no argument.
func readDocument(cmd *cobra.Command, args []string) (*editor.Document, error) {
	if len(args) == 0 || args[0] == "-" {
		content, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return editor.NewDocument("stdin", string(content), 1), nil
	}

	path := args[0]
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return editor.NewDocument(editor.PathToURI(path), string(content), 1), nil
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
