package commands

import (
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/leapstack-labs/bqrun/internal/cli/config"
	"github.com/leapstack-labs/bqrun/internal/editor"
	"github.com/leapstack-labs/bqrun/internal/format"
	"github.com/spf13/cobra"
)

const (
	replPrompt         = "bqrun> "
	replContinuePrompt = "   ...> "
)

// NewREPLCommand creates the repl command.
func NewREPLCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Start an interactive BigQuery session",
		Long: `Start an interactive session. Statements end with a semicolon and may span
several lines. Type .help for the session commands.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runREPL(cmd)
		},
	}
}

// replSession is the state of one interactive session.
type replSession struct {
	cmdCtx   *CommandContext
	out      io.Writer
	dryRun   bool
	settings map[string]any
}

func runREPL(cmd *cobra.Command) error {
	cmdCtx := NewCommandContext(cmd, nil)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          replPrompt,
		HistoryFile:     historyFile(),
		AutoComplete:    replCompleter(),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
		Stdin:           io.NopCloser(cmd.InOrStdin()),
		Stdout:          cmd.OutOrStdout(),
		Stderr:          cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	s := &replSession{
		cmdCtx:   cmdCtx,
		out:      cmd.OutOrStdout(),
		settings: map[string]any{},
	}

	cmdCtx.Notifier.Hint("bqrun interactive session. Type .help for commands, .quit to exit")

	var buf strings.Builder
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			buf.Reset()
			rl.SetPrompt(replPrompt)
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		// Dot-commands are only recognized at the start of a statement
		if buf.Len() == 0 && strings.HasPrefix(line, ".") {
			if quit := s.handleDotCommand(line); quit {
				break
			}
			continue
		}

		// Accumulate multi-line SQL until semicolon
		buf.WriteString(line)
		if !strings.HasSuffix(line, ";") {
			buf.WriteString("\n")
			rl.SetPrompt(replContinuePrompt)
			continue
		}
		rl.SetPrompt(replPrompt)

		text := strings.TrimSuffix(buf.String(), ";")
		buf.Reset()
		s.execute(cmd, text)
	}

	return nil
}

// execute runs one statement. Failures are already reported by the runner
// and do not end the session.
func (s *replSession) execute(cmd *cobra.Command, text string) {
	ws := editor.Single{Editor: &editor.DocumentEditor{Doc: editor.NewDocument("repl", text, 1)}}
	if s.dryRun {
		_ = s.cmdCtx.Runner.DryRun(cmd.Context(), ws)
	} else {
		_ = s.cmdCtx.Runner.RunQuery(cmd.Context(), ws)
	}
	_, _ = fmt.Fprintln(s.out)
}

// handleDotCommand runs a session command and reports whether to quit.
func (s *replSession) handleDotCommand(line string) bool {
	parts := strings.Fields(line)
	command := strings.ToLower(parts[0])

	switch command {
	case ".quit", ".exit":
		return true

	case ".help":
		printREPLHelp(s.out)

	case ".dryrun":
		if len(parts) > 1 {
			s.dryRun = strings.EqualFold(parts[1], "on")
		} else {
			s.dryRun = !s.dryRun
		}
		s.cmdCtx.Notifier.Info(fmt.Sprintf("dry run %s", onOff(s.dryRun)))

	case ".format":
		if len(parts) < 2 {
			_, _ = fmt.Fprintf(s.out, "Output format: %s\n", s.cmdCtx.Manager.Current().OutputFormat)
			return false
		}
		f, ok := format.Lookup(parts[1])
		if !ok {
			s.cmdCtx.Notifier.Error(fmt.Sprintf("unknown format %q (expected one of %s)", parts[1], strings.Join(format.Names, ", ")))
			return false
		}
		s.apply("outputFormat", f.String())

	case ".pretty":
		pretty := !s.cmdCtx.Manager.Current().PrettyPrintJSON
		if len(parts) > 1 {
			pretty = strings.EqualFold(parts[1], "on")
		}
		s.apply("prettyPrintJSON", pretty)

	case ".config":
		cfg := s.cmdCtx.Manager.Current()
		if err := writeConfigYAML(s.out, cfg); err != nil {
			s.cmdCtx.Notifier.Error(err.Error())
		}

	default:
		s.cmdCtx.Notifier.Error(fmt.Sprintf("Unknown command: %s (type .help for commands)", command))
	}
	return false
}

// apply sets one query setting for the rest of the session.
func (s *replSession) apply(key string, value any) {
	next := maps.Clone(s.settings)
	next[key] = value
	cfg, err := s.cmdCtx.Manager.ApplySettings(map[string]any{config.Section: next})
	if err != nil {
		s.cmdCtx.Notifier.Error(err.Error())
		return
	}
	s.settings = next
	s.cmdCtx.Notifier.Info(fmt.Sprintf("output format %s, pretty JSON %s", cfg.OutputFormat, onOff(cfg.PrettyPrintJSON)))
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func printREPLHelp(w io.Writer) {
	help := `
Commands:
  .help                  Show this help message
  .dryrun [on|off]       Toggle dry run mode (report bytes processed only)
  .format [json|csv|table]
                         Show or set the output format
  .pretty [on|off]       Toggle pretty-printed JSON rows
  .config                Show the effective configuration
  .quit / .exit          Exit the session

Tips:
  - Statements must end with a semicolon (;)
  - Use arrow keys to navigate history
  - Ctrl+C discards the statement being typed
`
	_, _ = fmt.Fprintln(w, help)
}

// historyFile returns the per-user history path, or "" to disable history.
func historyFile() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	dir = filepath.Join(dir, "bqrun")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return ""
	}
	return filepath.Join(dir, "repl_history")
}

func replCompleter() *readline.PrefixCompleter {
	formats := make([]readline.PrefixCompleterInterface, 0, len(format.Names))
	for _, name := range format.Names {
		formats = append(formats, readline.PcItem(name))
	}
	return readline.NewPrefixCompleter(
		readline.PcItem(".help"),
		readline.PcItem(".dryrun", readline.PcItem("on"), readline.PcItem("off")),
		readline.PcItem(".format", formats...),
		readline.PcItem(".pretty", readline.PcItem("on"), readline.PcItem("off")),
		readline.PcItem(".config"),
		readline.PcItem(".quit"),
		readline.PcItem(".exit"),
	)
}
