package editor

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// WriterOutput is an Output that writes lines to w. Show is a no-op since a
// terminal stream is always visible.
type WriterOutput struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterOutput creates an Output writing to w.
func NewWriterOutput(w io.Writer) *WriterOutput {
	return &WriterOutput{w: w}
}

// Show implements Output.
func (o *WriterOutput) Show(bool) {}

// AppendLine implements Output. Each call is written whole.
func (o *WriterOutput) AppendLine(text string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, _ = io.WriteString(o.w, strings.TrimRight(text, "\n")+"\n")
}

// Styles holds the notification styles.
type Styles struct {
	Info  lipgloss.Style
	Error lipgloss.Style
	Muted lipgloss.Style
}

// NewStyles creates styles bound to renderer r.
func NewStyles(r *lipgloss.Renderer) *Styles {
	return &Styles{
		Info:  r.NewStyle().Foreground(lipgloss.Color("12")).Bold(true),
		Error: r.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		Muted: r.NewStyle().Foreground(lipgloss.Color("8")),
	}
}

// TerminalNotifier prints notifications to a terminal stream, styled when the
// stream is a TTY and NO_COLOR is not set.
type TerminalNotifier struct {
	mu     sync.Mutex
	w      io.Writer
	styles *Styles
}

// NewTerminalNotifier creates a notifier writing to w.
func NewTerminalNotifier(w io.Writer) *TerminalNotifier {
	r := lipgloss.NewRenderer(w)
	if !isTerminal(w) || termenv.EnvNoColor() {
		r.SetColorProfile(termenv.Ascii)
	}
	return &TerminalNotifier{w: w, styles: NewStyles(r)}
}

// Info implements Notifier.
func (n *TerminalNotifier) Info(message string) {
	n.print(n.styles.Info.Render("info:"), message)
}

// Error implements Notifier.
func (n *TerminalNotifier) Error(message string) {
	n.print(n.styles.Error.Render("error:"), message)
}

// Hint prints a de-emphasized line without a label.
func (n *TerminalNotifier) Hint(message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	_, _ = fmt.Fprintln(n.w, n.styles.Muted.Render(message))
}

func (n *TerminalNotifier) print(label, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	_, _ = fmt.Fprintf(n.w, "%s %s\n", label, message)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
