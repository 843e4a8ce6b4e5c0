// Package editor models the host editor as seen by a query command: the
// active editor with its text and selection, the output surface results are
// appended to, and the notifier that shows short messages to the user.
package editor

// Editor is a document open in the host.
type Editor interface {
	// Text returns the full document text.
	Text() string
	// Selection returns the selected text. ok is false when nothing is selected.
	Selection() (text string, ok bool)
}

// Workspace resolves the editor a command applies to.
type Workspace interface {
	ActiveEditor() (Editor, bool)
}

// Output is the surface query results are written to.
type Output interface {
	// Show reveals the surface. With preserveFocus the editor keeps focus.
	Show(preserveFocus bool)
	AppendLine(text string)
}

// Notifier shows transient messages.
type Notifier interface {
	Info(message string)
	Error(message string)
}

// WorkspaceFunc adapts a function to Workspace.
type WorkspaceFunc func() (Editor, bool)

// ActiveEditor calls fn.
func (fn WorkspaceFunc) ActiveEditor() (Editor, bool) { return fn() }

// Single is a Workspace whose active editor is fixed. A nil Editor means no
// editor is active.
type Single struct {
	Editor Editor
}

// ActiveEditor implements Workspace.
func (w Single) ActiveEditor() (Editor, bool) {
	return w.Editor, w.Editor != nil
}

// DocumentEditor exposes a Document with an optional selection.
type DocumentEditor struct {
	Doc *Document
	Sel *Range
}

// Text implements Editor.
func (e *DocumentEditor) Text() string {
	if e == nil || e.Doc == nil {
		return ""
	}
	return e.Doc.Content
}

// Selection implements Editor. An empty range counts as no selection.
func (e *DocumentEditor) Selection() (string, bool) {
	if e == nil || e.Doc == nil || e.Sel == nil || e.Sel.Empty() {
		return "", false
	}
	return e.Doc.TextInRange(*e.Sel), true
}
