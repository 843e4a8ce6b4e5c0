package lsp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/leapstack-labs/bqrun/internal/cli/config"
	"github.com/leapstack-labs/bqrun/internal/editor"
	"github.com/leapstack-labs/bqrun/internal/format"
	"github.com/leapstack-labs/bqrun/internal/runner"
)

// Commands executed through workspace/executeCommand.
const (
	CommandRunAsQuery         = "bigquery.runAsQuery"
	CommandRunSelectedAsQuery = "bigquery.runSelectedAsQuery"
	CommandDryRun             = "bigquery.dryRun"
)

// Server-to-client notifications for the output surface.
const (
	MethodShowOutput   = "bigquery/showOutput"
	MethodAppendOutput = "bigquery/appendOutput"
)

// JSON-RPC error codes.
const (
	codeParseError     = -32700
	codeInvalidParams  = -32602
	codeMethodNotFound = -32601
	codeInvalidRequest = -32600
)

// SettingsManager is the configuration the server reads and updates.
type SettingsManager interface {
	runner.ConfigSource
	ApplySettings(settings map[string]any) (config.Config, error)
}

// Options configure a Server.
type Options struct {
	Config    SettingsManager
	Executor  runner.Executor
	Formatter *format.Formatter
	Logger    *slog.Logger
	Version   string
}

// Server implements the Language Server Protocol for bqrun.
type Server struct {
	// Document management
	documents *editor.DocumentStore

	config  SettingsManager
	runner  *runner.Runner
	version string

	// In-flight commands. Shutdown cancels them without ending the session.
	commandCtx     context.Context
	cancelCommands context.CancelFunc
	inflight       sync.WaitGroup

	// I/O
	reader  *bufio.Reader
	writer  io.Writer
	writeMu sync.Mutex

	// Logging
	logger *slog.Logger

	// Shutdown state
	shutdown   bool
	exited     bool
	shutdownMu sync.RWMutex
}

// NewServer creates a new LSP server instance.
func NewServer(reader io.Reader, writer io.Writer, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	s := &Server{
		documents: editor.NewDocumentStore(),
		config:    opts.Config,
		version:   opts.Version,
		reader:    bufio.NewReader(reader),
		writer:    writer,
		logger:    logger,
	}
	s.runner = runner.New(runner.Options{
		Config:    opts.Config,
		Executor:  opts.Executor,
		Formatter: opts.Formatter,
		Output:    &clientOutput{s: s},
		Notifier:  &clientNotifier{s: s},
		Logger:    logger,
	})
	return s
}

// Run processes JSON-RPC messages until the client sends exit, closes the
// stream, or ctx is done. Commands still running when Run returns are
// cancelled and waited for.
func (s *Server) Run(ctx context.Context) error {
	s.commandCtx, s.cancelCommands = context.WithCancel(ctx)
	defer func() {
		s.cancelCommands()
		s.inflight.Wait()
	}()

	s.logger.Info("bqrun LSP server starting")

	stop := make(chan struct{})
	defer close(stop)
	incoming := make(chan incomingMessage)
	go s.readLoop(incoming, stop)

	for {
		if s.isExited() {
			return nil
		}

		var in incomingMessage
		select {
		case <-ctx.Done():
			s.logger.Info("Server stopped", "reason", context.Cause(ctx))
			return nil
		case in = <-incoming:
		}

		if in.err != nil {
			if streamClosed(in.err) {
				s.logger.Info("Client disconnected")
				return nil
			}
			s.logger.Error("Error reading message", "error", in.err)
			var perr *parseError
			if errors.As(in.err, &perr) {
				s.sendResponse(nil, nil, &JSONRPCError{Code: codeParseError, Message: in.err.Error()})
			}
			continue
		}

		// Handle message
		if err := s.handleMessage(in.msg); err != nil {
			s.logger.Error("Error handling message", "method", in.msg.Method, "error", err)
		}
	}
}

type incomingMessage struct {
	msg *JSONRPCMessage
	err error
}

// readLoop reads messages off the input stream so Run can also watch its
// context. It ends when the stream closes or once stop is closed.
func (s *Server) readLoop(out chan<- incomingMessage, stop <-chan struct{}) {
	for {
		msg, err := s.readMessage()
		select {
		case out <- incomingMessage{msg: msg, err: err}:
		case <-stop:
			return
		}
		if streamClosed(err) {
			return
		}
	}
}

func streamClosed(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.ErrClosedPipe) || errors.Is(err, os.ErrClosed)
}

// JSONRPCMessage represents a JSON-RPC 2.0 message.
type JSONRPCMessage struct {
	JSONRPC string           `json:"jsonrpc"`
	ID      *json.RawMessage `json:"id,omitempty"`
	Method  string           `json:"method,omitempty"`
	Params  json.RawMessage  `json:"params,omitempty"`
	Result  json.RawMessage  `json:"result,omitempty"`
	Error   *JSONRPCError    `json:"error,omitempty"`
}

// JSONRPCError represents a JSON-RPC error.
type JSONRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type parseError struct{ err error }

func (e *parseError) Error() string { return "error parsing message: " + e.err.Error() }
func (e *parseError) Unwrap() error { return e.err }

// readMessage reads a JSON-RPC message from the input stream.
func (s *Server) readMessage() (*JSONRPCMessage, error) {
	// Read headers
	var contentLength int
	for {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			return nil, err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			break // End of headers
		}

		if name, value, ok := strings.Cut(line, ":"); ok && strings.EqualFold(strings.TrimSpace(name), "Content-Length") {
			contentLength, err = strconv.Atoi(strings.TrimSpace(value))
			if err != nil {
				return nil, fmt.Errorf("invalid Content-Length: %w", err)
			}
		}
	}

	if contentLength <= 0 {
		return nil, fmt.Errorf("missing Content-Length header")
	}

	// Read body
	body := make([]byte, contentLength)
	if _, err := io.ReadFull(s.reader, body); err != nil {
		return nil, fmt.Errorf("error reading body: %w", err)
	}

	// Parse message
	var msg JSONRPCMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, &parseError{err: err}
	}

	return &msg, nil
}

// sendResponse sends a JSON-RPC response.
func (s *Server) sendResponse(id *json.RawMessage, result any, err *JSONRPCError) {
	msg := JSONRPCMessage{
		JSONRPC: "2.0",
		ID:      id,
	}

	if err != nil {
		msg.Error = err
	} else {
		resultBytes, _ := json.Marshal(result)
		msg.Result = resultBytes
	}

	s.writeMessage(&msg)
}

// sendNotification sends a JSON-RPC notification (no ID).
func (s *Server) sendNotification(method string, params any) {
	msg := JSONRPCMessage{
		JSONRPC: "2.0",
		Method:  method,
	}

	if params != nil {
		paramsBytes, _ := json.Marshal(params)
		msg.Params = paramsBytes
	}

	s.writeMessage(&msg)
}

// writeMessage writes a JSON-RPC message to the output stream.
func (s *Server) writeMessage(msg *JSONRPCMessage) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	body, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error("Error marshaling message", "error", err)
		return
	}

	header := fmt.Sprintf("Content-Length: %d\r\n\r\n", len(body))
	_, _ = s.writer.Write([]byte(header))
	_, _ = s.writer.Write(body)
}

// showMessage sends window/showMessage.
func (s *Server) showMessage(typ MessageType, message string) {
	s.sendNotification("window/showMessage", &ShowMessageParams{Type: typ, Message: message})
}

// ShowError sends an error notification to the client. It is safe to call
// from any goroutine.
func (s *Server) ShowError(message string) {
	s.showMessage(MessageTypeError, message)
}

// handleMessage dispatches a message to the appropriate handler.
func (s *Server) handleMessage(msg *JSONRPCMessage) error {
	s.logger.Debug("Received", "method", msg.Method)

	if s.isShutdown() && msg.Method != "exit" {
		if msg.ID != nil {
			s.sendResponse(msg.ID, nil, &JSONRPCError{Code: codeInvalidRequest, Message: "server is shutting down"})
		}
		return nil
	}

	switch msg.Method {
	case "initialize":
		return s.handleInitialize(msg)
	case "initialized":
		s.logger.Info("Server initialized")
		return nil
	case "shutdown":
		return s.handleShutdown(msg)
	case "exit":
		return s.handleExit(msg)
	case "textDocument/didOpen":
		return s.handleDidOpen(msg)
	case "textDocument/didClose":
		return s.handleDidClose(msg)
	case "textDocument/didChange":
		return s.handleDidChange(msg)
	case "textDocument/didSave":
		return nil
	case "workspace/didChangeConfiguration":
		return s.handleDidChangeConfiguration(msg)
	case "workspace/executeCommand":
		return s.handleExecuteCommand(msg)
	default:
		if msg.ID != nil {
			// Unknown method with ID - respond with method not found
			s.sendResponse(msg.ID, nil, &JSONRPCError{
				Code:    codeMethodNotFound,
				Message: "Method not found: " + msg.Method,
			})
		}
		return nil
	}
}

func (s *Server) isShutdown() bool {
	s.shutdownMu.RLock()
	defer s.shutdownMu.RUnlock()
	return s.shutdown
}

func (s *Server) isExited() bool {
	s.shutdownMu.RLock()
	defer s.shutdownMu.RUnlock()
	return s.exited
}

// --- Lifecycle handlers ---

func (s *Server) handleInitialize(msg *JSONRPCMessage) error {
	var params InitializeParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		s.sendResponse(msg.ID, nil, &JSONRPCError{Code: codeInvalidParams, Message: err.Error()})
		return err
	}
	s.logger.Info("Workspace root", "path", editor.URIToPath(params.RootURI))

	if len(params.InitializationOptions) > 0 {
		var settings map[string]any
		if err := json.Unmarshal(params.InitializationOptions, &settings); err == nil && len(settings) > 0 {
			s.applySettings(settings)
		}
	}

	result := InitializeResult{
		Capabilities: ServerCapabilities{
			TextDocumentSync: &TextDocumentSyncOptions{
				OpenClose: true,
				Change:    TextDocumentSyncKindFull,
			},
			ExecuteCommandProvider: &ExecuteCommandOptions{
				Commands: []string{CommandRunAsQuery, CommandRunSelectedAsQuery, CommandDryRun},
			},
		},
		ServerInfo: &ServerInfo{Name: "bqrun", Version: s.version},
	}

	s.sendResponse(msg.ID, result, nil)
	return nil
}

func (s *Server) handleShutdown(msg *JSONRPCMessage) error {
	s.shutdownMu.Lock()
	s.shutdown = true
	s.shutdownMu.Unlock()

	s.cancelCommands()
	s.inflight.Wait()

	s.sendResponse(msg.ID, nil, nil)
	s.logger.Info("Server shutdown")
	return nil
}

func (s *Server) handleExit(_ *JSONRPCMessage) error {
	s.shutdownMu.Lock()
	s.exited = true
	s.shutdownMu.Unlock()

	s.logger.Info("Server exit")
	return nil
}

// --- Document handlers ---

func (s *Server) handleDidOpen(msg *JSONRPCMessage) error {
	var params DidOpenTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}

	s.documents.Open(params.TextDocument.URI, params.TextDocument.Text, params.TextDocument.Version)
	s.logger.Debug("Opened", "uri", params.TextDocument.URI)
	return nil
}

func (s *Server) handleDidClose(msg *JSONRPCMessage) error {
	var params DidCloseTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}

	s.documents.Close(params.TextDocument.URI)
	s.logger.Debug("Closed", "uri", params.TextDocument.URI)
	return nil
}

func (s *Server) handleDidChange(msg *JSONRPCMessage) error {
	var params DidChangeTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}

	// We use full sync, so take the last change
	if len(params.ContentChanges) > 0 {
		lastChange := params.ContentChanges[len(params.ContentChanges)-1]
		s.documents.Update(params.TextDocument.URI, lastChange.Text, params.TextDocument.Version)
	}
	return nil
}

// --- Workspace handlers ---

func (s *Server) handleDidChangeConfiguration(msg *JSONRPCMessage) error {
	var params DidChangeConfigurationParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}
	s.applySettings(params.Settings)
	return nil
}

func (s *Server) applySettings(settings map[string]any) {
	if _, err := s.config.ApplySettings(settings); err != nil {
		s.showMessage(MessageTypeError, err.Error())
		return
	}
	s.logger.Info("Settings applied")
}

func (s *Server) handleExecuteCommand(msg *JSONRPCMessage) error {
	var params ExecuteCommandParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		s.sendResponse(msg.ID, nil, &JSONRPCError{Code: codeInvalidParams, Message: err.Error()})
		return err
	}

	var run func(*runner.Runner, context.Context, editor.Workspace) error
	switch params.Command {
	case CommandRunAsQuery:
		run = (*runner.Runner).RunQuery
	case CommandRunSelectedAsQuery:
		run = (*runner.Runner).RunSelectedQuery
	case CommandDryRun:
		run = (*runner.Runner).DryRun
	default:
		s.sendResponse(msg.ID, nil, &JSONRPCError{Code: codeInvalidParams, Message: "unknown command: " + params.Command})
		return nil
	}

	var args CommandArgs
	if len(params.Arguments) > 0 {
		if err := json.Unmarshal(params.Arguments[0], &args); err != nil {
			s.sendResponse(msg.ID, nil, &JSONRPCError{Code: codeInvalidParams, Message: err.Error()})
			return err
		}
	}
	ws := s.workspace(args)

	// Queries can run for minutes; answer now and report through notifications.
	s.sendResponse(msg.ID, nil, nil)

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		if err := run(s.runner, s.commandCtx, ws); err != nil {
			s.logger.Debug("command failed", "command", params.Command, "error", err)
		}
	}()
	return nil
}

// workspace resolves the command target from the open documents. The
// document is captured now so later edits do not change a running command.
func (s *Server) workspace(args CommandArgs) editor.Workspace {
	doc := s.documents.Get(args.URI)
	if doc == nil {
		return editor.Single{}
	}
	return editor.Single{Editor: &editor.DocumentEditor{Doc: doc, Sel: args.Range}}
}

// clientOutput renders the output surface as client notifications.
type clientOutput struct{ s *Server }

func (o *clientOutput) Show(preserveFocus bool) {
	o.s.sendNotification(MethodShowOutput, &ShowOutputParams{PreserveFocus: preserveFocus})
}

func (o *clientOutput) AppendLine(text string) {
	o.s.sendNotification(MethodAppendOutput, &AppendOutputParams{Text: text})
}

// clientNotifier shows notifications with window/showMessage.
type clientNotifier struct{ s *Server }

func (n *clientNotifier) Info(message string)  { n.s.showMessage(MessageTypeInfo, message) }
func (n *clientNotifier) Error(message string) { n.s.showMessage(MessageTypeError, message) }
