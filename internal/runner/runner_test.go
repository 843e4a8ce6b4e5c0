package runner

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/leapstack-labs/bqrun/internal/apperr"
	"github.com/leapstack-labs/bqrun/internal/cli/config"
	"github.com/leapstack-labs/bqrun/internal/editor"
	"github.com/leapstack-labs/bqrun/internal/flatten"
	"github.com/leapstack-labs/bqrun/internal/format"
	"github.com/leapstack-labs/bqrun/internal/query"
	"github.com/leapstack-labs/bqrun/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticConfig struct{ cfg config.Config }

func (s staticConfig) Current() config.Config { return s.cfg }

type fakeExecutor struct {
	mu       sync.Mutex
	requests []query.Request
	result   *query.Result
	err      error
}

func (e *fakeExecutor) Execute(_ context.Context, req query.Request) (*query.Result, error) {
	e.mu.Lock()
	e.requests = append(e.requests, req)
	e.mu.Unlock()
	if e.err != nil {
		return nil, e.err
	}
	if req.OnSubmit != nil {
		req.OnSubmit(e.result.JobID)
	}
	return e.result, nil
}

type recordingOutput struct {
	shown []bool
	lines []string
}

func (o *recordingOutput) Show(preserveFocus bool) { o.shown = append(o.shown, preserveFocus) }
func (o *recordingOutput) AppendLine(text string)  { o.lines = append(o.lines, text) }

type recordingNotifier struct {
	infos  []string
	errors []string
}

func (n *recordingNotifier) Info(msg string)  { n.infos = append(n.infos, msg) }
func (n *recordingNotifier) Error(msg string) { n.errors = append(n.errors, msg) }

type fixture struct {
	runner   *Runner
	exec     *fakeExecutor
	output   *recordingOutput
	notifier *recordingNotifier
}

func newFixture(t *testing.T, cfg config.Config, exec *fakeExecutor) *fixture {
	t.Helper()
	f := &fixture{exec: exec, output: &recordingOutput{}, notifier: &recordingNotifier{}}
	f.runner = New(Options{
		Config:   staticConfig{cfg},
		Executor: exec,
		Output:   f.output,
		Notifier: f.notifier,
		Logger:   testutil.NewTestLogger(t),
	})
	return f
}

func workspace(text string, sel *editor.Range) editor.Workspace {
	return editor.Single{Editor: &editor.DocumentEditor{
		Doc: editor.NewDocument("file:///q.sql", text, 1),
		Sel: sel,
	}}
}

func compactConfig() config.Config {
	cfg := *config.Defaults()
	cfg.PrettyPrintJSON = false
	return cfg
}

func TestRunQuery(t *testing.T) {
	exec := &fakeExecutor{result: &query.Result{
		JobID: "job_1",
		Rows:  []flatten.Record{{{Name: "x", Value: 1}}, {{Name: "x", Value: 2}}},
	}}
	f := newFixture(t, compactConfig(), exec)

	err := f.runner.RunQuery(context.Background(), workspace("\n  SELECT x FROM t  \n", nil))
	require.NoError(t, err)

	require.Len(t, exec.requests, 1)
	assert.Equal(t, "SELECT x FROM t", exec.requests[0].Text)
	assert.False(t, exec.requests[0].DryRun)

	assert.Equal(t, []bool{true}, f.output.shown)
	assert.Equal(t, []string{"Results for job job_1:", `{"x":1}`, `{"x":2}`}, f.output.lines)
	assert.Equal(t, []string{"BigQuery job ID: job_1"}, f.notifier.infos)
	assert.Empty(t, f.notifier.errors)
}

func TestRunQuery_UsesConfigSnapshot(t *testing.T) {
	cfg := compactConfig()
	cfg.OutputFormat = format.Table
	cfg.PreserveFocus = false
	exec := &fakeExecutor{result: &query.Result{JobID: "job_2", Rows: []flatten.Record{{{Name: "a", Value: 1}}}}}
	f := newFixture(t, cfg, exec)

	require.NoError(t, f.runner.RunQuery(context.Background(), workspace("SELECT 1 AS a", nil)))

	assert.Equal(t, cfg, exec.requests[0].Config)
	assert.Equal(t, []bool{false}, f.output.shown)
	require.Len(t, f.output.lines, 2)
	assert.Contains(t, f.output.lines[1], "│ A │")
}

func TestRunSelectedQuery(t *testing.T) {
	exec := &fakeExecutor{result: &query.Result{JobID: "job_3"}}
	f := newFixture(t, compactConfig(), exec)

	sel := &editor.Range{Start: editor.Position{Line: 1, Character: 0}, End: editor.Position{Line: 1, Character: 9}}
	require.NoError(t, f.runner.RunSelectedQuery(context.Background(), workspace("SELECT 1;\nSELECT 2;", sel)))

	assert.Equal(t, "SELECT 2;", exec.requests[0].Text)
	assert.Equal(t, []string{"Results for job job_3:"}, f.output.lines)
}

func TestDryRun(t *testing.T) {
	exec := &fakeExecutor{result: &query.Result{JobID: "job_d", DryRun: true, BytesProcessed: 1048576}}
	f := newFixture(t, compactConfig(), exec)

	require.NoError(t, f.runner.DryRun(context.Background(), workspace("SELECT * FROM big", nil)))

	assert.True(t, exec.requests[0].DryRun)
	assert.Equal(t, []string{
		"Results for job job_d (dry run):",
		"Total bytes processed: 1048576",
	}, f.output.lines)
}

func TestInputErrorsNeverReachExecutor(t *testing.T) {
	emptySel := &editor.Range{Start: editor.Position{Line: 0, Character: 3}, End: editor.Position{Line: 0, Character: 3}}
	blankSel := &editor.Range{Start: editor.Position{Line: 0, Character: 0}, End: editor.Position{Line: 1, Character: 0}}

	tests := []struct {
		name string
		run  func(r *Runner, ctx context.Context, ws editor.Workspace) error
		ws   editor.Workspace
		want string
	}{
		{"run without editor", (*Runner).RunQuery, editor.Single{}, MsgNoEditor},
		{"run nil workspace", (*Runner).RunQuery, nil, MsgNoEditor},
		{"run empty document", (*Runner).RunQuery, workspace("  \n\t ", nil), MsgEmptyEditor},
		{"dry run empty document", (*Runner).DryRun, workspace("", nil), MsgEmptyEditor},
		{"selected without editor", (*Runner).RunSelectedQuery, editor.Single{}, MsgNoEditor},
		{"selected without selection", (*Runner).RunSelectedQuery, workspace("SELECT 1", nil), MsgNoSelection},
		{"selected empty range", (*Runner).RunSelectedQuery, workspace("SELECT 1", emptySel), MsgNoSelection},
		{"selected whitespace", (*Runner).RunSelectedQuery, workspace("   \nSELECT 1", blankSel), MsgNoSelection},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := &fakeExecutor{result: &query.Result{JobID: "never"}}
			f := newFixture(t, compactConfig(), exec)

			err := tt.run(f.runner, context.Background(), tt.ws)
			require.Error(t, err)
			assert.Equal(t, apperr.Input, apperr.KindOf(err))
			assert.Equal(t, tt.want, err.Error())

			assert.Empty(t, exec.requests)
			assert.Empty(t, f.output.lines)
			assert.Empty(t, f.output.shown)
			assert.Equal(t, []string{tt.want}, f.notifier.errors)
		})
	}
}

func TestExecutorErrorWritesNoOutput(t *testing.T) {
	execErr := apperr.Wrap(apperr.Retrieval, query.MsgRetrievalFailed, errors.New("boom")).WithJob("job_9")
	f := newFixture(t, compactConfig(), &fakeExecutor{err: execErr})

	err := f.runner.RunQuery(context.Background(), workspace("SELECT 1", nil))
	require.ErrorIs(t, err, execErr)

	assert.Empty(t, f.output.lines)
	assert.Empty(t, f.output.shown)
	assert.Equal(t, []string{"result retrieval failed (job job_9): boom"}, f.notifier.errors)
}

func TestCSVFailureStillWritesHeader(t *testing.T) {
	cfg := compactConfig()
	cfg.OutputFormat = format.CSV
	exec := &fakeExecutor{result: &query.Result{JobID: "job_c", Rows: []flatten.Record{{{Name: "x", Value: 1}}}}}
	f := newFixture(t, cfg, exec)
	f.runner.formatter = format.NewFormatterWithCSV(format.CSVEncoderFunc(func([]flatten.Record) (string, error) {
		return "", errors.New("encoder broke")
	}), testutil.NewTestLogger(t))

	require.NoError(t, f.runner.RunQuery(context.Background(), workspace("SELECT 1 AS x", nil)))
	assert.Equal(t, []string{"Results for job job_c:"}, f.output.lines)
	assert.Empty(t, f.notifier.errors)
}

func TestInvocationLogging(t *testing.T) {
	logger, logs := testutil.NewCaptureLogger(t)
	exec := &fakeExecutor{result: &query.Result{JobID: "job_5"}}
	r := New(Options{
		Config:   staticConfig{compactConfig()},
		Executor: exec,
		Output:   &recordingOutput{},
		Notifier: &recordingNotifier{},
		Logger:   logger,
	})

	require.NoError(t, r.RunQuery(context.Background(), workspace("SELECT 1", nil)))
	require.Error(t, r.RunSelectedQuery(context.Background(), workspace("SELECT 1", nil)))

	finished := logs.Find("query finished")
	require.Len(t, finished, 1)
	assert.Contains(t, finished[0], "command=run ")
	assert.Contains(t, finished[0], "job_id=job_5")
	assert.Regexp(t, `invocation_id=[0-9a-f-]{36}`, finished[0])

	failed := logs.Find("query failed")
	require.Len(t, failed, 1)
	assert.Contains(t, failed[0], "command=run_selected")
	assert.Contains(t, failed[0], "kind=input")
}
