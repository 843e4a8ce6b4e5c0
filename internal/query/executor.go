package query

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/leapstack-labs/bqrun/internal/apperr"
	"github.com/leapstack-labs/bqrun/internal/cli/config"
	"github.com/leapstack-labs/bqrun/internal/flatten"
	"github.com/leapstack-labs/bqrun/internal/observability"
	"google.golang.org/api/googleapi"
)

// User-facing messages for execution failures.
const (
	MsgSubmissionFailed = "Failed to query BigQuery"
	MsgNoJobID          = "no job ID"
	MsgRetrievalFailed  = "result retrieval failed"
)

// Request is one query invocation.
type Request struct {
	Text   string
	DryRun bool
	// Config is the snapshot taken when the command started.
	Config config.Config
	// OnSubmit, if set, is called once with the job ID after the service
	// accepted the job and before results are read.
	OnSubmit func(jobID string)
}

// Result is the outcome of a successful Execute.
type Result struct {
	JobID          string
	DryRun         bool
	BytesProcessed int64
	Rows           []flatten.Record
}

// Executor runs requests against the service built by its factory.
type Executor struct {
	factory ServiceFactory
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewExecutor creates an Executor. metrics may be nil.
func NewExecutor(factory ServiceFactory, metrics *observability.Metrics, logger *slog.Logger) *Executor {
	if factory == nil {
		factory = NewBigQueryService
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Executor{factory: factory, metrics: metrics, logger: logger}
}

// Execute submits req and, unless it is a dry run, reads every result row.
// A dry run never reads rows. Nothing is retried.
func (e *Executor) Execute(ctx context.Context, req Request) (*Result, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, apperr.New(apperr.Input, "query text is empty")
	}

	start := time.Now()
	outcome := observability.OutcomeSuccess
	defer func() {
		e.metrics.ObserveJob(req.DryRun, outcome, time.Since(start))
	}()

	cfg := req.Config
	svc, err := e.factory(ctx, Credentials{KeyFilename: cfg.KeyFilename, ProjectID: cfg.ProjectID})
	if err != nil {
		outcome = observability.OutcomeSubmissionError
		return nil, apperr.Wrap(apperr.Submission, MsgSubmissionFailed, remote(err))
	}
	defer func() {
		if err := svc.Close(); err != nil {
			e.logger.Debug("closing query service", "error", err)
		}
	}()

	job, err := svc.Submit(ctx, Submission{
		Text:               text,
		Location:           cfg.Location,
		UseLegacySQL:       cfg.UseLegacySQL,
		MaximumBytesBilled: cfg.MaximumBytesBilled,
		DryRun:             req.DryRun,
	})
	if err != nil {
		outcome = observability.OutcomeSubmissionError
		return nil, apperr.Wrap(apperr.Submission, MsgSubmissionFailed, remote(err))
	}
	if job == nil || job.ID() == "" {
		outcome = observability.OutcomeShapeError
		return nil, apperr.New(apperr.Shape, MsgNoJobID)
	}

	jobID := job.ID()
	e.logger.Debug("job submitted", "job_id", jobID, "dry_run", req.DryRun)
	if req.OnSubmit != nil {
		req.OnSubmit(jobID)
	}

	res := &Result{JobID: jobID, DryRun: req.DryRun}

	if req.DryRun {
		bytes, err := job.BytesProcessed(ctx)
		if err != nil {
			outcome = observability.OutcomeRetrievalError
			return nil, apperr.Wrap(apperr.Retrieval, MsgRetrievalFailed, remote(err)).WithJob(jobID)
		}
		res.BytesProcessed = bytes
		e.metrics.AddBytesProcessed(bytes)
		return res, nil
	}

	rows, err := job.Rows(ctx)
	if err != nil {
		outcome = observability.OutcomeRetrievalError
		return nil, apperr.Wrap(apperr.Retrieval, MsgRetrievalFailed, remote(err)).WithJob(jobID)
	}
	res.Rows = rows
	e.metrics.AddRows(len(rows))
	e.logger.Debug("job finished", "job_id", jobID, "rows", len(rows), "duration", time.Since(start))
	return res, nil
}

// remoteError shows the service's own message while keeping the original
// error in the chain.
type remoteError struct {
	msg string
	err error
}

func (r *remoteError) Error() string { return r.msg }
func (r *remoteError) Unwrap() error { return r.err }

func remote(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Message != "" {
		return &remoteError{msg: gerr.Message, err: err}
	}
	return err
}
