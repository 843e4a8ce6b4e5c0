// Package query submits query text to BigQuery and collects the outcome.
//
// The remote service is reached through the Service and Job interfaces so the
// executor can be driven by fakes in tests. NewBigQueryService is the
// production implementation.
package query

import (
	"context"

	"github.com/leapstack-labs/bqrun/internal/flatten"
)

// Credentials are passed through to the client untouched.
type Credentials struct {
	KeyFilename string
	ProjectID   string
}

// Submission is one job as sent to the service.
type Submission struct {
	Text               string
	Location           string
	UseLegacySQL       bool
	MaximumBytesBilled int64 // 0 leaves the project default
	DryRun             bool
}

// Service submits query jobs.
type Service interface {
	Submit(ctx context.Context, sub Submission) (Job, error)
	Close() error
}

// Job is a handle to a submitted job.
type Job interface {
	ID() string
	// BytesProcessed reports the job's total bytes processed statistic.
	BytesProcessed(ctx context.Context) (int64, error)
	// Rows reads the whole result, following pagination to the end.
	Rows(ctx context.Context) ([]flatten.Record, error)
}

// ServiceFactory opens a Service for one invocation.
type ServiceFactory func(ctx context.Context, creds Credentials) (Service, error)
