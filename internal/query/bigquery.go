package query

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/leapstack-labs/bqrun/internal/flatten"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// NewBigQueryService opens a BigQuery client. An empty project ID lets the
// client detect it from the credentials.
func NewBigQueryService(ctx context.Context, creds Credentials) (Service, error) {
	var opts []option.ClientOption
	if creds.KeyFilename != "" {
		opts = append(opts, option.WithCredentialsFile(creds.KeyFilename))
	}

	projectID := creds.ProjectID
	if projectID == "" {
		projectID = bigquery.DetectProjectID
	}

	client, err := bigquery.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, err
	}
	return &bigQueryService{client: client}, nil
}

type bigQueryService struct {
	client *bigquery.Client
}

func (s *bigQueryService) Submit(ctx context.Context, sub Submission) (Job, error) {
	q := s.client.Query(sub.Text)
	q.Location = sub.Location
	q.UseLegacySQL = sub.UseLegacySQL
	q.DryRun = sub.DryRun
	if sub.MaximumBytesBilled > 0 {
		q.MaxBytesBilled = sub.MaximumBytesBilled
	}

	job, err := q.Run(ctx)
	if err != nil {
		return nil, err
	}
	return &bigQueryJob{job: job}, nil
}

func (s *bigQueryService) Close() error {
	return s.client.Close()
}

type bigQueryJob struct {
	job *bigquery.Job
}

// ID is the identifier the service assigned, or "" when it returned none.
func (j *bigQueryJob) ID() string {
	return j.job.ID()
}

func (j *bigQueryJob) BytesProcessed(ctx context.Context) (int64, error) {
	status := j.job.LastStatus()
	if status == nil {
		var err error
		if status, err = j.job.Status(ctx); err != nil {
			return 0, err
		}
	}
	if err := status.Err(); err != nil {
		return 0, err
	}
	if status.Statistics == nil {
		return 0, errors.New("job status has no statistics")
	}
	return status.Statistics.TotalBytesProcessed, nil
}

func (j *bigQueryJob) Rows(ctx context.Context) ([]flatten.Record, error) {
	it, err := j.job.Read(ctx)
	if err != nil {
		return nil, err
	}

	var rows []flatten.Record
	for {
		var values []bigquery.Value
		err := it.Next(&values)
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", len(rows), err)
		}
		rows = append(rows, convertRow(it.Schema, values))
	}
	return rows, nil
}
