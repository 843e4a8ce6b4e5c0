package query

import (
	"context"
	"testing"

	"cloud.google.com/go/bigquery"
	"github.com/leapstack-labs/bqrun/internal/apperr"
	"github.com/leapstack-labs/bqrun/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// jobService hands out a fixed client job, as Submit would after q.Run.
type jobService struct{ job Job }

func (s jobService) Submit(context.Context, Submission) (Job, error) { return s.job, nil }
func (s jobService) Close() error                                    { return nil }

func TestBigQueryJob_IDIsServiceAssigned(t *testing.T) {
	job := &bigQueryJob{job: &bigquery.Job{}}
	assert.Empty(t, job.ID())
}

func TestBigQueryJob_MissingIDIsShapeError(t *testing.T) {
	factory := func(context.Context, Credentials) (Service, error) {
		return jobService{job: &bigQueryJob{job: &bigquery.Job{}}}, nil
	}
	exec := NewExecutor(factory, nil, testutil.NewTestLogger(t))

	for _, dryRun := range []bool{false, true} {
		_, err := exec.Execute(context.Background(), Request{Text: "SELECT 1", DryRun: dryRun, Config: testConfig()})
		require.Error(t, err)
		assert.Equal(t, apperr.Shape, apperr.KindOf(err))
		assert.Contains(t, err.Error(), MsgNoJobID)
	}
}
