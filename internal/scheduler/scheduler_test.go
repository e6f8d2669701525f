package scheduler

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minqi/freedom/pkg/logger"
)

type fakeJob struct {
	name     string
	schedule string
	runs     atomic.Int32
}

func (j *fakeJob) Name() string     { return j.name }
func (j *fakeJob) Schedule() string { return j.schedule }

func (j *fakeJob) Run(ctx context.Context) error {
	j.runs.Add(1)
	return nil
}

func TestAddJobRejectsDuplicates(t *testing.T) {
	s := New(logger.NewNop())
	job := &fakeJob{name: "sync", schedule: "0 0 18 * * *"}

	require.NoError(t, s.AddJob(job))
	err := s.AddJob(job)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestAddJobRejectsBadSchedule(t *testing.T) {
	s := New(logger.NewNop())

	err := s.AddJob(&fakeJob{name: "broken", schedule: "not a cron expression"})
	require.Error(t, err)
}

func TestRunJobImmediately(t *testing.T) {
	s := New(logger.NewNop())
	job := &fakeJob{name: "sync", schedule: "0 0 18 * * *"}
	require.NoError(t, s.AddJob(job))

	require.NoError(t, s.RunJob("sync"))

	assert.Eventually(t, func() bool {
		history, err := s.History("sync")
		if err != nil {
			return false
		}
		latest := history.Latest()
		return latest != nil && latest.Success
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, int32(1), job.runs.Load())
}

func TestRunJobUnknown(t *testing.T) {
	s := New(logger.NewNop())

	err := s.RunJob("missing")
	require.Error(t, err)
}

func TestJobsListsRegisteredNames(t *testing.T) {
	s := New(logger.NewNop())
	require.NoError(t, s.AddJob(&fakeJob{name: "a", schedule: "@daily"}))
	require.NoError(t, s.AddJob(&fakeJob{name: "b", schedule: "@hourly"}))

	assert.ElementsMatch(t, []string{"a", "b"}, s.Jobs())
}

func TestJobHistoryTrimsToLimit(t *testing.T) {
	h := &JobHistory{}
	for i := 0; i < historyLimit+10; i++ {
		h.AddResult(JobResult{JobName: fmt.Sprintf("run-%d", i), Success: i%2 == 0})
	}

	assert.Len(t, h.Results, historyLimit)
	assert.Equal(t, fmt.Sprintf("run-%d", historyLimit+9), h.Latest().JobName)
}

func TestJobHistorySuccessRate(t *testing.T) {
	h := &JobHistory{}
	assert.Zero(t, h.SuccessRate())

	h.AddResult(JobResult{Success: true})
	h.AddResult(JobResult{Success: true})
	h.AddResult(JobResult{Success: false})
	assert.InDelta(t, 2.0/3.0, h.SuccessRate(), 1e-9)
}
