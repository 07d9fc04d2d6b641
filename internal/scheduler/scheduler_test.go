package scheduler

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	name  string
	err   error
	calls atomic.Int32
}

func (j *countingJob) Run() error {
	j.calls.Add(1)
	return j.err
}

func (j *countingJob) Name() string { return j.name }

func TestAddJob_InvalidSchedule(t *testing.T) {
	s := New(zerolog.Nop())
	err := s.AddJob("not a schedule", &countingJob{name: "bad"})
	assert.Error(t, err)
	assert.Empty(t, s.Status())
}

func TestRunNow_TracksStatus(t *testing.T) {
	s := New(zerolog.Nop())
	ok := &countingJob{name: "ok"}
	failing := &countingJob{name: "failing", err: errors.New("provider down")}

	require.NoError(t, s.AddJob("@every 1h", ok))
	require.NoError(t, s.AddJob("@every 1h", failing))

	require.NoError(t, s.RunNow(ok))
	require.Error(t, s.RunNow(failing))
	require.Error(t, s.RunNow(failing))

	status := s.Status()
	require.Len(t, status, 2)

	assert.Equal(t, "failing", status[0].Name)
	assert.Equal(t, 2, status[0].RunCount)
	assert.Equal(t, 2, status[0].ErrorCount)
	assert.Equal(t, "provider down", status[0].LastError)
	assert.Equal(t, int32(2), failing.calls.Load())

	assert.Equal(t, "ok", status[1].Name)
	assert.Equal(t, 1, status[1].RunCount)
	assert.Empty(t, status[1].LastError)
	assert.NotNil(t, status[1].LastRun)
	assert.Equal(t, "@every 1h", status[1].Schedule)
}

func TestStartStop(t *testing.T) {
	s := New(zerolog.Nop())
	require.NoError(t, s.AddJob("@every 1h", &countingJob{name: "idle"}))
	s.Start()

	status := s.Status()
	require.Len(t, status, 1)
	assert.NotNil(t, status[0].NextRun)

	s.Stop()
}
