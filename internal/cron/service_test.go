package cron

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lotkeeper/lotkeeper-backend/pkg/logger"
)

type fakeLock struct {
	held     bool
	acquires int
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	f.acquires++
	if f.held {
		return false, nil
	}
	f.held = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error {
	f.held = false
	return nil
}

type countingJob struct {
	name string
	err  error
	runs int
}

func (j *countingJob) Name() string { return j.name }

func (j *countingJob) Run(context.Context) error {
	j.runs++
	return j.err
}

func newCronTestLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard})
}

func TestServiceRunCycleRunsAllJobsEvenOnFailure(t *testing.T) {
	success := &countingJob{name: "success"}
	failure := &countingJob{name: "fail", err: errors.New("boom")}

	service, err := NewService(ServiceParams{
		Logger:   newCronTestLogger(),
		Registry: NewRegistry(success, failure),
		Lock:     &fakeLock{},
	})
	require.NoError(t, err)

	require.NoError(t, service.runCycle(context.Background()))
	assert.Equal(t, 1, success.runs)
	assert.Equal(t, 1, failure.runs, "failing job must not block later jobs")
}

func TestServiceRunCycleSkipsWhenLockHeld(t *testing.T) {
	job := &countingJob{name: "reconcile"}
	lock := &fakeLock{held: true}

	service, err := NewService(ServiceParams{
		Logger:   newCronTestLogger(),
		Registry: NewRegistry(job),
		Lock:     lock,
	})
	require.NoError(t, err)

	require.NoError(t, service.runCycle(context.Background()))
	assert.Zero(t, job.runs)
	assert.Equal(t, 1, lock.acquires)
}

func TestServiceReleasesLockAfterCycle(t *testing.T) {
	lock := &fakeLock{}
	service, err := NewService(ServiceParams{
		Logger:   newCronTestLogger(),
		Registry: NewRegistry(&countingJob{name: "noop"}),
		Lock:     lock,
	})
	require.NoError(t, err)

	require.NoError(t, service.runCycle(context.Background()))
	assert.False(t, lock.held)
}

func TestNewServiceRequiresLock(t *testing.T) {
	_, err := NewService(ServiceParams{Logger: newCronTestLogger()})
	require.Error(t, err)
}

func TestRegistryCopiesJobSlice(t *testing.T) {
	jobA := &countingJob{name: "a"}
	jobB := &countingJob{name: "b"}

	registry := NewRegistry(jobA)
	registry.Register(jobB)
	registry.Register(nil)

	jobs := registry.Jobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, "a", jobs[0].Name())
	assert.Equal(t, "b", jobs[1].Name())

	jobs[0] = nil
	assert.NotNil(t, registry.Jobs()[0], "mutating the returned slice must not affect the registry")
}
