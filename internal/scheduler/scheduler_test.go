package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

type countingJob struct {
	name string
	runs atomic.Int64
	err  error
}

func (j *countingJob) Name() string { return j.name }

func (j *countingJob) Run(context.Context) error {
	j.runs.Add(1)
	return j.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSchedulerRunsJobs(t *testing.T) {
	job := &countingJob{name: "counter"}

	s := New(testLogger())
	s.Register(job, 10*time.Millisecond)
	s.Start(context.Background())

	deadline := time.After(time.Second)
	for job.runs.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("job ran %d times, want at least 3", job.runs.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}

	s.Stop()

	after := job.runs.Load()
	time.Sleep(30 * time.Millisecond)
	if job.runs.Load() != after {
		t.Error("job kept running after Stop")
	}
}

func TestSchedulerKeepsRunningOnError(t *testing.T) {
	job := &countingJob{name: "flaky", err: errors.New("boom")}

	s := New(testLogger())
	s.Register(job, 10*time.Millisecond)
	s.Start(context.Background())
	defer s.Stop()

	deadline := time.After(time.Second)
	for job.runs.Load() < 2 {
		select {
		case <-deadline:
			t.Fatalf("job ran %d times, want at least 2 despite errors", job.runs.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestSchedulerStopsOnContextCancel(t *testing.T) {
	job := &countingJob{name: "ctx"}

	ctx, cancel := context.WithCancel(context.Background())
	s := New(testLogger())
	s.Register(job, 5*time.Millisecond)
	s.Start(ctx)

	cancel()
	s.Stop()

	after := job.runs.Load()
	time.Sleep(20 * time.Millisecond)
	if job.runs.Load() != after {
		t.Error("job kept running after context cancellation")
	}
}
