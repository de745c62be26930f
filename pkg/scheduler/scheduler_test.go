package scheduler

import (
	"context"
	"errors"
	"log"
	"sync/atomic"
	"testing"
	"time"

	"github.com/function61/gokit/assert"
)

func TestNewJobComputesNextRun(t *testing.T) {
	now := time.Date(2026, 10, 19, 15, 30, 0, 0, time.UTC)

	noop := func(context.Context, *log.Logger) error { return nil }

	daily, err := NewJob("photos", "photos", "@daily", noop, now)
	assert.Assert(t, err == nil)
	assert.EqualString(t, daily.NextRun.Format(time.RFC3339), "2026-10-20T00:00:00Z")

	nightly, err := NewJob("photos", "photos", "30 3 * * *", noop, now)
	assert.Assert(t, err == nil)
	assert.EqualString(t, nightly.NextRun.Format(time.RFC3339), "2026-10-20T03:30:00Z")

	_, err = NewJob("photos", "photos", "every now and then", noop, now)
	assert.Assert(t, err != nil)
}

func TestRunsJobsUntilStopped(t *testing.T) {
	runs := int32(0)
	failures := int32(0)

	ok := func(context.Context, *log.Logger) error {
		atomic.AddInt32(&runs, 1)
		return nil
	}
	failing := func(context.Context, *log.Logger) error {
		atomic.AddInt32(&failures, 1)
		return errors.New("disk on fire")
	}

	now := time.Now()

	okJob, err := NewJob("ok", "ok", "@every 1s", ok, now)
	assert.Assert(t, err == nil)
	failingJob, err := NewJob("failing", "failing", "@every 1s", failing, now)
	assert.Assert(t, err == nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2500*time.Millisecond)
	defer cancel()

	assert.Assert(t, New([]*Job{okJob, failingJob}, nil).Run(ctx) == nil)

	assert.Assert(t, atomic.LoadInt32(&runs) >= 1)
	assert.Assert(t, atomic.LoadInt32(&failures) >= 1)

	// Run() has returned so there are no concurrent writers anymore
	assert.Assert(t, !okJob.Running)
	assert.Assert(t, okJob.LastRun != nil && okJob.LastRun.Error == "")
	assert.Assert(t, failingJob.LastRun != nil)
	assert.EqualString(t, failingJob.LastRun.Error, "disk on fire")
}

func TestStopWaitsForEveryRunningJob(t *testing.T) {
	slowFinished := int32(0)

	// doesn't react to cancellation, like a copy that is mid-file
	slow := func(context.Context, *log.Logger) error {
		time.Sleep(1500 * time.Millisecond)
		atomic.StoreInt32(&slowFinished, 1)
		return nil
	}
	fast := func(ctx context.Context, _ *log.Logger) error {
		<-ctx.Done()
		return ctx.Err()
	}

	now := time.Now()

	// slow is listed first, but fast finishes first
	slowJob, err := NewJob("slow", "slow", "@every 1s", slow, now)
	assert.Assert(t, err == nil)
	fastJob, err := NewJob("fast", "fast", "@every 1s", fast, now)
	assert.Assert(t, err == nil)

	ctx, cancel := context.WithTimeout(context.Background(), 1200*time.Millisecond)
	defer cancel()

	assert.Assert(t, New([]*Job{slowJob, fastJob}, nil).Run(ctx) == nil)

	assert.Assert(t, atomic.LoadInt32(&slowFinished) == 1)
	assert.Assert(t, !slowJob.Running)
	assert.Assert(t, !fastJob.Running)
	assert.Assert(t, slowJob.LastRun != nil && slowJob.LastRun.Error == "")
	assert.EqualString(t, fastJob.LastRun.Error, "context deadline exceeded")
}

func TestNoJobsReturnsOnStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Assert(t, New(nil, nil).Run(ctx) == nil)
}
