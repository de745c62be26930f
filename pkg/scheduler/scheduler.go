// Runs snapshot jobs on cron schedules until stopped
package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/function61/gokit/logex"
	"github.com/robfig/cron/v3"
)

type JobLastRun struct {
	Started  time.Time
	Finished time.Time
	Error    string
}

type JobFn func(ctx context.Context, logger *log.Logger) error

type Job struct {
	ID          string
	Description string
	NextRun     time.Time
	Running     bool
	LastRun     *JobLastRun
	schedule    cron.Schedule
	run         JobFn
}

var cronParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

func ValidateSpec(spec string) (cron.Schedule, error) {
	return cronParser.Parse(spec)
}

func NewJob(id string, description string, spec string, run JobFn, now time.Time) (*Job, error) {
	schedule, err := ValidateSpec(spec)
	if err != nil {
		return nil, err
	}

	return &Job{
		ID:          id,
		Description: description,
		NextRun:     schedule.Next(now),
		schedule:    schedule,
		run:         run,
	}, nil
}

type jobResult struct {
	job *Job
	run *JobLastRun
}

type Controller struct {
	jobs        []*Job
	jobFinished chan *jobResult
	jobLogger   *log.Logger
}

func New(jobs []*Job, jobLogger *log.Logger) *Controller {
	return &Controller{
		jobs:        jobs,
		jobFinished: make(chan *jobResult, len(jobs)),
		jobLogger:   logex.NonNil(jobLogger),
	}
}

// runs single-threaded. jobs themselves run in their own goroutines and report back via
// channel. returns after ctx is canceled and running jobs have stopped.
func (s *Controller) Run(ctx context.Context) error {
	nextEarliestCh := func() <-chan time.Time {
		if len(s.jobs) == 0 {
			return nil // channel that blocks forever
		}

		earliest := s.jobs[0].NextRun
		for _, job := range s.jobs {
			if job.NextRun.Before(earliest) {
				earliest = job.NextRun
			}
		}

		return time.After(time.Until(earliest))
	}

	recordJobFinished := func(jr *jobResult) {
		jr.job.LastRun = jr.run
		jr.job.Running = false
	}

	nextJobBecomesRunnableCh := nextEarliestCh()

	for {
		select {
		case now := <-nextJobBecomesRunnableCh:
			for _, job := range s.jobs {
				if !job.NextRun.After(now) {
					s.startJob(ctx, job, now)
				}
			}

			nextJobBecomesRunnableCh = nextEarliestCh()
		case jobResult := <-s.jobFinished:
			recordJobFinished(jobResult)
		case <-ctx.Done():
			stillRunning := 0
			for _, job := range s.jobs {
				if job.Running {
					stillRunning++
				}
			}

			// results arrive in any order, so count before receiving
			for ; stillRunning > 0; stillRunning-- {
				recordJobFinished(<-s.jobFinished)
			}

			return nil
		}
	}
}

func (s *Controller) startJob(ctx context.Context, job *Job, now time.Time) {
	// counted from now: missed runs are not caught up
	job.NextRun = job.schedule.Next(now)

	jlog := logex.Prefix("scheduler/"+job.Description, s.jobLogger)
	jlogl := logex.Levels(jlog)

	if job.Running {
		jlogl.Error.Println("can't start job since previous instance is still running")
		return
	}

	job.Running = true

	jlogl.Info.Println("starting")

	go func() {
		started := time.Now()

		errorStr := ""
		if err := job.run(ctx, jlog); err != nil {
			errorStr = err.Error()
		}

		result := &jobResult{
			job: job,
			run: &JobLastRun{
				Started:  started,
				Error:    errorStr,
				Finished: time.Now(),
			},
		}

		duration := result.run.Finished.Sub(result.run.Started)

		if errorStr != "" {
			jlogl.Error.Printf("in %s: %s", duration, errorStr)
		} else {
			jlogl.Info.Printf("completed in %s", duration)
		}

		s.jobFinished <- result
	}()
}
