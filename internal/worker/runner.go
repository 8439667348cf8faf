// Package worker polls the jobs queue and drives the analysis pipeline.
package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"presale-backend/internal/jobs"
	"presale-backend/internal/shared/telemetry"
)

const (
	defaultPollInterval = 3 * time.Second
	defaultConcurrency  = 4
	defaultJobTimeout   = 10 * time.Minute
)

// Runner claims queued jobs and processes them with bounded concurrency.
// Each job runs under its own timeout.
type Runner struct {
	Jobs         jobs.JobsRepo
	Processor    *jobs.Processor
	PollInterval time.Duration
	Concurrency  int
	JobTimeout   time.Duration
}

// NewRunner constructs a Runner with defaults applied.
func NewRunner(jobsRepo jobs.JobsRepo, processor *jobs.Processor, pollInterval time.Duration, concurrency int, jobTimeout time.Duration) *Runner {
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	if jobTimeout <= 0 {
		jobTimeout = defaultJobTimeout
	}
	return &Runner{
		Jobs:         jobsRepo,
		Processor:    processor,
		PollInterval: pollInterval,
		Concurrency:  concurrency,
		JobTimeout:   jobTimeout,
	}
}

// Run polls until ctx is canceled, then waits for in-flight jobs to
// finish. Claims keep going while the queue has work; the poll interval
// only applies when the queue is empty.
func (r *Runner) Run(ctx context.Context) {
	sem := make(chan struct{}, r.Concurrency)
	var wg sync.WaitGroup

	telemetry.Info("worker started", map[string]any{
		"concurrency":  r.Concurrency,
		"pollInterval": r.PollInterval.String(),
		"jobTimeout":   r.JobTimeout.String(),
	})

pollLoop:
	for {
		select {
		case <-ctx.Done():
			break pollLoop
		case sem <- struct{}{}:
		}

		job, err := r.Jobs.ClaimNext(ctx)
		if err != nil {
			<-sem
			if errors.Is(err, jobs.ErrNoQueuedJobs) {
				select {
				case <-ctx.Done():
					break pollLoop
				case <-time.After(r.PollInterval):
				}
				continue
			}
			if ctx.Err() != nil {
				break pollLoop
			}
			telemetry.Error("claim failed", map[string]any{"err": err.Error()})
			select {
			case <-ctx.Done():
				break pollLoop
			case <-time.After(r.PollInterval):
			}
			continue
		}

		wg.Add(1)
		go func(claimed jobs.Job) {
			defer wg.Done()
			defer func() { <-sem }()
			r.runJob(claimed)
		}(job)
	}

	wg.Wait()
	telemetry.Info("worker stopped", nil)
}

// runJob executes one job under the configured timeout. The processor
// writes terminal statuses on a background context, so expiry here never
// strands a running job.
func (r *Runner) runJob(job jobs.Job) {
	ctx, cancel := context.WithTimeout(context.Background(), r.JobTimeout)
	defer cancel()

	telemetry.Info("job claimed", map[string]any{
		"jobId":     job.ID,
		"presaleId": job.PresaleID,
	})
	r.Processor.Process(ctx, job)
}
