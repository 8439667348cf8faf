package jobs

import "context"

// JobsRepo defines persistence operations for jobs and their LLM attempts.
type JobsRepo interface {
	Create(ctx context.Context, job Job) error
	GetByID(ctx context.Context, jobID string) (Job, error)
	ListByPresale(ctx context.Context, presaleID string, limit, offset int) ([]Job, error)

	// List returns jobs across all presales, newest first.
	List(ctx context.Context, limit, offset int) ([]Job, error)

	// ClaimNext atomically moves the oldest queued job to running and
	// returns it. At most one caller wins a given job. Returns
	// ErrNoQueuedJobs when the queue is empty.
	ClaimNext(ctx context.Context) (Job, error)

	// UpdateProgress raises progress and replaces the message on a running
	// job. Progress never decreases; terminal jobs are not touched.
	UpdateProgress(ctx context.Context, jobID string, progress int, message string) error

	// MarkDone finalizes a job at progress 100 with message "ok".
	MarkDone(ctx context.Context, jobID string) error

	// MarkError finalizes a job with an error code and message. A job
	// already in a terminal status is left untouched.
	MarkError(ctx context.Context, jobID string, errorCode, message string) error

	// SetAttempts records how many LLM attempts the job consumed.
	SetAttempts(ctx context.Context, jobID string, attempts int) error

	AppendAttempt(ctx context.Context, attempt Attempt) error

	// ListAttempts returns a job's attempts, most recent first.
	ListAttempts(ctx context.Context, jobID string) ([]Attempt, error)
}
