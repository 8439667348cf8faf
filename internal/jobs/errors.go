package jobs

import "errors"

// ErrNotFound indicates the requested job does not exist.
var ErrNotFound = errors.New("job not found")

// ErrNoQueuedJobs indicates ClaimNext found nothing to run.
var ErrNoQueuedJobs = errors.New("no queued jobs")
