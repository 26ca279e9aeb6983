package async

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/docextract/internal/pipeline"
)

// Job is one session run. ID is assigned on Enqueue when unset.
type Job struct {
	ID          uuid.UUID
	Request     pipeline.Request
	SubmittedAt time.Time
}

// Result is delivered once per accepted job.
type Result struct {
	Job      Job
	Result   pipeline.Result
	Err      error
	Duration time.Duration
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Results() <-chan Result
	Shutdown(ctx context.Context)
}

// Runner is satisfied by *pipeline.Processor.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) (pipeline.Result, error)
}
