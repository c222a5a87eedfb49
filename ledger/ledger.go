// Package ledger records one row per processed job. Recording is
// best-effort: failures are logged and never reach the caller.
package ledger

import (
	"context"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"

	"github.com/wudi/pdfstamp/observability"
)

// Job statuses.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Job is one ledger row.
type Job struct {
	ID          string
	Operation   string
	InputBytes  int
	OutputBytes int
	Digest      string // blake2b-256 of the output, hex
	Duration    time.Duration
	Status      string
	Error       string
	CreatedAt   time.Time
}

// NewJob starts a job with a fresh id.
func NewJob(operation string, input []byte) Job {
	return Job{
		ID:         uuid.NewString(),
		Operation:  operation,
		InputBytes: len(input),
		CreatedAt:  time.Now().UTC(),
	}
}

// Finish fills in the outcome.
func (j *Job) Finish(output []byte, err error) {
	j.Duration = time.Since(j.CreatedAt)
	if err != nil {
		j.Status = StatusFailed
		j.Error = err.Error()
		return
	}
	j.Status = StatusOK
	j.OutputBytes = len(output)
	j.Digest = Digest(output)
}

// Digest is the hex blake2b-256 sum of data.
func Digest(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Recorder stores jobs.
type Recorder interface {
	Record(ctx context.Context, job Job) error
	Close() error
}

// Nop discards every job.
type Nop struct{}

func (Nop) Record(context.Context, Job) error { return nil }
func (Nop) Close() error                      { return nil }

// BestEffort logs recording failures instead of returning them.
type BestEffort struct {
	Recorder Recorder
	Logger   observability.Logger
}

func (b BestEffort) Record(ctx context.Context, job Job) error {
	if err := b.Recorder.Record(ctx, job); err != nil && b.Logger != nil {
		b.Logger.Warn("ledger write failed",
			observability.String("job_id", job.ID),
			observability.String("operation", job.Operation),
			observability.Error("error", err))
	}
	return nil
}

func (b BestEffort) Close() error { return b.Recorder.Close() }
