package async

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/docextract/internal/batch"
	"github.com/joseph-ayodele/docextract/internal/common"
	"github.com/joseph-ayodele/docextract/internal/pipeline"
)

type runnerFunc func(ctx context.Context, req pipeline.Request) (pipeline.Result, error)

func (f runnerFunc) Run(ctx context.Context, req pipeline.Request) (pipeline.Result, error) {
	return f(ctx, req)
}

func TestSessionQueue_RunsEveryJob(t *testing.T) {
	var inFlight, peak int32
	runner := runnerFunc(func(ctx context.Context, req pipeline.Request) (pipeline.Result, error) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		assert.NotEmpty(t, common.RequestIDFromContext(ctx))
		if req.ProjectID == "bad" {
			return pipeline.Result{}, errors.New("boom")
		}
		return pipeline.Result{Outcome: batch.Outcome{State: batch.StateComplete}}, nil
	})

	q := NewSessionQueue(context.Background(), runner, WithWorkers(2), WithQueueSize(8))
	for _, id := range []string{"a", "b", "bad", "c"} {
		require.NoError(t, q.Enqueue(context.Background(), Job{Request: pipeline.Request{ProjectID: id}}))
	}
	q.Shutdown(context.Background())

	got := map[string]error{}
	for r := range q.Results() {
		assert.NotZero(t, r.Job.ID)
		assert.False(t, r.Job.SubmittedAt.IsZero())
		got[r.Job.Request.ProjectID] = r.Err
	}
	assert.Len(t, got, 4)
	assert.Error(t, got["bad"])
	assert.NoError(t, got["a"])
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestSessionQueue_EnqueueAfterShutdown(t *testing.T) {
	q := NewSessionQueue(context.Background(), runnerFunc(func(context.Context, pipeline.Request) (pipeline.Result, error) {
		return pipeline.Result{}, nil
	}))
	q.Shutdown(context.Background())
	q.Shutdown(context.Background())

	err := q.Enqueue(context.Background(), Job{})
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestSessionQueue_BaseCancellationReachesRunner(t *testing.T) {
	base, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	var once sync.Once
	runner := runnerFunc(func(ctx context.Context, _ pipeline.Request) (pipeline.Result, error) {
		once.Do(func() { close(started) })
		<-ctx.Done()
		return pipeline.Result{Outcome: batch.Outcome{State: batch.StateCancelled}}, nil
	})

	q := NewSessionQueue(base, runner, WithWorkers(1))
	require.NoError(t, q.Enqueue(context.Background(), Job{}))
	<-started
	cancel()
	q.Shutdown(context.Background())

	r := <-q.Results()
	assert.Equal(t, batch.StateCancelled, r.Result.Outcome.State)
}

func TestSessionQueue_SessionTimeout(t *testing.T) {
	runner := runnerFunc(func(ctx context.Context, _ pipeline.Request) (pipeline.Result, error) {
		<-ctx.Done()
		return pipeline.Result{}, ctx.Err()
	})
	q := NewSessionQueue(context.Background(), runner, WithSessionTimeout(20*time.Millisecond))
	require.NoError(t, q.Enqueue(context.Background(), Job{}))
	q.Shutdown(context.Background())

	r := <-q.Results()
	assert.ErrorIs(t, r.Err, context.DeadlineExceeded)
}
