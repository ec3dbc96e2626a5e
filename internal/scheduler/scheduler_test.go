package scheduler

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"crm_backend/internal/leads/transport"
	"crm_backend/platform/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type schedulerConfig struct {
	url         string
	tlsInsecure bool
	queue       string
}

func (c schedulerConfig) GetRedisURL() string       { return c.url }
func (c schedulerConfig) GetRedisTLSInsecure() bool { return c.tlsInsecure }
func (c schedulerConfig) GetAsynqQueueName() string { return c.queue }
func (c schedulerConfig) GetAsynqConcurrency() int  { return 1 }

type fakeRequalifier struct {
	calls    []uuid.UUID
	response transport.ReevaluationResponse
	err      error
}

func (f *fakeRequalifier) ReevaluatePipeline(_ context.Context, _, pipelineID uuid.UUID) (transport.ReevaluationResponse, error) {
	f.calls = append(f.calls, pipelineID)
	return f.response, f.err
}

func testLogger() *logger.Logger {
	return logger.NewWithWriter("test", io.Discard)
}

func TestNewClientRequiresRedisURL(t *testing.T) {
	_, err := NewClient(schedulerConfig{})
	require.Error(t, err)
}

func TestRedisClientOptTLS(t *testing.T) {
	opt, err := redisClientOpt("rediss://:secret@cache.internal:6380/2", true)
	require.NoError(t, err)
	assert.Equal(t, "cache.internal:6380", opt.Addr)
	assert.Equal(t, "secret", opt.Password)
	assert.Equal(t, 2, opt.DB)
	require.NotNil(t, opt.TLSConfig)
	assert.True(t, opt.TLSConfig.InsecureSkipVerify)

	opt, err = redisClientOpt("redis://localhost:6379/0", false)
	require.NoError(t, err)
	assert.Nil(t, opt.TLSConfig)
}

func TestScheduleRequalificationEnqueuesOnQueue(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := NewClient(schedulerConfig{url: "redis://" + mr.Addr(), queue: "leads"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	tenantID, pipelineID := uuid.New(), uuid.New()
	require.NoError(t, client.ScheduleRequalification(context.Background(), tenantID, pipelineID))
	require.NoError(t, client.ScheduleRequalification(context.Background(), tenantID, pipelineID), "duplicates are absorbed")

	pending, err := mr.List("asynq:{leads}:pending")
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestNilClientIsNoop(t *testing.T) {
	var client *Client
	assert.NoError(t, client.ScheduleRequalification(context.Background(), uuid.New(), uuid.New()))
	assert.NoError(t, client.Close())
}

func TestHandleRequalifyPipeline(t *testing.T) {
	tenantID, pipelineID := uuid.New(), uuid.New()
	task, err := NewRequalifyPipelineTask(RequalifyPipelinePayload{
		TenantID:   tenantID.String(),
		PipelineID: pipelineID.String(),
	})
	require.NoError(t, err)
	assert.Equal(t, TaskRequalifyPipeline, task.Type())

	t.Run("runs the requalifier", func(t *testing.T) {
		req := &fakeRequalifier{response: transport.ReevaluationResponse{Evaluated: 4, Promoted: 1}}
		w := newWorker(req, testLogger())

		require.NoError(t, w.handleRequalifyPipeline(context.Background(), task))
		assert.Equal(t, []uuid.UUID{pipelineID}, req.calls)
	})

	t.Run("requalifier errors are retried", func(t *testing.T) {
		boom := errors.New("db down")
		w := newWorker(&fakeRequalifier{err: boom}, testLogger())

		err := w.handleRequalifyPipeline(context.Background(), task)
		require.ErrorIs(t, err, boom)
		assert.NotErrorIs(t, err, asynq.SkipRetry)
	})

	t.Run("malformed payloads are not retried", func(t *testing.T) {
		req := &fakeRequalifier{}
		w := newWorker(req, testLogger())

		bad, err := NewRequalifyPipelineTask(RequalifyPipelinePayload{TenantID: "nope", PipelineID: pipelineID.String()})
		require.NoError(t, err)
		require.ErrorIs(t, w.handleRequalifyPipeline(context.Background(), bad), asynq.SkipRetry)

		garbage := asynq.NewTask(TaskRequalifyPipeline, []byte("{"))
		require.ErrorIs(t, w.handleRequalifyPipeline(context.Background(), garbage), asynq.SkipRetry)
		assert.Empty(t, req.calls)
	})
}

type fakePruner struct {
	successBefore time.Time
	otherBefore   time.Time
	err           error
}

func (f *fakePruner) DeleteAssignmentRecordsBefore(_ context.Context, successBefore, otherBefore time.Time) (int64, error) {
	f.successBefore = successBefore
	f.otherBefore = otherBefore
	return 3, f.err
}

func TestAssignmentHistoryCleanupCutoffs(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	pruner := &fakePruner{}
	c := NewAssignmentHistoryCleanup(pruner, testLogger(), 0, 48*time.Hour, 0)
	c.now = func() time.Time { return now }

	c.cleanup(context.Background())

	assert.Equal(t, now.Add(-48*time.Hour), pruner.successBefore)
	assert.Equal(t, now.Add(-defaultSkippedRetention), pruner.otherBefore)
	assert.Equal(t, defaultAssignmentCleanupInterval, c.interval)
}

func TestAssignmentHistoryCleanupStopsWithContext(t *testing.T) {
	pruner := &fakePruner{err: errors.New("boom")}
	c := NewAssignmentHistoryCleanup(pruner, testLogger(), time.Millisecond, 0, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup did not stop after context cancellation")
	}
}
