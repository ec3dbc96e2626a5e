package scheduler

import (
	"context"
	"fmt"

	"crm_backend/internal/leads/transport"
	"crm_backend/platform/config"
	"crm_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Requalifier re-runs qualification over a pipeline's leads.
type Requalifier interface {
	ReevaluatePipeline(ctx context.Context, tenantID, pipelineID uuid.UUID) (transport.ReevaluationResponse, error)
}

type Worker struct {
	server      *asynq.Server
	mux         *asynq.ServeMux
	requalifier Requalifier
	log         *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, requalifier Requalifier, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueName(cfg): 1,
		},
	})

	w := newWorker(requalifier, log)
	w.server = server
	return w, nil
}

func newWorker(requalifier Requalifier, log *logger.Logger) *Worker {
	mux := asynq.NewServeMux()
	w := &Worker{mux: mux, requalifier: requalifier, log: log}
	mux.HandleFunc(TaskRequalifyPipeline, w.handleRequalifyPipeline)
	return w
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

func (w *Worker) handleRequalifyPipeline(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseRequalifyPipelinePayload(task)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	tenantID, pipelineID, err := payload.IDs()
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	res, err := w.requalifier.ReevaluatePipeline(ctx, tenantID, pipelineID)
	if err != nil {
		return err
	}

	w.log.Info("pipeline requalified",
		"tenantId", tenantID,
		"pipelineId", pipelineID,
		"evaluated", res.Evaluated,
		"promoted", res.Promoted,
	)
	return nil
}
