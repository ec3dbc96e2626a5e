package scheduler

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const TaskRequalifyPipeline = "leads:requalify_pipeline"

type RequalifyPipelinePayload struct {
	TenantID   string `json:"tenantId"`
	PipelineID string `json:"pipelineId"`
}

// IDs parses both identifiers of the payload.
func (p RequalifyPipelinePayload) IDs() (tenantID, pipelineID uuid.UUID, err error) {
	tenantID, err = uuid.Parse(p.TenantID)
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("tenant id: %w", err)
	}
	pipelineID, err = uuid.Parse(p.PipelineID)
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("pipeline id: %w", err)
	}
	return tenantID, pipelineID, nil
}

func NewRequalifyPipelineTask(payload RequalifyPipelinePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRequalifyPipeline, data), nil
}

func ParseRequalifyPipelinePayload(task *asynq.Task) (RequalifyPipelinePayload, error) {
	var payload RequalifyPipelinePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return RequalifyPipelinePayload{}, err
	}
	return payload, nil
}
