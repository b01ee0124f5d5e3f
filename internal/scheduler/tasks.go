package scheduler

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const TaskDeliverUpdate = "notification.update.deliver"

type DeliverUpdatePayload struct {
	UpdateID int64 `json:"updateId"`
}

func NewDeliverUpdateTask(payload DeliverUpdatePayload) (*asynq.Task, error) {
	if payload.UpdateID <= 0 {
		return nil, fmt.Errorf("update id is required")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDeliverUpdate, data), nil
}

func ParseDeliverUpdatePayload(task *asynq.Task) (DeliverUpdatePayload, error) {
	var payload DeliverUpdatePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return DeliverUpdatePayload{}, err
	}
	if payload.UpdateID <= 0 {
		return DeliverUpdatePayload{}, fmt.Errorf("update id is required")
	}
	return payload, nil
}
