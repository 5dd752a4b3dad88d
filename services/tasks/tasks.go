package tasks

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"consultly/models"
)

const (
	TypeSendNotification = "notification:send"
	TypeRetryRefund      = "refund:retry"
)

const (
	notificationMaxRetry = 5
	refundMaxRetry       = 10
)

// NewNotificationTask wraps a notification for immediate delivery by the worker.
// The notification id doubles as the task id so a payload is never queued twice.
func NewNotificationTask(payload models.NotificationPayload) (*asynq.Task, []asynq.Option, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, fmt.Errorf("tasks: encode notification: %w", err)
	}
	task := asynq.NewTask(TypeSendNotification, b)
	opts := []asynq.Option{asynq.MaxRetry(notificationMaxRetry)}
	if payload.ID != "" {
		opts = append(opts, asynq.TaskID(payload.ID))
	}
	return task, opts, nil
}

// NewRefundRetryTask schedules another refund attempt for a cancelled consultation.
func NewRefundRetryTask(payload models.RefundRetryPayload, delay time.Duration) (*asynq.Task, []asynq.Option, error) {
	if payload.ConsultationID == "" {
		return nil, nil, fmt.Errorf("tasks: refund retry needs a consultation id")
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, fmt.Errorf("tasks: encode refund retry: %w", err)
	}
	task := asynq.NewTask(TypeRetryRefund, b)
	opts := []asynq.Option{asynq.MaxRetry(refundMaxRetry)}
	if delay > 0 {
		opts = append(opts, asynq.ProcessIn(delay))
	}
	return task, opts, nil
}

func DecodeNotification(t *asynq.Task) (models.NotificationPayload, error) {
	var p models.NotificationPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return p, fmt.Errorf("tasks: decode notification: %w", err)
	}
	return p, nil
}

func DecodeRefundRetry(t *asynq.Task) (models.RefundRetryPayload, error) {
	var p models.RefundRetryPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return p, fmt.Errorf("tasks: decode refund retry: %w", err)
	}
	if p.ConsultationID == "" {
		return p, fmt.Errorf("tasks: refund retry payload has no consultation id")
	}
	return p, nil
}
