package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"consultly/models"
	"consultly/services/tasks"
)

// enqueuer is the part of *asynq.Client the dispatcher needs.
type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Dispatcher queues notifications and refund retries for the background worker.
type Dispatcher struct {
	queue  enqueuer
	logger *zap.Logger
}

func NewDispatcher(queue enqueuer, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{queue: queue, logger: logger}
}

// Notify enqueues one notification. Re-queuing a payload that is already
// pending is not an error.
func (d *Dispatcher) Notify(ctx context.Context, n models.NotificationPayload) error {
	task, opts, err := tasks.NewNotificationTask(n)
	if err != nil {
		return err
	}
	info, err := d.queue.EnqueueContext(ctx, task, opts...)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		d.logger.Debug("Notification already queued", zap.String("notificationId", n.ID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to enqueue notification %s: %w", n.ID, err)
	}
	d.logger.Debug("Notification queued",
		zap.String("taskId", info.ID),
		zap.String("kind", string(n.Kind)),
		zap.String("recipientId", n.Recipient.ID),
	)
	return nil
}

func (d *Dispatcher) ScheduleRefundRetry(ctx context.Context, consultationID string, delay time.Duration) error {
	task, opts, err := tasks.NewRefundRetryTask(models.RefundRetryPayload{ConsultationID: consultationID}, delay)
	if err != nil {
		return err
	}
	info, err := d.queue.EnqueueContext(ctx, task, opts...)
	if err != nil {
		return fmt.Errorf("failed to schedule refund retry for %s: %w", consultationID, err)
	}
	d.logger.Info("Refund retry scheduled",
		zap.String("consultationId", consultationID),
		zap.String("taskId", info.ID),
		zap.Duration("delay", delay),
	)
	return nil
}
