package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"consultly/config"
	"consultly/models"
	"consultly/services/consultation"
	"consultly/services/notification"
	"consultly/services/tasks"
)

// PushDeliverer delivers one queued notification.
type PushDeliverer interface {
	Send(ctx context.Context, n models.NotificationPayload) error
}

// RefundRetrier settles an outstanding refund.
type RefundRetrier interface {
	RetryRefund(ctx context.Context, actor models.Actor, id string) (*models.Consultation, error)
}

// Worker consumes the notification and refund retry queues.
type Worker struct {
	push    PushDeliverer
	refunds RefundRetrier
	logger  *zap.Logger
}

// NewWorker builds the task handlers. A nil push deliverer drops notifications
// after logging them, which is how environments without Firebase run.
func NewWorker(push PushDeliverer, refunds RefundRetrier, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{push: push, refunds: refunds, logger: logger}
}

func (w *Worker) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypeSendNotification, w.handleNotification)
	mux.HandleFunc(tasks.TypeRetryRefund, w.handleRefundRetry)
	return mux
}

func (w *Worker) handleNotification(ctx context.Context, t *asynq.Task) error {
	n, err := tasks.DecodeNotification(t)
	if err != nil {
		w.logger.Error("Invalid notification payload", zap.Error(err))
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	if w.push == nil {
		w.logger.Info("Push delivery disabled, dropping notification",
			zap.String("notificationId", n.ID), zap.String("kind", string(n.Kind)))
		return nil
	}

	err = w.push.Send(ctx, n)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, notification.ErrNoDeviceToken):
		w.logger.Info("Recipient has no device, skipping push",
			zap.String("notificationId", n.ID), zap.String("recipientId", n.Recipient.ID))
		return nil
	default:
		w.logger.Warn("Failed to deliver notification",
			zap.String("notificationId", n.ID), zap.Error(err))
		return err
	}
}

func (w *Worker) handleRefundRetry(ctx context.Context, t *asynq.Task) error {
	p, err := tasks.DecodeRefundRetry(t)
	if err != nil {
		w.logger.Error("Invalid refund retry payload", zap.Error(err))
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	c, err := w.refunds.RetryRefund(ctx, models.SystemActor, p.ConsultationID)
	switch {
	case err == nil:
		w.logger.Info("Refund retry settled",
			zap.String("consultationId", p.ConsultationID), zap.String("status", string(c.Status)))
		return nil
	case errors.Is(err, consultation.ErrNotFound), errors.Is(err, consultation.ErrInvalidTransition):
		w.logger.Warn("Refund retry no longer applicable",
			zap.String("consultationId", p.ConsultationID), zap.Error(err))
		return nil
	default:
		w.logger.Warn("Refund retry failed, will retry",
			zap.String("consultationId", p.ConsultationID), zap.Error(err))
		return err
	}
}

// Start runs the asynq server in the background, retrying startup with a
// growing pause, and keeps an eye on the queue's Redis connection.
func (w *Worker) Start() *asynq.Server {
	redisOpts := asynq.RedisClientOpt{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisQueueDB,
	}
	concurrency := config.AppConfig.WorkerConcurrency
	if concurrency <= 0 {
		concurrency = 10
	}

	srv := asynq.NewServer(
		redisOpts,
		asynq.Config{
			Concurrency: concurrency,
			Queues: map[string]int{
				"default": 1,
			},
			Logger: w.logger.Sugar(),
		},
	)
	mux := w.Mux()

	go w.monitorRedisConnection()

	go func() {
		w.logger.Info("Starting background worker")
		const maxAttempts = 5

		for attempt := 1; attempt <= maxAttempts; attempt++ {
			err := srv.Run(mux)
			if err == nil {
				return
			}
			w.logger.Error("Worker failed to start",
				zap.Int("attempt", attempt), zap.Int("maxAttempts", maxAttempts), zap.Error(err))
			if attempt == maxAttempts {
				w.logger.Fatal("Worker start attempts exhausted")
			}
			time.Sleep(time.Duration(attempt*2) * time.Second)
		}
	}()
	return srv
}

// monitorRedisConnection pings the queue database to surface outages at runtime.
func (w *Worker) monitorRedisConnection() {
	client := redis.NewClient(&redis.Options{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisQueueDB,
	})
	defer client.Close()

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		if err := client.Ping(context.Background()).Err(); err != nil {
			w.logger.Warn("Queue Redis connection lost", zap.Error(err))
		}
	}
}
