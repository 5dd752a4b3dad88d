package consultation

import (
	"context"
	"time"

	"consultly/models"
)

// ConsultationService is the booking lifecycle as seen by handlers and workers.
type ConsultationService interface {
	Quote(ctx context.Context, actor models.Actor, req models.BookingRequest) (models.PriceQuote, error)
	Book(ctx context.Context, actor models.Actor, req models.BookingRequest) (*models.Consultation, error)
	Get(ctx context.Context, actor models.Actor, id string) (*models.Consultation, error)
	List(ctx context.Context, actor models.Actor, limit int64) ([]models.Consultation, error)

	InitiatePayment(ctx context.Context, actor models.Actor, id string) (*models.PaymentInitiation, error)
	ConfirmPayment(ctx context.Context, intentID string) (*models.ConfirmationResult, error)

	Complete(ctx context.Context, actor models.Actor, id string) (*models.Consultation, error)
	Cancel(ctx context.Context, actor models.Actor, id, reason string) (*models.CancellationResult, error)
	Reschedule(ctx context.Context, actor models.Actor, id string, req models.RescheduleRequest) (*models.Consultation, error)
	NoShow(ctx context.Context, actor models.Actor, id, reason string) (*models.Consultation, error)
	RetryRefund(ctx context.Context, actor models.Actor, id string) (*models.Consultation, error)

	UpdateNotes(ctx context.Context, actor models.Actor, id, notes string) (*models.Consultation, error)
	SubmitFeedback(ctx context.Context, actor models.Actor, id string, req models.FeedbackRequest) (*models.Consultation, error)
}

// Notifier dispatches a notification. Delivery happens out of band.
type Notifier interface {
	Notify(ctx context.Context, n models.NotificationPayload) error
}

// RefundScheduler queues a later attempt at a failed refund.
type RefundScheduler interface {
	ScheduleRefundRetry(ctx context.Context, consultationID string, delay time.Duration) error
}
