package payment

import (
	"context"
	"errors"

	"consultly/models"
)

var (
	// ErrIntentNotFound means the processor has no intent with the given id.
	ErrIntentNotFound = errors.New("payment intent not found")
	// ErrProcessorTimeout means the processor did not answer in time. Retryable.
	ErrProcessorTimeout = errors.New("payment processor timeout")
)

// Processor is the external payment collaborator. Amounts are in minor units.
type Processor interface {
	CreateIntent(ctx context.Context, req models.CreateIntentRequest) (*models.PaymentIntent, error)
	RetrieveIntent(ctx context.Context, intentID string) (*models.PaymentIntent, error)
	Refund(ctx context.Context, req models.RefundRequest) (*models.Refund, error)
	// ListRefunds returns the refunds already issued against an intent,
	// whatever their status.
	ListRefunds(ctx context.Context, intentID string) ([]models.Refund, error)
}
