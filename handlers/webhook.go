package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.uber.org/zap"

	"consultly/models"
	"consultly/services/consultation"
)

const maxWebhookBody = int64(65536)

// PaymentConfirmer is the slice of the consultation service the webhook drives.
type PaymentConfirmer interface {
	ConfirmPayment(ctx context.Context, intentID string) (*models.ConfirmationResult, error)
}

// EventClaimer records processed event ids. *utils.EventDeduper implements it.
type EventClaimer interface {
	Claim(ctx context.Context, eventID string) (bool, error)
	Release(ctx context.Context, eventID string) error
}

type WebhookHandler struct {
	confirmer PaymentConfirmer
	events    EventClaimer
	secret    string
	logger    *zap.Logger
}

// NewWebhookHandler builds the Stripe webhook endpoint. events may be nil, in
// which case redelivered events are handled again and rely on the idempotent
// confirmation alone.
func NewWebhookHandler(confirmer PaymentConfirmer, events EventClaimer, secret string, logger *zap.Logger) *WebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandler{confirmer: confirmer, events: events, secret: secret, logger: logger}
}

func (h *WebhookHandler) StripeWebhookHandler(c *gin.Context) {
	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Unable to read webhook body"})
		return
	}

	event, err := webhook.ConstructEventWithOptions(payload, c.GetHeader("Stripe-Signature"), h.secret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		h.logger.Warn("Rejected webhook with invalid signature", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid webhook signature"})
		return
	}

	if event.Type != stripe.EventTypePaymentIntentSucceeded {
		h.logger.Debug("Ignoring webhook event", zap.String("eventId", event.ID), zap.String("type", string(event.Type)))
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil || intent.ID == "" {
		h.logger.Warn("Webhook carried an unreadable payment intent", zap.String("eventId", event.ID), zap.Error(err))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Malformed payment intent"})
		return
	}

	ctx := c.Request.Context()
	if h.events != nil {
		first, err := h.events.Claim(ctx, event.ID)
		if err != nil {
			h.logger.Warn("Event de-duplication unavailable", zap.String("eventId", event.ID), zap.Error(err))
		} else if !first {
			h.logger.Info("Duplicate webhook event skipped", zap.String("eventId", event.ID))
			c.JSON(http.StatusOK, gin.H{"received": true, "duplicate": true})
			return
		}
	}

	result, err := h.confirmer.ConfirmPayment(ctx, intent.ID)
	switch {
	case err == nil:
		h.logger.Info("Payment webhook processed",
			zap.String("eventId", event.ID),
			zap.String("intentId", intent.ID),
			zap.String("outcome", string(result.Outcome)),
		)
		c.JSON(http.StatusOK, result)
	case errors.Is(err, consultation.ErrNotFound):
		h.logger.Info("Webhook for unknown payment intent", zap.String("intentId", intent.ID))
		c.JSON(http.StatusOK, gin.H{"received": true, "ignored": true})
	case errors.Is(err, consultation.ErrValidation):
		// A charge that does not match the booking will not match on redelivery
		// either. Keep the claim and leave it to an operator.
		h.logger.Error("Payment does not match consultation",
			zap.String("eventId", event.ID),
			zap.String("intentId", intent.ID),
			zap.Error(err),
		)
		c.JSON(http.StatusOK, gin.H{"received": true, "rejected": true})
	default:
		// Let Stripe redeliver.
		if h.events != nil {
			if relErr := h.events.Release(context.WithoutCancel(ctx), event.ID); relErr != nil {
				h.logger.Warn("Failed to release webhook event", zap.String("eventId", event.ID), zap.Error(relErr))
			}
		}
		respondError(c, err)
	}
}
