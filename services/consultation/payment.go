package consultation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"consultly/database/repository"
	"consultly/models"
	"consultly/services/payment"
	"consultly/utils"
)

// InitiatePayment opens a processor intent for the consultation's final price.
// Calling it again returns the intent already on record.
func (s *Service) InitiatePayment(ctx context.Context, actor models.Actor, id string) (*models.PaymentInitiation, error) {
	c, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role != models.RoleClient || actor.ID != c.ClientID {
		return nil, newError(ErrForbidden, "only the client can pay for consultation %s", id)
	}
	if c.Status != models.StatusPendingPayment {
		return nil, newError(ErrInvalidTransition, "consultation %s is %s and no longer awaits payment", id, c.Status)
	}

	if c.PaymentIntentID != "" {
		intent, err := s.retrieveIntent(ctx, c.PaymentIntentID)
		if err != nil {
			return nil, err
		}
		return initiation(c, intent), nil
	}

	pctx, cancel := s.processorContext(ctx)
	defer cancel()
	intent, err := s.processor.CreateIntent(pctx, models.CreateIntentRequest{
		Amount:      utils.ToMinorUnits(c.FinalPrice, c.Currency),
		Currency:    strings.ToLower(c.Currency),
		Description: fmt.Sprintf("Consultation %s", c.ID),
		Metadata: map[string]string{
			"consultation_id": c.ID,
			"client_id":       c.ClientID,
			"consultant_id":   c.ConsultantID,
		},
		IdempotencyKey: "intent-" + c.ID,
	})
	if err != nil {
		return nil, processorError(err, "creating payment intent")
	}

	c.PaymentIntentID = intent.ID
	c.UpdatedAt = s.now()
	if err := s.repo.Save(ctx, c); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			if fresh, ferr := s.repo.FindByID(ctx, c.ID); ferr == nil && fresh.PaymentIntentID == intent.ID {
				return initiation(fresh, intent), nil
			}
		}
		return nil, fromRepository(err, "consultation "+c.ID)
	}

	s.logger.Info("Payment intent created",
		zap.String("consultationId", c.ID),
		zap.String("intentId", intent.ID),
		zap.Int64("amount", intent.Amount),
	)
	return initiation(c, intent), nil
}

// ConfirmPayment reconciles a processor intent with the consultation that
// carries it. It is idempotent per intent: once the consultation has left
// pending_payment every further call reports already_processed.
func (s *Service) ConfirmPayment(ctx context.Context, intentID string) (*models.ConfirmationResult, error) {
	c, err := s.repo.FindByPaymentIntent(ctx, intentID)
	if err != nil {
		return nil, fromRepository(err, "consultation for payment intent "+intentID)
	}
	if c.Status != models.StatusPendingPayment {
		return alreadyProcessed(c), nil
	}

	intent, err := s.retrieveIntent(ctx, intentID)
	if err != nil {
		return nil, err
	}
	if intent.Status != models.IntentSucceeded {
		s.logger.Info("Payment not yet succeeded",
			zap.String("consultationId", c.ID),
			zap.String("intentId", intentID),
			zap.String("processorStatus", string(intent.Status)),
		)
		return &models.ConfirmationResult{
			Outcome:         models.ConfirmationNotSucceeded,
			ConsultationID:  c.ID,
			Status:          c.Status,
			ProcessorStatus: string(intent.Status),
		}, nil
	}

	expected := utils.ToMinorUnits(c.FinalPrice, c.Currency)
	if intent.Amount != expected || !strings.EqualFold(intent.Currency, c.Currency) {
		return nil, newError(ErrValidation, "intent %s charged %d %s, consultation %s expects %d %s",
			intentID, intent.Amount, intent.Currency, c.ID, expected, c.Currency)
	}

	reason := fmt.Sprintf("payment %s succeeded", intentID)
	if err := transition(c, transitionInput{to: models.StatusScheduled, actor: models.SystemActor, at: s.now(), reason: reason}); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, c); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			fresh, ferr := s.repo.FindByID(ctx, c.ID)
			if ferr == nil && fresh.Status != models.StatusPendingPayment {
				return alreadyProcessed(fresh), nil
			}
		}
		return nil, fromRepository(err, "consultation "+c.ID)
	}

	s.logger.Info("Payment confirmed",
		zap.String("consultationId", c.ID),
		zap.String("intentId", intentID),
	)
	s.notify(ctx, c, models.NotifyPaymentConfirmed, clientOf(c), consultantOf(c))
	return &models.ConfirmationResult{
		Outcome:         models.ConfirmationConfirmed,
		ConsultationID:  c.ID,
		Status:          c.Status,
		ProcessorStatus: string(intent.Status),
	}, nil
}

func (s *Service) retrieveIntent(ctx context.Context, intentID string) (*models.PaymentIntent, error) {
	pctx, cancel := s.processorContext(ctx)
	defer cancel()
	intent, err := s.processor.RetrieveIntent(pctx, intentID)
	if err != nil {
		return nil, processorError(err, "retrieving payment intent "+intentID)
	}
	return intent, nil
}

func processorError(err error, op string) error {
	switch {
	case errors.Is(err, payment.ErrIntentNotFound):
		return wrapError(ErrNotFound, err, "%s", op)
	case errors.Is(err, payment.ErrProcessorTimeout), errors.Is(err, context.DeadlineExceeded):
		return wrapError(ErrProcessorTimeout, err, "%s", op)
	}
	return wrapError(ErrProcessor, err, "%s", op)
}

func alreadyProcessed(c *models.Consultation) *models.ConfirmationResult {
	return &models.ConfirmationResult{
		Outcome:        models.ConfirmationAlreadyProcessed,
		ConsultationID: c.ID,
		Status:         c.Status,
	}
}

func initiation(c *models.Consultation, intent *models.PaymentIntent) *models.PaymentInitiation {
	return &models.PaymentInitiation{
		ConsultationID: c.ID,
		IntentID:       intent.ID,
		ClientSecret:   intent.ClientSecret,
		Amount:         c.FinalPrice,
		Currency:       c.Currency,
	}
}
