package consultation

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"consultly/models"
	"consultly/utils"
)

// Cancel moves a scheduled consultation to cancelled and settles any refund
// the cancellation policy grants. A refund the processor rejects does not fail
// the cancellation: the outcome is recorded as failed and a retry is queued.
func (s *Service) Cancel(ctx context.Context, actor models.Actor, id, reason string) (*models.CancellationResult, error) {
	c, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.IsParticipant(actor) {
		return nil, newError(ErrForbidden, "only the parties of consultation %s can cancel it", id)
	}

	now := s.now()
	refund := ComputeRefund(c, c.CancellationPolicy, now)
	if err := transition(c, transitionInput{to: models.StatusCancelled, actor: actor, at: now, reason: reason, refund: refund}); err != nil {
		return nil, err
	}
	c.Refund = refund
	if err := s.save(ctx, c); err != nil {
		return nil, err
	}
	s.notify(ctx, c, models.NotifyConsultationCancelled, counterpartOf(c, actor)...)

	if refund == nil {
		s.logger.Info("Consultation cancelled without refund", zap.String("consultationId", c.ID))
		return &models.CancellationResult{Consultation: c}, nil
	}

	if err := s.settleRefund(ctx, c, models.SystemActor); err != nil {
		s.scheduleRefundRetry(ctx, c.ID)
		if !errors.Is(err, ErrRefundFailed) {
			// The cancellation is committed; only the refunded write was lost.
			// Report what the store holds and leave the rest to the retry.
			s.logger.Warn("Refund outcome not recorded, retry queued",
				zap.String("consultationId", c.ID), zap.Error(err))
			committed, loadErr := s.load(ctx, c.ID)
			if loadErr != nil {
				return nil, err
			}
			return &models.CancellationResult{Consultation: committed, Refund: committed.Refund}, nil
		}
	}
	return &models.CancellationResult{Consultation: c, Refund: c.Refund}, nil
}

// RetryRefund re-attempts an outstanding refund. It is used by operators and
// by the refund retry worker; a refund that already went through is a no-op.
func (s *Service) RetryRefund(ctx context.Context, actor models.Actor, id string) (*models.Consultation, error) {
	if actor.Role != models.RoleAdmin && actor.Role != models.RoleSystem {
		return nil, newError(ErrForbidden, "refund retries are restricted to operators")
	}
	c, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Status == models.StatusRefunded {
		return c, nil
	}
	if c.Status != models.StatusCancelled || c.Refund == nil {
		return nil, newError(ErrInvalidTransition, "consultation %s has no outstanding refund", id)
	}
	if err := s.settleRefund(ctx, c, actor); err != nil {
		return nil, err
	}
	return c, nil
}

// settleRefund asks the processor for the refund recorded on c and then either
// moves c to refunded or records the failed attempt. A refund an earlier
// attempt already issued is adopted instead of requesting a second one.
func (s *Service) settleRefund(ctx context.Context, c *models.Consultation, actor models.Actor) error {
	outcome := *c.Refund
	outcome.Attempts++

	pctx, cancel := s.processorContext(ctx)
	defer cancel()
	processed, err := s.issuedRefund(pctx, c)
	if err == nil && processed == nil {
		processed, err = s.processor.Refund(pctx, models.RefundRequest{
			IntentID:       c.PaymentIntentID,
			Amount:         utils.ToMinorUnits(outcome.Amount, outcome.Currency),
			Reason:         "requested_by_customer",
			IdempotencyKey: refundKey(c.ID, outcome.Attempts),
			Metadata: map[string]string{
				"consultation_id": c.ID,
				"reason_code":     outcome.ReasonCode,
			},
		})
	}
	now := s.now()

	if err != nil {
		outcome.Status = models.RefundFailed
		outcome.LastError = err.Error()
		c.Refund = &outcome
		c.UpdatedAt = now
		if saveErr := s.save(ctx, c); saveErr != nil {
			s.logger.Error("Failed to record refund failure",
				zap.String("consultationId", c.ID), zap.Error(saveErr))
		}
		s.logger.Error("Refund failed",
			zap.String("consultationId", c.ID),
			zap.Float64("amount", outcome.Amount),
			zap.Int("attempt", outcome.Attempts),
			zap.Error(err),
		)
		s.notify(ctx, c, models.NotifyRefundFailed, clientOf(c))
		return wrapError(ErrRefundFailed, processorError(err, "refunding"), "refund for consultation %s", c.ID)
	}

	outcome.Status = models.RefundSucceeded
	outcome.RefundID = processed.ID
	outcome.LastError = ""
	outcome.ProcessedAt = &now
	if err := transition(c, transitionInput{to: models.StatusRefunded, actor: actor, at: now, reason: outcome.ReasonCode, refund: &outcome}); err != nil {
		return err
	}
	c.Refund = &outcome
	if err := s.save(ctx, c); err != nil {
		return err
	}

	s.logger.Info("Refund settled",
		zap.String("consultationId", c.ID),
		zap.String("refundId", processed.ID),
		zap.Float64("amount", outcome.Amount),
	)
	s.notify(ctx, c, models.NotifyConsultationRefunded, clientOf(c))
	return nil
}

// issuedRefund returns a live refund already recorded against the
// consultation's intent, or nil when none exists.
func (s *Service) issuedRefund(ctx context.Context, c *models.Consultation) (*models.Refund, error) {
	refunds, err := s.processor.ListRefunds(ctx, c.PaymentIntentID)
	if err != nil {
		return nil, err
	}
	for _, r := range refunds {
		switch r.Status {
		case "succeeded", "pending", "requires_action":
			s.logger.Info("Adopting refund issued by an earlier attempt",
				zap.String("consultationId", c.ID), zap.String("refundId", r.ID))
			found := r
			return &found, nil
		}
	}
	return nil, nil
}

// refundKey gives every attempt its own idempotency key. The processor replays
// the first response stored under a key, failures included, so reusing one
// would pin a retry to the original decline.
func refundKey(consultationID string, attempt int) string {
	if attempt <= 1 {
		return "refund-" + consultationID
	}
	return fmt.Sprintf("refund-%s-%d", consultationID, attempt)
}

func (s *Service) scheduleRefundRetry(ctx context.Context, consultationID string) {
	if s.refunds == nil {
		return
	}
	if err := s.refunds.ScheduleRefundRetry(context.WithoutCancel(ctx), consultationID, s.refundRetryDelay); err != nil {
		s.logger.Error("Failed to schedule refund retry",
			zap.String("consultationId", consultationID), zap.Error(err))
	}
}
