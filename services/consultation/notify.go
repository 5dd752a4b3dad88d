package consultation

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"consultly/models"
)

// notify hands one notification per recipient to the dispatcher. Failures are
// logged and never affect the operation that triggered them.
func (s *Service) notify(ctx context.Context, c *models.Consultation, kind models.NotificationKind, recipients ...models.Recipient) {
	if s.notifier == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	title, body := notificationText(kind, c)
	for _, r := range recipients {
		n := models.NotificationPayload{
			ID:        uuid.New().String(),
			Recipient: r,
			Kind:      kind,
			Title:     title,
			Body:      body,
			Data: map[string]string{
				"type":           string(kind),
				"consultationId": c.ID,
				"status":         string(c.Status),
				"role":           string(r.Role),
			},
			CreatedAt: s.now(),
		}
		if err := s.notifier.Notify(ctx, n); err != nil {
			s.logger.Warn("Notification dispatch failed",
				zap.String("consultationId", c.ID),
				zap.String("kind", string(kind)),
				zap.String("recipientId", r.ID),
				zap.Error(err),
			)
		}
	}
}

func notificationText(kind models.NotificationKind, c *models.Consultation) (string, string) {
	when := c.ScheduledAt.Format("Mon 02 Jan 2006 15:04 MST")
	switch kind {
	case models.NotifyBookingCreated:
		return "New consultation request", fmt.Sprintf("A %s consultation was requested for %s.", c.Specialization, when)
	case models.NotifyPaymentConfirmed:
		return "Consultation confirmed", fmt.Sprintf("Payment received. Your consultation is scheduled for %s.", when)
	case models.NotifyConsultationCompleted:
		return "Consultation completed", "Your consultation is complete. Let us know how it went."
	case models.NotifyConsultationCancelled:
		return "Consultation cancelled", fmt.Sprintf("The consultation on %s was cancelled.", when)
	case models.NotifyConsultationRefunded:
		return "Refund issued", fmt.Sprintf("We refunded %.2f %s for your cancelled consultation.", c.Refund.Amount, c.Refund.Currency)
	case models.NotifyRefundFailed:
		return "Refund delayed", "We could not process your refund yet. We will retry automatically."
	case models.NotifyRescheduled:
		return "Consultation rescheduled", fmt.Sprintf("Your consultation has moved to %s.", when)
	case models.NotifyNoShow:
		return "Missed consultation", fmt.Sprintf("The consultation on %s was marked as a no-show.", when)
	}
	return "Consultation update", fmt.Sprintf("Consultation %s is now %s.", c.ID, c.Status)
}

func clientOf(c *models.Consultation) models.Recipient {
	return models.Recipient{ID: c.ClientID, Role: models.RoleClient}
}

func consultantOf(c *models.Consultation) models.Recipient {
	return models.Recipient{ID: c.ConsultantID, Role: models.RoleConsultant}
}

// counterpartOf returns the party that did not perform the action, or both
// parties when an operator did.
func counterpartOf(c *models.Consultation, actor models.Actor) []models.Recipient {
	switch {
	case actor.Role == models.RoleClient && actor.ID == c.ClientID:
		return []models.Recipient{consultantOf(c)}
	case actor.Role == models.RoleConsultant && actor.ID == c.ConsultantID:
		return []models.Recipient{clientOf(c)}
	}
	return []models.Recipient{clientOf(c), consultantOf(c)}
}
