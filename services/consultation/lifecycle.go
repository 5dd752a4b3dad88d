package consultation

import (
	"time"

	"consultly/models"
)

// transitions is the complete set of allowed status changes.
var transitions = map[models.ConsultationStatus][]models.ConsultationStatus{
	models.StatusPendingPayment: {models.StatusScheduled},
	models.StatusScheduled: {
		models.StatusCompleted,
		models.StatusCancelled,
		models.StatusRescheduled,
		models.StatusNoShow,
	},
	models.StatusRescheduled: {models.StatusScheduled},
	models.StatusCancelled:   {models.StatusRefunded},
}

// CanTransition reports whether from -> to is an allowed lifecycle move.
func CanTransition(from, to models.ConsultationStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves the status.
func IsTerminal(s models.ConsultationStatus) bool {
	return len(transitions[s]) == 0
}

type transitionInput struct {
	to     models.ConsultationStatus
	actor  models.Actor
	at     time.Time
	reason string
	refund *models.RefundOutcome
}

// transition moves c to in.to and appends exactly one history entry.
// On error c is left untouched.
func transition(c *models.Consultation, in transitionInput) error {
	if !CanTransition(c.Status, in.to) {
		return newError(ErrInvalidTransition, "cannot move consultation %s from %s to %s", c.ID, c.Status, in.to)
	}

	entry := models.StatusEntry{
		Status:    in.to,
		Timestamp: in.at,
		Actor:     in.actor,
		Reason:    in.reason,
	}
	if in.refund != nil {
		r := *in.refund
		entry.Refund = &r
	}
	c.StatusHistory = append(c.StatusHistory, entry)
	c.Status = in.to
	c.UpdatedAt = in.at
	return nil
}
