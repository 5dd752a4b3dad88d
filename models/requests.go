package models

import "time"

// BookingRequest is a client's request to book (or price) a consultation.
type BookingRequest struct {
	ServiceID       string    `json:"serviceId" binding:"required"`
	ConsultantID    string    `json:"consultantId" binding:"required"`
	Specialization  string    `json:"specialization" binding:"required"`
	ScheduledAt     time.Time `json:"scheduledAt" binding:"required"`
	DurationMinutes int       `json:"duration" binding:"required"`
	AddOns          []string  `json:"addOns"`
}

type RescheduleRequest struct {
	ScheduledAt time.Time `json:"scheduledAt" binding:"required"`
	Reason      string    `json:"reason"`
}

// ReasonRequest carries the optional free-text reason for cancel and no-show.
type ReasonRequest struct {
	Reason string `json:"reason"`
}

type NotesRequest struct {
	Notes string `json:"notes"`
}

type FeedbackRequest struct {
	Rating  int    `json:"rating" binding:"required"`
	Comment string `json:"comment"`
}

// ConfirmationOutcome is the result kind of a payment confirmation.
type ConfirmationOutcome string

const (
	ConfirmationConfirmed        ConfirmationOutcome = "confirmed"
	ConfirmationAlreadyProcessed ConfirmationOutcome = "already_processed"
	ConfirmationNotSucceeded     ConfirmationOutcome = "not_succeeded"
)

// ConfirmationResult reports what a payment confirmation did. A declined or
// pending payment is an outcome, not an error; ProcessorStatus is verbatim.
type ConfirmationResult struct {
	Outcome         ConfirmationOutcome `json:"outcome"`
	ConsultationID  string              `json:"consultationId"`
	Status          ConsultationStatus  `json:"status"`
	ProcessorStatus string              `json:"processorStatus,omitempty"`
}

// CancellationResult is the cancelled (or refunded) consultation and the
// refund decided for it, if any.
type CancellationResult struct {
	Consultation *Consultation  `json:"consultation"`
	Refund       *RefundOutcome `json:"refund,omitempty"`
}
