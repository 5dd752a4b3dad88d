package models

import "time"

// ConsultationStatus is the lifecycle state of a consultation.
type ConsultationStatus string

const (
	StatusPendingPayment ConsultationStatus = "pending_payment"
	StatusScheduled      ConsultationStatus = "scheduled"
	StatusRescheduled    ConsultationStatus = "rescheduled"
	StatusCompleted      ConsultationStatus = "completed"
	StatusCancelled      ConsultationStatus = "cancelled"
	StatusRefunded       ConsultationStatus = "refunded"
	StatusNoShow         ConsultationStatus = "no_show"
)

// RefundStatus tracks the processor side of a refund.
type RefundStatus string

const (
	RefundPending   RefundStatus = "pending"
	RefundSucceeded RefundStatus = "succeeded"
	RefundFailed    RefundStatus = "failed"
)

// RefundOutcome records what the refund policy decided and what the processor did with it.
type RefundOutcome struct {
	Amount      float64      `bson:"amount" json:"amount"`
	Currency    string       `bson:"currency" json:"currency"`
	Percent     int          `bson:"percent" json:"percent"`
	RefundID    string       `bson:"refundId,omitempty" json:"refundId,omitempty"`
	ReasonCode  string       `bson:"reasonCode" json:"reasonCode"`
	Status      RefundStatus `bson:"status" json:"status"`
	Attempts    int          `bson:"attempts" json:"attempts"`
	LastError   string       `bson:"lastError,omitempty" json:"lastError,omitempty"`
	ProcessedAt *time.Time   `bson:"processedAt,omitempty" json:"processedAt,omitempty"`
}

// StatusEntry is one append-only record of the status history.
type StatusEntry struct {
	Status    ConsultationStatus `bson:"status" json:"status"`
	Timestamp time.Time          `bson:"timestamp" json:"timestamp"`
	Actor     Actor              `bson:"actor" json:"actor"`
	Reason    string             `bson:"reason,omitempty" json:"reason,omitempty"`
	Refund    *RefundOutcome     `bson:"refund,omitempty" json:"refund,omitempty"`
}

type Feedback struct {
	Rating      int       `bson:"rating" json:"rating"`
	Comment     string    `bson:"comment,omitempty" json:"comment,omitempty"`
	SubmittedAt time.Time `bson:"submittedAt" json:"submittedAt"`
}

// Consultation is the booking aggregate. Its status only changes through the
// lifecycle service and its history is only ever appended to.
type Consultation struct {
	ID              string             `bson:"id" json:"id"`
	ClientID        string             `bson:"clientId" json:"clientId"`
	ConsultantID    string             `bson:"consultantId" json:"consultantId"`
	ServiceID       string             `bson:"serviceId" json:"serviceId"`
	Specialization  string             `bson:"specialization" json:"specialization"`
	ScheduledAt     time.Time          `bson:"scheduledAt" json:"scheduledAt"`
	DurationMinutes int                `bson:"duration" json:"duration"`
	AddOns          []string           `bson:"addOns,omitempty" json:"addOns,omitempty"`
	BasePrice       float64            `bson:"basePrice" json:"basePrice"`
	FinalPrice      float64            `bson:"finalPrice" json:"finalPrice"`
	Currency        string             `bson:"currency" json:"currency"`
	AppliedFactors  []AppliedFactor    `bson:"appliedFactors" json:"appliedFactors"`
	FactorSequence  string             `bson:"factorSequence" json:"factorSequence"`
	PricingFallback bool               `bson:"pricingFallback,omitempty" json:"pricingFallback,omitempty"`
	Status          ConsultationStatus `bson:"status" json:"status"`
	StatusHistory   []StatusEntry      `bson:"statusHistory" json:"statusHistory"`
	PaymentIntentID string             `bson:"paymentIntentId,omitempty" json:"paymentIntentId,omitempty"`
	Notes           string             `bson:"notes,omitempty" json:"notes,omitempty"`
	Feedback        *Feedback          `bson:"feedback,omitempty" json:"feedback,omitempty"`
	Refund          *RefundOutcome     `bson:"refund,omitempty" json:"refund,omitempty"`
	Version         int64              `bson:"version" json:"version"`
	CreatedAt       time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time          `bson:"updatedAt" json:"updatedAt"`

	// CancellationPolicy is copied from the service when booked.
	CancellationPolicy CancellationPolicy `bson:"cancellationPolicy" json:"cancellationPolicy"`

	// committed is the number of history entries known to be persisted.
	committed int
}

// IsParticipant reports whether the actor is the client or consultant of this consultation.
func (c *Consultation) IsParticipant(a Actor) bool {
	switch a.Role {
	case RoleClient:
		return a.ID == c.ClientID
	case RoleConsultant:
		return a.ID == c.ConsultantID
	}
	return false
}

// CommittedHistoryLen is the length of the persisted history prefix.
func (c *Consultation) CommittedHistoryLen() int {
	if c.committed > len(c.StatusHistory) {
		return len(c.StatusHistory)
	}
	return c.committed
}

// UncommittedHistory returns the entries appended since the last load or save.
func (c *Consultation) UncommittedHistory() []StatusEntry {
	return c.StatusHistory[c.CommittedHistoryLen():]
}

// MarkPersisted records that the whole history is now stored.
func (c *Consultation) MarkPersisted() {
	c.committed = len(c.StatusHistory)
}

// Clone returns a deep copy so callers can mutate it without aliasing.
func (c *Consultation) Clone() *Consultation {
	cp := *c
	cp.AddOns = append([]string(nil), c.AddOns...)
	cp.AppliedFactors = append([]AppliedFactor(nil), c.AppliedFactors...)
	cp.StatusHistory = make([]StatusEntry, len(c.StatusHistory))
	for i, e := range c.StatusHistory {
		if e.Refund != nil {
			r := *e.Refund
			e.Refund = &r
		}
		cp.StatusHistory[i] = e
	}
	if c.Feedback != nil {
		f := *c.Feedback
		cp.Feedback = &f
	}
	if c.Refund != nil {
		r := *c.Refund
		cp.Refund = &r
	}
	return &cp
}
