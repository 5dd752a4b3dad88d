package models

// IntentStatus is the processor-reported status of a payment intent, kept verbatim.
type IntentStatus string

const IntentSucceeded IntentStatus = "succeeded"

// PaymentIntent is the processor-side handle of a charge attempt.
type PaymentIntent struct {
	ID           string            `json:"id"`
	ClientSecret string            `json:"clientSecret,omitempty"`
	Amount       int64             `json:"amount"`
	Currency     string            `json:"currency"`
	Status       IntentStatus      `json:"status"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// CreateIntentRequest describes a new charge in minor currency units.
type CreateIntentRequest struct {
	Amount         int64
	Currency       string
	Description    string
	Metadata       map[string]string
	IdempotencyKey string
}

// RefundRequest describes a (partial) refund in minor currency units.
type RefundRequest struct {
	IntentID       string
	Amount         int64
	Reason         string
	IdempotencyKey string
	Metadata       map[string]string
}

// Refund is the processor's acknowledgement of a refund.
type Refund struct {
	ID     string `json:"id"`
	Amount int64  `json:"amount"`
	Status string `json:"status"`
}

// PaymentInitiation is handed to the client so it can complete the charge.
type PaymentInitiation struct {
	ConsultationID string  `json:"consultationId"`
	IntentID       string  `json:"intentId"`
	ClientSecret   string  `json:"clientSecret"`
	Amount         float64 `json:"amount"`
	Currency       string  `json:"currency"`
}
