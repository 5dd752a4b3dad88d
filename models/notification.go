package models

import "time"

// NotificationKind names the template used for an outbound notification.
type NotificationKind string

const (
	NotifyBookingCreated        NotificationKind = "booking_created"
	NotifyPaymentConfirmed      NotificationKind = "payment_confirmed"
	NotifyConsultationCompleted NotificationKind = "consultation_completed"
	NotifyConsultationCancelled NotificationKind = "consultation_cancelled"
	NotifyConsultationRefunded  NotificationKind = "consultation_refunded"
	NotifyRefundFailed          NotificationKind = "refund_failed"
	NotifyRescheduled           NotificationKind = "consultation_rescheduled"
	NotifyNoShow                NotificationKind = "consultation_no_show"
)

// Recipient identifies who a notification is addressed to.
type Recipient struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

// NotificationPayload is the queued unit of work for the notification worker.
type NotificationPayload struct {
	ID        string            `json:"id"`
	Recipient Recipient         `json:"recipient"`
	Kind      NotificationKind  `json:"kind"`
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	Data      map[string]string `json:"data"`
	CreatedAt time.Time         `json:"createdAt"`
}

// RefundRetryPayload is the queued unit of work for a delayed refund retry.
type RefundRetryPayload struct {
	ConsultationID string `json:"consultationId"`
}
