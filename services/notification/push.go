package notification

import (
	"context"
	"errors"
	"fmt"

	"firebase.google.com/go/v4/messaging"
	"go.uber.org/zap"

	"consultly/models"
)

// ErrNoDeviceToken means the recipient has never registered a device.
var ErrNoDeviceToken = errors.New("recipient has no FCM token")

// TokenSource resolves the device token of a notification recipient.
type TokenSource interface {
	FCMToken(ctx context.Context, recipient models.Recipient) (string, error)
}

// MessageSender is satisfied by *messaging.Client.
type MessageSender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// PushSender delivers queued notifications through Firebase Cloud Messaging.
type PushSender struct {
	tokens TokenSource
	fcm    MessageSender
	logger *zap.Logger
}

func NewPushSender(tokens TokenSource, fcm MessageSender, logger *zap.Logger) (*PushSender, error) {
	if tokens == nil || fcm == nil {
		return nil, fmt.Errorf("push sender initialization error: token source or messaging client is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PushSender{tokens: tokens, fcm: fcm, logger: logger}, nil
}

func (p *PushSender) Send(ctx context.Context, n models.NotificationPayload) error {
	token, err := p.tokens.FCMToken(ctx, n.Recipient)
	if err != nil {
		return fmt.Errorf("could not resolve token for %s %s: %w", n.Recipient.Role, n.Recipient.ID, err)
	}
	if token == "" {
		return fmt.Errorf("%s %s: %w", n.Recipient.Role, n.Recipient.ID, ErrNoDeviceToken)
	}

	data := make(map[string]string, len(n.Data)+1)
	for k, v := range n.Data {
		data[k] = v
	}
	if _, ok := data["role"]; !ok {
		data["role"] = string(n.Recipient.Role)
	}

	msg := &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: n.Title,
			Body:  n.Body,
		},
		Data: data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				ChannelID: "consultations",
				Sound:     "default",
			},
		},
		APNS: &messaging.APNSConfig{
			Headers: map[string]string{
				"apns-priority":  "10",
				"apns-push-type": "alert",
			},
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{Sound: "default"},
			},
		},
	}

	id, err := p.fcm.Send(ctx, msg)
	if err != nil {
		return fmt.Errorf("failed to send FCM message %s: %w", n.ID, err)
	}
	p.logger.Info("Push notification sent",
		zap.String("notificationId", n.ID),
		zap.String("messageId", id),
		zap.String("kind", string(n.Kind)),
		zap.String("recipientId", n.Recipient.ID),
	)
	return nil
}
