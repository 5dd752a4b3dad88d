package catalogRepo

import (
	"context"

	"consultly/models"
)

// CatalogRepository is the read side of services, consultants and clients
// that booking depends on. Account management lives elsewhere.
type CatalogRepository interface {
	FindService(ctx context.Context, id string) (*models.ServiceTariff, error)
	FindConsultant(ctx context.Context, id string) (*models.Consultant, error)
	FindClient(ctx context.Context, id string) (*models.Client, error)
	IncrementConsultationCount(ctx context.Context, clientID string) error
	// FCMToken returns the push token registered for the recipient, or "" if none.
	FCMToken(ctx context.Context, recipient models.Recipient) (string, error)
}
