package consultationRepo

import (
	"context"

	"consultly/models"
)

// ConsultationRepository persists consultations with optimistic concurrency.
//
// Save inserts when Version is zero and otherwise updates only if the stored
// version still matches, appending just the history entries added since the
// consultation was loaded. Both cases bump Version on success. A stale
// version yields repository.ErrVersionConflict.
type ConsultationRepository interface {
	Save(ctx context.Context, c *models.Consultation) error
	FindByID(ctx context.Context, id string) (*models.Consultation, error)
	FindByPaymentIntent(ctx context.Context, intentID string) (*models.Consultation, error)
	ListByParticipant(ctx context.Context, actor models.Actor, limit int64) ([]models.Consultation, error)
}
