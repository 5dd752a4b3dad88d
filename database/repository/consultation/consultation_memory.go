package consultationRepo

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"consultly/database/repository"
	"consultly/models"
)

// MemoryConsultationRepo is an in-process ConsultationRepository with the same
// version and history guarantees as the Mongo implementation.
type MemoryConsultationRepo struct {
	mu   sync.RWMutex
	docs map[string]*models.Consultation
}

func NewMemoryConsultationRepo() *MemoryConsultationRepo {
	return &MemoryConsultationRepo{docs: make(map[string]*models.Consultation)}
}

func (r *MemoryConsultationRepo) Save(ctx context.Context, c *models.Consultation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, exists := r.docs[c.ID]
	if c.Version == 0 {
		if exists {
			return fmt.Errorf("consultation %s already exists: %w", c.ID, repository.ErrVersionConflict)
		}
		c.Version = 1
		c.MarkPersisted()
		r.docs[c.ID] = c.Clone()
		return nil
	}

	if !exists {
		return fmt.Errorf("consultation %s: %w", c.ID, repository.ErrNotFound)
	}
	if stored.Version != c.Version || len(stored.StatusHistory) != c.CommittedHistoryLen() {
		return fmt.Errorf("consultation %s at version %d: %w", c.ID, c.Version, repository.ErrVersionConflict)
	}

	next := c.Clone()
	next.StatusHistory = append(stored.Clone().StatusHistory, c.UncommittedHistory()...)
	next.Version = c.Version + 1
	next.MarkPersisted()
	r.docs[c.ID] = next

	c.Version++
	c.MarkPersisted()
	return nil
}

func (r *MemoryConsultationRepo) FindByID(ctx context.Context, id string) (*models.Consultation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.docs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return c.Clone(), nil
}

func (r *MemoryConsultationRepo) FindByPaymentIntent(ctx context.Context, intentID string) (*models.Consultation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if intentID == "" {
		return nil, repository.ErrNotFound
	}
	for _, c := range r.docs {
		if c.PaymentIntentID == intentID {
			return c.Clone(), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *MemoryConsultationRepo) ListByParticipant(ctx context.Context, actor models.Actor, limit int64) ([]models.Consultation, error) {
	if _, err := participantFilter(actor); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []models.Consultation{}
	for _, c := range r.docs {
		if c.IsParticipant(actor) {
			out = append(out, *c.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit <= 0 {
		limit = defaultListLimit
	}
	if int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}
