package catalogRepo

import (
	"context"
	"sync"

	"consultly/database/repository"
	"consultly/models"
)

// MemoryCatalogRepo is an in-process CatalogRepository, seeded through its Put methods.
type MemoryCatalogRepo struct {
	mu          sync.RWMutex
	services    map[string]models.ServiceTariff
	consultants map[string]models.Consultant
	clients     map[string]models.Client
}

func NewMemoryCatalogRepo() *MemoryCatalogRepo {
	return &MemoryCatalogRepo{
		services:    make(map[string]models.ServiceTariff),
		consultants: make(map[string]models.Consultant),
		clients:     make(map[string]models.Client),
	}
}

func (r *MemoryCatalogRepo) PutService(s models.ServiceTariff) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.services[s.ID] = s
}

func (r *MemoryCatalogRepo) PutConsultant(c models.Consultant) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.consultants[c.ID] = c
}

func (r *MemoryCatalogRepo) PutClient(c models.Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[c.ID] = c
}

func (r *MemoryCatalogRepo) FindService(_ context.Context, id string) (*models.ServiceTariff, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.services[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	s.AddOns = append([]models.AddOn(nil), s.AddOns...)
	s.Specializations = append([]string(nil), s.Specializations...)
	return &s, nil
}

func (r *MemoryCatalogRepo) FindConsultant(_ context.Context, id string) (*models.Consultant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.consultants[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c.Specializations = append([]string(nil), c.Specializations...)
	return &c, nil
}

func (r *MemoryCatalogRepo) FindClient(_ context.Context, id string) (*models.Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &c, nil
}

func (r *MemoryCatalogRepo) IncrementConsultationCount(_ context.Context, clientID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clients[clientID]
	if !ok {
		return repository.ErrNotFound
	}
	c.ConsultationCount++
	r.clients[clientID] = c
	return nil
}

func (r *MemoryCatalogRepo) FCMToken(_ context.Context, recipient models.Recipient) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if recipient.Role == models.RoleConsultant {
		c, ok := r.consultants[recipient.ID]
		if !ok {
			return "", repository.ErrNotFound
		}
		return c.FCMToken, nil
	}
	c, ok := r.clients[recipient.ID]
	if !ok {
		return "", repository.ErrNotFound
	}
	return c.FCMToken, nil
}
