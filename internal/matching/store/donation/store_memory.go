package donation

import (
	"context"
	"sync"

	"lifelink/internal/matching/models"
	"lifelink/pkg/domain"
	dErrors "lifelink/pkg/domain-errors"
)

// InMemoryStore keeps donation replicas in memory.
type InMemoryStore struct {
	mu        sync.RWMutex
	donations map[domain.DonationID]models.DonationReplica
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{donations: make(map[domain.DonationID]models.DonationReplica)}
}

func (s *InMemoryStore) Upsert(_ context.Context, donation *models.DonationReplica) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.donations[donation.ID] = *donation
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, id domain.DonationID) (*models.DonationReplica, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if d, ok := s.donations[id]; ok {
		copied := d
		return &copied, nil
	}
	return nil, dErrors.New(dErrors.CodeNotFound, "donation not found")
}

func (s *InMemoryStore) UpdateStatus(_ context.Context, id domain.DonationID, status models.DonationStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.donations[id]
	if !ok {
		return dErrors.New(dErrors.CodeNotFound, "donation not found")
	}
	d.Status = status
	s.donations[id] = d
	return nil
}

func (s *InMemoryStore) ListByStatuses(_ context.Context, statuses ...models.DonationStatus) ([]*models.DonationReplica, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.DonationReplica
	for _, d := range s.donations {
		for _, status := range statuses {
			if d.Status == status {
				copied := d
				out = append(out, &copied)
				break
			}
		}
	}
	return out, nil
}
