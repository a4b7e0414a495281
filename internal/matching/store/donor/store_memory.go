package donor

import (
	"context"
	"sync"

	"lifelink/internal/matching/models"
	"lifelink/pkg/domain"
	dErrors "lifelink/pkg/domain-errors"
)

// InMemoryStore keeps donor replicas in memory. Suitable for tests and
// single-node deployments.
type InMemoryStore struct {
	mu     sync.RWMutex
	donors map[domain.DonorID]models.DonorReplica
	byUser map[domain.UserID]domain.DonorID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		donors: make(map[domain.DonorID]models.DonorReplica),
		byUser: make(map[domain.UserID]domain.DonorID),
	}
}

func (s *InMemoryStore) Upsert(_ context.Context, donor *models.DonorReplica) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.donors[donor.ID] = *donor
	s.byUser[donor.UserID] = donor.ID
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, id domain.DonorID) (*models.DonorReplica, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if d, ok := s.donors[id]; ok {
		copied := d
		return &copied, nil
	}
	return nil, dErrors.New(dErrors.CodeNotFound, "donor not found")
}

func (s *InMemoryStore) GetByUser(_ context.Context, userID domain.UserID) (*models.DonorReplica, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id, ok := s.byUser[userID]; ok {
		if d, ok := s.donors[id]; ok {
			copied := d
			return &copied, nil
		}
	}
	return nil, dErrors.New(dErrors.CodeNotFound, "donor not found for user")
}
