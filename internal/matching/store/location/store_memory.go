package location

import (
	"context"
	"sync"

	"lifelink/internal/matching/models"
	"lifelink/pkg/domain"
	dErrors "lifelink/pkg/domain-errors"
)

// InMemoryStore keeps location replicas in memory. Donor and recipient
// locations share the store; IDs are globally unique upstream.
type InMemoryStore struct {
	mu        sync.RWMutex
	locations map[domain.LocationID]models.LocationReplica
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{locations: make(map[domain.LocationID]models.LocationReplica)}
}

func (s *InMemoryStore) Upsert(_ context.Context, loc *models.LocationReplica) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locations[loc.ID] = *loc
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, id domain.LocationID) (*models.LocationReplica, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if l, ok := s.locations[id]; ok {
		copied := l
		return &copied, nil
	}
	return nil, dErrors.New(dErrors.CodeNotFound, "location not found")
}
