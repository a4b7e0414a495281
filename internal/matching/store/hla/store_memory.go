package hla

import (
	"context"
	"sync"

	"lifelink/internal/matching/models"
	"lifelink/pkg/domain"
	dErrors "lifelink/pkg/domain-errors"
)

// InMemoryStore keeps HLA typing replicas in memory, keyed by user.
type InMemoryStore struct {
	mu       sync.RWMutex
	profiles map[domain.UserID]models.HLAProfileReplica
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{profiles: make(map[domain.UserID]models.HLAProfileReplica)}
}

func (s *InMemoryStore) Upsert(_ context.Context, profile *models.HLAProfileReplica) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[profile.UserID] = *profile
	return nil
}

func (s *InMemoryStore) GetByUser(_ context.Context, userID domain.UserID) (*models.HLAProfileReplica, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.profiles[userID]; ok {
		copied := p
		return &copied, nil
	}
	return nil, dErrors.New(dErrors.CodeNotFound, "hla profile not found for user")
}
