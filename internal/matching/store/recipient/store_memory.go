package recipient

import (
	"context"
	"sync"

	"lifelink/internal/matching/models"
	"lifelink/pkg/domain"
	dErrors "lifelink/pkg/domain-errors"
)

// InMemoryStore keeps recipient replicas in memory.
type InMemoryStore struct {
	mu         sync.RWMutex
	recipients map[domain.RecipientID]models.RecipientReplica
	byUser     map[domain.UserID]domain.RecipientID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		recipients: make(map[domain.RecipientID]models.RecipientReplica),
		byUser:     make(map[domain.UserID]domain.RecipientID),
	}
}

func (s *InMemoryStore) Upsert(_ context.Context, recipient *models.RecipientReplica) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recipients[recipient.ID] = *recipient
	s.byUser[recipient.UserID] = recipient.ID
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, id domain.RecipientID) (*models.RecipientReplica, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.recipients[id]; ok {
		copied := r
		return &copied, nil
	}
	return nil, dErrors.New(dErrors.CodeNotFound, "recipient not found")
}

func (s *InMemoryStore) GetByUser(_ context.Context, userID domain.UserID) (*models.RecipientReplica, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id, ok := s.byUser[userID]; ok {
		if r, ok := s.recipients[id]; ok {
			copied := r
			return &copied, nil
		}
	}
	return nil, dErrors.New(dErrors.CodeNotFound, "recipient not found for user")
}
