package request

import (
	"context"
	"sync"

	"lifelink/internal/matching/models"
	"lifelink/pkg/domain"
	dErrors "lifelink/pkg/domain-errors"
)

// InMemoryStore keeps receive request replicas in memory.
type InMemoryStore struct {
	mu       sync.RWMutex
	requests map[domain.RequestID]models.RequestReplica
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{requests: make(map[domain.RequestID]models.RequestReplica)}
}

func (s *InMemoryStore) Upsert(_ context.Context, request *models.RequestReplica) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[request.ID] = *request
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, id domain.RequestID) (*models.RequestReplica, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.requests[id]; ok {
		copied := r
		return &copied, nil
	}
	return nil, dErrors.New(dErrors.CodeNotFound, "receive request not found")
}

func (s *InMemoryStore) UpdateStatus(_ context.Context, id domain.RequestID, status models.RequestStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	if !ok {
		return dErrors.New(dErrors.CodeNotFound, "receive request not found")
	}
	r.Status = status
	s.requests[id] = r
	return nil
}

func (s *InMemoryStore) ListByStatuses(_ context.Context, statuses ...models.RequestStatus) ([]*models.RequestReplica, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.RequestReplica
	for _, r := range s.requests {
		for _, status := range statuses {
			if r.Status == status {
				copied := r
				out = append(out, &copied)
				break
			}
		}
	}
	return out, nil
}
