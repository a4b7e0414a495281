package match

import (
	"context"
	"sort"
	"sync"

	"lifelink/internal/matching/models"
	"lifelink/pkg/domain"
	dErrors "lifelink/pkg/domain-errors"
)

// InMemoryStore keeps matches in memory.
type InMemoryStore struct {
	mu      sync.RWMutex
	matches map[domain.MatchID]models.Match
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{matches: make(map[domain.MatchID]models.Match)}
}

func (s *InMemoryStore) Create(_ context.Context, match *models.Match) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.matches[match.ID]; ok {
		return dErrors.New(dErrors.CodeConflict, "match already exists")
	}
	s.matches[match.ID] = *match
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, id domain.MatchID) (*models.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if m, ok := s.matches[id]; ok {
		copied := m
		return &copied, nil
	}
	return nil, dErrors.New(dErrors.CodeNotFound, "match not found")
}

func (s *InMemoryStore) Update(_ context.Context, match *models.Match) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.matches[match.ID]; !ok {
		return dErrors.New(dErrors.CodeNotFound, "match not found")
	}
	s.matches[match.ID] = *match
	return nil
}

func (s *InMemoryStore) ExistsActiveForPair(_ context.Context, donationID domain.DonationID, requestID domain.RequestID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.matches {
		if m.DonationID == donationID && m.RequestID == requestID && m.Status.Active() {
			return true, nil
		}
	}
	return false, nil
}

func (s *InMemoryStore) ListByStatuses(_ context.Context, statuses ...models.MatchStatus) ([]*models.Match, error) {
	return s.list(func(m *models.Match) bool {
		for _, status := range statuses {
			if m.Status == status {
				return true
			}
		}
		return false
	}), nil
}

func (s *InMemoryStore) ListByDonation(_ context.Context, donationID domain.DonationID) ([]*models.Match, error) {
	return s.list(func(m *models.Match) bool { return m.DonationID == donationID }), nil
}

func (s *InMemoryStore) ListByRequest(_ context.Context, requestID domain.RequestID) ([]*models.Match, error) {
	return s.list(func(m *models.Match) bool { return m.RequestID == requestID }), nil
}

func (s *InMemoryStore) ListByDonorUser(_ context.Context, userID domain.UserID) ([]*models.Match, error) {
	return s.list(func(m *models.Match) bool { return m.DonorUserID == userID }), nil
}

func (s *InMemoryStore) ListByRecipientUser(_ context.Context, userID domain.UserID) ([]*models.Match, error) {
	return s.list(func(m *models.Match) bool { return m.RecipientUserID == userID }), nil
}

func (s *InMemoryStore) ListAll(_ context.Context) ([]*models.Match, error) {
	return s.list(func(*models.Match) bool { return true }), nil
}

func (s *InMemoryStore) list(keep func(*models.Match) bool) []*models.Match {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Match
	for _, m := range s.matches {
		copied := m
		if keep(&copied) {
			out = append(out, &copied)
		}
	}
	// Newest first, for stable API output.
	sort.Slice(out, func(i, j int) bool { return out[i].MatchedAt.After(out[j].MatchedAt) })
	return out
}
