package match

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lifelink/internal/matching/models"
	"lifelink/pkg/domain"
	dErrors "lifelink/pkg/domain-errors"
)

func newMatch(status models.MatchStatus) *models.Match {
	return &models.Match{
		ID:              domain.NewMatchID(),
		DonationID:      domain.DonationID(uuid.New()),
		RequestID:       domain.RequestID(uuid.New()),
		DonorUserID:     domain.UserID(uuid.New()),
		RecipientUserID: domain.UserID(uuid.New()),
		Status:          status,
		MatchedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}
}

func TestInMemoryStore(t *testing.T) {
	ctx := context.Background()

	t.Run("create then get", func(t *testing.T) {
		s := NewInMemoryStore()
		m := newMatch(models.MatchPending)

		require.NoError(t, s.Create(ctx, m))

		got, err := s.Get(ctx, m.ID)
		require.NoError(t, err)
		assert.Equal(t, m.ID, got.ID)
		assert.Equal(t, models.MatchPending, got.Status)
	})

	t.Run("duplicate create conflicts", func(t *testing.T) {
		s := NewInMemoryStore()
		m := newMatch(models.MatchPending)

		require.NoError(t, s.Create(ctx, m))
		err := s.Create(ctx, m)

		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	})

	t.Run("get unknown id is not found", func(t *testing.T) {
		s := NewInMemoryStore()

		_, err := s.Get(ctx, domain.NewMatchID())

		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	t.Run("update changes status", func(t *testing.T) {
		s := NewInMemoryStore()
		m := newMatch(models.MatchPending)
		require.NoError(t, s.Create(ctx, m))

		m.Status = models.MatchDonorConfirmed
		require.NoError(t, s.Update(ctx, m))

		got, err := s.Get(ctx, m.ID)
		require.NoError(t, err)
		assert.Equal(t, models.MatchDonorConfirmed, got.Status)
	})

	t.Run("exists active for pair", func(t *testing.T) {
		s := NewInMemoryStore()
		active := newMatch(models.MatchDonorConfirmed)
		require.NoError(t, s.Create(ctx, active))
		retired := newMatch(models.MatchExpired)
		require.NoError(t, s.Create(ctx, retired))

		got, err := s.ExistsActiveForPair(ctx, active.DonationID, active.RequestID)
		require.NoError(t, err)
		assert.True(t, got)

		got, err = s.ExistsActiveForPair(ctx, retired.DonationID, retired.RequestID)
		require.NoError(t, err)
		assert.False(t, got)
	})

	t.Run("list by statuses", func(t *testing.T) {
		s := NewInMemoryStore()
		require.NoError(t, s.Create(ctx, newMatch(models.MatchPending)))
		require.NoError(t, s.Create(ctx, newMatch(models.MatchConfirmed)))
		require.NoError(t, s.Create(ctx, newMatch(models.MatchExpired)))

		got, err := s.ListByStatuses(ctx, models.MatchPending, models.MatchConfirmed)
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("list by users", func(t *testing.T) {
		s := NewInMemoryStore()
		m := newMatch(models.MatchPending)
		require.NoError(t, s.Create(ctx, m))
		require.NoError(t, s.Create(ctx, newMatch(models.MatchPending)))

		asDonor, err := s.ListByDonorUser(ctx, m.DonorUserID)
		require.NoError(t, err)
		require.Len(t, asDonor, 1)
		assert.Equal(t, m.ID, asDonor[0].ID)

		asRecipient, err := s.ListByRecipientUser(ctx, m.RecipientUserID)
		require.NoError(t, err)
		require.Len(t, asRecipient, 1)
		assert.Equal(t, m.ID, asRecipient[0].ID)
	})
}
