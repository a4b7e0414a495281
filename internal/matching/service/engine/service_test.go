package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lifelink/internal/matching/models"
	"lifelink/internal/matching/ports"
	donationstore "lifelink/internal/matching/store/donation"
	donorstore "lifelink/internal/matching/store/donor"
	hlastore "lifelink/internal/matching/store/hla"
	locationstore "lifelink/internal/matching/store/location"
	matchstore "lifelink/internal/matching/store/match"
	recipientstore "lifelink/internal/matching/store/recipient"
	requeststore "lifelink/internal/matching/store/request"
	"lifelink/pkg/domain"
)

type capturingPublisher struct {
	published []*models.Match
}

func (p *capturingPublisher) PublishMatchFound(_ context.Context, m *models.Match) error {
	p.published = append(p.published, m)
	return nil
}

type failingScorer struct {
	calls int
}

func (s *failingScorer) Score(context.Context, []ports.Candidate, int, float64) ([]ports.ScoredPair, error) {
	s.calls++
	return nil, errors.New("scoring service down")
}

type engineFixture struct {
	svc        *Service
	donations  *donationstore.InMemoryStore
	requests   *requeststore.InMemoryStore
	matches    *matchstore.InMemoryStore
	donors     *donorstore.InMemoryStore
	recipients *recipientstore.InMemoryStore
	publisher  *capturingPublisher
}

func newEngineFixture(t *testing.T, opts ...Option) *engineFixture {
	t.Helper()
	f := &engineFixture{
		donations:  donationstore.NewInMemoryStore(),
		requests:   requeststore.NewInMemoryStore(),
		matches:    matchstore.NewInMemoryStore(),
		donors:     donorstore.NewInMemoryStore(),
		recipients: recipientstore.NewInMemoryStore(),
		publisher:  &capturingPublisher{},
	}
	stores := Stores{
		Donations:  f.donations,
		Requests:   f.requests,
		Donors:     f.donors,
		Recipients: f.recipients,
		Locations:  locationstore.NewInMemoryStore(),
		HLA:        hlastore.NewInMemoryStore(),
		Matches:    f.matches,
	}
	svc, err := New(stores, f.publisher, append([]Option{WithFallback(NewRuleScorer())}, opts...)...)
	require.NoError(t, err)
	f.svc = svc
	return f
}

func (f *engineFixture) seedPair(t *testing.T, donorBlood, recipientBlood models.BloodType) (domain.DonationID, domain.RequestID) {
	t.Helper()
	ctx := context.Background()
	now := time.Now()

	donorID := domain.DonorID(uuid.New())
	donorUser := domain.UserID(uuid.New())
	require.NoError(t, f.donors.Upsert(ctx, &models.DonorReplica{
		ID: donorID, UserID: donorUser, BloodType: donorBlood, Availability: true, UpdatedAt: now,
	}))
	donationID := domain.DonationID(uuid.New())
	require.NoError(t, f.donations.Upsert(ctx, &models.DonationReplica{
		ID: donationID, DonorID: donorID, UserID: donorUser,
		LocationID: domain.LocationID(uuid.New()),
		Kind:       models.MatchKindBlood, Status: models.DonationPending,
		Blood:     &models.BloodDonationDetails{QuantityML: 450},
		CreatedAt: now, UpdatedAt: now,
	}))

	recipientID := domain.RecipientID(uuid.New())
	recipientUser := domain.UserID(uuid.New())
	require.NoError(t, f.recipients.Upsert(ctx, &models.RecipientReplica{
		ID: recipientID, UserID: recipientUser, BloodType: recipientBlood, Availability: true, UpdatedAt: now,
	}))
	requestID := domain.RequestID(uuid.New())
	require.NoError(t, f.requests.Upsert(ctx, &models.RequestReplica{
		ID: requestID, RecipientID: recipientID, UserID: recipientUser,
		LocationID: domain.LocationID(uuid.New()),
		Kind:       models.MatchKindBlood, Status: models.RequestPending,
		Urgency:   models.UrgencyHigh,
		Blood:     &models.BloodDonationDetails{QuantityML: 450},
		CreatedAt: now, UpdatedAt: now,
	}))
	return donationID, requestID
}

func TestRunOnce(t *testing.T) {
	ctx := context.Background()

	t.Run("creates a match via the rule fallback", func(t *testing.T) {
		f := newEngineFixture(t)
		donationID, requestID := f.seedPair(t, models.BloodTypeONegative, models.BloodTypeABPositive)

		f.svc.RunOnce(ctx)

		created, err := f.matches.ListByDonation(ctx, donationID)
		require.NoError(t, err)
		require.Len(t, created, 1)
		m := created[0]
		assert.Equal(t, requestID, m.RequestID)
		assert.Equal(t, models.MatchPending, m.Status)
		assert.Equal(t, models.SourceEngine, m.Source)
		assert.Equal(t, ruleCompatibilityScore, m.Scores.Compatibility)

		donation, err := f.donations.Get(ctx, donationID)
		require.NoError(t, err)
		assert.Equal(t, models.DonationMatched, donation.Status)
		request, err := f.requests.Get(ctx, requestID)
		require.NoError(t, err)
		assert.Equal(t, models.RequestMatched, request.Status)

		require.Len(t, f.publisher.published, 1)
		assert.Equal(t, m.ID, f.publisher.published[0].ID)
	})

	t.Run("incompatible blood produces no match", func(t *testing.T) {
		f := newEngineFixture(t)
		donationID, _ := f.seedPair(t, models.BloodTypeAPositive, models.BloodTypeBPositive)

		f.svc.RunOnce(ctx)

		created, err := f.matches.ListByDonation(ctx, donationID)
		require.NoError(t, err)
		assert.Empty(t, created)
		assert.Empty(t, f.publisher.published)
	})

	t.Run("primary scorer failure falls back to rules", func(t *testing.T) {
		primary := &failingScorer{}
		f := newEngineFixture(t, WithScorer(primary))
		donationID, _ := f.seedPair(t, models.BloodTypeONegative, models.BloodTypeOPositive)

		f.svc.RunOnce(ctx)

		assert.Equal(t, 1, primary.calls)
		created, err := f.matches.ListByDonation(ctx, donationID)
		require.NoError(t, err)
		assert.Len(t, created, 1)
	})

	t.Run("no duplicate active match across two passes", func(t *testing.T) {
		f := newEngineFixture(t)
		donationID, requestID := f.seedPair(t, models.BloodTypeONegative, models.BloodTypeOPositive)

		f.svc.RunOnce(ctx)
		// Force the sources back to PENDING as if the status flip raced,
		// then run again over the same data.
		require.NoError(t, f.donations.UpdateStatus(ctx, donationID, models.DonationPending))
		require.NoError(t, f.requests.UpdateStatus(ctx, requestID, models.RequestPending))
		f.svc.RunOnce(ctx)

		created, err := f.matches.ListByDonation(ctx, donationID)
		require.NoError(t, err)
		active := 0
		for _, m := range created {
			if m.Status.Active() {
				active++
			}
		}
		assert.Equal(t, 1, active)
	})

	t.Run("same user on both sides never matches", func(t *testing.T) {
		f := newEngineFixture(t)
		donationID, requestID := f.seedPair(t, models.BloodTypeONegative, models.BloodTypeOPositive)

		// Rewrite the request so it belongs to the donating user.
		donation, err := f.donations.Get(ctx, donationID)
		require.NoError(t, err)
		request, err := f.requests.Get(ctx, requestID)
		require.NoError(t, err)
		request.UserID = donation.UserID
		require.NoError(t, f.requests.Upsert(ctx, request))

		f.svc.RunOnce(ctx)

		created, err := f.matches.ListByDonation(ctx, donationID)
		require.NoError(t, err)
		assert.Empty(t, created)
	})
}
