package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lifelink/internal/matching/events"
	"lifelink/internal/matching/models"
	donationstore "lifelink/internal/matching/store/donation"
	donorstore "lifelink/internal/matching/store/donor"
	hlastore "lifelink/internal/matching/store/hla"
	locationstore "lifelink/internal/matching/store/location"
	matchstore "lifelink/internal/matching/store/match"
	recipientstore "lifelink/internal/matching/store/recipient"
	requeststore "lifelink/internal/matching/store/request"
	"lifelink/pkg/domain"
)

type fixture struct {
	svc       *Service
	donations *donationstore.InMemoryStore
	requests  *requeststore.InMemoryStore
	matches   *matchstore.InMemoryStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	donations := donationstore.NewInMemoryStore()
	requests := requeststore.NewInMemoryStore()
	matches := matchstore.NewInMemoryStore()
	svc, err := New(Stores{
		Donors:     donorstore.NewInMemoryStore(),
		Recipients: recipientstore.NewInMemoryStore(),
		Locations:  locationstore.NewInMemoryStore(),
		HLA:        hlastore.NewInMemoryStore(),
		Donations:  donations,
		Requests:   requests,
		Matches:    matches,
	})
	require.NoError(t, err)
	return &fixture{svc: svc, donations: donations, requests: requests, matches: matches}
}

func donorEvent(donorID, userID string) events.DonorEvent {
	return events.DonorEvent{
		DonorID:      donorID,
		UserID:       userID,
		BloodType:    "O_NEGATIVE",
		Age:          30,
		WeightKG:     70,
		Availability: true,
		EventTime:    time.Now(),
	}
}

func locationEvent(locationID, ownerID string) events.LocationEvent {
	lat, lng := 12.9716, 77.5946
	return events.LocationEvent{
		LocationID: locationID,
		OwnerID:    ownerID,
		City:       "Bengaluru",
		State:      "Karnataka",
		Latitude:   &lat,
		Longitude:  &lng,
		EventTime:  time.Now(),
	}
}

func donationEvent(donationID, donorID, userID, locationID string) events.DonationEvent {
	return events.DonationEvent{
		DonationID: donationID,
		DonorID:    donorID,
		UserID:     userID,
		LocationID: locationID,
		Kind:       "BLOOD",
		Status:     "PENDING",
		Details:    events.KindDetails{QuantityML: 450},
		EventTime:  time.Now(),
	}
}

func TestApplyDonation(t *testing.T) {
	ctx := context.Background()

	t.Run("applies when dependencies exist", func(t *testing.T) {
		f := newFixture(t)
		donorID, userID, locationID := uuid.NewString(), uuid.NewString(), uuid.NewString()
		donationID := uuid.NewString()

		require.NoError(t, f.svc.ApplyDonor(ctx, donorEvent(donorID, userID)))
		require.NoError(t, f.svc.ApplyLocation(ctx, locationEvent(locationID, userID)))
		require.NoError(t, f.svc.ApplyDonation(ctx, donationEvent(donationID, donorID, userID, locationID)))

		parsed, err := domain.ParseDonationID(donationID)
		require.NoError(t, err)
		got, err := f.donations.Get(ctx, parsed)
		require.NoError(t, err)
		assert.Equal(t, models.DonationPending, got.Status)
		require.NotNil(t, got.Blood)
		assert.Equal(t, 450, got.Blood.QuantityML)
	})

	t.Run("defers until donor arrives", func(t *testing.T) {
		f := newFixture(t)
		donorID, userID, locationID := uuid.NewString(), uuid.NewString(), uuid.NewString()
		donationID := uuid.NewString()

		require.NoError(t, f.svc.ApplyLocation(ctx, locationEvent(locationID, userID)))
		require.NoError(t, f.svc.ApplyDonation(ctx, donationEvent(donationID, donorID, userID, locationID)))
		assert.Equal(t, 1, f.svc.DeferredCount())

		parsed, err := domain.ParseDonationID(donationID)
		require.NoError(t, err)
		_, err = f.donations.Get(ctx, parsed)
		require.Error(t, err)

		// Donor arrival drains the buffer and the donation materializes.
		require.NoError(t, f.svc.ApplyDonor(ctx, donorEvent(donorID, userID)))
		assert.Equal(t, 0, f.svc.DeferredCount())
		got, err := f.donations.Get(ctx, parsed)
		require.NoError(t, err)
		assert.Equal(t, models.DonationPending, got.Status)
	})

	t.Run("re-defers to location after donor replay", func(t *testing.T) {
		f := newFixture(t)
		donorID, userID, locationID := uuid.NewString(), uuid.NewString(), uuid.NewString()
		donationID := uuid.NewString()

		require.NoError(t, f.svc.ApplyDonation(ctx, donationEvent(donationID, donorID, userID, locationID)))
		require.NoError(t, f.svc.ApplyDonor(ctx, donorEvent(donorID, userID)))
		assert.Equal(t, 1, f.svc.DeferredCount())

		require.NoError(t, f.svc.ApplyLocation(ctx, locationEvent(locationID, userID)))
		assert.Equal(t, 0, f.svc.DeferredCount())

		parsed, err := domain.ParseDonationID(donationID)
		require.NoError(t, err)
		_, err = f.donations.Get(ctx, parsed)
		assert.NoError(t, err)
	})

	t.Run("one bad buffered event does not block its siblings", func(t *testing.T) {
		f := newFixture(t)
		donorID, userID, locationID := uuid.NewString(), uuid.NewString(), uuid.NewString()
		badID, goodID := uuid.NewString(), uuid.NewString()

		require.NoError(t, f.svc.ApplyLocation(ctx, locationEvent(locationID, userID)))

		// Both donations park on the missing donor, the broken one first.
		bad := donationEvent(badID, donorID, userID, locationID)
		bad.Kind = "PLASMA"
		require.NoError(t, f.svc.ApplyDonation(ctx, bad))
		require.NoError(t, f.svc.ApplyDonation(ctx, donationEvent(goodID, donorID, userID, locationID)))
		assert.Equal(t, 2, f.svc.DeferredCount())

		require.NoError(t, f.svc.ApplyDonor(ctx, donorEvent(donorID, userID)))

		assert.Equal(t, 0, f.svc.DeferredCount())
		parsed, err := domain.ParseDonationID(goodID)
		require.NoError(t, err)
		_, err = f.donations.Get(ctx, parsed)
		assert.NoError(t, err)
		parsedBad, err := domain.ParseDonationID(badID)
		require.NoError(t, err)
		_, err = f.donations.Get(ctx, parsedBad)
		assert.Error(t, err)
	})

	t.Run("duplicate delivery is a no-op", func(t *testing.T) {
		f := newFixture(t)
		donorID, userID, locationID := uuid.NewString(), uuid.NewString(), uuid.NewString()
		donationID := uuid.NewString()
		ev := donationEvent(donationID, donorID, userID, locationID)

		require.NoError(t, f.svc.ApplyDonor(ctx, donorEvent(donorID, userID)))
		require.NoError(t, f.svc.ApplyLocation(ctx, locationEvent(locationID, userID)))
		require.NoError(t, f.svc.ApplyDonation(ctx, ev))
		require.NoError(t, f.svc.ApplyDonation(ctx, ev))

		parsed, err := domain.ParseDonationID(donationID)
		require.NoError(t, err)
		_, err = f.donations.Get(ctx, parsed)
		assert.NoError(t, err)
	})

	t.Run("rejects malformed ids", func(t *testing.T) {
		f := newFixture(t)
		ev := donationEvent(uuid.NewString(), "not-a-uuid", uuid.NewString(), uuid.NewString())

		err := f.svc.ApplyDonation(ctx, ev)

		assert.Error(t, err)
	})
}

func TestApplyDonationCancelled(t *testing.T) {
	ctx := context.Background()

	t.Run("retires active matches and frees the request", func(t *testing.T) {
		f := newFixture(t)
		donationID := domain.DonationID(uuid.New())
		requestID := domain.RequestID(uuid.New())

		require.NoError(t, f.donations.Upsert(ctx, &models.DonationReplica{
			ID: donationID, Kind: models.MatchKindBlood, Status: models.DonationMatched,
		}))
		require.NoError(t, f.requests.Upsert(ctx, &models.RequestReplica{
			ID: requestID, Kind: models.MatchKindBlood, Status: models.RequestMatched,
		}))
		require.NoError(t, f.matches.Create(ctx, &models.Match{
			ID:         domain.NewMatchID(),
			DonationID: donationID,
			RequestID:  requestID,
			Status:     models.MatchPending,
			MatchedAt:  time.Now(),
		}))

		require.NoError(t, f.svc.ApplyDonationCancelled(ctx, events.CancellationEvent{
			DonationID: donationID.String(),
		}))

		donation, err := f.donations.Get(ctx, donationID)
		require.NoError(t, err)
		assert.Equal(t, models.DonationCancelled, donation.Status)

		matches, err := f.matches.ListByDonation(ctx, donationID)
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, models.MatchCancelledByDonor, matches[0].Status)
		assert.Equal(t, models.ExpiryDonationCancelled, matches[0].ExpiryReason)
		require.NotNil(t, matches[0].ExpiredAt)

		request, err := f.requests.Get(ctx, requestID)
		require.NoError(t, err)
		assert.Equal(t, models.RequestPending, request.Status)
	})

	t.Run("unknown donation is a no-op", func(t *testing.T) {
		f := newFixture(t)

		err := f.svc.ApplyDonationCancelled(ctx, events.CancellationEvent{
			DonationID: uuid.NewString(),
		})

		assert.NoError(t, err)
	})
}
