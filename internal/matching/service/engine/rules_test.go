package engine

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lifelink/internal/matching/models"
	"lifelink/internal/matching/ports"
	"lifelink/pkg/domain"
)

func bloodCandidate(donorType, recipientType models.BloodType) ports.Candidate {
	return ports.Candidate{
		Donation: &models.DonationReplica{
			ID:    domain.DonationID(uuid.New()),
			Kind:  models.MatchKindBlood,
			Blood: &models.BloodDonationDetails{QuantityML: 450},
		},
		Donor: &models.DonorReplica{BloodType: donorType},
		Request: &models.RequestReplica{
			ID:      domain.RequestID(uuid.New()),
			Kind:    models.MatchKindBlood,
			Urgency: models.UrgencyMedium,
		},
		Recipient: &models.RecipientReplica{BloodType: recipientType},
	}
}

func organCandidate(donorOrgan, requestOrgan string) ports.Candidate {
	c := bloodCandidate(models.BloodTypeAPositive, models.BloodTypeAPositive)
	c.Donation.Kind = models.MatchKindOrgan
	c.Donation.Blood = nil
	c.Donation.Organ = &models.OrganDonationDetails{OrganType: donorOrgan}
	c.Request.Kind = models.MatchKindOrgan
	c.Request.Organ = &models.OrganDonationDetails{OrganType: requestOrgan}
	return c
}

func TestRuleScorer(t *testing.T) {
	ctx := context.Background()
	scorer := NewRuleScorer()

	t.Run("universal donor matches any blood type", func(t *testing.T) {
		c := bloodCandidate(models.BloodTypeONegative, models.BloodTypeABPositive)

		pairs, err := scorer.Score(ctx, []ports.Candidate{c}, 10, 0.5)

		require.NoError(t, err)
		require.Len(t, pairs, 1)
		assert.Equal(t, ruleCompatibilityScore, pairs[0].Scores.Compatibility)
	})

	t.Run("mismatched non-universal blood never matches", func(t *testing.T) {
		c := bloodCandidate(models.BloodTypeAPositive, models.BloodTypeBPositive)

		pairs, err := scorer.Score(ctx, []ports.Candidate{c}, 10, 0.5)

		require.NoError(t, err)
		assert.Empty(t, pairs)
	})

	t.Run("identical blood types match", func(t *testing.T) {
		c := bloodCandidate(models.BloodTypeBNegative, models.BloodTypeBNegative)

		pairs, err := scorer.Score(ctx, []ports.Candidate{c}, 10, 0.5)

		require.NoError(t, err)
		assert.Len(t, pairs, 1)
	})

	t.Run("organ subtype mismatch never matches", func(t *testing.T) {
		c := organCandidate("KIDNEY", "LIVER")

		pairs, err := scorer.Score(ctx, []ports.Candidate{c}, 10, 0.5)

		require.NoError(t, err)
		assert.Empty(t, pairs)
	})

	t.Run("organ subtype equality matches", func(t *testing.T) {
		c := organCandidate("KIDNEY", "KIDNEY")

		pairs, err := scorer.Score(ctx, []ports.Candidate{c}, 10, 0.5)

		require.NoError(t, err)
		assert.Len(t, pairs, 1)
	})

	t.Run("location score reflects distance", func(t *testing.T) {
		near := bloodCandidate(models.BloodTypeOPositive, models.BloodTypeOPositive)
		lat, lng := 12.97, 77.59
		near.DonorLoc = &models.LocationReplica{Latitude: &lat, Longitude: &lng}
		near.RecipientLoc = &models.LocationReplica{Latitude: &lat, Longitude: &lng}

		far := bloodCandidate(models.BloodTypeOPositive, models.BloodTypeOPositive)

		pairs, err := scorer.Score(ctx, []ports.Candidate{near, far}, 10, 0.5)

		require.NoError(t, err)
		require.Len(t, pairs, 2)
		byDonation := map[domain.DonationID]ports.ScoredPair{}
		for _, p := range pairs {
			byDonation[p.DonationID] = p
		}
		assert.Equal(t, ruleLocationNear, byDonation[near.Donation.ID].Scores.Location)
		assert.Equal(t, ruleLocationFar, byDonation[far.Donation.ID].Scores.Location)
	})

	t.Run("threshold above the fixed score yields nothing", func(t *testing.T) {
		c := bloodCandidate(models.BloodTypeOPositive, models.BloodTypeOPositive)

		pairs, err := scorer.Score(ctx, []ports.Candidate{c}, 10, 0.8)

		require.NoError(t, err)
		assert.Empty(t, pairs)
	})

	t.Run("topN caps results preferring urgency", func(t *testing.T) {
		low := bloodCandidate(models.BloodTypeOPositive, models.BloodTypeOPositive)
		low.Request.Urgency = models.UrgencyLow
		critical := bloodCandidate(models.BloodTypeOPositive, models.BloodTypeOPositive)
		critical.Request.Urgency = models.UrgencyCritical

		pairs, err := scorer.Score(ctx, []ports.Candidate{low, critical}, 1, 0.5)

		require.NoError(t, err)
		require.Len(t, pairs, 1)
		assert.Equal(t, critical.Request.ID, pairs[0].RequestID)
	})
}
