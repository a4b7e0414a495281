package engine

import (
	"context"
	"fmt"
	"sort"

	"lifelink/internal/matching/models"
	"lifelink/internal/matching/ports"
)

// Rule scorer constants. Deterministic stand-ins for the model's learned
// scores, chosen so rule matches rank below strong model matches.
const (
	ruleCompatibilityScore = 0.75
	ruleLocationNear       = 0.9
	ruleLocationFar        = 0.7
	ruleNearDistanceKm     = 100
)

// RuleScorer is the deterministic fallback used when the external scoring
// service is down or disabled.
type RuleScorer struct{}

// NewRuleScorer returns the fallback scorer.
func NewRuleScorer() *RuleScorer {
	return &RuleScorer{}
}

// Score accepts pairs whose blood types are identical or whose donation
// carries the universal donor type, and for organs additionally requires
// the same organ subtype. Accepted pairs get fixed scores; threshold and
// topN apply the same way as in the model path.
func (r *RuleScorer) Score(_ context.Context, candidates []ports.Candidate, topN int, threshold float64) ([]ports.ScoredPair, error) {
	var pairs []ports.ScoredPair
	for _, c := range candidates {
		if !bloodCompatible(c.Donor.BloodType, c.Recipient.BloodType) {
			continue
		}
		if c.Donation.Kind == models.MatchKindOrgan && c.Donation.Subtype() != c.Request.Subtype() {
			continue
		}
		if ruleCompatibilityScore < threshold {
			continue
		}

		locScore := ruleLocationFar
		if pairDistanceKm(c) < ruleNearDistanceKm {
			locScore = ruleLocationNear
		}
		pairs = append(pairs, ports.ScoredPair{
			DonationID: c.Donation.ID,
			RequestID:  c.Request.ID,
			Scores: models.ScoreCard{
				Compatibility: ruleCompatibilityScore,
				Blood:         1.0,
				Location:      locScore,
				Urgency:       c.Request.Urgency.Score(),
			},
			Reason: fmt.Sprintf("rule-based: blood type %s compatible with %s",
				c.Donor.BloodType, c.Recipient.BloodType),
		})
	}

	sort.SliceStable(pairs, func(i, j int) bool {
		return pairs[i].Scores.Urgency > pairs[j].Scores.Urgency
	})
	if topN > 0 && len(pairs) > topN {
		pairs = pairs[:topN]
	}
	return pairs, nil
}

func bloodCompatible(donor, recipient models.BloodType) bool {
	return donor == recipient || donor.IsUniversalDonor()
}

func pairDistanceKm(c ports.Candidate) float64 {
	var dLat, dLng, rLat, rLng *float64
	if c.DonorLoc != nil {
		dLat, dLng = c.DonorLoc.Latitude, c.DonorLoc.Longitude
	}
	if c.RecipientLoc != nil {
		rLat, rLng = c.RecipientLoc.Latitude, c.RecipientLoc.Longitude
	}
	return distanceKm(dLat, dLng, rLat, rLng)
}
