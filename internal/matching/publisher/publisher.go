// Package publisher emits match lifecycle events to Kafka.
package publisher

import (
	"context"
	"errors"

	"lifelink/internal/matching/events"
	"lifelink/internal/matching/models"
	"lifelink/internal/platform/kafka/producer"
)

// Kafka publishes match-found events, keyed by match id so per-match
// events stay ordered.
type Kafka struct {
	producer *producer.Producer
}

func New(p *producer.Producer) (*Kafka, error) {
	if p == nil {
		return nil, errors.New("kafka producer is required")
	}
	return &Kafka{producer: p}, nil
}

func (k *Kafka) PublishMatchFound(ctx context.Context, match *models.Match) error {
	ev := events.MatchFoundEvent{
		MatchID:             match.ID.String(),
		DonationID:          match.DonationID.String(),
		ReceiveRequestID:    match.RequestID.String(),
		DonorUserID:         match.DonorUserID.String(),
		RecipientUserID:     match.RecipientUserID.String(),
		DonorLocationID:     match.DonorLocationID.String(),
		RecipientLocationID: match.RecipientLocationID.String(),
		Kind:                string(match.Kind),
		DistanceKm:          match.DistanceKm,
		CompatibilityScore:  match.Scores.Compatibility,
		MatchReason:         match.MatchReason,
		PriorityRank:        match.PriorityRank,
		MatchedAt:           match.MatchedAt,
	}
	return k.producer.PublishJSON(ctx, events.TopicMatchFound, ev.MatchID, ev)
}
