package lifecycle

import (
	"context"
	"fmt"
	"time"

	"lifelink/internal/matching/models"
	"lifelink/pkg/domain"
)

// ManualMatchInput is the operator-supplied pairing. Location IDs override
// the ones stored on the donation and request when set.
type ManualMatchInput struct {
	DonationID          domain.DonationID
	RequestID           domain.RequestID
	DonorLocationID     domain.LocationID
	RecipientLocationID domain.LocationID
}

// ManualMatchResult is always returned, even on validation failure: this
// path is called synchronously from an administrative request and must not
// surface internal errors as crashes.
type ManualMatchResult struct {
	Success bool
	Message string
	Match   *models.Match
}

// ManualMatch creates a PENDING match directly from a donation/request
// pair, bypassing the scheduler. Distance and scores are left at zero.
func (s *Service) ManualMatch(ctx context.Context, input ManualMatchInput) ManualMatchResult {
	donation, err := s.donations.Get(ctx, input.DonationID)
	if err != nil {
		return failure("donation %s not found", input.DonationID)
	}
	request, err := s.requests.Get(ctx, input.RequestID)
	if err != nil {
		return failure("receive request %s not found", input.RequestID)
	}

	if donation.UserID == request.UserID {
		return failure("donation and request belong to the same user")
	}
	if donation.Kind != request.Kind {
		return failure("donation kind %s does not match request kind %s", donation.Kind, request.Kind)
	}
	if !donation.Status.Matchable() {
		return failure("donation %s is not matchable in status %s", donation.ID, donation.Status)
	}
	if !request.Status.Matchable() {
		return failure("request %s is not matchable in status %s", request.ID, request.Status)
	}

	exists, err := s.matches.ExistsActiveForPair(ctx, donation.ID, request.ID)
	if err != nil {
		s.logger.Error("manual match: pair existence check failed", "error", err)
		return failure("could not verify existing matches for pair")
	}
	if exists {
		return failure("an active match already exists for this pair")
	}

	donorLocID := donation.LocationID
	if !input.DonorLocationID.IsNil() {
		donorLocID = input.DonorLocationID
	}
	recipientLocID := request.LocationID
	if !input.RecipientLocationID.IsNil() {
		recipientLocID = input.RecipientLocationID
	}

	now := time.Now()
	match := &models.Match{
		ID:                  domain.NewMatchID(),
		DonationID:          donation.ID,
		RequestID:           request.ID,
		DonorUserID:         donation.UserID,
		RecipientUserID:     request.UserID,
		DonorLocationID:     donorLocID,
		RecipientLocationID: recipientLocID,
		Kind:                donation.Kind,
		Status:              models.MatchPending,
		Source:              models.SourceManual,
		MatchReason:         "manual match created by operator",
		MatchedAt:           now,
		UpdatedAt:           now,
	}
	if loc, err := s.locations.Get(ctx, donorLocID); err == nil {
		match.DonorLocation = loc.Summary()
	}
	if loc, err := s.locations.Get(ctx, recipientLocID); err == nil {
		match.RecipientLocation = loc.Summary()
	}

	if err := s.matches.Create(ctx, match); err != nil {
		s.logger.Error("manual match: create failed", "error", err)
		return failure("failed to persist match")
	}
	s.metrics.IncrementCreated(string(models.SourceManual))

	if err := s.donations.UpdateStatus(ctx, donation.ID, models.DonationMatched); err != nil {
		s.logger.Error("manual match: mark donation matched",
			"donation_id", donation.ID, "error", err)
	}
	if err := s.requests.UpdateStatus(ctx, request.ID, models.RequestMatched); err != nil {
		s.logger.Error("manual match: mark request matched",
			"request_id", request.ID, "error", err)
	}
	if err := s.publisher.PublishMatchFound(ctx, match); err != nil {
		s.logger.Error("manual match: publish match-found event",
			"match_id", match.ID, "error", err)
	}

	return ManualMatchResult{
		Success: true,
		Message: "match created",
		Match:   match,
	}
}

func failure(format string, args ...any) ManualMatchResult {
	return ManualMatchResult{Success: false, Message: fmt.Sprintf(format, args...)}
}
