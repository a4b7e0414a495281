package lifecycle

import (
	"context"

	"lifelink/internal/matching/models"
	"lifelink/pkg/domain"
)

// Get returns a single match by id.
func (s *Service) Get(ctx context.Context, matchID domain.MatchID) (*models.Match, error) {
	return s.matches.Get(ctx, matchID)
}

// ListAsDonor returns every match where the user is the donating party.
func (s *Service) ListAsDonor(ctx context.Context, userID domain.UserID) ([]*models.Match, error) {
	return s.matches.ListByDonorUser(ctx, userID)
}

// ListAsRecipient returns every match where the user is the receiving party.
func (s *Service) ListAsRecipient(ctx context.Context, userID domain.UserID) ([]*models.Match, error) {
	return s.matches.ListByRecipientUser(ctx, userID)
}

// ListByDonation returns the match history of one donation.
func (s *Service) ListByDonation(ctx context.Context, donationID domain.DonationID) ([]*models.Match, error) {
	return s.matches.ListByDonation(ctx, donationID)
}

// ListByRequest returns the match history of one receive request.
func (s *Service) ListByRequest(ctx context.Context, requestID domain.RequestID) ([]*models.Match, error) {
	return s.matches.ListByRequest(ctx, requestID)
}

// ListAll returns every match. Admin surface only.
func (s *Service) ListAll(ctx context.Context) ([]*models.Match, error) {
	return s.matches.ListAll(ctx)
}

// GetDonation returns the local donation replica.
func (s *Service) GetDonation(ctx context.Context, donationID domain.DonationID) (*models.DonationReplica, error) {
	return s.donations.Get(ctx, donationID)
}

// GetRequest returns the local receive request replica.
func (s *Service) GetRequest(ctx context.Context, requestID domain.RequestID) (*models.RequestReplica, error) {
	return s.requests.Get(ctx, requestID)
}
