// Package lifecycle owns the match confirmation state machine: two-party
// confirmation, rejection and withdrawal, completion, the timeout sweep,
// and the operator-triggered manual match.
package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"lifelink/internal/matching/metrics"
	"lifelink/internal/matching/models"
	"lifelink/internal/matching/ports"
	"lifelink/pkg/domain"
	dErrors "lifelink/pkg/domain-errors"
)

type Service struct {
	matches   ports.MatchStore
	donations ports.DonationStore
	requests  ports.RequestStore
	locations ports.LocationStore
	publisher ports.MatchPublisher
	notifier  ports.SourceStatusNotifier

	logger  *slog.Logger
	metrics *metrics.Metrics

	sweepInterval   time.Duration
	confirmationTTL time.Duration

	now func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithNotifier installs the upstream status notifier used on completion.
func WithNotifier(n ports.SourceStatusNotifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

func WithSweepInterval(interval time.Duration) Option {
	return func(s *Service) {
		s.sweepInterval = interval
	}
}

// WithConfirmationTTL sets how long the second party has to confirm after
// the first confirmation.
func WithConfirmationTTL(ttl time.Duration) Option {
	return func(s *Service) {
		s.confirmationTTL = ttl
	}
}

// WithClock substitutes the wall clock. Tests use it to move time past the
// confirmation deadline.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func New(matches ports.MatchStore, donations ports.DonationStore, requests ports.RequestStore, locations ports.LocationStore, publisher ports.MatchPublisher, opts ...Option) (*Service, error) {
	switch {
	case matches == nil:
		return nil, errors.New("match store is required")
	case donations == nil:
		return nil, errors.New("donation store is required")
	case requests == nil:
		return nil, errors.New("request store is required")
	case locations == nil:
		return nil, errors.New("location store is required")
	case publisher == nil:
		return nil, errors.New("match publisher is required")
	}

	svc := &Service{
		matches:         matches,
		donations:       donations,
		requests:        requests,
		locations:       locations,
		publisher:       publisher,
		logger:          slog.Default(),
		sweepInterval:   15 * time.Minute,
		confirmationTTL: 48 * time.Hour,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// ConfirmByDonor records the donor's confirmation.
func (s *Service) ConfirmByDonor(ctx context.Context, matchID domain.MatchID, callerID domain.UserID) (*models.Match, error) {
	return s.confirm(ctx, matchID, callerID, true)
}

// ConfirmByRecipient records the recipient's confirmation.
func (s *Service) ConfirmByRecipient(ctx context.Context, matchID domain.MatchID, callerID domain.UserID) (*models.Match, error) {
	return s.confirm(ctx, matchID, callerID, false)
}

func (s *Service) confirm(ctx context.Context, matchID domain.MatchID, callerID domain.UserID, asDonor bool) (*models.Match, error) {
	match, err := s.matches.Get(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeParty(match, callerID, asDonor); err != nil {
		return nil, err
	}

	switch match.Status {
	case models.MatchPending, models.MatchDonorConfirmed, models.MatchRecipientConfirmed:
	default:
		return nil, dErrors.Newf(dErrors.CodeIllegalTransition,
			"match in state %s cannot be confirmed", match.Status)
	}
	if (asDonor && match.DonorConfirmed) || (!asDonor && match.RecipientConfirmed) {
		return nil, dErrors.New(dErrors.CodeIllegalTransition, "party has already confirmed this match")
	}

	now := s.now()
	if asDonor {
		match.DonorConfirmed = true
		match.DonorConfirmedAt = &now
	} else {
		match.RecipientConfirmed = true
		match.RecipientConfirmedAt = &now
	}

	if match.DonorConfirmed && match.RecipientConfirmed {
		match.Status = models.MatchConfirmed
	} else {
		// First confirmation starts the other party's clock.
		deadline := now.Add(s.confirmationTTL)
		match.ConfirmationDeadline = &deadline
		if asDonor {
			match.Status = models.MatchDonorConfirmed
		} else {
			match.Status = models.MatchRecipientConfirmed
		}
	}
	match.UpdatedAt = now

	if err := s.matches.Update(ctx, match); err != nil {
		return nil, err
	}
	s.logger.Info("match confirmation recorded",
		"match_id", match.ID, "status", match.Status, "as_donor", asDonor)
	return match, nil
}

// RejectByDonor retires the match with a donor-attributed rejection.
func (s *Service) RejectByDonor(ctx context.Context, matchID domain.MatchID, callerID domain.UserID) (*models.Match, error) {
	return s.retire(ctx, matchID, callerID, true, models.MatchRejected, models.ExpiryDonorRejected)
}

// RejectByRecipient retires the match with a recipient-attributed rejection.
func (s *Service) RejectByRecipient(ctx context.Context, matchID domain.MatchID, callerID domain.UserID) (*models.Match, error) {
	return s.retire(ctx, matchID, callerID, false, models.MatchRejected, models.ExpiryRecipientRejected)
}

// WithdrawByDonor cancels the match on the donor's initiative.
func (s *Service) WithdrawByDonor(ctx context.Context, matchID domain.MatchID, callerID domain.UserID) (*models.Match, error) {
	return s.retire(ctx, matchID, callerID, true, models.MatchCancelledByDonor, "")
}

// WithdrawByRecipient cancels the match on the recipient's initiative.
func (s *Service) WithdrawByRecipient(ctx context.Context, matchID domain.MatchID, callerID domain.UserID) (*models.Match, error) {
	return s.retire(ctx, matchID, callerID, false, models.MatchCancelledByRecip, "")
}

func (s *Service) retire(ctx context.Context, matchID domain.MatchID, callerID domain.UserID, asDonor bool, status models.MatchStatus, reason string) (*models.Match, error) {
	match, err := s.matches.Get(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeParty(match, callerID, asDonor); err != nil {
		return nil, err
	}

	// Rejection and withdrawal are only legal before full confirmation.
	switch match.Status {
	case models.MatchPending, models.MatchDonorConfirmed, models.MatchRecipientConfirmed:
	default:
		return nil, dErrors.Newf(dErrors.CodeIllegalTransition,
			"match in state %s cannot be rejected or withdrawn", match.Status)
	}

	now := s.now()
	match.Status = status
	match.ExpiredAt = &now
	match.ExpiryReason = reason
	match.UpdatedAt = now
	if err := s.matches.Update(ctx, match); err != nil {
		return nil, err
	}

	s.freeSources(ctx, match)
	s.logger.Info("match retired",
		"match_id", match.ID, "status", status, "reason", reason)
	return match, nil
}

// ConfirmCompletion records that the donation physically happened, along
// with the caller's receipt details when provided. Only a fully CONFIRMED
// match can complete. The upstream donor and recipient services are
// notified best effort.
func (s *Service) ConfirmCompletion(ctx context.Context, matchID domain.MatchID, callerID domain.UserID, receipt *models.CompletionReceipt) (*models.Match, error) {
	if err := validateReceipt(receipt); err != nil {
		return nil, err
	}
	match, err := s.matches.Get(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if callerID != match.DonorUserID && callerID != match.RecipientUserID {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "caller is not a party to this match")
	}
	if match.Status != models.MatchConfirmed {
		return nil, dErrors.Newf(dErrors.CodeIllegalTransition,
			"match in state %s cannot be completed", match.Status)
	}

	now := s.now()
	match.Status = models.MatchCompleted
	match.CompletedAt = &now
	match.Receipt = receipt
	match.UpdatedAt = now
	if err := s.matches.Update(ctx, match); err != nil {
		return nil, err
	}

	if err := s.donations.UpdateStatus(ctx, match.DonationID, models.DonationCompleted); err != nil {
		s.logger.Error("failed to mark donation completed",
			"donation_id", match.DonationID, "error", err)
	}
	if err := s.requests.UpdateStatus(ctx, match.RequestID, models.RequestFulfilled); err != nil {
		s.logger.Error("failed to mark request fulfilled",
			"request_id", match.RequestID, "error", err)
	}
	if s.notifier != nil {
		if err := s.notifier.NotifyDonationCompleted(ctx, match.DonationID); err != nil {
			s.logger.Warn("donor service completion notify failed",
				"donation_id", match.DonationID, "error", err)
		}
		if err := s.notifier.NotifyRequestFulfilled(ctx, match.RequestID); err != nil {
			s.logger.Warn("recipient service fulfillment notify failed",
				"request_id", match.RequestID, "error", err)
		}
	}
	s.logger.Info("match completed", "match_id", match.ID)
	return match, nil
}

func validateReceipt(receipt *models.CompletionReceipt) error {
	if receipt == nil {
		return nil
	}
	if receipt.Message == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "confirmation message is required")
	}
	if receipt.Rating < 0 || receipt.Rating > 5 {
		return dErrors.New(dErrors.CodeInvalidInput, "rating must be between 1 and 5")
	}
	if len(receipt.Notes) > 500 {
		return dErrors.New(dErrors.CodeInvalidInput, "notes must be at most 500 characters")
	}
	return nil
}

// RunSweep expires overdue single-confirmed matches on a fixed interval
// until ctx is cancelled.
func (s *Service) RunSweep(ctx context.Context) error {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.SweepOnce(ctx)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// SweepOnce expires matches in DONOR_CONFIRMED or RECIPIENT_CONFIRMED whose
// deadline has passed. PENDING matches are never expired: no one has
// committed yet, so there is nothing to time out.
func (s *Service) SweepOnce(ctx context.Context) {
	overdue, err := s.matches.ListByStatuses(ctx, models.MatchDonorConfirmed, models.MatchRecipientConfirmed)
	if err != nil {
		s.logger.Error("timeout sweep: list single-confirmed matches", "error", err)
		return
	}

	now := s.now()
	expired := 0
	for _, match := range overdue {
		if match.ConfirmationDeadline == nil || match.ConfirmationDeadline.After(now) {
			continue
		}

		reason := models.ExpiryRecipientNotConfirmed
		if match.Status == models.MatchRecipientConfirmed {
			reason = models.ExpiryDonorNotConfirmed
		}
		match.Status = models.MatchExpired
		match.ExpiredAt = &now
		match.ExpiryReason = reason
		match.UpdatedAt = now
		if err := s.matches.Update(ctx, match); err != nil {
			s.logger.Error("timeout sweep: expire match",
				"match_id", match.ID, "error", err)
			continue
		}
		s.metrics.IncrementExpired(reason)
		s.freeSources(ctx, match)
		expired++
	}
	if expired > 0 {
		s.logger.Info("timeout sweep complete", "expired", expired)
	}
}

// freeSources drops MATCHED sources back to PENDING when the retired match
// was the last active one holding them.
func (s *Service) freeSources(ctx context.Context, match *models.Match) {
	if err := s.resetDonationIfFree(ctx, match.DonationID); err != nil {
		s.logger.Error("failed to reset donation after match retirement",
			"donation_id", match.DonationID, "error", err)
	}
	if err := s.resetRequestIfFree(ctx, match.RequestID); err != nil {
		s.logger.Error("failed to reset request after match retirement",
			"request_id", match.RequestID, "error", err)
	}
}

func (s *Service) resetDonationIfFree(ctx context.Context, donationID domain.DonationID) error {
	donation, err := s.donations.Get(ctx, donationID)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return nil
		}
		return err
	}
	if donation.Status != models.DonationMatched {
		return nil
	}
	matches, err := s.matches.ListByDonation(ctx, donationID)
	if err != nil {
		return err
	}
	for _, m := range matches {
		if m.Status.Active() {
			return nil
		}
	}
	return s.donations.UpdateStatus(ctx, donationID, models.DonationPending)
}

func (s *Service) resetRequestIfFree(ctx context.Context, requestID domain.RequestID) error {
	request, err := s.requests.Get(ctx, requestID)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return nil
		}
		return err
	}
	if request.Status != models.RequestMatched {
		return nil
	}
	matches, err := s.matches.ListByRequest(ctx, requestID)
	if err != nil {
		return err
	}
	for _, m := range matches {
		if m.Status.Active() {
			return nil
		}
	}
	return s.requests.UpdateStatus(ctx, requestID, models.RequestPending)
}

func (s *Service) authorizeParty(match *models.Match, callerID domain.UserID, asDonor bool) error {
	if asDonor && callerID != match.DonorUserID {
		return dErrors.New(dErrors.CodeUnauthorized, "caller is not the donor on this match")
	}
	if !asDonor && callerID != match.RecipientUserID {
		return dErrors.New(dErrors.CodeUnauthorized, "caller is not the recipient on this match")
	}
	return nil
}
