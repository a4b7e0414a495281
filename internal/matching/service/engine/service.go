// Package engine runs the periodic matching pass: pending supply against
// pending demand, scored by the external model with a deterministic rule
// fallback behind a circuit breaker.
package engine

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
	"lifelink/pkg/platform/circuit"
)

type Service struct {
	donations  ports.DonationStore
	requests   ports.RequestStore
	donors     ports.DonorStore
	recipients ports.RecipientStore
	locations  ports.LocationStore
	hla        ports.HLAStore
	matches    ports.MatchStore
	publisher  ports.MatchPublisher

	scorer   ports.Scorer
	fallback ports.Scorer

	// Breaker state is only touched from the pass goroutine.
	breaker         *circuit.Breaker
	breakerOpenedAt time.Time
	breakerCooldown time.Duration

	logger  *slog.Logger
	metrics *metrics.Metrics

	interval  time.Duration
	topN      int
	threshold float64
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

// WithScorer installs the primary (model-backed) scorer. Without one every
// pass goes straight to the fallback.
func WithScorer(scorer ports.Scorer) Option {
	return func(s *Service) {
		s.scorer = scorer
	}
}

// WithFallback installs the rule-based fallback scorer. Without one a
// primary failure yields zero matches for that kind.
func WithFallback(fallback ports.Scorer) Option {
	return func(s *Service) {
		s.fallback = fallback
	}
}

func WithInterval(interval time.Duration) Option {
	return func(s *Service) {
		s.interval = interval
	}
}

func WithBatchLimits(topN int, threshold float64) Option {
	return func(s *Service) {
		s.topN = topN
		s.threshold = threshold
	}
}

// Stores bundles the store dependencies to keep New readable.
type Stores struct {
	Donations  ports.DonationStore
	Requests   ports.RequestStore
	Donors     ports.DonorStore
	Recipients ports.RecipientStore
	Locations  ports.LocationStore
	HLA        ports.HLAStore
	Matches    ports.MatchStore
}

func New(stores Stores, publisher ports.MatchPublisher, opts ...Option) (*Service, error) {
	switch {
	case stores.Donations == nil:
		return nil, errors.New("donation store is required")
	case stores.Requests == nil:
		return nil, errors.New("request store is required")
	case stores.Donors == nil:
		return nil, errors.New("donor store is required")
	case stores.Recipients == nil:
		return nil, errors.New("recipient store is required")
	case stores.Locations == nil:
		return nil, errors.New("location store is required")
	case stores.HLA == nil:
		return nil, errors.New("hla store is required")
	case stores.Matches == nil:
		return nil, errors.New("match store is required")
	case publisher == nil:
		return nil, errors.New("match publisher is required")
	}

	svc := &Service{
		donations:       stores.Donations,
		requests:        stores.Requests,
		donors:          stores.Donors,
		recipients:      stores.Recipients,
		locations:       stores.Locations,
		hla:             stores.HLA,
		matches:         stores.Matches,
		publisher:       publisher,
		breaker:         circuit.New("scoring-service"),
		breakerCooldown: 5 * time.Minute,
		logger:          slog.Default(),
		interval:        10 * time.Minute,
		topN:            10,
		threshold:       0.5,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Run executes matching passes on a fixed interval until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.RunOnce(ctx)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// RunOnce executes a single matching pass. Failures are contained per kind
// and per match; the pass always completes.
func (s *Service) RunOnce(ctx context.Context) {
	started := time.Now()
	defer func() {
		s.metrics.ObserveEnginePass(time.Since(started))
	}()

	donations, err := s.donations.ListByStatuses(ctx, models.DonationPending)
	if err != nil {
		s.logger.Error("matching pass: load pending donations", "error", err)
		return
	}
	requests, err := s.requests.ListByStatuses(ctx, models.RequestPending)
	if err != nil {
		s.logger.Error("matching pass: load pending requests", "error", err)
		return
	}
	if len(donations) == 0 || len(requests) == 0 {
		return
	}

	donationsByKind := make(map[models.MatchKind][]*models.DonationReplica)
	for _, d := range donations {
		donationsByKind[d.Kind] = append(donationsByKind[d.Kind], d)
	}
	requestsByKind := make(map[models.MatchKind][]*models.RequestReplica)
	for _, r := range requests {
		requestsByKind[r.Kind] = append(requestsByKind[r.Kind], r)
	}

	total := 0
	for kind, kindDonations := range donationsByKind {
		kindRequests := requestsByKind[kind]
		if len(kindRequests) == 0 {
			continue
		}
		created := s.matchKind(ctx, kind, kindDonations, kindRequests)
		total += created
	}
	if total > 0 {
		s.logger.Info("matching pass complete",
			"matches_created", total,
			"duration", time.Since(started),
		)
	}
}

func (s *Service) matchKind(ctx context.Context, kind models.MatchKind, donations []*models.DonationReplica, requests []*models.RequestReplica) int {
	candidates := s.assembleCandidates(ctx, donations, requests)
	if len(candidates) == 0 {
		return 0
	}

	pairs, err := s.score(ctx, candidates)
	if err != nil {
		s.logger.Error("scoring failed for kind, zero matches this pass",
			"kind", kind, "error", err)
		return 0
	}

	index := indexCandidates(candidates)
	created := 0
	for _, pair := range pairs {
		candidate, ok := index[pairKey{pair.DonationID, pair.RequestID}]
		if !ok {
			continue
		}
		if err := s.persistMatch(ctx, candidate, pair); err != nil {
			if dErrors.HasCode(err, dErrors.CodeConflict) || dErrors.HasCode(err, dErrors.CodeValidation) {
				continue
			}
			s.logger.Error("failed to persist match",
				"donation_id", pair.DonationID,
				"request_id", pair.RequestID,
				"error", err,
			)
			continue
		}
		created++
	}
	return created
}

// score tries the primary scorer behind the circuit breaker and routes
// failures to the rule fallback. An open breaker skips the primary until a
// cooldown elapses, after which each pass probes it again.
func (s *Service) score(ctx context.Context, candidates []ports.Candidate) ([]ports.ScoredPair, error) {
	if s.scorer != nil && s.allowPrimary() {
		started := time.Now()
		pairs, err := s.scorer.Score(ctx, candidates, s.topN, s.threshold)
		s.metrics.ObserveScoring(time.Since(started))
		if err == nil {
			if _, change := s.breaker.RecordSuccess(); change.Closed {
				s.logger.Info("scoring service recovered, circuit closed")
			}
			return pairs, nil
		}
		if _, change := s.breaker.RecordFailure(); change.Opened {
			s.logger.Warn("scoring service failing, circuit opened")
		}
		if s.breaker.IsOpen() {
			s.breakerOpenedAt = time.Now()
		}
		s.logger.Warn("primary scorer failed", "error", err)
	}

	if s.fallback == nil {
		return nil, errors.New("scoring unavailable and no fallback configured")
	}
	s.metrics.IncrementFallback()
	return s.fallback.Score(ctx, candidates, s.topN, s.threshold)
}

func (s *Service) allowPrimary() bool {
	if !s.breaker.IsOpen() {
		return true
	}
	return time.Since(s.breakerOpenedAt) >= s.breakerCooldown
}

// assembleCandidates joins each donation/request pair with the replicas the
// scorers need. Pairs whose donor and recipient are the same user are
// dropped here.
func (s *Service) assembleCandidates(ctx context.Context, donations []*models.DonationReplica, requests []*models.RequestReplica) []ports.Candidate {
	var candidates []ports.Candidate
	for _, donation := range donations {
		donor, err := s.donors.Get(ctx, donation.DonorID)
		if err != nil {
			s.logger.Warn("skipping donation, donor replica unavailable",
				"donation_id", donation.ID, "error", err)
			continue
		}
		donorLoc, _ := s.locations.Get(ctx, donation.LocationID)
		donorHLA, _ := s.hla.GetByUser(ctx, donation.UserID)

		for _, request := range requests {
			if donation.UserID == request.UserID {
				continue
			}
			recipient, err := s.recipients.Get(ctx, request.RecipientID)
			if err != nil {
				s.logger.Warn("skipping request, recipient replica unavailable",
					"request_id", request.ID, "error", err)
				continue
			}
			recipientLoc, _ := s.locations.Get(ctx, request.LocationID)
			recipientHLA, _ := s.hla.GetByUser(ctx, request.UserID)

			candidates = append(candidates, ports.Candidate{
				Donation:     donation,
				Donor:        donor,
				DonorHLA:     donorHLA,
				DonorLoc:     donorLoc,
				Request:      request,
				Recipient:    recipient,
				RecipientHLA: recipientHLA,
				RecipientLoc: recipientLoc,
			})
		}
	}
	return candidates
}

// persistMatch creates the match, flips both sources to MATCHED, and emits
// the match-found event. A conflict error means an active match already
// holds the pair.
func (s *Service) persistMatch(ctx context.Context, c ports.Candidate, pair ports.ScoredPair) error {
	if err := s.validatePair(ctx, c); err != nil {
		return err
	}
	exists, err := s.matches.ExistsActiveForPair(ctx, pair.DonationID, pair.RequestID)
	if err != nil {
		return err
	}
	if exists {
		return dErrors.New(dErrors.CodeConflict, "active match already exists for pair")
	}

	now := time.Now()
	match := &models.Match{
		ID:                  domain.NewMatchID(),
		DonationID:          pair.DonationID,
		RequestID:           pair.RequestID,
		DonorUserID:         c.Donation.UserID,
		RecipientUserID:     c.Request.UserID,
		DonorLocationID:     c.Donation.LocationID,
		RecipientLocationID: c.Request.LocationID,
		DistanceKm:          pairDistanceKm(c),
		Kind:                c.Donation.Kind,
		Status:              models.MatchPending,
		Source:              models.SourceEngine,
		Scores:              pair.Scores,
		MatchReason:         pair.Reason,
		MatchedAt:           now,
		UpdatedAt:           now,
	}
	if c.DonorLoc != nil {
		match.DonorLocation = c.DonorLoc.Summary()
	}
	if c.RecipientLoc != nil {
		match.RecipientLocation = c.RecipientLoc.Summary()
	}

	if err := s.matches.Create(ctx, match); err != nil {
		return err
	}
	s.metrics.IncrementCreated(string(models.SourceEngine))

	if err := s.donations.UpdateStatus(ctx, match.DonationID, models.DonationMatched); err != nil {
		s.logger.Error("failed to mark donation matched",
			"donation_id", match.DonationID, "error", err)
	}
	if err := s.requests.UpdateStatus(ctx, match.RequestID, models.RequestMatched); err != nil {
		s.logger.Error("failed to mark request matched",
			"request_id", match.RequestID, "error", err)
	}
	if err := s.publisher.PublishMatchFound(ctx, match); err != nil {
		s.logger.Error("failed to publish match-found event",
			"match_id", match.ID, "error", err)
	}
	return nil
}

// validatePair re-checks a scored pair against current store state: the
// scorer may propose pairs whose sources were cancelled mid-pass, or, for
// organ kinds, whose subtypes do not line up.
func (s *Service) validatePair(ctx context.Context, c ports.Candidate) error {
	donation, err := s.donations.Get(ctx, c.Donation.ID)
	if err != nil {
		return err
	}
	request, err := s.requests.Get(ctx, c.Request.ID)
	if err != nil {
		return err
	}
	if !donation.Status.Matchable() {
		return dErrors.Newf(dErrors.CodeValidation, "donation no longer matchable: %s", donation.Status)
	}
	if !request.Status.Matchable() {
		return dErrors.Newf(dErrors.CodeValidation, "request no longer matchable: %s", request.Status)
	}
	if donation.Kind != request.Kind {
		return dErrors.New(dErrors.CodeValidation, "donation and request kinds differ")
	}
	if donation.Kind == models.MatchKindOrgan && donation.Subtype() != request.Subtype() {
		return dErrors.New(dErrors.CodeValidation, "organ subtype mismatch")
	}
	return nil
}

type pairKey struct {
	donationID domain.DonationID
	requestID  domain.RequestID
}

func indexCandidates(candidates []ports.Candidate) map[pairKey]ports.Candidate {
	index := make(map[pairKey]ports.Candidate, len(candidates))
	for _, c := range candidates {
		index[pairKey{c.Donation.ID, c.Request.ID}] = c
	}
	return index
}
