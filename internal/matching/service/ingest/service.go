// Package ingest reconstructs local replicas from upstream events. Events
// that arrive before the rows they reference are parked in deferred
// buffers and replayed once the dependency shows up, so cross-topic
// ordering never loses data.
package ingest

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"lifelink/internal/matching/buffer"
	"lifelink/internal/matching/events"
	"lifelink/internal/matching/metrics"
	"lifelink/internal/matching/models"
	"lifelink/internal/matching/ports"
	"lifelink/pkg/domain"
	dErrors "lifelink/pkg/domain-errors"
)

type Service struct {
	donors     ports.DonorStore
	recipients ports.RecipientStore
	locations  ports.LocationStore
	hla        ports.HLAStore
	donations  ports.DonationStore
	requests   ports.RequestStore
	matches    ports.MatchStore

	logger  *slog.Logger
	metrics *metrics.Metrics

	// Deferred events keyed by the dependency they wait on. An event can
	// move between buffers: a donation waiting on its donor may, once the
	// donor arrives, still be missing its location.
	donationsByDonor    *buffer.Buffer[domain.DonorID, events.DonationEvent]
	donationsByLocation *buffer.Buffer[domain.LocationID, events.DonationEvent]
	requestsByRecipient *buffer.Buffer[domain.RecipientID, events.ReceiveRequestEvent]
	requestsByLocation  *buffer.Buffer[domain.LocationID, events.ReceiveRequestEvent]
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

// Stores bundles the store dependencies to keep New readable.
type Stores struct {
	Donors     ports.DonorStore
	Recipients ports.RecipientStore
	Locations  ports.LocationStore
	HLA        ports.HLAStore
	Donations  ports.DonationStore
	Requests   ports.RequestStore
	Matches    ports.MatchStore
}

func New(stores Stores, opts ...Option) (*Service, error) {
	switch {
	case stores.Donors == nil:
		return nil, errors.New("donor store is required")
	case stores.Recipients == nil:
		return nil, errors.New("recipient store is required")
	case stores.Locations == nil:
		return nil, errors.New("location store is required")
	case stores.HLA == nil:
		return nil, errors.New("hla store is required")
	case stores.Donations == nil:
		return nil, errors.New("donation store is required")
	case stores.Requests == nil:
		return nil, errors.New("request store is required")
	case stores.Matches == nil:
		return nil, errors.New("match store is required")
	}

	svc := &Service{
		donors:     stores.Donors,
		recipients: stores.Recipients,
		locations:  stores.Locations,
		hla:        stores.HLA,
		donations:  stores.Donations,
		requests:   stores.Requests,
		matches:    stores.Matches,
		logger:     slog.Default(),

		donationsByDonor:    buffer.New[domain.DonorID, events.DonationEvent](),
		donationsByLocation: buffer.New[domain.LocationID, events.DonationEvent](),
		requestsByRecipient: buffer.New[domain.RecipientID, events.ReceiveRequestEvent](),
		requestsByLocation:  buffer.New[domain.LocationID, events.ReceiveRequestEvent](),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// ApplyDonor upserts the donor replica, then replays donations that were
// waiting on it.
func (s *Service) ApplyDonor(ctx context.Context, ev events.DonorEvent) error {
	donorID, err := domain.ParseDonorID(ev.DonorID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "donor event donor id")
	}
	userID, err := domain.ParseUserID(ev.UserID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "donor event user id")
	}

	replica := &models.DonorReplica{
		ID:            donorID,
		UserID:        userID,
		BloodType:     models.BloodType(ev.BloodType),
		Age:           ev.Age,
		WeightKG:      ev.WeightKG,
		Gender:        ev.Gender,
		Availability:  ev.Availability,
		LastDonatedAt: ev.LastDonatedAt,
		UpdatedAt:     eventTime(ev.EventTime),
	}
	if err := s.donors.Upsert(ctx, replica); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "upsert donor replica")
	}

	s.replayDonations(ctx, s.donationsByDonor.Drain(donorID))
	return nil
}

// ApplyRecipient upserts the recipient replica, then replays requests that
// were waiting on it.
func (s *Service) ApplyRecipient(ctx context.Context, ev events.RecipientEvent) error {
	recipientID, err := domain.ParseRecipientID(ev.RecipientID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "recipient event recipient id")
	}
	userID, err := domain.ParseUserID(ev.UserID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "recipient event user id")
	}

	replica := &models.RecipientReplica{
		ID:           recipientID,
		UserID:       userID,
		BloodType:    models.BloodType(ev.BloodType),
		Age:          ev.Age,
		Gender:       ev.Gender,
		Availability: ev.Availability,
		MedicalDetails: models.MedicalDetails{
			Diagnosis:     ev.Diagnosis,
			AllergiesKnow: ev.AllergiesKnow,
			Allergies:     ev.Allergies,
			OnMedication:  ev.OnMedication,
		},
		UpdatedAt: eventTime(ev.EventTime),
	}
	if err := s.recipients.Upsert(ctx, replica); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "upsert recipient replica")
	}

	s.replayRequests(ctx, s.requestsByRecipient.Drain(recipientID))
	return nil
}

// ApplyLocation upserts a location replica for either side, then replays
// donations and requests that were waiting on it.
func (s *Service) ApplyLocation(ctx context.Context, ev events.LocationEvent) error {
	locationID, err := domain.ParseLocationID(ev.LocationID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "location event location id")
	}
	ownerID, err := domain.ParseUserID(ev.OwnerID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "location event owner id")
	}

	replica := &models.LocationReplica{
		ID:        locationID,
		OwnerID:   ownerID,
		Address:   ev.Address,
		City:      ev.City,
		State:     ev.State,
		Country:   ev.Country,
		PinCode:   ev.PinCode,
		Latitude:  ev.Latitude,
		Longitude: ev.Longitude,
		UpdatedAt: eventTime(ev.EventTime),
	}
	if err := s.locations.Upsert(ctx, replica); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "upsert location replica")
	}

	s.replayDonations(ctx, s.donationsByLocation.Drain(locationID))
	s.replayRequests(ctx, s.requestsByLocation.Drain(locationID))
	return nil
}

// ApplyHLA upserts an HLA typing replica. HLA has no dependencies and
// nothing waits on it; scoring simply picks it up when present.
func (s *Service) ApplyHLA(ctx context.Context, ev events.HLAEvent) error {
	profileID, err := domain.ParseHLAProfileID(ev.ProfileID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "hla event profile id")
	}
	userID, err := domain.ParseUserID(ev.UserID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "hla event user id")
	}

	replica := &models.HLAProfileReplica{
		ID:             profileID,
		UserID:         userID,
		A1:             ev.A1,
		A2:             ev.A2,
		B1:             ev.B1,
		B2:             ev.B2,
		C1:             ev.C1,
		C2:             ev.C2,
		DRB11:          ev.DRB11,
		DRB12:          ev.DRB12,
		DQB11:          ev.DQB11,
		DQB12:          ev.DQB12,
		DPB11:          ev.DPB11,
		DPB12:          ev.DPB12,
		HLAString:      ev.HLAString,
		HighResolution: ev.HighResolution,
		TestingDate:    ev.TestingDate,
		UpdatedAt:      eventTime(ev.EventTime),
	}
	if err := s.hla.Upsert(ctx, replica); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "upsert hla replica")
	}
	return nil
}

// ApplyDonation upserts the donation replica, or defers the event when its
// donor or location replica has not arrived yet.
func (s *Service) ApplyDonation(ctx context.Context, ev events.DonationEvent) error {
	donorID, err := domain.ParseDonorID(ev.DonorID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "donation event donor id")
	}
	locationID, err := domain.ParseLocationID(ev.LocationID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "donation event location id")
	}

	if _, err := s.donors.Get(ctx, donorID); err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			s.donationsByDonor.Add(donorID, ev)
			s.metrics.IncrementConsumed(events.TopicDonationEvents, "deferred")
			s.logger.Info("donation deferred, donor replica missing",
				"donation_id", ev.DonationID, "donor_id", ev.DonorID)
			return nil
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "look up donor replica")
	}
	if _, err := s.locations.Get(ctx, locationID); err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			s.donationsByLocation.Add(locationID, ev)
			s.metrics.IncrementConsumed(events.TopicDonationEvents, "deferred")
			s.logger.Info("donation deferred, location replica missing",
				"donation_id", ev.DonationID, "location_id", ev.LocationID)
			return nil
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "look up location replica")
	}

	replica, err := donationFromEvent(ev, donorID, locationID)
	if err != nil {
		return err
	}

	// Duplicate delivery: the replica already exists, nothing to do.
	if _, err := s.donations.Get(ctx, replica.ID); err == nil {
		s.metrics.IncrementConsumed(events.TopicDonationEvents, "duplicate")
		return nil
	} else if !dErrors.HasCode(err, dErrors.CodeNotFound) {
		return dErrors.Wrap(err, dErrors.CodeInternal, "look up donation replica")
	}

	if err := s.donations.Upsert(ctx, replica); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "upsert donation replica")
	}
	return nil
}

// ApplyRequest upserts the receive request replica, or defers the event
// when its recipient or location replica has not arrived yet.
func (s *Service) ApplyRequest(ctx context.Context, ev events.ReceiveRequestEvent) error {
	recipientID, err := domain.ParseRecipientID(ev.RecipientID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "request event recipient id")
	}
	locationID, err := domain.ParseLocationID(ev.LocationID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "request event location id")
	}

	if _, err := s.recipients.Get(ctx, recipientID); err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			s.requestsByRecipient.Add(recipientID, ev)
			s.metrics.IncrementConsumed(events.TopicReceiveRequestEvents, "deferred")
			s.logger.Info("request deferred, recipient replica missing",
				"request_id", ev.RequestID, "recipient_id", ev.RecipientID)
			return nil
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "look up recipient replica")
	}
	if _, err := s.locations.Get(ctx, locationID); err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			s.requestsByLocation.Add(locationID, ev)
			s.metrics.IncrementConsumed(events.TopicReceiveRequestEvents, "deferred")
			s.logger.Info("request deferred, location replica missing",
				"request_id", ev.RequestID, "location_id", ev.LocationID)
			return nil
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "look up location replica")
	}

	replica, err := requestFromEvent(ev, recipientID, locationID)
	if err != nil {
		return err
	}

	// Duplicate delivery: the replica already exists, nothing to do.
	if _, err := s.requests.Get(ctx, replica.ID); err == nil {
		s.metrics.IncrementConsumed(events.TopicReceiveRequestEvents, "duplicate")
		return nil
	} else if !dErrors.HasCode(err, dErrors.CodeNotFound) {
		return dErrors.Wrap(err, dErrors.CodeInternal, "look up request replica")
	}

	if err := s.requests.Upsert(ctx, replica); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "upsert request replica")
	}
	return nil
}

// ApplyDonationCancelled marks the donation cancelled and retires its
// active matches. Requests freed up by the cancellation drop back to
// PENDING so the next engine pass can re-match them.
func (s *Service) ApplyDonationCancelled(ctx context.Context, ev events.CancellationEvent) error {
	donationID, err := domain.ParseDonationID(ev.DonationID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "cancellation event donation id")
	}

	if err := s.donations.UpdateStatus(ctx, donationID, models.DonationCancelled); err != nil {
		if !dErrors.HasCode(err, dErrors.CodeNotFound) {
			return dErrors.Wrap(err, dErrors.CodeInternal, "cancel donation replica")
		}
		// Unknown donation: nothing local to retire.
		return nil
	}

	matches, err := s.matches.ListByDonation(ctx, donationID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "list matches for cancelled donation")
	}
	now := time.Now()
	for _, m := range matches {
		if !m.Status.Active() {
			continue
		}
		m.Status = models.MatchCancelledByDonor
		m.ExpiredAt = &now
		m.ExpiryReason = models.ExpiryDonationCancelled
		m.UpdatedAt = now
		if err := s.matches.Update(ctx, m); err != nil {
			s.logger.Error("failed to cancel match after donation cancellation",
				"match_id", m.ID, "error", err)
			continue
		}
		if err := s.resetRequestIfFree(ctx, m.RequestID); err != nil {
			s.logger.Error("failed to reset request after donation cancellation",
				"request_id", m.RequestID, "error", err)
		}
	}
	return nil
}

// ApplyRequestCancelled mirrors ApplyDonationCancelled for the recipient side.
func (s *Service) ApplyRequestCancelled(ctx context.Context, ev events.CancellationEvent) error {
	requestID, err := domain.ParseRequestID(ev.RequestID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "cancellation event request id")
	}

	if err := s.requests.UpdateStatus(ctx, requestID, models.RequestCancelled); err != nil {
		if !dErrors.HasCode(err, dErrors.CodeNotFound) {
			return dErrors.Wrap(err, dErrors.CodeInternal, "cancel request replica")
		}
		return nil
	}

	matches, err := s.matches.ListByRequest(ctx, requestID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "list matches for cancelled request")
	}
	now := time.Now()
	for _, m := range matches {
		if !m.Status.Active() {
			continue
		}
		m.Status = models.MatchCancelledByRecip
		m.ExpiredAt = &now
		m.ExpiryReason = models.ExpiryRequestCancelled
		m.UpdatedAt = now
		if err := s.matches.Update(ctx, m); err != nil {
			s.logger.Error("failed to cancel match after request cancellation",
				"match_id", m.ID, "error", err)
			continue
		}
		if err := s.resetDonationIfFree(ctx, m.DonationID); err != nil {
			s.logger.Error("failed to reset donation after request cancellation",
				"donation_id", m.DonationID, "error", err)
		}
	}
	return nil
}

// DeferredCount reports how many events are parked across all buffers.
func (s *Service) DeferredCount() int {
	return s.donationsByDonor.Len() + s.donationsByLocation.Len() +
		s.requestsByRecipient.Len() + s.requestsByLocation.Len()
}

// replayDonations re-applies drained donation events. A failure in one
// replay never blocks the others.
func (s *Service) replayDonations(ctx context.Context, drained []events.DonationEvent) {
	for _, ev := range drained {
		s.metrics.IncrementReplayed(events.TopicDonationEvents)
		if err := s.ApplyDonation(ctx, ev); err != nil {
			s.logger.Error("deferred donation replay failed",
				"donation_id", ev.DonationID, "error", err)
		}
	}
}

func (s *Service) replayRequests(ctx context.Context, drained []events.ReceiveRequestEvent) {
	for _, ev := range drained {
		s.metrics.IncrementReplayed(events.TopicReceiveRequestEvents)
		if err := s.ApplyRequest(ctx, ev); err != nil {
			s.logger.Error("deferred request replay failed",
				"request_id", ev.RequestID, "error", err)
		}
	}
}

// resetRequestIfFree drops a MATCHED request back to PENDING when no active
// match holds it anymore.
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

// resetDonationIfFree mirrors resetRequestIfFree for donations.
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

func donationFromEvent(ev events.DonationEvent, donorID domain.DonorID, locationID domain.LocationID) (*models.DonationReplica, error) {
	donationID, err := domain.ParseDonationID(ev.DonationID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "donation event donation id")
	}
	userID, err := domain.ParseUserID(ev.UserID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "donation event user id")
	}

	status := models.DonationStatus(ev.Status)
	if status == "" {
		status = models.DonationPending
	}
	replica := &models.DonationReplica{
		ID:         donationID,
		DonorID:    donorID,
		UserID:     userID,
		LocationID: locationID,
		Kind:       models.MatchKind(ev.Kind),
		Status:     status,
		CreatedAt:  eventTime(ev.EventTime),
		UpdatedAt:  eventTime(ev.EventTime),
	}
	switch replica.Kind {
	case models.MatchKindBlood:
		replica.Blood = &models.BloodDonationDetails{QuantityML: ev.Details.QuantityML}
	case models.MatchKindOrgan:
		replica.Organ = &models.OrganDonationDetails{OrganType: ev.Details.OrganType}
	case models.MatchKindTissue:
		replica.Tissue = &models.TissueDonationDetails{TissueType: ev.Details.TissueType}
	case models.MatchKindStemCell:
		replica.StemCell = &models.StemCellDonationDetails{StemCellType: ev.Details.StemCellType}
	default:
		return nil, dErrors.Newf(dErrors.CodeValidation, "unknown donation kind %q", ev.Kind)
	}
	return replica, nil
}

func requestFromEvent(ev events.ReceiveRequestEvent, recipientID domain.RecipientID, locationID domain.LocationID) (*models.RequestReplica, error) {
	requestID, err := domain.ParseRequestID(ev.RequestID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "request event request id")
	}
	userID, err := domain.ParseUserID(ev.UserID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "request event user id")
	}

	status := models.RequestStatus(ev.Status)
	if status == "" {
		status = models.RequestPending
	}
	replica := &models.RequestReplica{
		ID:          requestID,
		RecipientID: recipientID,
		UserID:      userID,
		LocationID:  locationID,
		Kind:        models.MatchKind(ev.Kind),
		Status:      status,
		Urgency:     models.UrgencyLevel(ev.Urgency),
		CreatedAt:   eventTime(ev.EventTime),
		UpdatedAt:   eventTime(ev.EventTime),
	}
	switch replica.Kind {
	case models.MatchKindBlood:
		replica.Blood = &models.BloodDonationDetails{QuantityML: ev.Details.QuantityML}
	case models.MatchKindOrgan:
		replica.Organ = &models.OrganDonationDetails{OrganType: ev.Details.OrganType}
	case models.MatchKindTissue:
		replica.Tissue = &models.TissueDonationDetails{TissueType: ev.Details.TissueType}
	case models.MatchKindStemCell:
		replica.StemCell = &models.StemCellDonationDetails{StemCellType: ev.Details.StemCellType}
	default:
		return nil, dErrors.Newf(dErrors.CodeValidation, "unknown request kind %q", ev.Kind)
	}
	return replica, nil
}

func eventTime(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}
