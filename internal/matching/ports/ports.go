// Package ports declares the interfaces the matching services depend on.
// Stores have memory and Postgres implementations; the rest are satisfied
// by clients and the Kafka producer.
package ports

import (
	"context"

	"lifelink/internal/matching/models"
	"lifelink/pkg/domain"
)

// DonorStore persists donor replicas.
type DonorStore interface {
	Upsert(ctx context.Context, donor *models.DonorReplica) error
	Get(ctx context.Context, id domain.DonorID) (*models.DonorReplica, error)
	GetByUser(ctx context.Context, userID domain.UserID) (*models.DonorReplica, error)
}

// RecipientStore persists recipient replicas.
type RecipientStore interface {
	Upsert(ctx context.Context, recipient *models.RecipientReplica) error
	Get(ctx context.Context, id domain.RecipientID) (*models.RecipientReplica, error)
	GetByUser(ctx context.Context, userID domain.UserID) (*models.RecipientReplica, error)
}

// LocationStore persists location replicas for either side.
type LocationStore interface {
	Upsert(ctx context.Context, loc *models.LocationReplica) error
	Get(ctx context.Context, id domain.LocationID) (*models.LocationReplica, error)
}

// HLAStore persists HLA typing replicas keyed by user.
type HLAStore interface {
	Upsert(ctx context.Context, profile *models.HLAProfileReplica) error
	GetByUser(ctx context.Context, userID domain.UserID) (*models.HLAProfileReplica, error)
}

// DonationStore persists donation replicas.
type DonationStore interface {
	Upsert(ctx context.Context, donation *models.DonationReplica) error
	Get(ctx context.Context, id domain.DonationID) (*models.DonationReplica, error)
	UpdateStatus(ctx context.Context, id domain.DonationID, status models.DonationStatus) error
	ListByStatuses(ctx context.Context, statuses ...models.DonationStatus) ([]*models.DonationReplica, error)
}

// RequestStore persists receive request replicas.
type RequestStore interface {
	Upsert(ctx context.Context, request *models.RequestReplica) error
	Get(ctx context.Context, id domain.RequestID) (*models.RequestReplica, error)
	UpdateStatus(ctx context.Context, id domain.RequestID, status models.RequestStatus) error
	ListByStatuses(ctx context.Context, statuses ...models.RequestStatus) ([]*models.RequestReplica, error)
}

// MatchStore persists matches, the one aggregate this service owns.
type MatchStore interface {
	Create(ctx context.Context, match *models.Match) error
	Get(ctx context.Context, id domain.MatchID) (*models.Match, error)
	Update(ctx context.Context, match *models.Match) error
	ExistsActiveForPair(ctx context.Context, donationID domain.DonationID, requestID domain.RequestID) (bool, error)
	ListByStatuses(ctx context.Context, statuses ...models.MatchStatus) ([]*models.Match, error)
	ListByDonation(ctx context.Context, donationID domain.DonationID) ([]*models.Match, error)
	ListByRequest(ctx context.Context, requestID domain.RequestID) ([]*models.Match, error)
	ListByDonorUser(ctx context.Context, userID domain.UserID) ([]*models.Match, error)
	ListByRecipientUser(ctx context.Context, userID domain.UserID) ([]*models.Match, error)
	ListAll(ctx context.Context) ([]*models.Match, error)
}

// MatchPublisher emits match lifecycle events to the outside world.
type MatchPublisher interface {
	PublishMatchFound(ctx context.Context, match *models.Match) error
}

// Candidate is one donation/request pairing submitted to a scorer.
type Candidate struct {
	Donation *models.DonationReplica
	Donor    *models.DonorReplica
	DonorHLA *models.HLAProfileReplica
	DonorLoc *models.LocationReplica

	Request      *models.RequestReplica
	Recipient    *models.RecipientReplica
	RecipientHLA *models.HLAProfileReplica
	RecipientLoc *models.LocationReplica
}

// ScoredPair is a scorer's verdict on one candidate pairing.
type ScoredPair struct {
	DonationID domain.DonationID
	RequestID  domain.RequestID
	Scores     models.ScoreCard
	Reason     string
}

// Scorer ranks candidate pairings within one match kind.
type Scorer interface {
	Score(ctx context.Context, candidates []Candidate, topN int, threshold float64) ([]ScoredPair, error)
}

// SourceStatusNotifier tells the upstream donor and recipient services
// about terminal status changes. Calls are best effort.
type SourceStatusNotifier interface {
	NotifyDonationCompleted(ctx context.Context, donationID domain.DonationID) error
	NotifyRequestFulfilled(ctx context.Context, requestID domain.RequestID) error
}
