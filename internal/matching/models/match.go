package models

import (
	"time"

	"lifelink/pkg/domain"
)

// Match pairs a donation with a receive request. It is the only aggregate
// this service owns; everything else is a replica.
type Match struct {
	ID              domain.MatchID
	DonationID      domain.DonationID
	RequestID       domain.RequestID
	DonorUserID     domain.UserID
	RecipientUserID domain.UserID

	DonorLocationID     domain.LocationID
	RecipientLocationID domain.LocationID
	DonorLocation       LocationSummary
	RecipientLocation   LocationSummary
	DistanceKm          float64

	Kind   MatchKind
	Status MatchStatus
	Source MatchSource

	Scores       ScoreCard
	MatchReason  string
	PriorityRank int

	DonorConfirmed       bool
	DonorConfirmedAt     *time.Time
	RecipientConfirmed   bool
	RecipientConfirmedAt *time.Time
	ConfirmationDeadline *time.Time

	MatchedAt    time.Time
	CompletedAt  *time.Time
	Receipt      *CompletionReceipt
	ExpiredAt    *time.Time
	ExpiryReason string
	UpdatedAt    time.Time
}

// CompletionReceipt is the free-form detail set the completing party
// attaches when confirming the donation physically happened.
type CompletionReceipt struct {
	Message      string
	ReceivedDate *time.Time
	Notes        string
	Rating       int
	HospitalName string
}

// ScoreCard is the scoring breakdown attached to a match. Compatibility is
// the blended headline score the candidate had to clear.
type ScoreCard struct {
	Compatibility float64
	Blood         float64
	Location      float64
	Medical       float64
	HLA           float64
	Urgency       float64
	ModelVersion  string
}

// AwaitingDeadline reports whether the confirmation deadline applies: at
// least one party confirmed and the match is not yet fully confirmed.
func (m *Match) AwaitingDeadline() bool {
	switch m.Status {
	case MatchDonorConfirmed, MatchRecipientConfirmed:
		return m.ConfirmationDeadline != nil
	default:
		return false
	}
}
