// Package domain holds the typed identifiers shared across the matching
// service. Every id is a distinct UUID type so a DonationID can never be
// passed where a RequestID is expected; Parse functions enforce the
// "valid, non-empty, non-nil" invariant at trust boundaries.
package domain

import (
	"github.com/google/uuid"

	dErrors "lifelink/pkg/domain-errors"
)

type (
	// UserID identifies an account in the user service.
	UserID uuid.UUID

	// DonorID identifies a donor profile owned by the donor service.
	DonorID uuid.UUID

	// DonationID identifies a single donation offer.
	DonationID uuid.UUID

	// RecipientID identifies a recipient profile owned by the recipient service.
	RecipientID uuid.UUID

	// RequestID identifies a receive request.
	RequestID uuid.UUID

	// LocationID identifies an address record.
	LocationID uuid.UUID

	// HLAProfileID identifies an HLA typing result.
	HLAProfileID uuid.UUID

	// MatchID identifies a match record owned by this service.
	MatchID uuid.UUID
)

func parse(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id is required")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid id")
	}
	if id == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must not be the nil uuid")
	}
	return id, nil
}

// ParseUserID validates and returns a UserID.
func ParseUserID(s string) (UserID, error) {
	id, err := parse(s)
	return UserID(id), err
}

// ParseDonorID validates and returns a DonorID.
func ParseDonorID(s string) (DonorID, error) {
	id, err := parse(s)
	return DonorID(id), err
}

// ParseDonationID validates and returns a DonationID.
func ParseDonationID(s string) (DonationID, error) {
	id, err := parse(s)
	return DonationID(id), err
}

// ParseRecipientID validates and returns a RecipientID.
func ParseRecipientID(s string) (RecipientID, error) {
	id, err := parse(s)
	return RecipientID(id), err
}

// ParseRequestID validates and returns a RequestID.
func ParseRequestID(s string) (RequestID, error) {
	id, err := parse(s)
	return RequestID(id), err
}

// ParseLocationID validates and returns a LocationID.
func ParseLocationID(s string) (LocationID, error) {
	id, err := parse(s)
	return LocationID(id), err
}

// ParseHLAProfileID validates and returns an HLAProfileID.
func ParseHLAProfileID(s string) (HLAProfileID, error) {
	id, err := parse(s)
	return HLAProfileID(id), err
}

// ParseMatchID validates and returns a MatchID.
func ParseMatchID(s string) (MatchID, error) {
	id, err := parse(s)
	return MatchID(id), err
}

// NewMatchID returns a fresh random MatchID.
func NewMatchID() MatchID { return MatchID(uuid.New()) }

func (id UserID) String() string       { return uuid.UUID(id).String() }
func (id DonorID) String() string      { return uuid.UUID(id).String() }
func (id DonationID) String() string   { return uuid.UUID(id).String() }
func (id RecipientID) String() string  { return uuid.UUID(id).String() }
func (id RequestID) String() string    { return uuid.UUID(id).String() }
func (id LocationID) String() string   { return uuid.UUID(id).String() }
func (id HLAProfileID) String() string { return uuid.UUID(id).String() }
func (id MatchID) String() string      { return uuid.UUID(id).String() }

func (id UserID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }
func (id DonorID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id DonationID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id RecipientID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id RequestID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id LocationID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id HLAProfileID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id MatchID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
