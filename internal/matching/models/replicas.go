// Package models holds the matching domain: locally reconstructed replicas
// of upstream donor/recipient state, and the Match aggregate owned here.
package models

import (
	"time"

	"lifelink/pkg/domain"
)

// DonorReplica is the local projection of an upstream donor profile.
type DonorReplica struct {
	ID            domain.DonorID
	UserID        domain.UserID
	BloodType     BloodType
	Age           int
	WeightKG      float64
	Gender        string
	Availability  bool
	LastDonatedAt *time.Time
	UpdatedAt     time.Time
}

// RecipientReplica is the local projection of an upstream recipient profile.
type RecipientReplica struct {
	ID             domain.RecipientID
	UserID         domain.UserID
	BloodType      BloodType
	Age            int
	Gender         string
	Availability   bool
	MedicalDetails MedicalDetails
	UpdatedAt      time.Time
}

// MedicalDetails is the subset of recipient medical state the scorers use.
type MedicalDetails struct {
	Diagnosis     string
	AllergiesKnow bool
	Allergies     []string
	OnMedication  bool
}

// LocationReplica is a donor- or recipient-owned address with coordinates.
// Latitude and Longitude are nil when the upstream service never geocoded
// the address.
type LocationReplica struct {
	ID        domain.LocationID
	OwnerID   domain.UserID
	Address   string
	City      string
	State     string
	Country   string
	PinCode   string
	Latitude  *float64
	Longitude *float64
	UpdatedAt time.Time
}

// Summary collapses a location to the fields carried on a match.
func (l *LocationReplica) Summary() LocationSummary {
	return LocationSummary{
		City:      l.City,
		State:     l.State,
		Latitude:  l.Latitude,
		Longitude: l.Longitude,
	}
}

// LocationSummary is the denormalized location carried alongside matches.
type LocationSummary struct {
	City      string
	State     string
	Latitude  *float64
	Longitude *float64
}

// DonationReplica is the local projection of a donation offer. Exactly one
// of the kind detail blocks is set, matching Kind.
type DonationReplica struct {
	ID         domain.DonationID
	DonorID    domain.DonorID
	UserID     domain.UserID
	LocationID domain.LocationID
	Kind       MatchKind
	Status     DonationStatus
	Blood      *BloodDonationDetails
	Organ      *OrganDonationDetails
	Tissue     *TissueDonationDetails
	StemCell   *StemCellDonationDetails
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// BloodDonationDetails carries blood-specific donation attributes.
type BloodDonationDetails struct {
	QuantityML int
}

// OrganDonationDetails carries organ-specific donation attributes.
type OrganDonationDetails struct {
	OrganType string
}

// TissueDonationDetails carries tissue-specific donation attributes.
type TissueDonationDetails struct {
	TissueType string
}

// StemCellDonationDetails carries stem-cell-specific donation attributes.
type StemCellDonationDetails struct {
	StemCellType string
}

// Subtype returns the kind-specific subtype string, empty for blood.
func (d *DonationReplica) Subtype() string {
	switch d.Kind {
	case MatchKindOrgan:
		if d.Organ != nil {
			return d.Organ.OrganType
		}
	case MatchKindTissue:
		if d.Tissue != nil {
			return d.Tissue.TissueType
		}
	case MatchKindStemCell:
		if d.StemCell != nil {
			return d.StemCell.StemCellType
		}
	}
	return ""
}

// RequestReplica is the local projection of a receive request. The kind
// detail blocks mirror DonationReplica.
type RequestReplica struct {
	ID          domain.RequestID
	RecipientID domain.RecipientID
	UserID      domain.UserID
	LocationID  domain.LocationID
	Kind        MatchKind
	Status      RequestStatus
	Urgency     UrgencyLevel
	Blood       *BloodDonationDetails
	Organ       *OrganDonationDetails
	Tissue      *TissueDonationDetails
	StemCell    *StemCellDonationDetails
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Subtype returns the kind-specific subtype string, empty for blood.
func (r *RequestReplica) Subtype() string {
	switch r.Kind {
	case MatchKindOrgan:
		if r.Organ != nil {
			return r.Organ.OrganType
		}
	case MatchKindTissue:
		if r.Tissue != nil {
			return r.Tissue.TissueType
		}
	case MatchKindStemCell:
		if r.StemCell != nil {
			return r.StemCell.StemCellType
		}
	}
	return ""
}

// HLAProfileReplica is the local projection of a user's HLA typing. Loci
// values are allele strings, empty when untyped.
type HLAProfileReplica struct {
	ID             domain.HLAProfileID
	UserID         domain.UserID
	A1, A2         string
	B1, B2         string
	C1, C2         string
	DRB11, DRB12   string
	DQB11, DQB12   string
	DPB11, DPB12   string
	HLAString      string
	HighResolution bool
	TestingDate    *time.Time
	UpdatedAt      time.Time
}
