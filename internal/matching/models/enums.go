package models

// BloodType is an ABO/Rh blood group.
type BloodType string

const (
	BloodTypeAPositive  BloodType = "A_POSITIVE"
	BloodTypeANegative  BloodType = "A_NEGATIVE"
	BloodTypeBPositive  BloodType = "B_POSITIVE"
	BloodTypeBNegative  BloodType = "B_NEGATIVE"
	BloodTypeOPositive  BloodType = "O_POSITIVE"
	BloodTypeONegative  BloodType = "O_NEGATIVE"
	BloodTypeABPositive BloodType = "AB_POSITIVE"
	BloodTypeABNegative BloodType = "AB_NEGATIVE"
)

// IsUniversalDonor reports whether the type can donate to any recipient.
func (b BloodType) IsUniversalDonor() bool {
	return b == BloodTypeONegative
}

// MatchKind is the category of donation being matched.
type MatchKind string

const (
	MatchKindBlood    MatchKind = "BLOOD"
	MatchKindOrgan    MatchKind = "ORGAN"
	MatchKindTissue   MatchKind = "TISSUE"
	MatchKindStemCell MatchKind = "STEM_CELL"
)

// UrgencyLevel is the clinical urgency attached to a receive request.
type UrgencyLevel string

const (
	UrgencyLow      UrgencyLevel = "LOW"
	UrgencyMedium   UrgencyLevel = "MEDIUM"
	UrgencyHigh     UrgencyLevel = "HIGH"
	UrgencyCritical UrgencyLevel = "CRITICAL"
)

// Score returns the normalized urgency weight used by the rule scorer.
func (u UrgencyLevel) Score() float64 {
	switch u {
	case UrgencyCritical:
		return 1.00
	case UrgencyHigh:
		return 0.75
	case UrgencyMedium:
		return 0.50
	case UrgencyLow:
		return 0.25
	default:
		return 0.50
	}
}

// DonationStatus is the lifecycle status of a donation offer.
type DonationStatus string

const (
	DonationPending    DonationStatus = "PENDING"
	DonationMatched    DonationStatus = "MATCHED"
	DonationInProgress DonationStatus = "IN_PROGRESS"
	DonationCompleted  DonationStatus = "COMPLETED"
	DonationCancelled  DonationStatus = "CANCELLED"
)

// Matchable reports whether the donation may enter new matches.
func (s DonationStatus) Matchable() bool {
	return s == DonationPending || s == DonationMatched
}

// RequestStatus is the lifecycle status of a receive request.
type RequestStatus string

const (
	RequestPending    RequestStatus = "PENDING"
	RequestMatched    RequestStatus = "MATCHED"
	RequestInProgress RequestStatus = "IN_PROGRESS"
	RequestFulfilled  RequestStatus = "FULFILLED"
	RequestCancelled  RequestStatus = "CANCELLED"
)

// Matchable reports whether the request may enter new matches.
func (s RequestStatus) Matchable() bool {
	return s == RequestPending || s == RequestMatched
}

// MatchStatus is the state of a match in its confirmation lifecycle.
type MatchStatus string

const (
	MatchPending            MatchStatus = "PENDING"
	MatchDonorConfirmed     MatchStatus = "DONOR_CONFIRMED"
	MatchRecipientConfirmed MatchStatus = "RECIPIENT_CONFIRMED"
	MatchConfirmed          MatchStatus = "CONFIRMED"
	MatchCompleted          MatchStatus = "COMPLETED"
	MatchRejected           MatchStatus = "REJECTED"
	MatchExpired            MatchStatus = "EXPIRED"
	MatchFailed             MatchStatus = "FAILED"
	MatchCancelledByDonor   MatchStatus = "CANCELLED_BY_DONOR"
	MatchCancelledByRecip   MatchStatus = "CANCELLED_BY_RECIPIENT"
)

// Active reports whether the match still occupies its donation/request pair.
func (s MatchStatus) Active() bool {
	switch s {
	case MatchPending, MatchDonorConfirmed, MatchRecipientConfirmed, MatchConfirmed:
		return true
	default:
		return false
	}
}

// ActiveMatchStatuses are the statuses for which a match blocks re-matching
// of its donation/request pair.
var ActiveMatchStatuses = []MatchStatus{
	MatchPending, MatchDonorConfirmed, MatchRecipientConfirmed, MatchConfirmed,
}

// Expiry reasons recorded when the sweep or a party retires a match.
const (
	ExpiryDonorNotConfirmed     = "DONOR_DID_NOT_CONFIRM_WITHIN_DEADLINE"
	ExpiryRecipientNotConfirmed = "RECIPIENT_DID_NOT_CONFIRM_WITHIN_DEADLINE"
	ExpiryDonorRejected         = "DONOR_REJECTED"
	ExpiryRecipientRejected     = "RECIPIENT_REJECTED"
	ExpiryDonationCancelled     = "DONATION_CANCELLED"
	ExpiryRequestCancelled      = "REQUEST_CANCELLED"
)

// MatchSource records which path created a match.
type MatchSource string

const (
	SourceEngine MatchSource = "ENGINE"
	SourceManual MatchSource = "MANUAL"
)
