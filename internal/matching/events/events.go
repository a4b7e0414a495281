// Package events defines the Kafka topics and JSON payloads the matching
// service consumes and produces. IDs travel as strings on the wire and are
// parsed into typed IDs at the ingest boundary.
package events

import "time"

// Inbound topics.
const (
	TopicDonorEvents             = "donor-events"
	TopicDonationEvents          = "donation-events"
	TopicDonorLocationEvents     = "donor-location-events"
	TopicDonorHLAEvents          = "donor-hla-events"
	TopicRecipientEvents         = "recipient-events"
	TopicReceiveRequestEvents    = "receive-request-events"
	TopicRecipientLocationEvents = "recipient-location-events"
	TopicRecipientHLAEvents      = "recipient-hla-events"
	TopicDonationCancelled       = "donation-cancelled-events"
	TopicRequestCancelled        = "request-cancelled-events"
)

// Outbound topics.
const (
	TopicMatchFound = "match-found-events"
)

// AllInbound lists every topic the consumer group subscribes to.
func AllInbound() []string {
	return []string{
		TopicDonorEvents,
		TopicDonationEvents,
		TopicDonorLocationEvents,
		TopicDonorHLAEvents,
		TopicRecipientEvents,
		TopicReceiveRequestEvents,
		TopicRecipientLocationEvents,
		TopicRecipientHLAEvents,
		TopicDonationCancelled,
		TopicRequestCancelled,
	}
}

// DonorEvent announces a donor profile create or update.
type DonorEvent struct {
	DonorID       string     `json:"donorId"`
	UserID        string     `json:"userId"`
	BloodType     string     `json:"bloodType"`
	Age           int        `json:"age"`
	WeightKG      float64    `json:"weightKg"`
	Gender        string     `json:"gender"`
	Availability  bool       `json:"availability"`
	LastDonatedAt *time.Time `json:"lastDonatedAt,omitempty"`
	EventTime     time.Time  `json:"eventTime"`
}

// RecipientEvent announces a recipient profile create or update.
type RecipientEvent struct {
	RecipientID   string    `json:"recipientId"`
	UserID        string    `json:"userId"`
	BloodType     string    `json:"bloodType"`
	Age           int       `json:"age"`
	Gender        string    `json:"gender"`
	Availability  bool      `json:"availability"`
	Diagnosis     string    `json:"diagnosis,omitempty"`
	AllergiesKnow bool      `json:"allergiesKnow"`
	Allergies     []string  `json:"allergies,omitempty"`
	OnMedication  bool      `json:"onMedication"`
	EventTime     time.Time `json:"eventTime"`
}

// LocationEvent announces a donor or recipient location create or update.
// The same shape serves both location topics.
type LocationEvent struct {
	LocationID string    `json:"locationId"`
	OwnerID    string    `json:"ownerId"`
	Address    string    `json:"address,omitempty"`
	City       string    `json:"city"`
	State      string    `json:"state"`
	Country    string    `json:"country,omitempty"`
	PinCode    string    `json:"pinCode,omitempty"`
	Latitude   *float64  `json:"latitude,omitempty"`
	Longitude  *float64  `json:"longitude,omitempty"`
	EventTime  time.Time `json:"eventTime"`
}

// KindDetails carries the per-kind attributes on donation and request
// events. Exactly one block is expected per event, matching Kind.
type KindDetails struct {
	QuantityML   int    `json:"quantityMl,omitempty"`
	OrganType    string `json:"organType,omitempty"`
	TissueType   string `json:"tissueType,omitempty"`
	StemCellType string `json:"stemCellType,omitempty"`
}

// DonationEvent announces a donation offer create or update.
type DonationEvent struct {
	DonationID string      `json:"donationId"`
	DonorID    string      `json:"donorId"`
	UserID     string      `json:"userId"`
	LocationID string      `json:"locationId"`
	Kind       string      `json:"donationType"`
	Status     string      `json:"status"`
	Details    KindDetails `json:"details"`
	EventTime  time.Time   `json:"eventTime"`
}

// ReceiveRequestEvent announces a receive request create or update.
type ReceiveRequestEvent struct {
	RequestID   string      `json:"receiveRequestId"`
	RecipientID string      `json:"recipientId"`
	UserID      string      `json:"userId"`
	LocationID  string      `json:"locationId"`
	Kind        string      `json:"requestType"`
	Status      string      `json:"status"`
	Urgency     string      `json:"urgencyLevel"`
	Details     KindDetails `json:"details"`
	EventTime   time.Time   `json:"eventTime"`
}

// HLAEvent announces an HLA typing create or update for either side.
type HLAEvent struct {
	ProfileID      string     `json:"hlaProfileId"`
	UserID         string     `json:"userId"`
	A1             string     `json:"hlaA1,omitempty"`
	A2             string     `json:"hlaA2,omitempty"`
	B1             string     `json:"hlaB1,omitempty"`
	B2             string     `json:"hlaB2,omitempty"`
	C1             string     `json:"hlaC1,omitempty"`
	C2             string     `json:"hlaC2,omitempty"`
	DRB11          string     `json:"hlaDrb11,omitempty"`
	DRB12          string     `json:"hlaDrb12,omitempty"`
	DQB11          string     `json:"hlaDqb11,omitempty"`
	DQB12          string     `json:"hlaDqb12,omitempty"`
	DPB11          string     `json:"hlaDpb11,omitempty"`
	DPB12          string     `json:"hlaDpb12,omitempty"`
	HLAString      string     `json:"hlaString,omitempty"`
	HighResolution bool       `json:"highResolution"`
	TestingDate    *time.Time `json:"testingDate,omitempty"`
	EventTime      time.Time  `json:"eventTime"`
}

// CancellationEvent announces that a donation or receive request was
// cancelled upstream. The same shape serves both cancellation topics.
type CancellationEvent struct {
	DonationID string    `json:"donationId,omitempty"`
	RequestID  string    `json:"receiveRequestId,omitempty"`
	UserID     string    `json:"userId"`
	Reason     string    `json:"reason,omitempty"`
	EventTime  time.Time `json:"eventTime"`
}

// MatchFoundEvent is published when a new match is created, by the engine
// or manually.
type MatchFoundEvent struct {
	MatchID             string    `json:"matchId"`
	DonationID          string    `json:"donationId"`
	ReceiveRequestID    string    `json:"receiveRequestId"`
	DonorUserID         string    `json:"donorUserId"`
	RecipientUserID     string    `json:"recipientUserId"`
	DonorLocationID     string    `json:"donorLocationId"`
	RecipientLocationID string    `json:"recipientLocationId"`
	Kind                string    `json:"matchType"`
	DistanceKm          float64   `json:"distance"`
	CompatibilityScore  float64   `json:"compatibilityScore"`
	MatchReason         string    `json:"matchReason"`
	PriorityRank        int       `json:"priorityRank"`
	MatchedAt           time.Time `json:"matchedAt"`
}
