package handler

import (
	"time"

	"lifelink/internal/matching/models"
	"lifelink/internal/matching/service/lifecycle"
)

// MatchResponse is the wire form of a match. IDs are serialized as strings
// so the gateway never sees raw UUID byte arrays.
type MatchResponse struct {
	ID              string `json:"id"`
	DonationID      string `json:"donationId"`
	RequestID       string `json:"receiveRequestId"`
	DonorUserID     string `json:"donorUserId"`
	RecipientUserID string `json:"recipientUserId"`

	DonorLocation     LocationResponse `json:"donorLocation"`
	RecipientLocation LocationResponse `json:"recipientLocation"`
	DistanceKm        float64          `json:"distanceKm"`

	Kind   string `json:"matchType"`
	Status string `json:"status"`
	Source string `json:"source"`

	Scores       ScoresResponse `json:"scores"`
	MatchReason  string         `json:"matchReason,omitempty"`
	PriorityRank int            `json:"priorityRank,omitempty"`

	DonorConfirmed       bool       `json:"donorConfirmed"`
	DonorConfirmedAt     *time.Time `json:"donorConfirmedAt,omitempty"`
	RecipientConfirmed   bool       `json:"recipientConfirmed"`
	RecipientConfirmedAt *time.Time `json:"recipientConfirmedAt,omitempty"`
	ConfirmationDeadline *time.Time `json:"confirmationDeadline,omitempty"`

	MatchedAt    time.Time        `json:"matchedAt"`
	CompletedAt  *time.Time       `json:"completedAt,omitempty"`
	Receipt      *ReceiptResponse `json:"completionReceipt,omitempty"`
	ExpiredAt    *time.Time       `json:"expiredAt,omitempty"`
	ExpiryReason string           `json:"expiryReason,omitempty"`
}

// ReceiptResponse is the receipt block on a completed match.
type ReceiptResponse struct {
	ConfirmationMessage string     `json:"confirmationMessage"`
	ReceivedDate        *time.Time `json:"receivedDate,omitempty"`
	Notes               string     `json:"notes,omitempty"`
	Rating              int        `json:"rating,omitempty"`
	HospitalName        string     `json:"hospitalName,omitempty"`
}

// LocationResponse is the denormalized location block on a match.
type LocationResponse struct {
	City      string   `json:"city,omitempty"`
	State     string   `json:"state,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// ScoresResponse is the scoring breakdown on a match.
type ScoresResponse struct {
	Compatibility float64 `json:"compatibilityScore"`
	Blood         float64 `json:"bloodTypeScore"`
	Location      float64 `json:"locationScore"`
	Medical       float64 `json:"medicalScore"`
	HLA           float64 `json:"hlaScore"`
	Urgency       float64 `json:"urgencyScore"`
	ModelVersion  string  `json:"modelVersion,omitempty"`
}

// ManualMatchResponse reports the outcome of an operator-created match.
type ManualMatchResponse struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Match   *MatchResponse `json:"match,omitempty"`
}

// DonationResponse is the wire form of a donation replica.
type DonationResponse struct {
	ID           string `json:"id"`
	DonorID      string `json:"donorId"`
	UserID       string `json:"userId"`
	LocationID   string `json:"locationId"`
	DonationType string `json:"donationType"`
	Status       string `json:"status"`
	QuantityML   int    `json:"quantityML,omitempty"`
	Subtype      string `json:"subtype,omitempty"`
}

// RequestResponse is the wire form of a receive request replica.
type RequestResponse struct {
	ID          string `json:"id"`
	RecipientID string `json:"recipientId"`
	UserID      string `json:"userId"`
	LocationID  string `json:"locationId"`
	RequestType string `json:"requestType"`
	Status      string `json:"status"`
	Urgency     string `json:"urgencyLevel"`
	QuantityML  int    `json:"quantityML,omitempty"`
	Subtype     string `json:"subtype,omitempty"`
}

func fromMatch(m *models.Match) *MatchResponse {
	return &MatchResponse{
		ID:                m.ID.String(),
		DonationID:        m.DonationID.String(),
		RequestID:         m.RequestID.String(),
		DonorUserID:       m.DonorUserID.String(),
		RecipientUserID:   m.RecipientUserID.String(),
		DonorLocation:     fromLocation(m.DonorLocation),
		RecipientLocation: fromLocation(m.RecipientLocation),
		DistanceKm:        m.DistanceKm,
		Kind:              string(m.Kind),
		Status:            string(m.Status),
		Source:            string(m.Source),
		Scores: ScoresResponse{
			Compatibility: m.Scores.Compatibility,
			Blood:         m.Scores.Blood,
			Location:      m.Scores.Location,
			Medical:       m.Scores.Medical,
			HLA:           m.Scores.HLA,
			Urgency:       m.Scores.Urgency,
			ModelVersion:  m.Scores.ModelVersion,
		},
		MatchReason:          m.MatchReason,
		PriorityRank:         m.PriorityRank,
		DonorConfirmed:       m.DonorConfirmed,
		DonorConfirmedAt:     m.DonorConfirmedAt,
		RecipientConfirmed:   m.RecipientConfirmed,
		RecipientConfirmedAt: m.RecipientConfirmedAt,
		ConfirmationDeadline: m.ConfirmationDeadline,
		MatchedAt:            m.MatchedAt,
		CompletedAt:          m.CompletedAt,
		Receipt:              fromReceipt(m.Receipt),
		ExpiredAt:            m.ExpiredAt,
		ExpiryReason:         m.ExpiryReason,
	}
}

func fromReceipt(r *models.CompletionReceipt) *ReceiptResponse {
	if r == nil {
		return nil
	}
	return &ReceiptResponse{
		ConfirmationMessage: r.Message,
		ReceivedDate:        r.ReceivedDate,
		Notes:               r.Notes,
		Rating:              r.Rating,
		HospitalName:        r.HospitalName,
	}
}

func fromLocation(l models.LocationSummary) LocationResponse {
	return LocationResponse{
		City:      l.City,
		State:     l.State,
		Latitude:  l.Latitude,
		Longitude: l.Longitude,
	}
}

func fromMatches(matches []*models.Match) []*MatchResponse {
	out := make([]*MatchResponse, 0, len(matches))
	for _, m := range matches {
		out = append(out, fromMatch(m))
	}
	return out
}

func fromManualResult(res lifecycle.ManualMatchResult) ManualMatchResponse {
	out := ManualMatchResponse{Success: res.Success, Message: res.Message}
	if res.Match != nil {
		out.Match = fromMatch(res.Match)
	}
	return out
}

func fromDonation(d *models.DonationReplica) DonationResponse {
	out := DonationResponse{
		ID:           d.ID.String(),
		DonorID:      d.DonorID.String(),
		UserID:       d.UserID.String(),
		LocationID:   d.LocationID.String(),
		DonationType: string(d.Kind),
		Status:       string(d.Status),
		Subtype:      d.Subtype(),
	}
	if d.Blood != nil {
		out.QuantityML = d.Blood.QuantityML
	}
	return out
}

func fromRequest(r *models.RequestReplica) RequestResponse {
	out := RequestResponse{
		ID:          r.ID.String(),
		RecipientID: r.RecipientID.String(),
		UserID:      r.UserID.String(),
		LocationID:  r.LocationID.String(),
		RequestType: string(r.Kind),
		Status:      string(r.Status),
		Urgency:     string(r.Urgency),
		Subtype:     r.Subtype(),
	}
	if r.Blood != nil {
		out.QuantityML = r.Blood.QuantityML
	}
	return out
}
