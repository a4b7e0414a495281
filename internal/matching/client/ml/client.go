// Package ml is the HTTP client for the external scoring service. It
// implements the Scorer port; the engine wraps it with a circuit breaker
// and falls back to rule scoring when the service misbehaves.
package ml

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"lifelink/internal/matching/models"
	"lifelink/internal/matching/ports"
	"lifelink/pkg/domain"
	dErrors "lifelink/pkg/domain-errors"
)

const defaultTimeout = 30 * time.Second

// Client calls the scoring service's batch endpoint.
type Client struct {
	baseURL string
	http    *http.Client
}

// Option configures the Client.
type Option func(*Client)

// WithTimeout overrides the request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithHTTPClient substitutes the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// New constructs a scoring client against baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type batchRequest struct {
	Donations []donationPayload `json:"donations"`
	Requests  []requestPayload  `json:"requests"`
	TopN      int               `json:"topN"`
	Threshold float64           `json:"threshold"`
}

type donationPayload struct {
	DonationID string   `json:"donationId"`
	UserID     string   `json:"userId"`
	BloodType  string   `json:"bloodType"`
	Kind       string   `json:"donationType"`
	Subtype    string   `json:"subtype,omitempty"`
	Age        int      `json:"age"`
	WeightKG   float64  `json:"weightKg,omitempty"`
	Latitude   *float64 `json:"latitude,omitempty"`
	Longitude  *float64 `json:"longitude,omitempty"`
	HLAString  string   `json:"hlaString,omitempty"`
}

type requestPayload struct {
	RequestID string   `json:"receiveRequestId"`
	UserID    string   `json:"userId"`
	BloodType string   `json:"bloodType"`
	Kind      string   `json:"requestType"`
	Subtype   string   `json:"subtype,omitempty"`
	Age       int      `json:"age"`
	Urgency   string   `json:"urgencyLevel"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	HLAString string   `json:"hlaString,omitempty"`
}

type batchResponse struct {
	Success          bool           `json:"success"`
	MatchesFound     int            `json:"matchesFound"`
	Matches          []matchPayload `json:"matches"`
	Error            string         `json:"error,omitempty"`
	ModelVersion     string         `json:"modelVersion,omitempty"`
	ProcessingTimeMs int64          `json:"processingTimeMs,omitempty"`
}

type matchPayload struct {
	DonationID         string  `json:"donationId"`
	RequestID          string  `json:"receiveRequestId"`
	CompatibilityScore float64 `json:"compatibilityScore"`
	BloodScore         float64 `json:"bloodScore"`
	LocationScore      float64 `json:"locationScore"`
	MedicalScore       float64 `json:"medicalScore"`
	HLAScore           float64 `json:"hlaScore"`
	UrgencyScore       float64 `json:"urgencyScore"`
	MatchReason        string  `json:"matchReason"`
}

// Score submits one batch of candidates and maps the response back to
// scored pairs.
func (c *Client) Score(ctx context.Context, candidates []ports.Candidate, topN int, threshold float64) ([]ports.ScoredPair, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(buildBatch(candidates, topN, threshold))
	if err != nil {
		return nil, fmt.Errorf("marshal scoring request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/match/batch", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build scoring request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "scoring service unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, dErrors.Newf(dErrors.CodeUnavailable, "scoring service returned %d", resp.StatusCode)
	}

	var decoded batchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "decode scoring response")
	}
	if !decoded.Success {
		return nil, dErrors.Newf(dErrors.CodeUnavailable, "scoring failed: %s", decoded.Error)
	}

	pairs := make([]ports.ScoredPair, 0, len(decoded.Matches))
	for _, m := range decoded.Matches {
		donationID, err := domain.ParseDonationID(m.DonationID)
		if err != nil {
			return nil, fmt.Errorf("scoring response donation id: %w", err)
		}
		requestID, err := domain.ParseRequestID(m.RequestID)
		if err != nil {
			return nil, fmt.Errorf("scoring response request id: %w", err)
		}
		pairs = append(pairs, ports.ScoredPair{
			DonationID: donationID,
			RequestID:  requestID,
			Scores: models.ScoreCard{
				Compatibility: m.CompatibilityScore,
				Blood:         m.BloodScore,
				Location:      m.LocationScore,
				Medical:       m.MedicalScore,
				HLA:           m.HLAScore,
				Urgency:       m.UrgencyScore,
				ModelVersion:  decoded.ModelVersion,
			},
			Reason: m.MatchReason,
		})
	}
	return pairs, nil
}

func buildBatch(candidates []ports.Candidate, topN int, threshold float64) batchRequest {
	batch := batchRequest{TopN: topN, Threshold: threshold}
	seenDonations := make(map[string]bool)
	seenRequests := make(map[string]bool)

	for _, c := range candidates {
		if id := c.Donation.ID.String(); !seenDonations[id] {
			seenDonations[id] = true
			p := donationPayload{
				DonationID: id,
				UserID:     c.Donation.UserID.String(),
				BloodType:  string(c.Donor.BloodType),
				Kind:       string(c.Donation.Kind),
				Subtype:    c.Donation.Subtype(),
				Age:        c.Donor.Age,
				WeightKG:   c.Donor.WeightKG,
			}
			if c.DonorLoc != nil {
				p.Latitude = c.DonorLoc.Latitude
				p.Longitude = c.DonorLoc.Longitude
			}
			if c.DonorHLA != nil {
				p.HLAString = c.DonorHLA.HLAString
			}
			batch.Donations = append(batch.Donations, p)
		}
		if id := c.Request.ID.String(); !seenRequests[id] {
			seenRequests[id] = true
			p := requestPayload{
				RequestID: id,
				UserID:    c.Request.UserID.String(),
				BloodType: string(c.Recipient.BloodType),
				Kind:      string(c.Request.Kind),
				Subtype:   c.Request.Subtype(),
				Age:       c.Recipient.Age,
				Urgency:   string(c.Request.Urgency),
			}
			if c.RecipientLoc != nil {
				p.Latitude = c.RecipientLoc.Latitude
				p.Longitude = c.RecipientLoc.Longitude
			}
			if c.RecipientHLA != nil {
				p.HLAString = c.RecipientHLA.HLAString
			}
			batch.Requests = append(batch.Requests, p)
		}
	}
	return batch
}
