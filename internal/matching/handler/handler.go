// Package handler exposes the matching HTTP surface consumed by the API
// gateway. Caller identity arrives via the gateway headers; see the
// identity middleware.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"lifelink/internal/matching/models"
	"lifelink/internal/matching/service/lifecycle"
	id "lifelink/pkg/domain"
	dErrors "lifelink/pkg/domain-errors"
	"lifelink/pkg/platform/httputil"
	"lifelink/pkg/requestcontext"
)

// Handler wires matching endpoints to the lifecycle service.
type Handler struct {
	service *lifecycle.Service
	logger  *slog.Logger
}

// New constructs a matching handler.
func New(service *lifecycle.Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, logger: logger}
}

// Register mounts matching endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/matching", func(r chi.Router) {
		r.Post("/manual-match", h.HandleManualMatch)

		r.Get("/my-matches/as-donor", h.HandleMyMatchesAsDonor)
		r.Get("/my-matches/as-recipient", h.HandleMyMatchesAsRecipient)
		r.Get("/admin/all-matches", h.HandleAllMatches)
		r.Get("/donation/{id}/matches", h.HandleMatchesForDonation)
		r.Get("/request/{id}/matches", h.HandleMatchesForRequest)
		r.Get("/donations/{id}", h.HandleGetDonation)
		r.Get("/requests/{id}", h.HandleGetRequest)

		r.Post("/donor/confirm/{matchId}", h.HandleDonorConfirm)
		r.Post("/recipient/confirm/{matchId}", h.HandleRecipientConfirm)
		r.Post("/donor/reject/{matchId}", h.HandleDonorReject)
		r.Post("/recipient/reject/{matchId}", h.HandleRecipientReject)
		r.Post("/donor/withdraw/{matchId}", h.HandleDonorWithdraw)
		r.Post("/recipient/withdraw/{matchId}", h.HandleRecipientWithdraw)
		r.Post("/complete/{matchId}", h.HandleCompletion)
	})
}

// ManualMatchRequest is the operator payload for creating a match by hand.
type ManualMatchRequest struct {
	DonationID          string `json:"donationId"`
	RequestID           string `json:"receiveRequestId"`
	DonorLocationID     string `json:"donorLocationId,omitempty"`
	RecipientLocationID string `json:"recipientLocationId,omitempty"`
}

// HandleManualMatch handles POST /matching/manual-match. The result is
// always 200 with a success flag so the gateway can relay operator errors
// verbatim.
func (h *Handler) HandleManualMatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := h.caller(w, r); !ok {
		return
	}

	req, ok := httputil.Decode[ManualMatchRequest](w, r)
	if !ok {
		return
	}

	input, err := req.toInput()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	result := h.service.ManualMatch(ctx, input)
	if !result.Success {
		h.logger.InfoContext(ctx, "manual match rejected",
			"request_id", requestcontext.RequestID(ctx),
			"donation_id", req.DonationID,
			"receive_request_id", req.RequestID,
			"message", result.Message,
		)
	}
	httputil.WriteJSON(w, http.StatusOK, fromManualResult(result))
}

func (r ManualMatchRequest) toInput() (lifecycle.ManualMatchInput, error) {
	var input lifecycle.ManualMatchInput

	donationID, err := id.ParseDonationID(r.DonationID)
	if err != nil {
		return input, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid donationId")
	}
	requestID, err := id.ParseRequestID(r.RequestID)
	if err != nil {
		return input, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid receiveRequestId")
	}
	input.DonationID = donationID
	input.RequestID = requestID

	if r.DonorLocationID != "" {
		locID, err := id.ParseLocationID(r.DonorLocationID)
		if err != nil {
			return input, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid donorLocationId")
		}
		input.DonorLocationID = locID
	}
	if r.RecipientLocationID != "" {
		locID, err := id.ParseLocationID(r.RecipientLocationID)
		if err != nil {
			return input, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid recipientLocationId")
		}
		input.RecipientLocationID = locID
	}
	return input, nil
}

// HandleMyMatchesAsDonor handles GET /matching/my-matches/as-donor.
func (h *Handler) HandleMyMatchesAsDonor(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	matches, err := h.service.ListAsDonor(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromMatches(matches))
}

// HandleMyMatchesAsRecipient handles GET /matching/my-matches/as-recipient.
func (h *Handler) HandleMyMatchesAsRecipient(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	matches, err := h.service.ListAsRecipient(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromMatches(matches))
}

// HandleAllMatches handles GET /matching/admin/all-matches. Admin gating
// happens at the gateway; the service only requires an authenticated caller.
func (h *Handler) HandleAllMatches(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.caller(w, r); !ok {
		return
	}
	matches, err := h.service.ListAll(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromMatches(matches))
}

// HandleMatchesForDonation handles GET /matching/donation/{id}/matches.
func (h *Handler) HandleMatchesForDonation(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.caller(w, r); !ok {
		return
	}
	donationID, err := id.ParseDonationID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	matches, err := h.service.ListByDonation(r.Context(), donationID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromMatches(matches))
}

// HandleMatchesForRequest handles GET /matching/request/{id}/matches.
func (h *Handler) HandleMatchesForRequest(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.caller(w, r); !ok {
		return
	}
	requestID, err := id.ParseRequestID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	matches, err := h.service.ListByRequest(r.Context(), requestID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromMatches(matches))
}

// HandleGetDonation handles GET /matching/donations/{id}. The caller must
// own the donation or be the recipient side of one of its matches.
func (h *Handler) HandleGetDonation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	donationID, err := id.ParseDonationID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	donation, err := h.service.GetDonation(ctx, donationID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if donation.UserID != userID {
		allowed, err := h.matchedWithDonation(r, donationID, userID)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		if !allowed {
			httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "not a party to this donation"))
			return
		}
	}
	httputil.WriteJSON(w, http.StatusOK, fromDonation(donation))
}

// HandleGetRequest handles GET /matching/requests/{id}. The caller must own
// the request or be the donor side of one of its matches.
func (h *Handler) HandleGetRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	requestID, err := id.ParseRequestID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	request, err := h.service.GetRequest(ctx, requestID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if request.UserID != userID {
		allowed, err := h.matchedWithRequest(r, requestID, userID)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		if !allowed {
			httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "not a party to this request"))
			return
		}
	}
	httputil.WriteJSON(w, http.StatusOK, fromRequest(request))
}

// HandleDonorConfirm handles POST /matching/donor/confirm/{matchId}.
func (h *Handler) HandleDonorConfirm(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "donor confirm", h.service.ConfirmByDonor)
}

// HandleRecipientConfirm handles POST /matching/recipient/confirm/{matchId}.
func (h *Handler) HandleRecipientConfirm(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "recipient confirm", h.service.ConfirmByRecipient)
}

// HandleDonorReject handles POST /matching/donor/reject/{matchId}.
func (h *Handler) HandleDonorReject(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "donor reject", h.service.RejectByDonor)
}

// HandleRecipientReject handles POST /matching/recipient/reject/{matchId}.
func (h *Handler) HandleRecipientReject(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "recipient reject", h.service.RejectByRecipient)
}

// HandleDonorWithdraw handles POST /matching/donor/withdraw/{matchId}.
func (h *Handler) HandleDonorWithdraw(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "donor withdraw", h.service.WithdrawByDonor)
}

// HandleRecipientWithdraw handles POST /matching/recipient/withdraw/{matchId}.
func (h *Handler) HandleRecipientWithdraw(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "recipient withdraw", h.service.WithdrawByRecipient)
}

// CompletionRequest is the optional receipt recorded when a party confirms
// the donation happened.
type CompletionRequest struct {
	ConfirmationMessage string     `json:"confirmationMessage"`
	ReceivedDate        *time.Time `json:"receivedDate,omitempty"`
	Notes               string     `json:"notes,omitempty"`
	Rating              int        `json:"rating,omitempty"`
	HospitalName        string     `json:"hospitalName,omitempty"`
}

func (r CompletionRequest) toReceipt() *models.CompletionReceipt {
	return &models.CompletionReceipt{
		Message:      r.ConfirmationMessage,
		ReceivedDate: r.ReceivedDate,
		Notes:        r.Notes,
		Rating:       r.Rating,
		HospitalName: r.HospitalName,
	}
}

// HandleCompletion handles POST /matching/complete/{matchId}. The body is
// an optional receipt; an empty body completes without one.
func (h *Handler) HandleCompletion(w http.ResponseWriter, r *http.Request) {
	var receipt *models.CompletionReceipt
	var req CompletionRequest
	switch err := json.NewDecoder(r.Body).Decode(&req); {
	case err == nil:
		receipt = req.toReceipt()
	case errors.Is(err, io.EOF):
	default:
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "malformed request body"))
		return
	}

	h.transition(w, r, "completion", func(ctx context.Context, matchID id.MatchID, callerID id.UserID) (*models.Match, error) {
		return h.service.ConfirmCompletion(ctx, matchID, callerID, receipt)
	})
}

type transitionFunc func(ctx context.Context, matchID id.MatchID, callerID id.UserID) (*models.Match, error)

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, action string, fn transitionFunc) {
	ctx := r.Context()
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	matchID, err := id.ParseMatchID(chi.URLParam(r, "matchId"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	match, err := fn(ctx, matchID, userID)
	if err != nil {
		h.logger.WarnContext(ctx, "match transition failed",
			"request_id", requestcontext.RequestID(ctx),
			"action", action,
			"match_id", matchID,
			"user_id", userID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "match transition applied",
		"request_id", requestcontext.RequestID(ctx),
		"action", action,
		"match_id", matchID,
		"status", match.Status,
	)
	httputil.WriteJSON(w, http.StatusOK, fromMatch(match))
}

// caller returns the authenticated user or writes an unauthorized error.
func (h *Handler) caller(w http.ResponseWriter, r *http.Request) (id.UserID, bool) {
	userID := requestcontext.UserID(r.Context())
	if userID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return id.UserID{}, false
	}
	return userID, true
}

func (h *Handler) matchedWithDonation(r *http.Request, donationID id.DonationID, userID id.UserID) (bool, error) {
	matches, err := h.service.ListByDonation(r.Context(), donationID)
	if err != nil {
		return false, err
	}
	for _, m := range matches {
		if m.DonorUserID == userID || m.RecipientUserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (h *Handler) matchedWithRequest(r *http.Request, requestID id.RequestID, userID id.UserID) (bool, error) {
	matches, err := h.service.ListByRequest(r.Context(), requestID)
	if err != nil {
		return false, err
	}
	for _, m := range matches {
		if m.DonorUserID == userID || m.RecipientUserID == userID {
			return true, nil
		}
	}
	return false, nil
}
