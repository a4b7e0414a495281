package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lifelink/internal/matching/models"
	"lifelink/internal/matching/service/lifecycle"
	donationstore "lifelink/internal/matching/store/donation"
	locationstore "lifelink/internal/matching/store/location"
	matchstore "lifelink/internal/matching/store/match"
	requeststore "lifelink/internal/matching/store/request"
	"lifelink/pkg/domain"
	"lifelink/pkg/platform/middleware/identity"
)

type nopPublisher struct{}

func (nopPublisher) PublishMatchFound(context.Context, *models.Match) error { return nil }

type fixture struct {
	router    http.Handler
	matches   *matchstore.InMemoryStore
	donations *donationstore.InMemoryStore
	requests  *requeststore.InMemoryStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		matches:   matchstore.NewInMemoryStore(),
		donations: donationstore.NewInMemoryStore(),
		requests:  requeststore.NewInMemoryStore(),
	}
	svc, err := lifecycle.New(f.matches, f.donations, f.requests, locationstore.NewInMemoryStore(), nopPublisher{})
	require.NoError(t, err)

	h := New(svc, slog.New(slog.NewTextHandler(io.Discard, nil)))
	r := chi.NewRouter()
	r.Use(identity.FromHeaders)
	h.Register(r)
	f.router = r
	return f
}

func (f *fixture) seedMatch(t *testing.T, status models.MatchStatus) *models.Match {
	t.Helper()
	ctx := context.Background()
	m := &models.Match{
		ID:              domain.NewMatchID(),
		DonationID:      domain.DonationID(uuid.New()),
		RequestID:       domain.RequestID(uuid.New()),
		DonorUserID:     domain.UserID(uuid.New()),
		RecipientUserID: domain.UserID(uuid.New()),
		Kind:            models.MatchKindBlood,
		Status:          status,
		Source:          models.SourceEngine,
		MatchedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}
	require.NoError(t, f.matches.Create(ctx, m))
	require.NoError(t, f.donations.Upsert(ctx, &models.DonationReplica{
		ID: m.DonationID, UserID: m.DonorUserID,
		Kind: models.MatchKindBlood, Status: models.DonationMatched,
	}))
	require.NoError(t, f.requests.Upsert(ctx, &models.RequestReplica{
		ID: m.RequestID, UserID: m.RecipientUserID,
		Kind: models.MatchKindBlood, Status: models.RequestMatched,
	}))
	return m
}

func (f *fixture) do(method, path, userID string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set(identity.HeaderUserID, userID)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestConfirmEndpoints(t *testing.T) {
	t.Run("donor confirm transitions the match", func(t *testing.T) {
		f := newFixture(t)
		m := f.seedMatch(t, models.MatchPending)

		rec := f.do(http.MethodPost, "/matching/donor/confirm/"+m.ID.String(), m.DonorUserID.String(), nil)

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var resp MatchResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, string(models.MatchDonorConfirmed), resp.Status)
		assert.True(t, resp.DonorConfirmed)
		assert.NotNil(t, resp.ConfirmationDeadline)
	})

	t.Run("missing identity header is rejected", func(t *testing.T) {
		f := newFixture(t)
		m := f.seedMatch(t, models.MatchPending)

		rec := f.do(http.MethodPost, "/matching/donor/confirm/"+m.ID.String(), "", nil)

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("stranger cannot confirm", func(t *testing.T) {
		f := newFixture(t)
		m := f.seedMatch(t, models.MatchPending)

		rec := f.do(http.MethodPost, "/matching/donor/confirm/"+m.ID.String(), uuid.NewString(), nil)

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("malformed match id is a bad request", func(t *testing.T) {
		f := newFixture(t)

		rec := f.do(http.MethodPost, "/matching/donor/confirm/not-a-uuid", uuid.NewString(), nil)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("recipient withdraw cancels their side", func(t *testing.T) {
		f := newFixture(t)
		m := f.seedMatch(t, models.MatchPending)

		rec := f.do(http.MethodPost, "/matching/recipient/withdraw/"+m.ID.String(), m.RecipientUserID.String(), nil)

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var resp MatchResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, string(models.MatchCancelledByRecip), resp.Status)
	})

	t.Run("completion records the receipt from the body", func(t *testing.T) {
		f := newFixture(t)
		m := f.seedMatch(t, models.MatchConfirmed)

		rec := f.do(http.MethodPost, "/matching/complete/"+m.ID.String(), m.RecipientUserID.String(), CompletionRequest{
			ConfirmationMessage: "received the donation",
			Notes:               "all good",
			Rating:              5,
			HospitalName:        "City General",
		})

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var resp MatchResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, string(models.MatchCompleted), resp.Status)
		require.NotNil(t, resp.Receipt)
		assert.Equal(t, "received the donation", resp.Receipt.ConfirmationMessage)
		assert.Equal(t, 5, resp.Receipt.Rating)
		assert.Equal(t, "City General", resp.Receipt.HospitalName)
	})

	t.Run("completion receipt without a message is rejected", func(t *testing.T) {
		f := newFixture(t)
		m := f.seedMatch(t, models.MatchConfirmed)

		rec := f.do(http.MethodPost, "/matching/complete/"+m.ID.String(), m.DonorUserID.String(), CompletionRequest{Rating: 3})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("completion of an unconfirmed match conflicts", func(t *testing.T) {
		f := newFixture(t)
		m := f.seedMatch(t, models.MatchPending)

		rec := f.do(http.MethodPost, "/matching/complete/"+m.ID.String(), m.DonorUserID.String(), nil)

		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}

func TestListEndpoints(t *testing.T) {
	t.Run("my matches as donor returns only the caller's", func(t *testing.T) {
		f := newFixture(t)
		mine := f.seedMatch(t, models.MatchPending)
		f.seedMatch(t, models.MatchPending)

		rec := f.do(http.MethodGet, "/matching/my-matches/as-donor", mine.DonorUserID.String(), nil)

		require.Equal(t, http.StatusOK, rec.Code)
		var resp []*MatchResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		require.Len(t, resp, 1)
		assert.Equal(t, mine.ID.String(), resp[0].ID)
	})

	t.Run("all matches lists everything", func(t *testing.T) {
		f := newFixture(t)
		f.seedMatch(t, models.MatchPending)
		f.seedMatch(t, models.MatchConfirmed)

		rec := f.do(http.MethodGet, "/matching/admin/all-matches", uuid.NewString(), nil)

		require.Equal(t, http.StatusOK, rec.Code)
		var resp []*MatchResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Len(t, resp, 2)
	})

	t.Run("matches for donation", func(t *testing.T) {
		f := newFixture(t)
		m := f.seedMatch(t, models.MatchPending)

		path := fmt.Sprintf("/matching/donation/%s/matches", m.DonationID)
		rec := f.do(http.MethodGet, path, m.DonorUserID.String(), nil)

		require.Equal(t, http.StatusOK, rec.Code)
		var resp []*MatchResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		require.Len(t, resp, 1)
		assert.Equal(t, m.ID.String(), resp[0].ID)
	})
}

func TestGetSourceEndpoints(t *testing.T) {
	t.Run("owner reads their donation", func(t *testing.T) {
		f := newFixture(t)
		m := f.seedMatch(t, models.MatchPending)

		rec := f.do(http.MethodGet, "/matching/donations/"+m.DonationID.String(), m.DonorUserID.String(), nil)

		require.Equal(t, http.StatusOK, rec.Code)
		var resp DonationResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, m.DonationID.String(), resp.ID)
	})

	t.Run("matched counterparty reads the donation", func(t *testing.T) {
		f := newFixture(t)
		m := f.seedMatch(t, models.MatchPending)

		rec := f.do(http.MethodGet, "/matching/donations/"+m.DonationID.String(), m.RecipientUserID.String(), nil)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("stranger cannot read the donation", func(t *testing.T) {
		f := newFixture(t)
		m := f.seedMatch(t, models.MatchPending)

		rec := f.do(http.MethodGet, "/matching/donations/"+m.DonationID.String(), uuid.NewString(), nil)

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("unknown request is not found", func(t *testing.T) {
		f := newFixture(t)

		rec := f.do(http.MethodGet, "/matching/requests/"+uuid.NewString(), uuid.NewString(), nil)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestManualMatchEndpoint(t *testing.T) {
	seedPair := func(t *testing.T, f *fixture) (*models.DonationReplica, *models.RequestReplica) {
		t.Helper()
		ctx := context.Background()
		donation := &models.DonationReplica{
			ID: domain.DonationID(uuid.New()), UserID: domain.UserID(uuid.New()),
			Kind: models.MatchKindBlood, Status: models.DonationPending,
		}
		request := &models.RequestReplica{
			ID: domain.RequestID(uuid.New()), UserID: domain.UserID(uuid.New()),
			Kind: models.MatchKindBlood, Status: models.RequestPending,
		}
		require.NoError(t, f.donations.Upsert(ctx, donation))
		require.NoError(t, f.requests.Upsert(ctx, request))
		return donation, request
	}

	t.Run("creates a pending manual match", func(t *testing.T) {
		f := newFixture(t)
		donation, request := seedPair(t, f)

		rec := f.do(http.MethodPost, "/matching/manual-match", uuid.NewString(), ManualMatchRequest{
			DonationID: donation.ID.String(),
			RequestID:  request.ID.String(),
		})

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var resp ManualMatchResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.True(t, resp.Success)
		require.NotNil(t, resp.Match)
		assert.Equal(t, string(models.MatchPending), resp.Match.Status)
		assert.Equal(t, string(models.SourceManual), resp.Match.Source)
	})

	t.Run("unknown donation reports failure without an error status", func(t *testing.T) {
		f := newFixture(t)
		_, request := seedPair(t, f)

		rec := f.do(http.MethodPost, "/matching/manual-match", uuid.NewString(), ManualMatchRequest{
			DonationID: uuid.NewString(),
			RequestID:  request.ID.String(),
		})

		require.Equal(t, http.StatusOK, rec.Code)
		var resp ManualMatchResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.False(t, resp.Success)
		assert.Contains(t, resp.Message, "not found")
	})

	t.Run("malformed donation id is a bad request", func(t *testing.T) {
		f := newFixture(t)

		rec := f.do(http.MethodPost, "/matching/manual-match", uuid.NewString(), ManualMatchRequest{
			DonationID: "nope",
			RequestID:  uuid.NewString(),
		})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
