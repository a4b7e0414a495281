package match

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"lifelink/internal/matching/models"
	"lifelink/pkg/domain"
	dErrors "lifelink/pkg/domain-errors"
)

// PostgresStore persists matches in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed match store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const matchColumns = `
	id, donation_id, request_id, donor_user_id, recipient_user_id,
	donor_location_id, recipient_location_id,
	donor_city, donor_state, donor_lat, donor_lng,
	recipient_city, recipient_state, recipient_lat, recipient_lng,
	distance_km, kind, status, source,
	compatibility_score, blood_score, location_score, medical_score,
	hla_score, urgency_score, model_version,
	match_reason, priority_rank,
	donor_confirmed, donor_confirmed_at,
	recipient_confirmed, recipient_confirmed_at,
	confirmation_deadline,
	matched_at, completed_at, expired_at, expiry_reason, updated_at,
	completion_message, completion_received_date, completion_notes,
	completion_rating, completion_hospital
`

func (s *PostgresStore) Create(ctx context.Context, match *models.Match) error {
	query := `
		INSERT INTO matches (` + matchColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27,
			$28, $29, $30, $31, $32, $33, $34, $35, $36, $37, $38, $39, $40,
			$41, $42, $43)
	`
	_, err := s.db.ExecContext(ctx, query, matchArgs(match)...)
	if err != nil {
		return fmt.Errorf("insert match: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, match *models.Match) error {
	query := `
		UPDATE matches SET
			status = $2,
			donor_confirmed = $3, donor_confirmed_at = $4,
			recipient_confirmed = $5, recipient_confirmed_at = $6,
			confirmation_deadline = $7,
			completed_at = $8, expired_at = $9, expiry_reason = $10,
			updated_at = $11,
			completion_message = $12, completion_received_date = $13,
			completion_notes = $14, completion_rating = $15,
			completion_hospital = $16
		WHERE id = $1
	`
	args := []any{
		uuid.UUID(match.ID),
		string(match.Status),
		match.DonorConfirmed, nullTime(match.DonorConfirmedAt),
		match.RecipientConfirmed, nullTime(match.RecipientConfirmedAt),
		nullTime(match.ConfirmationDeadline),
		nullTime(match.CompletedAt), nullTime(match.ExpiredAt), nullString(match.ExpiryReason),
		match.UpdatedAt,
	}
	args = append(args, receiptArgs(match.Receipt)...)
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update match: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return dErrors.New(dErrors.CodeNotFound, "match not found")
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id domain.MatchID) (*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE id = $1`
	row := s.db.QueryRowContext(ctx, query, uuid.UUID(id))
	match, err := scanMatch(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, dErrors.New(dErrors.CodeNotFound, "match not found")
		}
		return nil, fmt.Errorf("get match: %w", err)
	}
	return match, nil
}

func (s *PostgresStore) ExistsActiveForPair(ctx context.Context, donationID domain.DonationID, requestID domain.RequestID) (bool, error) {
	statuses := make([]string, len(models.ActiveMatchStatuses))
	for i, status := range models.ActiveMatchStatuses {
		statuses[i] = string(status)
	}
	query := `
		SELECT EXISTS (
			SELECT 1 FROM matches
			WHERE donation_id = $1 AND request_id = $2 AND status = ANY($3)
		)
	`
	var exists bool
	err := s.db.QueryRowContext(ctx, query,
		uuid.UUID(donationID), uuid.UUID(requestID), pq.Array(statuses),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check active match for pair: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) ListByStatuses(ctx context.Context, statuses ...models.MatchStatus) ([]*models.Match, error) {
	values := make([]string, len(statuses))
	for i, status := range statuses {
		values[i] = string(status)
	}
	return s.query(ctx,
		`SELECT `+matchColumns+` FROM matches WHERE status = ANY($1) ORDER BY matched_at DESC`,
		pq.Array(values),
	)
}

func (s *PostgresStore) ListByDonation(ctx context.Context, donationID domain.DonationID) ([]*models.Match, error) {
	return s.query(ctx,
		`SELECT `+matchColumns+` FROM matches WHERE donation_id = $1 ORDER BY matched_at DESC`,
		uuid.UUID(donationID),
	)
}

func (s *PostgresStore) ListByRequest(ctx context.Context, requestID domain.RequestID) ([]*models.Match, error) {
	return s.query(ctx,
		`SELECT `+matchColumns+` FROM matches WHERE request_id = $1 ORDER BY matched_at DESC`,
		uuid.UUID(requestID),
	)
}

func (s *PostgresStore) ListByDonorUser(ctx context.Context, userID domain.UserID) ([]*models.Match, error) {
	return s.query(ctx,
		`SELECT `+matchColumns+` FROM matches WHERE donor_user_id = $1 ORDER BY matched_at DESC`,
		uuid.UUID(userID),
	)
}

func (s *PostgresStore) ListByRecipientUser(ctx context.Context, userID domain.UserID) ([]*models.Match, error) {
	return s.query(ctx,
		`SELECT `+matchColumns+` FROM matches WHERE recipient_user_id = $1 ORDER BY matched_at DESC`,
		uuid.UUID(userID),
	)
}

func (s *PostgresStore) ListAll(ctx context.Context) ([]*models.Match, error) {
	return s.query(ctx, `SELECT `+matchColumns+` FROM matches ORDER BY matched_at DESC`)
}

func (s *PostgresStore) query(ctx context.Context, query string, args ...any) ([]*models.Match, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query matches: %w", err)
	}
	defer rows.Close()

	var out []*models.Match
	for rows.Next() {
		match, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		out = append(out, match)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate matches: %w", err)
	}
	return out, nil
}

func receiptArgs(r *models.CompletionReceipt) []any {
	if r == nil {
		return []any{sql.NullString{}, sql.NullTime{}, sql.NullString{}, sql.NullInt64{}, sql.NullString{}}
	}
	return []any{
		nullString(r.Message),
		nullTime(r.ReceivedDate),
		nullString(r.Notes),
		sql.NullInt64{Int64: int64(r.Rating), Valid: r.Rating != 0},
		nullString(r.HospitalName),
	}
}

func matchArgs(m *models.Match) []any {
	args := []any{
		uuid.UUID(m.ID),
		uuid.UUID(m.DonationID),
		uuid.UUID(m.RequestID),
		uuid.UUID(m.DonorUserID),
		uuid.UUID(m.RecipientUserID),
		uuid.UUID(m.DonorLocationID),
		uuid.UUID(m.RecipientLocationID),
		m.DonorLocation.City, m.DonorLocation.State,
		nullFloat(m.DonorLocation.Latitude), nullFloat(m.DonorLocation.Longitude),
		m.RecipientLocation.City, m.RecipientLocation.State,
		nullFloat(m.RecipientLocation.Latitude), nullFloat(m.RecipientLocation.Longitude),
		m.DistanceKm,
		string(m.Kind),
		string(m.Status),
		string(m.Source),
		m.Scores.Compatibility, m.Scores.Blood, m.Scores.Location,
		m.Scores.Medical, m.Scores.HLA, m.Scores.Urgency,
		nullString(m.Scores.ModelVersion),
		m.MatchReason,
		m.PriorityRank,
		m.DonorConfirmed, nullTime(m.DonorConfirmedAt),
		m.RecipientConfirmed, nullTime(m.RecipientConfirmedAt),
		nullTime(m.ConfirmationDeadline),
		m.MatchedAt, nullTime(m.CompletedAt), nullTime(m.ExpiredAt),
		nullString(m.ExpiryReason),
		m.UpdatedAt,
	}
	return append(args, receiptArgs(m.Receipt)...)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMatch(row rowScanner) (*models.Match, error) {
	var (
		m                                      models.Match
		id, donationID, requestID              uuid.UUID
		donorUserID, recipientUserID           uuid.UUID
		donorLocID, recipientLocID             uuid.UUID
		donorLat, donorLng, recipLat, recipLng sql.NullFloat64
		kind, status, source                   string
		modelVersion, expiryReason             sql.NullString
		donorConfirmedAt, recipientConfirmedAt sql.NullTime
		confirmationDeadline                   sql.NullTime
		completedAt, expiredAt                 sql.NullTime
		receiptMessage, receiptNotes           sql.NullString
		receiptHospital                        sql.NullString
		receiptReceived                        sql.NullTime
		receiptRating                          sql.NullInt64
	)
	err := row.Scan(
		&id, &donationID, &requestID, &donorUserID, &recipientUserID,
		&donorLocID, &recipientLocID,
		&m.DonorLocation.City, &m.DonorLocation.State, &donorLat, &donorLng,
		&m.RecipientLocation.City, &m.RecipientLocation.State, &recipLat, &recipLng,
		&m.DistanceKm, &kind, &status, &source,
		&m.Scores.Compatibility, &m.Scores.Blood, &m.Scores.Location,
		&m.Scores.Medical, &m.Scores.HLA, &m.Scores.Urgency, &modelVersion,
		&m.MatchReason, &m.PriorityRank,
		&m.DonorConfirmed, &donorConfirmedAt,
		&m.RecipientConfirmed, &recipientConfirmedAt,
		&confirmationDeadline,
		&m.MatchedAt, &completedAt, &expiredAt, &expiryReason, &m.UpdatedAt,
		&receiptMessage, &receiptReceived, &receiptNotes,
		&receiptRating, &receiptHospital,
	)
	if err != nil {
		return nil, err
	}
	m.ID = domain.MatchID(id)
	m.DonationID = domain.DonationID(donationID)
	m.RequestID = domain.RequestID(requestID)
	m.DonorUserID = domain.UserID(donorUserID)
	m.RecipientUserID = domain.UserID(recipientUserID)
	m.DonorLocationID = domain.LocationID(donorLocID)
	m.RecipientLocationID = domain.LocationID(recipientLocID)
	m.DonorLocation.Latitude = floatPtr(donorLat)
	m.DonorLocation.Longitude = floatPtr(donorLng)
	m.RecipientLocation.Latitude = floatPtr(recipLat)
	m.RecipientLocation.Longitude = floatPtr(recipLng)
	m.Kind = models.MatchKind(kind)
	m.Status = models.MatchStatus(status)
	m.Source = models.MatchSource(source)
	m.Scores.ModelVersion = modelVersion.String
	m.DonorConfirmedAt = timePtr(donorConfirmedAt)
	m.RecipientConfirmedAt = timePtr(recipientConfirmedAt)
	m.ConfirmationDeadline = timePtr(confirmationDeadline)
	m.CompletedAt = timePtr(completedAt)
	if receiptMessage.Valid {
		m.Receipt = &models.CompletionReceipt{
			Message:      receiptMessage.String,
			ReceivedDate: timePtr(receiptReceived),
			Notes:        receiptNotes.String,
			Rating:       int(receiptRating.Int64),
			HospitalName: receiptHospital.String,
		}
	}
	m.ExpiredAt = timePtr(expiredAt)
	m.ExpiryReason = expiryReason.String
	return &m, nil
}

func nullTime(value *time.Time) sql.NullTime {
	if value == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *value, Valid: true}
}

func timePtr(value sql.NullTime) *time.Time {
	if !value.Valid {
		return nil
	}
	t := value.Time
	return &t
}

func nullString(value string) sql.NullString {
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}

func nullFloat(value *float64) sql.NullFloat64 {
	if value == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *value, Valid: true}
}

func floatPtr(value sql.NullFloat64) *float64 {
	if !value.Valid {
		return nil
	}
	f := value.Float64
	return &f
}
