package request

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"lifelink/internal/matching/models"
	"lifelink/pkg/domain"
	dErrors "lifelink/pkg/domain-errors"
)

// PostgresStore persists receive request replicas in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed request store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Upsert(ctx context.Context, request *models.RequestReplica) error {
	query := `
		INSERT INTO receive_requests (
			id, recipient_id, user_id, location_id, kind, status, urgency,
			quantity_ml, organ_type, tissue_type, stem_cell_type,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			location_id = EXCLUDED.location_id,
			status = EXCLUDED.status,
			urgency = EXCLUDED.urgency,
			quantity_ml = EXCLUDED.quantity_ml,
			organ_type = EXCLUDED.organ_type,
			tissue_type = EXCLUDED.tissue_type,
			stem_cell_type = EXCLUDED.stem_cell_type,
			updated_at = EXCLUDED.updated_at
	`
	var quantityML sql.NullInt64
	if request.Blood != nil {
		quantityML = sql.NullInt64{Int64: int64(request.Blood.QuantityML), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(request.ID),
		uuid.UUID(request.RecipientID),
		uuid.UUID(request.UserID),
		uuid.UUID(request.LocationID),
		string(request.Kind),
		string(request.Status),
		string(request.Urgency),
		quantityML,
		nullString(organType(request)),
		nullString(tissueType(request)),
		nullString(stemCellType(request)),
		request.CreatedAt,
		request.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert receive request: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id domain.RequestID) (*models.RequestReplica, error) {
	query := `
		SELECT id, recipient_id, user_id, location_id, kind, status, urgency,
			   quantity_ml, organ_type, tissue_type, stem_cell_type,
			   created_at, updated_at
		FROM receive_requests
		WHERE id = $1
	`
	row := s.db.QueryRowContext(ctx, query, uuid.UUID(id))
	request, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, dErrors.New(dErrors.CodeNotFound, "receive request not found")
		}
		return nil, fmt.Errorf("get receive request: %w", err)
	}
	return request, nil
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, id domain.RequestID, status models.RequestStatus) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE receive_requests SET status = $2, updated_at = now() WHERE id = $1`,
		uuid.UUID(id), string(status),
	)
	if err != nil {
		return fmt.Errorf("update receive request status: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return dErrors.New(dErrors.CodeNotFound, "receive request not found")
	}
	return nil
}

func (s *PostgresStore) ListByStatuses(ctx context.Context, statuses ...models.RequestStatus) ([]*models.RequestReplica, error) {
	values := make([]string, len(statuses))
	for i, status := range statuses {
		values[i] = string(status)
	}
	query := `
		SELECT id, recipient_id, user_id, location_id, kind, status, urgency,
			   quantity_ml, organ_type, tissue_type, stem_cell_type,
			   created_at, updated_at
		FROM receive_requests
		WHERE status = ANY($1)
	`
	rows, err := s.db.QueryContext(ctx, query, pq.Array(values))
	if err != nil {
		return nil, fmt.Errorf("list receive requests by status: %w", err)
	}
	defer rows.Close()

	var out []*models.RequestReplica
	for rows.Next() {
		request, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan receive request: %w", err)
		}
		out = append(out, request)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate receive requests: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*models.RequestReplica, error) {
	var (
		r                                models.RequestReplica
		id, recipientID, userID, locID   uuid.UUID
		kind, status, urgency            string
		quantityML                       sql.NullInt64
		organStr, tissueStr, stemCellStr sql.NullString
	)
	err := row.Scan(
		&id, &recipientID, &userID, &locID, &kind, &status, &urgency,
		&quantityML, &organStr, &tissueStr, &stemCellStr,
		&r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.ID = domain.RequestID(id)
	r.RecipientID = domain.RecipientID(recipientID)
	r.UserID = domain.UserID(userID)
	r.LocationID = domain.LocationID(locID)
	r.Kind = models.MatchKind(kind)
	r.Status = models.RequestStatus(status)
	r.Urgency = models.UrgencyLevel(urgency)
	switch r.Kind {
	case models.MatchKindBlood:
		if quantityML.Valid {
			r.Blood = &models.BloodDonationDetails{QuantityML: int(quantityML.Int64)}
		}
	case models.MatchKindOrgan:
		if organStr.Valid {
			r.Organ = &models.OrganDonationDetails{OrganType: organStr.String}
		}
	case models.MatchKindTissue:
		if tissueStr.Valid {
			r.Tissue = &models.TissueDonationDetails{TissueType: tissueStr.String}
		}
	case models.MatchKindStemCell:
		if stemCellStr.Valid {
			r.StemCell = &models.StemCellDonationDetails{StemCellType: stemCellStr.String}
		}
	}
	return &r, nil
}

func organType(r *models.RequestReplica) string {
	if r.Organ != nil {
		return r.Organ.OrganType
	}
	return ""
}

func tissueType(r *models.RequestReplica) string {
	if r.Tissue != nil {
		return r.Tissue.TissueType
	}
	return ""
}

func stemCellType(r *models.RequestReplica) string {
	if r.StemCell != nil {
		return r.StemCell.StemCellType
	}
	return ""
}

func nullString(value string) sql.NullString {
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}
