package donation

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

// PostgresStore persists donation replicas in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed donation store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Upsert(ctx context.Context, donation *models.DonationReplica) error {
	query := `
		INSERT INTO donations (
			id, donor_id, user_id, location_id, kind, status,
			quantity_ml, organ_type, tissue_type, stem_cell_type,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			location_id = EXCLUDED.location_id,
			status = EXCLUDED.status,
			quantity_ml = EXCLUDED.quantity_ml,
			organ_type = EXCLUDED.organ_type,
			tissue_type = EXCLUDED.tissue_type,
			stem_cell_type = EXCLUDED.stem_cell_type,
			updated_at = EXCLUDED.updated_at
	`
	var quantityML sql.NullInt64
	if donation.Blood != nil {
		quantityML = sql.NullInt64{Int64: int64(donation.Blood.QuantityML), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(donation.ID),
		uuid.UUID(donation.DonorID),
		uuid.UUID(donation.UserID),
		uuid.UUID(donation.LocationID),
		string(donation.Kind),
		string(donation.Status),
		quantityML,
		nullString(organType(donation)),
		nullString(tissueType(donation)),
		nullString(stemCellType(donation)),
		donation.CreatedAt,
		donation.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert donation: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id domain.DonationID) (*models.DonationReplica, error) {
	query := `
		SELECT id, donor_id, user_id, location_id, kind, status,
			   quantity_ml, organ_type, tissue_type, stem_cell_type,
			   created_at, updated_at
		FROM donations
		WHERE id = $1
	`
	row := s.db.QueryRowContext(ctx, query, uuid.UUID(id))
	donation, err := scanDonation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, dErrors.New(dErrors.CodeNotFound, "donation not found")
		}
		return nil, fmt.Errorf("get donation: %w", err)
	}
	return donation, nil
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, id domain.DonationID, status models.DonationStatus) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE donations SET status = $2, updated_at = now() WHERE id = $1`,
		uuid.UUID(id), string(status),
	)
	if err != nil {
		return fmt.Errorf("update donation status: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return dErrors.New(dErrors.CodeNotFound, "donation not found")
	}
	return nil
}

func (s *PostgresStore) ListByStatuses(ctx context.Context, statuses ...models.DonationStatus) ([]*models.DonationReplica, error) {
	values := make([]string, len(statuses))
	for i, status := range statuses {
		values[i] = string(status)
	}
	query := `
		SELECT id, donor_id, user_id, location_id, kind, status,
			   quantity_ml, organ_type, tissue_type, stem_cell_type,
			   created_at, updated_at
		FROM donations
		WHERE status = ANY($1)
	`
	rows, err := s.db.QueryContext(ctx, query, pq.Array(values))
	if err != nil {
		return nil, fmt.Errorf("list donations by status: %w", err)
	}
	defer rows.Close()

	var out []*models.DonationReplica
	for rows.Next() {
		donation, err := scanDonation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan donation: %w", err)
		}
		out = append(out, donation)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate donations: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDonation(row rowScanner) (*models.DonationReplica, error) {
	var (
		d                                models.DonationReplica
		id, donorID, userID, locationID  uuid.UUID
		kind, status                     string
		quantityML                       sql.NullInt64
		organStr, tissueStr, stemCellStr sql.NullString
	)
	err := row.Scan(
		&id, &donorID, &userID, &locationID, &kind, &status,
		&quantityML, &organStr, &tissueStr, &stemCellStr,
		&d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	d.ID = domain.DonationID(id)
	d.DonorID = domain.DonorID(donorID)
	d.UserID = domain.UserID(userID)
	d.LocationID = domain.LocationID(locationID)
	d.Kind = models.MatchKind(kind)
	d.Status = models.DonationStatus(status)
	switch d.Kind {
	case models.MatchKindBlood:
		if quantityML.Valid {
			d.Blood = &models.BloodDonationDetails{QuantityML: int(quantityML.Int64)}
		}
	case models.MatchKindOrgan:
		if organStr.Valid {
			d.Organ = &models.OrganDonationDetails{OrganType: organStr.String}
		}
	case models.MatchKindTissue:
		if tissueStr.Valid {
			d.Tissue = &models.TissueDonationDetails{TissueType: tissueStr.String}
		}
	case models.MatchKindStemCell:
		if stemCellStr.Valid {
			d.StemCell = &models.StemCellDonationDetails{StemCellType: stemCellStr.String}
		}
	}
	return &d, nil
}

func organType(d *models.DonationReplica) string {
	if d.Organ != nil {
		return d.Organ.OrganType
	}
	return ""
}

func tissueType(d *models.DonationReplica) string {
	if d.Tissue != nil {
		return d.Tissue.TissueType
	}
	return ""
}

func stemCellType(d *models.DonationReplica) string {
	if d.StemCell != nil {
		return d.StemCell.StemCellType
	}
	return ""
}

func nullString(value string) sql.NullString {
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}
