package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/itafisc/fiscal-api/internal/database"
	"github.com/itafisc/fiscal-api/internal/models"
	"github.com/jackc/pgx/v5"
)

// KeyColumn identifies which of the two near-unique property keys is being
// addressed during conflict resolution.
type KeyColumn int

const (
	KeyCode KeyColumn = iota
	KeyRegistration
)

// PropertyFilter narrows property searches. Zero values are ignored.
type PropertyFilter struct {
	Code         string
	Registration string
	Street       string
	Neighborhood string
	Limit        int
	Offset       int
}

// PropertyRepository defines the interface for property data access.
// Find methods return nil, nil when no row matches (not an error).
type PropertyRepository interface {
	FindByID(ctx context.Context, id int64) (*models.Property, error)
	FindByCode(ctx context.Context, code string) (*models.Property, error)
	FindByRegistration(ctx context.Context, registration string) (*models.Property, error)
	Search(ctx context.Context, filter PropertyFilter) ([]models.Property, error)

	Create(ctx context.Context, p *models.Property) error
	Update(ctx context.Context, p *models.Property) error
	UpdatePostalCode(ctx context.Context, id int64, postalCode string) error

	// SharedPostalCode returns a usable postal code from any other stored
	// property at the same street/number/neighborhood, or "" when none has one.
	SharedPostalCode(ctx context.Context, street, number, neighborhood string) (string, error)

	// Supersede atomically rewrites the loser's colliding key column to the
	// tombstone value and writes the survivor's updated fields, so the key
	// becomes unique again without losing the audit trail.
	Supersede(ctx context.Context, survivor *models.Property, loserID int64, column KeyColumn, tombstone string) error
}

// propertyRepository is the concrete implementation of PropertyRepository.
type propertyRepository struct {
	db *database.Database
}

// NewPropertyRepository creates a new instance of PropertyRepository.
func NewPropertyRepository(db *database.Database) PropertyRepository {
	return &propertyRepository{db: db}
}

const propertyColumns = `
	id,
	code,
	registration,
	lot_code,
	street,
	number,
	neighborhood,
	complement,
	postal_code,
	corporate_name,
	taxpayer_number,
	zone,
	lot_area,
	ideal_fraction,
	updated_at,
	file_datetime
`

func scanProperty(row pgx.Row) (*models.Property, error) {
	var p models.Property
	err := row.Scan(
		&p.ID,
		&p.Code,
		&p.Registration,
		&p.LotCode,
		&p.Street,
		&p.Number,
		&p.Neighborhood,
		&p.Complement,
		&p.PostalCode,
		&p.CorporateName,
		&p.TaxpayerNumber,
		&p.Zone,
		&p.LotArea,
		&p.IdealFraction,
		&p.UpdatedAt,
		&p.FileDatetime,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (r *propertyRepository) findBy(ctx context.Context, column, value string) (*models.Property, error) {
	query := `SELECT ` + propertyColumns + ` FROM properties WHERE ` + column + ` = $1 LIMIT 1`
	p, err := scanProperty(r.db.Pool.QueryRow(ctx, query, value))
	if err != nil {
		return nil, fmt.Errorf("failed to query property by %s=%q: %w", column, value, err)
	}
	return p, nil
}

func (r *propertyRepository) FindByID(ctx context.Context, id int64) (*models.Property, error) {
	query := `SELECT ` + propertyColumns + ` FROM properties WHERE id = $1`
	p, err := scanProperty(r.db.Pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to query property %d: %w", id, err)
	}
	return p, nil
}

func (r *propertyRepository) FindByCode(ctx context.Context, code string) (*models.Property, error) {
	return r.findBy(ctx, "code", code)
}

func (r *propertyRepository) FindByRegistration(ctx context.Context, registration string) (*models.Property, error) {
	return r.findBy(ctx, "registration", registration)
}

// Search lists properties matching the filter, ordered by code. Text filters
// are case-insensitive substring matches, mirroring the list-screen search.
func (r *propertyRepository) Search(ctx context.Context, filter PropertyFilter) ([]models.Property, error) {
	query := `SELECT ` + propertyColumns + ` FROM properties WHERE 1=1`
	args := []any{}

	addFilter := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, "%"+value+"%")
		query += fmt.Sprintf(" AND %s ILIKE $%d", column, len(args))
	}
	addFilter("code", filter.Code)
	addFilter("registration", filter.Registration)
	addFilter("street", filter.Street)
	addFilter("neighborhood", filter.Neighborhood)

	query += " ORDER BY code"
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search properties: %w", err)
	}
	defer rows.Close()

	var results []models.Property
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan property row: %w", err)
		}
		results = append(results, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating property rows: %w", err)
	}
	if results == nil {
		results = []models.Property{}
	}
	return results, nil
}

func insertProperty(ctx context.Context, q database.DBTX, p *models.Property) error {
	query := `
		INSERT INTO properties (
			code, registration, lot_code, street, number, neighborhood,
			complement, postal_code, corporate_name, taxpayer_number, zone,
			lot_area, ideal_fraction, updated_at, file_datetime
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id
	`
	return q.QueryRow(ctx, query,
		p.Code, p.Registration, p.LotCode, p.Street, p.Number, p.Neighborhood,
		p.Complement, p.PostalCode, p.CorporateName, p.TaxpayerNumber, p.Zone,
		p.LotArea, p.IdealFraction, p.UpdatedAt, p.FileDatetime,
	).Scan(&p.ID)
}

func updateProperty(ctx context.Context, q database.DBTX, p *models.Property) error {
	query := `
		UPDATE properties SET
			code = $2,
			registration = $3,
			lot_code = $4,
			street = $5,
			number = $6,
			neighborhood = $7,
			complement = $8,
			postal_code = $9,
			corporate_name = $10,
			taxpayer_number = $11,
			zone = $12,
			lot_area = $13,
			ideal_fraction = $14,
			updated_at = $15,
			file_datetime = $16
		WHERE id = $1
	`
	_, err := q.Exec(ctx, query,
		p.ID, p.Code, p.Registration, p.LotCode, p.Street, p.Number,
		p.Neighborhood, p.Complement, p.PostalCode, p.CorporateName,
		p.TaxpayerNumber, p.Zone, p.LotArea, p.IdealFraction,
		p.UpdatedAt, p.FileDatetime,
	)
	return err
}

func (r *propertyRepository) Create(ctx context.Context, p *models.Property) error {
	if err := insertProperty(ctx, r.db.Pool, p); err != nil {
		return fmt.Errorf("failed to create property code=%q: %w", p.Code, err)
	}
	return nil
}

func (r *propertyRepository) Update(ctx context.Context, p *models.Property) error {
	if err := updateProperty(ctx, r.db.Pool, p); err != nil {
		return fmt.Errorf("failed to update property %d: %w", p.ID, err)
	}
	return nil
}

func (r *propertyRepository) UpdatePostalCode(ctx context.Context, id int64, postalCode string) error {
	query := `UPDATE properties SET postal_code = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.Pool.Exec(ctx, query, id, postalCode, time.Now()); err != nil {
		return fmt.Errorf("failed to update postal code for property %d: %w", id, err)
	}
	return nil
}

func (r *propertyRepository) SharedPostalCode(ctx context.Context, street, number, neighborhood string) (string, error) {
	query := `
		SELECT postal_code
		FROM properties
		WHERE street = $1 AND number = $2 AND neighborhood = $3
			AND length(postal_code) >= 8
		LIMIT 1
	`
	var postalCode string
	err := r.db.Pool.QueryRow(ctx, query, street, number, neighborhood).Scan(&postalCode)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("failed to query shared postal code: %w", err)
	}
	return postalCode, nil
}

// Supersede runs both sides of a key-conflict resolution in one transaction:
// the loser's colliding column is tombstoned first so the survivor's write
// cannot trip the unique constraint.
func (r *propertyRepository) Supersede(ctx context.Context, survivor *models.Property, loserID int64, column KeyColumn, tombstone string) error {
	col := "code"
	if column == KeyRegistration {
		col = "registration"
	}
	err := r.db.InTx(ctx, func(tx pgx.Tx) error {
		query := `UPDATE properties SET ` + col + ` = $2, updated_at = $3 WHERE id = $1`
		if _, err := tx.Exec(ctx, query, loserID, tombstone, time.Now()); err != nil {
			return fmt.Errorf("failed to tombstone property %d: %w", loserID, err)
		}
		if err := updateProperty(ctx, tx, survivor); err != nil {
			return fmt.Errorf("failed to update surviving property %d: %w", survivor.ID, err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("conflict resolution between %d and %d failed: %w", survivor.ID, loserID, err)
	}
	return nil
}
