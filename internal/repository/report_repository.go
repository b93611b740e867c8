package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/itafisc/fiscal-api/internal/database"
	"github.com/itafisc/fiscal-api/internal/models"
	"github.com/jackc/pgx/v5"
)

// ReportFilter narrows report listings. Zero values are ignored.
type ReportFilter struct {
	OwnerID    int64
	PropertyID int64
	TypeID     int64
	Limit      int
	Offset     int
}

// ReportRepository defines the interface for report event data access.
type ReportRepository interface {
	Get(ctx context.Context, id int64) (*models.ReportEvent, error)
	List(ctx context.Context, filter ReportFilter) ([]models.ReportEvent, error)
	Create(ctx context.Context, e *models.ReportEvent) error
	Update(ctx context.Context, e *models.ReportEvent) error
	Delete(ctx context.Context, id int64) error
}

type reportRepository struct {
	db *database.Database
}

// NewReportRepository creates a new instance of ReportRepository.
func NewReportRepository(db *database.Database) ReportRepository {
	return &reportRepository{db: db}
}

const reportColumns = `
	id,
	property_id,
	type_id,
	document,
	identification,
	date,
	address,
	description,
	concluded,
	owner_id,
	last_editor
`

func scanReport(row pgx.Row) (*models.ReportEvent, error) {
	var e models.ReportEvent
	err := row.Scan(
		&e.ID,
		&e.PropertyID,
		&e.TypeID,
		&e.Document,
		&e.Identification,
		&e.Date,
		&e.Address,
		&e.Description,
		&e.Concluded,
		&e.OwnerID,
		&e.LastEditor,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &e, nil
}

func (r *reportRepository) Get(ctx context.Context, id int64) (*models.ReportEvent, error) {
	query := `SELECT ` + reportColumns + ` FROM report_events WHERE id = $1`
	e, err := scanReport(r.db.Pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to query report event %d: %w", id, err)
	}
	return e, nil
}

func (r *reportRepository) List(ctx context.Context, filter ReportFilter) ([]models.ReportEvent, error) {
	query := `SELECT ` + reportColumns + ` FROM report_events WHERE 1=1`
	args := []any{}

	if filter.OwnerID != 0 {
		args = append(args, filter.OwnerID)
		query += fmt.Sprintf(" AND owner_id = $%d", len(args))
	}
	if filter.PropertyID != 0 {
		args = append(args, filter.PropertyID)
		query += fmt.Sprintf(" AND property_id = $%d", len(args))
	}
	if filter.TypeID != 0 {
		args = append(args, filter.TypeID)
		query += fmt.Sprintf(" AND type_id = $%d", len(args))
	}

	query += " ORDER BY date, type_id, id"
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
		return nil, fmt.Errorf("failed to list report events: %w", err)
	}
	defer rows.Close()

	var results []models.ReportEvent
	for rows.Next() {
		e, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report event row: %w", err)
		}
		results = append(results, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating report event rows: %w", err)
	}
	if results == nil {
		results = []models.ReportEvent{}
	}
	return results, nil
}

func (r *reportRepository) Create(ctx context.Context, e *models.ReportEvent) error {
	query := `
		INSERT INTO report_events (
			property_id, type_id, document, identification, date,
			address, description, concluded, owner_id, last_editor
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`
	err := r.db.Pool.QueryRow(ctx, query,
		e.PropertyID, e.TypeID, e.Document, e.Identification, e.Date,
		e.Address, e.Description, e.Concluded, e.OwnerID, e.LastEditor,
	).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("failed to create report event: %w", err)
	}
	return nil
}

func (r *reportRepository) Update(ctx context.Context, e *models.ReportEvent) error {
	query := `
		UPDATE report_events SET
			property_id = $2,
			type_id = $3,
			document = $4,
			identification = $5,
			date = $6,
			address = $7,
			description = $8,
			concluded = $9,
			last_editor = $10
		WHERE id = $1
	`
	_, err := r.db.Pool.Exec(ctx, query,
		e.ID, e.PropertyID, e.TypeID, e.Document, e.Identification, e.Date,
		e.Address, e.Description, e.Concluded, e.LastEditor,
	)
	if err != nil {
		return fmt.Errorf("failed to update report event %d: %w", e.ID, err)
	}
	return nil
}

func (r *reportRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.Pool.Exec(ctx, `DELETE FROM report_events WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete report event %d: %w", id, err)
	}
	return nil
}
