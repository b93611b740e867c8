package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/itafisc/fiscal-api/internal/database"
	"github.com/itafisc/fiscal-api/internal/models"
	"github.com/jackc/pgx/v5"
)

// ImportLogRepository persists the per-run progress row of the property
// import job. One row is created per run and updated in place; Latest returns
// the newest row for polling clients (nil, nil when no run ever happened).
type ImportLogRepository interface {
	Create(ctx context.Context, log *models.ImportLog) error
	Update(ctx context.Context, log *models.ImportLog) error
	Latest(ctx context.Context) (*models.ImportLog, error)
}

type importLogRepository struct {
	db *database.Database
}

// NewImportLogRepository creates a new instance of ImportLogRepository.
func NewImportLogRepository(db *database.Database) ImportLogRepository {
	return &importLogRepository{db: db}
}

func (r *importLogRepository) Create(ctx context.Context, log *models.ImportLog) error {
	query := `
		INSERT INTO import_logs (
			started_at, updated_at, state, status, total,
			unchanged, updated, new, failed, progress, response
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`
	err := r.db.Pool.QueryRow(ctx, query,
		log.StartedAt, log.UpdatedAt, log.State, log.Status, log.Total,
		log.Unchanged, log.Updated, log.New, log.Failed, log.Progress, log.Response,
	).Scan(&log.ID)
	if err != nil {
		return fmt.Errorf("failed to create import log: %w", err)
	}
	return nil
}

func (r *importLogRepository) Update(ctx context.Context, log *models.ImportLog) error {
	query := `
		UPDATE import_logs SET
			updated_at = $2,
			state = $3,
			status = $4,
			total = $5,
			unchanged = $6,
			updated = $7,
			new = $8,
			failed = $9,
			progress = $10,
			response = $11
		WHERE id = $1
	`
	_, err := r.db.Pool.Exec(ctx, query,
		log.ID, log.UpdatedAt, log.State, log.Status, log.Total,
		log.Unchanged, log.Updated, log.New, log.Failed, log.Progress, log.Response,
	)
	if err != nil {
		return fmt.Errorf("failed to update import log %d: %w", log.ID, err)
	}
	return nil
}

func (r *importLogRepository) Latest(ctx context.Context) (*models.ImportLog, error) {
	query := `
		SELECT id, started_at, updated_at, state, status, total,
			unchanged, updated, new, failed, progress, response
		FROM import_logs
		ORDER BY updated_at DESC
		LIMIT 1
	`
	var log models.ImportLog
	err := r.db.Pool.QueryRow(ctx, query).Scan(
		&log.ID, &log.StartedAt, &log.UpdatedAt, &log.State, &log.Status, &log.Total,
		&log.Unchanged, &log.Updated, &log.New, &log.Failed, &log.Progress, &log.Response,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query latest import log: %w", err)
	}
	return &log, nil
}
