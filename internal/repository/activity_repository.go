package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/itafisc/fiscal-api/internal/database"
	"github.com/itafisc/fiscal-api/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrDuplicateActivity is returned when an owner already has an activity
// entry for the given date (unique constraint on owner+date).
var ErrDuplicateActivity = errors.New("activity already exists for this date")

// ActivityRepository defines the interface for daily activity log access.
type ActivityRepository interface {
	Get(ctx context.Context, id int64) (*models.Activity, error)
	List(ctx context.Context, ownerID int64, from, to *time.Time) ([]models.Activity, error)
	Create(ctx context.Context, a *models.Activity) error
	Update(ctx context.Context, a *models.Activity) error
	Delete(ctx context.Context, id int64) error
}

type activityRepository struct {
	db *database.Database
}

// NewActivityRepository creates a new instance of ActivityRepository.
func NewActivityRepository(db *database.Database) ActivityRepository {
	return &activityRepository{db: db}
}

func (r *activityRepository) Get(ctx context.Context, id int64) (*models.Activity, error) {
	query := `SELECT id, date, description, owner_id FROM activities WHERE id = $1`
	var a models.Activity
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(&a.ID, &a.Date, &a.Description, &a.OwnerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query activity %d: %w", id, err)
	}
	return &a, nil
}

func (r *activityRepository) List(ctx context.Context, ownerID int64, from, to *time.Time) ([]models.Activity, error) {
	query := `
		SELECT id, date, description, owner_id
		FROM activities
		WHERE owner_id = $1
			AND ($2::date IS NULL OR date >= $2)
			AND ($3::date IS NULL OR date <= $3)
		ORDER BY date, id
	`
	rows, err := r.db.Pool.Query(ctx, query, ownerID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list activities for owner %d: %w", ownerID, err)
	}
	defer rows.Close()

	var results []models.Activity
	for rows.Next() {
		var a models.Activity
		if err := rows.Scan(&a.ID, &a.Date, &a.Description, &a.OwnerID); err != nil {
			return nil, fmt.Errorf("failed to scan activity row: %w", err)
		}
		results = append(results, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating activity rows: %w", err)
	}
	if results == nil {
		results = []models.Activity{}
	}
	return results, nil
}

func (r *activityRepository) Create(ctx context.Context, a *models.Activity) error {
	query := `INSERT INTO activities (date, description, owner_id) VALUES ($1, $2, $3) RETURNING id`
	err := r.db.Pool.QueryRow(ctx, query, a.Date, a.Description, a.OwnerID).Scan(&a.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateActivity
		}
		return fmt.Errorf("failed to create activity: %w", err)
	}
	return nil
}

func (r *activityRepository) Update(ctx context.Context, a *models.Activity) error {
	query := `UPDATE activities SET date = $2, description = $3 WHERE id = $1`
	if _, err := r.db.Pool.Exec(ctx, query, a.ID, a.Date, a.Description); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateActivity
		}
		return fmt.Errorf("failed to update activity %d: %w", a.ID, err)
	}
	return nil
}

func (r *activityRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.Pool.Exec(ctx, `DELETE FROM activities WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete activity %d: %w", id, err)
	}
	return nil
}

// isUniqueViolation reports whether err is a PostgreSQL unique constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
