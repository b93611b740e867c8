package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/itafisc/fiscal-api/internal/database"
	"github.com/itafisc/fiscal-api/internal/models"
	"github.com/jackc/pgx/v5"
)

// EventTypeRepository reads the administrator-maintained reference tables.
// The reconciliation engine consults notice event types for deadline
// defaults; the CRUD peers use the survey/report tables.
// Get methods return nil, nil when no row matches.
type EventTypeRepository interface {
	ListNoticeEventTypes(ctx context.Context) ([]models.NoticeEventType, error)
	GetNoticeEventType(ctx context.Context, id int64) (*models.NoticeEventType, error)

	ListSurveyEventTypes(ctx context.Context) ([]models.SurveyEventType, error)
	GetSurveyEventType(ctx context.Context, id int64) (*models.SurveyEventType, error)

	ListReportEventTypes(ctx context.Context) ([]models.ReportEventType, error)
	GetReportEventType(ctx context.Context, id int64) (*models.ReportEventType, error)
}

type eventTypeRepository struct {
	db *database.Database
}

// NewEventTypeRepository creates a new instance of EventTypeRepository.
func NewEventTypeRepository(db *database.Database) EventTypeRepository {
	return &eventTypeRepository{db: db}
}

const noticeEventTypeColumns = `
	id,
	"order",
	name,
	short_name,
	default_deadline,
	default_deadline_working_days,
	default_concluded,
	css_color,
	show_concluded,
	show_report_number,
	show_deadline,
	show_fine,
	show_start
`

func scanNoticeEventType(row pgx.Row) (*models.NoticeEventType, error) {
	var t models.NoticeEventType
	err := row.Scan(
		&t.ID,
		&t.Order,
		&t.Name,
		&t.ShortName,
		&t.DefaultDeadline,
		&t.DefaultDeadlineWorkingDays,
		&t.DefaultConcluded,
		&t.CSSColor,
		&t.ShowConcluded,
		&t.ShowReportNumber,
		&t.ShowDeadline,
		&t.ShowFine,
		&t.ShowStart,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

func (r *eventTypeRepository) ListNoticeEventTypes(ctx context.Context) ([]models.NoticeEventType, error) {
	query := `SELECT ` + noticeEventTypeColumns + ` FROM notice_event_types ORDER BY "order"`
	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list notice event types: %w", err)
	}
	defer rows.Close()

	var results []models.NoticeEventType
	for rows.Next() {
		t, err := scanNoticeEventType(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notice event type row: %w", err)
		}
		results = append(results, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notice event type rows: %w", err)
	}
	if results == nil {
		results = []models.NoticeEventType{}
	}
	return results, nil
}

func (r *eventTypeRepository) GetNoticeEventType(ctx context.Context, id int64) (*models.NoticeEventType, error) {
	query := `SELECT ` + noticeEventTypeColumns + ` FROM notice_event_types WHERE id = $1`
	t, err := scanNoticeEventType(r.db.Pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to query notice event type %d: %w", id, err)
	}
	return t, nil
}

func (r *eventTypeRepository) ListSurveyEventTypes(ctx context.Context) ([]models.SurveyEventType, error) {
	query := `SELECT id, "order", name, short_name, css_color FROM survey_event_types ORDER BY "order"`
	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list survey event types: %w", err)
	}
	defer rows.Close()

	var results []models.SurveyEventType
	for rows.Next() {
		var t models.SurveyEventType
		if err := rows.Scan(&t.ID, &t.Order, &t.Name, &t.ShortName, &t.CSSColor); err != nil {
			return nil, fmt.Errorf("failed to scan survey event type row: %w", err)
		}
		results = append(results, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating survey event type rows: %w", err)
	}
	if results == nil {
		results = []models.SurveyEventType{}
	}
	return results, nil
}

func (r *eventTypeRepository) GetSurveyEventType(ctx context.Context, id int64) (*models.SurveyEventType, error) {
	query := `SELECT id, "order", name, short_name, css_color FROM survey_event_types WHERE id = $1`
	var t models.SurveyEventType
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(&t.ID, &t.Order, &t.Name, &t.ShortName, &t.CSSColor)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query survey event type %d: %w", id, err)
	}
	return &t, nil
}

func (r *eventTypeRepository) ListReportEventTypes(ctx context.Context) ([]models.ReportEventType, error) {
	query := `SELECT id, "order", name, short_name, css_color FROM report_event_types ORDER BY "order"`
	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list report event types: %w", err)
	}
	defer rows.Close()

	var results []models.ReportEventType
	for rows.Next() {
		var t models.ReportEventType
		if err := rows.Scan(&t.ID, &t.Order, &t.Name, &t.ShortName, &t.CSSColor); err != nil {
			return nil, fmt.Errorf("failed to scan report event type row: %w", err)
		}
		results = append(results, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating report event type rows: %w", err)
	}
	if results == nil {
		results = []models.ReportEventType{}
	}
	return results, nil
}

func (r *eventTypeRepository) GetReportEventType(ctx context.Context, id int64) (*models.ReportEventType, error) {
	query := `SELECT id, "order", name, short_name, css_color FROM report_event_types WHERE id = $1`
	var t models.ReportEventType
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(&t.ID, &t.Order, &t.Name, &t.ShortName, &t.CSSColor)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query report event type %d: %w", id, err)
	}
	return &t, nil
}
