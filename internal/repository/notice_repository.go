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

// NoticeFilter narrows notice listings. Zero values are ignored.
type NoticeFilter struct {
	OwnerID    int64
	PropertyID int64
	Document   string
	Limit      int
	Offset     int
}

// NoticeStore is the transactional surface of the notice reconciliation
// engine. Every method runs inside the transaction opened by
// NoticeRepository.InTx, so a failed reconciliation leaves no partial writes.
type NoticeStore interface {
	CreateNotice(ctx context.Context, n *models.Notice) error
	UpdateNotice(ctx context.Context, n *models.Notice) error
	SetNoticeDate(ctx context.Context, noticeID int64, date time.Time) error
	EarliestEventDate(ctx context.Context, noticeID int64) (*time.Time, error)

	ListEvents(ctx context.Context, noticeID int64) ([]models.NoticeEvent, error)
	CreateEvent(ctx context.Context, e *models.NoticeEvent) error
	UpdateEvent(ctx context.Context, e *models.NoticeEvent) error
	DeleteEventsExcept(ctx context.Context, noticeID int64, keep []int64) error

	ListFines(ctx context.Context, eventID int64) ([]models.NoticeFine, error)
	CreateFine(ctx context.Context, f *models.NoticeFine) error
	UpdateFine(ctx context.Context, f *models.NoticeFine) error
	DeleteFinesExcept(ctx context.Context, eventID int64, keep []int64) error

	ListAppeals(ctx context.Context, eventID int64) ([]models.NoticeAppeal, error)
	CreateAppeal(ctx context.Context, a *models.NoticeAppeal) error
	UpdateAppeal(ctx context.Context, a *models.NoticeAppeal) error
	DeleteAppealsExcept(ctx context.Context, eventID int64, keep []int64) error
}

// NoticeRepository defines the interface for notice data access. Reads run
// against the pool; writes go through InTx so one API write is one
// transaction.
type NoticeRepository interface {
	InTx(ctx context.Context, fn func(store NoticeStore) error) error

	GetNotice(ctx context.Context, id int64) (*models.Notice, error)
	ListNotices(ctx context.Context, filter NoticeFilter) ([]models.Notice, error)
	LatestForOwner(ctx context.Context, ownerID int64, propertyID *int64) (*models.Notice, error)
	DeleteNotice(ctx context.Context, id int64) error

	ListEvents(ctx context.Context, noticeID int64) ([]models.NoticeEvent, error)
	ListFines(ctx context.Context, eventID int64) ([]models.NoticeFine, error)
	ListAppeals(ctx context.Context, eventID int64) ([]models.NoticeAppeal, error)
}

// noticeRepository is the concrete implementation of NoticeRepository.
type noticeRepository struct {
	db *database.Database
}

// NewNoticeRepository creates a new instance of NoticeRepository.
func NewNoticeRepository(db *database.Database) NoticeRepository {
	return &noticeRepository{db: db}
}

// noticeStore implements NoticeStore over a DBTX (the pool for plain reads,
// a pgx.Tx inside InTx).
type noticeStore struct {
	q database.DBTX
}

func (r *noticeRepository) InTx(ctx context.Context, fn func(store NoticeStore) error) error {
	return r.db.InTx(ctx, func(tx pgx.Tx) error {
		return fn(&noticeStore{q: tx})
	})
}

const noticeColumns = `
	id,
	property_id,
	document,
	date,
	address,
	description,
	owner_id,
	last_editor,
	updated_at
`

func scanNotice(row pgx.Row) (*models.Notice, error) {
	var n models.Notice
	err := row.Scan(
		&n.ID,
		&n.PropertyID,
		&n.Document,
		&n.Date,
		&n.Address,
		&n.Description,
		&n.OwnerID,
		&n.LastEditor,
		&n.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &n, nil
}

func (r *noticeRepository) GetNotice(ctx context.Context, id int64) (*models.Notice, error) {
	query := `SELECT ` + noticeColumns + ` FROM notices WHERE id = $1`
	n, err := scanNotice(r.db.Pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to query notice %d: %w", id, err)
	}
	return n, nil
}

func (r *noticeRepository) ListNotices(ctx context.Context, filter NoticeFilter) ([]models.Notice, error) {
	query := `SELECT ` + noticeColumns + ` FROM notices WHERE 1=1`
	args := []any{}

	if filter.OwnerID != 0 {
		args = append(args, filter.OwnerID)
		query += fmt.Sprintf(" AND owner_id = $%d", len(args))
	}
	if filter.PropertyID != 0 {
		args = append(args, filter.PropertyID)
		query += fmt.Sprintf(" AND property_id = $%d", len(args))
	}
	if filter.Document != "" {
		args = append(args, "%"+filter.Document+"%")
		query += fmt.Sprintf(" AND document ILIKE $%d", len(args))
	}

	query += " ORDER BY date, id"
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
		return nil, fmt.Errorf("failed to list notices: %w", err)
	}
	defer rows.Close()

	var results []models.Notice
	for rows.Next() {
		n, err := scanNotice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notice row: %w", err)
		}
		results = append(results, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notice rows: %w", err)
	}
	if results == nil {
		results = []models.Notice{}
	}
	return results, nil
}

// LatestForOwner returns the owner's notice with the most recent event date,
// optionally restricted to one property.
func (r *noticeRepository) LatestForOwner(ctx context.Context, ownerID int64, propertyID *int64) (*models.Notice, error) {
	query := `
		SELECT ` + noticeColumns + `
		FROM notices
		WHERE owner_id = $1
			AND ($2::bigint IS NULL OR property_id = $2)
		ORDER BY (
			SELECT max(e.date) FROM notice_events e WHERE e.notice_id = notices.id
		) DESC NULLS LAST
		LIMIT 1
	`
	n, err := scanNotice(r.db.Pool.QueryRow(ctx, query, ownerID, propertyID))
	if err != nil {
		return nil, fmt.Errorf("failed to query latest notice for owner %d: %w", ownerID, err)
	}
	return n, nil
}

// DeleteNotice removes the notice; events, fines and appeals cascade.
func (r *noticeRepository) DeleteNotice(ctx context.Context, id int64) error {
	if _, err := r.db.Pool.Exec(ctx, `DELETE FROM notices WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete notice %d: %w", id, err)
	}
	return nil
}

func (r *noticeRepository) ListEvents(ctx context.Context, noticeID int64) ([]models.NoticeEvent, error) {
	return (&noticeStore{q: r.db.Pool}).ListEvents(ctx, noticeID)
}

func (r *noticeRepository) ListFines(ctx context.Context, eventID int64) ([]models.NoticeFine, error) {
	return (&noticeStore{q: r.db.Pool}).ListFines(ctx, eventID)
}

func (r *noticeRepository) ListAppeals(ctx context.Context, eventID int64) ([]models.NoticeAppeal, error) {
	return (&noticeStore{q: r.db.Pool}).ListAppeals(ctx, eventID)
}

func (s *noticeStore) CreateNotice(ctx context.Context, n *models.Notice) error {
	query := `
		INSERT INTO notices (
			property_id, document, date, address, description,
			owner_id, last_editor, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	err := s.q.QueryRow(ctx, query,
		n.PropertyID, n.Document, n.Date, n.Address, n.Description,
		n.OwnerID, n.LastEditor, n.UpdatedAt,
	).Scan(&n.ID)
	if err != nil {
		return fmt.Errorf("failed to create notice: %w", err)
	}
	return nil
}

func (s *noticeStore) UpdateNotice(ctx context.Context, n *models.Notice) error {
	query := `
		UPDATE notices SET
			property_id = $2,
			document = $3,
			date = $4,
			address = $5,
			description = $6,
			last_editor = $7,
			updated_at = $8
		WHERE id = $1
	`
	_, err := s.q.Exec(ctx, query,
		n.ID, n.PropertyID, n.Document, n.Date, n.Address, n.Description,
		n.LastEditor, n.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update notice %d: %w", n.ID, err)
	}
	return nil
}

func (s *noticeStore) SetNoticeDate(ctx context.Context, noticeID int64, date time.Time) error {
	if _, err := s.q.Exec(ctx, `UPDATE notices SET date = $2 WHERE id = $1`, noticeID, date); err != nil {
		return fmt.Errorf("failed to set date on notice %d: %w", noticeID, err)
	}
	return nil
}

// EarliestEventDate returns the minimum event date under the notice, or nil
// when the notice has no events.
func (s *noticeStore) EarliestEventDate(ctx context.Context, noticeID int64) (*time.Time, error) {
	var earliest *time.Time
	query := `SELECT min(date) FROM notice_events WHERE notice_id = $1`
	if err := s.q.QueryRow(ctx, query, noticeID).Scan(&earliest); err != nil {
		return nil, fmt.Errorf("failed to query earliest event date for notice %d: %w", noticeID, err)
	}
	return earliest, nil
}

const eventColumns = `
	id,
	notice_id,
	type_id,
	date,
	identification,
	report_number,
	deadline,
	deadline_working_days,
	deadline_date,
	concluded
`

func (s *noticeStore) ListEvents(ctx context.Context, noticeID int64) ([]models.NoticeEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM notice_events WHERE notice_id = $1 ORDER BY type_id, id`
	rows, err := s.q.Query(ctx, query, noticeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list events for notice %d: %w", noticeID, err)
	}
	defer rows.Close()

	var results []models.NoticeEvent
	for rows.Next() {
		var e models.NoticeEvent
		err := rows.Scan(
			&e.ID,
			&e.NoticeID,
			&e.TypeID,
			&e.Date,
			&e.Identification,
			&e.ReportNumber,
			&e.Deadline,
			&e.DeadlineWorkingDays,
			&e.DeadlineDate,
			&e.Concluded,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}
		results = append(results, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating event rows: %w", err)
	}
	if results == nil {
		results = []models.NoticeEvent{}
	}
	return results, nil
}

func (s *noticeStore) CreateEvent(ctx context.Context, e *models.NoticeEvent) error {
	query := `
		INSERT INTO notice_events (
			notice_id, type_id, date, identification, report_number,
			deadline, deadline_working_days, deadline_date, concluded
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`
	err := s.q.QueryRow(ctx, query,
		e.NoticeID, e.TypeID, e.Date, e.Identification, e.ReportNumber,
		e.Deadline, e.DeadlineWorkingDays, e.DeadlineDate, e.Concluded,
	).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("failed to create event on notice %d: %w", e.NoticeID, err)
	}
	return nil
}

func (s *noticeStore) UpdateEvent(ctx context.Context, e *models.NoticeEvent) error {
	query := `
		UPDATE notice_events SET
			type_id = $2,
			date = $3,
			identification = $4,
			report_number = $5,
			deadline = $6,
			deadline_working_days = $7,
			deadline_date = $8,
			concluded = $9
		WHERE id = $1
	`
	_, err := s.q.Exec(ctx, query,
		e.ID, e.TypeID, e.Date, e.Identification, e.ReportNumber,
		e.Deadline, e.DeadlineWorkingDays, e.DeadlineDate, e.Concluded,
	)
	if err != nil {
		return fmt.Errorf("failed to update event %d: %w", e.ID, err)
	}
	return nil
}

// DeleteEventsExcept removes every event under the notice whose id is not in
// keep. Fines and appeals cascade. An empty keep list removes all events.
func (s *noticeStore) DeleteEventsExcept(ctx context.Context, noticeID int64, keep []int64) error {
	if keep == nil {
		keep = []int64{}
	}
	query := `DELETE FROM notice_events WHERE notice_id = $1 AND id <> ALL($2)`
	if _, err := s.q.Exec(ctx, query, noticeID, keep); err != nil {
		return fmt.Errorf("failed to delete stale events on notice %d: %w", noticeID, err)
	}
	return nil
}

func (s *noticeStore) ListFines(ctx context.Context, eventID int64) ([]models.NoticeFine, error) {
	query := `SELECT id, event_id, identification, date FROM notice_fines WHERE event_id = $1 ORDER BY date, id`
	rows, err := s.q.Query(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list fines for event %d: %w", eventID, err)
	}
	defer rows.Close()

	var results []models.NoticeFine
	for rows.Next() {
		var f models.NoticeFine
		if err := rows.Scan(&f.ID, &f.EventID, &f.Identification, &f.Date); err != nil {
			return nil, fmt.Errorf("failed to scan fine row: %w", err)
		}
		results = append(results, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating fine rows: %w", err)
	}
	if results == nil {
		results = []models.NoticeFine{}
	}
	return results, nil
}

func (s *noticeStore) CreateFine(ctx context.Context, f *models.NoticeFine) error {
	query := `
		INSERT INTO notice_fines (event_id, identification, date)
		VALUES ($1, $2, $3)
		RETURNING id
	`
	if err := s.q.QueryRow(ctx, query, f.EventID, f.Identification, f.Date).Scan(&f.ID); err != nil {
		return fmt.Errorf("failed to create fine on event %d: %w", f.EventID, err)
	}
	return nil
}

func (s *noticeStore) UpdateFine(ctx context.Context, f *models.NoticeFine) error {
	query := `UPDATE notice_fines SET identification = $2, date = $3 WHERE id = $1`
	if _, err := s.q.Exec(ctx, query, f.ID, f.Identification, f.Date); err != nil {
		return fmt.Errorf("failed to update fine %d: %w", f.ID, err)
	}
	return nil
}

func (s *noticeStore) DeleteFinesExcept(ctx context.Context, eventID int64, keep []int64) error {
	if keep == nil {
		keep = []int64{}
	}
	query := `DELETE FROM notice_fines WHERE event_id = $1 AND id <> ALL($2)`
	if _, err := s.q.Exec(ctx, query, eventID, keep); err != nil {
		return fmt.Errorf("failed to delete stale fines on event %d: %w", eventID, err)
	}
	return nil
}

func (s *noticeStore) ListAppeals(ctx context.Context, eventID int64) ([]models.NoticeAppeal, error) {
	query := `
		SELECT id, event_id, identification, start_date, end_date, extension
		FROM notice_appeals
		WHERE event_id = $1
		ORDER BY start_date, id
	`
	rows, err := s.q.Query(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list appeals for event %d: %w", eventID, err)
	}
	defer rows.Close()

	var results []models.NoticeAppeal
	for rows.Next() {
		var a models.NoticeAppeal
		if err := rows.Scan(&a.ID, &a.EventID, &a.Identification, &a.StartDate, &a.EndDate, &a.Extension); err != nil {
			return nil, fmt.Errorf("failed to scan appeal row: %w", err)
		}
		results = append(results, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating appeal rows: %w", err)
	}
	if results == nil {
		results = []models.NoticeAppeal{}
	}
	return results, nil
}

func (s *noticeStore) CreateAppeal(ctx context.Context, a *models.NoticeAppeal) error {
	query := `
		INSERT INTO notice_appeals (event_id, identification, start_date, end_date, extension)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	err := s.q.QueryRow(ctx, query, a.EventID, a.Identification, a.StartDate, a.EndDate, a.Extension).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("failed to create appeal on event %d: %w", a.EventID, err)
	}
	return nil
}

func (s *noticeStore) UpdateAppeal(ctx context.Context, a *models.NoticeAppeal) error {
	query := `
		UPDATE notice_appeals SET
			identification = $2,
			start_date = $3,
			end_date = $4,
			extension = $5
		WHERE id = $1
	`
	if _, err := s.q.Exec(ctx, query, a.ID, a.Identification, a.StartDate, a.EndDate, a.Extension); err != nil {
		return fmt.Errorf("failed to update appeal %d: %w", a.ID, err)
	}
	return nil
}

func (s *noticeStore) DeleteAppealsExcept(ctx context.Context, eventID int64, keep []int64) error {
	if keep == nil {
		keep = []int64{}
	}
	query := `DELETE FROM notice_appeals WHERE event_id = $1 AND id <> ALL($2)`
	if _, err := s.q.Exec(ctx, query, eventID, keep); err != nil {
		return fmt.Errorf("failed to delete stale appeals on event %d: %w", eventID, err)
	}
	return nil
}
