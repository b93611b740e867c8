package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/itafisc/fiscal-api/internal/dates"
	"github.com/itafisc/fiscal-api/internal/logger"
	"github.com/itafisc/fiscal-api/internal/models"
	"github.com/itafisc/fiscal-api/internal/repository"
)

// Service-level errors
var (
	ErrNoticeNotFound   = errors.New("notice not found")
	ErrPropertyNotFound = errors.New("property not found")
	ErrInvalidPayload   = errors.New("invalid notice payload")
)

// NoticeInput is the full nested payload of a notice write. One write fully
// replaces the child collections: events absent from the payload are deleted,
// along with their fines and appeals.
type NoticeInput struct {
	Document    string
	Address     string
	Description string
	Property    PropertyRef
	OwnerID     int64
	EditorID    int64
	Events      []NoticeEventInput
}

// NoticeEventInput is one notice-event in the payload, with its nested fines
// and appeals. DeadlineDate is never accepted from the client; it is always
// recomputed.
type NoticeEventInput struct {
	Ref                 ChildRef
	Date                time.Time
	Identification      string
	ReportNumber        string
	TypeID              int64
	Deadline            int
	DeadlineWorkingDays bool
	Concluded           bool
	Fines               []NoticeFineInput
	Appeals             []NoticeAppealInput
}

// NoticeFineInput is one fine in the payload.
type NoticeFineInput struct {
	Ref            ChildRef
	Date           time.Time
	Identification string
}

// NoticeAppealInput is one appeal in the payload. A nil EndDate means the
// appeal is still open.
type NoticeAppealInput struct {
	Ref            ChildRef
	StartDate      time.Time
	EndDate        *time.Time
	Identification string
	Extension      int
}

// NoticeEventView is a stored event with its children and derived state.
type NoticeEventView struct {
	Event   models.NoticeEvent
	Fines   []models.NoticeFine
	Appeals []models.NoticeAppeal
	Frozen  bool
}

// NoticeView is a stored notice with its full event graph.
type NoticeView struct {
	Notice models.Notice
	Events []NoticeEventView
}

// NoticeService is the notice reconciliation engine. Create and Update
// accept the full nested payload and synchronize stored state in one
// transaction; Create treats every child as new regardless of supplied ids.
type NoticeService interface {
	Create(ctx context.Context, in NoticeInput) (*NoticeView, error)
	Update(ctx context.Context, id int64, in NoticeInput) (*NoticeView, error)
	Get(ctx context.Context, id int64) (*NoticeView, error)
	List(ctx context.Context, filter repository.NoticeFilter) ([]models.Notice, error)
	Delete(ctx context.Context, id int64) error
	LatestForOwner(ctx context.Context, ownerID int64, propertyID *int64) (*NoticeView, error)
}

// noticeService is the concrete implementation of NoticeService.
type noticeService struct {
	repo       repository.NoticeRepository
	properties repository.PropertyRepository
	log        *logger.Logger
}

// NewNoticeService creates a new instance of NoticeService.
func NewNoticeService(repo repository.NoticeRepository, properties repository.PropertyRepository, log *logger.Logger) NoticeService {
	return &noticeService{
		repo:       repo,
		properties: properties,
		log:        log,
	}
}

// EventDeadline computes an event's deadline date: the event date advanced
// by the requested deadline plus the total extension days contributed by its
// appeals, under the event's business-day rule.
func EventDeadline(in NoticeEventInput) time.Time {
	return dates.AddDays(in.Date, in.Deadline+appealExtensions(in), in.DeadlineWorkingDays)
}

// appealExtensions sums extension days across an event's appeals: each
// appeal contributes its explicit extension plus, when closed, the day count
// between its start and end dates under the event's business-day rule.
func appealExtensions(in NoticeEventInput) int {
	total := 0
	for _, appeal := range in.Appeals {
		total += appeal.Extension
		if appeal.EndDate != nil {
			total += dates.CountDays(appeal.StartDate, *appeal.EndDate, in.DeadlineWorkingDays)
		}
	}
	return total
}

// validate rejects malformed payloads before any persistence happens, so a
// bad nested child can never leave a partial write behind.
func validate(in NoticeInput) error {
	if in.OwnerID == 0 {
		return fmt.Errorf("%w: owner is required", ErrInvalidPayload)
	}
	for i, event := range in.Events {
		if event.Date.IsZero() {
			return fmt.Errorf("%w: event %d is missing a date", ErrInvalidPayload, i)
		}
		if event.TypeID == 0 {
			return fmt.Errorf("%w: event %d is missing a type", ErrInvalidPayload, i)
		}
		if event.Deadline < 0 {
			return fmt.Errorf("%w: event %d has a negative deadline", ErrInvalidPayload, i)
		}
		for j, fine := range event.Fines {
			if fine.Date.IsZero() {
				return fmt.Errorf("%w: fine %d on event %d is missing a date", ErrInvalidPayload, j, i)
			}
		}
		for j, appeal := range event.Appeals {
			if appeal.StartDate.IsZero() {
				return fmt.Errorf("%w: appeal %d on event %d is missing a start date", ErrInvalidPayload, j, i)
			}
			if appeal.Extension < 0 {
				return fmt.Errorf("%w: appeal %d on event %d has a negative extension", ErrInvalidPayload, j, i)
			}
		}
	}
	return nil
}

// resolveProperty turns the payload's PropertyRef into a nullable foreign
// key, resolving the placeholder variant to the reserved row.
func (s *noticeService) resolveProperty(ctx context.Context, ref PropertyRef) (*int64, error) {
	return resolvePropertyRef(ctx, s.properties, ref)
}

func (s *noticeService) Create(ctx context.Context, in NoticeInput) (*NoticeView, error) {
	if err := validate(in); err != nil {
		return nil, err
	}
	propertyID, err := s.resolveProperty(ctx, in.Property)
	if err != nil {
		return nil, err
	}

	notice := models.Notice{
		PropertyID:  propertyID,
		Document:    in.Document,
		Date:        time.Now(),
		Address:     in.Address,
		Description: in.Description,
		OwnerID:     in.OwnerID,
		LastEditor:  in.EditorID,
		UpdatedAt:   time.Now(),
	}

	err = s.repo.InTx(ctx, func(store repository.NoticeStore) error {
		if err := store.CreateNotice(ctx, &notice); err != nil {
			return err
		}
		// Create never attaches to existing rows, even when the client
		// supplied child ids.
		if err := s.reconcileEvents(ctx, store, notice.ID, in.Events, true); err != nil {
			return err
		}
		return refreshNoticeDate(ctx, store, notice.ID)
	})
	if err != nil {
		s.log.Error("Failed to create notice", err, map[string]interface{}{
			"owner": in.OwnerID,
		})
		return nil, err
	}

	s.log.Info("Notice created", map[string]interface{}{
		"notice_id": notice.ID,
		"owner":     in.OwnerID,
		"events":    len(in.Events),
	})

	return s.Get(ctx, notice.ID)
}

func (s *noticeService) Update(ctx context.Context, id int64, in NoticeInput) (*NoticeView, error) {
	if err := validate(in); err != nil {
		return nil, err
	}
	current, err := s.repo.GetNotice(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load notice %d: %w", id, err)
	}
	if current == nil {
		return nil, ErrNoticeNotFound
	}
	propertyID, err := s.resolveProperty(ctx, in.Property)
	if err != nil {
		return nil, err
	}

	notice := *current
	notice.PropertyID = propertyID
	notice.Document = in.Document
	notice.Address = in.Address
	notice.Description = in.Description
	notice.LastEditor = in.EditorID
	notice.UpdatedAt = time.Now()

	err = s.repo.InTx(ctx, func(store repository.NoticeStore) error {
		if err := store.UpdateNotice(ctx, &notice); err != nil {
			return err
		}
		if err := s.reconcileEvents(ctx, store, notice.ID, in.Events, false); err != nil {
			return err
		}
		return refreshNoticeDate(ctx, store, notice.ID)
	})
	if err != nil {
		s.log.Error("Failed to update notice", err, map[string]interface{}{
			"notice_id": id,
		})
		return nil, err
	}

	s.log.Info("Notice updated", map[string]interface{}{
		"notice_id": id,
		"events":    len(in.Events),
	})

	return s.Get(ctx, id)
}

// reconcileEvents synchronizes the stored event set under the notice with
// the incoming list: matched events are updated in place with a freshly
// computed deadline date, unmatched ones are created, and stored events
// absent from the payload are deleted afterwards. Fines and appeals recurse
// with the same identifier-matching rule.
func (s *noticeService) reconcileEvents(ctx context.Context, store repository.NoticeStore, noticeID int64, inputs []NoticeEventInput, forceCreate bool) error {
	stored, err := store.ListEvents(ctx, noticeID)
	if err != nil {
		return err
	}
	existing := make(map[int64]*models.NoticeEvent, len(stored))
	for i := range stored {
		existing[stored[i].ID] = &stored[i]
	}

	keep := make([]int64, 0, len(inputs))
	for _, in := range inputs {
		deadlineDate := EventDeadline(in)

		var event *models.NoticeEvent
		if !forceCreate && in.Ref.IsUpdate() {
			event = existing[in.Ref.ID()]
		}
		if event != nil {
			event.Date = in.Date
			event.Identification = in.Identification
			event.ReportNumber = in.ReportNumber
			event.TypeID = in.TypeID
			event.Deadline = in.Deadline
			event.DeadlineWorkingDays = in.DeadlineWorkingDays
			event.DeadlineDate = deadlineDate
			event.Concluded = in.Concluded
			if err := store.UpdateEvent(ctx, event); err != nil {
				return err
			}
		} else {
			event = &models.NoticeEvent{
				NoticeID:            noticeID,
				TypeID:              in.TypeID,
				Date:                in.Date,
				Identification:      in.Identification,
				ReportNumber:        in.ReportNumber,
				Deadline:            in.Deadline,
				DeadlineWorkingDays: in.DeadlineWorkingDays,
				DeadlineDate:        deadlineDate,
				Concluded:           in.Concluded,
			}
			if err := store.CreateEvent(ctx, event); err != nil {
				return err
			}
		}
		keep = append(keep, event.ID)

		if err := reconcileFines(ctx, store, event.ID, in.Fines, forceCreate); err != nil {
			return err
		}
		if err := reconcileAppeals(ctx, store, event.ID, in.Appeals, forceCreate); err != nil {
			return err
		}
	}

	return store.DeleteEventsExcept(ctx, noticeID, keep)
}

func reconcileFines(ctx context.Context, store repository.NoticeStore, eventID int64, inputs []NoticeFineInput, forceCreate bool) error {
	stored, err := store.ListFines(ctx, eventID)
	if err != nil {
		return err
	}
	existing := make(map[int64]*models.NoticeFine, len(stored))
	for i := range stored {
		existing[stored[i].ID] = &stored[i]
	}

	keep := make([]int64, 0, len(inputs))
	for _, in := range inputs {
		var fine *models.NoticeFine
		if !forceCreate && in.Ref.IsUpdate() {
			fine = existing[in.Ref.ID()]
		}
		if fine != nil {
			fine.Date = in.Date
			fine.Identification = in.Identification
			if err := store.UpdateFine(ctx, fine); err != nil {
				return err
			}
		} else {
			fine = &models.NoticeFine{
				EventID:        eventID,
				Date:           in.Date,
				Identification: in.Identification,
			}
			if err := store.CreateFine(ctx, fine); err != nil {
				return err
			}
		}
		keep = append(keep, fine.ID)
	}

	return store.DeleteFinesExcept(ctx, eventID, keep)
}

func reconcileAppeals(ctx context.Context, store repository.NoticeStore, eventID int64, inputs []NoticeAppealInput, forceCreate bool) error {
	stored, err := store.ListAppeals(ctx, eventID)
	if err != nil {
		return err
	}
	existing := make(map[int64]*models.NoticeAppeal, len(stored))
	for i := range stored {
		existing[stored[i].ID] = &stored[i]
	}

	keep := make([]int64, 0, len(inputs))
	for _, in := range inputs {
		var appeal *models.NoticeAppeal
		if !forceCreate && in.Ref.IsUpdate() {
			appeal = existing[in.Ref.ID()]
		}
		if appeal != nil {
			appeal.StartDate = in.StartDate
			appeal.EndDate = in.EndDate
			appeal.Identification = in.Identification
			appeal.Extension = in.Extension
			if err := store.UpdateAppeal(ctx, appeal); err != nil {
				return err
			}
		} else {
			appeal = &models.NoticeAppeal{
				EventID:        eventID,
				StartDate:      in.StartDate,
				EndDate:        in.EndDate,
				Identification: in.Identification,
				Extension:      in.Extension,
			}
			if err := store.CreateAppeal(ctx, appeal); err != nil {
				return err
			}
		}
		keep = append(keep, appeal.ID)
	}

	return store.DeleteAppealsExcept(ctx, eventID, keep)
}

// refreshNoticeDate re-derives the notice's representative date as the
// earliest date among its surviving events. A notice with no events keeps
// its current date.
func refreshNoticeDate(ctx context.Context, store repository.NoticeStore, noticeID int64) error {
	earliest, err := store.EarliestEventDate(ctx, noticeID)
	if err != nil {
		return err
	}
	if earliest == nil {
		return nil
	}
	return store.SetNoticeDate(ctx, noticeID, *earliest)
}

func (s *noticeService) Get(ctx context.Context, id int64) (*NoticeView, error) {
	notice, err := s.repo.GetNotice(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load notice %d: %w", id, err)
	}
	if notice == nil {
		return nil, ErrNoticeNotFound
	}
	return s.buildView(ctx, notice)
}

func (s *noticeService) buildView(ctx context.Context, notice *models.Notice) (*NoticeView, error) {
	events, err := s.repo.ListEvents(ctx, notice.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load events for notice %d: %w", notice.ID, err)
	}

	view := &NoticeView{Notice: *notice, Events: make([]NoticeEventView, 0, len(events))}
	for i := range events {
		fines, err := s.repo.ListFines(ctx, events[i].ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load fines for event %d: %w", events[i].ID, err)
		}
		appeals, err := s.repo.ListAppeals(ctx, events[i].ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load appeals for event %d: %w", events[i].ID, err)
		}
		view.Events = append(view.Events, NoticeEventView{
			Event:   events[i],
			Fines:   fines,
			Appeals: appeals,
			Frozen:  events[i].IsFrozen(appeals),
		})
	}
	return view, nil
}

func (s *noticeService) List(ctx context.Context, filter repository.NoticeFilter) ([]models.Notice, error) {
	notices, err := s.repo.ListNotices(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list notices: %w", err)
	}
	return notices, nil
}

func (s *noticeService) Delete(ctx context.Context, id int64) error {
	notice, err := s.repo.GetNotice(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load notice %d: %w", id, err)
	}
	if notice == nil {
		return ErrNoticeNotFound
	}
	if err := s.repo.DeleteNotice(ctx, id); err != nil {
		return err
	}
	s.log.Info("Notice deleted", map[string]interface{}{
		"notice_id": id,
	})
	return nil
}

func (s *noticeService) LatestForOwner(ctx context.Context, ownerID int64, propertyID *int64) (*NoticeView, error) {
	notice, err := s.repo.LatestForOwner(ctx, ownerID, propertyID)
	if err != nil {
		return nil, err
	}
	if notice == nil {
		return nil, ErrNoticeNotFound
	}
	return s.buildView(ctx, notice)
}
