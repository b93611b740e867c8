package services

import (
	"context"
	"sync"
	"time"

	"github.com/itafisc/fiscal-api/internal/models"
	"github.com/itafisc/fiscal-api/internal/repository"
)

// memPropertyRepo is an in-memory PropertyRepository. The import engine and
// the reference resolution paths run against it without a database.
type memPropertyRepo struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]*models.Property
}

func newMemPropertyRepo() *memPropertyRepo {
	return &memPropertyRepo{byID: make(map[int64]*models.Property)}
}

func (r *memPropertyRepo) FindByID(_ context.Context, id int64) (*models.Property, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.byID[id]; ok {
		copied := *p
		return &copied, nil
	}
	return nil, nil
}

func (r *memPropertyRepo) findBy(match func(*models.Property) bool) *models.Property {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.byID {
		if match(p) {
			copied := *p
			return &copied
		}
	}
	return nil
}

func (r *memPropertyRepo) FindByCode(_ context.Context, code string) (*models.Property, error) {
	return r.findBy(func(p *models.Property) bool { return p.Code == code }), nil
}

func (r *memPropertyRepo) FindByRegistration(_ context.Context, registration string) (*models.Property, error) {
	return r.findBy(func(p *models.Property) bool { return p.Registration == registration }), nil
}

func (r *memPropertyRepo) Search(_ context.Context, _ repository.PropertyFilter) ([]models.Property, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Property, 0, len(r.byID))
	for _, p := range r.byID {
		out = append(out, *p)
	}
	return out, nil
}

func (r *memPropertyRepo) Create(_ context.Context, p *models.Property) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	p.ID = r.nextID
	copied := *p
	r.byID[p.ID] = &copied
	return nil
}

func (r *memPropertyRepo) Update(_ context.Context, p *models.Property) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *p
	r.byID[p.ID] = &copied
	return nil
}

func (r *memPropertyRepo) UpdatePostalCode(_ context.Context, id int64, postalCode string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.byID[id]; ok {
		p.PostalCode = postalCode
	}
	return nil
}

func (r *memPropertyRepo) SharedPostalCode(_ context.Context, street, number, neighborhood string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.byID {
		if p.Street == street && p.Number == number && p.Neighborhood == neighborhood && len(p.PostalCode) >= 8 {
			return p.PostalCode, nil
		}
	}
	return "", nil
}

func (r *memPropertyRepo) Supersede(_ context.Context, survivor *models.Property, loserID int64, column repository.KeyColumn, tombstone string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if loser, ok := r.byID[loserID]; ok {
		if column == repository.KeyRegistration {
			loser.Registration = tombstone
		} else {
			loser.Code = tombstone
		}
		loser.UpdatedAt = time.Now()
	}
	copied := *survivor
	r.byID[survivor.ID] = &copied
	return nil
}

// memImportLogs is an in-memory ImportLogRepository.
type memImportLogs struct {
	mu     sync.Mutex
	nextID int64
	logs   map[int64]*models.ImportLog
}

func newMemImportLogs() *memImportLogs {
	return &memImportLogs{logs: make(map[int64]*models.ImportLog)}
}

func (r *memImportLogs) Create(_ context.Context, log *models.ImportLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	log.ID = r.nextID
	copied := *log
	r.logs[log.ID] = &copied
	return nil
}

func (r *memImportLogs) Update(_ context.Context, log *models.ImportLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *log
	r.logs[log.ID] = &copied
	return nil
}

func (r *memImportLogs) Latest(_ context.Context) (*models.ImportLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *models.ImportLog
	for _, log := range r.logs {
		if latest == nil || log.UpdatedAt.After(latest.UpdatedAt) || log.ID > latest.ID {
			latest = log
		}
	}
	if latest == nil {
		return nil, nil
	}
	copied := *latest
	return &copied, nil
}

// stubEnricher records postal enrichment calls.
type stubEnricher struct {
	mu    sync.Mutex
	calls []int64
}

func (s *stubEnricher) Enrich(_ context.Context, p *models.Property) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, p.ID)
}

// fakeNoticeStore is an in-memory NoticeStore plus the repository reads the
// notice service needs.
type fakeNoticeStore struct {
	mu      sync.Mutex
	nextID  int64
	notices map[int64]*models.Notice
	events  map[int64]*models.NoticeEvent
	fines   map[int64]*models.NoticeFine
	appeals map[int64]*models.NoticeAppeal
}

func newFakeNoticeStore() *fakeNoticeStore {
	return &fakeNoticeStore{
		notices: make(map[int64]*models.Notice),
		events:  make(map[int64]*models.NoticeEvent),
		fines:   make(map[int64]*models.NoticeFine),
		appeals: make(map[int64]*models.NoticeAppeal),
	}
}

func (s *fakeNoticeStore) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *fakeNoticeStore) CreateNotice(_ context.Context, n *models.Notice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n.ID = s.id()
	copied := *n
	s.notices[n.ID] = &copied
	return nil
}

func (s *fakeNoticeStore) UpdateNotice(_ context.Context, n *models.Notice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *n
	s.notices[n.ID] = &copied
	return nil
}

func (s *fakeNoticeStore) SetNoticeDate(_ context.Context, noticeID int64, date time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n, ok := s.notices[noticeID]; ok {
		n.Date = date
	}
	return nil
}

func (s *fakeNoticeStore) EarliestEventDate(_ context.Context, noticeID int64) (*time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var earliest *time.Time
	for _, e := range s.events {
		if e.NoticeID != noticeID {
			continue
		}
		if earliest == nil || e.Date.Before(*earliest) {
			d := e.Date
			earliest = &d
		}
	}
	return earliest, nil
}

func (s *fakeNoticeStore) ListEvents(_ context.Context, noticeID int64) ([]models.NoticeEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.NoticeEvent
	for _, e := range s.events {
		if e.NoticeID == noticeID {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (s *fakeNoticeStore) CreateEvent(_ context.Context, e *models.NoticeEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = s.id()
	copied := *e
	s.events[e.ID] = &copied
	return nil
}

func (s *fakeNoticeStore) UpdateEvent(_ context.Context, e *models.NoticeEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *e
	s.events[e.ID] = &copied
	return nil
}

func (s *fakeNoticeStore) DeleteEventsExcept(_ context.Context, noticeID int64, keep []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	keepSet := make(map[int64]bool, len(keep))
	for _, id := range keep {
		keepSet[id] = true
	}
	for id, e := range s.events {
		if e.NoticeID == noticeID && !keepSet[id] {
			delete(s.events, id)
			for fid, f := range s.fines {
				if f.EventID == id {
					delete(s.fines, fid)
				}
			}
			for aid, a := range s.appeals {
				if a.EventID == id {
					delete(s.appeals, aid)
				}
			}
		}
	}
	return nil
}

func (s *fakeNoticeStore) ListFines(_ context.Context, eventID int64) ([]models.NoticeFine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.NoticeFine
	for _, f := range s.fines {
		if f.EventID == eventID {
			out = append(out, *f)
		}
	}
	return out, nil
}

func (s *fakeNoticeStore) CreateFine(_ context.Context, f *models.NoticeFine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f.ID = s.id()
	copied := *f
	s.fines[f.ID] = &copied
	return nil
}

func (s *fakeNoticeStore) UpdateFine(_ context.Context, f *models.NoticeFine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *f
	s.fines[f.ID] = &copied
	return nil
}

func (s *fakeNoticeStore) DeleteFinesExcept(_ context.Context, eventID int64, keep []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	keepSet := make(map[int64]bool, len(keep))
	for _, id := range keep {
		keepSet[id] = true
	}
	for id, f := range s.fines {
		if f.EventID == eventID && !keepSet[id] {
			delete(s.fines, id)
		}
	}
	return nil
}

func (s *fakeNoticeStore) ListAppeals(_ context.Context, eventID int64) ([]models.NoticeAppeal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.NoticeAppeal
	for _, a := range s.appeals {
		if a.EventID == eventID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (s *fakeNoticeStore) CreateAppeal(_ context.Context, a *models.NoticeAppeal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.ID = s.id()
	copied := *a
	s.appeals[a.ID] = &copied
	return nil
}

func (s *fakeNoticeStore) UpdateAppeal(_ context.Context, a *models.NoticeAppeal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *a
	s.appeals[a.ID] = &copied
	return nil
}

func (s *fakeNoticeStore) DeleteAppealsExcept(_ context.Context, eventID int64, keep []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	keepSet := make(map[int64]bool, len(keep))
	for _, id := range keep {
		keepSet[id] = true
	}
	for id, a := range s.appeals {
		if a.EventID == eventID && !keepSet[id] {
			delete(s.appeals, id)
		}
	}
	return nil
}

// fakeNoticeRepo wraps a fakeNoticeStore as a NoticeRepository.
type fakeNoticeRepo struct {
	store *fakeNoticeStore
}

func newFakeNoticeRepo() *fakeNoticeRepo {
	return &fakeNoticeRepo{store: newFakeNoticeStore()}
}

func (r *fakeNoticeRepo) InTx(_ context.Context, fn func(store repository.NoticeStore) error) error {
	return fn(r.store)
}

func (r *fakeNoticeRepo) GetNotice(_ context.Context, id int64) (*models.Notice, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if n, ok := r.store.notices[id]; ok {
		copied := *n
		return &copied, nil
	}
	return nil, nil
}

func (r *fakeNoticeRepo) ListNotices(_ context.Context, filter repository.NoticeFilter) ([]models.Notice, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []models.Notice
	for _, n := range r.store.notices {
		if filter.OwnerID != 0 && n.OwnerID != filter.OwnerID {
			continue
		}
		out = append(out, *n)
	}
	return out, nil
}

func (r *fakeNoticeRepo) LatestForOwner(ctx context.Context, ownerID int64, propertyID *int64) (*models.Notice, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var latest *models.Notice
	for _, n := range r.store.notices {
		if n.OwnerID != ownerID {
			continue
		}
		if propertyID != nil && (n.PropertyID == nil || *n.PropertyID != *propertyID) {
			continue
		}
		if latest == nil || n.Date.After(latest.Date) {
			latest = n
		}
	}
	if latest == nil {
		return nil, nil
	}
	copied := *latest
	return &copied, nil
}

func (r *fakeNoticeRepo) DeleteNotice(_ context.Context, id int64) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	delete(r.store.notices, id)
	return nil
}

func (r *fakeNoticeRepo) ListEvents(ctx context.Context, noticeID int64) ([]models.NoticeEvent, error) {
	return r.store.ListEvents(ctx, noticeID)
}

func (r *fakeNoticeRepo) ListFines(ctx context.Context, eventID int64) ([]models.NoticeFine, error) {
	return r.store.ListFines(ctx, eventID)
}

func (r *fakeNoticeRepo) ListAppeals(ctx context.Context, eventID int64) ([]models.NoticeAppeal, error) {
	return r.store.ListAppeals(ctx, eventID)
}
