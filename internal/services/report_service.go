package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/itafisc/fiscal-api/internal/logger"
	"github.com/itafisc/fiscal-api/internal/models"
	"github.com/itafisc/fiscal-api/internal/repository"
)

var ErrReportNotFound = errors.New("report not found")

// ReportInput is the payload of a report write, the single-level sibling of
// SurveyInput.
type ReportInput struct {
	Date           time.Time
	Document       string
	Identification string
	Address        string
	Description    string
	Property       PropertyRef
	TypeID         int64
	OwnerID        int64
	EditorID       int64
	Concluded      bool
}

// ReportService manages property report records.
type ReportService interface {
	Create(ctx context.Context, in ReportInput) (*models.ReportEvent, error)
	Update(ctx context.Context, id int64, in ReportInput) (*models.ReportEvent, error)
	Get(ctx context.Context, id int64) (*models.ReportEvent, error)
	List(ctx context.Context, filter repository.ReportFilter) ([]models.ReportEvent, error)
	Delete(ctx context.Context, id int64) error
}

type reportService struct {
	repo       repository.ReportRepository
	properties repository.PropertyRepository
	log        *logger.Logger
}

// NewReportService creates a new instance of ReportService.
func NewReportService(repo repository.ReportRepository, properties repository.PropertyRepository, log *logger.Logger) ReportService {
	return &reportService{repo: repo, properties: properties, log: log}
}

func (in ReportInput) validate() error {
	if in.OwnerID == 0 {
		return fmt.Errorf("%w: owner is required", ErrInvalidPayload)
	}
	if in.TypeID == 0 {
		return fmt.Errorf("%w: report type is required", ErrInvalidPayload)
	}
	if in.Date.IsZero() {
		return fmt.Errorf("%w: date is required", ErrInvalidPayload)
	}
	return nil
}

func (s *reportService) Create(ctx context.Context, in ReportInput) (*models.ReportEvent, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	propertyID, err := resolvePropertyRef(ctx, s.properties, in.Property)
	if err != nil {
		return nil, err
	}
	event := &models.ReportEvent{
		Date:           in.Date,
		Document:       in.Document,
		Identification: in.Identification,
		Address:        in.Address,
		Description:    in.Description,
		PropertyID:     propertyID,
		TypeID:         in.TypeID,
		OwnerID:        in.OwnerID,
		LastEditor:     in.EditorID,
		Concluded:      in.Concluded,
	}
	if err := s.repo.Create(ctx, event); err != nil {
		return nil, err
	}
	s.log.Info("Report created", map[string]interface{}{
		"report_id": event.ID,
		"owner":     in.OwnerID,
	})
	return event, nil
}

func (s *reportService) Update(ctx context.Context, id int64, in ReportInput) (*models.ReportEvent, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, ErrReportNotFound
	}
	propertyID, err := resolvePropertyRef(ctx, s.properties, in.Property)
	if err != nil {
		return nil, err
	}
	event := *current
	event.Date = in.Date
	event.Document = in.Document
	event.Identification = in.Identification
	event.Address = in.Address
	event.Description = in.Description
	event.PropertyID = propertyID
	event.TypeID = in.TypeID
	event.OwnerID = in.OwnerID
	event.LastEditor = in.EditorID
	event.Concluded = in.Concluded
	if err := s.repo.Update(ctx, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

func (s *reportService) Get(ctx context.Context, id int64) (*models.ReportEvent, error) {
	event, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, ErrReportNotFound
	}
	return event, nil
}

func (s *reportService) List(ctx context.Context, filter repository.ReportFilter) ([]models.ReportEvent, error) {
	return s.repo.List(ctx, filter)
}

func (s *reportService) Delete(ctx context.Context, id int64) error {
	event, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if event == nil {
		return ErrReportNotFound
	}
	return s.repo.Delete(ctx, id)
}
