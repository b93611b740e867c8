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

var ErrSurveyNotFound = errors.New("survey not found")

// SurveyInput is the payload of a survey write. Surveys are single-level:
// there is no nested reconciliation here.
type SurveyInput struct {
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

// SurveyService manages property inspection records.
type SurveyService interface {
	Create(ctx context.Context, in SurveyInput) (*models.SurveyEvent, error)
	Update(ctx context.Context, id int64, in SurveyInput) (*models.SurveyEvent, error)
	Get(ctx context.Context, id int64) (*models.SurveyEvent, error)
	List(ctx context.Context, filter repository.SurveyFilter) ([]models.SurveyEvent, error)
	Delete(ctx context.Context, id int64) error
}

type surveyService struct {
	repo       repository.SurveyRepository
	properties repository.PropertyRepository
	log        *logger.Logger
}

// NewSurveyService creates a new instance of SurveyService.
func NewSurveyService(repo repository.SurveyRepository, properties repository.PropertyRepository, log *logger.Logger) SurveyService {
	return &surveyService{repo: repo, properties: properties, log: log}
}

func (in SurveyInput) validate() error {
	if in.OwnerID == 0 {
		return fmt.Errorf("%w: owner is required", ErrInvalidPayload)
	}
	if in.TypeID == 0 {
		return fmt.Errorf("%w: survey type is required", ErrInvalidPayload)
	}
	if in.Date.IsZero() {
		return fmt.Errorf("%w: date is required", ErrInvalidPayload)
	}
	return nil
}

func resolvePropertyRef(ctx context.Context, properties repository.PropertyRepository, ref PropertyRef) (*int64, error) {
	switch ref.kind {
	case propertyRefNone:
		return nil, nil
	case propertyRefPlaceholder:
		placeholder, err := properties.FindByCode(ctx, models.PlaceholderNone)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve placeholder property: %w", err)
		}
		if placeholder == nil {
			return nil, fmt.Errorf("%w: placeholder row %s is not seeded", ErrPropertyNotFound, models.PlaceholderNone)
		}
		return &placeholder.ID, nil
	default:
		p, err := properties.FindByID(ctx, ref.id)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve property %d: %w", ref.id, err)
		}
		if p == nil {
			return nil, fmt.Errorf("%w: id %d", ErrPropertyNotFound, ref.id)
		}
		return &p.ID, nil
	}
}

func (s *surveyService) Create(ctx context.Context, in SurveyInput) (*models.SurveyEvent, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	propertyID, err := resolvePropertyRef(ctx, s.properties, in.Property)
	if err != nil {
		return nil, err
	}
	event := &models.SurveyEvent{
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
	s.log.Info("Survey created", map[string]interface{}{
		"survey_id": event.ID,
		"owner":     in.OwnerID,
	})
	return event, nil
}

func (s *surveyService) Update(ctx context.Context, id int64, in SurveyInput) (*models.SurveyEvent, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, ErrSurveyNotFound
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

func (s *surveyService) Get(ctx context.Context, id int64) (*models.SurveyEvent, error) {
	event, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, ErrSurveyNotFound
	}
	return event, nil
}

func (s *surveyService) List(ctx context.Context, filter repository.SurveyFilter) ([]models.SurveyEvent, error) {
	return s.repo.List(ctx, filter)
}

func (s *surveyService) Delete(ctx context.Context, id int64) error {
	event, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if event == nil {
		return ErrSurveyNotFound
	}
	return s.repo.Delete(ctx, id)
}
