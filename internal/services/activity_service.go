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

var (
	ErrActivityNotFound = errors.New("activity not found")
	// ErrActivityExists is returned when an owner already logged an entry
	// for the requested date.
	ErrActivityExists = errors.New("an activity already exists for this date")
)

// ActivityInput is the payload of a daily activity write.
type ActivityInput struct {
	Date        time.Time
	Description string
	OwnerID     int64
}

// ActivityService manages the per-owner daily activity log.
type ActivityService interface {
	Create(ctx context.Context, in ActivityInput) (*models.Activity, error)
	Update(ctx context.Context, id int64, in ActivityInput) (*models.Activity, error)
	Get(ctx context.Context, id int64) (*models.Activity, error)
	List(ctx context.Context, ownerID int64, from, to *time.Time) ([]models.Activity, error)
	Delete(ctx context.Context, id int64) error
}

type activityService struct {
	repo repository.ActivityRepository
	log  *logger.Logger
}

// NewActivityService creates a new instance of ActivityService.
func NewActivityService(repo repository.ActivityRepository, log *logger.Logger) ActivityService {
	return &activityService{repo: repo, log: log}
}

func (in ActivityInput) validate() error {
	if in.OwnerID == 0 {
		return fmt.Errorf("%w: owner is required", ErrInvalidPayload)
	}
	if in.Date.IsZero() {
		return fmt.Errorf("%w: date is required", ErrInvalidPayload)
	}
	return nil
}

func (s *activityService) Create(ctx context.Context, in ActivityInput) (*models.Activity, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	activity := &models.Activity{
		Date:        in.Date,
		Description: in.Description,
		OwnerID:     in.OwnerID,
	}
	if err := s.repo.Create(ctx, activity); err != nil {
		if errors.Is(err, repository.ErrDuplicateActivity) {
			return nil, ErrActivityExists
		}
		return nil, err
	}
	return activity, nil
}

func (s *activityService) Update(ctx context.Context, id int64, in ActivityInput) (*models.Activity, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, ErrActivityNotFound
	}
	activity := *current
	activity.Date = in.Date
	activity.Description = in.Description
	activity.OwnerID = in.OwnerID
	if err := s.repo.Update(ctx, &activity); err != nil {
		if errors.Is(err, repository.ErrDuplicateActivity) {
			return nil, ErrActivityExists
		}
		return nil, err
	}
	return &activity, nil
}

func (s *activityService) Get(ctx context.Context, id int64) (*models.Activity, error) {
	activity, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if activity == nil {
		return nil, ErrActivityNotFound
	}
	return activity, nil
}

func (s *activityService) List(ctx context.Context, ownerID int64, from, to *time.Time) ([]models.Activity, error) {
	return s.repo.List(ctx, ownerID, from, to)
}

func (s *activityService) Delete(ctx context.Context, id int64) error {
	activity, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if activity == nil {
		return ErrActivityNotFound
	}
	return s.repo.Delete(ctx, id)
}
