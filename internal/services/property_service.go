package services

import (
	"context"
	"fmt"

	"github.com/itafisc/fiscal-api/internal/logger"
	"github.com/itafisc/fiscal-api/internal/models"
	"github.com/itafisc/fiscal-api/internal/repository"
)

// PropertyService is the read surface over the imported property registry.
// Properties are only written by the import job, never through the API.
type PropertyService interface {
	Get(ctx context.Context, id int64) (*models.Property, error)
	GetByCode(ctx context.Context, code string) (*models.Property, error)
	GetByRegistration(ctx context.Context, registration string) (*models.Property, error)
	Search(ctx context.Context, filter repository.PropertyFilter) ([]models.Property, error)
}

type propertyService struct {
	repo repository.PropertyRepository
	log  *logger.Logger
}

// NewPropertyService creates a new instance of PropertyService.
func NewPropertyService(repo repository.PropertyRepository, log *logger.Logger) PropertyService {
	return &propertyService{repo: repo, log: log}
}

func (s *propertyService) Get(ctx context.Context, id int64) (*models.Property, error) {
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: id %d", ErrPropertyNotFound, id)
	}
	return p, nil
}

func (s *propertyService) GetByCode(ctx context.Context, code string) (*models.Property, error) {
	p, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: code %q", ErrPropertyNotFound, code)
	}
	return p, nil
}

func (s *propertyService) GetByRegistration(ctx context.Context, registration string) (*models.Property, error) {
	p, err := s.repo.FindByRegistration(ctx, registration)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: registration %q", ErrPropertyNotFound, registration)
	}
	return p, nil
}

func (s *propertyService) Search(ctx context.Context, filter repository.PropertyFilter) ([]models.Property, error) {
	return s.repo.Search(ctx, filter)
}
