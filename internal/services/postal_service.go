package services

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/itafisc/fiscal-api/internal/config"
	"github.com/itafisc/fiscal-api/internal/logger"
	"github.com/itafisc/fiscal-api/internal/models"
	"github.com/itafisc/fiscal-api/internal/normalize"
	"github.com/itafisc/fiscal-api/internal/repository"
)

// PostalCandidate is one address candidate returned by the postal lookup
// collaborator.
type PostalCandidate struct {
	PostalCode   string `json:"cep"`
	Street       string `json:"logradouroDNEC"`
	Neighborhood string `json:"bairro"`
	City         string `json:"localidade"`
	State        string `json:"uf"`
}

// PostalLookupResult is the collaborator's response envelope.
type PostalLookupResult struct {
	Total      int               `json:"total"`
	Candidates []PostalCandidate `json:"dados"`
}

// PostalService resolves postal codes for property addresses. Enrich is
// best-effort and never fails its caller; Lookup is the raw query surface.
type PostalService interface {
	Enrich(ctx context.Context, p *models.Property)
	Lookup(ctx context.Context, street, number string) (*PostalLookupResult, error)
}

type postalService struct {
	client     *resty.Client
	properties repository.PropertyRepository
	cfg        config.PostalConfig
	log        *logger.Logger
}

// NewPostalService creates a new instance of PostalService.
func NewPostalService(properties repository.PropertyRepository, cfg config.PostalConfig, log *logger.Logger) PostalService {
	client := resty.New().
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond)
	return &postalService{
		client:     client,
		properties: properties,
		cfg:        cfg,
		log:        log,
	}
}

// Enrich fills in a property's postal code when it is missing. Another stored
// property at the same address is preferred over the external call; any
// failure along the way is logged and swallowed.
func (s *postalService) Enrich(ctx context.Context, p *models.Property) {
	if p.HasPostalCode() {
		return
	}

	shared, err := s.properties.SharedPostalCode(ctx, p.Street, p.Number, p.Neighborhood)
	if err != nil {
		s.log.Warn("shared postal code lookup failed", map[string]interface{}{
			"property_id": p.ID,
			"error":       err.Error(),
		})
	}
	if shared != "" {
		s.setPostalCode(ctx, p, shared)
		return
	}

	result, err := s.Lookup(ctx, p.Street, p.Number)
	if err != nil {
		s.log.Warn("postal code lookup failed", map[string]interface{}{
			"property_id": p.ID,
			"street":      p.Street,
			"error":       err.Error(),
		})
		return
	}

	code := s.pickCandidate(result, p.Neighborhood)
	if code == "" {
		s.log.Debug("no unambiguous postal code candidate", map[string]interface{}{
			"property_id": p.ID,
			"street":      p.Street,
			"candidates":  result.Total,
		})
		return
	}
	s.setPostalCode(ctx, p, code)
}

func (s *postalService) setPostalCode(ctx context.Context, p *models.Property, code string) {
	if err := s.properties.UpdatePostalCode(ctx, p.ID, code); err != nil {
		s.log.Error("failed to store postal code", err, map[string]interface{}{
			"property_id": p.ID,
		})
		return
	}
	p.PostalCode = code
}

// pickCandidate takes the single candidate when the lookup is already exact,
// otherwise narrows by neighborhood and takes a unique survivor. Anything
// still ambiguous yields nothing.
func (s *postalService) pickCandidate(result *PostalLookupResult, neighborhood string) string {
	if result.Total == 1 && len(result.Candidates) == 1 {
		return result.Candidates[0].PostalCode
	}
	var matched []PostalCandidate
	for _, c := range result.Candidates {
		if normalize.SameNeighborhood(c.Neighborhood, neighborhood) {
			matched = append(matched, c)
		}
	}
	if len(matched) == 1 {
		return matched[0].PostalCode
	}
	return ""
}

// Lookup queries the external postal service for a street and number within
// the configured municipality.
func (s *postalService) Lookup(ctx context.Context, street, number string) (*PostalLookupResult, error) {
	var result PostalLookupResult
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"uf":               s.cfg.State,
			"localidade":       s.cfg.City,
			"logradouro":       normalize.Street(street),
			"numeroLogradouro": normalize.StreetNumber(number),
			"tipoCEP":          "ALL",
		}).
		SetResult(&result).
		Get(s.cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("postal lookup request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("postal lookup returned status %d", resp.StatusCode())
	}
	return &result, nil
}
