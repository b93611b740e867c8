package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	apierrors "github.com/itafisc/fiscal-api/internal/errors"
	"github.com/itafisc/fiscal-api/internal/models"
	"github.com/itafisc/fiscal-api/internal/repository"
	"github.com/itafisc/fiscal-api/internal/services"
)

// PropertyHandler handles property registry HTTP requests. The registry is
// read-only over HTTP; writes happen through the import job.
type PropertyHandler struct {
	service services.PropertyService
}

// NewPropertyHandler creates a new PropertyHandler instance.
func NewPropertyHandler(service services.PropertyService) *PropertyHandler {
	return &PropertyHandler{
		service: service,
	}
}

// PropertySearchRequest represents the query parameters for property search.
type PropertySearchRequest struct {
	Code         string `form:"code"`
	Registration string `form:"registration"`
	Street       string `form:"street"`
	Neighborhood string `form:"neighborhood"`
	Limit        int    `form:"limit" binding:"omitempty,min=1,max=500"`
	Offset       int    `form:"offset" binding:"omitempty,min=0"`
}

// PropertyResponse represents the property data in the API response.
type PropertyResponse struct {
	ID             int64    `json:"id"`
	Code           string   `json:"ccu"`
	Registration   string   `json:"inscricao"`
	LotCode        string   `json:"lot_code,omitempty"`
	Street         string   `json:"street"`
	Number         string   `json:"number"`
	Neighborhood   string   `json:"neighborhood"`
	Complement     string   `json:"complement,omitempty"`
	PostalCode     string   `json:"cep,omitempty"`
	CorporateName  string   `json:"corporate_name,omitempty"`
	TaxpayerNumber string   `json:"taxpayer_number,omitempty"`
	Zone           string   `json:"zone,omitempty"`
	LotArea        *float64 `json:"lot_area,omitempty"`
	IdealFraction  *float64 `json:"ideal_fraction,omitempty"`
	Name           string   `json:"name"`
}

func mapPropertyToDTO(p *models.Property) PropertyResponse {
	return PropertyResponse{
		ID:             p.ID,
		Code:           p.Code,
		Registration:   p.Registration,
		LotCode:        p.LotCode,
		Street:         p.Street,
		Number:         p.Number,
		Neighborhood:   p.Neighborhood,
		Complement:     p.Complement,
		PostalCode:     p.PostalCode,
		CorporateName:  p.CorporateName,
		TaxpayerNumber: p.TaxpayerNumber,
		Zone:           p.Zone,
		LotArea:        p.LotArea,
		IdealFraction:  p.IdealFraction,
		Name:           p.NameString(),
	}
}

// Search handles GET /api/v1/properties.
func (h *PropertyHandler) Search(c *gin.Context) {
	var req PropertySearchRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		apierrors.BadRequest(c, "Invalid query parameters", nil)
		return
	}
	properties, err := h.service.Search(c.Request.Context(), repository.PropertyFilter{
		Code:         req.Code,
		Registration: req.Registration,
		Street:       req.Street,
		Neighborhood: req.Neighborhood,
		Limit:        req.Limit,
		Offset:       req.Offset,
	})
	if err != nil {
		apierrors.InternalServerError(c, "Failed to search properties", err)
		return
	}
	out := make([]PropertyResponse, 0, len(properties))
	for i := range properties {
		out = append(out, mapPropertyToDTO(&properties[i]))
	}
	c.JSON(http.StatusOK, gin.H{
		"properties": out,
		"count":      len(out),
	})
}

// Get handles GET /api/v1/properties/:id.
func (h *PropertyHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	p, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrPropertyNotFound) {
			apierrors.NotFound(c, "Property not found")
			return
		}
		apierrors.InternalServerError(c, "Failed to load property", err)
		return
	}
	c.JSON(http.StatusOK, mapPropertyToDTO(p))
}

// GetByCode handles GET /api/v1/properties/by-code/:code.
func (h *PropertyHandler) GetByCode(c *gin.Context) {
	code := c.Param("code")
	if code == "" {
		apierrors.BadRequest(c, "A property code is required", nil)
		return
	}
	p, err := h.service.GetByCode(c.Request.Context(), code)
	if err != nil {
		if errors.Is(err, services.ErrPropertyNotFound) {
			apierrors.NotFound(c, "Property not found")
			return
		}
		apierrors.InternalServerError(c, "Failed to load property", err)
		return
	}
	c.JSON(http.StatusOK, mapPropertyToDTO(p))
}
