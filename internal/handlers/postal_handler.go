package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	apierrors "github.com/itafisc/fiscal-api/internal/errors"
	"github.com/itafisc/fiscal-api/internal/services"
)

// PostalHandler handles postal code lookup HTTP requests.
type PostalHandler struct {
	service services.PostalService
}

// NewPostalHandler creates a new PostalHandler instance.
func NewPostalHandler(service services.PostalService) *PostalHandler {
	return &PostalHandler{
		service: service,
	}
}

// PostalLookupRequest represents the query parameters for a postal lookup.
type PostalLookupRequest struct {
	Street string `form:"street" binding:"required"`
	Number string `form:"number"`
}

// Lookup handles GET /api/v1/postal-codes. It proxies the external lookup
// for a street within the configured municipality.
func (h *PostalHandler) Lookup(c *gin.Context) {
	var req PostalLookupRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		apierrors.BadRequest(c, "A street is required", nil)
		return
	}
	result, err := h.service.Lookup(c.Request.Context(), req.Street, req.Number)
	if err != nil {
		apierrors.InternalServerError(c, "Postal lookup failed", err)
		return
	}
	c.JSON(http.StatusOK, result)
}
