package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	apierrors "github.com/itafisc/fiscal-api/internal/errors"
	"github.com/itafisc/fiscal-api/internal/services"
)

// ReferenceHandler serves the event type tables and the generated stylesheet.
type ReferenceHandler struct {
	service services.ReferenceService
}

// NewReferenceHandler creates a new ReferenceHandler instance.
func NewReferenceHandler(service services.ReferenceService) *ReferenceHandler {
	return &ReferenceHandler{
		service: service,
	}
}

// NoticeEventTypes handles GET /api/v1/notice-event-types.
func (h *ReferenceHandler) NoticeEventTypes(c *gin.Context) {
	types, err := h.service.NoticeEventTypes(c.Request.Context())
	if err != nil {
		apierrors.InternalServerError(c, "Failed to list notice event types", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"types": types, "count": len(types)})
}

// SurveyEventTypes handles GET /api/v1/survey-event-types.
func (h *ReferenceHandler) SurveyEventTypes(c *gin.Context) {
	types, err := h.service.SurveyEventTypes(c.Request.Context())
	if err != nil {
		apierrors.InternalServerError(c, "Failed to list survey event types", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"types": types, "count": len(types)})
}

// ReportEventTypes handles GET /api/v1/report-event-types.
func (h *ReferenceHandler) ReportEventTypes(c *gin.Context) {
	types, err := h.service.ReportEventTypes(c.Request.Context())
	if err != nil {
		apierrors.InternalServerError(c, "Failed to list report event types", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"types": types, "count": len(types)})
}

// Stylesheet handles GET /api/v1/styles.css. Event type colors live in the
// database, so the stylesheet is rendered per request.
func (h *ReferenceHandler) Stylesheet(c *gin.Context) {
	css, err := h.service.Stylesheet(c.Request.Context())
	if err != nil {
		apierrors.InternalServerError(c, "Failed to build stylesheet", err)
		return
	}
	c.Data(http.StatusOK, "text/css; charset=utf-8", []byte(css))
}
