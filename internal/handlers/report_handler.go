package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/itafisc/fiscal-api/internal/dates"
	apierrors "github.com/itafisc/fiscal-api/internal/errors"
	"github.com/itafisc/fiscal-api/internal/models"
	"github.com/itafisc/fiscal-api/internal/repository"
	"github.com/itafisc/fiscal-api/internal/services"
)

// ReportHandler handles report HTTP requests.
type ReportHandler struct {
	service services.ReportService
}

// NewReportHandler creates a new ReportHandler instance.
func NewReportHandler(service services.ReportService) *ReportHandler {
	return &ReportHandler{
		service: service,
	}
}

// ReportRequest is the write payload for a report.
type ReportRequest struct {
	Date           string `json:"date" binding:"required"`
	Document       string `json:"document"`
	Identification string `json:"identification"`
	Address        string `json:"address"`
	Description    string `json:"description"`
	PropertyID     *int64 `json:"imovel_id"`
	TypeID         int64  `json:"report_event_type" binding:"required"`
	OwnerID        int64  `json:"owner" binding:"required"`
	EditorID       int64  `json:"last_user_to_update"`
	Concluded      bool   `json:"concluded"`
}

// ReportResponse is a stored report.
type ReportResponse struct {
	ID             int64  `json:"id"`
	Date           string `json:"date"`
	Document       string `json:"document"`
	Identification string `json:"identification"`
	Address        string `json:"address"`
	Description    string `json:"description"`
	PropertyID     *int64 `json:"imovel_id"`
	TypeID         int64  `json:"report_event_type"`
	OwnerID        int64  `json:"owner"`
	EditorID       int64  `json:"last_user_to_update"`
	Concluded      bool   `json:"concluded"`
}

func (r *ReportRequest) toInput() (services.ReportInput, error) {
	date, err := dates.Parse(r.Date)
	if err != nil {
		return services.ReportInput{}, err
	}
	return services.ReportInput{
		Date:           date,
		Document:       r.Document,
		Identification: r.Identification,
		Address:        r.Address,
		Description:    r.Description,
		Property:       propertyRefFrom(r.PropertyID),
		TypeID:         r.TypeID,
		OwnerID:        r.OwnerID,
		EditorID:       r.EditorID,
		Concluded:      r.Concluded,
	}, nil
}

func mapReportToDTO(e *models.ReportEvent) ReportResponse {
	return ReportResponse{
		ID:             e.ID,
		Date:           dates.Format(e.Date),
		Document:       e.Document,
		Identification: e.Identification,
		Address:        e.Address,
		Description:    e.Description,
		PropertyID:     e.PropertyID,
		TypeID:         e.TypeID,
		OwnerID:        e.OwnerID,
		EditorID:       e.LastEditor,
		Concluded:      e.Concluded,
	}
}

// Create handles POST /api/v1/reports.
func (h *ReportHandler) Create(c *gin.Context) {
	var req ReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid report payload", nil)
		return
	}
	in, err := req.toInput()
	if err != nil {
		apierrors.BadRequest(c, err.Error(), nil)
		return
	}
	event, err := h.service.Create(c.Request.Context(), in)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, mapReportToDTO(event))
}

// Update handles PUT /api/v1/reports/:id.
func (h *ReportHandler) Update(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req ReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid report payload", nil)
		return
	}
	in, err := req.toInput()
	if err != nil {
		apierrors.BadRequest(c, err.Error(), nil)
		return
	}
	event, err := h.service.Update(c.Request.Context(), id, in)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, mapReportToDTO(event))
}

// Get handles GET /api/v1/reports/:id.
func (h *ReportHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	event, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, mapReportToDTO(event))
}

// ReportListRequest represents the query parameters for report listing.
type ReportListRequest struct {
	OwnerID    int64 `form:"owner"`
	PropertyID int64 `form:"imovel_id"`
	TypeID     int64 `form:"report_event_type"`
	Limit      int   `form:"limit"`
	Offset     int   `form:"offset"`
}

// List handles GET /api/v1/reports.
func (h *ReportHandler) List(c *gin.Context) {
	var req ReportListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		apierrors.BadRequest(c, "Invalid query parameters", nil)
		return
	}
	events, err := h.service.List(c.Request.Context(), repository.ReportFilter{
		OwnerID:    req.OwnerID,
		PropertyID: req.PropertyID,
		TypeID:     req.TypeID,
		Limit:      req.Limit,
		Offset:     req.Offset,
	})
	if err != nil {
		apierrors.InternalServerError(c, "Failed to list reports", err)
		return
	}
	out := make([]ReportResponse, 0, len(events))
	for i := range events {
		out = append(out, mapReportToDTO(&events[i]))
	}
	c.JSON(http.StatusOK, gin.H{
		"reports": out,
		"count":   len(out),
	})
}

// Delete handles DELETE /api/v1/reports/:id.
func (h *ReportHandler) Delete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ReportHandler) writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrReportNotFound):
		apierrors.NotFound(c, "Report not found")
	case errors.Is(err, services.ErrPropertyNotFound):
		apierrors.BadRequest(c, err.Error(), nil)
	case errors.Is(err, services.ErrInvalidPayload):
		apierrors.BadRequest(c, err.Error(), nil)
	default:
		apierrors.InternalServerError(c, "Failed to process report", err)
	}
}
