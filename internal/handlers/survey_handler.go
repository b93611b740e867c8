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

// SurveyHandler handles survey HTTP requests.
type SurveyHandler struct {
	service services.SurveyService
}

// NewSurveyHandler creates a new SurveyHandler instance.
func NewSurveyHandler(service services.SurveyService) *SurveyHandler {
	return &SurveyHandler{
		service: service,
	}
}

// SurveyRequest is the write payload for a survey.
type SurveyRequest struct {
	Date           string `json:"date" binding:"required"`
	Document       string `json:"document"`
	Identification string `json:"identification"`
	Address        string `json:"address"`
	Description    string `json:"description"`
	PropertyID     *int64 `json:"imovel_id"`
	TypeID         int64  `json:"survey_event_type" binding:"required"`
	OwnerID        int64  `json:"owner" binding:"required"`
	EditorID       int64  `json:"last_user_to_update"`
	Concluded      bool   `json:"concluded"`
}

// SurveyResponse is a stored survey.
type SurveyResponse struct {
	ID             int64  `json:"id"`
	Date           string `json:"date"`
	Document       string `json:"document"`
	Identification string `json:"identification"`
	Address        string `json:"address"`
	Description    string `json:"description"`
	PropertyID     *int64 `json:"imovel_id"`
	TypeID         int64  `json:"survey_event_type"`
	OwnerID        int64  `json:"owner"`
	EditorID       int64  `json:"last_user_to_update"`
	Concluded      bool   `json:"concluded"`
}

func (r *SurveyRequest) toInput() (services.SurveyInput, error) {
	date, err := dates.Parse(r.Date)
	if err != nil {
		return services.SurveyInput{}, err
	}
	return services.SurveyInput{
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

func mapSurveyToDTO(e *models.SurveyEvent) SurveyResponse {
	return SurveyResponse{
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

// Create handles POST /api/v1/surveys.
func (h *SurveyHandler) Create(c *gin.Context) {
	var req SurveyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid survey payload", nil)
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
	c.JSON(http.StatusCreated, mapSurveyToDTO(event))
}

// Update handles PUT /api/v1/surveys/:id.
func (h *SurveyHandler) Update(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req SurveyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid survey payload", nil)
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
	c.JSON(http.StatusOK, mapSurveyToDTO(event))
}

// Get handles GET /api/v1/surveys/:id.
func (h *SurveyHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	event, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, mapSurveyToDTO(event))
}

// SurveyListRequest represents the query parameters for survey listing.
type SurveyListRequest struct {
	OwnerID    int64 `form:"owner"`
	PropertyID int64 `form:"imovel_id"`
	TypeID     int64 `form:"survey_event_type"`
	Limit      int   `form:"limit"`
	Offset     int   `form:"offset"`
}

// List handles GET /api/v1/surveys.
func (h *SurveyHandler) List(c *gin.Context) {
	var req SurveyListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		apierrors.BadRequest(c, "Invalid query parameters", nil)
		return
	}
	events, err := h.service.List(c.Request.Context(), repository.SurveyFilter{
		OwnerID:    req.OwnerID,
		PropertyID: req.PropertyID,
		TypeID:     req.TypeID,
		Limit:      req.Limit,
		Offset:     req.Offset,
	})
	if err != nil {
		apierrors.InternalServerError(c, "Failed to list surveys", err)
		return
	}
	out := make([]SurveyResponse, 0, len(events))
	for i := range events {
		out = append(out, mapSurveyToDTO(&events[i]))
	}
	c.JSON(http.StatusOK, gin.H{
		"surveys": out,
		"count":   len(out),
	})
}

// Delete handles DELETE /api/v1/surveys/:id.
func (h *SurveyHandler) Delete(c *gin.Context) {
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

func (h *SurveyHandler) writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrSurveyNotFound):
		apierrors.NotFound(c, "Survey not found")
	case errors.Is(err, services.ErrPropertyNotFound):
		apierrors.BadRequest(c, err.Error(), nil)
	case errors.Is(err, services.ErrInvalidPayload):
		apierrors.BadRequest(c, err.Error(), nil)
	default:
		apierrors.InternalServerError(c, "Failed to process survey", err)
	}
}
