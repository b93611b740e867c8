package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/itafisc/fiscal-api/internal/dates"
	apierrors "github.com/itafisc/fiscal-api/internal/errors"
	"github.com/itafisc/fiscal-api/internal/models"
	"github.com/itafisc/fiscal-api/internal/services"
)

// ActivityHandler handles daily activity log HTTP requests.
type ActivityHandler struct {
	service services.ActivityService
}

// NewActivityHandler creates a new ActivityHandler instance.
func NewActivityHandler(service services.ActivityService) *ActivityHandler {
	return &ActivityHandler{
		service: service,
	}
}

// ActivityRequest is the write payload for an activity entry.
type ActivityRequest struct {
	Date        string `json:"date" binding:"required"`
	Description string `json:"description"`
	OwnerID     int64  `json:"owner" binding:"required"`
}

// ActivityResponse is a stored activity entry.
type ActivityResponse struct {
	ID          int64  `json:"id"`
	Date        string `json:"date"`
	Description string `json:"description"`
	OwnerID     int64  `json:"owner"`
}

func mapActivityToDTO(a *models.Activity) ActivityResponse {
	return ActivityResponse{
		ID:          a.ID,
		Date:        dates.Format(a.Date),
		Description: a.Description,
		OwnerID:     a.OwnerID,
	}
}

// Create handles POST /api/v1/activities.
func (h *ActivityHandler) Create(c *gin.Context) {
	var req ActivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid activity payload", nil)
		return
	}
	date, err := dates.Parse(req.Date)
	if err != nil {
		apierrors.BadRequest(c, err.Error(), nil)
		return
	}
	activity, err := h.service.Create(c.Request.Context(), services.ActivityInput{
		Date:        date,
		Description: req.Description,
		OwnerID:     req.OwnerID,
	})
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, mapActivityToDTO(activity))
}

// Update handles PUT /api/v1/activities/:id.
func (h *ActivityHandler) Update(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req ActivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid activity payload", nil)
		return
	}
	date, err := dates.Parse(req.Date)
	if err != nil {
		apierrors.BadRequest(c, err.Error(), nil)
		return
	}
	activity, err := h.service.Update(c.Request.Context(), id, services.ActivityInput{
		Date:        date,
		Description: req.Description,
		OwnerID:     req.OwnerID,
	})
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, mapActivityToDTO(activity))
}

// Get handles GET /api/v1/activities/:id.
func (h *ActivityHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	activity, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, mapActivityToDTO(activity))
}

// ActivityListRequest represents the query parameters for activity listing.
// The from/to range is inclusive.
type ActivityListRequest struct {
	OwnerID int64  `form:"owner"`
	From    string `form:"from"`
	To      string `form:"to"`
}

// List handles GET /api/v1/activities.
func (h *ActivityHandler) List(c *gin.Context) {
	var req ActivityListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		apierrors.BadRequest(c, "Invalid query parameters", nil)
		return
	}
	var from, to *time.Time
	if req.From != "" {
		d, err := dates.Parse(req.From)
		if err != nil {
			apierrors.BadRequest(c, err.Error(), nil)
			return
		}
		from = &d
	}
	if req.To != "" {
		d, err := dates.Parse(req.To)
		if err != nil {
			apierrors.BadRequest(c, err.Error(), nil)
			return
		}
		to = &d
	}
	activities, err := h.service.List(c.Request.Context(), req.OwnerID, from, to)
	if err != nil {
		apierrors.InternalServerError(c, "Failed to list activities", err)
		return
	}
	out := make([]ActivityResponse, 0, len(activities))
	for i := range activities {
		out = append(out, mapActivityToDTO(&activities[i]))
	}
	c.JSON(http.StatusOK, gin.H{
		"activities": out,
		"count":      len(out),
	})
}

// Delete handles DELETE /api/v1/activities/:id.
func (h *ActivityHandler) Delete(c *gin.Context) {
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

func (h *ActivityHandler) writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrActivityNotFound):
		apierrors.NotFound(c, "Activity not found")
	case errors.Is(err, services.ErrActivityExists):
		apierrors.Conflict(c, err.Error())
	case errors.Is(err, services.ErrInvalidPayload):
		apierrors.BadRequest(c, err.Error(), nil)
	default:
		apierrors.InternalServerError(c, "Failed to process activity", err)
	}
}
