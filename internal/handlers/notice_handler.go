package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/itafisc/fiscal-api/internal/dates"
	apierrors "github.com/itafisc/fiscal-api/internal/errors"
	"github.com/itafisc/fiscal-api/internal/middleware"
	"github.com/itafisc/fiscal-api/internal/models"
	"github.com/itafisc/fiscal-api/internal/repository"
	"github.com/itafisc/fiscal-api/internal/services"
)

// NoticeHandler handles enforcement notice HTTP requests.
type NoticeHandler struct {
	service services.NoticeService
}

// NewNoticeHandler creates a new NoticeHandler instance.
func NewNoticeHandler(service services.NoticeService) *NoticeHandler {
	return &NoticeHandler{
		service: service,
	}
}

// NoticeRequest is the nested write payload for a notice. Child collections
// are replaced wholesale: anything stored but absent here is deleted.
type NoticeRequest struct {
	Document    string               `json:"document"`
	Address     string               `json:"address"`
	Description string               `json:"description"`
	PropertyID  *int64               `json:"imovel_id"`
	OwnerID     int64                `json:"owner" binding:"required"`
	EditorID    int64                `json:"last_user_to_update"`
	Events      []NoticeEventRequest `json:"events"`
}

// NoticeEventRequest is one event in the payload. Dates travel as
// YYYY-MM-DD strings; deadline_date is never accepted, only returned.
type NoticeEventRequest struct {
	ID                  int64                 `json:"id"`
	Date                string                `json:"date" binding:"required"`
	Identification      string                `json:"identification"`
	ReportNumber        string                `json:"report_number"`
	TypeID              int64                 `json:"notice_event_type" binding:"required"`
	Deadline            int                   `json:"deadline"`
	DeadlineWorkingDays bool                  `json:"deadline_working_days"`
	Concluded           bool                  `json:"concluded"`
	Fines               []NoticeFineRequest   `json:"fines"`
	Appeals             []NoticeAppealRequest `json:"appeals"`
}

// NoticeFineRequest is one fine in the payload.
type NoticeFineRequest struct {
	ID             int64  `json:"id"`
	Date           string `json:"date" binding:"required"`
	Identification string `json:"identification"`
}

// NoticeAppealRequest is one appeal in the payload. An empty end_date means
// the appeal is still open.
type NoticeAppealRequest struct {
	ID             int64  `json:"id"`
	StartDate      string `json:"start_date" binding:"required"`
	EndDate        string `json:"end_date"`
	Identification string `json:"identification"`
	Extension      int    `json:"extension"`
}

// NoticeResponse is a stored notice with its full event graph.
type NoticeResponse struct {
	ID          int64                 `json:"id"`
	Date        string                `json:"date"`
	Document    string                `json:"document"`
	Address     string                `json:"address"`
	Description string                `json:"description"`
	PropertyID  *int64                `json:"imovel_id"`
	OwnerID     int64                 `json:"owner"`
	EditorID    int64                 `json:"last_user_to_update"`
	Events      []NoticeEventResponse `json:"events"`
}

// NoticeEventResponse is one stored event with derived state.
type NoticeEventResponse struct {
	ID                  int64                  `json:"id"`
	Date                string                 `json:"date"`
	DeadlineDate        string                 `json:"deadline_date"`
	Identification      string                 `json:"identification"`
	ReportNumber        string                 `json:"report_number"`
	TypeID              int64                  `json:"notice_event_type"`
	Deadline            int                    `json:"deadline"`
	DeadlineWorkingDays bool                   `json:"deadline_working_days"`
	Concluded           bool                   `json:"concluded"`
	Frozen              bool                   `json:"frozen"`
	Fines               []NoticeFineResponse   `json:"fines"`
	Appeals             []NoticeAppealResponse `json:"appeals"`
}

// NoticeFineResponse is one stored fine.
type NoticeFineResponse struct {
	ID             int64  `json:"id"`
	Date           string `json:"date"`
	Identification string `json:"identification"`
}

// NoticeAppealResponse is one stored appeal.
type NoticeAppealResponse struct {
	ID             int64  `json:"id"`
	StartDate      string `json:"start_date"`
	EndDate        string `json:"end_date"`
	Identification string `json:"identification"`
	Extension      int    `json:"extension"`
}

// toInput converts the request into the service payload. Invalid dates fail
// here so the service only ever sees parsed values.
func (r *NoticeRequest) toInput() (services.NoticeInput, error) {
	in := services.NoticeInput{
		Document:    r.Document,
		Address:     r.Address,
		Description: r.Description,
		Property:    propertyRefFrom(r.PropertyID),
		OwnerID:     r.OwnerID,
		EditorID:    r.EditorID,
	}
	for _, e := range r.Events {
		date, err := dates.Parse(e.Date)
		if err != nil {
			return in, err
		}
		event := services.NoticeEventInput{
			Ref:                 childRefFrom(e.ID),
			Date:                date,
			Identification:      e.Identification,
			ReportNumber:        e.ReportNumber,
			TypeID:              e.TypeID,
			Deadline:            e.Deadline,
			DeadlineWorkingDays: e.DeadlineWorkingDays,
			Concluded:           e.Concluded,
		}
		for _, f := range e.Fines {
			fineDate, err := dates.Parse(f.Date)
			if err != nil {
				return in, err
			}
			event.Fines = append(event.Fines, services.NoticeFineInput{
				Ref:            childRefFrom(f.ID),
				Date:           fineDate,
				Identification: f.Identification,
			})
		}
		for _, a := range e.Appeals {
			startDate, err := dates.Parse(a.StartDate)
			if err != nil {
				return in, err
			}
			var endDate *time.Time
			if a.EndDate != "" {
				parsed, err := dates.Parse(a.EndDate)
				if err != nil {
					return in, err
				}
				endDate = &parsed
			}
			event.Appeals = append(event.Appeals, services.NoticeAppealInput{
				Ref:            childRefFrom(a.ID),
				StartDate:      startDate,
				EndDate:        endDate,
				Identification: a.Identification,
				Extension:      a.Extension,
			})
		}
		in.Events = append(in.Events, event)
	}
	return in, nil
}

// propertyRefFrom maps the wire form of a property link: absent means no
// property, zero means the placeholder row, anything else is a real id.
func propertyRefFrom(id *int64) services.PropertyRef {
	switch {
	case id == nil:
		return services.NoProperty()
	case *id == 0:
		return services.PlaceholderProperty()
	default:
		return services.PropertyByID(*id)
	}
}

// childRefFrom maps a wire id to a child reference: a positive id claims an
// existing row, anything else is a new one.
func childRefFrom(id int64) services.ChildRef {
	if id > 0 {
		return services.ExistingChild(id)
	}
	return services.NewChild()
}

func mapNoticeViewToDTO(view *services.NoticeView) NoticeResponse {
	resp := NoticeResponse{
		ID:          view.Notice.ID,
		Date:        dates.Format(view.Notice.Date),
		Document:    view.Notice.Document,
		Address:     view.Notice.Address,
		Description: view.Notice.Description,
		PropertyID:  view.Notice.PropertyID,
		OwnerID:     view.Notice.OwnerID,
		EditorID:    view.Notice.LastEditor,
		Events:      make([]NoticeEventResponse, 0, len(view.Events)),
	}
	for _, ev := range view.Events {
		event := NoticeEventResponse{
			ID:                  ev.Event.ID,
			Date:                dates.Format(ev.Event.Date),
			DeadlineDate:        dates.Format(ev.Event.DeadlineDate),
			Identification:      ev.Event.Identification,
			ReportNumber:        ev.Event.ReportNumber,
			TypeID:              ev.Event.TypeID,
			Deadline:            ev.Event.Deadline,
			DeadlineWorkingDays: ev.Event.DeadlineWorkingDays,
			Concluded:           ev.Event.Concluded,
			Frozen:              ev.Frozen,
			Fines:               make([]NoticeFineResponse, 0, len(ev.Fines)),
			Appeals:             make([]NoticeAppealResponse, 0, len(ev.Appeals)),
		}
		for _, f := range ev.Fines {
			event.Fines = append(event.Fines, NoticeFineResponse{
				ID:             f.ID,
				Date:           dates.Format(f.Date),
				Identification: f.Identification,
			})
		}
		for _, a := range ev.Appeals {
			appeal := NoticeAppealResponse{
				ID:             a.ID,
				StartDate:      dates.Format(a.StartDate),
				Identification: a.Identification,
				Extension:      a.Extension,
			}
			if a.EndDate != nil {
				appeal.EndDate = dates.Format(*a.EndDate)
			}
			event.Appeals = append(event.Appeals, appeal)
		}
		resp.Events = append(resp.Events, event)
	}
	return resp
}

// Create handles POST /api/v1/notices.
func (h *NoticeHandler) Create(c *gin.Context) {
	log := middleware.GetLogger(c)

	var req NoticeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid notice payload", nil)
		return
	}
	in, err := req.toInput()
	if err != nil {
		apierrors.BadRequest(c, err.Error(), nil)
		return
	}

	if log != nil {
		log.Info("Processing notice create", map[string]interface{}{
			"owner":  req.OwnerID,
			"events": len(req.Events),
		})
	}

	view, err := h.service.Create(c.Request.Context(), in)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, mapNoticeViewToDTO(view))
}

// Update handles PUT /api/v1/notices/:id.
func (h *NoticeHandler) Update(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req NoticeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid notice payload", nil)
		return
	}
	in, err := req.toInput()
	if err != nil {
		apierrors.BadRequest(c, err.Error(), nil)
		return
	}

	view, err := h.service.Update(c.Request.Context(), id, in)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, mapNoticeViewToDTO(view))
}

// Get handles GET /api/v1/notices/:id.
func (h *NoticeHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	view, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, mapNoticeViewToDTO(view))
}

// NoticeListRequest represents the query parameters for notice listing.
type NoticeListRequest struct {
	OwnerID    int64  `form:"owner"`
	PropertyID int64  `form:"imovel_id"`
	Document   string `form:"document"`
	Limit      int    `form:"limit"`
	Offset     int    `form:"offset"`
}

// List handles GET /api/v1/notices.
func (h *NoticeHandler) List(c *gin.Context) {
	var req NoticeListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		apierrors.BadRequest(c, "Invalid query parameters", nil)
		return
	}
	filter := repository.NoticeFilter{
		OwnerID:    req.OwnerID,
		PropertyID: req.PropertyID,
		Document:   req.Document,
		Limit:      req.Limit,
		Offset:     req.Offset,
	}
	notices, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		apierrors.InternalServerError(c, "Failed to list notices", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"notices": mapNoticesToDTO(notices),
		"count":   len(notices),
	})
}

func mapNoticesToDTO(notices []models.Notice) []NoticeResponse {
	out := make([]NoticeResponse, 0, len(notices))
	for i := range notices {
		out = append(out, NoticeResponse{
			ID:          notices[i].ID,
			Date:        dates.Format(notices[i].Date),
			Document:    notices[i].Document,
			Address:     notices[i].Address,
			Description: notices[i].Description,
			PropertyID:  notices[i].PropertyID,
			OwnerID:     notices[i].OwnerID,
			EditorID:    notices[i].LastEditor,
			Events:      []NoticeEventResponse{},
		})
	}
	return out
}

// Delete handles DELETE /api/v1/notices/:id.
func (h *NoticeHandler) Delete(c *gin.Context) {
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

// Latest handles GET /api/v1/notices/latest. It returns the newest notice
// for an owner, optionally scoped to one property.
func (h *NoticeHandler) Latest(c *gin.Context) {
	ownerID, err := strconv.ParseInt(c.Query("owner"), 10, 64)
	if err != nil || ownerID <= 0 {
		apierrors.BadRequest(c, "A valid owner is required", nil)
		return
	}
	var propertyID *int64
	if raw := c.Query("imovel_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			apierrors.BadRequest(c, "Invalid imovel_id", nil)
			return
		}
		propertyID = &id
	}
	view, err := h.service.LatestForOwner(c.Request.Context(), ownerID, propertyID)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, mapNoticeViewToDTO(view))
}

func (h *NoticeHandler) writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrNoticeNotFound):
		apierrors.NotFound(c, "Notice not found")
	case errors.Is(err, services.ErrPropertyNotFound):
		apierrors.BadRequest(c, err.Error(), nil)
	case errors.Is(err, services.ErrInvalidPayload):
		apierrors.BadRequest(c, err.Error(), nil)
	default:
		apierrors.InternalServerError(c, "Failed to process notice", err)
	}
}

// pathID parses the :id path parameter, writing the error response itself
// when the value is unusable.
func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		apierrors.BadRequest(c, "Invalid id", nil)
		return 0, false
	}
	return id, true
}
