package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/itafisc/fiscal-api/internal/dates"
	apierrors "github.com/itafisc/fiscal-api/internal/errors"
	"github.com/itafisc/fiscal-api/internal/middleware"
	"github.com/itafisc/fiscal-api/internal/services"
)

// ImportHandler handles property import HTTP requests.
type ImportHandler struct {
	service services.ImportService
}

// NewImportHandler creates a new ImportHandler instance.
func NewImportHandler(service services.ImportService) *ImportHandler {
	return &ImportHandler{
		service: service,
	}
}

// Start handles POST /api/v1/imports. The spreadsheet travels as multipart
// field "file"; "file_datetime" (YYYY-MM-DD) is the source snapshot date used
// for staleness checks. The run continues in the background; the created log
// row is returned for polling.
func (h *ImportHandler) Start(c *gin.Context) {
	log := middleware.GetLogger(c)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		apierrors.BadRequest(c, "A spreadsheet file is required", nil)
		return
	}
	sourceTime, err := dates.Parse(c.PostForm("file_datetime"))
	if err != nil {
		apierrors.BadRequest(c, "A valid file_datetime is required", nil)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		apierrors.InternalServerError(c, "Failed to open uploaded file", err)
		return
	}
	defer file.Close()

	if log != nil {
		log.Info("Starting property import", map[string]interface{}{
			"filename":      fileHeader.Filename,
			"file_datetime": dates.Format(sourceTime),
		})
	}

	runLog, err := h.service.Start(c.Request.Context(), file, sourceTime)
	if err != nil {
		if errors.Is(err, services.ErrImportRunning) {
			apierrors.ServiceUnavailable(c, "A property import is already running")
			return
		}
		apierrors.InternalServerError(c, "Failed to start property import", err)
		return
	}
	c.JSON(http.StatusAccepted, runLog)
}

// Latest handles GET /api/v1/imports/latest. It returns the newest import
// log row, which is how clients observe a running or finished import.
func (h *ImportHandler) Latest(c *gin.Context) {
	runLog, err := h.service.Latest(c.Request.Context())
	if err != nil {
		apierrors.InternalServerError(c, "Failed to load import status", err)
		return
	}
	if runLog == nil {
		apierrors.NotFound(c, "No import has run yet")
		return
	}
	c.JSON(http.StatusOK, runLog)
}
