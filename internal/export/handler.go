package export

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	v1 "github.com/aevon-lab/project-tpms/internal/api/v1"
	httperr "github.com/aevon-lab/project-tpms/internal/core/errors"
	"github.com/gin-gonic/gin"
)

type saveRequest struct {
	// RequiredID is a hex frame id such as "502".
	RequiredID string `json:"required_id"`
}

type exportError struct {
	statusCode int
	errorType  string
	message    string
	details    interface{}
}

func (e *exportError) Error() string {
	return e.message
}

// failureData is the envelope data of a failed LOAD_DATA call.
type failureData struct {
	ErrorType string      `json:"error_type"`
	Details   interface{} `json:"details,omitempty"`
}

// SaveHandler handles POST /v1/exports/:target.
func (s *Service) SaveHandler(c *gin.Context) {
	target := c.Param("target")

	opts, perr := parseSaveOptions(c)
	if perr != nil {
		writeError(c, perr)
		return
	}

	res, err := s.exporter.SaveTo(c.Request.Context(), target, opts)
	if err != nil {
		writeError(c, classify(err, res))
		return
	}

	c.JSON(http.StatusOK, v1.NewCommandResponse(v1.CommandLoadData, true, res.Message, res))
}

// CursorsHandler handles GET /v1/exports. Targets without a cursor have
// not been exported this session; unlisted names go to the JSON fallback.
func (s *Service) CursorsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"frames":  s.log.Len(),
		"targets": s.targets.Targets(),
		"cursors": s.exporter.Cursors(),
	})
}

func parseSaveOptions(c *gin.Context) (SaveOptions, *exportError) {
	var req saveRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			return SaveOptions{}, &exportError{
				statusCode: http.StatusBadRequest,
				errorType:  httperr.HttpInvalidJsonError,
				message:    "Invalid JSON body",
				details:    err.Error(),
			}
		}
	}
	if req.RequiredID == "" {
		return SaveOptions{}, nil
	}

	id, err := v1.ParseFrameID(req.RequiredID)
	if err != nil {
		return SaveOptions{}, &exportError{
			statusCode: http.StatusBadRequest,
			errorType:  httperr.HttpInvalidRequest,
			message:    err.Error(),
		}
	}
	return SaveOptions{RequiredID: &id}, nil
}

func classify(err error, res SaveResult) *exportError {
	switch {
	case errors.Is(err, ErrInvalidTarget):
		return &exportError{
			statusCode: http.StatusBadRequest,
			errorType:  httperr.HttpInvalidRequest,
			message:    err.Error(),
		}
	case errors.Is(err, ErrNoNewData):
		return &exportError{
			statusCode: http.StatusConflict,
			errorType:  httperr.HttpNoNewDataError,
			message:    "No new data to save",
			details:    map[string]interface{}{"target": res.Target, "cursor": res.From},
		}
	case errors.Is(err, ErrPersistFailed):
		return &exportError{
			statusCode: http.StatusBadGateway,
			errorType:  httperr.HttpPersistFailedError,
			message:    "Failed to persist frames",
			details:    map[string]interface{}{"target": res.Target, "reason": res.Message},
		}
	default:
		slog.Error("Unexpected export error", "target", res.Target, "error", err)
		return &exportError{
			statusCode: http.StatusInternalServerError,
			errorType:  httperr.HttpInternalError,
			message:    "Export failed",
		}
	}
}

// writeError answers with the same LOAD_DATA envelope as a success so the
// dashboard reads one shape; the HTTP status still carries the cause.
func writeError(c *gin.Context, err *exportError) {
	c.JSON(err.statusCode, v1.NewCommandResponse(v1.CommandLoadData, false, err.message, failureData{
		ErrorType: err.errorType,
		Details:   err.details,
	}))
}
