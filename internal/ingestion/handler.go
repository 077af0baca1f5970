package ingestion

import (
	"io"
	"log/slog"
	"net/http"
	"time"

	v1 "github.com/aevon-lab/project-tpms/internal/api/v1"
	httperr "github.com/aevon-lab/project-tpms/internal/core/errors"
	"github.com/gin-gonic/gin"
)

const (
	msgReadBodyFailed = "Failed to read request body"
	msgInvalidJSON    = "Invalid JSON body"
)

// ingestionError carries the structured HTTP error shape from a helper back to the handler.
type ingestionError struct {
	statusCode int
	errorType  string
	message    string
	details    interface{}
}

func (e *ingestionError) Error() string {
	return e.message
}

type sessionResponse struct {
	StartedAt time.Time `json:"started_at"`
	Frames    int       `json:"frames"`
}

// IngestHandler handles POST /v1/frames. The body takes any readBatch
// shape and goes through the same pipeline as polled batches.
func (s *Service) IngestHandler(c *gin.Context) {
	frames, err := s.parseFrames(c)
	if err != nil {
		writeError(c, err)
		return
	}

	res := s.pipeline.Ingest(frames)
	slog.Info("Frames ingested",
		"received", res.Received,
		"aggregated", res.Aggregated,
		"frames", res.Frames)

	c.JSON(http.StatusOK, res)
}

// SessionHandler handles GET /v1/session.
func (s *Service) SessionHandler(c *gin.Context) {
	c.JSON(http.StatusOK, sessionResponse{
		StartedAt: s.pipeline.SessionStart(),
		Frames:    s.pipeline.FrameCount(),
	})
}

// ClearHandler handles DELETE /v1/session.
func (s *Service) ClearHandler(c *gin.Context) {
	started := s.pipeline.Clear()
	slog.Info("Session cleared", "started_at", started)
	c.JSON(http.StatusOK, sessionResponse{StartedAt: started})
}

func (s *Service) parseFrames(c *gin.Context) ([]v1.RawFrame, *ingestionError) {
	maxBytes := int64(s.maxBodySizeBytes)
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBytes+1))
	if err != nil {
		slog.Error("Failed to read request body", "error", err)
		return nil, &ingestionError{
			statusCode: http.StatusInternalServerError,
			errorType:  httperr.HttpInternalError,
			message:    msgReadBodyFailed,
		}
	}

	if int64(len(body)) > maxBytes {
		slog.Warn("Request body exceeds maximum size", "size", len(body), "max", maxBytes)
		return nil, &ingestionError{
			statusCode: http.StatusRequestEntityTooLarge,
			errorType:  httperr.HttpInvalidJsonError,
			message:    "Request body exceeds maximum allowed size",
			details: map[string]interface{}{
				"max_size_mb": maxBytes / (1024 * 1024),
			},
		}
	}

	frames, err := v1.ParseBatch(body)
	if err != nil {
		slog.Warn("Invalid frame batch received", "error", err, "payload_size", len(body))
		return nil, &ingestionError{
			statusCode: http.StatusBadRequest,
			errorType:  httperr.HttpInvalidJsonError,
			message:    msgInvalidJSON,
			details:    err.Error(),
		}
	}

	// Malformed frames are logged as received, like polled ones; the
	// pipeline never aggregates them.
	for i := range frames {
		if err := frames[i].Validate(); err != nil {
			slog.Warn("Malformed frame kept in log", "index", i, "id", frames[i].ID, "data", frames[i].Data.Hex(), "error", err)
		}
	}
	return frames, nil
}

func writeError(c *gin.Context, err *ingestionError) {
	c.JSON(err.statusCode, httperr.ErrorResponse{
		ErrorType: err.errorType,
		Message:   err.message,
		Details:   err.details,
	})
}
