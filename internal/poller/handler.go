package poller

import (
	"log/slog"
	"net/http"

	v1 "github.com/aevon-lab/project-tpms/internal/api/v1"
	httperr "github.com/aevon-lab/project-tpms/internal/core/errors"
	"github.com/aevon-lab/project-tpms/internal/gateway"
	"github.com/gin-gonic/gin"
)

type initializeRequest struct {
	Channel  string `json:"channel" binding:"required"`
	Baudrate string `json:"baudrate" binding:"required"`
}

type statusResponse struct {
	State      State              `json:"state"`
	StatusCode gateway.StatusCode `json:"status_code"`
	StatusText string             `json:"status_text"`
}

// InitializeHandler handles POST /v1/gateway/initialize.
func (s *Service) InitializeHandler(c *gin.Context) {
	var req initializeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidJsonError,
			Message:   "channel and baudrate are required",
			Details: map[string]interface{}{
				"channels":  gateway.ChannelNames(),
				"baudrates": gateway.BaudrateNames(),
			},
		})
		return
	}

	res, err := s.poller.Connect(c.Request.Context(), req.Channel, req.Baudrate)
	if err != nil {
		writeGatewayError(c, "Gateway initialize failed", err)
		return
	}

	c.JSON(http.StatusOK, v1.NewCommandResponse(v1.CommandInitResult, res.OK, res.Message,
		gin.H{"state": s.poller.State()}))
}

// ReleaseHandler handles POST /v1/gateway/release.
func (s *Service) ReleaseHandler(c *gin.Context) {
	res, err := s.poller.Release(c.Request.Context())
	if err != nil {
		writeGatewayError(c, "Gateway release failed", err)
		return
	}

	c.JSON(http.StatusOK, v1.NewCommandResponse(v1.CommandUninitResult, res.OK, res.Message,
		gin.H{"state": s.poller.State()}))
}

// StatusHandler handles GET /v1/gateway/status.
func (s *Service) StatusHandler(c *gin.Context) {
	status, err := s.poller.GatewayStatus(c.Request.Context())
	if err != nil {
		writeGatewayError(c, "Gateway status unavailable", err)
		return
	}

	c.JSON(http.StatusOK, statusResponse{
		State:      s.poller.State(),
		StatusCode: status.Code,
		StatusText: status.Text,
	})
}

func writeGatewayError(c *gin.Context, message string, err error) {
	slog.Error(message, "error", err)
	c.JSON(http.StatusBadGateway, httperr.ErrorResponse{
		ErrorType: httperr.HttpGatewayError,
		Message:   message,
		Details:   err.Error(),
	})
}
