package projection

import (
	"net/http"
	"strconv"

	"github.com/aevon-lab/project-tpms/internal/aggregation"
	httperr "github.com/aevon-lab/project-tpms/internal/core/errors"
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all projection API routes on the given router.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.GET("/v1/telemetry", s.HandleTelemetry)
	r.GET("/v1/telemetry/sensors/:sensor", s.HandleSensor)
	r.GET("/v1/telemetry/history/:metric/:sensor", s.HandleHistory)
	r.GET("/v1/telemetry/summary/:metric/:sensor", s.HandleSummary)
	r.GET("/v1/telemetry/stream", s.HandleStream)
}

// HandleTelemetry handles GET /v1/telemetry.
func (s *Service) HandleTelemetry(c *gin.Context) {
	c.JSON(http.StatusOK, s.Telemetry())
}

// HandleSensor handles GET /v1/telemetry/sensors/:sensor.
func (s *Service) HandleSensor(c *gin.Context) {
	idx, ok := sensorParam(c)
	if !ok {
		return
	}

	view, found := s.Sensor(idx)
	if !found {
		c.JSON(http.StatusNotFound, httperr.ErrorResponse{
			ErrorType: httperr.HttpNotFoundError,
			Message:   "Sensor has not reported in this session",
			Details:   map[string]interface{}{"sensor_index": idx},
		})
		return
	}
	c.JSON(http.StatusOK, view)
}

// HandleHistory handles GET /v1/telemetry/history/:metric/:sensor.
func (s *Service) HandleHistory(c *gin.Context) {
	m, idx, ok := seriesParams(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.History(m, idx))
}

// HandleSummary handles GET /v1/telemetry/summary/:metric/:sensor.
func (s *Service) HandleSummary(c *gin.Context) {
	m, idx, ok := seriesParams(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.Summary(m, idx))
}

func seriesParams(c *gin.Context) (aggregation.Metric, int, bool) {
	m, err := aggregation.ParseMetric(c.Param("metric"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidRequest,
			Message:   "Invalid metric",
			Details:   err.Error(),
		})
		return "", 0, false
	}
	idx, ok := sensorParam(c)
	return m, idx, ok
}

func sensorParam(c *gin.Context) (int, bool) {
	idx, err := strconv.Atoi(c.Param("sensor"))
	if err != nil || idx < 1 || idx > 256 {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidRequest,
			Message:   "Invalid sensor index",
			Details:   "sensor must be an integer between 1 and 256",
		})
		return 0, false
	}
	return idx, true
}
