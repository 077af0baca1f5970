package ingestion

import (
	"github.com/gin-gonic/gin"
)

type Service struct {
	pipeline         *Pipeline
	maxBodySizeBytes int
}

func NewService(pipeline *Pipeline, maxBodySizeMB int) *Service {
	if pipeline == nil {
		panic("ingestion: pipeline must not be nil")
	}
	if maxBodySizeMB <= 0 {
		maxBodySizeMB = 1 // default to 1MB
	}
	return &Service{
		pipeline:         pipeline,
		maxBodySizeBytes: maxBodySizeMB * 1024 * 1024,
	}
}

// RegisterRoutes registers the ingestion and session routes.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.POST("/v1/frames", s.IngestHandler)
	r.GET("/v1/session", s.SessionHandler)
	r.DELETE("/v1/session", s.ClearHandler)
}
