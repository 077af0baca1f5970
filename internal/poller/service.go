package poller

import (
	"github.com/gin-gonic/gin"
)

// Service exposes gateway control over HTTP.
type Service struct {
	poller *Poller
}

func NewService(p *Poller) *Service {
	if p == nil {
		panic("poller: poller must not be nil")
	}
	return &Service{poller: p}
}

// RegisterRoutes registers the gateway control routes.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.POST("/v1/gateway/initialize", s.InitializeHandler)
	r.POST("/v1/gateway/release", s.ReleaseHandler)
	r.GET("/v1/gateway/status", s.StatusHandler)
}
