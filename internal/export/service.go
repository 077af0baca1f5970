package export

import (
	"github.com/gin-gonic/gin"
)

// LogLength reports how many frames the session log holds.
type LogLength interface {
	Len() int
}

// TargetLister reports the configured export targets.
type TargetLister interface {
	Targets() []string
}

// Service exposes the exporter over HTTP.
type Service struct {
	exporter *Exporter
	log      LogLength
	targets  TargetLister
}

func NewService(exporter *Exporter, log LogLength, targets TargetLister) *Service {
	if exporter == nil {
		panic("export: exporter must not be nil")
	}
	if log == nil {
		panic("export: log must not be nil")
	}
	if targets == nil {
		panic("export: target lister must not be nil")
	}
	return &Service{exporter: exporter, log: log, targets: targets}
}

// RegisterRoutes registers the export routes.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.POST("/v1/exports/:target", s.SaveHandler)
	r.GET("/v1/exports", s.CursorsHandler)
}
