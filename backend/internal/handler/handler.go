package handler

import (
	"context"

	"github.com/staffhub/staffhub/backend/internal/service"
	"github.com/staffhub/staffhub/shared/config"
)

// HealthChecker reports whether the store is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	supervisor service.SupervisorService
	health     HealthChecker
	cfg        *config.Config
}

func New(supervisor service.SupervisorService, health HealthChecker, cfg *config.Config) *Handler {
	return &Handler{supervisor, health, cfg}
}
