// Package leads provides the lead lifecycle bounded context module.
// It owns the lead records, the transition log and the lifecycle engine
// that every other module goes through to move a lead forward.
package leads

import (
	"funnel_backend/internal/events"
	apphttp "funnel_backend/internal/http"
	"funnel_backend/internal/leads/handler"
	"funnel_backend/internal/leads/lifecycle"
	"funnel_backend/internal/leads/ports"
	"funnel_backend/internal/leads/repository"
	"funnel_backend/internal/leads/service"
	"funnel_backend/platform/config"
	"funnel_backend/platform/logger"
	"funnel_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the leads bounded context module implementing http.Module.
type Module struct {
	handler   *handler.Handler
	engine    *lifecycle.Engine
	directory ports.LeadDirectory
}

// NewModule creates and initializes the leads module with all its dependencies.
func NewModule(pool *pgxpool.Pool, eventBus events.Bus, val *validator.Validator, cfg config.LifecycleConfig, log *logger.Logger) *Module {
	repo := repository.New(pool)
	engine := lifecycle.New(repo, eventBus, cfg, log)
	svc := service.New(engine, repo)

	return &Module{
		handler:   handler.New(svc, val),
		engine:    engine,
		directory: repo,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "leads"
}

// Engine returns the lifecycle engine shared with the intake flows.
func (m *Module) Engine() *lifecycle.Engine {
	return m.engine
}

// Directory returns the lead contact store used by intake.
func (m *Module) Directory() ports.LeadDirectory {
	return m.directory
}

// RegisterRoutes mounts the admin lead routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Admin.Group("/leads"))
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
