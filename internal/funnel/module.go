// Package funnel provides the intake module: public assessments and
// physical program applications, plus the admin review of applications.
package funnel

import (
	"funnel_backend/internal/events"
	"funnel_backend/internal/funnel/handler"
	"funnel_backend/internal/funnel/repository"
	"funnel_backend/internal/funnel/service"
	apphttp "funnel_backend/internal/http"
	"funnel_backend/internal/notification"
	"funnel_backend/platform/config"
	"funnel_backend/platform/logger"
	"funnel_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Module struct {
	handler *handler.Handler
	repo    *repository.Repository
}

// Dependencies are the collaborators owned by other modules.
type Dependencies struct {
	Leads      service.LeadDirectory
	Lifecycle  service.Lifecycle
	Templates  service.TemplateResolver
	Dispatcher notification.Dispatcher
	Bus        events.Bus
}

func NewModule(pool *pgxpool.Pool, deps Dependencies, cfg config.FunnelConfig, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(service.Deps{
		Store:      repo,
		Leads:      deps.Leads,
		Lifecycle:  deps.Lifecycle,
		Templates:  deps.Templates,
		Dispatcher: deps.Dispatcher,
		Bus:        deps.Bus,
		Config:     cfg,
		Log:        log,
	})

	return &Module{
		handler: handler.New(svc, val),
		repo:    repo,
	}
}

func (m *Module) Name() string {
	return "funnel"
}

// Repository exposes the application store for the payment link sweeper.
func (m *Module) Repository() *repository.Repository {
	return m.repo
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterPublicRoutes(ctx.Public)
	m.handler.RegisterAdminRoutes(ctx.Admin.Group("/applications"))
}

var _ apphttp.Module = (*Module)(nil)
