// Package messaging provides the message template module: template storage,
// state-based resolution and the admin template endpoints.
package messaging

import (
	apphttp "funnel_backend/internal/http"
	"funnel_backend/internal/messaging/handler"
	"funnel_backend/internal/messaging/repository"
	"funnel_backend/internal/messaging/resolver"
	"funnel_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the messaging module implementing http.Module.
type Module struct {
	handler  *handler.Handler
	resolver *resolver.Resolver
}

func NewModule(pool *pgxpool.Pool, programName string, val *validator.Validator) *Module {
	repo := repository.New(pool)
	res := resolver.New(repo)

	return &Module{
		handler:  handler.New(repo, res, programName, val),
		resolver: res,
	}
}

func (m *Module) Name() string {
	return "messaging"
}

// Resolver returns the template resolver shared with funnel and notification.
func (m *Module) Resolver() *resolver.Resolver {
	return m.resolver
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Admin.Group("/templates"))
}

var _ apphttp.Module = (*Module)(nil)
