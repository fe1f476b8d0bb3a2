// Package meetings wires the activation meetings bounded context.
package meetings

import (
	"salesops_backend/internal/events"
	apphttp "salesops_backend/internal/http"
	"salesops_backend/internal/meetings/handler"
	"salesops_backend/internal/meetings/repository"
	"salesops_backend/internal/meetings/service"
	"salesops_backend/platform/clock"
	"salesops_backend/platform/logger"
	"salesops_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Deps holds the dependencies for the meetings module.
type Deps struct {
	Pool      *pgxpool.Pool
	Pipelines service.Pipelines
	Bus       events.Bus
	Validator *validator.Validator
	Clock     clock.Clock
	Logger    *logger.Logger
}

// Module is the activation meetings bounded context.
type Module struct {
	svc     *service.Service
	handler *handler.Handler
}

// NewModule assembles the meetings module.
func NewModule(deps Deps) *Module {
	repo := repository.New(deps.Pool)
	svc := service.New(repo, deps.Pipelines, deps.Bus, deps.Clock, deps.Logger)
	return &Module{
		svc:     svc,
		handler: handler.New(svc, deps.Validator, deps.Logger),
	}
}

// Service exposes the meetings service for the batch jobs.
func (m *Module) Service() *service.Service {
	return m.svc
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "meetings"
}

// RegisterRoutes mounts the meetings routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	meetings := ctx.Protected.Group("/meetings")
	{
		meetings.POST("", m.handler.Schedule)
		meetings.GET("/:id", m.handler.Get)
		meetings.POST("/:id/reassign", m.handler.Reassign)
		meetings.POST("/:id/outcome", m.handler.MarkOutcome)
	}
}
