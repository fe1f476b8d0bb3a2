// Package pipeline wires the trial pipeline bounded context: repository,
// service, and HTTP handlers.
package pipeline

import (
	"time"

	"salesops_backend/internal/events"
	apphttp "salesops_backend/internal/http"
	"salesops_backend/internal/pipeline/handler"
	"salesops_backend/internal/pipeline/repository"
	"salesops_backend/internal/pipeline/service"
	"salesops_backend/platform/clock"
	"salesops_backend/platform/logger"
	"salesops_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Deps holds the dependencies for the pipeline module. Provisioner,
// ContactSyncer and Mailer are optional; nil disables the integration.
type Deps struct {
	Pool          *pgxpool.Pool
	Bus           events.Bus
	Validator     *validator.Validator
	Clock         clock.Clock
	Logger        *logger.Logger
	FollowUpDelay time.Duration
	Provisioner   service.Provisioner
	ContactSyncer service.ContactSyncer
	Mailer        service.WelcomeMailer
}

// Module is the trial pipeline bounded context.
type Module struct {
	svc     *service.Service
	handler *handler.Handler
}

// NewModule assembles the pipeline module.
func NewModule(deps Deps) *Module {
	repo := repository.New(deps.Pool)
	svc := service.New(repo, deps.Bus, deps.Clock, deps.Logger, deps.FollowUpDelay)
	if deps.Provisioner != nil {
		svc.SetProvisioner(deps.Provisioner)
	}
	if deps.ContactSyncer != nil {
		svc.SetContactSyncer(deps.ContactSyncer)
	}
	if deps.Mailer != nil {
		svc.SetMailer(deps.Mailer)
	}

	return &Module{
		svc:     svc,
		handler: handler.New(svc, deps.Validator, deps.Logger),
	}
}

// Service exposes the pipeline service for the meetings module and jobs.
func (m *Module) Service() *service.Service {
	return m.svc
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "pipeline"
}

// RegisterRoutes mounts the pipeline routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	pipelines := ctx.Protected.Group("/pipelines")
	{
		pipelines.POST("/trials", m.handler.StartTrial)
		pipelines.GET("/:id", m.handler.Get)
		pipelines.GET("/:id/events", m.handler.ListEvents)
		pipelines.POST("/:id/milestones", m.handler.RecordMilestone)
		pipelines.POST("/:id/contact-attempts", m.handler.RecordContactAttempt)
		pipelines.POST("/:id/kill", m.handler.Kill)
	}
}
