package jobs

import (
	"net/http"

	apphttp "salesops_backend/internal/http"
	"salesops_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

// Module exposes the batch jobs as cron trigger endpoints.
type Module struct {
	runner *Runner
}

// NewModule creates the jobs module around an assembled runner.
func NewModule(runner *Runner) *Module {
	return &Module{runner: runner}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "jobs"
}

// RegisterRoutes mounts the cron trigger endpoints. The group is guarded
// by the shared cron secret.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Cron.POST("/auto-kill", m.autoKill)
	ctx.Cron.POST("/reminders", m.reminders)
	ctx.Cron.POST("/weekly-scoring", m.weeklyScoring)
	ctx.Cron.POST("/reconcile", m.reconcile)
}

func (m *Module) autoKill(c *gin.Context) {
	summary, skipped := m.runner.RunAutoKill(c.Request.Context())
	respond(c, summary, skipped)
}

func (m *Module) reminders(c *gin.Context) {
	summary, skipped := m.runner.RunReminders(c.Request.Context())
	respond(c, summary, skipped)
}

func (m *Module) weeklyScoring(c *gin.Context) {
	summary, skipped := m.runner.RunWeeklyScoring(c.Request.Context())
	respond(c, summary, skipped)
}

func (m *Module) reconcile(c *gin.Context) {
	summary, skipped := m.runner.RunReconcile(c.Request.Context())
	respond(c, summary, skipped)
}

func respond(c *gin.Context, summary any, skipped bool) {
	if skipped {
		httpkit.JSON(c, http.StatusAccepted, gin.H{"skipped": true})
		return
	}
	httpkit.OK(c, summary)
}
