// Package handler exposes the trial pipeline HTTP endpoints.
package handler

import (
	"net/http"

	"salesops_backend/internal/pipeline/service"
	"salesops_backend/internal/pipeline/transport"
	"salesops_backend/platform/httpkit"
	"salesops_backend/platform/logger"
	"salesops_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handler handles pipeline HTTP requests.
type Handler struct {
	svc      *service.Service
	validate *validator.Validator
	log      *logger.Logger
}

// New creates a pipeline handler.
func New(svc *service.Service, validate *validator.Validator, log *logger.Logger) *Handler {
	return &Handler{svc: svc, validate: validate, log: log}
}

// StartTrial handles POST /pipelines/trials.
func (h *Handler) StartTrial(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	var req transport.StartTrialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	resp, err := h.svc.StartTrial(c.Request.Context(), req, identity.UserID())
	if httpkit.HandleError(c, err) {
		return
	}

	status := http.StatusOK
	if resp.Created {
		status = http.StatusCreated
	}
	httpkit.JSON(c, status, resp)
}

// Get handles GET /pipelines/:id.
func (h *Handler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	resp, err := h.svc.Get(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, resp)
}

// ListEvents handles GET /pipelines/:id/events.
func (h *Handler) ListEvents(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	events, err := h.svc.Events(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"events": events})
}

// RecordMilestone handles POST /pipelines/:id/milestones.
func (h *Handler) RecordMilestone(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req transport.RecordMilestoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	resp, err := h.svc.RecordMilestone(c.Request.Context(), id, req.Milestone)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, resp)
}

// RecordContactAttempt handles POST /pipelines/:id/contact-attempts.
func (h *Handler) RecordContactAttempt(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req transport.ContactAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	resp, err := h.svc.RecordContactAttempt(c.Request.Context(), id, req, identity.UserID(), req.SDRCode)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, resp)
}

// Kill handles POST /pipelines/:id/kill.
func (h *Handler) Kill(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req transport.KillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}

	resp, err := h.svc.Kill(c.Request.Context(), id, identity.UserID(), req.Notes)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, resp)
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid pipeline id", nil)
		return uuid.Nil, false
	}
	return id, true
}
