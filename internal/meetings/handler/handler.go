// Package handler exposes the activation meetings HTTP endpoints.
package handler

import (
	"net/http"

	"salesops_backend/internal/meetings/service"
	"salesops_backend/internal/meetings/transport"
	"salesops_backend/platform/httpkit"
	"salesops_backend/platform/logger"
	"salesops_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handler handles meeting HTTP requests.
type Handler struct {
	svc      *service.Service
	validate *validator.Validator
	log      *logger.Logger
}

// New creates a meetings handler.
func New(svc *service.Service, validate *validator.Validator, log *logger.Logger) *Handler {
	return &Handler{svc: svc, validate: validate, log: log}
}

// Schedule handles POST /meetings.
func (h *Handler) Schedule(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	var req transport.ScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	resp, err := h.svc.Schedule(c.Request.Context(), req, identity.UserID())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, resp)
}

// Get handles GET /meetings/:id.
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

// Reassign handles POST /meetings/:id/reassign.
func (h *Handler) Reassign(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req transport.ReassignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	resp, err := h.svc.Reassign(c.Request.Context(), id, req, identity.UserID())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, resp)
}

// MarkOutcome handles POST /meetings/:id/outcome.
func (h *Handler) MarkOutcome(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req transport.OutcomeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	resp, err := h.svc.MarkOutcome(c.Request.Context(), id, req, identity.UserID())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, resp)
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid meeting id", nil)
		return uuid.Nil, false
	}
	return id, true
}
