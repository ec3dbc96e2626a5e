package handler

import (
	"net/http"

	"crm_backend/internal/leads/distribution"
	"crm_backend/internal/leads/qualification"
	"crm_backend/internal/leads/transport"
	"crm_backend/platform/httpkit"
	"crm_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const roleAdmin = "admin"

// PipelineHandler serves distribution and qualification configuration of a
// pipeline. Writes require the admin role.
type PipelineHandler struct {
	dist *distribution.Service
	qual *qualification.Service
	val  *validator.Validator
}

// NewPipelineHandler creates a new pipeline configuration handler.
func NewPipelineHandler(dist *distribution.Service, qual *qualification.Service, val *validator.Validator) *PipelineHandler {
	return &PipelineHandler{dist: dist, qual: qual, val: val}
}

// RegisterRoutes registers routes under /pipelines.
func (h *PipelineHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/:id/distribution", h.GetDistribution)
	rg.PUT("/:id/distribution", httpkit.RequireRole(roleAdmin), h.SaveDistribution)
	rg.POST("/:id/distribution/reset", httpkit.RequireRole(roleAdmin), h.ResetDistribution)
	rg.GET("/:id/distribution/preview", h.PreviewDistribution)
	rg.GET("/:id/distribution/stats", h.DistributionStats)
	rg.GET("/:id/qualification-rules", h.GetRules)
	rg.PUT("/:id/qualification-rules", httpkit.RequireRole(roleAdmin), h.SaveRules)
	rg.POST("/:id/qualification-rules/reevaluate", httpkit.RequireRole(roleAdmin), h.Reevaluate)
}

func (h *PipelineHandler) GetDistribution(c *gin.Context) {
	_, tenantID, ok := httpkit.MustGetTenant(c)
	if !ok {
		return
	}
	pipelineID, ok := pathID(c)
	if !ok {
		return
	}

	resp, err := h.dist.GetRule(c.Request.Context(), tenantID, pipelineID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, resp)
}

func (h *PipelineHandler) SaveDistribution(c *gin.Context) {
	_, tenantID, ok := httpkit.MustGetTenant(c)
	if !ok {
		return
	}
	pipelineID, ok := pathID(c)
	if !ok {
		return
	}

	var req transport.SaveDistributionRuleRequest
	if !bindJSON(c, h.val, &req) {
		return
	}

	resp, err := h.dist.SaveRule(c.Request.Context(), tenantID, pipelineID, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, resp)
}

func (h *PipelineHandler) ResetDistribution(c *gin.Context) {
	_, tenantID, ok := httpkit.MustGetTenant(c)
	if !ok {
		return
	}
	pipelineID, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.dist.ResetCursor(c.Request.Context(), tenantID, pipelineID); httpkit.HandleError(c, err) {
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *PipelineHandler) PreviewDistribution(c *gin.Context) {
	_, tenantID, ok := httpkit.MustGetTenant(c)
	if !ok {
		return
	}
	pipelineID, ok := pathID(c)
	if !ok {
		return
	}

	resp, err := h.dist.Preview(c.Request.Context(), tenantID, pipelineID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, resp)
}

func (h *PipelineHandler) DistributionStats(c *gin.Context) {
	_, tenantID, ok := httpkit.MustGetTenant(c)
	if !ok {
		return
	}
	pipelineID, ok := pathID(c)
	if !ok {
		return
	}

	resp, err := h.dist.Stats(c.Request.Context(), tenantID, pipelineID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, resp)
}

func (h *PipelineHandler) GetRules(c *gin.Context) {
	_, tenantID, ok := httpkit.MustGetTenant(c)
	if !ok {
		return
	}
	pipelineID, ok := pathID(c)
	if !ok {
		return
	}

	resp, err := h.qual.GetRules(c.Request.Context(), tenantID, pipelineID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, resp)
}

func (h *PipelineHandler) SaveRules(c *gin.Context) {
	id, tenantID, ok := httpkit.MustGetTenant(c)
	if !ok {
		return
	}
	pipelineID, ok := pathID(c)
	if !ok {
		return
	}

	var req transport.QualificationRulesRequest
	if !bindJSON(c, h.val, &req) {
		return
	}

	actorID := id.UserID()
	resp, err := h.qual.SaveRules(c.Request.Context(), tenantID, pipelineID, transport.RuleSetFromRequest(req), &actorID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, resp)
}

func (h *PipelineHandler) Reevaluate(c *gin.Context) {
	_, tenantID, ok := httpkit.MustGetTenant(c)
	if !ok {
		return
	}
	pipelineID, ok := pathID(c)
	if !ok {
		return
	}

	resp, err := h.qual.ReevaluatePipeline(c.Request.Context(), tenantID, pipelineID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, resp)
}

// QualificationStats reports lifecycle counts for the tenant, optionally
// narrowed by the pipelineId query parameter.
func (h *PipelineHandler) QualificationStats(c *gin.Context) {
	_, tenantID, ok := httpkit.MustGetTenant(c)
	if !ok {
		return
	}

	var pipelineID *uuid.UUID
	if raw := c.Query("pipelineId"); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
			return
		}
		pipelineID = &parsed
	}

	resp, err := h.qual.Stats(c.Request.Context(), tenantID, pipelineID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, resp)
}
