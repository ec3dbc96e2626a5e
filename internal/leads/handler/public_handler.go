package handler

import (
	"net/http"

	"crm_backend/internal/leads/management"
	"crm_backend/internal/leads/transport"
	"crm_backend/platform/httpkit"
	"crm_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

// PublicHandler handles unauthenticated lead capture.
type PublicHandler struct {
	mgmt    *management.Service
	val     *validator.Validator
	limiter *httpkit.IPRateLimiter
}

// publicCaptureResponse exposes only the new lead identifier.
type publicCaptureResponse struct {
	LeadID string `json:"leadId"`
}

// NewPublicHandler creates a new public capture handler.
func NewPublicHandler(mgmt *management.Service, val *validator.Validator, limiter *httpkit.IPRateLimiter) *PublicHandler {
	return &PublicHandler{mgmt: mgmt, val: val, limiter: limiter}
}

// RegisterRoutes registers routes under /public/pipelines.
func (h *PublicHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/:id/leads", h.limiter.RateLimit(), h.CaptureForm)
}

// CaptureForm creates a lead from a website form.
func (h *PublicHandler) CaptureForm(c *gin.Context) {
	pipelineID, ok := pathID(c)
	if !ok {
		return
	}

	var req transport.FormCaptureRequest
	if !bindJSON(c, h.val, &req) {
		return
	}

	lead, err := h.mgmt.CaptureForm(c.Request.Context(), pipelineID, req)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.JSON(c, http.StatusCreated, publicCaptureResponse{LeadID: lead.ID.String()})
}
