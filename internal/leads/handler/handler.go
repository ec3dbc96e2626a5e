package handler

import (
	"net/http"

	"crm_backend/internal/leads/management"
	"crm_backend/internal/leads/qualification"
	"crm_backend/internal/leads/transport"
	"crm_backend/platform/httpkit"
	"crm_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handler serves the authenticated lead endpoints.
type Handler struct {
	mgmt *management.Service
	qual *qualification.Service
	val  *validator.Validator
}

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

func New(mgmt *management.Service, qual *qualification.Service, val *validator.Validator) *Handler {
	return &Handler{mgmt: mgmt, qual: qual, val: val}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Create)
	rg.GET("/:id", h.GetByID)
	rg.PATCH("/:id/data", h.UpdateData)
	rg.POST("/:id/qualify", h.Qualify)
	rg.GET("/:id/history", h.ListHistory)
}

func (h *Handler) Create(c *gin.Context) {
	id, tenantID, ok := httpkit.MustGetTenant(c)
	if !ok {
		return
	}

	var req transport.CreateLeadRequest
	if !bindJSON(c, h.val, &req) {
		return
	}

	actorID := id.UserID()
	lead, err := h.mgmt.CreateLead(c.Request.Context(), tenantID, &actorID, req)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.JSON(c, http.StatusCreated, lead)
}

func (h *Handler) GetByID(c *gin.Context) {
	_, tenantID, ok := httpkit.MustGetTenant(c)
	if !ok {
		return
	}
	leadID, ok := pathID(c)
	if !ok {
		return
	}

	lead, err := h.mgmt.GetLead(c.Request.Context(), tenantID, leadID)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, lead)
}

func (h *Handler) UpdateData(c *gin.Context) {
	_, tenantID, ok := httpkit.MustGetTenant(c)
	if !ok {
		return
	}
	leadID, ok := pathID(c)
	if !ok {
		return
	}

	var req transport.UpdateLeadDataRequest
	if !bindJSON(c, h.val, &req) {
		return
	}

	resp, err := h.mgmt.UpdateLeadData(c.Request.Context(), tenantID, leadID, req.Data)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, resp)
}

// Qualify applies an operator's manual stage change.
func (h *Handler) Qualify(c *gin.Context) {
	id, tenantID, ok := httpkit.MustGetTenant(c)
	if !ok {
		return
	}
	leadID, ok := pathID(c)
	if !ok {
		return
	}

	var req transport.ManualQualificationRequest
	if !bindJSON(c, h.val, &req) {
		return
	}

	resp, err := h.qual.ApplyManualQualification(c.Request.Context(), tenantID, leadID, req, id.UserID())
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, resp)
}

func (h *Handler) ListHistory(c *gin.Context) {
	_, tenantID, ok := httpkit.MustGetTenant(c)
	if !ok {
		return
	}
	leadID, ok := pathID(c)
	if !ok {
		return
	}

	resp, err := h.mgmt.ListHistory(c.Request.Context(), tenantID, leadID)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, resp)
}

func pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return uuid.Nil, false
	}
	return id, true
}

func bindJSON(c *gin.Context, val *validator.Validator, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return false
	}
	if err := val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return false
	}
	return true
}
