package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/justsurfingit/ats-backend/internal/dtos"
	"github.com/justsurfingit/ats-backend/internal/services"
)

// audit records a mutation made by the current user. A nil Auditor is a no-op.
func audit(c *gin.Context, a Auditor, action, entity string, id uint, details any) {
	if a == nil {
		return
	}
	a.Record(c.Request.Context(), services.AuditEntry{
		UserID:     actorID(c),
		Action:     action,
		EntityType: entity,
		EntityID:   id,
		Details:    details,
		IPAddress:  c.ClientIP(),
	})
}

type AuditHandler struct {
	Audit Auditor
}

func NewAuditHandler(a Auditor) *AuditHandler {
	return &AuditHandler{Audit: a}
}

// List is GET /audit-logs
func (h *AuditHandler) List(c *gin.Context) {
	var f dtos.AuditFilter
	if err := c.ShouldBindQuery(&f); err != nil {
		badRequest(c, err)
		return
	}
	logs, err := h.Audit.List(c.Request.Context(), f)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, logs)
}
