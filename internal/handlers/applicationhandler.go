package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/justsurfingit/ats-backend/internal/dtos"
)

type ApplicationHandler struct {
	Applications ApplicationStore
	Audit        Auditor
}

func NewApplicationHandler(as ApplicationStore, a Auditor) *ApplicationHandler {
	return &ApplicationHandler{Applications: as, Audit: a}
}

// List is GET /applications?job_id=&candidate_id=&status=
func (h *ApplicationHandler) List(c *gin.Context) {
	var f dtos.ApplicationFilter
	if err := c.ShouldBindQuery(&f); err != nil {
		badRequest(c, err)
		return
	}
	apps, err := h.Applications.List(c.Request.Context(), f)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, apps)
}

func (h *ApplicationHandler) Create(c *gin.Context) {
	var req dtos.ApplicationCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	app, err := h.Applications.Create(c.Request.Context(), &req, actorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	audit(c, h.Audit, "application.create", "application", app.ID, gin.H{"candidate_id": app.CandidateID, "job_id": app.JobID})
	c.JSON(http.StatusCreated, app)
}

// Get returns the application with its status history.
func (h *ApplicationHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	app, err := h.Applications.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, app)
}

// ChangeStatus is PATCH /applications/:id/status
func (h *ApplicationHandler) ChangeStatus(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dtos.ApplicationStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	app, err := h.Applications.ChangeStatus(c.Request.Context(), id, &req, actorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	audit(c, h.Audit, "application.status", "application", id, gin.H{"status": req.Status, "note": req.Note})
	c.JSON(http.StatusOK, app)
}

func (h *ApplicationHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.Applications.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	audit(c, h.Audit, "application.delete", "application", id, nil)
	c.Status(http.StatusNoContent)
}
