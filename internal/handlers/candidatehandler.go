package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/justsurfingit/ats-backend/internal/dtos"
)

type CandidateHandler struct {
	Candidates CandidateStore
	Audit      Auditor
}

func NewCandidateHandler(cs CandidateStore, a Auditor) *CandidateHandler {
	return &CandidateHandler{Candidates: cs, Audit: a}
}

// List is GET /candidates?q=&status=&skill=&page=&page_size=
func (h *CandidateHandler) List(c *gin.Context) {
	var f dtos.CandidateFilter
	if err := c.ShouldBindQuery(&f); err != nil {
		badRequest(c, err)
		return
	}
	page, err := h.Candidates.List(c.Request.Context(), f)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *CandidateHandler) Create(c *gin.Context) {
	var req dtos.CandidateCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	cand, err := h.Candidates.Create(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	audit(c, h.Audit, "candidate.create", "candidate", cand.ID, gin.H{"email": cand.Email})
	c.JSON(http.StatusCreated, cand)
}

// Get returns the candidate with all child records.
func (h *CandidateHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	cand, err := h.Candidates.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cand)
}

func (h *CandidateHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dtos.CandidateUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	cand, err := h.Candidates.Update(c.Request.Context(), id, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	audit(c, h.Audit, "candidate.update", "candidate", id, req)
	c.JSON(http.StatusOK, cand)
}

func (h *CandidateHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.Candidates.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	audit(c, h.Audit, "candidate.delete", "candidate", id, nil)
	c.Status(http.StatusNoContent)
}

// ReplaceProfile is PUT /candidates/:id/profile
func (h *CandidateHandler) ReplaceProfile(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var prof dtos.CandidateProfile
	if err := c.ShouldBindJSON(&prof); err != nil {
		badRequest(c, err)
		return
	}
	cand, err := h.Candidates.ReplaceProfile(c.Request.Context(), id, &prof)
	if err != nil {
		respondError(c, err)
		return
	}
	audit(c, h.Audit, "candidate.profile", "candidate", id, gin.H{
		"skills":           len(prof.Skills),
		"work_experiences": len(prof.WorkExperiences),
		"educations":       len(prof.Educations),
	})
	c.JSON(http.StatusOK, cand)
}
