package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/justsurfingit/ats-backend/internal/dtos"
)

type MatchHandler struct {
	Matcher Matcher
	Audit   Auditor
}

func NewMatchHandler(m Matcher, a Auditor) *MatchHandler {
	return &MatchHandler{Matcher: m, Audit: a}
}

// Recompute is POST /jobs/:id/matches
func (h *MatchHandler) Recompute(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	matches, err := h.Matcher.RecomputeForJob(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	audit(c, h.Audit, "match.recompute", "job", id, gin.H{"matches": len(matches)})
	c.JSON(http.StatusOK, matches)
}

// ForJob is GET /jobs/:id/matches?min_score=
func (h *MatchHandler) ForJob(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var f dtos.MatchFilter
	if err := c.ShouldBindQuery(&f); err != nil {
		badRequest(c, err)
		return
	}
	matches, err := h.Matcher.ListForJob(c.Request.Context(), id, f.MinScore)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, matches)
}

// ForCandidate is GET /candidates/:id/matches
func (h *MatchHandler) ForCandidate(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	matches, err := h.Matcher.ListForCandidate(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, matches)
}
