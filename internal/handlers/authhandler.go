package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/justsurfingit/ats-backend/internal/dtos"
	"github.com/justsurfingit/ats-backend/internal/models"
	"github.com/justsurfingit/ats-backend/internal/services"
)

type AuthHandler struct {
	Sessions SessionService
	Audit    Auditor
}

func NewAuthHandler(s SessionService, a Auditor) *AuthHandler {
	return &AuthHandler{Sessions: s, Audit: a}
}

// Login is POST /auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req dtos.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	resp, err := h.Sessions.Login(c.Request.Context(), &req, services.ClientInfo{
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	if u, ok := resp.User.(models.User); ok {
		c.Set(ctxUser, &u)
		c.Set(ctxUserID, u.ID)
		audit(c, h.Audit, "auth.login", "user", u.ID, nil)
	}
	c.JSON(http.StatusOK, resp)
}

func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.Sessions.Logout(c.Request.Context(), c.GetString(ctxToken)); err != nil {
		respondError(c, err)
		return
	}
	audit(c, h.Audit, "auth.logout", "user", c.GetUint(ctxUserID), nil)
	c.Status(http.StatusNoContent)
}

// Me returns the authenticated user.
func (h *AuthHandler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, currentUser(c))
}
