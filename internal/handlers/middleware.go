package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/justsurfingit/ats-backend/internal/models"
	"github.com/justsurfingit/ats-backend/internal/services"
)

const (
	ctxUser   = "user"
	ctxUserID = "user_id"
	ctxToken  = "token"
)

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.User, error)
}

// RequireAuth resolves the bearer token to a user or rejects the request.
func RequireAuth(a Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		u, err := a.Authenticate(c.Request.Context(), token)
		if err != nil {
			respondError(c, err)
			return
		}
		c.Set(ctxUser, u)
		c.Set(ctxUserID, u.ID)
		c.Set(ctxToken, strings.TrimSpace(token))
		c.Next()
	}
}

// RequireRole lets through users whose role is at least min.
func RequireRole(min string) gin.HandlerFunc {
	return func(c *gin.Context) {
		u := currentUser(c)
		if u == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
			return
		}
		if !models.RoleAtLeast(u.Role, min) {
			respondError(c, fmt.Errorf("%s role required: %w", min, services.ErrForbidden))
			return
		}
		c.Next()
	}
}

func currentUser(c *gin.Context) *models.User {
	v, ok := c.Get(ctxUser)
	if !ok {
		return nil
	}
	u, _ := v.(*models.User)
	return u
}

// actorID is the current user's ID for audit and history rows.
func actorID(c *gin.Context) *uint {
	if u := currentUser(c); u != nil {
		id := u.ID
		return &id
	}
	return nil
}
