package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/justsurfingit/ats-backend/internal/dtos"
	"github.com/justsurfingit/ats-backend/internal/models"
	"github.com/justsurfingit/ats-backend/internal/services"
)

type UserHandler struct {
	Users UserStore
	Audit Auditor
}

func NewUserHandler(us UserStore, a Auditor) *UserHandler {
	return &UserHandler{Users: us, Audit: a}
}

func (h *UserHandler) List(c *gin.Context) {
	users, err := h.Users.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

func (h *UserHandler) Create(c *gin.Context) {
	var req dtos.UserCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	u, err := h.Users.Create(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	audit(c, h.Audit, "user.create", "user", u.ID, gin.H{"email": u.Email, "role": u.Role})
	c.JSON(http.StatusCreated, u)
}

// Update is PATCH /users/:id. Admins cannot lock themselves out.
func (h *UserHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dtos.UserUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if me := currentUser(c); me != nil && me.ID == id {
		if (req.Active != nil && !*req.Active) || (req.Role != nil && *req.Role != models.RoleAdmin) {
			respondError(c, fmt.Errorf("cannot deactivate or demote your own account: %w", services.ErrInvalidInput))
			return
		}
	}
	u, err := h.Users.Update(c.Request.Context(), id, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	details := gin.H{}
	if req.Role != nil {
		details["role"] = *req.Role
	}
	if req.Active != nil {
		details["active"] = *req.Active
	}
	if req.Password != nil {
		details["password_changed"] = true
	}
	audit(c, h.Audit, "user.update", "user", id, details)
	c.JSON(http.StatusOK, u)
}
