package dtos

import "time"

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      any       `json:"user"`
}

type UserCreateRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Name     string `json:"name"`
	Password string `json:"password" binding:"required,min=8"`
	Role     string `json:"role" binding:"required,oneof=admin recruiter viewer"`
}

type UserUpdateRequest struct {
	Name     *string `json:"name"`
	Role     *string `json:"role" binding:"omitempty,oneof=admin recruiter viewer"`
	Active   *bool   `json:"active"`
	Password *string `json:"password" binding:"omitempty,min=8"`
}

type AuditFilter struct {
	EntityType string `form:"entity_type"`
	EntityID   uint   `form:"entity_id"`
	UserID     uint   `form:"user_id"`
	Limit      int    `form:"limit" binding:"gte=0,lte=500"`
}
