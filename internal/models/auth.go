package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	RoleAdmin     = "admin"
	RoleRecruiter = "recruiter"
	RoleViewer    = "viewer"
)

var roleRank = map[string]int{RoleViewer: 1, RoleRecruiter: 2, RoleAdmin: 3}

func ValidRole(r string) bool {
	_, ok := roleRank[r]
	return ok
}

// RoleAtLeast reports whether role grants at least the privileges of min.
func RoleAtLeast(role, min string) bool {
	return roleRank[role] >= roleRank[min] && roleRank[min] > 0
}

type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Email        string     `gorm:"uniqueIndex;not null" json:"email"`
	Name         string     `json:"name"`
	PasswordHash string     `gorm:"not null" json:"-"`
	Role         string     `gorm:"type:varchar(20);not null;default:'viewer'" json:"role"`
	Active       bool       `gorm:"not null" json:"active"`
	LastLoginAt  *time.Time `json:"last_login_at"`
}

// UserSession stores only the SHA-256 of the bearer token.
type UserSession struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	UserID    uint      `gorm:"not null;index" json:"user_id"`
	User      *User     `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	TokenHash string    `gorm:"type:char(64);uniqueIndex;not null" json:"-"`
	ExpiresAt time.Time `gorm:"not null;index" json:"expires_at"`
	Revoked   bool      `gorm:"not null;default:false" json:"revoked"`
	IPAddress string    `json:"ip_address"`
	UserAgent string    `json:"user_agent"`
}

type AuditLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`

	UserID     *uint          `gorm:"index" json:"user_id"`
	Action     string         `gorm:"not null" json:"action"`
	EntityType string         `gorm:"index:idx_audit_entity" json:"entity_type"`
	EntityID   uint           `gorm:"index:idx_audit_entity" json:"entity_id"`
	Details    datatypes.JSON `json:"details"`
	IPAddress  string         `json:"ip_address"`
}
