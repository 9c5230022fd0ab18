package services

import (
	"context"
	"errors"
	"strings"

	"github.com/justsurfingit/ats-backend/internal/auth"
	"github.com/justsurfingit/ats-backend/internal/dtos"
	"github.com/justsurfingit/ats-backend/internal/models"
	"gorm.io/gorm"
)

type UserService struct {
	DB *gorm.DB
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{DB: db}
}

func (s *UserService) List(ctx context.Context) ([]models.User, error) {
	out := []models.User{}
	err := s.DB.WithContext(ctx).Order("id").Find(&out).Error
	return out, err
}

func (s *UserService) Create(ctx context.Context, req *dtos.UserCreateRequest) (*models.User, error) {
	if !models.ValidRole(req.Role) {
		return nil, invalid("unknown role %q", req.Role)
	}
	hash, err := auth.HashPassword(req.Password)
	if errors.Is(err, auth.ErrWeakPassword) {
		return nil, invalid("%v", err)
	}
	if err != nil {
		return nil, err
	}
	u := &models.User{
		Email:        normalizeEmail(req.Email),
		Name:         strings.TrimSpace(req.Name),
		PasswordHash: hash,
		Role:         req.Role,
		Active:       true,
	}
	if err := s.DB.WithContext(ctx).Create(u).Error; err != nil {
		return nil, dbError(err, "user with this email")
	}
	return u, nil
}

// Update changes a user. Deactivating a user or changing the password revokes
// their open sessions.
func (s *UserService) Update(ctx context.Context, id uint, req *dtos.UserUpdateRequest) (*models.User, error) {
	var u models.User
	if err := s.DB.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, dbError(err, "user")
	}

	updates := map[string]any{}
	revoke := false
	if req.Name != nil {
		updates["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Role != nil {
		if !models.ValidRole(*req.Role) {
			return nil, invalid("unknown role %q", *req.Role)
		}
		updates["role"] = *req.Role
	}
	if req.Active != nil {
		updates["active"] = *req.Active
		revoke = revoke || !*req.Active
	}
	if req.Password != nil {
		hash, err := auth.HashPassword(*req.Password)
		if errors.Is(err, auth.ErrWeakPassword) {
			return nil, invalid("%v", err)
		}
		if err != nil {
			return nil, err
		}
		updates["password_hash"] = hash
		revoke = true
	}
	if len(updates) == 0 {
		return &u, nil
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&u).Updates(updates).Error; err != nil {
			return err
		}
		if !revoke {
			return nil
		}
		return tx.Model(&models.UserSession{}).Where("user_id = ?", u.ID).Update("revoked", true).Error
	})
	if err != nil {
		return nil, dbError(err, "user")
	}
	if err := s.DB.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, dbError(err, "user")
	}
	return &u, nil
}
