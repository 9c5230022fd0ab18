package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/justsurfingit/ats-backend/internal/auth"
	"github.com/justsurfingit/ats-backend/internal/dtos"
	"github.com/justsurfingit/ats-backend/internal/models"
	"gorm.io/gorm"
)

type AuthService struct {
	DB  *gorm.DB
	TTL time.Duration
	now func() time.Time
}

func NewAuthService(db *gorm.DB, ttl time.Duration) *AuthService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &AuthService{DB: db, TTL: ttl, now: time.Now}
}

// ClientInfo is recorded with each session.
type ClientInfo struct {
	IP        string
	UserAgent string
}

var errBadCredentials = fmt.Errorf("invalid email or password: %w", ErrUnauthorized)

// Login checks the credentials and opens a session.
func (s *AuthService) Login(ctx context.Context, req *dtos.LoginRequest, client ClientInfo) (*dtos.LoginResponse, error) {
	var u models.User
	err := s.DB.WithContext(ctx).Where("lower(email) = ?", normalizeEmail(req.Email)).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errBadCredentials
	}
	if err != nil {
		return nil, err
	}
	if !u.Active {
		return nil, fmt.Errorf("account is disabled: %w", ErrUnauthorized)
	}
	if err := auth.CheckPassword(u.PasswordHash, req.Password); err != nil {
		return nil, errBadCredentials
	}

	token, hash, err := auth.NewSessionToken()
	if err != nil {
		return nil, err
	}
	now := s.now()
	sess := &models.UserSession{
		UserID:    u.ID,
		TokenHash: hash,
		ExpiresAt: now.Add(s.TTL),
		IPAddress: client.IP,
		UserAgent: truncateUTF8(client.UserAgent, 255),
	}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(sess).Error; err != nil {
			return err
		}
		return tx.Model(&u).Update("last_login_at", now).Error
	})
	if err != nil {
		return nil, err
	}
	u.LastLoginAt = &now
	return &dtos.LoginResponse{Token: token, ExpiresAt: sess.ExpiresAt, User: u}, nil
}

// Authenticate resolves a bearer token to its active user.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*models.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("missing token: %w", ErrUnauthorized)
	}
	var sess models.UserSession
	err := s.DB.WithContext(ctx).Preload("User").
		Where("token_hash = ? AND NOT revoked AND expires_at > ?", auth.HashToken(token), s.now()).
		First(&sess).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("invalid or expired token: %w", ErrUnauthorized)
	}
	if err != nil {
		return nil, err
	}
	if sess.User == nil || !sess.User.Active {
		return nil, fmt.Errorf("account is disabled: %w", ErrUnauthorized)
	}
	return sess.User, nil
}

// Logout revokes the session behind token. Unknown tokens are ignored.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	return s.DB.WithContext(ctx).Model(&models.UserSession{}).
		Where("token_hash = ?", auth.HashToken(token)).
		Update("revoked", true).Error
}
