package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/provigil/proctor-backend/internal/config"
	"github.com/provigil/proctor-backend/internal/model"
)

func newAuthService() *AuthService {
	cfg := &config.Config{
		JWTSecret:  "test-secret",
		JWTExpiry:  time.Hour,
		BcryptCost: 4, // minimum cost, tests only
	}
	return NewAuthService(newFakeUserStore(), cfg, nil)
}

func TestPasswordHashRoundTrip(t *testing.T) {
	s := newAuthService()
	hash, err := s.HashPassword("hunter2")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if err := s.CheckPassword(hash, "hunter2"); err != nil {
		t.Errorf("correct password rejected: %v", err)
	}
	if err := s.CheckPassword(hash, "hunter3"); err != ErrInvalidCredentials {
		t.Errorf("wrong password err = %v, want ErrInvalidCredentials", err)
	}
}

func TestStaffTokenRoundTrip(t *testing.T) {
	s := newAuthService()
	token, err := s.GenerateStaffToken(42)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	claims, err := s.ValidateToken(token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.TokenType != TokenTypeStaff || claims.UserID != 42 {
		t.Errorf("claims = %+v", claims)
	}
}

func TestValidateTokenRejectsTampering(t *testing.T) {
	s := newAuthService()
	token, _ := s.GenerateStaffToken(42)

	other := newAuthService()
	other.cfg.JWTSecret = "different-secret"
	if _, err := other.ValidateToken(token); err == nil {
		t.Error("token signed with another secret was accepted")
	}
}

func TestGetUser(t *testing.T) {
	users := newFakeUserStore()
	users.users[7] = &model.User{ID: 7, Username: "learner", IsStaff: false}
	s := NewAuthService(users, &config.Config{JWTSecret: "test-secret"}, nil)

	u, err := s.GetUser(context.Background(), 7)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if u.Username != "learner" {
		t.Errorf("username = %q", u.Username)
	}

	if _, err := s.GetUser(context.Background(), 99); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("err = %v, want ErrUserNotFound", err)
	}
}
