package model

import (
	"time"
)

// User is a platform account. Staff accounts manage exams, allowances and
// reviews; learner accounts take attempts.
type User struct {
	ID           int       `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	IsStaff      bool      `json:"is_staff"`
	CreatedAt    time.Time `json:"created_at"`
}

// LoginRequest is the credentials payload for both learner and staff login.
type LoginRequest struct {
	Username string `json:"username" binding:"required,max=255"`
	Password string `json:"password" binding:"required,min=6,max=128"`
}
