package models

import (
	"time"

	"github.com/google/uuid"
)

// User is a staff account allowed to use the dashboard
type User struct {
	ID                  string  `json:"id"`
	Username            string  `json:"username"`
	PasswordHash        string  `json:"-"` // bcrypt hash
	TOTPSecret          *string `json:"-"` // encrypted when a key is configured
	TOTPEnabled         bool    `json:"totp_enabled"`
	Active              bool    `json:"active"`
	FailedLoginAttempts int     `json:"failed_login_attempts"`
	LockedUntil         *int64  `json:"locked_until,omitempty"` // Unix timestamp
	LastLogin           *int64  `json:"last_login,omitempty"`   // Unix timestamp
	CreatedAt           int64   `json:"created_at"`
	UpdatedAt           int64   `json:"updated_at"`
}

// LoginRequest is the body of POST /login
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	TOTPCode string `json:"totp_code"`
}

// ChangePasswordRequest is the body of a self-service password change
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

// TOTPCodeRequest carries a code from the authenticator app
type TOTPCodeRequest struct {
	Code string `json:"code" binding:"required"`
}

// UserResponse is the safe representation sent to clients
type UserResponse struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	Active      bool   `json:"active"`
	TOTPEnabled bool   `json:"totp_enabled"`
	LastLogin   *int64 `json:"last_login,omitempty"`
	CreatedAt   int64  `json:"created_at"`
}

// NewUser creates an active user with a generated UUID.
// The password must already be hashed.
func NewUser(username, passwordHash string) *User {
	now := time.Now().Unix()
	return &User{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: passwordHash,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// IsLocked returns whether LockedUntil is set and in the future
func (u *User) IsLocked() bool {
	if u.LockedUntil == nil {
		return false
	}
	return *u.LockedUntil > time.Now().Unix()
}

// ToResponse converts User to UserResponse, excluding all sensitive fields
func (u *User) ToResponse() *UserResponse {
	return &UserResponse{
		ID:          u.ID,
		Username:    u.Username,
		Active:      u.Active,
		TOTPEnabled: u.TOTPEnabled,
		LastLogin:   u.LastLogin,
		CreatedAt:   u.CreatedAt,
	}
}
