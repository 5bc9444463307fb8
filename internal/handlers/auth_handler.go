package handlers

import (
	"errors"
	"net/http"

	"sms-gateway-dashboard/internal/config"
	"sms-gateway-dashboard/internal/models"
	"sms-gateway-dashboard/internal/services"
	"sms-gateway-dashboard/pkg/logger"
	"sms-gateway-dashboard/pkg/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AuthHandler handles authentication-related requests
type AuthHandler struct {
	config      *config.Config
	userService UserServiceInterface
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(cfg *config.Config, userService UserServiceInterface) *AuthHandler {
	return &AuthHandler{config: cfg, userService: userService}
}

// Login handles user authentication and returns a JWT token
func (h *AuthHandler) Login(c *gin.Context) {
	logger.Info("Auth login endpoint called")
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if req.Username == "" || req.Password == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Username and password are required"})
			return
		}
		logger.Warn("Failed to parse login request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	user, err := h.userService.Authenticate(req.Username, req.Password, req.TOTPCode)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrAccountLocked):
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		case errors.Is(err, services.ErrAccountInactive):
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		case errors.Is(err, services.ErrInvalidTOTP):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid 2FA code", "totp_required": true})
		case errors.Is(err, services.ErrInvalidCredentials):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		default:
			logger.Error("Login failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		}
		return
	}

	token, err := middleware.GenerateToken(user.ID, user.Username, h.config)
	if err != nil {
		logger.Error("Failed to generate token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"token":    token,
		"username": user.Username,
		"message":  "Login successful",
	})
}

// Logout acknowledges a logout. Tokens are stateless and simply expire.
func (h *AuthHandler) Logout(c *gin.Context) {
	logger.Info("User logged out", zap.String("user_id", c.GetString(middleware.UserIDKey)))
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// VerifyToken returns the account behind a still valid token
func (h *AuthHandler) VerifyToken(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "user": user.ToResponse()})
}

// ChangePassword changes the password of the logged in user
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req models.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid password change request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	userID := c.GetString(middleware.UserIDKey)
	if err := h.userService.ChangePassword(userID, req.OldPassword, req.NewPassword); err != nil {
		logger.Warn("Password change failed", zap.String("user_id", userID), zap.Error(err))
		switch {
		case errors.Is(err, services.ErrUserNotFound):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "User not found"})
		case errors.Is(err, services.ErrIncorrectOldPassword), errors.Is(err, services.ErrInvalidPassword):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		}
		return
	}

	logger.Info("Password changed successfully", zap.String("user_id", userID))
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Password changed successfully"})
}

// SetupTOTP creates a fresh authenticator secret for the logged in user
func (h *AuthHandler) SetupTOTP(c *gin.Context) {
	userID := c.GetString(middleware.UserIDKey)
	secret, err := h.userService.GenerateTOTPSecret(userID)
	if err != nil {
		h.totpError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"secret": secret})
}

// EnableTOTP turns on 2FA after checking a first code
func (h *AuthHandler) EnableTOTP(c *gin.Context) {
	var req models.TOTPCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Code is required"})
		return
	}
	if err := h.userService.EnableTOTP(c.GetString(middleware.UserIDKey), req.Code); err != nil {
		h.totpError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "totp_enabled": true})
}

// DisableTOTP turns 2FA off
func (h *AuthHandler) DisableTOTP(c *gin.Context) {
	if err := h.userService.DisableTOTP(c.GetString(middleware.UserIDKey)); err != nil {
		h.totpError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "totp_enabled": false})
}

func (h *AuthHandler) totpError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrUserNotFound):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not found"})
	case errors.Is(err, services.ErrInvalidTOTP), errors.Is(err, services.ErrTOTPNotGenerated):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		logger.Error("TOTP operation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

func (h *AuthHandler) currentUser(c *gin.Context) (*models.User, bool) {
	user, err := h.userService.GetUser(c.GetString(middleware.UserIDKey))
	if err != nil || user == nil {
		if err != nil && !errors.Is(err, services.ErrUserNotFound) {
			logger.Error("Failed to load user", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return nil, false
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not found"})
		return nil, false
	}
	return user, true
}
