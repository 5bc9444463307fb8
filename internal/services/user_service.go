package services

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"golang.org/x/crypto/bcrypt"

	"sms-gateway-dashboard/internal/config"
	"sms-gateway-dashboard/internal/db"
	"sms-gateway-dashboard/internal/models"
	"sms-gateway-dashboard/pkg/logger"
	"sms-gateway-dashboard/pkg/utils"

	"github.com/pquerna/otp/totp"
	"go.uber.org/zap"
)

const (
	// BcryptCost is the cost parameter for staff password hashes
	BcryptCost = 12

	// MaxFailedLoginAttempts is the number of failures before the account locks
	MaxFailedLoginAttempts = 5

	// LockoutDuration is how long a locked account stays locked
	LockoutDuration = 30 * time.Minute

	MinPasswordLength = 8
	MinUsernameLength = 3
	MaxUsernameLength = 50

	totpIssuer = "SMS Dashboard"
)

var (
	ErrInvalidCredentials   = errors.New("invalid username or password")
	ErrAccountLocked        = errors.New("account is locked due to too many failed login attempts")
	ErrAccountInactive      = errors.New("user account is inactive")
	ErrInvalidTOTP          = errors.New("invalid TOTP code")
	ErrTOTPNotGenerated     = errors.New("TOTP secret not generated")
	ErrUserNotFound         = errors.New("user not found")
	ErrUserExists           = errors.New("username already exists")
	ErrInvalidUsername      = errors.New("username must be 3-50 characters and contain only alphanumeric characters and underscores")
	ErrInvalidPassword      = errors.New("password must be at least 8 characters")
	ErrIncorrectOldPassword = errors.New("incorrect old password")
)

var validUsername = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// UserService authenticates dashboard staff and manages their credentials
type UserService struct {
	repo   db.UserRepository
	sealer *utils.Sealer
	now    func() time.Time
}

// NewUserService creates a service that stores TOTP secrets in clear text
func NewUserService(repo db.UserRepository) *UserService {
	return &UserService{repo: repo, now: time.Now}
}

// NewUserServiceWithEncryption creates a service that encrypts TOTP secrets
// with the configured key. An empty key keeps them in clear text.
func NewUserServiceWithEncryption(repo db.UserRepository, cfg *config.Config) (*UserService, error) {
	s := NewUserService(repo)
	if cfg == nil || cfg.Security.EncryptionKey == "" {
		return s, nil
	}
	sealer, err := utils.NewSealer(cfg.Security.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("invalid encryption key: %w", err)
	}
	s.sealer = sealer
	return s, nil
}

// CreateUser creates an active staff account
func (s *UserService) CreateUser(username, password string) (*models.User, error) {
	if err := validateUsername(username); err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}

	existing, err := s.repo.GetByUsername(username)
	if err != nil {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}
	if existing != nil {
		return nil, ErrUserExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := models.NewUser(username, string(hash))
	if err := s.repo.Create(user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	logger.Info("Staff account created",
		zap.String("user_id", user.ID),
		zap.String("username", user.Username),
	)
	return user, nil
}

// EnsureUser creates the account unless the username is already taken. An
// existing account keeps its password.
func (s *UserService) EnsureUser(username, password string) (bool, error) {
	_, err := s.CreateUser(username, password)
	if errors.Is(err, ErrUserExists) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Authenticate checks a password and, when enabled, a TOTP code. Failures
// count towards the lockout; a success resets the counter.
func (s *UserService) Authenticate(username, password, totpCode string) (*models.User, error) {
	user, err := s.repo.GetByUsername(username)
	if err != nil {
		logger.Error("Database error during authentication",
			zap.String("username", username),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		logger.Warn("Authentication failed - user not found",
			zap.String("username", username),
			zap.String("event_type", "invalid_credentials"),
		)
		return nil, ErrInvalidCredentials
	}

	if s.lockedNow(user) {
		logger.Warn("Authentication failed - account locked",
			zap.String("user_id", user.ID),
			zap.String("event_type", "account_locked"),
		)
		return nil, ErrAccountLocked
	}
	if user.LockedUntil != nil {
		// lock expired
		user.LockedUntil = nil
		user.FailedLoginAttempts = 0
	}

	if !user.Active {
		logger.Warn("Authentication failed - account inactive",
			zap.String("user_id", user.ID),
			zap.String("event_type", "inactive_account"),
		)
		return nil, ErrAccountInactive
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		if err := s.recordFailure(user); err != nil {
			return nil, err
		}
		logger.Warn("Authentication failed - invalid password",
			zap.String("user_id", user.ID),
			zap.String("event_type", "failed_login"),
		)
		return nil, ErrInvalidCredentials
	}

	if user.TOTPEnabled {
		ok, err := s.checkTOTP(user, totpCode)
		if err != nil {
			return nil, err
		}
		if !ok {
			if err := s.recordFailure(user); err != nil {
				return nil, err
			}
			logger.Warn("Authentication failed - TOTP validation failed",
				zap.String("user_id", user.ID),
				zap.String("event_type", "failed_totp_validation"),
			)
			return nil, ErrInvalidTOTP
		}
	}

	lastLogin := s.now().Unix()
	user.FailedLoginAttempts = 0
	user.LockedUntil = nil
	user.LastLogin = &lastLogin
	if err := s.repo.Update(user); err != nil {
		return nil, fmt.Errorf("failed to record login: %w", err)
	}

	logger.Info("User authenticated successfully",
		zap.String("user_id", user.ID),
		zap.String("username", user.Username),
		zap.String("event_type", "successful_login"),
	)
	return user, nil
}

func (s *UserService) lockedNow(user *models.User) bool {
	return user.LockedUntil != nil && *user.LockedUntil > s.now().Unix()
}

// recordFailure bumps the failure counter and locks the account once it
// reaches MaxFailedLoginAttempts
func (s *UserService) recordFailure(user *models.User) error {
	user.FailedLoginAttempts++
	if user.FailedLoginAttempts >= MaxFailedLoginAttempts {
		until := s.now().Add(LockoutDuration).Unix()
		user.LockedUntil = &until
		logger.Warn("User account locked due to excessive failed login attempts",
			zap.String("user_id", user.ID),
			zap.Int("failed_attempts", user.FailedLoginAttempts),
			zap.Duration("lockout_duration", LockoutDuration),
			zap.String("event_type", "account_lockout"),
		)
	}
	if err := s.repo.Update(user); err != nil {
		logger.Error("Failed to record failed login", zap.String("user_id", user.ID), zap.Error(err))
		return fmt.Errorf("failed to record failed login: %w", err)
	}
	return nil
}

func (s *UserService) secret(user *models.User) (string, error) {
	if user.TOTPSecret == nil || *user.TOTPSecret == "" {
		return "", ErrTOTPNotGenerated
	}
	if s.sealer == nil {
		return *user.TOTPSecret, nil
	}
	plain, err := s.sealer.Open(*user.TOTPSecret)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt TOTP secret: %w", err)
	}
	return plain, nil
}

func (s *UserService) checkTOTP(user *models.User, code string) (bool, error) {
	if code == "" {
		return false, nil
	}
	secret, err := s.secret(user)
	if errors.Is(err, ErrTOTPNotGenerated) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return totp.Validate(code, secret), nil
}

// GetUser returns a user or ErrUserNotFound
func (s *UserService) GetUser(id string) (*models.User, error) {
	if id == "" {
		return nil, errors.New("user ID cannot be empty")
	}
	user, err := s.repo.GetByID(id)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// ChangePassword replaces the password after verifying the current one
func (s *UserService) ChangePassword(id, oldPassword, newPassword string) error {
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	user, err := s.GetUser(id)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(oldPassword)); err != nil {
		logger.Warn("Password change failed - incorrect old password",
			zap.String("user_id", id),
			zap.String("event_type", "password_verification_failed"),
		)
		return ErrIncorrectOldPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), BcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	user.PasswordHash = string(hash)
	if err := s.repo.Update(user); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	logger.Info("Password changed successfully",
		zap.String("user_id", id),
		zap.String("event_type", "password_change"),
	)
	return nil
}

// GenerateTOTPSecret stores a fresh secret and returns it in clear text for
// the authenticator app. 2FA stays disabled until EnableTOTP confirms a code.
func (s *UserService) GenerateTOTPSecret(userID string) (string, error) {
	user, err := s.GetUser(userID)
	if err != nil {
		return "", err
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      totpIssuer,
		AccountName: user.Username,
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate TOTP secret: %w", err)
	}

	stored := key.Secret()
	if s.sealer != nil {
		stored, err = s.sealer.Seal(stored)
		if err != nil {
			return "", fmt.Errorf("failed to encrypt TOTP secret: %w", err)
		}
	}

	user.TOTPSecret = &stored
	if err := s.repo.Update(user); err != nil {
		return "", fmt.Errorf("failed to update TOTP secret: %w", err)
	}
	return key.Secret(), nil
}

// EnableTOTP turns on 2FA once the user proves they can produce codes
func (s *UserService) EnableTOTP(userID, code string) error {
	if code == "" {
		return errors.New("TOTP code cannot be empty")
	}
	user, err := s.GetUser(userID)
	if err != nil {
		return err
	}

	secret, err := s.secret(user)
	if err != nil {
		return err
	}
	if !totp.Validate(code, secret) {
		logger.Warn("Enable 2FA failed - invalid TOTP code",
			zap.String("user_id", userID),
			zap.String("event_type", "invalid_totp_code"),
		)
		return ErrInvalidTOTP
	}

	user.TOTPEnabled = true
	if err := s.repo.Update(user); err != nil {
		return fmt.Errorf("failed to enable TOTP: %w", err)
	}
	logger.Info("2FA enabled", zap.String("user_id", userID), zap.String("event_type", "2fa_enabled"))
	return nil
}

// DisableTOTP turns off 2FA and forgets the secret
func (s *UserService) DisableTOTP(userID string) error {
	user, err := s.GetUser(userID)
	if err != nil {
		return err
	}
	user.TOTPEnabled = false
	user.TOTPSecret = nil
	if err := s.repo.Update(user); err != nil {
		return fmt.Errorf("failed to disable TOTP: %w", err)
	}
	logger.Info("2FA disabled", zap.String("user_id", userID), zap.String("event_type", "2fa_disabled"))
	return nil
}

func validateUsername(username string) error {
	if len(username) < MinUsernameLength || len(username) > MaxUsernameLength {
		return ErrInvalidUsername
	}
	if !validUsername.MatchString(username) {
		return ErrInvalidUsername
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return ErrInvalidPassword
	}
	return nil
}
