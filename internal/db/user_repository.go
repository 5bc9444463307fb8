package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"sms-gateway-dashboard/internal/models"

	"github.com/google/uuid"
)

// ErrUserNotFound is returned by Update when no row has the user's id
var ErrUserNotFound = errors.New("user not found")

// UserRepository is the data access for staff accounts
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id string) (*models.User, error)
	GetByUsername(username string) (*models.User, error)
	Update(user *models.User) error
}

type userRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db *sql.DB) UserRepository {
	return &userRepository{db: db}
}

// userFields lists the mutable columns in the order userArgs returns them
const userFields = `username, password_hash, totp_secret, totp_enabled, active,
	failed_login_attempts, locked_until, last_login, updated_at`

func userArgs(u *models.User) []any {
	return []any{u.Username, u.PasswordHash, u.TOTPSecret, u.TOTPEnabled, u.Active,
		u.FailedLoginAttempts, u.LockedUntil, u.LastLogin, u.UpdatedAt}
}

// Create inserts a user, generating its id when missing
func (r *userRepository) Create(user *models.User) error {
	if user == nil {
		return errors.New("user cannot be nil")
	}
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	user.CreatedAt = time.Now().Unix()
	user.UpdatedAt = user.CreatedAt

	args := append([]any{user.ID, user.CreatedAt}, userArgs(user)...)
	_, err := r.db.Exec(`INSERT INTO users (id, created_at, `+userFields+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, args...)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetByID returns nil, nil when no user has this id
func (r *userRepository) GetByID(id string) (*models.User, error) {
	if id == "" {
		return nil, errors.New("user ID cannot be empty")
	}
	return r.getBy("id", id)
}

// GetByUsername returns nil, nil when no user has this username
func (r *userRepository) GetByUsername(username string) (*models.User, error) {
	if username == "" {
		return nil, errors.New("username cannot be empty")
	}
	return r.getBy("username", username)
}

func (r *userRepository) getBy(column, value string) (*models.User, error) {
	u := &models.User{}
	err := r.db.QueryRow(`SELECT id, created_at, `+userFields+` FROM users WHERE `+column+` = ?`, value).Scan(
		&u.ID, &u.CreatedAt, &u.Username, &u.PasswordHash, &u.TOTPSecret, &u.TOTPEnabled, &u.Active,
		&u.FailedLoginAttempts, &u.LockedUntil, &u.LastLogin, &u.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by %s: %w", column, err)
	}
	return u, nil
}

// Update writes every mutable column of an existing user
func (r *userRepository) Update(user *models.User) error {
	if user == nil {
		return errors.New("user cannot be nil")
	}
	if user.ID == "" {
		return errors.New("user ID cannot be empty")
	}
	user.UpdatedAt = time.Now().Unix()

	result, err := r.db.Exec(`UPDATE users SET username = ?, password_hash = ?, totp_secret = ?,
		totp_enabled = ?, active = ?, failed_login_attempts = ?, locked_until = ?, last_login = ?,
		updated_at = ? WHERE id = ?`, append(userArgs(user), user.ID)...)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	} else if n == 0 {
		return ErrUserNotFound
	}
	return nil
}
