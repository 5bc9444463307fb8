package services

import (
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sms-gateway-dashboard/internal/config"
	"sms-gateway-dashboard/internal/db"
	"sms-gateway-dashboard/pkg/utils"
)

func setupTestUserService(t *testing.T) *UserService {
	database := db.SetupTestDB(t)
	return NewUserService(db.NewUserRepository(database))
}

func TestUserService_CreateUser(t *testing.T) {
	tests := []struct {
		name     string
		username string
		password string
		wantErr  error
	}{
		{name: "valid", username: "front_desk", password: "password123"},
		{name: "username too short", username: "ab", password: "password123", wantErr: ErrInvalidUsername},
		{name: "username with spaces", username: "front desk", password: "password123", wantErr: ErrInvalidUsername},
		{name: "password too short", username: "coach1", password: "short", wantErr: ErrInvalidPassword},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := setupTestUserService(t)
			user, err := svc.CreateUser(tt.username, tt.password)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, user)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, user.ID)
			assert.True(t, user.Active)
			assert.NotEqual(t, tt.password, user.PasswordHash)
		})
	}
}

func TestUserService_CreateUser_Duplicate(t *testing.T) {
	svc := setupTestUserService(t)
	_, err := svc.CreateUser("admin", "password123")
	require.NoError(t, err)

	_, err = svc.CreateUser("admin", "password456")
	assert.ErrorIs(t, err, ErrUserExists)
}

func TestUserService_EnsureUser(t *testing.T) {
	svc := setupTestUserService(t)

	_, err := svc.EnsureUser("admin", "")
	assert.ErrorIs(t, err, ErrInvalidPassword)

	created, err := svc.EnsureUser("admin", "changeme123")
	require.NoError(t, err)
	assert.True(t, created)

	// A second call keeps the first password
	created, err = svc.EnsureUser("admin", "other-password")
	require.NoError(t, err)
	assert.False(t, created)

	_, err = svc.Authenticate("admin", "changeme123", "")
	assert.NoError(t, err)
	_, err = svc.Authenticate("admin", "other-password", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestUserService_Authenticate(t *testing.T) {
	svc := setupTestUserService(t)
	created, err := svc.CreateUser("admin", "password123")
	require.NoError(t, err)

	user, err := svc.Authenticate("admin", "password123", "")
	require.NoError(t, err)
	assert.Equal(t, created.ID, user.ID)
	require.NotNil(t, user.LastLogin)

	_, err = svc.Authenticate("admin", "wrong-password", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Authenticate("nobody", "password123", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	stored, err := svc.GetUser(created.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.FailedLoginAttempts)

	_, err = svc.Authenticate("admin", "password123", "")
	require.NoError(t, err)
	stored, err = svc.GetUser(created.ID)
	require.NoError(t, err)
	assert.Zero(t, stored.FailedLoginAttempts, "success resets the counter")
}

func TestUserService_AccountLockout(t *testing.T) {
	svc := setupTestUserService(t)
	_, err := svc.CreateUser("admin", "password123")
	require.NoError(t, err)

	for i := 0; i < MaxFailedLoginAttempts; i++ {
		_, err = svc.Authenticate("admin", "wrong-password", "")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	}

	_, err = svc.Authenticate("admin", "password123", "")
	assert.ErrorIs(t, err, ErrAccountLocked, "locked even with the right password")

	svc.now = func() time.Time { return time.Now().Add(LockoutDuration + time.Minute) }
	_, err = svc.Authenticate("admin", "password123", "")
	assert.NoError(t, err, "lock expires")
}

func TestUserService_TOTP(t *testing.T) {
	svc := setupTestUserService(t)
	user, err := svc.CreateUser("admin", "password123")
	require.NoError(t, err)

	assert.ErrorIs(t, svc.EnableTOTP(user.ID, "123456"), ErrTOTPNotGenerated)

	secret, err := svc.GenerateTOTPSecret(user.ID)
	require.NoError(t, err)
	require.NotEmpty(t, secret)

	assert.ErrorIs(t, svc.EnableTOTP(user.ID, "000000"), ErrInvalidTOTP)

	code, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)
	require.NoError(t, svc.EnableTOTP(user.ID, code))

	_, err = svc.Authenticate("admin", "password123", "")
	assert.ErrorIs(t, err, ErrInvalidTOTP)

	code, err = totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)
	_, err = svc.Authenticate("admin", "password123", code)
	assert.NoError(t, err)

	require.NoError(t, svc.DisableTOTP(user.ID))
	_, err = svc.Authenticate("admin", "password123", "")
	assert.NoError(t, err)
}

func TestUserService_TOTPEncrypted(t *testing.T) {
	database := db.SetupTestDB(t)
	repo := db.NewUserRepository(database)
	cfg := config.DefaultConfig()
	cfg.Security.EncryptionKey = "0123456789abcdef0123456789abcdef"
	svc, err := NewUserServiceWithEncryption(repo, cfg)
	require.NoError(t, err)

	user, err := svc.CreateUser("admin", "password123")
	require.NoError(t, err)
	secret, err := svc.GenerateTOTPSecret(user.ID)
	require.NoError(t, err)

	stored, err := repo.GetByID(user.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.TOTPSecret)
	assert.NotEqual(t, secret, *stored.TOTPSecret, "secret is encrypted at rest")
	assert.True(t, utils.IsSealed(*stored.TOTPSecret))

	code, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)
	assert.NoError(t, svc.EnableTOTP(user.ID, code))
}

func TestUserService_InvalidEncryptionKey(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Security.EncryptionKey = "short"

	_, err := NewUserServiceWithEncryption(db.NewUserRepository(db.SetupTestDB(t)), cfg)
	assert.ErrorIs(t, err, utils.ErrInvalidKeyLength)
}

func TestUserService_ChangePassword(t *testing.T) {
	svc := setupTestUserService(t)
	user, err := svc.CreateUser("admin", "password123")
	require.NoError(t, err)

	assert.ErrorIs(t, svc.ChangePassword(user.ID, "password123", "short"), ErrInvalidPassword)
	assert.ErrorIs(t, svc.ChangePassword(user.ID, "nope-nope", "newpassword1"), ErrIncorrectOldPassword)
	assert.ErrorIs(t, svc.ChangePassword("missing", "password123", "newpassword1"), ErrUserNotFound)

	require.NoError(t, svc.ChangePassword(user.ID, "password123", "newpassword1"))
	_, err = svc.Authenticate("admin", "newpassword1", "")
	assert.NoError(t, err)
}
