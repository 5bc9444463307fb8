package handlers

import (
	"context"
	"io"

	"sms-gateway-dashboard/internal/extract"
	"sms-gateway-dashboard/internal/models"
	"sms-gateway-dashboard/internal/services"
)

// UserServiceInterface defines the contract for user service operations
// This interface is used for dependency injection and testing
type UserServiceInterface interface {
	Authenticate(username, password, totpCode string) (*models.User, error)
	GetUser(id string) (*models.User, error)
	ChangePassword(id, oldPassword, newPassword string) error

	// 2FA/TOTP methods
	GenerateTOTPSecret(userID string) (string, error)
	EnableTOTP(userID, totpCode string) error
	DisableTOTP(userID string) error
}

// ParticipantServiceInterface defines the contract for the participant list
type ParticipantServiceInterface interface {
	List(ctx context.Context) ([]*models.Participant, error)
	Create(ctx context.Context, req models.CreateParticipantRequest) (*models.Participant, error)
	History(ctx context.Context, id int64) ([]*models.SentMessage, error)
	ImportExcel(ctx context.Context, r io.Reader) (*models.ImportResult, error)
	ExportExcel(ctx context.Context) ([]byte, error)
}

// ConversationServiceInterface defines the contract for message history
type ConversationServiceInterface interface {
	Unread(ctx context.Context) ([]*models.UnreadMessage, error)
	MarkRead(ctx context.Context, id int64) error
	MarkConversationRead(ctx context.Context, key string) (int64, error)
	Archive(ctx context.Context) ([]*models.ConversationEntry, error)
	Conversation(ctx context.Context, key string) ([]*models.ConversationEntry, error)
	AddReceived(ctx context.Context, req models.AddReceivedRequest) (*models.ReceivedMessage, error)
}

// SyncServiceInterface defines the contract for pulling messages from the device
type SyncServiceInterface interface {
	SyncAll(ctx context.Context) (*models.SyncResult, error)
	SyncUnread(ctx context.Context) (*models.SyncResult, error)
	State() models.SyncState
	LastResult() *models.SyncResult
}

// SendServiceInterface defines the contract for outbound SMS
type SendServiceInterface interface {
	Quick(ctx context.Context, req models.SendQuickRequest) (*models.SendQuickResult, error)
	SendOne(ctx context.Context, req models.SendQuickRequest) (*models.SendQuickResult, error)
	SendBulk(ctx context.Context, req models.BulkSendRequest) (*models.BulkSendResult, error)
	StartBulk(ctx context.Context, req models.BulkSendRequest) (<-chan *models.BulkSendResult, error)
	Progress() models.SendProgress
}

// DeviceServiceInterface defines the contract for device reachability
type DeviceServiceInterface interface {
	Health(ctx context.Context) *services.DeviceStatus
	Connection(ctx context.Context) *services.DeviceStatus
}

// WebhookServiceInterface defines the contract for device push deliveries
type WebhookServiceInterface interface {
	Authorize(presented string) error
	Decode(body []byte) ([]extract.Record, error)
	Process(ctx context.Context, items []extract.Record) *models.WebhookResult
}
