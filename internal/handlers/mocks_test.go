package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"sms-gateway-dashboard/internal/extract"
	"sms-gateway-dashboard/internal/models"
	"sms-gateway-dashboard/internal/services"
	"sms-gateway-dashboard/pkg/middleware"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockUserService is a mock implementation of UserServiceInterface for testing
type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) Authenticate(username, password, totpCode string) (*models.User, error) {
	args := m.Called(username, password, totpCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) GetUser(id string) (*models.User, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) ChangePassword(id, oldPassword, newPassword string) error {
	return m.Called(id, oldPassword, newPassword).Error(0)
}

func (m *MockUserService) GenerateTOTPSecret(userID string) (string, error) {
	args := m.Called(userID)
	return args.String(0), args.Error(1)
}

func (m *MockUserService) EnableTOTP(userID, totpCode string) error {
	return m.Called(userID, totpCode).Error(0)
}

func (m *MockUserService) DisableTOTP(userID string) error {
	return m.Called(userID).Error(0)
}

// MockParticipantService is a mock implementation of ParticipantServiceInterface
type MockParticipantService struct {
	mock.Mock
}

func (m *MockParticipantService) List(ctx context.Context) ([]*models.Participant, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Participant), args.Error(1)
}

func (m *MockParticipantService) Create(ctx context.Context, req models.CreateParticipantRequest) (*models.Participant, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Participant), args.Error(1)
}

func (m *MockParticipantService) History(ctx context.Context, id int64) ([]*models.SentMessage, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.SentMessage), args.Error(1)
}

func (m *MockParticipantService) ImportExcel(ctx context.Context, r io.Reader) (*models.ImportResult, error) {
	args := m.Called(ctx, r)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ImportResult), args.Error(1)
}

func (m *MockParticipantService) ExportExcel(ctx context.Context) ([]byte, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// MockConversationService is a mock implementation of ConversationServiceInterface
type MockConversationService struct {
	mock.Mock
}

func (m *MockConversationService) Unread(ctx context.Context) ([]*models.UnreadMessage, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.UnreadMessage), args.Error(1)
}

func (m *MockConversationService) MarkRead(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockConversationService) MarkConversationRead(ctx context.Context, key string) (int64, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockConversationService) Archive(ctx context.Context) ([]*models.ConversationEntry, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.ConversationEntry), args.Error(1)
}

func (m *MockConversationService) Conversation(ctx context.Context, key string) ([]*models.ConversationEntry, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.ConversationEntry), args.Error(1)
}

func (m *MockConversationService) AddReceived(ctx context.Context, req models.AddReceivedRequest) (*models.ReceivedMessage, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ReceivedMessage), args.Error(1)
}

// MockSyncService is a mock implementation of SyncServiceInterface
type MockSyncService struct {
	mock.Mock
}

func (m *MockSyncService) SyncAll(ctx context.Context) (*models.SyncResult, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SyncResult), args.Error(1)
}

func (m *MockSyncService) SyncUnread(ctx context.Context) (*models.SyncResult, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SyncResult), args.Error(1)
}

func (m *MockSyncService) State() models.SyncState {
	return m.Called().Get(0).(models.SyncState)
}

func (m *MockSyncService) LastResult() *models.SyncResult {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(*models.SyncResult)
}

// MockSendService is a mock implementation of SendServiceInterface
type MockSendService struct {
	mock.Mock
}

func (m *MockSendService) Quick(ctx context.Context, req models.SendQuickRequest) (*models.SendQuickResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SendQuickResult), args.Error(1)
}

func (m *MockSendService) SendOne(ctx context.Context, req models.SendQuickRequest) (*models.SendQuickResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SendQuickResult), args.Error(1)
}

func (m *MockSendService) SendBulk(ctx context.Context, req models.BulkSendRequest) (*models.BulkSendResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BulkSendResult), args.Error(1)
}

func (m *MockSendService) StartBulk(ctx context.Context, req models.BulkSendRequest) (<-chan *models.BulkSendResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(<-chan *models.BulkSendResult), args.Error(1)
}

func (m *MockSendService) Progress() models.SendProgress {
	return m.Called().Get(0).(models.SendProgress)
}

// MockDeviceService is a mock implementation of DeviceServiceInterface
type MockDeviceService struct {
	mock.Mock
}

func (m *MockDeviceService) Health(ctx context.Context) *services.DeviceStatus {
	return m.Called(ctx).Get(0).(*services.DeviceStatus)
}

func (m *MockDeviceService) Connection(ctx context.Context) *services.DeviceStatus {
	return m.Called(ctx).Get(0).(*services.DeviceStatus)
}

// MockWebhookService is a mock implementation of WebhookServiceInterface
type MockWebhookService struct {
	mock.Mock
}

func (m *MockWebhookService) Authorize(presented string) error {
	return m.Called(presented).Error(0)
}

func (m *MockWebhookService) Decode(body []byte) ([]extract.Record, error) {
	args := m.Called(body)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]extract.Record), args.Error(1)
}

func (m *MockWebhookService) Process(ctx context.Context, items []extract.Record) *models.WebhookResult {
	return m.Called(ctx, items).Get(0).(*models.WebhookResult)
}

// newTestRouter returns a gin engine whose requests carry an authenticated
// staff user, as AuthMiddleware would leave them
func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.UserIDKey, "user-123")
		c.Set(middleware.UsernameKey, "staff")
		c.Next()
	})
	return r
}

func doJSON(t *testing.T, r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewBuffer(data)
	}
	req, err := http.NewRequest(method, path, reader)
	require.NoError(t, err)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}
