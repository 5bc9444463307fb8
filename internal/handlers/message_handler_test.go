package handlers

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"sms-gateway-dashboard/internal/models"
	"sms-gateway-dashboard/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func setupMessageRouter(svc *MockConversationService) *gin.Engine {
	r := newTestRouter()
	h := NewMessageHandler(svc)
	r.GET("/unread-sms", h.Unread)
	r.POST("/mark-sms-read/:id", h.MarkRead)
	r.POST("/mark-conversation-read", h.MarkConversationRead)
	r.GET("/sent-messages-archive", h.Archive)
	r.GET("/conversations/:key", h.Conversation)
	r.POST("/add-received-sms", h.AddReceived)
	return r
}

func TestMessageHandler_Unread(t *testing.T) {
	svc := new(MockConversationService)
	pid := int64(3)
	svc.On("Unread", mock.Anything).Return([]*models.UnreadMessage{{
		ReceivedMessage: models.ReceivedMessage{ID: 8, ParticipantID: &pid, Body: "Salut", SenderNumber: "+14385550101"},
		FirstName:       "Marie",
		Phone:           "(438) 555-0101",
	}}, nil)

	w := doJSON(t, setupMessageRouter(svc), http.MethodGet, "/unread-sms", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"firstName":"Marie"`)
	assert.Contains(t, w.Body.String(), `"body":"Salut"`)
}

func TestMessageHandler_MarkRead(t *testing.T) {
	svc := new(MockConversationService)
	svc.On("MarkRead", mock.Anything, int64(8)).Return(nil)
	svc.On("MarkRead", mock.Anything, int64(9)).Return(services.ErrMessageNotFound)
	svc.On("MarkRead", mock.Anything, int64(10)).Return(errors.New("locked"))
	r := setupMessageRouter(svc)

	w := doJSON(t, r, http.MethodPost, "/mark-sms-read/8", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["success"])

	w = doJSON(t, r, http.MethodPost, "/mark-sms-read/9", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, r, http.MethodPost, "/mark-sms-read/10", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	w = doJSON(t, r, http.MethodPost, "/mark-sms-read/x", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertExpectations(t)
}

func TestMessageHandler_MarkConversationRead(t *testing.T) {
	tests := []struct {
		name           string
		requestBody    interface{}
		mockSetup      func(*MockConversationService)
		expectedStatus int
		expectedCount  float64
	}{
		{
			name:        "by participant",
			requestBody: models.MarkConversationReadRequest{ContactKey: "3"},
			mockSetup: func(m *MockConversationService) {
				m.On("MarkConversationRead", mock.Anything, "3").Return(int64(2), nil)
			},
			expectedStatus: http.StatusOK,
			expectedCount:  2,
		},
		{
			name:        "by phone",
			requestBody: models.MarkConversationReadRequest{ContactKey: "+14385550199"},
			mockSetup: func(m *MockConversationService) {
				m.On("MarkConversationRead", mock.Anything, "+14385550199").Return(int64(0), nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "missing key",
			requestBody:    map[string]string{},
			mockSetup:      func(m *MockConversationService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:        "unusable key",
			requestBody: models.MarkConversationReadRequest{ContactKey: "abc"},
			mockSetup: func(m *MockConversationService) {
				m.On("MarkConversationRead", mock.Anything, "abc").Return(int64(0), services.ErrInvalidContactKey)
			},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockConversationService)
			tt.mockSetup(svc)

			w := doJSON(t, setupMessageRouter(svc), http.MethodPost, "/mark-conversation-read", tt.requestBody)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedStatus == http.StatusOK {
				resp := decode(t, w)
				assert.Equal(t, tt.expectedCount, resp["updated"])
				assert.NotEmpty(t, resp["contactKey"])
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestMessageHandler_ArchiveAndConversation(t *testing.T) {
	at := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	entries := []*models.ConversationEntry{
		{ID: 2, Type: models.DirectionSent, Body: "Bonjour", Status: models.StatusSuccess, CreatedAt: at.Add(time.Minute)},
		{ID: 5, Type: models.DirectionReceived, Body: "Merci", CreatedAt: at},
	}
	svc := new(MockConversationService)
	svc.On("Archive", mock.Anything).Return(entries, nil)
	svc.On("Conversation", mock.Anything, "3").Return(entries[:1], nil)
	svc.On("Conversation", mock.Anything, "zz").Return(nil, services.ErrInvalidContactKey)
	r := setupMessageRouter(svc)

	w := doJSON(t, r, http.MethodGet, "/sent-messages-archive", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"type":"sent"`)
	assert.Contains(t, w.Body.String(), `"type":"received"`)

	w = doJSON(t, r, http.MethodGet, "/conversations/3", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Bonjour")
	assert.NotContains(t, w.Body.String(), "Merci")

	w = doJSON(t, r, http.MethodGet, "/conversations/zz", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMessageHandler_AddReceived(t *testing.T) {
	req := models.AddReceivedRequest{ParticipantID: 3, Body: "Je serai en retard"}

	tests := []struct {
		name           string
		requestBody    interface{}
		mockSetup      func(*MockConversationService)
		expectedStatus int
	}{
		{
			name:        "recorded",
			requestBody: req,
			mockSetup: func(m *MockConversationService) {
				m.On("AddReceived", mock.Anything, req).Return(&models.ReceivedMessage{ID: 12}, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:        "unknown participant",
			requestBody: req,
			mockSetup: func(m *MockConversationService) {
				m.On("AddReceived", mock.Anything, req).Return(nil, services.ErrParticipantNotFound)
			},
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "missing body",
			requestBody:    map[string]int{"participantId": 3},
			mockSetup:      func(m *MockConversationService) {},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockConversationService)
			tt.mockSetup(svc)

			w := doJSON(t, setupMessageRouter(svc), http.MethodPost, "/add-received-sms", tt.requestBody)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedStatus == http.StatusOK {
				assert.Equal(t, float64(12), decode(t, w)["id"])
			}
			svc.AssertExpectations(t)
		})
	}
}
