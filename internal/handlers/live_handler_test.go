package handlers

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"sms-gateway-dashboard/internal/live"
	"sms-gateway-dashboard/internal/models"
	"sms-gateway-dashboard/internal/services"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type liveEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func startLive(t *testing.T, svc *MockSendService, timeout time.Duration) (*live.Hub, *httptest.Server) {
	t.Helper()
	hub := live.NewHub(live.Options{})
	h := NewLiveHandler(hub, live.NewRegistry(timeout), svc, time.Second)
	r := newTestRouter()
	r.GET("/ws", h.Serve)
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return hub, srv
}

func connect(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	next(t, conn, live.EventReady)
	return conn
}

func next(t *testing.T, conn *websocket.Conn, want string) map[string]interface{} {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev liveEvent
	require.NoError(t, conn.ReadJSON(&ev))
	require.Equal(t, want, ev.Event)
	var data map[string]interface{}
	require.NoError(t, json.Unmarshal(ev.Data, &data))
	return data
}

func silent(t *testing.T, conn *websocket.Conn, wait time.Duration) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(wait)))
	var ev liveEvent
	assert.Error(t, conn.ReadJSON(&ev), "no event expected")
}

func TestLiveHandler_QuickSend(t *testing.T) {
	pid := int64(3)
	svc := new(MockSendService)
	svc.On("SendOne", mock.Anything, mock.MatchedBy(func(req models.SendQuickRequest) bool {
		return req.Phone == "438-555-0101" && req.CallbackID == "cb-1"
	})).Return(&models.SendQuickResult{
		Success: true, MessageID: 7, Status: models.StatusSuccess, CallbackID: "cb-1",
		Message: &models.SentMessage{ID: 7, ParticipantID: &pid, Body: "Salut", RecipientNumber: "438-555-0101", Status: models.StatusSuccess},
	}, nil)
	hub, srv := startLive(t, svc, time.Second)

	sender := connect(t, srv)
	other := connect(t, srv)
	require.Eventually(t, func() bool { return hub.Count() == 2 }, time.Second, 10*time.Millisecond)

	require.NoError(t, sender.WriteJSON(map[string]interface{}{
		"event": live.EventSendQuick,
		"data":  map[string]interface{}{"message": "Salut", "phone": "438-555-0101", "callbackId": "cb-1"},
	}))

	reply := next(t, sender, live.EventSMSSent)
	assert.Equal(t, "cb-1", reply["callbackId"])
	assert.Equal(t, true, reply["success"])
	assert.Equal(t, float64(7), reply["id"])

	echo := next(t, other, live.EventSMSSent)
	assert.NotContains(t, echo, "callbackId")
	assert.Equal(t, float64(7), echo["id"])
	svc.AssertExpectations(t)
}

func TestLiveHandler_QuickSendInvalid(t *testing.T) {
	svc := new(MockSendService)
	svc.On("SendOne", mock.Anything, mock.Anything).Return(nil, services.ErrMissingMessage)
	_, srv := startLive(t, svc, time.Second)
	conn := connect(t, srv)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"event": live.EventSendQuick,
		"data":  map[string]interface{}{"phone": "438-555-0101", "callbackId": "cb-2"},
	}))

	reply := next(t, conn, live.EventSMSSent)
	assert.Equal(t, false, reply["success"])
	assert.Equal(t, "cb-2", reply["callbackId"])
	assert.Equal(t, services.ErrMissingMessage.Error(), reply["error"])
}

func TestLiveHandler_LateResultDropped(t *testing.T) {
	svc := new(MockSendService)
	svc.On("SendOne", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { time.Sleep(200 * time.Millisecond) }).
		Return(&models.SendQuickResult{Success: true, Message: &models.SentMessage{ID: 1, Status: models.StatusSuccess}}, nil)
	_, srv := startLive(t, svc, 50*time.Millisecond)
	conn := connect(t, srv)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"event": live.EventSendQuick,
		"data":  map[string]interface{}{"message": "Salut", "phone": "438-555-0101", "callbackId": "cb-late"},
	}))

	silent(t, conn, 500*time.Millisecond)
	svc.AssertExpectations(t)
}

func TestLiveHandler_Bulk(t *testing.T) {
	svc := new(MockSendService)
	svc.On("SendBulk", mock.Anything, models.BulkSendRequest{
		IDs: []int64{1, 2}, Message: "Cours annulé", CallbackID: "bulk-1",
	}).Return(&models.BulkSendResult{
		Success: false, SuccessCount: 1, FailCount: 1, Total: 2,
		Details:    map[string]string{"1": models.StatusSuccess, "2": models.StatusFailure},
		Errors:     []string{"participant 2: not found"},
		CallbackID: "bulk-1",
	}, nil)
	_, srv := startLive(t, svc, time.Second)
	conn := connect(t, srv)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"event": live.EventBulkSMS,
		"data":  map[string]interface{}{"recipients": []int64{1, 2}, "message": "Cours annulé", "callbackId": "bulk-1"},
	}))

	reply := next(t, conn, live.EventBulkResponse)
	assert.Equal(t, "bulk-1", reply["callbackId"])
	assert.Equal(t, float64(1), reply["successCount"])
	assert.Equal(t, float64(1), reply["failCount"])
	svc.AssertExpectations(t)
}

func TestLiveHandler_BulkRejected(t *testing.T) {
	svc := new(MockSendService)
	svc.On("SendBulk", mock.Anything, mock.Anything).Return(nil, services.ErrNoRecipients)
	_, srv := startLive(t, svc, time.Second)
	conn := connect(t, srv)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"event": live.EventBulkSMS,
		"data":  map[string]interface{}{"recipients": []int64{}, "message": "x"},
	}))

	reply := next(t, conn, live.EventBulkResponse)
	assert.Equal(t, false, reply["success"])
	assert.Equal(t, "", reply["callbackId"])
	assert.Equal(t, services.ErrNoRecipients.Error(), reply["error"])
}
