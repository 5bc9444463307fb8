package live

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rawEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func startHub(t *testing.T, opts Options) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub(opts)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = hub.ServeWS(w, r, "7")
	}))
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, header http.Header) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) rawEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev rawEvent
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func readyClientID(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	ev := readEvent(t, conn)
	require.Equal(t, EventReady, ev.Event)
	var data map[string]string
	require.NoError(t, json.Unmarshal(ev.Data, &data))
	require.NotEmpty(t, data["clientId"])
	return data["clientId"]
}

func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.Count() == n }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_Broadcast(t *testing.T) {
	hub, srv := startHub(t, Options{})

	a := dial(t, srv, nil)
	b := dial(t, srv, nil)
	readyClientID(t, a)
	readyClientID(t, b)
	waitForClients(t, hub, 2)

	hub.Broadcast(EventNewSMS, map[string]string{"Message": "hi"})

	for _, conn := range []*websocket.Conn{a, b} {
		ev := readEvent(t, conn)
		assert.Equal(t, EventNewSMS, ev.Event)
		assert.JSONEq(t, `{"Message":"hi"}`, string(ev.Data))
	}
}

func TestHub_BroadcastExcept(t *testing.T) {
	hub, srv := startHub(t, Options{})

	a := dial(t, srv, nil)
	b := dial(t, srv, nil)
	idA := readyClientID(t, a)
	readyClientID(t, b)
	waitForClients(t, hub, 2)

	hub.BroadcastExcept(idA, EventSMSSent, map[string]int{"id": 3})

	ev := readEvent(t, b)
	assert.Equal(t, EventSMSSent, ev.Event)

	require.NoError(t, a.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	var stray rawEvent
	assert.Error(t, a.ReadJSON(&stray))
}

func TestHub_HandlerRepliesToSender(t *testing.T) {
	hub, srv := startHub(t, Options{})
	hub.Handle(EventSendQuick, func(ctx context.Context, c *Client, msg Message) {
		assert.Equal(t, "7", c.UserID())
		_ = hub.SendTo(c.ID(), EventSMSSent, json.RawMessage(msg.Data))
	})

	sender := dial(t, srv, nil)
	other := dial(t, srv, nil)
	readyClientID(t, sender)
	readyClientID(t, other)
	waitForClients(t, hub, 2)

	require.NoError(t, sender.WriteJSON(map[string]interface{}{
		"event": EventSendQuick,
		"data":  map[string]string{"callbackId": "cb-1"},
	}))

	ev := readEvent(t, sender)
	assert.Equal(t, EventSMSSent, ev.Event)
	assert.JSONEq(t, `{"callbackId":"cb-1"}`, string(ev.Data))

	require.NoError(t, other.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	var stray rawEvent
	assert.Error(t, other.ReadJSON(&stray), "the reply goes only to the requesting client")
}

func TestHub_UnknownEvent(t *testing.T) {
	_, srv := startHub(t, Options{})
	conn := dial(t, srv, nil)
	readyClientID(t, conn)

	require.NoError(t, conn.WriteJSON(map[string]string{"event": "nope"}))
	ev := readEvent(t, conn)
	assert.Equal(t, EventError, ev.Event)
}

func TestHub_SendToUnknownClient(t *testing.T) {
	hub := NewHub(Options{})
	defer hub.Close()
	assert.ErrorIs(t, hub.SendTo("missing", EventFinish, nil), ErrClientGone)
}

func TestHub_DisconnectUnregisters(t *testing.T) {
	hub, srv := startHub(t, Options{})
	conn := dial(t, srv, nil)
	readyClientID(t, conn)
	waitForClients(t, hub, 1)

	require.NoError(t, conn.Close())
	waitForClients(t, hub, 0)
}

func TestHub_CheckOrigin(t *testing.T) {
	_, srv := startHub(t, Options{AllowedOrigins: []string{"http://dashboard.local"}})
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"http://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn := dial(t, srv, http.Header{"Origin": {"http://dashboard.local"}})
	readyClientID(t, conn)
}
