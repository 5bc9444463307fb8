package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Options{BaseURL: srv.URL + "/", Username: "user", Password: "pass"}, nil)
}

func TestFetchArrayAndWrapped(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "user", user)
		assert.Equal(t, "pass", pass)

		switch r.URL.Path {
		case "/messages":
			assert.Equal(t, "in", r.URL.Query().Get("direction"))
			w.Write([]byte(`[{"body":"a"},{"body":"b"}]`))
		case "/messages/inbox":
			w.Write([]byte(`{"messages":[{"body":"a"}]}`))
		default:
			http.NotFound(w, r)
		}
	})

	recs, err := c.Fetch(context.Background(), "/messages?direction=in")
	require.NoError(t, err)
	assert.Len(t, recs, 2)

	recs, err = c.Fetch(context.Background(), "/messages/inbox")
	require.NoError(t, err)
	assert.Len(t, recs, 1)

	_, err = c.Fetch(context.Background(), "/missing")
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
}

func TestFetchInvalidJSON(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>`))
	})

	_, err := c.Fetch(context.Background(), "/messages")
	assert.Error(t, err)
}

func TestSend(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req SendRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"+15141234567"}, req.PhoneNumbers)
		assert.Equal(t, "hello", req.TextMessage.Text)

		w.Write([]byte(`{"id":"abc","state":"Pending"}`))
	})

	resp, err := c.Send(context.Background(), []string{"+15141234567"}, "hello")
	require.NoError(t, err)
	assert.Equal(t, "abc", resp.ID)
	assert.Equal(t, "Pending", resp.State)
}

func TestSendPlainTextAnswer(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`queued`))
	})

	resp, err := c.Send(context.Background(), []string{"+1"}, "x")
	require.NoError(t, err)
	assert.NotNil(t, resp)
}

func TestSendTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL, SendTimeout: 20 * time.Millisecond}, nil)
	_, err := c.Send(context.Background(), []string{"+15141234567"}, "hi")
	assert.Error(t, err)
}

func TestHealth(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"status":"pass"}`))
	})

	out, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "pass", out["status"])
}

func TestNotConfigured(t *testing.T) {
	c := NewClient(Options{}, nil)
	_, err := c.Fetch(context.Background(), "/messages")
	assert.ErrorIs(t, err, ErrNotConfigured)
}
