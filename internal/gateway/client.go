// Package gateway talks to the SMS Gateway app running on the Android phone.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"sms-gateway-dashboard/internal/extract"
	"sms-gateway-dashboard/internal/metrics"
)

const (
	DefaultProbeTimeout  = 15 * time.Second
	DefaultSendTimeout   = 15 * time.Second
	DefaultHealthTimeout = 5 * time.Second

	maxResponseBytes = 10 << 20
)

// ErrNotConfigured is returned when no device address is set.
var ErrNotConfigured = errors.New("gateway device address is not configured")

// StatusError is a non-2xx answer from the device.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("gateway %s %s: http status %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("gateway %s %s: http status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// Options configures a Client.
type Options struct {
	BaseURL       string
	Username      string
	Password      string
	ProbeTimeout  time.Duration
	SendTimeout   time.Duration
	HealthTimeout time.Duration
	HTTPClient    *http.Client
}

// SendRequest is the body of POST /messages.
type SendRequest struct {
	PhoneNumbers []string    `json:"phoneNumbers"`
	TextMessage  TextMessage `json:"textMessage"`
}

// TextMessage holds the outgoing text.
type TextMessage struct {
	Text string `json:"text"`
}

// SendResponse is whatever the device answered to a send; only a few fields
// are stable across firmware versions.
type SendResponse struct {
	ID     string         `json:"id,omitempty"`
	State  string         `json:"state,omitempty"`
	Status string         `json:"status,omitempty"`
	Raw    map[string]any `json:"-"`
}

// Client calls the device API with basic auth and per-call timeouts.
type Client struct {
	baseURL       string
	username      string
	password      string
	probeTimeout  time.Duration
	sendTimeout   time.Duration
	healthTimeout time.Duration
	http          *http.Client
	extractor     *extract.Extractor
}

// NewClient creates a device client. The extractor is used to unwrap list
// responses.
func NewClient(opts Options, extractor *extract.Extractor) *Client {
	c := &Client{
		baseURL:       strings.TrimRight(opts.BaseURL, "/"),
		username:      opts.Username,
		password:      opts.Password,
		probeTimeout:  opts.ProbeTimeout,
		sendTimeout:   opts.SendTimeout,
		healthTimeout: opts.HealthTimeout,
		http:          opts.HTTPClient,
		extractor:     extractor,
	}
	if c.probeTimeout <= 0 {
		c.probeTimeout = DefaultProbeTimeout
	}
	if c.sendTimeout <= 0 {
		c.sendTimeout = DefaultSendTimeout
	}
	if c.healthTimeout <= 0 {
		c.healthTimeout = DefaultHealthTimeout
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	if c.extractor == nil {
		c.extractor = extract.Default()
	}
	return c
}

// BaseURL returns the device address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Fetch GETs path (which may carry a query string) and unwraps the record list.
func (c *Client) Fetch(ctx context.Context, path string) ([]extract.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()
	defer observe("fetch", time.Now())

	var decoded any
	if err := c.do(ctx, http.MethodGet, path, nil, &decoded); err != nil {
		return nil, err
	}
	return c.extractor.Items(decoded), nil
}

// Send transmits one SMS to one or more numbers.
func (c *Client) Send(ctx context.Context, phoneNumbers []string, text string) (*SendResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.sendTimeout)
	defer cancel()
	defer observe("send", time.Now())

	body := SendRequest{PhoneNumbers: phoneNumbers, TextMessage: TextMessage{Text: text}}
	var raw map[string]any
	if err := c.do(ctx, http.MethodPost, "/messages", body, &raw); err != nil {
		return nil, err
	}

	resp := &SendResponse{Raw: raw}
	if raw != nil {
		resp.ID, _ = raw["id"].(string)
		resp.State, _ = raw["state"].(string)
		resp.Status, _ = raw["status"].(string)
	}
	return resp, nil
}

// Health calls GET /health and returns the decoded body.
func (c *Client) Health(ctx context.Context) (map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, c.healthTimeout)
	defer cancel()
	defer observe("health", time.Now())

	var out map[string]any
	if err := c.do(ctx, http.MethodGet, "/health", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	if c.baseURL == "" {
		return ErrNotConfigured
	}

	var reader io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if c.username != "" || c.password != "" {
		req.SetBasicAuth(c.username, c.password)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("gateway %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("gateway %s %s: failed to read response: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       truncate(strings.TrimSpace(string(data)), 200),
		}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		// Some firmware answers sends with plain text; only list calls need JSON.
		if method == http.MethodGet {
			return fmt.Errorf("gateway %s %s: invalid json: %w", method, path, err)
		}
	}
	return nil
}

func observe(operation string, start time.Time) {
	metrics.GatewayLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
