// Package live pushes dashboard events to connected browsers over
// websockets and routes their requests back to the server.
package live

import "encoding/json"

// Outbound event names
const (
	EventProgress     = "progress"
	EventFinish       = "finish"
	EventNewSMS       = "new-sms"
	EventSMSSent      = "sms-sent"
	EventBulkResponse = "bulk-sms-response"
	EventSyncComplete = "sms-sync-complete"
	EventReady        = "ready"
	EventError        = "error"
)

// Inbound event names
const (
	EventSendQuick = "send-sms-quick"
	EventBulkSMS   = "bulk-sms"
)

// Event is the envelope of every message written to a client
type Event struct {
	Name string      `json:"event"`
	Data interface{} `json:"data,omitempty"`
}

// Message is an event read from a client; Data is decoded by the handler
// registered for it
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}
