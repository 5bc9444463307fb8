package models

// SyncState is the phase a sync run is in
type SyncState string

const (
	SyncIdle       SyncState = "idle"
	SyncProbing    SyncState = "probing"
	SyncFiltering  SyncState = "filtering"
	SyncPersisting SyncState = "persisting"
	SyncComplete   SyncState = "complete"
)

// SyncResult is the outcome of one pull from the device
type SyncResult struct {
	Success  bool      `json:"success"`
	Endpoint string    `json:"endpoint,omitempty"`
	Inserted int       `json:"inserted"`
	Skipped  int       `json:"skipped"`
	Errors   int       `json:"errors"`
	Total    int       `json:"total"`
	State    SyncState `json:"state"`
}

// WebhookResult is the outcome of one webhook delivery
type WebhookResult struct {
	Success  bool     `json:"success"`
	Inserted int      `json:"inserted"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors"`
}

// SendProgress is the snapshot of the current or last bulk send. Details maps
// a recipient key to its current status.
type SendProgress struct {
	Total   int               `json:"total"`
	Current int               `json:"actuel"`
	Running bool              `json:"enCours"`
	Details map[string]string `json:"details"`
}

// Clone returns a deep copy safe to hand to other goroutines
func (p SendProgress) Clone() SendProgress {
	details := make(map[string]string, len(p.Details))
	for k, v := range p.Details {
		details[k] = v
	}
	p.Details = details
	return p
}

// SendQuickRequest sends one SMS to one number
type SendQuickRequest struct {
	Message       string `json:"message" binding:"required"`
	Phone         string `json:"phone" binding:"required"`
	ParticipantID *int64 `json:"participantId,omitempty"`
	CallbackID    string `json:"callbackId,omitempty"`
}

// SendQuickResult is the outcome of a quick send
type SendQuickResult struct {
	Success    bool         `json:"success"`
	MessageID  int64        `json:"messageId,omitempty"`
	Status     string       `json:"status"`
	Error      string       `json:"error,omitempty"`
	CallbackID string       `json:"callbackId,omitempty"`
	Message    *SentMessage `json:"message,omitempty"`
}

// BulkSendRequest targets participants by id, or raw phone numbers
type BulkSendRequest struct {
	IDs        []int64  `json:"ids"`
	Phones     []string `json:"phones"`
	Message    string   `json:"message" binding:"required"`
	CallbackID string   `json:"callbackId,omitempty"`
}

// BulkSendResult aggregates a finished bulk send
type BulkSendResult struct {
	Success      bool              `json:"success"`
	SuccessCount int               `json:"successCount"`
	FailCount    int               `json:"failCount"`
	Total        int               `json:"total"`
	Details      map[string]string `json:"details"`
	Errors       []string          `json:"errors,omitempty"`
	CallbackID   string            `json:"callbackId,omitempty"`
}

// SentEvent is the live notification of a finished send attempt. CallbackID
// is only set on the reply to the client that asked for the send.
type SentEvent struct {
	*SentMessage
	Type       string `json:"type"`
	Success    bool   `json:"success"`
	Phone      string `json:"phone"`
	Error      string `json:"error,omitempty"`
	CallbackID string `json:"callbackId,omitempty"`
}

// NewSentEvent wraps a stored send attempt
func NewSentEvent(m *SentMessage, phone, errText string) *SentEvent {
	return &SentEvent{
		SentMessage: m,
		Type:        DirectionSent,
		Success:     m.Succeeded(),
		Phone:       phone,
		Error:       errText,
	}
}
