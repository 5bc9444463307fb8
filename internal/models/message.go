package models

import "time"

// Outcome of a send attempt
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Direction of a conversation entry
const (
	DirectionReceived = "received"
	DirectionSent     = "sent"
)

// ReceivedMessage is an inbound SMS stored from sync, webhook or manual entry
type ReceivedMessage struct {
	ID            int64      `json:"id"`
	ParticipantID *int64     `json:"participantId"`
	Body          string     `json:"body"`
	SenderNumber  string     `json:"senderNumber"`
	IsRead        bool       `json:"isRead"`
	ReadAt        *time.Time `json:"readAt,omitempty"`
	ReceivedAt    time.Time  `json:"receivedAt"`
}

// UnreadMessage is a received message joined with its participant. Unknown
// senders get a placeholder first name and their raw number.
type UnreadMessage struct {
	ReceivedMessage
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone"`
}

// SentMessage records one outbound send attempt, successful or not
type SentMessage struct {
	ID              int64     `json:"id"`
	ParticipantID   *int64    `json:"participantId"`
	Body            string    `json:"body"`
	RecipientNumber string    `json:"recipientNumber"`
	Status          string    `json:"status"`
	SentAt          time.Time `json:"sentAt"`
}

// Succeeded reports whether the device accepted the message
func (m *SentMessage) Succeeded() bool {
	return m.Status == StatusSuccess
}

// ConversationEntry is one row of the merged sent/received history
type ConversationEntry struct {
	ID              int64     `json:"id"`
	Type            string    `json:"type"`
	ParticipantID   *int64    `json:"participantId"`
	Body            string    `json:"body"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"createdAt"`
	FirstName       *string   `json:"firstName"`
	LastName        *string   `json:"lastName"`
	Phone           *string   `json:"phone"`
	SenderNumber    *string   `json:"senderNumber,omitempty"`
	RecipientNumber *string   `json:"recipientNumber,omitempty"`
	IsRead          *bool     `json:"isRead,omitempty"`
}

// AddReceivedRequest is the body of a manually recorded inbound SMS
type AddReceivedRequest struct {
	ParticipantID int64  `json:"participantId" binding:"required"`
	Body          string `json:"body" binding:"required"`
	SenderNumber  string `json:"senderNumber"`
}

// MarkConversationReadRequest identifies a conversation by participant id or phone
type MarkConversationReadRequest struct {
	ContactKey string `json:"contactKey" binding:"required"`
}
