package models

import (
	"strings"
	"time"
)

// Participant is a person the dashboard sends SMS to and receives SMS from
type Participant struct {
	ID               int64  `json:"id"`
	FirstName        string `json:"firstName"`
	LastName         string `json:"lastName"`
	Phone            string `json:"phone"`
	Park             string `json:"park"`
	TrainingType     string `json:"trainingType"`
	Coach            string `json:"coach"`
	RegistrationDate string `json:"registrationDate"`
	CreatedAt        int64  `json:"createdAt"`

	// Computed on list queries, not stored
	UnreadCount int `json:"unreadCount"`
}

// CreateParticipantRequest is the body of a manual participant entry
type CreateParticipantRequest struct {
	FirstName        string `json:"firstName" binding:"required,max=100"`
	LastName         string `json:"lastName" binding:"max=100"`
	Phone            string `json:"phone" binding:"required,max=32"`
	Park             string `json:"park" binding:"max=100"`
	TrainingType     string `json:"trainingType" binding:"max=100"`
	Coach            string `json:"coach" binding:"max=100"`
	RegistrationDate string `json:"registrationDate"`
}

// ImportResult summarizes a spreadsheet import
type ImportResult struct {
	Success      bool     `json:"success"`
	Message      string   `json:"message"`
	SuccessCount int      `json:"successCount"`
	ErrorCount   int      `json:"errorCount"`
	Errors       []string `json:"errors,omitempty"`
}

// FullName joins first and last name, skipping empty parts
func (p *Participant) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// NewParticipant builds a participant from a request. The phone must already
// be in its storage form.
func NewParticipant(req CreateParticipantRequest, phone string) *Participant {
	date := req.RegistrationDate
	if date == "" {
		date = time.Now().Format("2006-01-02")
	}
	return &Participant{
		FirstName:        strings.TrimSpace(req.FirstName),
		LastName:         strings.TrimSpace(req.LastName),
		Phone:            phone,
		Park:             strings.TrimSpace(req.Park),
		TrainingType:     strings.TrimSpace(req.TrainingType),
		Coach:            strings.TrimSpace(req.Coach),
		RegistrationDate: date,
	}
}
