package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"sms-gateway-dashboard/internal/models"
)

// SentRepository is the data access for outbound send attempts
type SentRepository interface {
	Insert(ctx context.Context, m *models.SentMessage) error
	ListByParticipant(ctx context.Context, participantID int64) ([]*models.SentMessage, error)
	ListEntries(ctx context.Context, filter EntryFilter) ([]*models.ConversationEntry, error)
}

type sentRepository struct {
	db *sql.DB
}

// NewSentRepository creates a new SentRepository
func NewSentRepository(db *sql.DB) SentRepository {
	return &sentRepository{db: db}
}

// Insert stores one send attempt and sets its id
func (r *sentRepository) Insert(ctx context.Context, m *models.SentMessage) error {
	if m == nil {
		return fmt.Errorf("message cannot be nil")
	}
	if m.Status != models.StatusSuccess && m.Status != models.StatusFailure {
		return fmt.Errorf("invalid send status %q", m.Status)
	}
	if m.SentAt.IsZero() {
		m.SentAt = time.Now()
	}

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO sent_messages (participant_id, body, recipient_number, status, sent_at)
		VALUES (?, ?, ?, ?, ?)`,
		m.ParticipantID, m.Body, m.RecipientNumber, m.Status, toMillis(m.SentAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert sent message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get sent message id: %w", err)
	}
	m.ID = id
	return nil
}

// ListByParticipant returns the send history of a participant, newest first
func (r *sentRepository) ListByParticipant(ctx context.Context, participantID int64) ([]*models.SentMessage, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, participant_id, body, recipient_number, status, sent_at
		FROM sent_messages WHERE participant_id = ?
		ORDER BY sent_at DESC, id DESC`, participantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sent messages: %w", err)
	}
	defer rows.Close()

	messages := []*models.SentMessage{}
	for rows.Next() {
		m := &models.SentMessage{}
		var pid sql.NullInt64
		var sentAt int64
		if err := rows.Scan(&m.ID, &pid, &m.Body, &m.RecipientNumber, &m.Status, &sentAt); err != nil {
			return nil, fmt.Errorf("failed to scan sent message: %w", err)
		}
		m.ParticipantID = nullableID(pid)
		m.SentAt = fromMillis(sentAt)
		messages = append(messages, m)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sent messages: %w", err)
	}
	return messages, nil
}

// ListEntries returns sent messages as conversation entries joined with
// their participant, newest first
func (r *sentRepository) ListEntries(ctx context.Context, filter EntryFilter) ([]*models.ConversationEntry, error) {
	query := `
		SELECT s.id, s.participant_id, s.body, s.status, s.sent_at, s.recipient_number,
			p.first_name, p.last_name, p.phone
		FROM sent_messages s
		LEFT JOIN participants p ON p.id = s.participant_id`
	var args []interface{}
	switch {
	case filter.ParticipantID != nil:
		query += ` WHERE s.participant_id = ?`
		args = append(args, *filter.ParticipantID)
	case filter.PhoneDigits != "":
		query += ` WHERE s.participant_id IS NULL AND ` + stripPhoneSQL("s.recipient_number") + ` LIKE '%' || ?`
		args = append(args, filter.PhoneDigits)
	}
	query += ` ORDER BY s.sent_at DESC, s.id DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sent messages: %w", err)
	}
	defer rows.Close()

	entries := []*models.ConversationEntry{}
	for rows.Next() {
		e := &models.ConversationEntry{Type: models.DirectionSent}
		var participantID sql.NullInt64
		var createdAt int64
		var recipient string
		var firstName, lastName, phone sql.NullString
		if err := rows.Scan(&e.ID, &participantID, &e.Body, &e.Status, &createdAt, &recipient,
			&firstName, &lastName, &phone); err != nil {
			return nil, fmt.Errorf("failed to scan sent message: %w", err)
		}
		e.ParticipantID = nullableID(participantID)
		e.CreatedAt = fromMillis(createdAt)
		e.RecipientNumber = &recipient
		e.FirstName = nullableString(firstName)
		e.LastName = nullableString(lastName)
		e.Phone = nullableString(phone)
		entries = append(entries, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sent messages: %w", err)
	}
	return entries, nil
}
