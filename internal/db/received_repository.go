package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"sms-gateway-dashboard/internal/models"
)

// ReceivedRepository is the data access for inbound messages
type ReceivedRepository interface {
	Insert(ctx context.Context, m *models.ReceivedMessage) error
	Exists(ctx context.Context, sender, body string) (bool, error)
	GetByID(ctx context.Context, id int64) (*models.ReceivedMessage, error)
	MarkRead(ctx context.Context, id int64) (int64, error)
	MarkReadByParticipant(ctx context.Context, participantID int64) (int64, error)
	MarkReadBySender(ctx context.Context, raw, digits string) (int64, error)
	ListUnread(ctx context.Context) ([]*models.UnreadMessage, error)
	ListEntries(ctx context.Context, filter EntryFilter) ([]*models.ConversationEntry, error)
}

// EntryFilter narrows a history query to one contact. The zero value
// matches everything.
type EntryFilter struct {
	ParticipantID *int64
	PhoneDigits   string
}

type receivedRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewReceivedRepository creates a new ReceivedRepository
func NewReceivedRepository(db *sql.DB) ReceivedRepository {
	return &receivedRepository{db: db, now: time.Now}
}

// Insert stores a received message and sets its id. A zero ReceivedAt is
// replaced by the current time.
func (r *receivedRepository) Insert(ctx context.Context, m *models.ReceivedMessage) error {
	if m == nil {
		return fmt.Errorf("message cannot be nil")
	}
	if m.Body == "" {
		return fmt.Errorf("message body cannot be empty")
	}
	if m.ReceivedAt.IsZero() {
		m.ReceivedAt = r.now()
	}

	var readAt interface{}
	if m.ReadAt != nil {
		readAt = toMillis(*m.ReadAt)
	}

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO received_messages (participant_id, body, sender_number, is_read, read_at, received_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		m.ParticipantID, m.Body, m.SenderNumber, m.IsRead, readAt, toMillis(m.ReceivedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert received message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get received message id: %w", err)
	}
	m.ID = id
	return nil
}

// Exists reports whether a message with the same sender and body is stored
func (r *receivedRepository) Exists(ctx context.Context, sender, body string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM received_messages WHERE sender_number = ? AND body = ? LIMIT 1`,
		sender, body,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check duplicate message: %w", err)
	}
	return true, nil
}

// GetByID returns nil, nil when no message has this id
func (r *receivedRepository) GetByID(ctx context.Context, id int64) (*models.ReceivedMessage, error) {
	m := &models.ReceivedMessage{}
	var participantID, readAt sql.NullInt64
	var receivedAt int64
	err := r.db.QueryRowContext(ctx, `
		SELECT id, participant_id, body, sender_number, is_read, read_at, received_at
		FROM received_messages WHERE id = ?`, id,
	).Scan(&m.ID, &participantID, &m.Body, &m.SenderNumber, &m.IsRead, &readAt, &receivedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get received message: %w", err)
	}
	m.ParticipantID = nullableID(participantID)
	m.ReadAt = nullableTime(readAt)
	m.ReceivedAt = fromMillis(receivedAt)
	return m, nil
}

// MarkRead flags one message as read. Returns the number of rows changed.
func (r *receivedRepository) MarkRead(ctx context.Context, id int64) (int64, error) {
	return r.markRead(ctx, `id = ?`, id)
}

// MarkReadByParticipant flags every unread message of a participant as read
func (r *receivedRepository) MarkReadByParticipant(ctx context.Context, participantID int64) (int64, error) {
	return r.markRead(ctx, `participant_id = ? AND is_read = 0`, participantID)
}

// MarkReadBySender flags unread messages from an unknown sender as read. The
// sender matches on the raw value, on its punctuation-free digits, or by
// containing digits.
func (r *receivedRepository) MarkReadBySender(ctx context.Context, raw, digits string) (int64, error) {
	if digits == "" {
		return r.markRead(ctx, `sender_number = ? AND is_read = 0`, raw)
	}
	return r.markRead(ctx,
		`(sender_number = ? OR `+stripPhoneSQL("sender_number")+` = ? OR sender_number LIKE '%' || ? || '%') AND is_read = 0`,
		raw, digits, digits,
	)
}

func (r *receivedRepository) markRead(ctx context.Context, where string, args ...interface{}) (int64, error) {
	params := append([]interface{}{toMillis(r.now())}, args...)
	result, err := r.db.ExecContext(ctx, `UPDATE received_messages SET is_read = 1, read_at = ? WHERE `+where, params...)
	if err != nil {
		return 0, fmt.Errorf("failed to mark messages read: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

// ListUnread returns unread messages newest first, joined with their
// participant when known
func (r *receivedRepository) ListUnread(ctx context.Context) ([]*models.UnreadMessage, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT r.id, r.participant_id, r.body, r.sender_number, r.is_read, r.read_at, r.received_at,
			COALESCE(p.first_name, ''), COALESCE(p.last_name, ''), COALESCE(p.phone, r.sender_number)
		FROM received_messages r
		LEFT JOIN participants p ON p.id = r.participant_id
		WHERE r.is_read = 0
		ORDER BY r.received_at DESC, r.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list unread messages: %w", err)
	}
	defer rows.Close()

	messages := []*models.UnreadMessage{}
	for rows.Next() {
		m := &models.UnreadMessage{}
		var participantID, readAt sql.NullInt64
		var receivedAt int64
		if err := rows.Scan(&m.ID, &participantID, &m.Body, &m.SenderNumber, &m.IsRead, &readAt, &receivedAt,
			&m.FirstName, &m.LastName, &m.Phone); err != nil {
			return nil, fmt.Errorf("failed to scan unread message: %w", err)
		}
		m.ParticipantID = nullableID(participantID)
		m.ReadAt = nullableTime(readAt)
		m.ReceivedAt = fromMillis(receivedAt)
		messages = append(messages, m)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating unread messages: %w", err)
	}
	return messages, nil
}

// ListEntries returns received messages as conversation entries joined with
// their participant, newest first
func (r *receivedRepository) ListEntries(ctx context.Context, filter EntryFilter) ([]*models.ConversationEntry, error) {
	query := `
		SELECT r.id, r.participant_id, r.body, r.received_at, r.sender_number, r.is_read,
			p.first_name, p.last_name, p.phone
		FROM received_messages r
		LEFT JOIN participants p ON p.id = r.participant_id`
	var args []interface{}
	switch {
	case filter.ParticipantID != nil:
		query += ` WHERE r.participant_id = ?`
		args = append(args, *filter.ParticipantID)
	case filter.PhoneDigits != "":
		query += ` WHERE r.participant_id IS NULL AND ` + stripPhoneSQL("r.sender_number") + ` LIKE '%' || ?`
		args = append(args, filter.PhoneDigits)
	}
	query += ` ORDER BY r.received_at DESC, r.id DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list received messages: %w", err)
	}
	defer rows.Close()

	entries := []*models.ConversationEntry{}
	for rows.Next() {
		e := &models.ConversationEntry{Type: models.DirectionReceived, Status: models.StatusSuccess}
		var participantID sql.NullInt64
		var createdAt int64
		var sender string
		var isRead bool
		var firstName, lastName, phone sql.NullString
		if err := rows.Scan(&e.ID, &participantID, &e.Body, &createdAt, &sender, &isRead,
			&firstName, &lastName, &phone); err != nil {
			return nil, fmt.Errorf("failed to scan received message: %w", err)
		}
		e.ParticipantID = nullableID(participantID)
		e.CreatedAt = fromMillis(createdAt)
		e.SenderNumber = &sender
		e.IsRead = &isRead
		e.FirstName = nullableString(firstName)
		e.LastName = nullableString(lastName)
		e.Phone = nullableString(phone)
		entries = append(entries, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating received messages: %w", err)
	}
	return entries, nil
}

func nullableString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}
