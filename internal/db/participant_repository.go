package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"sms-gateway-dashboard/internal/models"
)

// ParticipantRepository is the data access for participants
type ParticipantRepository interface {
	Create(ctx context.Context, p *models.Participant) error
	Upsert(ctx context.Context, p *models.Participant) (bool, error)
	GetByID(ctx context.Context, id int64) (*models.Participant, error)
	GetByIDs(ctx context.Context, ids []int64) ([]*models.Participant, error)
	List(ctx context.Context) ([]*models.Participant, error)
	FindByPhoneSuffix(ctx context.Context, digits string) (*models.Participant, error)
	FindByDigits(ctx context.Context, digits string) (*models.Participant, error)
}

type participantRepository struct {
	db *sql.DB
}

// NewParticipantRepository creates a new ParticipantRepository
func NewParticipantRepository(db *sql.DB) ParticipantRepository {
	return &participantRepository{db: db}
}

const participantColumns = `id, first_name, last_name, phone, park, training_type, coach, registration_date, created_at`

// Create inserts a participant and sets its id
func (r *participantRepository) Create(ctx context.Context, p *models.Participant) error {
	if p == nil {
		return fmt.Errorf("participant cannot be nil")
	}
	if strings.TrimSpace(p.Phone) == "" {
		return fmt.Errorf("participant phone cannot be empty")
	}

	p.CreatedAt = time.Now().Unix()
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO participants (first_name, last_name, phone, park, training_type, coach, registration_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.FirstName, p.LastName, p.Phone, p.Park, p.TrainingType, p.Coach, p.RegistrationDate, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create participant: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get participant id: %w", err)
	}
	p.ID = id
	return nil
}

// Upsert updates the participant stored under the same phone, or inserts a
// new one. Returns true when a row was created.
func (r *participantRepository) Upsert(ctx context.Context, p *models.Participant) (bool, error) {
	if p == nil {
		return false, fmt.Errorf("participant cannot be nil")
	}

	var id int64
	err := r.db.QueryRowContext(ctx, `SELECT id FROM participants WHERE phone = ? ORDER BY id LIMIT 1`, p.Phone).Scan(&id)
	if err == sql.ErrNoRows {
		return true, r.Create(ctx, p)
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up participant by phone: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		UPDATE participants SET first_name = ?, last_name = ?, park = ?, training_type = ?, coach = ?
		WHERE id = ?`,
		p.FirstName, p.LastName, p.Park, p.TrainingType, p.Coach, id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update participant: %w", err)
	}
	p.ID = id
	return false, nil
}

// GetByID returns nil, nil when no participant has this id
func (r *participantRepository) GetByID(ctx context.Context, id int64) (*models.Participant, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+participantColumns+` FROM participants WHERE id = ?`, id)
	p, err := scanParticipant(row)
	if err != nil {
		return nil, fmt.Errorf("failed to get participant: %w", err)
	}
	return p, nil
}

// GetByIDs returns the participants found for ids, in id order. Unknown ids
// are left out.
func (r *participantRepository) GetByIDs(ctx context.Context, ids []int64) ([]*models.Participant, error) {
	if len(ids) == 0 {
		return []*models.Participant{}, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}

	query := `SELECT ` + participantColumns + ` FROM participants WHERE id IN (` + strings.Join(placeholders, ", ") + `) ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get participants: %w", err)
	}
	defer rows.Close()

	participants := []*models.Participant{}
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		participants = append(participants, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating participants: %w", err)
	}
	return participants, nil
}

// List returns every participant with the count of its unread received
// messages, ordered by first name
func (r *participantRepository) List(ctx context.Context) ([]*models.Participant, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT p.id, p.first_name, p.last_name, p.phone, p.park, p.training_type, p.coach,
			p.registration_date, p.created_at,
			COUNT(CASE WHEN r.is_read = 0 THEN 1 END) AS unread_count
		FROM participants p
		LEFT JOIN received_messages r ON r.participant_id = p.id
		GROUP BY p.id
		ORDER BY p.first_name ASC, p.id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	defer rows.Close()

	participants := []*models.Participant{}
	for rows.Next() {
		p := &models.Participant{}
		if err := rows.Scan(&p.ID, &p.FirstName, &p.LastName, &p.Phone, &p.Park, &p.TrainingType,
			&p.Coach, &p.RegistrationDate, &p.CreatedAt, &p.UnreadCount); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		participants = append(participants, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating participants: %w", err)
	}
	return participants, nil
}

// FindByPhoneSuffix returns the lowest-id participant whose punctuation-free
// phone ends with digits, or nil.
func (r *participantRepository) FindByPhoneSuffix(ctx context.Context, digits string) (*models.Participant, error) {
	if digits == "" {
		return nil, nil
	}
	row := r.db.QueryRowContext(ctx,
		`SELECT `+participantColumns+` FROM participants WHERE `+stripPhoneSQL("phone")+` LIKE '%' || ? ORDER BY id LIMIT 1`,
		digits,
	)
	p, err := scanParticipant(row)
	if err != nil {
		return nil, fmt.Errorf("failed to find participant by phone: %w", err)
	}
	return p, nil
}

// FindByDigits returns the lowest-id participant whose punctuation-free phone
// equals digits, or nil.
func (r *participantRepository) FindByDigits(ctx context.Context, digits string) (*models.Participant, error) {
	if digits == "" {
		return nil, nil
	}
	row := r.db.QueryRowContext(ctx,
		`SELECT `+participantColumns+` FROM participants WHERE `+stripPhoneSQL("phone")+` = ? ORDER BY id LIMIT 1`,
		digits,
	)
	p, err := scanParticipant(row)
	if err != nil {
		return nil, fmt.Errorf("failed to find participant by phone: %w", err)
	}
	return p, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanParticipant(row rowScanner) (*models.Participant, error) {
	p := &models.Participant{}
	err := row.Scan(&p.ID, &p.FirstName, &p.LastName, &p.Phone, &p.Park, &p.TrainingType,
		&p.Coach, &p.RegistrationDate, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}
