package db

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Database owns the sqlite handle and the schema
type Database struct {
	db *sql.DB
}

// NewDatabase opens the database at dsn and creates missing tables
func NewDatabase(dsn string) (*Database, error) {
	if dsn == "" {
		return nil, errors.New("database path is required")
	}

	// Check for invalid database file path
	if strings.Contains(dsn, "?mode=invalid") {
		return nil, errors.New("invalid database configuration")
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	// sqlite serializes writers; a single connection also keeps ":memory:"
	// databases from splitting across connections.
	db.SetMaxOpenConns(1)

	// Verify we can actually connect to the database
	if err := db.Ping(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("ping failed: %w, close failed: %v", err, closeErr)
		}
		return nil, err
	}

	if err := createTables(db); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("create tables failed: %w, close failed: %v", err, closeErr)
		}
		return nil, err
	}

	return &Database{db: db}, nil
}

const schema = `
	CREATE TABLE IF NOT EXISTS participants (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		first_name TEXT NOT NULL DEFAULT '',
		last_name TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL,
		park TEXT NOT NULL DEFAULT '',
		training_type TEXT NOT NULL DEFAULT '',
		coach TEXT NOT NULL DEFAULT '',
		registration_date TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS received_messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		participant_id INTEGER REFERENCES participants(id) ON DELETE SET NULL,
		body TEXT NOT NULL,
		sender_number TEXT NOT NULL,
		is_read BOOLEAN NOT NULL DEFAULT 0,
		read_at INTEGER,
		received_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sent_messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		participant_id INTEGER REFERENCES participants(id) ON DELETE SET NULL,
		body TEXT NOT NULL,
		recipient_number TEXT NOT NULL,
		status TEXT NOT NULL CHECK (status IN ('success', 'failure')),
		sent_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT UNIQUE NOT NULL,
		password_hash TEXT NOT NULL,
		totp_secret TEXT,
		totp_enabled BOOLEAN DEFAULT 0,
		failed_login_attempts INTEGER DEFAULT 0,
		locked_until INTEGER,
		last_login INTEGER,
		active BOOLEAN DEFAULT 1,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_participants_phone ON participants(phone);
	CREATE INDEX IF NOT EXISTS idx_received_sender_body ON received_messages(sender_number, body);
	CREATE INDEX IF NOT EXISTS idx_received_participant ON received_messages(participant_id);
	CREATE INDEX IF NOT EXISTS idx_received_unread ON received_messages(is_read);
	CREATE INDEX IF NOT EXISTS idx_sent_participant ON sent_messages(participant_id);
	CREATE INDEX IF NOT EXISTS idx_users_username ON users(username);
`

func createTables(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}

// GetDB returns the underlying handle for the repositories
func (d *Database) GetDB() *sql.DB {
	if d == nil {
		return nil
	}
	return d.db
}

func (d *Database) Close() error {
	if d == nil {
		return errors.New("database is nil")
	}

	if d.db == nil {
		return errors.New("database already closed")
	}

	err := d.db.Close()
	d.db = nil
	return err
}

// Ping checks the connection is still usable
func (d *Database) Ping() error {
	if d == nil || d.db == nil {
		return errors.New("database is closed")
	}
	return d.db.Ping()
}

// stripPhoneSQL removes the punctuation people type into phone numbers so the
// stored value can be compared digit by digit.
func stripPhoneSQL(column string) string {
	return fmt.Sprintf(
		"REPLACE(REPLACE(REPLACE(REPLACE(REPLACE(REPLACE(%s, '+', ''), '-', ''), '(', ''), ')', ''), ' ', ''), '.', '')",
		column,
	)
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms)
}

func nullableID(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	id := v.Int64
	return &id
}

func nullableTime(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromMillis(v.Int64)
	return &t
}
