// Package cache persists the last committed projection to a local sqlite
// file, so the UI can render the conversation while the backend is
// unreachable. It is a snapshot, not a journal: each save replaces the
// previous one wholesale.
package cache

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/drheny/cab-sub000/internal/models"
)

// Cache is the sqlite-backed snapshot store.
type Cache struct {
	db *sql.DB
}

// Open creates or opens the snapshot database at dbPath.
func Open(ctx context.Context, dbPath string) (*Cache, error) {
	if dbPath == "" {
		dbPath = "./data/cabsync.db"
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	c := &Cache{db: db}
	if err := c.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

// initSchema creates tables if they don't exist.
func (c *Cache) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		sender_role TEXT NOT NULL,
		sender_name TEXT NOT NULL,
		content TEXT NOT NULL,
		original_content TEXT DEFAULT '',
		reply_to TEXT DEFAULT '',
		reply_preview TEXT DEFAULT '',
		is_read INTEGER DEFAULT 0,
		is_edited INTEGER DEFAULT 0,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		position INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS phone_messages (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		direction TEXT NOT NULL,
		priority TEXT NOT NULL,
		patient_ref TEXT DEFAULT '',
		message_content TEXT NOT NULL,
		response_content TEXT DEFAULT '',
		responded_by TEXT DEFAULT '',
		call_date TEXT NOT NULL,
		call_time TEXT NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_messages_position ON messages(position);
	`

	_, err := c.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (c *Cache) Close() {
	c.db.Close()
}

// Ping checks the database connection.
func (c *Cache) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// SaveMessages replaces the cached conversation snapshot.
func (c *Cache) SaveMessages(ctx context.Context, msgs []models.Message) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages`); err != nil {
		return err
	}

	for i, m := range msgs {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO messages (id, sender_role, sender_name, content, original_content,
				reply_to, reply_preview, is_read, is_edited, created_at, updated_at, position)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, m.ID, string(m.SenderRole), m.SenderName, m.Content, m.OriginalContent,
			m.ReplyTo, m.ReplyPreview, m.IsRead, m.IsEdited, m.CreatedAt, m.UpdatedAt, i)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// LoadMessages returns the cached conversation snapshot in order.
func (c *Cache) LoadMessages(ctx context.Context) ([]models.Message, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, sender_role, sender_name, content, original_content,
			reply_to, reply_preview, is_read, is_edited, created_at, updated_at
		FROM messages ORDER BY position
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []models.Message
	for rows.Next() {
		var m models.Message
		var role string
		err := rows.Scan(&m.ID, &role, &m.SenderName, &m.Content, &m.OriginalContent,
			&m.ReplyTo, &m.ReplyPreview, &m.IsRead, &m.IsEdited, &m.CreatedAt, &m.UpdatedAt)
		if err != nil {
			return nil, err
		}
		m.SenderRole = models.Role(role)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// SavePhoneMessages replaces the cached phone list snapshot.
func (c *Cache) SavePhoneMessages(ctx context.Context, list []models.PhoneMessage) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM phone_messages`); err != nil {
		return err
	}

	for _, pm := range list {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO phone_messages (id, status, direction, priority, patient_ref,
				message_content, response_content, responded_by, call_date, call_time, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, pm.ID, string(pm.Status), string(pm.Direction), string(pm.Priority), pm.PatientRef,
			pm.MessageContent, pm.ResponseContent, pm.RespondedBy, pm.CallDate, pm.CallTime, pm.UpdatedAt)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// LoadPhoneMessages returns the cached phone list snapshot.
func (c *Cache) LoadPhoneMessages(ctx context.Context) ([]models.PhoneMessage, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, status, direction, priority, patient_ref,
			message_content, response_content, responded_by, call_date, call_time, updated_at
		FROM phone_messages ORDER BY call_date, call_time
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.PhoneMessage
	for rows.Next() {
		var pm models.PhoneMessage
		var status, direction, priority string
		err := rows.Scan(&pm.ID, &status, &direction, &priority, &pm.PatientRef,
			&pm.MessageContent, &pm.ResponseContent, &pm.RespondedBy, &pm.CallDate, &pm.CallTime, &pm.UpdatedAt)
		if err != nil {
			return nil, err
		}
		pm.Status = models.PhoneStatus(status)
		pm.Direction = models.Direction(direction)
		pm.Priority = models.Priority(priority)
		list = append(list, pm)
	}
	return list, rows.Err()
}
