package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const upsertContactSQL = `
	INSERT INTO contacts (id, display_name, avatar_ref, unread_count, last_message_preview, last_message_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		display_name = CASE WHEN excluded.display_name != '' THEN excluded.display_name ELSE contacts.display_name END,
		avatar_ref = CASE WHEN excluded.avatar_ref != '' THEN excluded.avatar_ref ELSE contacts.avatar_ref END,
		unread_count = excluded.unread_count,
		last_message_preview = excluded.last_message_preview,
		last_message_at = excluded.last_message_at,
		updated_at = excluded.updated_at`

// UpsertContact inserts or updates a contact. Empty names and avatars never
// overwrite known ones.
func (db *DB) UpsertContact(c *Contact) error {
	_, err := db.Exec(upsertContactSQL,
		c.ID, c.DisplayName, c.AvatarRef, c.UnreadCount, c.LastMessagePreview, c.LastMessageAt, time.Now().UnixMilli())
	return err
}

// BulkUpsertContacts inserts or updates multiple contacts in a single transaction.
func (db *DB) BulkUpsertContacts(contacts []Contact) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UnixMilli()
	for _, c := range contacts {
		if _, err := tx.Exec(upsertContactSQL,
			c.ID, c.DisplayName, c.AvatarRef, c.UnreadCount, c.LastMessagePreview, c.LastMessageAt, now); err != nil {
			return fmt.Errorf("upsert contact %q: %w", c.ID, err)
		}
	}
	return tx.Commit()
}

// GetContact returns a contact by id, or nil when unknown.
func (db *DB) GetContact(id string) (*Contact, error) {
	var c Contact
	err := db.QueryRow(`
		SELECT id, display_name, avatar_ref, unread_count, last_message_preview, last_message_at
		FROM contacts WHERE id = ?`, id).
		Scan(&c.ID, &c.DisplayName, &c.AvatarRef, &c.UnreadCount, &c.LastMessagePreview, &c.LastMessageAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListContacts returns contacts, most recent conversation first.
func (db *DB) ListContacts(limit, offset int) ([]Contact, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := db.Query(`
		SELECT id, COALESCE(NULLIF(display_name, ''), id), avatar_ref, unread_count, last_message_preview, last_message_at
		FROM contacts
		ORDER BY last_message_at DESC, id ASC
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Contact
	for rows.Next() {
		var c Contact
		if err := rows.Scan(&c.ID, &c.DisplayName, &c.AvatarRef, &c.UnreadCount, &c.LastMessagePreview, &c.LastMessageAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ContactCount returns the number of archived contacts.
func (db *DB) ContactCount() (int64, error) {
	var count int64
	err := db.QueryRow(`SELECT COUNT(*) FROM contacts`).Scan(&count)
	return count, err
}
