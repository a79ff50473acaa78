package store

import (
	"fmt"
	"math"
	"slices"
	"time"
)

const messageColumns = `id, contact_id, sender_id, kind, body, attachment_name, attachment_size,
	mime_type, url, reply_id, reply_sender_id, reply_preview, status, timestamp`

type scanner interface {
	Scan(dest ...any) error
}

func scanMessage(s scanner, m *Message, extra ...any) error {
	dest := []any{
		&m.ID, &m.ContactID, &m.SenderID, &m.Kind, &m.Body, &m.AttachmentName, &m.AttachmentSize,
		&m.MimeType, &m.URL, &m.ReplyID, &m.ReplySenderID, &m.ReplyPreview, &m.Status, &m.Timestamp,
	}
	return s.Scan(append(dest, extra...)...)
}

// UpsertMessage inserts or updates a message (idempotent on id).
func (db *DB) UpsertMessage(m *Message) error {
	_, err := db.Exec(`
		INSERT INTO messages (`+messageColumns+`, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			body = excluded.body,
			url = CASE WHEN excluded.url != '' THEN excluded.url ELSE messages.url END,
			status = excluded.status`,
		m.ID, m.ContactID, m.SenderID, m.Kind, m.Body, m.AttachmentName, m.AttachmentSize,
		m.MimeType, m.URL, m.ReplyID, m.ReplySenderID, m.ReplyPreview, m.Status, m.Timestamp,
		time.Now().UnixMilli())
	return err
}

// SetStatus updates the delivery status of a message.
func (db *DB) SetStatus(id, status string) error {
	_, err := db.Exec(`UPDATE messages SET status = ? WHERE id = ?`, status, id)
	return err
}

// ReconcileMessage renames a provisional message to its server id. When a
// row with the server id already exists (an echo got there first) the
// provisional row is dropped instead.
func (db *DB) ReconcileMessage(tempID, serverID, status string) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM messages WHERE id = ?`, serverID).Scan(&exists); err != nil {
		return fmt.Errorf("lookup %q: %w", serverID, err)
	}
	if exists > 0 {
		if _, err := tx.Exec(`DELETE FROM messages WHERE id = ?`, tempID); err != nil {
			return fmt.Errorf("drop provisional %q: %w", tempID, err)
		}
		if _, err := tx.Exec(`UPDATE messages SET status = ? WHERE id = ?`, status, serverID); err != nil {
			return fmt.Errorf("update %q: %w", serverID, err)
		}
	} else if _, err := tx.Exec(`UPDATE messages SET id = ?, status = ? WHERE id = ?`, serverID, status, tempID); err != nil {
		return fmt.Errorf("rename %q: %w", tempID, err)
	}
	return tx.Commit()
}

// DeleteMessage removes a message. Unknown ids are not an error.
func (db *DB) DeleteMessage(id string) error {
	_, err := db.Exec(`DELETE FROM messages WHERE id = ?`, id)
	return err
}

// ListMessages returns messages for a contact using keyset pagination by
// timestamp, newest first. beforeTs <= 0 starts from the newest message,
// including ones stamped ahead of the local clock.
func (db *DB) ListMessages(contactID string, beforeTs int64, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	if beforeTs <= 0 {
		beforeTs = math.MaxInt64
	}
	return db.queryMessages(`
		SELECT `+messageColumns+`
		FROM messages
		WHERE contact_id = ? AND timestamp < ?
		ORDER BY timestamp DESC, rowid DESC
		LIMIT ?`, contactID, beforeTs, limit)
}

// RecentMessages returns the last limit messages of a contact in the order
// they were archived, oldest first. Timestamps from different clocks do not
// reorder them.
func (db *DB) RecentMessages(contactID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	msgs, err := db.queryMessages(`
		SELECT `+messageColumns+`
		FROM messages
		WHERE contact_id = ?
		ORDER BY rowid DESC
		LIMIT ?`, contactID, limit)
	if err != nil {
		return nil, err
	}
	slices.Reverse(msgs)
	return msgs, nil
}

func (db *DB) queryMessages(query string, args ...any) ([]Message, error) {
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := scanMessage(rows, &m); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// MessageCount returns the total number of messages.
func (db *DB) MessageCount() (int64, error) {
	var count int64
	err := db.QueryRow(`SELECT COUNT(*) FROM messages`).Scan(&count)
	return count, err
}
