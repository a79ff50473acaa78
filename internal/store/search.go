package store

import (
	"strings"
	"unicode/utf8"
)

const snippetRadius = 32

// SearchMessages finds messages whose body or attachment name contains query,
// case-insensitively, newest first. contactID narrows the search when set.
func (db *DB) SearchMessages(query string, contactID string, limit int) ([]SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}

	pattern := "%" + escapeLike(query) + "%"
	q := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE (body LIKE ? ESCAPE '\' OR attachment_name LIKE ? ESCAPE '\')`
	args := []any{pattern, pattern}
	if contactID != "" {
		q += " AND contact_id = ?"
		args = append(args, contactID)
	}
	q += " ORDER BY timestamp DESC LIMIT ?"
	args = append(args, limit)

	rows, err := db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := scanMessage(rows, &r.Message); err != nil {
			return nil, err
		}
		text := r.Message.Body
		if text == "" {
			text = r.Message.AttachmentName
		}
		r.Snippet = snippet(text, query)
		results = append(results, r)
	}
	return results, rows.Err()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// snippet marks the first match of query in text with << >> and trims the
// surroundings to snippetRadius runes on each side.
func snippet(text, query string) string {
	i := strings.Index(strings.ToLower(text), strings.ToLower(query))
	if i < 0 || len(strings.ToLower(text)) != len(text) {
		// Lowercasing changed byte offsets; fall back to a plain prefix.
		return truncateRunes(text, 2*snippetRadius)
	}
	before, match, after := text[:i], text[i:i+len(query)], text[i+len(query):]

	prefix := ""
	if utf8.RuneCountInString(before) > snippetRadius {
		r := []rune(before)
		before = string(r[len(r)-snippetRadius:])
		prefix = "..."
	}
	suffix := ""
	if utf8.RuneCountInString(after) > snippetRadius {
		after = string([]rune(after)[:snippetRadius])
		suffix = "..."
	}
	return prefix + before + "<<" + match + ">>" + after + suffix
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
