package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rubiojr/huddle/pkg/chat"
)

const messageColumns = `id, channel_id, sender_id, content, reply_to_id, mentions, attachments, created_at`

func scanMessage(row rowScanner) (*chat.Message, error) {
	var m chat.Message
	var replyTo, mentions, attachments sql.NullString
	var created int64
	if err := row.Scan(&m.ID, &m.ChannelID, &m.SenderID, &m.Content, &replyTo, &mentions, &attachments, &created); err != nil {
		return nil, err
	}
	m.ReplyToID = replyTo.String
	m.CreatedAt = fromNanos(created)

	if mentions.Valid && mentions.String != "" {
		if err := json.Unmarshal([]byte(mentions.String), &m.Mentions); err != nil {
			return nil, fmt.Errorf("unmarshaling mentions of %s: %w", m.ID, err)
		}
	}
	if attachments.Valid && attachments.String != "" {
		if err := json.Unmarshal([]byte(attachments.String), &m.Attachments); err != nil {
			return nil, fmt.Errorf("unmarshaling attachments of %s: %w", m.ID, err)
		}
	}
	return &m, nil
}

// jsonColumn encodes v, storing an empty slice as NULL.
func jsonColumn[T any](v []T) (sql.NullString, error) {
	if len(v) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func (s *Store) queryMessages(ctx context.Context, query string, args ...any) ([]chat.Message, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer s.closeRows(rows)

	var msgs []chat.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		msgs = append(msgs, *m)
	}
	return msgs, rows.Err()
}

func (s *Store) InsertMessage(ctx context.Context, m *chat.Message) error {
	mentions, err := jsonColumn(m.Mentions)
	if err != nil {
		return fmt.Errorf("marshaling mentions: %w", err)
	}
	attachments, err := jsonColumn(m.Attachments)
	if err != nil {
		return fmt.Errorf("marshaling attachments: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO messages (`+messageColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.ChannelID, m.SenderID, m.Content, nullString(m.ReplyToID),
		mentions, attachments, nanos(m.CreatedAt))
	if err != nil {
		return fmt.Errorf("inserting message %s: %w", m.ID, err)
	}
	return nil
}

func (s *Store) GetMessage(ctx context.Context, id string) (*chat.Message, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = ?`, id)
	m, err := scanMessage(row)
	return m, notFound(err)
}

func (s *Store) GetMessages(ctx context.Context, ids []string) ([]chat.Message, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	in, args := inClause(ids)
	return s.queryMessages(ctx, `SELECT `+messageColumns+` FROM messages WHERE id IN `+in, args...)
}

func (s *Store) ListMessages(ctx context.Context, channelID string, before *time.Time, limit int) ([]chat.Message, error) {
	if before == nil {
		return s.queryMessages(ctx, `
			SELECT `+messageColumns+` FROM messages
			WHERE channel_id = ?
			ORDER BY created_at DESC, rowid DESC
			LIMIT ?`, channelID, limit)
	}
	return s.queryMessages(ctx, `
		SELECT `+messageColumns+` FROM messages
		WHERE channel_id = ? AND created_at < ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, channelID, nanos(*before), limit)
}

func (s *Store) LatestMessage(ctx context.Context, channelID string) (*chat.Message, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+messageColumns+` FROM messages
		WHERE channel_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT 1`, channelID)
	m, err := scanMessage(row)
	return m, notFound(err)
}

func (s *Store) CountMessages(ctx context.Context, channelID string, after *time.Time) (int, error) {
	var n int
	var err error
	if after == nil {
		err = s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM messages WHERE channel_id = ?`, channelID).Scan(&n)
	} else {
		err = s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM messages WHERE channel_id = ? AND created_at > ?`, channelID, nanos(*after)).Scan(&n)
	}
	if err != nil {
		return 0, fmt.Errorf("counting messages: %w", err)
	}
	return n, nil
}

// FindLatestMessage matches case-sensitively: substr and instr compare bytes,
// unlike LIKE.
func (s *Store) FindLatestMessage(ctx context.Context, prefix, needle string) (*chat.Message, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+messageColumns+` FROM messages
		WHERE substr(content, 1, length(?)) = ? AND instr(content, ?) > 0
		ORDER BY created_at DESC, rowid DESC
		LIMIT 1`, prefix, prefix, needle)
	m, err := scanMessage(row)
	return m, notFound(err)
}

func (s *Store) UpdateMessageContent(ctx context.Context, id, content string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE messages SET content = ? WHERE id = ?`, content, id)
	if err != nil {
		return fmt.Errorf("updating message %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return chat.ErrNotFound
	}
	return nil
}
