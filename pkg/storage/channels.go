package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rubiojr/huddle/pkg/chat"
)

const channelColumns = `id, name, type, department_id, created_by_id, description, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChannel(row rowScanner) (*chat.Channel, error) {
	var ch chat.Channel
	var kind string
	var dept, creator sql.NullString
	var created, updated int64
	if err := row.Scan(&ch.ID, &ch.Name, &kind, &dept, &creator, &ch.Description, &created, &updated); err != nil {
		return nil, err
	}
	ch.Kind = chat.ChannelKind(kind)
	ch.DepartmentID = dept.String
	ch.CreatedByID = creator.String
	ch.CreatedAt = fromNanos(created)
	ch.UpdatedAt = fromNanos(updated)
	return &ch, nil
}

func (s *Store) queryChannels(ctx context.Context, query string, args ...any) ([]chat.Channel, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying channels: %w", err)
	}
	defer s.closeRows(rows)

	var channels []chat.Channel
	for rows.Next() {
		ch, err := scanChannel(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning channel: %w", err)
		}
		channels = append(channels, *ch)
	}
	return channels, rows.Err()
}

func (s *Store) FindChannel(ctx context.Context, kind chat.ChannelKind) (*chat.Channel, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+channelColumns+` FROM channels WHERE type = ? ORDER BY created_at, rowid LIMIT 1`, string(kind))
	ch, err := scanChannel(row)
	return ch, notFound(err)
}

func (s *Store) FindDepartmentChannel(ctx context.Context, departmentID string) (*chat.Channel, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+channelColumns+` FROM channels WHERE type = ? AND department_id = ? LIMIT 1`,
		string(chat.KindDepartment), departmentID)
	ch, err := scanChannel(row)
	return ch, notFound(err)
}

func (s *Store) GetChannel(ctx context.Context, id string) (*chat.Channel, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+channelColumns+` FROM channels WHERE id = ?`, id)
	ch, err := scanChannel(row)
	return ch, notFound(err)
}

func (s *Store) ListChannels(ctx context.Context, kind chat.ChannelKind) ([]chat.Channel, error) {
	return s.queryChannels(ctx,
		`SELECT `+channelColumns+` FROM channels WHERE type = ? ORDER BY name, rowid`, string(kind))
}

func (s *Store) ListChannelsByID(ctx context.Context, ids []string) ([]chat.Channel, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	in, args := inClause(ids)
	return s.queryChannels(ctx,
		`SELECT `+channelColumns+` FROM channels WHERE id IN `+in+` ORDER BY updated_at DESC, rowid DESC`, args...)
}

// CreateChannel inserts ch. The partial unique indexes on channels make the
// insert a no-op when a concurrent caller already created the GENERAL,
// MANAGERS or department channel, in which case that row is returned.
func (s *Store) CreateChannel(ctx context.Context, ch *chat.Channel) (*chat.Channel, error) {
	created := *ch
	if created.ID == "" {
		created.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if created.CreatedAt.IsZero() {
		created.CreatedAt = now
	}
	if created.UpdatedAt.IsZero() {
		created.UpdatedAt = created.CreatedAt
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO channels (`+channelColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING`,
		created.ID, created.Name, string(created.Kind), nullString(created.DepartmentID),
		nullString(created.CreatedByID), created.Description,
		nanos(created.CreatedAt), nanos(created.UpdatedAt))
	if err != nil {
		return nil, fmt.Errorf("inserting channel: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("checking inserted channel: %w", err)
	}
	if n > 0 {
		return &created, nil
	}

	s.log.Debugf("%s channel already exists, reusing it", created.Kind)
	if created.Kind == chat.KindDepartment {
		return s.FindDepartmentChannel(ctx, created.DepartmentID)
	}
	if created.Kind == chat.KindOrgWide || created.Kind == chat.KindManagers {
		return s.FindChannel(ctx, created.Kind)
	}
	return s.GetChannel(ctx, created.ID)
}

func (s *Store) TouchChannel(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE channels SET updated_at = ? WHERE id = ?`, nanos(at), id)
	if err != nil {
		return fmt.Errorf("updating channel %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return chat.ErrNotFound
	}
	return nil
}

func (s *Store) AddMembers(ctx context.Context, channelID string, userIDs ...string) error {
	if len(userIDs) == 0 {
		return nil
	}
	joined := nanos(time.Now())
	return s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO channel_members (channel_id, user_id, joined_at)
			VALUES (?, ?, ?)
			ON CONFLICT (channel_id, user_id) DO NOTHING`)
		if err != nil {
			return fmt.Errorf("preparing statement: %w", err)
		}
		defer func() {
			if err := stmt.Close(); err != nil {
				s.log.Warnf("failed to close statement: %v", err)
			}
		}()

		for _, userID := range userIDs {
			if _, err := stmt.ExecContext(ctx, channelID, userID, joined); err != nil {
				return fmt.Errorf("inserting member %s: %w", userID, err)
			}
		}
		return nil
	})
}

func (s *Store) queryMemberships(ctx context.Context, query string, args ...any) ([]chat.Membership, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying memberships: %w", err)
	}
	defer s.closeRows(rows)

	var memberships []chat.Membership
	for rows.Next() {
		var m chat.Membership
		var lastRead sql.NullInt64
		if err := rows.Scan(&m.ChannelID, &m.UserID, &lastRead); err != nil {
			return nil, fmt.Errorf("scanning membership: %w", err)
		}
		m.LastReadAt = nullNanos(lastRead)
		memberships = append(memberships, m)
	}
	return memberships, rows.Err()
}

func (s *Store) ListMembershipsByUser(ctx context.Context, userID string) ([]chat.Membership, error) {
	return s.queryMemberships(ctx,
		`SELECT channel_id, user_id, last_read_at FROM channel_members WHERE user_id = ? ORDER BY joined_at, rowid`, userID)
}

func (s *Store) ListMembershipsByChannel(ctx context.Context, channelID string) ([]chat.Membership, error) {
	return s.queryMemberships(ctx,
		`SELECT channel_id, user_id, last_read_at FROM channel_members WHERE channel_id = ? ORDER BY joined_at, rowid`, channelID)
}

func (s *Store) GetMembership(ctx context.Context, channelID, userID string) (*chat.Membership, error) {
	var m chat.Membership
	var lastRead sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT channel_id, user_id, last_read_at FROM channel_members WHERE channel_id = ? AND user_id = ?`,
		channelID, userID).Scan(&m.ChannelID, &m.UserID, &lastRead)
	if err != nil {
		return nil, notFound(err)
	}
	m.LastReadAt = nullNanos(lastRead)
	return &m, nil
}

func (s *Store) CountMembers(ctx context.Context, channelID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM channel_members WHERE channel_id = ?`, channelID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting members: %w", err)
	}
	return n, nil
}

func (s *Store) SharedChannelIDs(ctx context.Context, kind chat.ChannelKind, userA, userB string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id FROM channels c
		JOIN channel_members a ON a.channel_id = c.id AND a.user_id = ?
		JOIN channel_members b ON b.channel_id = c.id AND b.user_id = ?
		WHERE c.type = ?
		ORDER BY c.created_at, c.rowid`, userA, userB, string(kind))
	if err != nil {
		return nil, fmt.Errorf("querying shared channels: %w", err)
	}
	defer s.closeRows(rows)

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning channel id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) SetLastRead(ctx context.Context, channelID, userID string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE channel_members SET last_read_at = ? WHERE channel_id = ? AND user_id = ?`,
		nanos(at), channelID, userID)
	if err != nil {
		return fmt.Errorf("updating read cursor: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return chat.ErrNotFound
	}
	return nil
}
