package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Notification is a persisted notice for a single user.
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Category  string    `json:"category"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}

// InsertNotifications stores notes in one transaction, filling ID and
// CreatedAt when empty.
func (s *Store) InsertNotifications(ctx context.Context, notes []Notification) error {
	if len(notes) == 0 {
		return nil
	}
	now := time.Now().UTC()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO notifications (id, user_id, title, body, category, is_read, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("preparing statement: %w", err)
		}
		defer func() {
			if err := stmt.Close(); err != nil {
				s.log.Warnf("failed to close statement: %v", err)
			}
		}()

		for _, n := range notes {
			if n.ID == "" {
				n.ID = uuid.NewString()
			}
			if n.CreatedAt.IsZero() {
				n.CreatedAt = now
			}
			if _, err := stmt.ExecContext(ctx, n.ID, n.UserID, n.Title, n.Body, n.Category, n.Read, nanos(n.CreatedAt)); err != nil {
				return fmt.Errorf("inserting notification for %s: %w", n.UserID, err)
			}
		}
		return nil
	})
}

// ListNotifications returns up to limit notifications of userID, newest first.
func (s *Store) ListNotifications(ctx context.Context, userID string, limit int) ([]Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, title, body, category, is_read, created_at
		FROM notifications
		WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying notifications: %w", err)
	}
	defer s.closeRows(rows)

	var notes []Notification
	for rows.Next() {
		var n Notification
		var created int64
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Body, &n.Category, &n.Read, &created); err != nil {
			return nil, fmt.Errorf("scanning notification: %w", err)
		}
		n.CreatedAt = fromNanos(created)
		notes = append(notes, n)
	}
	return notes, rows.Err()
}
