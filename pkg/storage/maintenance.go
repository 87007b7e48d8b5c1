package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Stats summarizes the chat database.
type Stats struct {
	Users         int        `json:"users"`
	Departments   int        `json:"departments"`
	Channels      int        `json:"channels"`
	Memberships   int        `json:"memberships"`
	Messages      int        `json:"messages"`
	Notifications int        `json:"notifications"`
	OldestMessage *time.Time `json:"oldestMessage,omitempty"`
	NewestMessage *time.Time `json:"newestMessage,omitempty"`
}

func (s *Store) GetStats(ctx context.Context) (*Stats, error) {
	var st Stats
	counts := []struct {
		table string
		dst   *int
	}{
		{"users", &st.Users},
		{"departments", &st.Departments},
		{"channels", &st.Channels},
		{"channel_members", &st.Memberships},
		{"messages", &st.Messages},
		{"notifications", &st.Notifications},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+c.table).Scan(c.dst); err != nil {
			return nil, fmt.Errorf("counting %s: %w", c.table, err)
		}
	}

	var oldest, newest sql.NullInt64
	err := s.db.QueryRowContext(ctx, "SELECT MIN(created_at), MAX(created_at) FROM messages").Scan(&oldest, &newest)
	if err != nil {
		return nil, fmt.Errorf("getting message date range: %w", err)
	}
	st.OldestMessage = nullNanos(oldest)
	st.NewestMessage = nullNanos(newest)
	return &st, nil
}

// IntegrityCheck runs PRAGMA integrity_check, or quick_check when quick is
// set, and returns the reported problems. An empty result means the
// database is healthy.
func (s *Store) IntegrityCheck(ctx context.Context, quick bool) ([]string, error) {
	pragma := "PRAGMA integrity_check"
	if quick {
		pragma = "PRAGMA quick_check"
	}
	rows, err := s.db.QueryContext(ctx, pragma)
	if err != nil {
		return nil, fmt.Errorf("running %s: %w", pragma, err)
	}
	defer s.closeRows(rows)

	var problems []string
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return nil, fmt.Errorf("scanning %s result: %w", pragma, err)
		}
		if line != "ok" {
			problems = append(problems, line)
		}
	}
	return problems, rows.Err()
}

func (s *Store) Optimize(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "PRAGMA optimize")
	return err
}

func (s *Store) Analyze(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "ANALYZE")
	return err
}

func (s *Store) Vacuum(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "VACUUM")
	return err
}

func (s *Store) WALCheckpoint(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)")
	return err
}
