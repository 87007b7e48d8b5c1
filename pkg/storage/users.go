package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rubiojr/huddle/pkg/chat"
)

const userColumns = `id, email, first_name, last_name, avatar_url, role, department_id`

func scanUser(row rowScanner) (*chat.User, error) {
	var u chat.User
	var dept sql.NullString
	if err := row.Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.AvatarURL, &u.Role, &dept); err != nil {
		return nil, err
	}
	u.DepartmentID = dept.String
	return &u, nil
}

// UpsertUser inserts or refreshes a directory record.
func (s *Store) UpsertUser(ctx context.Context, u chat.User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			email = excluded.email,
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			avatar_url = excluded.avatar_url,
			role = excluded.role,
			department_id = excluded.department_id`,
		u.ID, u.Email, u.FirstName, u.LastName, u.AvatarURL, u.Role, nullString(u.DepartmentID))
	if err != nil {
		return fmt.Errorf("upserting user %s: %w", u.ID, err)
	}
	return nil
}

func (s *Store) UpsertDepartment(ctx context.Context, d chat.Department) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO departments (id, name) VALUES (?, ?)
		ON CONFLICT (id) DO UPDATE SET name = excluded.name`, d.ID, d.Name)
	if err != nil {
		return fmt.Errorf("upserting department %s: %w", d.ID, err)
	}
	return nil
}

// GetUsers returns the known users among ids keyed by id. Unknown ids are
// absent from the map.
func (s *Store) GetUsers(ctx context.Context, ids []string) (map[string]chat.User, error) {
	users := make(map[string]chat.User, len(ids))
	if len(ids) == 0 {
		return users, nil
	}

	in, args := inClause(ids)
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users WHERE id IN `+in, args...)
	if err != nil {
		return nil, fmt.Errorf("querying users: %w", err)
	}
	defer s.closeRows(rows)

	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users[u.ID] = *u
	}
	return users, rows.Err()
}

func (s *Store) GetUser(ctx context.Context, id string) (*chat.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	return u, notFound(err)
}

func (s *Store) ListUsers(ctx context.Context) ([]chat.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY first_name, last_name, id`)
	if err != nil {
		return nil, fmt.Errorf("querying users: %w", err)
	}
	defer s.closeRows(rows)

	var users []chat.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (s *Store) GetDepartment(ctx context.Context, id string) (*chat.Department, error) {
	var d chat.Department
	err := s.db.QueryRowContext(ctx, `SELECT id, name FROM departments WHERE id = ?`, id).Scan(&d.ID, &d.Name)
	if err != nil {
		return nil, notFound(err)
	}
	return &d, nil
}

func (s *Store) ListDepartments(ctx context.Context) ([]chat.Department, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM departments ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("querying departments: %w", err)
	}
	defer s.closeRows(rows)

	var departments []chat.Department
	for rows.Next() {
		var d chat.Department
		if err := rows.Scan(&d.ID, &d.Name); err != nil {
			return nil, fmt.Errorf("scanning department: %w", err)
		}
		departments = append(departments, d)
	}
	return departments, rows.Err()
}
