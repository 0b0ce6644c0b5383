package postgres

import (
	"context"
	"database/sql"

	"github.com/MrEthical07/goIdentity/permission"
)

func (s *Store) Assignments(ctx context.Context, userID string) ([]permission.RoleAssignment, error) {
	if s.db == nil {
		return nil, ErrNoDatabase
	}
	rows, err := s.db.QueryContext(ctx, `
		select user_id, role_key, assigned_by, assigned_at, expires_at
		from role_assignments
		where user_id = $1
		order by assigned_at, role_key
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []permission.RoleAssignment
	for rows.Next() {
		var (
			a       permission.RoleAssignment
			expires sql.NullTime
		)
		if err := rows.Scan(&a.UserID, &a.RoleKey, &a.AssignedBy, &a.AssignedAt, &expires); err != nil {
			return nil, err
		}
		a.ExpiresAt = timePtr(expires)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) SaveAssignment(ctx context.Context, a permission.RoleAssignment) error {
	if s.db == nil {
		return ErrNoDatabase
	}
	_, err := s.db.ExecContext(ctx, `
		insert into role_assignments (user_id, role_key, assigned_by, assigned_at, expires_at)
		values ($1, $2, $3, $4, $5)
		on conflict (user_id, role_key) do update
		set assigned_by = excluded.assigned_by,
		    assigned_at = excluded.assigned_at,
		    expires_at = excluded.expires_at
	`, a.UserID, a.RoleKey, a.AssignedBy, a.AssignedAt.UTC(), nullTime(a.ExpiresAt))
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return permission.ErrRoleNotFound
		}
		return err
	}
	return nil
}

func (s *Store) DeleteAssignment(ctx context.Context, userID, roleKey string) error {
	if s.db == nil {
		return ErrNoDatabase
	}
	_, err := s.db.ExecContext(ctx, `
		delete from role_assignments
		where user_id = $1 and role_key = $2
	`, userID, roleKey)
	return err
}
