package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goIdentity/permission"
)

// ErrConcurrentActivation is returned when another transaction activated a
// membership for the same (user, group) between our cancel and insert.
var ErrConcurrentActivation = errors.New("concurrent membership activation")

func (s *Store) Memberships(ctx context.Context, userID string) ([]permission.UserMembership, error) {
	if s.db == nil {
		return nil, ErrNoDatabase
	}
	rows, err := s.db.QueryContext(ctx, `
		select user_id, group_key, tier_key, status, started_at, expires_at
		from user_memberships
		where user_id = $1
		order by started_at, id
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []permission.UserMembership
	for rows.Next() {
		var (
			m       permission.UserMembership
			status  string
			expires sql.NullTime
		)
		if err := rows.Scan(&m.UserID, &m.Group, &m.Tier, &status, &m.StartedAt, &expires); err != nil {
			return nil, err
		}
		m.Status = permission.MembershipStatus(status)
		m.ExpiresAt = timePtr(expires)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ActivateMembership cancels the current ACTIVE row for (user, group), if
// any, and inserts m in one transaction.
func (s *Store) ActivateMembership(ctx context.Context, m permission.UserMembership) (string, error) {
	if s.db == nil {
		return "", ErrNoDatabase
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback() }()

	var previous string
	err = tx.QueryRowContext(ctx, `
		update user_memberships
		set status = $3, cancelled_at = $4
		where user_id = $1 and group_key = $2 and status = $5
		returning tier_key
	`, m.UserID, m.Group, string(permission.MembershipCancelled), m.StartedAt.UTC(), string(permission.MembershipActive)).Scan(&previous)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("cancel active membership: %w", err)
	}

	status := m.Status
	if status == "" {
		status = permission.MembershipActive
	}
	_, err = tx.ExecContext(ctx, `
		insert into user_memberships (user_id, group_key, tier_key, status, started_at, expires_at)
		values ($1, $2, $3, $4, $5, $6)
	`, m.UserID, m.Group, m.Tier, string(status), m.StartedAt.UTC(), nullTime(m.ExpiresAt))
	if err != nil {
		if pgErr, ok := maybePgError(err); ok {
			switch pgErr.Code {
			case pgErrUniqueViolation:
				return "", ErrConcurrentActivation
			case pgErrForeignKeyViolation:
				return "", permission.ErrTierNotFound
			}
		}
		return "", fmt.Errorf("insert membership: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return previous, nil
}

func (s *Store) CancelMembership(ctx context.Context, userID, group string, at time.Time) error {
	if s.db == nil {
		return ErrNoDatabase
	}
	_, err := s.db.ExecContext(ctx, `
		update user_memberships
		set status = $3, cancelled_at = $4
		where user_id = $1 and group_key = $2 and status = $5
	`, userID, group, string(permission.MembershipCancelled), at.UTC(), string(permission.MembershipActive))
	return err
}
