package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/MrEthical07/goIdentity/permission"
)

func (s *Store) Role(ctx context.Context, key string) (permission.Role, error) {
	if s.db == nil {
		return permission.Role{}, ErrNoDatabase
	}
	var role permission.Role
	err := s.db.QueryRowContext(ctx, `
		select key, display_name, is_system
		from roles
		where key = $1
	`, key).Scan(&role.Key, &role.DisplayName, &role.System)
	if errors.Is(err, sql.ErrNoRows) {
		return permission.Role{}, permission.ErrRoleNotFound
	}
	if err != nil {
		return permission.Role{}, err
	}
	return role, nil
}

func (s *Store) RolePermissions(ctx context.Context, roleKeys []string) ([]string, error) {
	if s.db == nil {
		return nil, ErrNoDatabase
	}
	if len(roleKeys) == 0 {
		return nil, nil
	}
	args := make([]any, len(roleKeys))
	for i, k := range roleKeys {
		args[i] = k
	}
	query := fmt.Sprintf(`
		select distinct permission_key
		from role_permissions
		where role_key in (%s)
		order by permission_key
	`, placeholders(len(roleKeys), 1))
	return s.queryStrings(ctx, query, args...)
}

func (s *Store) DirectIncludes(ctx context.Context, roleKey string) ([]string, error) {
	if s.db == nil {
		return nil, ErrNoDatabase
	}
	return s.queryStrings(ctx, `
		select include_key
		from role_includes
		where role_key = $1
		order by include_key
	`, roleKey)
}

func (s *Store) AllIncludes(ctx context.Context) (map[string][]string, error) {
	if s.db == nil {
		return nil, ErrNoDatabase
	}
	rows, err := s.db.QueryContext(ctx, `
		select role_key, include_key
		from role_includes
		order by role_key, include_key
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	graph := map[string][]string{}
	for rows.Next() {
		var role, include string
		if err := rows.Scan(&role, &include); err != nil {
			return nil, err
		}
		graph[role] = append(graph[role], include)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return graph, nil
}

// roleIncludeLock is the advisory lock key that serializes include writers
// across connections.
const roleIncludeLock int64 = 0x676f4944

// AddIncludeIfAcyclic takes the include lock, walks role_includes from
// includeKey with a recursive CTE and inserts the edge only when roleKey is
// unreachable, all in one transaction. An edge naming an unknown role fails
// with [permission.ErrRoleNotFound].
func (s *Store) AddIncludeIfAcyclic(ctx context.Context, roleKey, includeKey string) (bool, error) {
	if s.db == nil {
		return false, ErrNoDatabase
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `select pg_advisory_xact_lock($1)`, roleIncludeLock); err != nil {
		return false, err
	}

	var cycle bool
	err = tx.QueryRowContext(ctx, `
		with recursive reach(key) as (
			select $1::text
			union
			select ri.include_key
			from role_includes ri
			join reach r on ri.role_key = r.key
		)
		select exists (select 1 from reach where key = $2)
	`, includeKey, roleKey).Scan(&cycle)
	if err != nil {
		return false, err
	}
	if cycle {
		return false, permission.ErrRoleCycle
	}

	res, err := tx.ExecContext(ctx, `
		insert into role_includes (role_key, include_key)
		values ($1, $2)
		on conflict do nothing
	`, roleKey, includeKey)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return false, permission.ErrRoleNotFound
		}
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *Store) Tier(ctx context.Context, group, tierKey string) (permission.MembershipTier, error) {
	if s.db == nil {
		return permission.MembershipTier{}, ErrNoDatabase
	}
	var tier permission.MembershipTier
	err := s.db.QueryRowContext(ctx, `
		select group_key, tier_key, sort_order
		from membership_tiers
		where group_key = $1 and tier_key = $2
	`, group, tierKey).Scan(&tier.Group, &tier.TierKey, &tier.SortOrder)
	if errors.Is(err, sql.ErrNoRows) {
		return permission.MembershipTier{}, permission.ErrTierNotFound
	}
	if err != nil {
		return permission.MembershipTier{}, err
	}
	return tier, nil
}

func (s *Store) TierPermissions(ctx context.Context, group, tierKey string) ([]string, error) {
	if s.db == nil {
		return nil, ErrNoDatabase
	}
	return s.queryStrings(ctx, `
		select permission_key
		from tier_permissions
		where group_key = $1 and tier_key = $2
		order by permission_key
	`, group, tierKey)
}

func (s *Store) queryStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
