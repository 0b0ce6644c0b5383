// Package postgres is the reference PostgreSQL adapter for the permission
// storage interfaces. It talks database/sql through the pgx stdlib driver.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/MrEthical07/goIdentity/permission"
)

const (
	pgErrUniqueViolation     = "23505"
	pgErrForeignKeyViolation = "23503"
)

// ErrNoDatabase is returned when the store has no connection.
var ErrNoDatabase = errors.New("database connection unavailable")

// Store implements the catalog, assignment, membership and audit
// interfaces of package permission over one *sql.DB.
type Store struct {
	db *sql.DB
}

var (
	_ permission.Catalog         = (*Store)(nil)
	_ permission.IncludeStore    = (*Store)(nil)
	_ permission.AssignmentStore = (*Store)(nil)
	_ permission.MembershipStore = (*Store)(nil)
	_ permission.AuditSink       = (*Store)(nil)
)

// Open connects with the pgx driver.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// New wraps an existing connection pool.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if s.db == nil {
		return ErrNoDatabase
	}
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func maybePgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}

func placeholders(n, start int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("$%d", start+i)
	}
	return strings.Join(parts, ", ")
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
