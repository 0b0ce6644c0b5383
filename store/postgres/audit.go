package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/MrEthical07/goIdentity/permission"
)

// Append inserts rec into audit_log. Rows are never updated or deleted.
func (s *Store) Append(ctx context.Context, rec permission.AuditRecord) error {
	if s.db == nil {
		return ErrNoDatabase
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	details := rec.Details
	if details == nil {
		details = map[string]string{}
	}
	payload, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("encode audit details: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		insert into audit_log (id, event_type, actor_id, target_user_id, details, created_at)
		values ($1, $2, $3, $4, $5, $6)
	`, rec.ID, rec.EventType, rec.ActorID, rec.TargetUserID, payload, rec.Timestamp.UTC())
	return err
}
