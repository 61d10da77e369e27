package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/xela07ax/unihub-backend/internal/audit"
)

// WriteBatch сохраняет пачку событий workflow за один проход.
// Используем pgx CopyFrom — самый дешевый способ пакетной вставки.
func (s *Store) WriteBatch(ctx context.Context, events []audit.Event) error {
	if len(events) == 0 {
		return nil
	}

	_, err := s.pool.CopyFrom(ctx,
		pgx.Identifier{"workflow_events"},
		[]string{"id", "request_id", "action_key", "kind", "actor_id", "decision", "payload", "timestamp"},
		pgx.CopyFromSlice(len(events), func(i int) ([]interface{}, error) {
			e := events[i]
			payload, _ := json.Marshal(e.Payload)
			return []interface{}{
				e.ID, e.RequestID, e.ActionKey, e.Kind,
				e.ActorID, e.Decision, payload, e.Timestamp,
			}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("postgres: failed to write workflow events: %w", err)
	}
	return nil
}
