// README: Append-only execution event log for dispatch and trip activity.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"lastmile/internal/types"
)

type Event struct {
	ID         int64
	EventType  string
	EntityType string
	EntityID   types.ID
	ActorID    *types.ID
	Data       json.RawMessage
	CreatedAt  time.Time
}

// Recorder is what event producers depend on. *Store satisfies it.
type Recorder interface {
	Append(ctx context.Context, e Event) error
}

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Append(ctx context.Context, e Event) error {
	var actor *string
	if e.ActorID != nil {
		v := string(*e.ActorID)
		actor = &v
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO execution_events (event_type, entity_type, entity_id, actor_id, data, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		e.EventType, e.EntityType, string(e.EntityID), actor, e.Data, time.Now(),
	)
	return err
}

func (s *Store) ListByEntity(ctx context.Context, entityType string, entityID types.ID) ([]*Event, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, event_type, entity_type, entity_id, actor_id, data, created_at
		FROM execution_events
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY id`,
		entityType, string(entityID),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.EventType, &e.EntityType, &e.EntityID, &e.ActorID, &e.Data, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
