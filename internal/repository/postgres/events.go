package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/ignite/listmonk-relay/internal/relay"
)

const createDeliveryEventsTable = `
CREATE TABLE IF NOT EXISTS relay_delivery_events (
	id                  UUID PRIMARY KEY,
	event_type          TEXT NOT NULL,
	activity_type       TEXT NOT NULL DEFAULT '',
	recipient_email     TEXT NOT NULL DEFAULT '',
	provider_message_id TEXT NOT NULL DEFAULT '',
	campaign_uuid       TEXT NOT NULL DEFAULT '',
	tags                TEXT[] NOT NULL DEFAULT '{}',
	outcome             TEXT NOT NULL,
	error               TEXT NOT NULL DEFAULT '',
	received_at         TIMESTAMPTZ NOT NULL
)`

// Open connects to PostgreSQL and verifies the connection.
func Open(ctx context.Context, url string) (*sql.DB, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// EventJournal implements relay.EventJournal against PostgreSQL.
type EventJournal struct{ db *sql.DB }

// NewEventJournal creates a Postgres-backed delivery event journal.
func NewEventJournal(db *sql.DB) *EventJournal { return &EventJournal{db: db} }

// EnsureSchema creates the journal table if it does not exist.
func (j *EventJournal) EnsureSchema(ctx context.Context) error {
	if _, err := j.db.ExecContext(ctx, createDeliveryEventsTable); err != nil {
		return fmt.Errorf("create relay_delivery_events: %w", err)
	}
	return nil
}

// Record inserts one routed delivery event.
func (j *EventJournal) Record(ctx context.Context, rec relay.EventRecord) error {
	tags := rec.Event.Tags
	if tags == nil {
		tags = []string{}
	}
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO relay_delivery_events (
			id, event_type, activity_type, recipient_email, provider_message_id,
			campaign_uuid, tags, outcome, error, received_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, uuid.New(), string(rec.Event.Type), rec.Event.RawType, rec.Event.RecipientEmail,
		rec.Event.ProviderMessageID, rec.CampaignUUID, pq.Array(tags),
		string(rec.Outcome), rec.Error, rec.ReceivedAt)
	if err != nil {
		return fmt.Errorf("insert delivery event: %w", err)
	}
	return nil
}

// Ping reports whether the database is reachable.
func (j *EventJournal) Ping(ctx context.Context) error {
	return j.db.PingContext(ctx)
}
