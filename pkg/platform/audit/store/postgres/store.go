package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	id "trustgrid/pkg/domain"
	audit "trustgrid/pkg/platform/audit"
	txcontext "trustgrid/pkg/platform/tx"
)

// Store implements audit.Store using the transactional outbox pattern.
// Events are written to the outbox table in the same transaction as the
// domain mutation and published to Kafka by the relay worker. Kafka is the
// source of truth for downstream consumers.
type Store struct {
	db *sql.DB
}

// New creates a PostgreSQL audit store that writes to the outbox.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Schema for the outbox table. Applied by migrations; kept here so the store
// is self-describing in tests.
const Schema = `
CREATE TABLE IF NOT EXISTS audit_outbox (
    id           UUID PRIMARY KEY,
    category     TEXT        NOT NULL,
    identity_id  UUID,
    actor        TEXT        NOT NULL DEFAULT '',
    action       TEXT        NOT NULL,
    payload      JSONB       NOT NULL,
    created_at   TIMESTAMPTZ NOT NULL,
    published_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS audit_outbox_unpublished
    ON audit_outbox (created_at) WHERE published_at IS NULL;
CREATE INDEX IF NOT EXISTS audit_outbox_identity
    ON audit_outbox (identity_id);
`

// outboxPayload is the JSON structure published to Kafka. Field names match
// audit.Event for deserialization by consumers.
type outboxPayload struct {
	ID         string `json:"ID"`
	Category   string `json:"Category"`
	Timestamp  string `json:"Timestamp"`
	IdentityID string `json:"IdentityID,omitempty"`
	Actor      string `json:"Actor,omitempty"`
	Action     string `json:"Action"`
	Reason     string `json:"Reason,omitempty"`
	RequestID  string `json:"RequestID,omitempty"`
}

// Append writes an audit event to the outbox table for Kafka publishing.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	eventID := uuid.New()

	// Category is always derived from action; the map in pkg/platform/audit
	// is the source of truth.
	category := audit.AuditEvent(event.Action).Category()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	payload := outboxPayload{
		ID:        eventID.String(),
		Category:  string(category),
		Timestamp: event.Timestamp.Format(time.RFC3339Nano),
		Actor:     event.Actor.String(),
		Action:    event.Action,
		Reason:    event.Reason,
		RequestID: event.RequestID,
	}
	var identityArg any
	if !event.IdentityID.IsNil() {
		payload.IdentityID = event.IdentityID.String()
		identityArg = uuid.UUID(event.IdentityID)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal outbox payload: %w", err)
	}

	_, err = txcontext.Resolve(ctx, s.db).ExecContext(ctx, `
		INSERT INTO audit_outbox (id, category, identity_id, actor, action, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		eventID, string(category), identityArg, event.Actor.String(), event.Action, body, event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert audit outbox row: %w", err)
	}
	return nil
}

// ListByIdentity returns events for an identity in append order. Reads the
// outbox directly; consumers needing full history should read the Kafka topic.
func (s *Store) ListByIdentity(ctx context.Context, identityID id.IdentityID) ([]audit.Event, error) {
	rows, err := txcontext.Resolve(ctx, s.db).QueryContext(ctx, `
		SELECT payload FROM audit_outbox
		WHERE identity_id = $1
		ORDER BY created_at ASC`,
		uuid.UUID(identityID),
	)
	if err != nil {
		return nil, fmt.Errorf("query audit outbox: %w", err)
	}
	defer rows.Close()

	var out []audit.Event
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan audit outbox row: %w", err)
		}
		var p outboxPayload
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, fmt.Errorf("unmarshal outbox payload: %w", err)
		}
		event := audit.Event{
			Category:  audit.EventCategory(p.Category),
			Actor:     id.Key(p.Actor),
			Action:    p.Action,
			Reason:    p.Reason,
			RequestID: p.RequestID,
		}
		if p.IdentityID != "" {
			if iid, err := id.ParseIdentityID(p.IdentityID); err == nil {
				event.IdentityID = iid
			}
		}
		if ts, err := time.Parse(time.RFC3339Nano, p.Timestamp); err == nil {
			event.Timestamp = ts
		}
		out = append(out, event)
	}
	return out, rows.Err()
}

// PendingRow is an unpublished outbox row handed to the relay.
type PendingRow struct {
	ID      uuid.UUID
	Payload []byte
}

// FetchUnpublished returns up to limit unpublished rows, oldest first.
// Relay-only; runs outside any caller transaction.
func (s *Store) FetchUnpublished(ctx context.Context, limit int) ([]PendingRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, payload FROM audit_outbox
		WHERE published_at IS NULL
		ORDER BY created_at ASC
		LIMIT $1`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query unpublished outbox rows: %w", err)
	}
	defer rows.Close()

	var out []PendingRow
	for rows.Next() {
		var r PendingRow
		if err := rows.Scan(&r.ID, &r.Payload); err != nil {
			return nil, fmt.Errorf("scan outbox row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// MarkPublished stamps rows as delivered. Idempotent.
func (s *Store) MarkPublished(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	args := make([]any, 0, len(ids)+1)
	args = append(args, time.Now())
	placeholder := ""
	for i, rowID := range ids {
		if i > 0 {
			placeholder += ", "
		}
		placeholder += fmt.Sprintf("$%d", i+2)
		args = append(args, rowID)
	}
	_, err := s.db.ExecContext(ctx,
		"UPDATE audit_outbox SET published_at = $1 WHERE id IN ("+placeholder+")",
		args...,
	)
	if err != nil {
		return fmt.Errorf("mark outbox rows published: %w", err)
	}
	return nil
}
