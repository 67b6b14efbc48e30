package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"trustgrid/internal/identity/models"
	id "trustgrid/pkg/domain"
	"trustgrid/pkg/platform/sentinel"
	txcontext "trustgrid/pkg/platform/tx"
)

// Postgres persists identities. Mutate runs SELECT ... FOR UPDATE inside a
// transaction, which is what serializes concurrent operations on one record.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Schema applied by migrations; kept here so integration tests are
// self-contained.
const Schema = `
CREATE TABLE IF NOT EXISTS identities (
    id                  UUID PRIMARY KEY,
    owner_key           TEXT        NOT NULL UNIQUE,
    did                 TEXT        NOT NULL,
    metadata_uri        TEXT        NOT NULL DEFAULT '',
    verification_bitmap SMALLINT    NOT NULL DEFAULT 0,
    reputation_score    BIGINT      NOT NULL,
    staked_amount       BIGINT      NOT NULL DEFAULT 0,
    recovery_keys       TEXT[]      NOT NULL DEFAULT '{}',
    created_at          TIMESTAMPTZ NOT NULL,
    updated_at          TIMESTAMPTZ NOT NULL
);
`

const uniqueViolation = "23505"

func (s *Postgres) Create(ctx context.Context, identity *models.Identity) error {
	_, err := txcontext.Resolve(ctx, s.db).ExecContext(ctx, `
		INSERT INTO identities
			(id, owner_key, did, metadata_uri, verification_bitmap,
			 reputation_score, staked_amount, recovery_keys, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		uuid.UUID(identity.ID), identity.OwnerKey.String(), identity.DID, identity.MetadataURI,
		int16(identity.VerificationBitmap), identity.ReputationScore, int64(identity.StakedAmount),
		pq.Array(keysToStrings(identity.RecoveryKeys)), identity.CreatedAt, identity.UpdatedAt,
	)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return sentinel.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("insert identity: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, identityID id.IdentityID) (*models.Identity, error) {
	return s.findWhere(ctx, txcontext.Resolve(ctx, s.db), "id = $1", uuid.UUID(identityID))
}

func (s *Postgres) FindByOwner(ctx context.Context, owner id.Key) (*models.Identity, error) {
	return s.findWhere(ctx, txcontext.Resolve(ctx, s.db), "owner_key = $1", owner.String())
}

// Mutate locks the row, applies fn, and writes the result back in one
// transaction.
func (s *Postgres) Mutate(ctx context.Context, identityID id.IdentityID, fn func(*models.Identity) error) (*models.Identity, error) {
	dbtx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin identity mutation: %w", err)
	}
	defer dbtx.Rollback()

	identity, err := s.findWhere(ctx, dbtx, "id = $1 FOR UPDATE", uuid.UUID(identityID))
	if err != nil {
		return nil, err
	}
	if err := fn(identity); err != nil {
		return nil, err
	}

	_, err = dbtx.ExecContext(ctx, `
		UPDATE identities SET
			owner_key = $2, metadata_uri = $3, verification_bitmap = $4,
			reputation_score = $5, staked_amount = $6, recovery_keys = $7, updated_at = $8
		WHERE id = $1`,
		uuid.UUID(identityID), identity.OwnerKey.String(), identity.MetadataURI,
		int16(identity.VerificationBitmap), identity.ReputationScore, int64(identity.StakedAmount),
		pq.Array(keysToStrings(identity.RecoveryKeys)), identity.UpdatedAt,
	)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return nil, sentinel.ErrConflict
	}
	if err != nil {
		return nil, fmt.Errorf("update identity: %w", err)
	}
	if err := dbtx.Commit(); err != nil {
		return nil, fmt.Errorf("commit identity mutation: %w", err)
	}
	return identity, nil
}

func (s *Postgres) findWhere(ctx context.Context, q txcontext.Executor, where string, arg any) (*models.Identity, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, owner_key, did, metadata_uri, verification_bitmap,
		       reputation_score, staked_amount, recovery_keys, created_at, updated_at
		FROM identities WHERE `+where, arg)

	var (
		identity models.Identity
		rawID    uuid.UUID
		owner    string
		bitmap   int16
		staked   int64
		keys     pq.StringArray
	)
	err := row.Scan(&rawID, &owner, &identity.DID, &identity.MetadataURI, &bitmap,
		&identity.ReputationScore, &staked, &keys, &identity.CreatedAt, &identity.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan identity: %w", err)
	}

	identity.ID = id.IdentityID(rawID)
	identity.OwnerKey = id.Key(owner)
	identity.VerificationBitmap = uint8(bitmap)
	identity.StakedAmount = uint64(staked)
	identity.RecoveryKeys = make([]id.Key, len(keys))
	for i, k := range keys {
		identity.RecoveryKeys[i] = id.Key(k)
	}
	return &identity, nil
}

func keysToStrings(keys []id.Key) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k.String()
	}
	return out
}
