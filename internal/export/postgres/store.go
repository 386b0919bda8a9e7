// Package postgres persists aggregate snapshots across resolver runs. It is
// an export sink only: the kernel never reads resolution state back from
// here.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"

	"dealroom/internal/export"
	"dealroom/internal/resolution/models"
	id "dealroom/pkg/domain"
	dErrors "dealroom/pkg/domain-errors"
	txcontext "dealroom/pkg/platform/tx"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// Migrate creates the snapshot table. Idempotent; the resolver calls it at
// startup instead of shipping a migration tool for a single table.
func (s *Store) Migrate(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS aggregate_snapshots (
			aggregate_id      TEXT PRIMARY KEY,
			deal_id           TEXT NOT NULL,
			object_type       TEXT NOT NULL,
			display_name      TEXT NOT NULL,
			canonical_name    TEXT NOT NULL,
			vendor            TEXT NOT NULL DEFAULT '',
			vendor_present    BOOLEAN NOT NULL DEFAULT FALSE,
			entity            TEXT NOT NULL,
			merged_fields     JSONB NOT NULL DEFAULT '{}',
			observation_count INTEGER NOT NULL,
			superseded_by     TEXT NOT NULL DEFAULT '',
			updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS idx_aggregate_snapshots_deal
			ON aggregate_snapshots (deal_id, object_type);
	`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "migrate snapshot table")
	}
	return nil
}

// Upsert writes one snapshot, keyed by aggregate id. Re-running an export
// overwrites the previous run's row for the same aggregate.
func (s *Store) Upsert(ctx context.Context, snap export.Snapshot) error {
	fields, err := json.Marshal(snap.MergedFields)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "marshal merged fields")
	}

	query := `
		INSERT INTO aggregate_snapshots (
			aggregate_id, deal_id, object_type, display_name, canonical_name,
			vendor, vendor_present, entity, merged_fields, observation_count,
			superseded_by, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now())
		ON CONFLICT (aggregate_id) DO UPDATE SET
			display_name      = EXCLUDED.display_name,
			canonical_name    = EXCLUDED.canonical_name,
			vendor            = EXCLUDED.vendor,
			vendor_present    = EXCLUDED.vendor_present,
			entity            = EXCLUDED.entity,
			merged_fields     = EXCLUDED.merged_fields,
			observation_count = EXCLUDED.observation_count,
			superseded_by     = EXCLUDED.superseded_by,
			updated_at        = now()
	`
	_, err = s.execer(ctx).ExecContext(ctx, query,
		string(snap.AggregateID),
		string(snap.DealID),
		snap.ObjectType.String(),
		snap.DisplayName,
		snap.CanonicalName,
		snap.Vendor,
		snap.VendorPresent,
		snap.Entity.String(),
		fields,
		snap.ObservationCount,
		string(snap.SupersededBy),
	)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "upsert aggregate snapshot")
	}
	return nil
}

// UpsertAll persists a batch in one transaction so a failed export never
// leaves a half-written run behind.
func (s *Store) UpsertAll(ctx context.Context, snaps []export.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "begin snapshot tx")
	}
	defer func() { _ = tx.Rollback() }()

	txCtx := txcontext.WithTx(ctx, tx)
	for _, snap := range snaps {
		if err := s.Upsert(txCtx, snap); err != nil {
			return dErrors.Add(err, "aggregate_id", string(snap.AggregateID))
		}
	}

	if err := tx.Commit(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "commit snapshot tx")
	}
	return nil
}

// ListByDeal reads snapshots back for operator tooling and tests.
func (s *Store) ListByDeal(ctx context.Context, dealID id.DealID, objectType id.ObjectType) ([]export.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT aggregate_id, deal_id, object_type, display_name, canonical_name,
		       vendor, vendor_present, entity, merged_fields, observation_count,
		       superseded_by
		FROM aggregate_snapshots
		WHERE deal_id = $1 AND object_type = $2
		ORDER BY display_name
	`, string(dealID), objectType.String())
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "query aggregate snapshots")
	}
	defer rows.Close()

	var snaps []export.Snapshot
	for rows.Next() {
		var snap export.Snapshot
		var aggregateID, dealIDStr, objectTypeStr, entity, supersededBy string
		var fields []byte
		if err := rows.Scan(
			&aggregateID, &dealIDStr, &objectTypeStr, &snap.DisplayName,
			&snap.CanonicalName, &snap.Vendor, &snap.VendorPresent, &entity,
			&fields, &snap.ObservationCount, &supersededBy,
		); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "scan aggregate snapshot")
		}
		if err := json.Unmarshal(fields, &snap.MergedFields); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "decode merged fields")
		}
		snap.AggregateID = id.AggregateID(aggregateID)
		snap.DealID = id.DealID(dealIDStr)
		snap.ObjectType = id.ObjectType(objectTypeStr)
		snap.Entity = models.Entity(entity)
		snap.SupersededBy = id.AggregateID(supersededBy)
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}
