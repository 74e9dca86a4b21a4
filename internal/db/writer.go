package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pannnnl/hkbus-eta/internal/eta"
	"github.com/pannnnl/hkbus-eta/internal/models"
)

// RecordETAs stores one poll of a stop and its arrivals in a single transaction
func (db *DB) RecordETAs(ctx context.Context, key eta.Key, polledAt time.Time, entries []models.EtaEntry) error {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	snapshotID := uuid.New().String()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO eta_snapshots (
			snapshot_id, polled_at_utc, operator, route, service_variant, direction, stop_id, arrival_count
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		snapshotID, polledAt.UTC().Format(time.RFC3339), string(key.Operator), key.RouteCode,
		key.ServiceVariant, key.Direction.String(), key.StopID, len(entries),
	)
	if err != nil {
		return fmt.Errorf("failed to create snapshot: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO eta_arrivals (snapshot_id, eta_seq, arrival_utc, destination, remark)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare arrival insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, snapshotID, e.Sequence, e.Arrival.UTC().Format(time.RFC3339), e.Destination, e.Remark); err != nil {
			return fmt.Errorf("failed to insert arrival: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}
