package db

import (
	"context"
	"fmt"
	"time"

	"github.com/pannnnl/hkbus-eta/internal/eta"
	"github.com/pannnnl/hkbus-eta/internal/models"
)

// History returns the most recent polls of a stop, newest first
func (db *DB) History(ctx context.Context, key eta.Key, limit int) ([]Snapshot, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := db.conn.QueryContext(ctx, `
		SELECT snapshot_id, polled_at_utc
		FROM eta_snapshots
		WHERE operator = ? AND route = ? AND service_variant = ? AND direction = ? AND stop_id = ?
		ORDER BY polled_at_utc DESC
		LIMIT ?`,
		string(key.Operator), key.RouteCode, key.ServiceVariant, key.Direction.String(), key.StopID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}

	var snapshots []Snapshot
	for rows.Next() {
		var s Snapshot
		var polledAt string
		if err := rows.Scan(&s.SnapshotID, &polledAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		s.PolledAt, _ = time.Parse(time.RFC3339, polledAt)
		snapshots = append(snapshots, s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range snapshots {
		arrivals, err := db.arrivals(ctx, snapshots[i].SnapshotID)
		if err != nil {
			return nil, err
		}
		snapshots[i].Arrivals = arrivals
	}
	return snapshots, nil
}

func (db *DB) arrivals(ctx context.Context, snapshotID string) ([]Arrival, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT eta_seq, arrival_utc, destination, remark
		FROM eta_arrivals
		WHERE snapshot_id = ?
		ORDER BY arrival_utc`, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("failed to query arrivals: %w", err)
	}
	defer rows.Close()

	arrivals := []Arrival{}
	for rows.Next() {
		var a Arrival
		var arrivalAt string
		if err := rows.Scan(&a.EtaSeq, &arrivalAt, &a.Destination, &a.Remark); err != nil {
			return nil, fmt.Errorf("failed to scan arrival: %w", err)
		}
		a.ArrivalAt, _ = time.Parse(time.RFC3339, arrivalAt)
		arrivals = append(arrivals, a)
	}
	return arrivals, rows.Err()
}

// LatestPolls reports the last recorded poll per operator
func (db *DB) LatestPolls(ctx context.Context) ([]Freshness, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT operator, MAX(polled_at_utc), COUNT(*)
		FROM eta_snapshots
		GROUP BY operator
		ORDER BY operator`)
	if err != nil {
		return nil, fmt.Errorf("failed to query freshness: %w", err)
	}
	defer rows.Close()

	var out []Freshness
	for rows.Next() {
		var f Freshness
		var op, last string
		if err := rows.Scan(&op, &last, &f.Snapshots); err != nil {
			return nil, fmt.Errorf("failed to scan freshness: %w", err)
		}
		f.Operator = models.Operator(op)
		f.LastPolled, _ = time.Parse(time.RFC3339, last)
		f.AgeSeconds = int(time.Since(f.LastPolled).Seconds())
		out = append(out, f)
	}
	return out, rows.Err()
}
