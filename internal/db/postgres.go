package db

import (
	"context"
	_ "embed"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pannnnl/hkbus-eta/internal/eta"
	"github.com/pannnnl/hkbus-eta/internal/models"
)

//go:embed schema_postgres.sql
var postgresSchemaSQL string

// Postgres is the Store used when DATABASE_URL is configured
type Postgres struct {
	pool *pgxpool.Pool
}

func ConnectPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("Connected to Postgres database")
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, postgresSchemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

func (p *Postgres) RecordETAs(ctx context.Context, key eta.Key, polledAt time.Time, entries []models.EtaEntry) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	snapshotID := uuid.New().String()
	_, err = tx.Exec(ctx, `
		INSERT INTO eta_snapshots (
			snapshot_id, polled_at_utc, operator, route, service_variant, direction, stop_id, arrival_count
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		snapshotID, polledAt.UTC(), string(key.Operator), key.RouteCode,
		key.ServiceVariant, key.Direction.String(), key.StopID, len(entries),
	)
	if err != nil {
		return fmt.Errorf("failed to create snapshot: %w", err)
	}

	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(`
			INSERT INTO eta_arrivals (snapshot_id, eta_seq, arrival_utc, destination, remark)
			VALUES ($1, $2, $3, $4, $5)`,
			snapshotID, e.Sequence, e.Arrival.UTC(), e.Destination, e.Remark)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to insert arrivals: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func (p *Postgres) History(ctx context.Context, key eta.Key, limit int) ([]Snapshot, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := p.pool.Query(ctx, `
		SELECT s.snapshot_id::text, s.polled_at_utc, a.eta_seq, a.arrival_utc, a.destination, a.remark
		FROM (
			SELECT snapshot_id, polled_at_utc
			FROM eta_snapshots
			WHERE operator = $1 AND route = $2 AND service_variant = $3 AND direction = $4 AND stop_id = $5
			ORDER BY polled_at_utc DESC
			LIMIT $6
		) s
		LEFT JOIN eta_arrivals a ON a.snapshot_id = s.snapshot_id
		ORDER BY s.polled_at_utc DESC, a.arrival_utc`,
		string(key.Operator), key.RouteCode, key.ServiceVariant, key.Direction.String(), key.StopID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var snapshots []Snapshot
	for rows.Next() {
		var (
			id          string
			polledAt    time.Time
			seq         *int
			arrivalAt   *time.Time
			destination *string
			remark      *string
		)
		if err := rows.Scan(&id, &polledAt, &seq, &arrivalAt, &destination, &remark); err != nil {
			return nil, fmt.Errorf("failed to scan history: %w", err)
		}
		if len(snapshots) == 0 || snapshots[len(snapshots)-1].SnapshotID != id {
			snapshots = append(snapshots, Snapshot{SnapshotID: id, PolledAt: polledAt, Arrivals: []Arrival{}})
		}
		if seq == nil || arrivalAt == nil {
			continue
		}
		a := Arrival{EtaSeq: *seq, ArrivalAt: *arrivalAt}
		if destination != nil {
			a.Destination = *destination
		}
		if remark != nil {
			a.Remark = *remark
		}
		last := &snapshots[len(snapshots)-1]
		last.Arrivals = append(last.Arrivals, a)
	}
	return snapshots, rows.Err()
}

func (p *Postgres) LatestPolls(ctx context.Context) ([]Freshness, error) {
	rows, err := p.pool.Query(ctx, `
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
		var op string
		if err := rows.Scan(&op, &f.LastPolled, &f.Snapshots); err != nil {
			return nil, fmt.Errorf("failed to scan freshness: %w", err)
		}
		f.Operator = models.Operator(op)
		f.AgeSeconds = int(time.Since(f.LastPolled).Seconds())
		out = append(out, f)
	}
	return out, rows.Err()
}

func (p *Postgres) Cleanup(ctx context.Context, retention time.Duration) (int64, error) {
	tag, err := p.pool.Exec(ctx, "DELETE FROM eta_snapshots WHERE polled_at_utc < $1", time.Now().Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup snapshots: %w", err)
	}
	if n := tag.RowsAffected(); n > 0 {
		log.Printf("Cleanup: deleted %d snapshots older than %v", n, retention)
	}
	return tag.RowsAffected(), nil
}
