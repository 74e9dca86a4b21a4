// Package db records ETA poll history in SQLite or Postgres.
package db

import (
	"context"
	"time"

	"github.com/pannnnl/hkbus-eta/internal/eta"
	"github.com/pannnnl/hkbus-eta/internal/models"
)

// Store is implemented by both backends
type Store interface {
	eta.Recorder
	History(ctx context.Context, key eta.Key, limit int) ([]Snapshot, error)
	LatestPolls(ctx context.Context) ([]Freshness, error)
	Cleanup(ctx context.Context, retention time.Duration) (int64, error)
	Close() error
}

// Snapshot is one recorded poll of a stop
type Snapshot struct {
	SnapshotID string    `json:"snapshotId"`
	PolledAt   time.Time `json:"polledAt"`
	Arrivals   []Arrival `json:"arrivals"`
}

// Arrival is one recorded arrival estimate
type Arrival struct {
	EtaSeq      int       `json:"etaSeq"`
	ArrivalAt   time.Time `json:"arrival"`
	Destination string    `json:"destination,omitempty"`
	Remark      string    `json:"remark,omitempty"`
}

// Freshness reports the most recent poll recorded for an operator
type Freshness struct {
	Operator   models.Operator `json:"operator"`
	LastPolled time.Time       `json:"lastPolled"`
	Snapshots  int             `json:"snapshots"`
	AgeSeconds int             `json:"ageSeconds"`
}

// Open connects to Postgres when databaseURL is set, otherwise to the
// SQLite file at sqlitePath. The schema is created if missing.
func Open(ctx context.Context, databaseURL, sqlitePath string) (Store, error) {
	if databaseURL != "" {
		pg, err := ConnectPostgres(ctx, databaseURL)
		if err != nil {
			return nil, err
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			pg.Close()
			return nil, err
		}
		return pg, nil
	}

	lite, err := Connect(sqlitePath)
	if err != nil {
		return nil, err
	}
	if err := lite.EnsureSchema(ctx); err != nil {
		lite.Close()
		return nil, err
	}
	return lite, nil
}

var (
	_ Store = (*DB)(nil)
	_ Store = (*Postgres)(nil)
)
