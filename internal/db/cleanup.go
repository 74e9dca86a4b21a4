package db

import (
	"context"
	"fmt"
	"log"
	"time"
)

// Cleanup deletes snapshots older than retention. Arrivals go with them
// through the cascading foreign key.
func (db *DB) Cleanup(ctx context.Context, retention time.Duration) (int64, error) {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	cutoff := time.Now().Add(-retention).UTC().Format(time.RFC3339)
	result, err := db.conn.ExecContext(ctx, "DELETE FROM eta_snapshots WHERE polled_at_utc < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup snapshots: %w", err)
	}

	deleted, _ := result.RowsAffected()
	if deleted > 0 {
		log.Printf("Cleanup: deleted %d snapshots older than %v", deleted, retention)
	}
	return deleted, nil
}
