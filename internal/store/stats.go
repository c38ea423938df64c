package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/homewatt/wattd/internal/storage/types"
)

// TierStats holds per-tier row statistics for the reporting layer.
type TierStats struct {
	// RowCount is the number of rows in the tier.
	RowCount int64

	// OldestTs and NewestTs bound the tier's timestamps (window_start for
	// aggregate tiers). Only meaningful when RowCount > 0.
	OldestTs int64
	NewestTs int64
}

// Stats returns row statistics for every tier.
func (s *Store) Stats(ctx context.Context) (map[types.Tier]TierStats, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	queries := map[types.Tier]string{
		types.TierRaw:    `SELECT count(*), min(ts), max(ts) FROM raw_readings`,
		types.TierMinute: `SELECT count(*), min(window_start), max(window_start) FROM minute_aggregates`,
		types.TierHourly: `SELECT count(*), min(window_start), max(window_start) FROM hourly_aggregates`,
	}

	stats := make(map[types.Tier]TierStats, len(queries))
	for _, tier := range types.AllTiers() {
		var (
			count    int64
			min, max sql.NullInt64
		)
		if err := s.db.QueryRowContext(ctx, queries[tier]).Scan(&count, &min, &max); err != nil {
			return nil, fmt.Errorf("stats for %s tier: %w", tier, err)
		}
		stats[tier] = TierStats{
			RowCount: count,
			OldestTs: min.Int64,
			NewestTs: max.Int64,
		}
	}

	return stats, nil
}
