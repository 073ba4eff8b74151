package cleanup

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/carebook/carebook/internal/platform/db"
)

// TenantStore fans a slot deletion out across every tenant schema. Slot
// tables only exist inside tenant schemas, so a deletion issued on a bare
// pool connection resolves against the default search_path and finds
// nothing; each tenant needs a connection pinned to its schema for the
// duration of the pass.
type TenantStore struct {
	pool   *pgxpool.Pool
	slots  SlotStore
	logger zerolog.Logger
}

func NewTenantStore(pool *pgxpool.Pool, slots SlotStore, logger zerolog.Logger) *TenantStore {
	return &TenantStore{pool: pool, slots: slots, logger: logger}
}

// DeleteExpiredUnbooked runs the deletion once per tenant schema and returns
// the total rows removed. A failure in one tenant is logged and the pass
// moves on to the next; the first such error is returned after the loop so
// the caller still sees that the pass was incomplete.
func (s *TenantStore) DeleteExpiredUnbooked(ctx context.Context, cutoff time.Time) (int64, error) {
	tenants, err := db.ListTenantSchemas(ctx, s.pool)
	if err != nil {
		return 0, err
	}

	var total int64
	var firstErr error
	for _, tenantID := range tenants {
		err := db.WithTenantConn(ctx, s.pool, tenantID, func(ctx context.Context) error {
			n, err := s.slots.DeleteExpiredUnbooked(ctx, cutoff)
			if err != nil {
				return err
			}
			total += n
			return nil
		})
		if err != nil {
			s.logger.Error().Err(err).Str("tenant_id", tenantID).Msg("tenant slot cleanup failed")
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	return total, firstErr
}
