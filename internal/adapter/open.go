// Package adapter selects the persistence adapter named by the configuration.
package adapter

import (
	"context"
	"fmt"

	"charity/internal/adapter/repo"
	"charity/internal/adapter/sqlite"
	"charity/internal/domain"
	"charity/internal/infra"
)

// OpenStore connects the fund store that DATABASE_URL points at.
func OpenStore(ctx context.Context, cfg *infra.Config, logger infra.Logger) (domain.FundStore, error) {
	driver, err := cfg.StoreDriver()
	if err != nil {
		return nil, err
	}
	switch driver {
	case infra.DriverPostgres:
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			return nil, err
		}
		logger.Info().Str("driver", driver).Msg("fund store connected")
		return repo.NewFundStore(pool, logger, cfg.AllocationMaxRetries), nil
	case infra.DriverSQLite:
		store, err := sqlite.Open(ctx, cfg.SQLitePath(), logger)
		if err != nil {
			return nil, err
		}
		logger.Info().Str("driver", driver).Str("path", cfg.SQLitePath()).Msg("fund store connected")
		return store, nil
	}
	return nil, fmt.Errorf("unsupported store driver %q", driver)
}
