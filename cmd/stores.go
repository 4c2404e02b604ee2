package cmd

import (
	"context"
	"fmt"

	"github.com/conneroisu/plantlog/internal/config"
	"github.com/conneroisu/plantlog/internal/logging"
	"github.com/conneroisu/plantlog/internal/store"
	"github.com/conneroisu/plantlog/internal/store/mongostore"
	"github.com/conneroisu/plantlog/internal/store/sqlitestore"
)

// openStore connects the configured backend.
func openStore(ctx context.Context, cfg config.StoreConfig, logger logging.Logger) (store.Store, error) {
	switch cfg.Driver {
	case config.DriverMongo:
		st, err := mongostore.Open(ctx, mongostore.Options{
			URI:          cfg.URI,
			Database:     cfg.Database,
			Timeout:      cfg.Timeout,
			Transactions: cfg.Transactions,
			Logger:       logger,
		})
		if err != nil {
			return nil, err
		}
		return st, nil
	case config.DriverSQLite:
		st, err := sqlitestore.Open(ctx, cfg.Path, logger)
		if err != nil {
			return nil, err
		}
		return st, nil
	case config.DriverMemory:
		return store.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
