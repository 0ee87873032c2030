package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/vbonduro/donormap/internal/config"
	"github.com/vbonduro/donormap/internal/db"
	"github.com/vbonduro/donormap/internal/domain"
	"github.com/vbonduro/donormap/internal/store"
	"github.com/vbonduro/donormap/internal/store/mongostore"
)

// donorStore is what both backends offer: the directory query used by views
// and the insert used by registration and seeding.
type donorStore interface {
	Create(ctx context.Context, d *domain.Donor) (*domain.Donor, error)
	QueryDonors(ctx context.Context, constraints []domain.Constraint) ([]*domain.Donor, error)
}

// openStore opens the configured backend. The returned func releases it.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (donorStore, func(), error) {
	switch cfg.StoreBackend {
	case config.BackendMongo:
		client, database, err := mongostore.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to mongo: %w", err)
		}
		closeFn := func() {
			if err := client.Disconnect(context.Background()); err != nil {
				logger.Error("failed to disconnect from mongo", "error", err)
			}
		}
		s := mongostore.New(database)
		if err := s.EnsureIndexes(ctx); err != nil {
			closeFn()
			return nil, nil, fmt.Errorf("failed to create mongo indexes: %w", err)
		}
		logger.Info("using mongo donor store", "database", cfg.MongoDatabase)
		return s, closeFn, nil
	default:
		database, err := db.Open(cfg.DBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open database: %w", err)
		}
		logger.Info("using sqlite donor store", "path", cfg.DBPath)
		return store.NewDonorStore(database), closeDB(database, logger), nil
	}
}

func closeDB(database *sql.DB, logger *slog.Logger) func() {
	return func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}
}
