package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/joseph-ayodele/docextract/internal/common"
	"github.com/joseph-ayodele/docextract/internal/repository"
)

// store bundles the database and its repositories for one command.
type store struct {
	db          *repository.DB
	sessions    repository.SessionRepository
	batches     repository.BatchRepository
	validations repository.ValidationRepository
	documents   repository.DocumentRepository
}

func openStore(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*store, error) {
	db, err := repository.Open(ctx, repository.ConfigFrom(cfg.Database), logger)
	if err != nil {
		return nil, err
	}
	if err := db.HealthCheck(ctx, 5*time.Second); err != nil {
		db.Close()
		return nil, err
	}
	return &store{
		db:          db,
		sessions:    repository.NewSessionRepository(db, logger),
		batches:     repository.NewBatchRepository(db, logger),
		validations: repository.NewValidationRepository(db, logger),
		documents:   repository.NewDocumentRepository(db, logger),
	}, nil
}

func (s *store) Close() { s.db.Close() }

func migrateAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	logger := slog.Default()
	st, err := openStore(c.Context, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()
	if err := st.db.Migrate(c.Context); err != nil {
		return err
	}
	logger.Info("migrate.ok", "dialect", st.db.Dialect())
	return nil
}
