package invite

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

// Migrate applies the embedded migrations and returns the applied group.
// An empty group means the schema was already up to date.
func Migrate(ctx context.Context, db *bun.DB, logger Logger) (*migrate.MigrationGroup, error) {
	logger = normalizeLogger(logger)

	dir, err := MigrationsDir()
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to open embedded migrations")
	}

	migrations := migrate.NewMigrations()
	if err := migrations.Discover(dir); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to discover migrations")
	}

	migrator := migrate.NewMigrator(db, migrations)
	if err := migrator.Init(ctx); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to initialize migration tables")
	}

	group, err := migrator.Migrate(ctx)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to run migrations")
	}

	if group == nil || group.IsZero() {
		logger.Debug("no new migrations to run")
		return group, nil
	}

	logger.Info("migrations applied", "group", group.String())
	return group, nil
}
