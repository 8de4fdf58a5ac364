package internal

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/rs/zerolog"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// migrationLockID serializes migrations between the server and worker when
// both start against a fresh database.
const migrationLockID = 5820314471

func withMigrationLock(ctx context.Context, pool *pgxpool.Pool, fn func() error) error {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection for migration lock: %w", err)
	}
	defer conn.Release()

	// Advisory locks are session scoped, so lock and unlock on one connection.
	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", migrationLockID); err != nil {
		return fmt.Errorf("failed to acquire advisory lock: %w", err)
	}
	defer conn.Exec(context.WithoutCancel(ctx), "SELECT pg_advisory_unlock($1)", migrationLockID)

	return fn()
}

func newAppMigrator(pool *pgxpool.Pool) (*migrate.Migrate, error) {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to create migration source driver: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, "pgx5://"+pool.Config().ConnString())
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}
	return m, nil
}

// MigrateUp applies River's schema and then the application schema.
func MigrateUp(ctx context.Context, pool *pgxpool.Pool, logger zerolog.Logger) error {
	return withMigrationLock(ctx, pool, func() error {
		riverMigrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
		if err != nil {
			return fmt.Errorf("failed to create river migrator: %w", err)
		}
		res, err := riverMigrator.Migrate(ctx, rivermigrate.DirectionUp, nil)
		if err != nil {
			return fmt.Errorf("failed to run river migrations up: %w", err)
		}
		for _, v := range res.Versions {
			logger.Info().Int("version", v.Version).Msg("applied river migration")
		}

		m, err := newAppMigrator(pool)
		if err != nil {
			return err
		}
		defer m.Close()

		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("failed to run application migrations up: %w", err)
		}
		if version, dirty, err := m.Version(); err == nil {
			logger.Info().Uint("version", version).Bool("dirty", dirty).Msg("application schema ready")
		}
		return nil
	})
}

// MigrateDown rolls back the application schema and then River's.
func MigrateDown(ctx context.Context, pool *pgxpool.Pool, logger zerolog.Logger) error {
	return withMigrationLock(ctx, pool, func() error {
		m, err := newAppMigrator(pool)
		if err != nil {
			return err
		}
		defer m.Close()

		if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("failed to run application migrations down: %w", err)
		}

		riverMigrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
		if err != nil {
			return fmt.Errorf("failed to create river migrator: %w", err)
		}
		if _, err := riverMigrator.Migrate(ctx, rivermigrate.DirectionDown, nil); err != nil {
			return fmt.Errorf("failed to run river migrations down: %w", err)
		}
		logger.Info().Msg("schema rolled back")
		return nil
	})
}
