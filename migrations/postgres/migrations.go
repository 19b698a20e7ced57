package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/migrate"
)

//go:embed *.sql
var migrationFS embed.FS

// FS exposes the embedded SQL for external runners.
var FS = migrationFS

// Migrations is the bun/migrate registry for the otpkit schema.
var Migrations = migrate.NewMigrations()

func init() {
	if err := Migrations.Discover(migrationFS); err != nil {
		panic(fmt.Sprintf("otpkit migrations: %v", err))
	}
}

// Migrate applies every pending migration under a database lock and returns the
// names of the ones applied.
func Migrate(ctx context.Context, sqlDB *sql.DB) ([]string, error) {
	db := bun.NewDB(sqlDB, pgdialect.New())
	m := migrate.NewMigrator(db, Migrations, migrate.WithTableName("otpkit_migrations"), migrate.WithLocksTableName("otpkit_migration_locks"))
	if err := m.Init(ctx); err != nil {
		return nil, fmt.Errorf("init migrations: %w", err)
	}
	if err := m.Lock(ctx); err != nil {
		return nil, fmt.Errorf("lock migrations: %w", err)
	}
	defer func() {
		if err := m.Unlock(ctx); err != nil {
			logrus.WithError(err).Warn("otpkit: failed to release migration lock")
		}
	}()

	group, err := m.Migrate(ctx)
	if err != nil {
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	var applied []string
	if group != nil && !group.IsZero() {
		for _, mg := range group.Migrations {
			applied = append(applied, mg.Name)
		}
		logrus.WithFields(logrus.Fields{"group": group.ID, "migrations": applied}).Info("otpkit: migrations applied")
	}
	return applied, nil
}
