package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

//go:embed migrations
var migrationsFS embed.FS

// RunMigrations applies the embedded migrations for d against dsn on a
// dedicated connection, which is closed before returning.
func RunMigrations(d Dialect, dsn string, logger *zap.Logger) error {
	db, err := sql.Open(d.DriverName, dsn)
	if err != nil {
		return fmt.Errorf("open db for migrations: %w", err)
	}

	sourceDriver, err := iofs.New(migrationsFS, d.migrationsDir)
	if err != nil {
		db.Close()
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := d.newDriver(db)
	if err != nil {
		db.Close()
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, d.Name, dbDriver)
	if err != nil {
		db.Close()
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}

	version, dirty, _ := m.Version()
	logger.Info("backup schema migrated",
		zap.String("dialect", d.Name),
		zap.Uint("version", version),
		zap.Bool("dirty", dirty),
	)
	return nil
}
