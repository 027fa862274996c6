package storage

import (
	"database/sql"

	"github.com/golang-migrate/migrate/v4/database"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	migratepostgres "github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
)

// Dialect holds everything that differs between the SQL backends: the
// database/sql driver name, the migration set and the statements.
type Dialect struct {
	Name       string
	DriverName string

	migrationsDir string
	selectSQL     string
	upsertSQL     string
	deleteSQL     string
	newDriver     func(db *sql.DB) (database.Driver, error)
}

var MySQL = Dialect{
	Name:          "mysql",
	DriverName:    "mysql",
	migrationsDir: "migrations/mysql",
	selectSQL:     `SELECT payload FROM cart_backups WHERE backup_key = ?`,
	upsertSQL: `
		INSERT INTO cart_backups (backup_key, payload, updated_at)
		VALUES (?, ?, NOW())
		ON DUPLICATE KEY UPDATE payload = VALUES(payload), updated_at = NOW()`,
	deleteSQL: `DELETE FROM cart_backups WHERE backup_key = ?`,
	newDriver: func(db *sql.DB) (database.Driver, error) {
		return migratemysql.WithInstance(db, &migratemysql.Config{})
	},
}

var Postgres = Dialect{
	Name:          "postgres",
	DriverName:    "postgres",
	migrationsDir: "migrations/postgres",
	selectSQL:     `SELECT payload FROM cart_backups WHERE backup_key = $1`,
	upsertSQL: `
		INSERT INTO cart_backups (backup_key, payload, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (backup_key) DO UPDATE SET payload = EXCLUDED.payload, updated_at = NOW()`,
	deleteSQL: `DELETE FROM cart_backups WHERE backup_key = $1`,
	newDriver: func(db *sql.DB) (database.Driver, error) {
		return migratepostgres.WithInstance(db, &migratepostgres.Config{})
	},
}

var SQLite = Dialect{
	Name:          "sqlite",
	DriverName:    "sqlite3",
	migrationsDir: "migrations/sqlite",
	selectSQL:     `SELECT payload FROM cart_backups WHERE backup_key = ?`,
	upsertSQL: `
		INSERT INTO cart_backups (backup_key, payload, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(backup_key) DO UPDATE SET payload = excluded.payload, updated_at = CURRENT_TIMESTAMP`,
	deleteSQL: `DELETE FROM cart_backups WHERE backup_key = ?`,
	newDriver: func(db *sql.DB) (database.Driver, error) {
		return migratesqlite.WithInstance(db, &migratesqlite.Config{})
	},
}

// DialectByName resolves a configured backend name.
func DialectByName(name string) (Dialect, bool) {
	switch name {
	case MySQL.Name:
		return MySQL, true
	case Postgres.Name:
		return Postgres, true
	case SQLite.Name:
		return SQLite, true
	default:
		return Dialect{}, false
	}
}
