package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// SQLAdapter stores values in the cart_backups table of a MySQL, PostgreSQL
// or SQLite database. Keys are scoped by namespace like RedisAdapter.
type SQLAdapter struct {
	db      *sql.DB
	dialect Dialect
	prefix  string
}

func NewSQLAdapter(db *sql.DB, dialect Dialect, namespace string) *SQLAdapter {
	prefix := ""
	if namespace != "" {
		prefix = namespace + ":"
	}
	return &SQLAdapter{db: db, dialect: dialect, prefix: prefix}
}

// OpenSQL opens and pings a pool sized for the dialect. SQLite gets a single
// connection in WAL mode since it allows only one writer.
func OpenSQL(ctx context.Context, d Dialect, dsn string) (*sql.DB, error) {
	db, err := sql.Open(d.DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d.Name, err)
	}

	if d.Name == SQLite.Name {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", d.Name, err)
	}

	if d.Name == SQLite.Name {
		for _, pragma := range []string{
			"PRAGMA journal_mode = WAL",
			"PRAGMA busy_timeout = 5000",
		} {
			if _, err := db.ExecContext(ctx, pragma); err != nil {
				db.Close()
				return nil, fmt.Errorf("apply %q: %w", pragma, err)
			}
		}
	}

	return db, nil
}

func (s *SQLAdapter) Get(ctx context.Context, key string) ([]byte, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, s.dialect.selectSQL, s.prefix+key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query backup: %w", err)
	}
	return []byte(payload), nil
}

func (s *SQLAdapter) Set(ctx context.Context, key string, value []byte) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.upsertSQL, s.prefix+key, string(value)); err != nil {
		return fmt.Errorf("upsert backup: %w", err)
	}
	return nil
}

func (s *SQLAdapter) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.deleteSQL, s.prefix+key); err != nil {
		return fmt.Errorf("delete backup: %w", err)
	}
	return nil
}
