package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/lib/pq"
)

var postgresQueries = queries{
	get: `SELECT value FROM tab_storage WHERE tab_id = $1 AND storage_key = $2`,
	put: `INSERT INTO tab_storage (tab_id, storage_key, value, updated_at) VALUES ($1, $2, $3, $4)
		ON CONFLICT (tab_id, storage_key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
	dropTab: `DELETE FROM tab_storage WHERE tab_id = $1`,
	expire: `DELETE FROM tab_storage WHERE tab_id IN (
		SELECT tab_id FROM tab_storage GROUP BY tab_id HAVING MAX(updated_at) < $1
	) RETURNING tab_id`,
}

// OpenPostgres connects to dsn, verifies the connection and applies the
// schema migrations.
func OpenPostgres(ctx context.Context, dsn string) (*SQL, error) {
	mdb, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	conn, err := postgres.WithInstance(mdb, &postgres.Config{})
	if err != nil {
		mdb.Close()
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := migrateUp("migrations/postgres", "postgres", conn); err != nil {
		return nil, err
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return newSQL(db, postgresQueries), nil
}
