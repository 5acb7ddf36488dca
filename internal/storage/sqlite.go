package storage

import (
	"database/sql"
	"fmt"

	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/mattn/go-sqlite3"
)

var sqliteQueries = queries{
	get: `SELECT value FROM tab_storage WHERE tab_id = ? AND storage_key = ?`,
	put: `INSERT INTO tab_storage (tab_id, storage_key, value, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (tab_id, storage_key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
	dropTab: `DELETE FROM tab_storage WHERE tab_id = ?`,
	expire: `DELETE FROM tab_storage WHERE tab_id IN (
		SELECT tab_id FROM tab_storage GROUP BY tab_id HAVING MAX(updated_at) < ?
	) RETURNING tab_id`,
}

// OpenSQLite opens (creating if needed) the database file at path and applies
// the schema migrations.
func OpenSQLite(path string) (*SQL, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000", path)

	mdb, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	conn, err := sqlite3.WithInstance(mdb, &sqlite3.Config{})
	if err != nil {
		mdb.Close()
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := migrateUp("migrations/sqlite", "sqlite3", conn); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // sqlite
	db.SetConnMaxLifetime(0)
	return newSQL(db, sqliteQueries), nil
}
