package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations
var migrations embed.FS

// SQL stores tab values in a relational table managed by migrations.
type SQL struct {
	db *sql.DB
	q  queries
}

type queries struct {
	get, put, dropTab, expire string
}

func newSQL(db *sql.DB, q queries) *SQL {
	return &SQL{db: db, q: q}
}

func (s *SQL) Get(ctx context.Context, tab, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, s.q.get, tab, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storage: get %s: %w", key, err)
	}
	return value, nil
}

func (s *SQL) Put(ctx context.Context, tab, key string, value []byte) error {
	if _, err := s.db.ExecContext(ctx, s.q.put, tab, key, value, time.Now().UnixMilli()); err != nil {
		return fmt.Errorf("storage: put %s: %w", key, err)
	}
	return nil
}

func (s *SQL) DropTab(ctx context.Context, tab string) error {
	if _, err := s.db.ExecContext(ctx, s.q.dropTab, tab); err != nil {
		return fmt.Errorf("storage: drop tab: %w", err)
	}
	return nil
}

func (s *SQL) Expire(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.QueryContext(ctx, s.q.expire, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("storage: expire: %w", err)
	}
	defer res.Close()

	tabs := map[string]struct{}{}
	for res.Next() {
		var tab string
		if err := res.Scan(&tab); err != nil {
			return 0, fmt.Errorf("storage: expire: %w", err)
		}
		tabs[tab] = struct{}{}
	}
	return len(tabs), res.Err()
}

func (s *SQL) Close() error {
	return s.db.Close()
}

// migrateUp applies every embedded migration under dir. The migrate instance
// owns conn and closes it when done.
func migrateUp(dir, dbName string, conn database.Driver) error {
	src, err := iofs.New(migrations, dir)
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, dbName, conn)
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}
