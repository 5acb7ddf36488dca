package storage

import (
	"context"
	"fmt"
)

// Open returns the backend named by driver: "memory", "sqlite" or "postgres".
func Open(ctx context.Context, driver, dsn string) (Backend, error) {
	switch driver {
	case "", "memory":
		return NewMemory(), nil
	case "sqlite":
		if dsn == "" {
			return nil, fmt.Errorf("storage: sqlite requires a dsn")
		}
		return OpenSQLite(dsn)
	case "postgres":
		if dsn == "" {
			return nil, fmt.Errorf("storage: postgres requires a dsn")
		}
		return OpenPostgres(ctx, dsn)
	default:
		return nil, fmt.Errorf("storage: unknown driver %q", driver)
	}
}
