package sqlstore

import (
	"database/sql"
	"fmt"

	persistence "github.com/goliatone/go-persistence-bun"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun/dialect/pgdialect"
)

// NewPostgresClient opens a postgres connection with the lib/pq driver and
// wraps it in a persistence client using the bun postgres dialect. The caller
// owns the returned client and is responsible for closing it.
func NewPostgresClient(cfg persistence.Config, dsn string) (*persistence.Client, error) {
	if dsn == "" {
		return nil, fmt.Errorf("sqlstore: postgres dsn is required")
	}

	sqlDB, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open postgres connection: %w", err)
	}

	client, err := persistence.New(cfg, sqlDB, pgdialect.New())
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("sqlstore: build postgres persistence client: %w", err)
	}
	return client, nil
}
