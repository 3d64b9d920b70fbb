package database

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	dbsql "draftwire/pkg/database/sql"
	"draftwire/pkg/logging"
)

// ApplySchema runs the embedded Postgres schema files in lexical order.
// Statements are idempotent (CREATE IF NOT EXISTS) so this is safe on boot.
func ApplySchema(ctx context.Context, db PostgresConn, logger logging.Logger) error {
	return applyDir(ctx, db, "schema", logger)
}

// ApplyClickHouseSchema runs the embedded ClickHouse schema files.
func ApplyClickHouseSchema(ctx context.Context, db ClickHouseConn, logger logging.Logger) error {
	return applyDir(ctx, db, "clickhouse", logger)
}

func applyDir(ctx context.Context, db *sql.DB, dir string, logger logging.Logger) error {
	entries, err := dbsql.Content.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read embedded schema dir %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		raw, err := dbsql.Content.ReadFile(dir + "/" + name)
		if err != nil {
			return fmt.Errorf("read schema file %s: %w", name, err)
		}
		if _, err := db.ExecContext(ctx, string(raw)); err != nil {
			return fmt.Errorf("apply schema file %s: %w", name, err)
		}
		logger.WithFields(logging.Fields{"file": name, "dir": dir}).Info("Applied schema file")
	}
	return nil
}
