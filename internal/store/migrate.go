package store

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/shrimpsizemoose/trekker/logger"
)

//go:embed migrations/*.sql
var migrations embed.FS

var sqliteReplacer = strings.NewReplacer(
	"TIMESTAMPTZ", "DATETIME",
)

// Migrate applies the embedded schema. Every statement is idempotent, so the
// whole set runs on each start.
func (d *DB) Migrate(ctx context.Context) error {
	names, err := fs.Glob(migrations, "migrations/*.sql")
	if err != nil {
		return fmt.Errorf("failed to list migrations: %w", err)
	}
	sort.Strings(names)

	for _, name := range names {
		content, err := migrations.ReadFile(name)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", name, err)
		}

		query := string(content)
		if d.Dialect == DialectSQLite {
			query = sqliteReplacer.Replace(query)
		}

		logger.Debug.Printf("Applying migration: %s", name)
		if _, err := d.Client.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", name, err)
		}
	}
	return nil
}
