package database

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"

	"github.com/rs/zerolog/log"
	"github.com/zatekoja/carepoint/internal/infrastructure/clients/postgres"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrate applies the bundled schema files in name order. Every statement is
// idempotent so the whole set runs on each invocation.
func Migrate(ctx context.Context, client *postgres.Client) error {
	names, err := fs.Glob(migrationFiles, "migrations/*.sql")
	if err != nil {
		return fmt.Errorf("failed to list migrations: %w", err)
	}
	sort.Strings(names)

	for _, name := range names {
		body, err := migrationFiles.ReadFile(name)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", name, err)
		}
		if _, err := client.DB().ExecContext(ctx, string(body)); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", name, err)
		}
		log.Info().Str("migration", name).Msg("applied migration")
	}
	return nil
}
