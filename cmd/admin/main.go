// Package main provides carepoint-admin, the operator CLI for schema
// migrations, admin accounts, catalogue seeding and search reindexing.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/zatekoja/carepoint/internal/adapters/database"
	"github.com/zatekoja/carepoint/internal/adapters/search"
	"github.com/zatekoja/carepoint/internal/application/services"
	"github.com/zatekoja/carepoint/internal/domain/repositories"
	"github.com/zatekoja/carepoint/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/carepoint/internal/infrastructure/clients/typesense"
	"github.com/zatekoja/carepoint/internal/infrastructure/observability"
	"github.com/zatekoja/carepoint/pkg/config"
	"github.com/zatekoja/carepoint/pkg/secrets"
)

// app is the wiring shared by every subcommand, built in PersistentPreRunE
type app struct {
	cfg      *config.Config
	pg       *postgres.Client
	users    repositories.UserRepository
	entities *services.EntityService
	auth     *services.AuthService
	search   *search.TypesenseAdapter
}

var admin *app

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "carepoint-admin",
	Short: "Operator tooling for the CarePoint backend",
	Long: `carepoint-admin applies database migrations, creates admin accounts,
seeds the public catalogue and rebuilds the Typesense index. It reads the
same environment (and optional Vault secrets) as the API server.`,
	SilenceUsage:       true,
	PersistentPreRunE:  setup,
	PersistentPostRunE: teardown,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(createAdminCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(reindexCmd)
}

func setup(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if _, err := secrets.ApplyVaultSecrets(ctx, secrets.LoadVaultConfigFromEnv()); err != nil {
		return fmt.Errorf("load vault secrets: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	observability.InitLogger(cfg.OTEL.ServiceName+"-admin", cfg.Env)

	pg, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}

	a := &app{cfg: cfg, pg: pg, users: database.NewUserAdapter(pg)}

	var searchRepo repositories.SearchRepository
	if cfg.Typesense.Enabled {
		ts, err := typesense.NewClient(&cfg.Typesense)
		if err != nil {
			log.Warn().Err(err).Msg("Typesense unavailable; records will not be indexed")
		} else {
			if err := ts.InitSchema(ctx); err != nil {
				log.Warn().Err(err).Msg("failed to init Typesense schema")
			}
			a.search = search.NewTypesenseAdapter(ts)
			searchRepo = a.search
		}
	}

	a.entities = services.NewEntityService(database.NewEntityAdapter(pg, nil), searchRepo, nil, nil)
	a.auth = services.NewAuthService(a.users, nil, services.AuthConfig{
		Secret:   cfg.Auth.JWTSecret,
		TokenTTL: cfg.Auth.TokenTTL,
	})

	admin = a
	return nil
}

func teardown(cmd *cobra.Command, args []string) error {
	if admin == nil {
		return nil
	}
	return admin.pg.Close()
}
