package main

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/zatekoja/carepoint/internal/adapters/database"
	"github.com/zatekoja/carepoint/internal/domain/entities"
	"github.com/zatekoja/carepoint/internal/domain/repositories"
	apperrors "github.com/zatekoja/carepoint/pkg/errors"
)

var (
	adminEmail    string
	adminPassword string
	adminName     string
	seedForce     bool
)

func init() {
	createAdminCmd.Flags().StringVar(&adminEmail, "email", "", "admin account email")
	createAdminCmd.Flags().StringVar(&adminPassword, "password", "", "admin account password (ignored when the account exists)")
	createAdminCmd.Flags().StringVar(&adminName, "name", "Administrator", "admin display name")
	_ = createAdminCmd.MarkFlagRequired("email")

	seedCmd.Flags().BoolVar(&seedForce, "force", false, "seed entities that already have records")
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := database.Migrate(cmd.Context(), admin.pg); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
		return nil
	},
}

var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create an admin account, or promote an existing user",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		existing, err := admin.users.GetByEmail(ctx, adminEmail)
		switch {
		case err == nil:
			if _, err := admin.users.UpdateRole(ctx, existing.ID, entities.RoleAdmin); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "promoted %s to admin\n", existing.Email)
			return nil
		case !apperrors.IsNotFound(err):
			return err
		}

		if adminPassword == "" {
			return fmt.Errorf("--password is required for a new account")
		}
		res, err := admin.auth.Register(ctx, adminEmail, adminPassword, adminName)
		if err != nil {
			return err
		}
		if _, err := admin.users.UpdateRole(ctx, res.User.ID, entities.RoleAdmin); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created admin %s\n", res.User.Email)
		return nil
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load sample catalogue records (doctors, hospitals, labs, medicines, articles)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		for _, batch := range seedCatalogue() {
			if !seedForce {
				n, err := admin.entities.Count(ctx, batch.entity, nil)
				if err != nil {
					return err
				}
				if n > 0 {
					log.Info().Str("entity", batch.entity).Int("existing", n).Msg("skipping seeded entity")
					continue
				}
			}
			for _, data := range batch.records {
				if _, err := admin.entities.CreateAs(ctx, seedActor, batch.entity, data); err != nil {
					return fmt.Errorf("seed %s: %w", batch.entity, err)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d %s records\n", len(batch.records), batch.entity)
		}
		return nil
	},
}

var reindexCmd = &cobra.Command{
	Use:   "reindex [entity...]",
	Short: "Rebuild the search index from PostgreSQL",
	Long: `reindex pages through every searchable entity (or only the named ones)
and upserts each record into Typesense.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if admin.search == nil {
			return fmt.Errorf("typesense is not enabled (TYPESENSE_ENABLED)")
		}
		ctx := cmd.Context()

		names := args
		if len(names) == 0 {
			names = entities.Names()
		}

		for _, name := range names {
			def, ok := entities.Lookup(name)
			if !ok {
				return fmt.Errorf("unknown entity %q", name)
			}
			if len(def.Searchable) == 0 {
				continue
			}

			indexed := 0
			for offset := 0; ; offset += repositories.MaxEntityLimit {
				page, err := admin.entities.List(ctx, name, repositories.EntityQuery{
					Sort:   "created_date",
					Limit:  repositories.MaxEntityLimit,
					Offset: offset,
				})
				if err != nil {
					return err
				}
				for _, rec := range page {
					if err := admin.search.Index(ctx, rec); err != nil {
						return fmt.Errorf("index %s/%s: %w", name, rec.ID, err)
					}
					indexed++
				}
				if len(page) < repositories.MaxEntityLimit {
					break
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "indexed %d %s records\n", indexed, name)
		}
		return nil
	},
}
