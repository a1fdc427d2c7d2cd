package main

import (
	"context"
	"fmt"
	"time"

	"github.com/geocoder89/clinicfinder/internal/config"
	"github.com/geocoder89/clinicfinder/internal/db"
	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			pool, err := db.NewPool(cfg.DBURL, cfg.DBMaxConns)
			if err != nil {
				return fmt.Errorf("db connect: %w", err)
			}
			defer pool.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			if err := db.Migrate(ctx, pool); err != nil {
				return err
			}

			v, err := db.MigrationVersion(ctx, pool)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "database at version %d\n", v)
			return nil
		},
	}
}

func seedAdminCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed-admin",
		Short: "Create the bootstrap admin from ADMIN_EMAIL and ADMIN_PASSWORD",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
				return fmt.Errorf("ADMIN_EMAIL and ADMIN_PASSWORD must be set")
			}

			pool, err := db.NewPool(cfg.DBURL, cfg.DBMaxConns)
			if err != nil {
				return fmt.Errorf("db connect: %w", err)
			}
			defer pool.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			created, err := db.EnsureAdminUser(ctx, pool, cfg)
			if err != nil {
				return err
			}
			if created {
				fmt.Fprintf(cmd.OutOrStdout(), "admin %s created\n", cfg.AdminEmail)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "admin %s already exists\n", cfg.AdminEmail)
			}
			return nil
		},
	}
}
