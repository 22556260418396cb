// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GeekCraft Contributors

package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/geekcraft/geekcraft/internal/auth/postgres"
	"github.com/geekcraft/geekcraft/internal/authdb"
)

func newMigrateCmd(c *cli) *cobra.Command {
	var down bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the storage schema",
		Long: `Create tables, indexes and other schema objects for the configured
backend without serving. Opening a backend applies pending migrations, so
this is safe to run repeatedly. --down rolls a PostgreSQL schema back.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if down {
				return c.runMigrateDown(cmd)
			}
			return c.runMigrate(cmd)
		},
	}

	cmd.Flags().BoolVar(&down, "down", false, "roll back all PostgreSQL migrations")
	return cmd
}

func (c *cli) runMigrate(cmd *cobra.Command) error {
	cmd.Println("Connecting to database...")
	rt, err := c.open(cmd, nil)
	if err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "open database").Wrap(err)
	}
	defer rt.close()

	cmd.Printf("Schema ready for %s backend\n", rt.db.Kind())
	return nil
}

func (c *cli) runMigrateDown(cmd *cobra.Command) error {
	cfg, _, err := c.loadConfig(cmd)
	if err != nil {
		return err
	}
	dbCfg, err := cfg.AuthDB()
	if err != nil {
		return err
	}
	if dbCfg.Backend != authdb.KindRelational || !authdb.IsPostgresURL(dbCfg.Path) {
		return oops.Code("MIGRATION_FAILED").
			With("backend", string(dbCfg.Backend)).
			Errorf("--down requires a relational backend with a postgres:// path")
	}

	migrator, err := postgres.NewMigrator(dbCfg.Path)
	if err != nil {
		return err
	}
	defer func() { _ = migrator.Close() }()

	cmd.Println("Rolling back migrations...")
	if err := migrator.Down(); err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "migrate down").Wrap(err)
	}
	cmd.Println("Migrations rolled back successfully")
	return nil
}
