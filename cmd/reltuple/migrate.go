package main

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"github.com/pthm/reltuple/internal/cli"
	"github.com/pthm/reltuple/storage/postgres"
)

var migrateDB string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the reltuple_tuples schema to a PostgreSQL database",
	Long:  `Create the reltuple_tuples table and its indexes (storage/postgres.Schema). Idempotent.`,
	Example: `  # Apply schema to database
  reltuple migrate --db postgres://localhost/mydb`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dsn, err := resolveDSN(migrateDB)
		if err != nil {
			return err
		}

		db, err := sql.Open("pgx", dsn)
		if err != nil {
			return cli.DBConnectError("connecting to database", err)
		}
		defer func() { _ = db.Close() }()

		ctx := context.Background()
		if err := postgres.Migrate(ctx, db); err != nil {
			return cli.GeneralError("applying migration", err)
		}

		if !quiet {
			fmt.Println("reltuple_tuples schema applied successfully.")
		}
		return nil
	},
}

func init() {
	migrateCmd.Flags().StringVar(&migrateDB, "db", "", "database URL")
}

// resolveDSN gets the database DSN from flag or config.
func resolveDSN(flagDSN string) (string, error) {
	if flagDSN != "" {
		return flagDSN, nil
	}

	dsn, err := cfg.DSN()
	if err != nil {
		return "", cli.ConfigError("database configuration", err)
	}
	if dsn == "" {
		return "", cli.ConfigError("database URL is required (use --db or set in config)", nil)
	}
	return dsn, nil
}
