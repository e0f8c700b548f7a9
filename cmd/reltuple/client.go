package main

import (
	"database/sql"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/pthm/reltuple/core"
	"github.com/pthm/reltuple/internal/cli"
	"github.com/pthm/reltuple/pkg/schemafile"
	"github.com/pthm/reltuple/storage/memory"
	"github.com/pthm/reltuple/storage/postgres"
)

// newClient builds a core.Client from the loaded CLI config: it reads the
// schema file, and wires storage/postgres when a database is configured, or
// storage/memory (empty, queried for this process's lifetime only)
// otherwise. check and list-objects share this so ad-hoc CLI queries run
// against whichever backend "reltuple migrate" was pointed at.
func newClient() (*core.Client, error) {
	schema, err := schemafile.Load(cfg.Schema)
	if err != nil {
		return nil, cli.SchemaParseError("loading schema", err)
	}

	store, err := newStore()
	if err != nil {
		return nil, err
	}

	checkCfg := core.DefaultConfig()
	if cfg.Check.DefaultDepth > 0 {
		checkCfg.DefaultCheckDepth = cfg.Check.DefaultDepth
	}
	checkCfg.ThrowOnMaxDepth = cfg.Check.ThrowOnMaxDepth
	if cfg.Check.FieldSeparator != "" {
		checkCfg.FieldSeparator = cfg.Check.FieldSeparator
	}

	return core.New(store, schema, core.WithConfig(checkCfg)), nil
}

func newStore() (core.Store, error) {
	dsn, err := cfg.DSN()
	if err != nil {
		return nil, cli.ConfigError("database configuration", err)
	}
	if dsn == "" {
		return memory.New(), nil
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, cli.DBConnectError("connecting to database", err)
	}
	return postgres.New(db), nil
}
