// Command reltuple is a CLI for validating schemas, applying the
// storage/postgres table, and running one-off checks against a relational
// authorization store (spec.md §7).
//
// Usage:
//
//	reltuple [flags] <command>
//
// Commands that touch a database (migrate, check, list-objects when
// pointed at Postgres) take it from the database settings of reltuple.yaml
// or RELTUPLE_DATABASE_* environment variables; migrate also accepts --db.
// check and list-objects fall back to an empty in-memory store when no
// database is configured. validate works on schema files alone.
package main

func main() {
	Execute()
}
