package postgres

import "context"

// Schema is the DDL for reltuple_tuples: one table, a unique composite
// index on the 5-attribute tuple key (so Write's ON CONFLICT can upsert),
// and two secondary indexes covering the engines' two directional lookups
// (spec.md §6's "a store backed by a relational database should place a
// unique composite index on... and targeted indexes supporting both
// directional lookups").
const Schema = `
CREATE TABLE IF NOT EXISTS reltuple_tuples (
	id           TEXT PRIMARY KEY,
	subject_type TEXT NOT NULL,
	subject_id   TEXT NOT NULL,
	relation     TEXT NOT NULL,
	object_type  TEXT NOT NULL,
	object_id    TEXT NOT NULL,
	valid_since  TIMESTAMPTZ,
	valid_until  TIMESTAMPTZ,
	created_at   TIMESTAMPTZ NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS reltuple_tuples_key
	ON reltuple_tuples (subject_type, subject_id, relation, object_type, object_id);

CREATE INDEX IF NOT EXISTS reltuple_tuples_by_object
	ON reltuple_tuples (object_type, object_id, relation);

CREATE INDEX IF NOT EXISTS reltuple_tuples_by_subject
	ON reltuple_tuples (subject_type, subject_id, relation);
`

const upsertTupleSQL = `
INSERT INTO reltuple_tuples
	(id, subject_type, subject_id, relation, object_type, object_id, valid_since, valid_until, created_at)
VALUES
	($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (subject_type, subject_id, relation, object_type, object_id)
DO UPDATE SET valid_since = EXCLUDED.valid_since, valid_until = EXCLUDED.valid_until
RETURNING id, created_at
`

const selectTuplesSQL = `
SELECT id, subject_type, subject_id, relation, object_type, object_id, valid_since, valid_until, created_at
FROM reltuple_tuples
`

const findSubjectsSQL = `
SELECT subject_type, subject_id
FROM reltuple_tuples
WHERE object_type = $1 AND object_id = $2 AND relation = $3
  AND (valid_since IS NULL OR valid_since <= $4)
  AND (valid_until IS NULL OR valid_until >= $4)
`

const findObjectsSQL = `
SELECT object_type, object_id
FROM reltuple_tuples
WHERE subject_type = $1 AND subject_id = $2 AND relation = $3
  AND (valid_since IS NULL OR valid_since <= $4)
  AND (valid_until IS NULL OR valid_until >= $4)
`

// Migrate applies Schema using exec. Intended for the CLI's migrate
// subcommand and for tests bootstrapping a fresh testcontainers database;
// it is idempotent (every statement is IF NOT EXISTS).
func Migrate(ctx context.Context, exec Execer) error {
	_, err := exec.ExecContext(ctx, Schema)
	return err
}
