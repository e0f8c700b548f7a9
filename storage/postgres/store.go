// Package postgres is the persisted implementation of core.Store, backed
// by a single table matching the wire shape of spec.md §6. It implements
// the contract identically to storage/memory so the check and list engines
// run unchanged against either backend (spec.md §4.2, §9).
package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	// Registers the "pgx" driver with database/sql.
	_ "github.com/jackc/pgx/v5/stdlib"
	// Registers the "postgres" driver with database/sql, for operators who
	// prefer a postgres:// DSN over the pgx-native one. Store itself is
	// driver-name agnostic: it only needs a *sql.DB/*sql.Tx/*sql.Conn.
	_ "github.com/lib/pq"

	"github.com/pthm/reltuple/core"
)

// Querier is the minimal interface Store needs to read. Implemented by
// *sql.DB, *sql.Tx, and *sql.Conn, so Store can run inside a caller's
// transaction and see its uncommitted writes — the same pattern the
// teacher's Querier interface documents for permission checks that must be
// consistent with an in-flight transaction.
type Querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Execer extends Querier with ExecContext, required for Delete and schema
// migration but not for read-only Check/ListAccessibleObjects paths.
type Execer interface {
	Querier
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Store is a core.Store backed by a reltuple_tuples table. Construct it
// with any Execer: *sql.DB for normal use, *sql.Tx for transactional
// SetParent atomicity, or *sql.Conn to pin a session.
type Store struct {
	db  Execer
	now func() time.Time
}

// New wraps db (a *sql.DB, *sql.Tx, or *sql.Conn) as a core.Store.
func New(db Execer) *Store {
	return &Store{db: db, now: time.Now}
}

// WithTx returns a Store bound to tx, so a caller can run SetParent's
// delete-then-write pair (or any sequence of Client calls) atomically in
// one SQL transaction, closing the non-atomicity window spec.md §5 flags
// for backends without transactions.
func (s *Store) WithTx(tx *sql.Tx) *Store {
	return &Store{db: tx, now: s.now}
}

// Write upserts tuples by their 5-attribute key via INSERT ... ON CONFLICT,
// which is the SQL-native expression of the idempotent-write-at-the-key
// invariant (spec.md §3).
func (s *Store) Write(ctx context.Context, tuples []core.Tuple) ([]core.Tuple, error) {
	stored := make([]core.Tuple, 0, len(tuples))
	for _, t := range tuples {
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
		if t.CreatedAt.IsZero() {
			t.CreatedAt = s.now()
		}

		var validSince, validUntil *time.Time
		if t.Condition != nil {
			validSince = t.Condition.ValidSince
			validUntil = t.Condition.ValidUntil
		}

		row := s.db.QueryRowContext(ctx, upsertTupleSQL,
			t.ID, t.Subject.Type, t.Subject.ID, t.Relation, t.Object.Type, t.Object.ID,
			validSince, validUntil, t.CreatedAt,
		)

		var (
			id        string
			createdAt time.Time
		)
		if err := row.Scan(&id, &createdAt); err != nil {
			return nil, err
		}
		t.ID = id
		t.CreatedAt = createdAt
		stored = append(stored, t)
	}
	return stored, nil
}

// Delete removes every tuple matching filter. An empty filter is rejected
// before any SQL is issued.
func (s *Store) Delete(ctx context.Context, filter core.TupleFilter) (int, error) {
	if err := core.CheckFilterNotEmpty("postgres.Store.Delete", filter); err != nil {
		return 0, err
	}

	where, args := buildWhere(filter)
	result, err := s.db.ExecContext(ctx, "DELETE FROM reltuple_tuples WHERE "+where, args...)
	if err != nil {
		return 0, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// FindTuples returns every tuple matching filter, including inactive ones;
// validity-window filtering is the caller's (the engine's) responsibility,
// per spec.md §4.2.
func (s *Store) FindTuples(ctx context.Context, filter core.TupleFilter) ([]core.Tuple, error) {
	where, args := buildWhere(filter)
	rows, err := s.db.QueryContext(ctx, selectTuplesSQL+" WHERE "+where, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTuples(rows)
}

// FindSubjects returns the active subjects S such that (S, relation,
// object) exists, pushing the validity-window predicate into SQL since
// "now" is known at query time (spec.md §4.2's "targeted indexes").
func (s *Store) FindSubjects(ctx context.Context, object core.Object, relation core.Relation) ([]core.Subject, error) {
	now := s.now()
	rows, err := s.db.QueryContext(ctx, findSubjectsSQL, object.Type, object.ID, relation, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.Subject
	for rows.Next() {
		var subj core.Subject
		if err := rows.Scan(&subj.Type, &subj.ID); err != nil {
			return nil, err
		}
		out = append(out, subj)
	}
	return out, rows.Err()
}

// FindObjects returns the active objects O such that (subject, relation, O)
// exists.
func (s *Store) FindObjects(ctx context.Context, subject core.Subject, relation core.Relation) ([]core.Object, error) {
	now := s.now()
	rows, err := s.db.QueryContext(ctx, findObjectsSQL, subject.Type, subject.ID, relation, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.Object
	for rows.Next() {
		var obj core.Object
		if err := rows.Scan(&obj.Type, &obj.ID); err != nil {
			return nil, err
		}
		out = append(out, obj)
	}
	return out, rows.Err()
}

func scanTuples(rows *sql.Rows) ([]core.Tuple, error) {
	var out []core.Tuple
	for rows.Next() {
		var (
			t                      core.Tuple
			validSince, validUntil sql.NullTime
		)
		if err := rows.Scan(&t.ID, &t.Subject.Type, &t.Subject.ID, &t.Relation,
			&t.Object.Type, &t.Object.ID, &validSince, &validUntil, &t.CreatedAt); err != nil {
			return nil, err
		}
		if validSince.Valid || validUntil.Valid {
			cond := &core.Condition{}
			if validSince.Valid {
				cond.ValidSince = &validSince.Time
			}
			if validUntil.Valid {
				cond.ValidUntil = &validUntil.Time
			}
			t.Condition = cond
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

var _ core.Store = (*Store)(nil)
