package postgres_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/pthm/reltuple/core"
	"github.com/pthm/reltuple/storage/postgres"
)

// testDB starts a disposable PostgreSQL container, applies the
// reltuple_tuples schema, and returns a connected *sql.DB. Mirrors the
// teacher's test/testutil singleton-container pattern, simplified to one
// container per test since this package has no codegen step to amortise.
func testDB(t *testing.T) *sql.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in -short mode")
	}

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("reltuple"),
		tcpostgres.WithUsername("reltuple"),
		tcpostgres.WithPassword("reltuple"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := sql.Open("pgx", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.PingContext(ctx))

	require.NoError(t, postgres.Migrate(ctx, db))
	return db
}

func TestStore_WriteFindDelete(t *testing.T) {
	db := testDB(t)
	store := postgres.New(db)
	ctx := context.Background()

	doc := core.Object{Type: "doc", ID: "readme"}
	alice := core.Subject{Type: "user", ID: "alice"}

	written, err := store.Write(ctx, []core.Tuple{
		{Subject: alice, Relation: "owner", Object: doc},
	})
	require.NoError(t, err)
	require.Len(t, written, 1)
	require.NotEmpty(t, written[0].ID)
	require.False(t, written[0].CreatedAt.IsZero())

	subjects, err := store.FindSubjects(ctx, doc, "owner")
	require.NoError(t, err)
	require.Equal(t, []core.Subject{alice}, subjects)

	objects, err := store.FindObjects(ctx, alice, "owner")
	require.NoError(t, err)
	require.Equal(t, []core.Object{doc}, objects)

	// Re-writing the same key upserts rather than duplicating.
	_, err = store.Write(ctx, []core.Tuple{
		{Subject: alice, Relation: "owner", Object: doc},
	})
	require.NoError(t, err)
	tuples, err := store.FindTuples(ctx, core.TupleFilter{Object: &doc})
	require.NoError(t, err)
	require.Len(t, tuples, 1)

	n, err := store.Delete(ctx, core.TupleFilter{Object: &doc})
	require.NoError(t, err)
	require.Equal(t, 1, n)

	_, err = store.Delete(ctx, core.TupleFilter{})
	require.Error(t, err)
	require.True(t, core.IsInvalidArgument(err))
}

func TestStore_ConditionValidityWindow(t *testing.T) {
	db := testDB(t)
	store := postgres.New(db)
	ctx := context.Background()

	doc := core.Object{Type: "doc", ID: "expiring"}
	alice := core.Subject{Type: "user", ID: "alice"}
	past := time.Now().Add(-time.Hour)

	_, err := store.Write(ctx, []core.Tuple{
		{Subject: alice, Relation: "editor", Object: doc, Condition: &core.Condition{ValidUntil: &past}},
	})
	require.NoError(t, err)

	subjects, err := store.FindSubjects(ctx, doc, "editor")
	require.NoError(t, err)
	require.Empty(t, subjects, "expired grant must not be returned by FindSubjects")

	tuples, err := store.FindTuples(ctx, core.TupleFilter{Object: &doc})
	require.NoError(t, err)
	require.Len(t, tuples, 1, "FindTuples returns inactive tuples too")
}

func TestStore_WithTx(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	defer func() { _ = tx.Rollback() }()

	store := postgres.New(db).WithTx(tx)
	child := core.Object{Type: "folder", ID: "child"}
	parent := core.Object{Type: "folder", ID: "parent"}

	_, err = store.Write(ctx, []core.Tuple{
		{Subject: core.Subject{Type: "folder", ID: "child"}, Relation: "parent", Object: parent},
	})
	require.NoError(t, err)

	objs, err := store.FindObjects(ctx, core.Subject{Type: child.Type, ID: child.ID}, "parent")
	require.NoError(t, err)
	require.Equal(t, []core.Object{parent}, objs, "writes inside the tx are visible to reads on the same tx")

	require.NoError(t, tx.Rollback())

	objs, err = postgres.New(db).FindObjects(ctx, core.Subject{Type: child.Type, ID: child.ID}, "parent")
	require.NoError(t, err)
	require.Empty(t, objs, "rolled-back writes must not be visible outside the tx")
}
