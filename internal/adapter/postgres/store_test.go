package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/YelzhanWeb/waiter/internal/domain"
	"github.com/YelzhanWeb/waiter/internal/interfaces"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTag int64

func (t fakeTag) RowsAffected() int64 { return int64(t) }

type fakeRow struct {
	err    error
	values []any
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, v := range r.values {
		switch d := dest[i].(type) {
		case *int64:
			*d = v.(int64)
		case *string:
			*d = v.(string)
		case *int:
			*d = v.(int)
		case *bool:
			*d = v.(bool)
		case *decimal.Decimal:
			*d = v.(decimal.Decimal)
		default:
			return errors.New("unsupported scan target")
		}
	}
	return nil
}

type execCall struct {
	sql  string
	args []any
}

// fakeDB scripts Exec and QueryRow results by SQL substring.
type fakeDB struct {
	execs     []execCall
	queries   []string
	tags      map[string]int64
	rows      map[string]fakeRow
	begun     int
	committed int
	rolled    int
}

func newFakeDB() *fakeDB {
	return &fakeDB{tags: map[string]int64{}, rows: map[string]fakeRow{}}
}

func (f *fakeDB) match(sql string) string {
	for k := range f.tags {
		if strings.Contains(sql, k) {
			return k
		}
	}
	return ""
}

func (f *fakeDB) Query(context.Context, string, ...any) (Rows, error) {
	return nil, errors.New("not scripted")
}

func (f *fakeDB) QueryRow(_ context.Context, sql string, _ ...any) Row {
	f.queries = append(f.queries, sql)
	for k, row := range f.rows {
		if strings.Contains(sql, k) {
			return row
		}
	}
	return fakeRow{err: pgx.ErrNoRows}
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (CommandTag, error) {
	f.execs = append(f.execs, execCall{sql: sql, args: args})
	if k := f.match(sql); k != "" {
		return fakeTag(f.tags[k]), nil
	}
	return fakeTag(1), nil
}

func (f *fakeDB) Begin(context.Context) (Tx, error) {
	f.begun++
	return &fakeTx{db: f}, nil
}

func (f *fakeDB) Close() {}

type fakeTx struct {
	db   *fakeDB
	done bool
}

func (t *fakeTx) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	return t.db.Query(ctx, sql, args...)
}

func (t *fakeTx) QueryRow(ctx context.Context, sql string, args ...any) Row {
	return t.db.QueryRow(ctx, sql, args...)
}

func (t *fakeTx) Exec(ctx context.Context, sql string, args ...any) (CommandTag, error) {
	return t.db.Exec(ctx, sql, args...)
}

func (t *fakeTx) Commit(context.Context) error {
	t.done = true
	t.db.committed++
	return nil
}

func (t *fakeTx) Rollback(context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.db.rolled++
	return nil
}

func TestWithinTxCommitsAndRollsBack(t *testing.T) {
	db := newFakeDB()
	store := NewStore(db)
	ctx := context.Background()

	err := store.WithinTx(ctx, func(repos interfaces.Repositories) error {
		_, err := repos.Stock().Add(ctx, 1, decimal.NewFromInt(2))
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 1, db.committed)
	assert.Equal(t, 0, db.rolled)

	boom := errors.New("boom")
	err = store.WithinTx(ctx, func(interfaces.Repositories) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, db.committed)
	assert.Equal(t, 1, db.rolled)
}

func TestSubtractIfAvailableIsConditional(t *testing.T) {
	db := newFakeDB()
	repo := NewStore(db).Stock()
	ctx := context.Background()

	ok, err := repo.SubtractIfAvailable(ctx, 7, decimal.RequireFromString("1.5"))
	require.NoError(t, err)
	assert.True(t, ok)

	last := db.execs[len(db.execs)-1]
	assert.Contains(t, last.sql, "quantity >= $2")
	assert.Equal(t, []any{int64(7), decimal.RequireFromString("1.5")}, last.args)

	db.tags["quantity >= $2"] = 0
	ok, err = repo.SubtractIfAvailable(ctx, 7, decimal.RequireFromString("100"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMissingRowsMapToNotFound(t *testing.T) {
	db := newFakeDB()
	store := NewStore(db)
	ctx := context.Background()

	_, err := store.Stock().FindByID(ctx, 3)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = store.Printers().FindCheckout(ctx)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = store.Usage().Find(ctx, 1, 2)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	db.tags["DELETE FROM order_lines"] = 0
	err = store.Lines().Delete(ctx, 9)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFindStockUnit(t *testing.T) {
	db := newFakeDB()
	db.rows["FROM stock_units"] = fakeRow{values: []any{int64(3), "Flour", decimal.NewFromInt(10), "kg"}}

	unit, err := NewStore(db).Stock().FindByID(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, "Flour", unit.Name)
	assert.True(t, unit.Quantity.Equal(decimal.NewFromInt(10)))
}

func TestClaimOnlyFromPending(t *testing.T) {
	db := newFakeDB()
	repo := NewStore(db).PrintJobs()
	ctx := context.Background()

	ok, err := repo.Claim(ctx, 5)
	require.NoError(t, err)
	assert.True(t, ok)
	last := db.execs[len(db.execs)-1]
	assert.Equal(t, domain.PrintJobPrinting, last.args[0])
	assert.Equal(t, domain.PrintJobPending, last.args[3])

	db.tags["WHERE id = $3 AND status = $4"] = 0
	ok, err = repo.Claim(ctx, 5)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCancelPendingCountsRows(t *testing.T) {
	db := newFakeDB()
	db.tags["WHERE status = $3"] = 4

	n, err := NewStore(db).PrintJobs().CancelPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	last := db.execs[len(db.execs)-1]
	assert.Equal(t, domain.PrintJobCancelled, last.args[0])
	assert.Equal(t, domain.PrintJobPending, last.args[2])
}

func TestMigrateSkipsAppliedVersions(t *testing.T) {
	db := newFakeDB()
	ctx := context.Background()

	applied, err := Migrate(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, []string{"001_init", "002_stock_scale"}, applied)
	assert.Equal(t, 2, db.committed)

	var ranSchema bool
	for _, e := range db.execs {
		if strings.Contains(e.sql, "CREATE TABLE IF NOT EXISTS print_jobs") {
			ranSchema = true
		}
	}
	assert.True(t, ranSchema)

	db.tags["INSERT INTO schema_migrations"] = 0
	applied, err = Migrate(ctx, db)
	require.NoError(t, err)
	assert.Empty(t, applied)
	assert.Equal(t, 2, db.rolled)
}

func TestMigratedStockColumnsHoldFullConsumption(t *testing.T) {
	db := newFakeDB()
	_, err := Migrate(context.Background(), db)
	require.NoError(t, err)

	scale := fmt.Sprintf("NUMERIC(14,%d)", domain.StockScale)
	var widened []string
	for _, e := range db.execs {
		for _, line := range strings.Split(e.sql, "\n") {
			if strings.HasPrefix(line, "ALTER TABLE") && strings.Contains(line, scale) {
				widened = append(widened, strings.Fields(line)[2])
			}
		}
	}
	assert.ElementsMatch(t, []string{"stock_units", "usage_records"}, widened)
}

func TestTableLookupLocksRow(t *testing.T) {
	db := newFakeDB()
	db.rows["FROM tables"] = fakeRow{values: []any{
		int64(3), "T3", "hall", 4, decimal.Zero, true,
	}}
	store := NewStore(db)

	ctx := context.Background()
	err := store.WithinTx(ctx, func(repos interfaces.Repositories) error {
		table, err := repos.Tables().FindByID(ctx, 3)
		require.NoError(t, err)
		assert.Equal(t, "T3", table.Name)
		return nil
	})
	require.NoError(t, err)

	require.Len(t, db.queries, 1)
	assert.Contains(t, db.queries[0], "FOR UPDATE")
}
