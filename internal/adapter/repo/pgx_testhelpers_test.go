package repo

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type simpleRow struct {
	scan func(dest ...any) error
}

func (r simpleRow) Scan(dest ...any) error {
	if r.scan == nil {
		return pgx.ErrNoRows
	}
	return r.scan(dest...)
}

func valuesRow(values ...any) simpleRow {
	return simpleRow{scan: func(dest ...any) error { return assign(dest, values) }}
}

func assign(dest []any, values []any) error {
	if len(dest) != len(values) {
		return fmt.Errorf("unexpected scan args: got %d want %d", len(dest), len(values))
	}
	for i, v := range values {
		target := reflect.ValueOf(dest[i]).Elem()
		if v == nil {
			target.Set(reflect.Zero(target.Type()))
			continue
		}
		target.Set(reflect.ValueOf(v))
	}
	return nil
}

type testRowsBase struct{}

func (testRowsBase) CommandTag() pgconn.CommandTag { return pgconn.CommandTag{} }

func (testRowsBase) Conn() *pgx.Conn { return nil }

func (testRowsBase) FieldDescriptions() []pgconn.FieldDescription { return nil }

func (testRowsBase) Values() ([]any, error) {
	return nil, fmt.Errorf("values not supported in test rows")
}

func (testRowsBase) RawValues() [][]byte { return nil }

type fakeRows struct {
	testRowsBase
	rows [][]any
	idx  int
}

func (f *fakeRows) Next() bool {
	if f.idx >= len(f.rows) {
		return false
	}
	f.idx++
	return true
}

func (f *fakeRows) Scan(dest ...any) error {
	if f.idx == 0 || f.idx > len(f.rows) {
		return pgx.ErrNoRows
	}
	return assign(dest, f.rows[f.idx-1])
}

func (f *fakeRows) Err() error { return nil }

func (f *fakeRows) Close() {}

// fakeSQL answers queries by matching a fragment of the query body.
type fakeSQL struct {
	execs    []string
	execArgs [][]any
	execTag  func(query string) (pgconn.CommandTag, error)
	rows     map[string][][]any
	row      func(query string, args []any) pgx.Row
}

func (f *fakeSQL) Exec(_ context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, query)
	f.execArgs = append(f.execArgs, args)
	if f.execTag != nil {
		return f.execTag(query)
	}
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

func (f *fakeSQL) QueryRow(_ context.Context, query string, args ...any) pgx.Row {
	if f.row != nil {
		return f.row(query, args)
	}
	return simpleRow{}
}

func (f *fakeSQL) Query(_ context.Context, query string, _ ...any) (pgx.Rows, error) {
	for fragment, rows := range f.rows {
		if strings.Contains(query, fragment) {
			return &fakeRows{rows: rows}, nil
		}
	}
	return &fakeRows{}, nil
}

// fakeTx overrides the pgx.Tx methods the store uses. Calling any other
// method panics on the nil embedded interface.
type fakeTx struct {
	pgx.Tx
	*fakeSQL
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	return t.fakeSQL.Exec(ctx, query, args...)
}

func (t *fakeTx) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	return t.fakeSQL.QueryRow(ctx, query, args...)
}

func (t *fakeTx) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	return t.fakeSQL.Query(ctx, query, args...)
}

func (t *fakeTx) Commit(context.Context) error {
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(context.Context) error {
	if !t.committed {
		t.rolledBack = true
	}
	return nil
}

type fakeDB struct {
	fakeSQL
	txs     []*fakeTx
	txOpts  []pgx.TxOptions
	txSQL   *fakeSQL
	beginFn func() error
}

func (d *fakeDB) BeginTx(_ context.Context, opts pgx.TxOptions) (pgx.Tx, error) {
	if d.beginFn != nil {
		if err := d.beginFn(); err != nil {
			return nil, err
		}
	}
	sql := d.txSQL
	if sql == nil {
		sql = &fakeSQL{}
	}
	tx := &fakeTx{fakeSQL: sql}
	d.txs = append(d.txs, tx)
	d.txOpts = append(d.txOpts, opts)
	return tx, nil
}
