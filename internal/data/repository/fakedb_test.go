package repository

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"lms-backend/internal/data/entity"
	"lms-backend/pkg/database"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type call struct {
	sql  string
	args []any
}

// fakeDB records statements and answers them with canned rows. Anything a
// test does not set up panics through the embedded nil interface.
type fakeDB struct {
	database.PgxIface
	row     fakeRow
	rows    *fakeRows
	tx      *fakeTx
	execErr error
	calls   []call
}

func (db *fakeDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	db.calls = append(db.calls, call{sql, args})
	return db.row
}

func (db *fakeDB) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	db.calls = append(db.calls, call{sql, args})
	return db.rows, nil
}

func (db *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	db.calls = append(db.calls, call{sql, args})
	return pgconn.CommandTag{}, db.execErr
}

func (db *fakeDB) Begin(context.Context) (pgx.Tx, error) {
	if db.tx == nil {
		return nil, errors.New("begin: connection refused")
	}
	return db.tx, nil
}

// fakeTx fails the statement at index failAt with err.
type fakeTx struct {
	pgx.Tx
	failAt     int
	err        error
	execs      []call
	committed  bool
	rolledBack bool
}

func newFakeTx() *fakeTx {
	return &fakeTx{failAt: -1}
}

func (tx *fakeTx) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	tx.execs = append(tx.execs, call{sql, args})
	if len(tx.execs)-1 == tx.failAt {
		return pgconn.CommandTag{}, tx.err
	}
	return pgconn.CommandTag{}, nil
}

func (tx *fakeTx) Commit(context.Context) error {
	tx.committed = true
	return nil
}

func (tx *fakeTx) Rollback(context.Context) error {
	if !tx.committed {
		tx.rolledBack = true
	}
	return nil
}

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return assign(r.values, dest)
}

type fakeRows struct {
	pgx.Rows
	data [][]any
	pos  int
}

func (r *fakeRows) Next() bool {
	r.pos++
	return r.pos <= len(r.data)
}

func (r *fakeRows) Scan(dest ...any) error {
	return assign(r.data[r.pos-1], dest)
}

func (r *fakeRows) Err() error {
	return nil
}

func (r *fakeRows) Close() {}

func assign(values, dest []any) error {
	if len(values) != len(dest) {
		return fmt.Errorf("scan: %d values into %d targets", len(values), len(dest))
	}
	for i, v := range values {
		reflect.ValueOf(dest[i]).Elem().Set(reflect.ValueOf(v))
	}
	return nil
}

// enrollmentRow lays an enrollment out in enrollmentColumns order.
func enrollmentRow(e *entity.Enrollment) []any {
	return []any{
		e.ID,
		e.UserID,
		e.CourseID,
		e.PaymentStatus,
		e.PaymentKind,
		e.ProviderRef,
		e.Amount,
		e.Currency,
		e.EnrolledAt,
		e.LastCheckedAt,
		e.RefundRequired,
		e.CreatedAt,
		e.UpdatedAt,
	}
}
