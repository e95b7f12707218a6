package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrEmptyQuery is wrapped in a QueryExecutionError when the query text has
// no content.
var ErrEmptyQuery = errors.New("query text is empty")

// Querier is the subset of *sql.DB, *sql.Conn and *sql.Tx used by Execute.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Result is the outcome of executing one query file.
//
// Columns is empty when the statements produced no result set (DDL, DML).
// A SELECT that matches nothing still has Columns and zero Rows.
type Result struct {
	Columns []string
	Rows    [][]any
}

// Void reports whether the query produced no result set.
func (r Result) Void() bool { return len(r.Columns) == 0 }

// QueryExecutionError reports that the database rejected a statement.
type QueryExecutionError struct {
	Err error
}

func (e *QueryExecutionError) Error() string {
	return "execute query: " + e.Err.Error()
}

func (e *QueryExecutionError) Unwrap() error { return e.Err }

// Execute runs text, which may hold several ';'-separated statements, one
// statement at a time and returns the result of the last statement that has
// result columns. Statements after it (cleanup DML, DROP of a TEMP table)
// still run but do not replace it. Each statement is auto-committed; nothing
// is rolled back on failure, and statements after a failing one are not run.
//
// Every failure is returned as *QueryExecutionError.
func Execute(ctx context.Context, q Querier, text string) (Result, error) {
	stmts := SplitStatements(text)
	if len(stmts) == 0 {
		return Result{}, &QueryExecutionError{Err: ErrEmptyQuery}
	}

	var res Result
	for i, stmt := range stmts {
		r, err := queryOne(ctx, q, stmt)
		if err != nil {
			if len(stmts) > 1 {
				err = fmt.Errorf("statement %d: %w", i+1, err)
			}
			return Result{}, &QueryExecutionError{Err: err}
		}
		if !r.Void() {
			res = r
		}
	}
	return res, nil
}

// queryOne runs a single statement and reads its rows. The rows are closed
// before returning so the next statement can use the same connection.
func queryOne(ctx context.Context, q Querier, stmt string) (Result, error) {
	rows, err := q.QueryContext(ctx, stmt)
	if err != nil {
		return Result{}, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return Result{}, fmt.Errorf("read columns: %w", err)
	}

	res := Result{Columns: cols}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return Result{}, fmt.Errorf("scan row: %w", err)
		}
		for i, v := range vals {
			// Drivers may reuse byte buffers between rows.
			if b, ok := v.([]byte); ok {
				vals[i] = append([]byte(nil), b...)
			}
		}
		res.Rows = append(res.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		return Result{}, err
	}
	return res, nil
}
