package rbdb

import (
	"context"
	"sync/atomic"

	"github.com/rbdb/rbdb/catalog"
	"github.com/rbdb/rbdb/cursor"
	"github.com/rbdb/rbdb/rule"
	"github.com/rbdb/rbdb/term"
)

// Query runs the Query Coordinator (spec.md §4.10) over a formula pattern:
// canonicalize, compile to a SELECT over the head predicate's view (§4.4),
// and execute through a Cursor with rescue wired in. A ground formula
// yields a cursor of 0 or 1 rows with column "sat"=1; a formula with
// variables yields bindings keyed by variable display name (A, B, C, …).
// A formula with a non-empty body is rejected with UnsupportedQuery.
func (s *Session) Query(ctx context.Context, f term.Formula) (*cursor.Cursor, error) {
	if f.IsRule() {
		return nil, &rule.UnsupportedQueryError{Predicate: f.Head.Name}
	}
	canon, err := term.Canonicalize(f)
	if err != nil {
		return nil, err
	}
	columnsFunc := func(name string) ([]string, error) {
		return catalog.Columns(ctx, s.db, name)
	}
	compiled, err := rule.CompileQuery(canon, columnsFunc)
	if err != nil {
		return nil, err
	}
	atomic.AddInt64(&s.statements, 1)
	return cursor.New(ctx, s.conn, s.rescue, compiled.SQL, nil)
}

// Execute runs raw SQL text against the session: a CREATE TABLE statement
// goes through the DDL Interceptor (§4.5) and returns a nil cursor; any
// other statement (query, INSERT through a predicate's view, or a plain
// mutation) runs through the Cursor with rescue wired in (§4.7), bound to
// args left to right by each statement's `?` count.
func (s *Session) Execute(ctx context.Context, sqlText string, args ...any) (*cursor.Cursor, error) {
	if catalog.IsCreateTable(sqlText) {
		if _, err := catalog.Declare(ctx, s.db, s.materializer, sqlText); err != nil {
			return nil, err
		}
		return nil, nil
	}
	atomic.AddInt64(&s.statements, 1)
	return cursor.New(ctx, s.conn, s.rescue, sqlText, args)
}
