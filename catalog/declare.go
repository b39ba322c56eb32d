package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// Materializer is the subset of *view.Materializer (package view) that
// Declare needs, named here as an interface rather than imported directly
// so that package view is free to depend on package catalog (to resolve
// other predicates' columns when compiling a stored rule's SELECT) without
// a cycle.
type Materializer interface {
	Materialize(ctx context.Context, db *sql.DB, name string, columns []string) error
}

// Declare runs the DDL Interceptor (spec.md §4.5) over a CREATE TABLE
// statement: it never lets the statement reach the engine's own execution
// path. Instead it mints an _entity row, inserts the predicate declaration
// into _predicate within one transaction, and — on commit — materializes
// the predicate's session view and trigger (spec.md §4.6).
func Declare(ctx context.Context, db *sql.DB, m Materializer, sqlText string) (ParsedCreateTable, error) {
	parsed, err := ParseCreateTable(sqlText)
	if err != nil {
		return ParsedCreateTable{}, err
	}

	columnNames, err := msgpack.Marshal(parsed.Columns)
	if err != nil {
		return ParsedCreateTable{}, fmt.Errorf("catalog: encode column names for %q: %w", parsed.Name, err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return ParsedCreateTable{}, fmt.Errorf("catalog: begin declare %q: %w", parsed.Name, err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `INSERT INTO _entity DEFAULT VALUES`)
	if err != nil {
		return ParsedCreateTable{}, fmt.Errorf("catalog: insert entity for %q: %w", parsed.Name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return ParsedCreateTable{}, fmt.Errorf("catalog: read entity id for %q: %w", parsed.Name, err)
	}

	insertPredicate := `INSERT INTO _predicate (id, name, column_names) VALUES (?, ?, ?)`
	if parsed.IfNotExists {
		insertPredicate = `INSERT OR IGNORE INTO _predicate (id, name, column_names) VALUES (?, ?, ?)`
	}
	predRes, err := tx.ExecContext(ctx, insertPredicate, id, parsed.Name, columnNames)
	if err != nil {
		if isUniqueConstraint(err) {
			return ParsedCreateTable{}, fmt.Errorf("catalog: predicate %q already declared: %w", parsed.Name, err)
		}
		return ParsedCreateTable{}, fmt.Errorf("catalog: insert predicate %q: %w", parsed.Name, err)
	}
	if parsed.IfNotExists {
		if n, _ := predRes.RowsAffected(); n == 0 {
			// Duplicate name under IF NOT EXISTS: the predicate insert was
			// ignored, so the entity row minted above must not survive either
			// (spec.md §8 invariant 5) — roll back the whole transaction instead
			// of committing it.
			return parsed, tx.Rollback()
		}
	}

	if err := tx.Commit(); err != nil {
		return ParsedCreateTable{}, fmt.Errorf("catalog: commit declare %q: %w", parsed.Name, err)
	}

	if err := m.Materialize(ctx, db, parsed.Name, parsed.Columns); err != nil {
		return ParsedCreateTable{}, fmt.Errorf("catalog: materialize %q: %w", parsed.Name, err)
	}
	return parsed, nil
}

func isUniqueConstraint(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint")
}
