package catalog

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Columns resolves a predicate's declared column names, in argument-position
// order, from _predicate. Callers adapt it to rule.ColumnsFunc with a
// closure over ctx and db; package view also uses it to name a materialized
// view's columns.
func Columns(ctx context.Context, db *sql.DB, name string) ([]string, error) {
	var raw []byte
	err := db.QueryRowContext(ctx, `SELECT column_names FROM _predicate WHERE name = ?`, name).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, &UnknownPredicateError{Name: name}
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: look up columns for %q: %w", name, err)
	}
	var columns []string
	if err := msgpack.Unmarshal(raw, &columns); err != nil {
		return nil, fmt.Errorf("catalog: decode column_names for %q: %w", name, err)
	}
	return columns, nil
}
