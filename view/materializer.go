// Package view implements the View/Trigger Materializer (spec.md §4.6): the
// session-scoped view and INSTEAD OF INSERT trigger that let SQL clients
// read and write a predicate as if it were an ordinary table, backed by the
// Rule Store's _rule table. A predicate's view unions the facts asserted
// for it directly with, for every non-fact rule stored for it, the SELECT
// the Rule-to-SQL Compiler (package rule) produces for that rule's body —
// wrapped in a `WITH RECURSIVE` common table expression so a rule whose
// body mentions its own head (spec.md §8 Scenario C's ancestor rule) is
// evaluated to a fixpoint by the engine itself, per spec.md §9 design note
// (iii) ("no fixpoint driver exists in the core"). SQLite has no form of
// self-referencing view outside WITH RECURSIVE, so this CTE wrapper is
// this package's reading of "the engine's treatment of recursive views"
// for that engine — see DESIGN.md.
package view

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/rbdb/rbdb/catalog"
	"github.com/rbdb/rbdb/codec"
	"github.com/rbdb/rbdb/rule"
)

// Materializer creates, idempotently, the view and trigger for a predicate.
// Concurrent calls for the same predicate name collapse into one build via
// singleflight — a scheduling optimization, not a correctness requirement,
// since every DDL statement already carries IF NOT EXISTS.
type Materializer struct {
	group singleflight.Group
}

// NewMaterializer returns a ready-to-use Materializer.
func NewMaterializer() *Materializer {
	return &Materializer{}
}

// Materialize builds the session-scoped view and INSTEAD OF INSERT trigger
// for a predicate with the given declared columns, per spec.md §4.6.
func (m *Materializer) Materialize(ctx context.Context, db *sql.DB, name string, columns []string) error {
	_, err, _ := m.group.Do(name, func() (interface{}, error) {
		return nil, m.build(ctx, db, name, columns)
	})
	return err
}

func (m *Materializer) build(ctx context.Context, db *sql.DB, name string, columns []string) error {
	if len(columns) == 0 {
		return fmt.Errorf("view: predicate %q declares no columns", name)
	}
	ruleSelects, err := compiledRuleSelects(ctx, db, name, columns)
	if err != nil {
		return fmt.Errorf("view: compile stored rules for %q: %w", name, err)
	}
	stmt := buildSQL(name, columns, ruleSelects)
	if _, err := db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("view: materialize %q: %w", name, err)
	}
	return nil
}

// compiledRuleSelects compiles every non-fact rule currently stored with
// head predicate name into the SELECT rule.CompileRule produces for its
// body, so the view reflects every rule asserted for this predicate so far
// (spec.md §4.11: a dropped view is rebuilt to include the asserting rule).
func compiledRuleSelects(ctx context.Context, db *sql.DB, name string, headColumns []string) ([]string, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT formula FROM _rule WHERE output_type = ? AND negative_literal_count > 0`, "@"+name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columnsFunc := func(predicateName string) ([]string, error) {
		if predicateName == name {
			return headColumns, nil
		}
		return catalog.Columns(ctx, db, predicateName)
	}

	var selects []string
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		f, err := codec.Decode(raw)
		if err != nil {
			return nil, err
		}
		compiled, err := rule.CompileRule(f, columnsFunc)
		if err != nil {
			return nil, err
		}
		selects = append(selects, compiled.SQL)
	}
	return selects, rows.Err()
}

func buildSQL(name string, columns []string, ruleSelects []string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "CREATE TEMP VIEW IF NOT EXISTS %s AS\n", quoteIdent(name))
	fmt.Fprintf(&b, "WITH RECURSIVE %s AS (\n  %s", quoteIdent(name), factsSelectSQL(name, columns))
	for _, sel := range ruleSelects {
		fmt.Fprintf(&b, "\n  UNION ALL\n  %s", sel)
	}
	fmt.Fprintf(&b, "\n)\nSELECT * FROM %s;\n", quoteIdent(name))

	fmt.Fprintf(&b, "CREATE TEMP TRIGGER IF NOT EXISTS %s INSTEAD OF INSERT ON %s BEGIN\n",
		quoteIdent(name+"_instead_insert"), quoteIdent(name))
	b.WriteString("  INSERT INTO _entity DEFAULT VALUES;\n")
	fmt.Fprintf(&b, "  INSERT INTO _rule(id, formula) VALUES (last_insert_rowid(), encode_predicate(%s",
		quoteLiteral(name))
	for _, col := range columns {
		fmt.Fprintf(&b, ", NEW.%s", quoteIdent(col))
	}
	b.WriteString("));\nEND;\n")

	return b.String()
}

// factsSelectSQL is the view's base case: the facts asserted directly for
// name, extracted from their ground formula via formula_constant. Only
// facts are projected here; non-fact rules contribute their own branch via
// compiledRuleSelects.
func factsSelectSQL(name string, columns []string) string {
	var b strings.Builder
	b.WriteString("SELECT ")
	for i, col := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "formula_constant(formula, %d) AS %s", i, quoteIdent(col))
	}
	fmt.Fprintf(&b, " FROM _rule WHERE output_type = %s AND negative_literal_count IS NULL", quoteLiteral("@"+name))
	return b.String()
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// Drop removes the session-scoped view and trigger for a predicate. Used by
// tests exercising rescue (spec.md §8 Scenario B: "dropping the human view
// and re-querying still returns Socrates").
func Drop(ctx context.Context, db *sql.DB, name string) error {
	stmts := []string{
		"DROP TRIGGER IF EXISTS " + quoteIdent(name+"_instead_insert"),
		"DROP VIEW IF EXISTS " + quoteIdent(name),
	}
	for _, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("view: drop %q: %w", name, err)
		}
	}
	return nil
}
