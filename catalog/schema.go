package catalog

import (
	"context"
	"database/sql"
	"fmt"
)

// Schema is the fixed script installed once per session (spec.md §4.8): the
// _entity/_predicate/_rule tables, _rule's generated columns (backed by the
// formula_tag/formula_constant/formula_body_length scalar
// functions registered by package udf, since the formula column is a
// MessagePack BLOB rather than SQLite's own JSON1 text), the lookup indexes
// that serve the compiled SQL, and the server-side trigger that drops a
// predicate's session view whenever a non-fact rule lands in _rule.
const Schema = `
CREATE TABLE IF NOT EXISTS _entity (
	id INTEGER PRIMARY KEY,
	external_id BLOB NOT NULL DEFAULT (new_entity_id())
);

CREATE TABLE IF NOT EXISTS _predicate (
	id INTEGER PRIMARY KEY REFERENCES _entity(id),
	name TEXT UNIQUE NOT NULL,
	column_names BLOB
);

CREATE TABLE IF NOT EXISTS _rule (
	id INTEGER PRIMARY KEY REFERENCES _entity(id),
	formula BLOB UNIQUE NOT NULL,
	output_type TEXT
		GENERATED ALWAYS AS (formula_tag(formula)) VIRTUAL,
	arg1_constant BLOB
		GENERATED ALWAYS AS (formula_constant(formula, 0)) VIRTUAL,
	arg2_constant BLOB
		GENERATED ALWAYS AS (formula_constant(formula, 1)) VIRTUAL,
	negative_literal_count INTEGER
		GENERATED ALWAYS AS (formula_body_length(formula)) VIRTUAL
);

CREATE INDEX IF NOT EXISTS _rule_lookup
	ON _rule (output_type, negative_literal_count, arg1_constant, arg2_constant);
CREATE INDEX IF NOT EXISTS _rule_lookup_flip
	ON _rule (output_type, negative_literal_count, arg2_constant, arg1_constant);

CREATE TRIGGER IF NOT EXISTS _rule_drop_view_on_non_fact_insert
AFTER INSERT ON _rule
WHEN NEW.negative_literal_count IS NOT NULL AND NEW.negative_literal_count > 0
BEGIN
	SELECT sql_exec('DROP VIEW IF EXISTS "' || substr(NEW.output_type, 2) || '"');
END;
`

// Install runs Schema against db. It is idempotent: every statement uses
// IF NOT EXISTS, so opening a second session against the same database file
// is a no-op here.
func Install(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("catalog: install schema: %w", err)
	}
	return nil
}
