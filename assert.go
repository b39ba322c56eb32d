package rbdb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rbdb/rbdb/catalog"
	"github.com/rbdb/rbdb/codec"
	"github.com/rbdb/rbdb/rule"
	"github.com/rbdb/rbdb/term"
)

// Assert runs the Assertion Coordinator (spec.md §4.9) over a Horn clause:
// canonicalize, validate, encode, then transactionally mint an entity and
// insert the encoded formula into _rule. The head predicate must already
// be declared; Assert checks _predicate itself rather than relying on a SQL
// foreign key, since the formula is an opaque blob the engine cannot
// dereference, and reports UnknownPredicate directly. A unique-constraint
// failure on the insert is reported as DuplicateAssertion.
func (s *Session) Assert(ctx context.Context, f term.Formula) error {
	canon, err := term.Canonicalize(f)
	if err != nil {
		return err
	}
	if err := rule.Validate(canon); err != nil {
		return err
	}
	data, err := codec.Encode(canon)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("rbdb: assert %q: begin: %w", canon.Head.Name, err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM _predicate WHERE name = ?`, canon.Head.Name).Scan(&exists)
	if err == sql.ErrNoRows {
		return &catalog.UnknownPredicateError{Name: canon.Head.Name}
	}
	if err != nil {
		return fmt.Errorf("rbdb: assert %q: look up predicate: %w", canon.Head.Name, err)
	}

	res, err := tx.ExecContext(ctx, `INSERT INTO _entity DEFAULT VALUES`)
	if err != nil {
		return fmt.Errorf("rbdb: assert %q: insert entity: %w", canon.Head.Name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("rbdb: assert %q: read entity id: %w", canon.Head.Name, err)
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO _rule (id, formula) VALUES (?, ?)`, id, data); err != nil {
		if isUniqueConstraint(err) {
			return &catalog.DuplicateAssertionError{Formula: data}
		}
		return fmt.Errorf("rbdb: assert %q: insert rule: %w", canon.Head.Name, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("rbdb: assert %q: commit: %w", canon.Head.Name, err)
	}
	return nil
}

func isUniqueConstraint(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint")
}
