// Package cursor implements the SQL Cursor with Retry (spec.md §4.7): a
// possibly multi-statement SQL execution with rescue-and-resume on
// MissingRelation, distributing a flat argument list across statements by
// each statement's declared placeholder count.
package cursor

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
)

// RescueFunc attempts to materialize the view/trigger for a predicate named
// in a MissingRelationError. It reports whether the relation was recovered;
// a false, nil-error return means the catalog has no such predicate, and the
// cursor then returns the statement's error wrapped in a
// MissingRelationError.
type RescueFunc func(ctx context.Context, name string) (recovered bool, err error)

var missingRelationRe = regexp.MustCompile(`(?i)no such (?:table|view): (\S+)`)

func detectMissingRelation(err error) (string, bool) {
	if err == nil {
		return "", false
	}
	m := missingRelationRe.FindStringSubmatch(err.Error())
	if m == nil {
		return "", false
	}
	return m[1], true
}

// Cursor executes a multi-statement SQL text against one connection,
// eagerly buffering the first row of the final statement so any error the
// engine raises during that first step is delivered synchronously from New
// or Rerun, per spec.md §4.7.
type Cursor struct {
	ctx     context.Context
	conn    *sql.Conn
	rescue  RescueFunc
	sqlText string
	stmts   []statement

	rows        *sql.Rows
	columns     []string
	buffered    bool
	bufferedRow map[string]any
}

// New prepares and runs sqlText with args, distributing args left to right
// across statements by each statement's `?` count.
func New(ctx context.Context, conn *sql.Conn, rescue RescueFunc, sqlText string, args []any) (*Cursor, error) {
	c := &Cursor{ctx: ctx, conn: conn, rescue: rescue, sqlText: sqlText, stmts: splitStatements(sqlText)}
	if err := c.run(args); err != nil {
		return nil, err
	}
	return c, nil
}

// Rerun resets every statement, rebinds args (the same list or a new one),
// re-executes the non-final statements, and reads the first row of the
// final statement, per spec.md §4.7.
func (c *Cursor) Rerun(args []any) error {
	return c.run(args)
}

func (c *Cursor) totalArgs() int {
	n := 0
	for _, s := range c.stmts {
		n += s.NumArgs
	}
	return n
}

func (c *Cursor) run(args []any) error {
	if len(args) != c.totalArgs() {
		return &WrongParameterCountError{Expected: c.totalArgs(), Got: len(args)}
	}
	if c.rows != nil {
		c.rows.Close()
		c.rows = nil
	}
	c.buffered = false
	c.bufferedRow = nil
	c.columns = nil

	rescued := make(map[int]bool, len(c.stmts))
	offset := 0
	for i, stmt := range c.stmts {
		stmtArgs := args[offset : offset+stmt.NumArgs]
		last := i == len(c.stmts)-1
		var err error
		if last {
			err = c.runFinal(stmt, stmtArgs)
		} else {
			err = c.runNonFinal(stmt, stmtArgs)
		}
		if err != nil {
			recovered, rescueErr := c.tryRescue(i, rescued, err)
			if rescueErr != nil {
				return rescueErr
			}
			if !recovered {
				if name, ok := detectMissingRelation(err); ok {
					return fmt.Errorf("%w: %v", &MissingRelationError{Name: name}, err)
				}
				return err
			}
			if last {
				err = c.runFinal(stmt, stmtArgs)
			} else {
				err = c.runNonFinal(stmt, stmtArgs)
			}
			if err != nil {
				return err
			}
		}
		offset += stmt.NumArgs
	}
	return nil
}

// tryRescue invokes rescue for a MissingRelationError found in err, bounded
// to one attempt per statement per run (spec.md §7: "at most one rescue
// attempt per failing statement per call").
func (c *Cursor) tryRescue(stmtIdx int, rescued map[int]bool, err error) (bool, error) {
	name, ok := detectMissingRelation(err)
	if !ok || rescued[stmtIdx] {
		return false, nil
	}
	rescued[stmtIdx] = true
	recovered, rescueErr := c.rescue(c.ctx, name)
	if rescueErr != nil {
		return false, rescueErr
	}
	return recovered, nil
}

func (c *Cursor) runNonFinal(stmt statement, args []any) error {
	_, err := c.conn.ExecContext(c.ctx, stmt.SQL, args...)
	return err
}

func (c *Cursor) runFinal(stmt statement, args []any) error {
	rows, err := c.conn.QueryContext(c.ctx, stmt.SQL, args...)
	if err != nil {
		return err
	}
	cols, err := rows.Columns()
	if err != nil {
		rows.Close()
		return err
	}
	c.rows = rows
	c.columns = cols
	return c.advance()
}

func (c *Cursor) advance() error {
	if !c.rows.Next() {
		err := c.rows.Err()
		c.rows.Close()
		c.buffered = false
		c.bufferedRow = nil
		return err
	}
	row, err := scanRow(c.rows, c.columns)
	if err != nil {
		return err
	}
	c.buffered = true
	c.bufferedRow = row
	return nil
}

func scanRow(rows *sql.Rows, columns []string) (map[string]any, error) {
	values := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, fmt.Errorf("cursor: scan row: %w", err)
	}
	row := make(map[string]any, len(columns))
	for i, col := range columns {
		row[col] = values[i]
	}
	return row, nil
}

// Next returns the currently buffered row, if any, and advances the cursor
// to the following row for the next call. ok is false once the final
// statement is exhausted.
func (c *Cursor) Next() (map[string]any, bool, error) {
	if !c.buffered {
		return nil, false, nil
	}
	row := c.bufferedRow
	if err := c.advance(); err != nil {
		return nil, false, err
	}
	return row, true, nil
}

// UnderestimatedCount returns 1 if the cursor currently buffers a row, 0
// otherwise (spec.md §8 invariant 7).
func (c *Cursor) UnderestimatedCount() int {
	if c.buffered {
		return 1
	}
	return 0
}

// Columns returns the final statement's result column names.
func (c *Cursor) Columns() []string { return c.columns }

// Close releases the cursor's prepared statement handle. Safe to call more
// than once.
func (c *Cursor) Close() error {
	if c.rows != nil {
		err := c.rows.Close()
		c.rows = nil
		return err
	}
	return nil
}
