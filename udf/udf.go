// Package udf registers the scalar SQL functions the Rule Store depends on
// (spec.md §6 "User-defined functions provided by the core") against
// modernc.org/sqlite: new_entity_id, encode_predicate, sql_exec, and the
// formula_tag/formula_constant/formula_body_length extraction helpers that
// back _rule's generated columns and the predicate views (spec.md §4.6,
// §4.8), since the formula column is a MessagePack BLOB rather than text
// SQLite's own json1 extension can read.
package udf

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"sync"
	"sync/atomic"

	sqlite "modernc.org/sqlite"

	"github.com/rbdb/rbdb/catalog"
	"github.com/rbdb/rbdb/codec"
	"github.com/rbdb/rbdb/term"
)

var registerOnce sync.Once

// activeConn is the single connection sql_exec runs arbitrary SQL against.
// spec.md §5 fixes the engine to one connection per session ("the session
// holds one connection ... all operations are serialized on it"), so one
// package-level slot is sufficient; Bind must be called once per session
// before any trigger that might call sql_exec fires.
var activeConn atomic.Pointer[sql.Conn]

// Bind records the connection sql_exec executes against. Called once by the
// session at open time.
func Bind(conn *sql.Conn) {
	activeConn.Store(conn)
}

// Register installs the scalar functions with the modernc.org/sqlite
// driver. It is idempotent and safe to call from multiple sessions in the
// same process; registration is process-wide, per the driver's own API.
func Register() error {
	var err error
	registerOnce.Do(func() {
		err = registerAll()
	})
	return err
}

func registerAll() error {
	if e := sqlite.RegisterDeterministicScalarFunction("new_entity_id", 0, newEntityIDFunc); e != nil {
		return fmt.Errorf("udf: register new_entity_id: %w", e)
	}
	if e := sqlite.RegisterDeterministicScalarFunction("encode_predicate", -1, encodePredicateFunc); e != nil {
		return fmt.Errorf("udf: register encode_predicate: %w", e)
	}
	if e := sqlite.RegisterScalarFunction("sql_exec", 1, sqlExecFunc); e != nil {
		return fmt.Errorf("udf: register sql_exec: %w", e)
	}
	if e := sqlite.RegisterDeterministicScalarFunction("formula_tag", 1, formulaTagFunc); e != nil {
		return fmt.Errorf("udf: register formula_tag: %w", e)
	}
	if e := sqlite.RegisterDeterministicScalarFunction("formula_constant", 2, formulaConstantFunc); e != nil {
		return fmt.Errorf("udf: register formula_constant: %w", e)
	}
	if e := sqlite.RegisterDeterministicScalarFunction("formula_body_length", 1, formulaBodyLengthFunc); e != nil {
		return fmt.Errorf("udf: register formula_body_length: %w", e)
	}
	return nil
}

func newEntityIDFunc(_ *sqlite.FunctionContext, _ []driver.Value) (driver.Value, error) {
	id, err := catalog.NewEntityID()
	if err != nil {
		return nil, err
	}
	return id, nil
}

func encodePredicateFunc(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("udf: encode_predicate requires a predicate name")
	}
	name, ok := args[0].(string)
	if !ok {
		return nil, fmt.Errorf("udf: encode_predicate name argument must be text")
	}
	terms := make([]term.Term, 0, len(args)-1)
	for _, v := range args[1:] {
		t, err := sqlValueToTerm(v)
		if err != nil {
			return nil, err
		}
		terms = append(terms, t)
	}
	f := term.NewFormula(term.NewPredicate(name, terms...))
	data, err := codec.Encode(f)
	if err != nil {
		return nil, err
	}
	return data, nil
}

func sqlValueToTerm(v driver.Value) (term.Term, error) {
	switch x := v.(type) {
	case nil:
		return term.Term{}, &catalog.UnsupportedTermTypeError{GoType: "NULL"}
	case []byte:
		return term.Term{}, &catalog.UnsupportedTermTypeError{GoType: "BLOB"}
	case string:
		return term.Str(x), nil
	case bool:
		return term.Bool(x), nil
	case int64:
		return term.Num(float64(x)), nil
	case float64:
		return term.Num(x), nil
	default:
		return term.Term{}, &catalog.UnsupportedTermTypeError{GoType: fmt.Sprintf("%T", v)}
	}
}

func sqlExecFunc(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("udf: sql_exec requires exactly one argument")
	}
	stmt, ok := args[0].(string)
	if !ok {
		return nil, fmt.Errorf("udf: sql_exec argument must be text")
	}
	conn := activeConn.Load()
	if conn == nil {
		return nil, fmt.Errorf("udf: sql_exec called before a session bound its connection")
	}
	if _, err := conn.ExecContext(context.Background(), stmt); err != nil {
		return nil, fmt.Errorf("udf: sql_exec: %w", err)
	}
	return int64(1), nil
}

func formulaTagFunc(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	f, err := decodeArg(args, 0)
	if err != nil {
		return nil, err
	}
	return "@" + f.Head.Name, nil
}

func formulaConstantFunc(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	f, err := decodeArg(args, 0)
	if err != nil {
		return nil, err
	}
	idx, ok := args[1].(int64)
	if !ok {
		return nil, fmt.Errorf("udf: formula_constant index argument must be an integer")
	}
	if idx < 0 || int(idx) >= len(f.Head.Args) {
		return nil, nil
	}
	arg := f.Head.Args[idx]
	if s, ok := arg.StringValue(); ok {
		return s, nil
	}
	if n, ok := arg.NumberValue(); ok {
		return n, nil
	}
	if b, ok := arg.BoolValue(); ok {
		if b {
			return int64(1), nil
		}
		return int64(0), nil
	}
	return nil, nil
}

func formulaBodyLengthFunc(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	f, err := decodeArg(args, 0)
	if err != nil {
		return nil, err
	}
	if len(f.Body) == 0 {
		return nil, nil
	}
	return int64(len(f.Body)), nil
}

func decodeArg(args []driver.Value, i int) (term.Formula, error) {
	if i >= len(args) {
		return term.Formula{}, fmt.Errorf("udf: missing formula argument")
	}
	raw, ok := args[i].([]byte)
	if !ok {
		return term.Formula{}, fmt.Errorf("udf: formula argument must be a blob")
	}
	return codec.Decode(raw)
}
