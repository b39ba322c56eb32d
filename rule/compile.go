package rule

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/rbdb/rbdb/term"
)

// ColumnsFunc resolves a predicate's declared column names, in argument
// position order, from the catalog. Returned errors propagate to the
// compiler's caller (typically surfaced as UnknownPredicate).
type ColumnsFunc func(predicateName string) ([]string, error)

// UnsupportedQueryError is returned by CompileQuery when the formula carries
// a non-empty body (spec.md §4.4: "Queries containing any body predicate are
// rejected").
type UnsupportedQueryError struct {
	Predicate string
}

func (e *UnsupportedQueryError) Error() string {
	return fmt.Sprintf("rule: query on %q has a non-empty body, which is unsupported", e.Predicate)
}

// CompiledSQL is the result of compiling a rule or a formula query: the SQL
// text and the SELECT list's column aliases in order, so a caller can
// interpret result rows without re-parsing the SQL.
type CompiledSQL struct {
	SQL     string
	Columns []string
}

type binding struct {
	alias  string
	column string
}

// fromSource is one body predicate occurrence turned into a FROM/JOIN entry.
type fromSource struct {
	predicate  term.Predicate
	alias      string
	columns    []string
	conditions []string // rendered "lhs = rhs" fragments attached to this source
}

func (s fromSource) col(i int) string { return s.alias + "." + quoteIdent(s.columns[i]) }

// CompileRule compiles a validated, canonical rule (a Formula with a
// non-empty body) into the SELECT that computes its head relation from its
// body relations, per spec.md §4.4.
func CompileRule(f term.Formula, columns ColumnsFunc) (CompiledSQL, error) {
	if len(f.Body) == 0 {
		return CompiledSQL{}, fmt.Errorf("rule: CompileRule requires a non-empty body")
	}

	sources := make([]*fromSource, len(f.Body))
	nameCount := map[string]int{}
	for i, p := range f.Body {
		cols, err := columns(p.Name)
		if err != nil {
			return CompiledSQL{}, err
		}
		nameCount[p.Name]++
		alias := p.Name
		if n := nameCount[p.Name]; n > 1 {
			alias = fmt.Sprintf("%s%d", p.Name, n)
		}
		sources[i] = &fromSource{predicate: p, alias: alias, columns: cols}
	}

	bindings := map[uint8]binding{}
	for i, src := range sources {
		for argPos, a := range src.predicate.Args {
			if idx, ok := a.Index(); ok {
				if first, seen := bindings[idx]; seen {
					cond := fmt.Sprintf("%s = %s.%s", src.col(argPos), first.alias, quoteIdent(first.column))
					src.conditions = append(src.conditions, cond)
				} else {
					bindings[idx] = binding{alias: src.alias, column: src.columns[argPos]}
				}
				continue
			}
			lit, err := formatLiteral(a)
			if err != nil {
				return CompiledSQL{}, err
			}
			sources[i].conditions = append(sources[i].conditions, fmt.Sprintf("%s = %s", src.col(argPos), lit))
		}
	}

	headCols, err := columns(f.Head.Name)
	if err != nil {
		return CompiledSQL{}, err
	}
	selectList := make([]string, len(f.Head.Args))
	for i, a := range f.Head.Args {
		if idx, ok := a.Index(); ok {
			b, ok := bindings[idx]
			if !ok {
				// Validate should have already rejected this (UnsafeVariables);
				// guard defensively against being called on an unvalidated rule.
				return CompiledSQL{}, fmt.Errorf("rule: head variable %s is unbound in body", DisplayName(idx))
			}
			selectList[i] = fmt.Sprintf("%s.%s AS %s", b.alias, quoteIdent(b.column), quoteIdent(headCols[i]))
		} else {
			lit, err := formatLiteral(a)
			if err != nil {
				return CompiledSQL{}, err
			}
			selectList[i] = fmt.Sprintf("%s AS %s", lit, quoteIdent(headCols[i]))
		}
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(selectList, ", "))
	b.WriteString(" FROM ")
	b.WriteString(quoteIdent(sources[0].predicate.Name))
	if sources[0].alias != sources[0].predicate.Name {
		b.WriteString(" AS ")
		b.WriteString(sources[0].alias)
	}
	for _, src := range sources[1:] {
		b.WriteString(" JOIN ")
		b.WriteString(quoteIdent(src.predicate.Name))
		b.WriteString(" AS ")
		b.WriteString(src.alias)
		b.WriteString(" ON ")
		if len(src.conditions) == 0 {
			b.WriteString("1=1")
		} else {
			b.WriteString(strings.Join(src.conditions, " AND "))
		}
	}
	if len(sources[0].conditions) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(sources[0].conditions, " AND "))
	}

	return CompiledSQL{SQL: b.String(), Columns: headCols}, nil
}

// CompileQuery compiles a question-pattern Formula (empty body) into a
// SELECT over the head predicate's view: variable arguments become
// projected, display-named columns; constant arguments become WHERE
// equalities; an all-constant argument list degenerates to a single `sat`
// column, per spec.md §4.4.
func CompileQuery(f term.Formula, columns ColumnsFunc) (CompiledSQL, error) {
	if len(f.Body) != 0 {
		return CompiledSQL{}, &UnsupportedQueryError{Predicate: f.Head.Name}
	}
	cols, err := columns(f.Head.Name)
	if err != nil {
		return CompiledSQL{}, err
	}

	var (
		selectList []string
		where      []string
		resultCols []string
		bound      = map[uint8]string{} // index -> column already projected
	)
	for i, a := range f.Head.Args {
		col := quoteIdent(cols[i])
		if idx, ok := a.Index(); ok {
			if first, seen := bound[idx]; seen {
				where = append(where, fmt.Sprintf("%s = %s", col, first))
				continue
			}
			bound[idx] = col
			name := DisplayName(idx)
			selectList = append(selectList, fmt.Sprintf("%s AS %s", col, quoteIdent(name)))
			resultCols = append(resultCols, name)
			continue
		}
		lit, err := formatLiteral(a)
		if err != nil {
			return CompiledSQL{}, err
		}
		where = append(where, fmt.Sprintf("%s = %s", col, lit))
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	if len(selectList) == 0 {
		b.WriteString("1 AS ")
		b.WriteString(quoteIdent("sat"))
		resultCols = []string{"sat"}
	} else {
		b.WriteString(strings.Join(selectList, ", "))
	}
	b.WriteString(" FROM ")
	b.WriteString(quoteIdent(f.Head.Name))
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	if len(selectList) == 0 {
		b.WriteString(" LIMIT 1")
	}

	return CompiledSQL{SQL: b.String(), Columns: resultCols}, nil
}

// formatLiteral renders a constant Term as a SQL literal. Booleans render as
// 0/1 to match the engine's ordering and the generated-column extraction
// convention (spec.md §9, design note ii).
func formatLiteral(t term.Term) (string, error) {
	if s, ok := t.StringValue(); ok {
		return "'" + strings.ReplaceAll(s, "'", "''") + "'", nil
	}
	if n, ok := t.NumberValue(); ok {
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return "", fmt.Errorf("rule: cannot compile non-finite number literal %v", n)
		}
		return strconv.FormatFloat(n, 'g', -1, 64), nil
	}
	if bv, ok := t.BoolValue(); ok {
		if bv {
			return "1", nil
		}
		return "0", nil
	}
	return "", fmt.Errorf("rule: term is not a constant")
}

// quoteIdent quotes a SQL identifier for use in generated text, using
// double-quote (ANSI/SQLite) quoting with internal quotes doubled.
func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
