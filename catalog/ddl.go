package catalog

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// lowerer folds a parsed table name the same Unicode-correct way
// term.NewPredicate folds a formula-side predicate name, so the two sides
// of the boundary (DDL Interceptor, Symbol Algebra) always agree on the
// name stored in _predicate (spec.md §3: "Predicate record: (entity,
// lowercase name — unique, …)").
var lowerer = cases.Lower(language.Und)

// ParsedCreateTable is a CREATE TABLE statement reduced to what the
// Rule Store needs: a predicate name and its declared column names, in
// argument-position order.
type ParsedCreateTable struct {
	Name        string
	Columns     []string
	IfNotExists bool
}

var (
	createTableRe = regexp.MustCompile(`(?is)^\s*CREATE\s+TABLE\s+`)
	ifNotExistsRe = regexp.MustCompile(`(?is)^\s*IF\s+NOT\s+EXISTS\s+`)
	tableConstraintRe = regexp.MustCompile(`(?is)^(UNIQUE|PRIMARY\s+KEY|FOREIGN\s+KEY|CHECK|CONSTRAINT)\b`)
)

// IsCreateTable reports whether sql begins with CREATE TABLE, per spec.md
// §4.5's "if and only if the statement begins with CREATE TABLE, control is
// diverted to the interceptor". Matching is whitespace- and case-insensitive.
func IsCreateTable(sql string) bool {
	return createTableRe.MatchString(sql)
}

// ParseCreateTable parses the normalized form of a CREATE TABLE statement
// into its predicate name and column list, per spec.md §4.5: optional
// IF NOT EXISTS, a table name with bracket/quote wrappers stripped, and a
// column list split by commas at nesting depth zero with table-level
// constraint clauses discarded. A quoted column name is rejected with
// QuotedColumnNotSupportedError.
func ParseCreateTable(sql string) (ParsedCreateTable, error) {
	rest := createTableRe.ReplaceAllString(sql, "")

	ifNotExists := false
	if ifNotExistsRe.MatchString(rest) {
		ifNotExists = true
		rest = ifNotExistsRe.ReplaceAllString(rest, "")
	}

	name, rest, err := leadingIdentifier(rest)
	if err != nil {
		return ParsedCreateTable{}, fmt.Errorf("catalog: parse table name: %w", err)
	}

	rest = strings.TrimSpace(rest)
	open := strings.IndexByte(rest, '(')
	if open < 0 {
		return ParsedCreateTable{}, fmt.Errorf("catalog: CREATE TABLE %s has no column list", name)
	}
	body, err := matchedParens(rest[open:])
	if err != nil {
		return ParsedCreateTable{}, fmt.Errorf("catalog: CREATE TABLE %s: %w", name, err)
	}
	inner := body[1 : len(body)-1]

	var columns []string
	for _, element := range splitTopLevel(inner, ',') {
		element = strings.TrimSpace(element)
		if element == "" || tableConstraintRe.MatchString(element) {
			continue
		}
		colName, quoted, err := firstToken(element)
		if err != nil {
			return ParsedCreateTable{}, fmt.Errorf("catalog: parse column %q: %w", element, err)
		}
		if quoted {
			return ParsedCreateTable{}, &QuotedColumnNotSupportedError{Column: colName}
		}
		columns = append(columns, colName)
	}

	return ParsedCreateTable{Name: lowerer.String(name), Columns: columns, IfNotExists: ifNotExists}, nil
}

var bracketPairs = map[byte]byte{'[': ']', '"': '"', '`': '`'}

// leadingIdentifier consumes the identifier at the start of s — bare, or
// wrapped in [brackets], "double quotes", or `backticks` — and returns its
// unwrapped text along with the remainder of s.
func leadingIdentifier(s string) (string, string, error) {
	s = strings.TrimLeft(s, " \t\r\n")
	if s == "" {
		return "", "", fmt.Errorf("expected an identifier, found end of input")
	}
	if close, wrapped := bracketPairs[s[0]]; wrapped {
		end := strings.IndexByte(s[1:], close)
		if end < 0 {
			return "", "", fmt.Errorf("unterminated %q-wrapped identifier", s[0])
		}
		return s[1 : 1+end], s[1+end+1:], nil
	}
	end := 0
	for end < len(s) && !isIdentBoundary(s[end]) {
		end++
	}
	if end == 0 {
		return "", "", fmt.Errorf("expected an identifier at %q", s)
	}
	return s[:end], s[end:], nil
}

// firstToken returns the first whitespace-delimited token of a column
// definition element and whether it was quote/bracket-wrapped.
func firstToken(element string) (string, bool, error) {
	element = strings.TrimLeft(element, " \t\r\n")
	if element == "" {
		return "", false, fmt.Errorf("empty column definition")
	}
	if _, wrapped := bracketPairs[element[0]]; wrapped {
		name, _, err := leadingIdentifier(element)
		return name, true, err
	}
	name, _, err := leadingIdentifier(element)
	return name, false, err
}

func isIdentBoundary(b byte) bool {
	switch b {
	case ' ', '\t', '\r', '\n', '(', ')', ',':
		return true
	default:
		return false
	}
}

// matchedParens returns s[:n] where n is the index just past the ')' that
// closes the '(' at s[0], tracking nesting depth.
func matchedParens(s string) (string, error) {
	if len(s) == 0 || s[0] != '(' {
		return "", fmt.Errorf("expected '('")
	}
	depth := 0
	for i, c := range s {
		switch c {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return s[:i+1], nil
			}
		}
	}
	return "", fmt.Errorf("unbalanced parentheses")
}

// splitTopLevel splits s on sep at nesting depth zero, ignoring separators
// inside parentheses or quoted strings.
func splitTopLevel(s string, sep byte) []string {
	var (
		out   []string
		depth int
		start int
		quote byte
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"' || c == '`':
			quote = c
		case c == '(':
			depth++
		case c == ')':
			depth--
		case c == sep && depth == 0:
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}
