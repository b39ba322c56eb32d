package catalog

import "fmt"

// UnknownPredicateError reports that assert/query named a predicate with no
// _predicate row, or that rescue found no catalog entry for it.
type UnknownPredicateError struct {
	Name string
}

func (e *UnknownPredicateError) Error() string {
	return fmt.Sprintf("catalog: unknown predicate %q", e.Name)
}

// DuplicateAssertionError reports that the unique constraint on
// _rule.formula rejected an insert: the same canonical fact or rule was
// already asserted.
type DuplicateAssertionError struct {
	Formula []byte
}

func (e *DuplicateAssertionError) Error() string {
	return "catalog: formula already asserted"
}

// UnsupportedTermTypeError reports that a SQL value presented to
// encode_predicate could not become a Term: NULL and BLOB are the only
// rejected cases (spec.md §4.6).
type UnsupportedTermTypeError struct {
	GoType string
}

func (e *UnsupportedTermTypeError) Error() string {
	return fmt.Sprintf("catalog: sql value of type %s cannot become a term", e.GoType)
}

// QuotedColumnNotSupportedError reports that a CREATE TABLE column list used
// a quoted, bracketed, or backtick-wrapped column name.
type QuotedColumnNotSupportedError struct {
	Column string
}

func (e *QuotedColumnNotSupportedError) Error() string {
	return fmt.Sprintf("catalog: quoted column name %q is not supported", e.Column)
}
