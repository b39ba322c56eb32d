package rbdb

import (
	"errors"

	"github.com/rbdb/rbdb/catalog"
	"github.com/rbdb/rbdb/codec"
	"github.com/rbdb/rbdb/cursor"
	"github.com/rbdb/rbdb/rule"
	"github.com/rbdb/rbdb/term"
)

// Each detection site in the engine owns its own concrete error type, so
// that the package raising the condition never needs to import this
// package (which would cycle back through Session). The Is* helpers below
// give callers a single place to classify any error a Session operation
// can return, the same way the corpus this module grew out of exposed an
// IsNotFound/IsConstraintError surface over its own per-package errors.

// IsTooManyVariables reports whether err is term.ErrTooManyVariables,
// raised when Canonicalize is given a formula mentioning more than 256
// distinct variables.
func IsTooManyVariables(err error) bool {
	return errors.Is(err, term.ErrTooManyVariables)
}

// IsUnsafeVariables reports whether err is a rule.UnsafeVariablesError,
// raised when a rule's head mentions a variable absent from its body.
func IsUnsafeVariables(err error) bool {
	if err == nil {
		return false
	}
	var e *rule.UnsafeVariablesError
	return errors.As(err, &e)
}

// IsUnsupportedQuery reports whether err is a rule.UnsupportedQueryError,
// raised when CompileQuery is given a formula with a non-empty body.
func IsUnsupportedQuery(err error) bool {
	if err == nil {
		return false
	}
	var e *rule.UnsupportedQueryError
	return errors.As(err, &e)
}

// IsEncodingError reports whether err is a codec.EncodingError, raised
// when Encode is given a non-canonical variable or a non-finite number.
func IsEncodingError(err error) bool {
	if err == nil {
		return false
	}
	var e *codec.EncodingError
	return errors.As(err, &e)
}

// IsDecodingError reports whether err is a codec.DecodingError, raised
// when Decode is given a malformed wire payload.
func IsDecodingError(err error) bool {
	if err == nil {
		return false
	}
	var e *codec.DecodingError
	return errors.As(err, &e)
}

// IsUnknownPredicate reports whether err is a catalog.UnknownPredicateError,
// raised when an assertion or query names a predicate that was never
// declared with CREATE TABLE.
func IsUnknownPredicate(err error) bool {
	if err == nil {
		return false
	}
	var e *catalog.UnknownPredicateError
	return errors.As(err, &e)
}

// IsDuplicateAssertion reports whether err is a
// catalog.DuplicateAssertionError, raised when the same fact or rule is
// asserted twice.
func IsDuplicateAssertion(err error) bool {
	if err == nil {
		return false
	}
	var e *catalog.DuplicateAssertionError
	return errors.As(err, &e)
}

// IsUnsupportedTermType reports whether err is a
// catalog.UnsupportedTermTypeError, raised when a SQL value passed to
// encode_predicate (NULL or BLOB) has no corresponding term.Kind.
func IsUnsupportedTermType(err error) bool {
	if err == nil {
		return false
	}
	var e *catalog.UnsupportedTermTypeError
	return errors.As(err, &e)
}

// IsQuotedColumnNotSupported reports whether err is a
// catalog.QuotedColumnNotSupportedError, raised when a CREATE TABLE names a
// quoted column.
func IsQuotedColumnNotSupported(err error) bool {
	if err == nil {
		return false
	}
	var e *catalog.QuotedColumnNotSupportedError
	return errors.As(err, &e)
}

// IsWrongParameterCount reports whether err is a
// cursor.WrongParameterCountError, raised when the argument list passed to
// a cursor doesn't match the SQL text's placeholder count.
func IsWrongParameterCount(err error) bool {
	if err == nil {
		return false
	}
	var e *cursor.WrongParameterCountError
	return errors.As(err, &e)
}

// IsMissingRelation reports whether err is a cursor.MissingRelationError,
// raised when a statement names a view or table SQLite doesn't have, and
// the cursor's rescue function could not recover it.
func IsMissingRelation(err error) bool {
	if err == nil {
		return false
	}
	var e *cursor.MissingRelationError
	return errors.As(err, &e)
}
