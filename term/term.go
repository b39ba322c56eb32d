// Package term implements the logical data model of RBDB: terms,
// predicates, and Horn-clause formulas, with equality, ordering, and
// canonicalization.
package term

import (
	"fmt"
	"math"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var lowerer = cases.Lower(language.Und)

// Kind discriminates the variants of Term.
type Kind uint8

const (
	// Variable holds either a pre-canonical identity or a canonical index.
	Variable Kind = iota
	// String is a constant string term.
	String
	// Number is a constant IEEE-754 term. NaN is rejected by the codec, not here.
	Number
	// Boolean is a constant term, ordered false < true.
	Boolean
)

// String implements fmt.Stringer for Kind, used in error messages.
func (k Kind) String() string {
	switch k {
	case Variable:
		return "variable"
	case String:
		return "string"
	case Number:
		return "number"
	case Boolean:
		return "boolean"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Term is a sum type over Variable, String, Number, and Boolean. The zero
// value is not a valid Term; construct one with VarGen.Fresh, Canonical,
// Str, Num, or Bool.
//
// A Variable is either "fresh" (identified by Fresh, assigned by a VarGen
// before canonicalization) or "canonical" (identified by Index, a value in
// 0..255 assigned during Canonicalize). Two fresh variables are equal iff
// their Fresh ids match; two canonical variables are equal iff their Index
// values match. A fresh and a canonical variable are never equal.
type Term struct {
	kind      Kind
	fresh     uint64 // valid when kind == Variable && !canonical
	canonical bool   // valid when kind == Variable
	index     uint8  // valid when kind == Variable && canonical

	str string  // valid when kind == String
	num float64 // valid when kind == Number
	b   bool    // valid when kind == Boolean
}

// VarGen mints fresh, pairwise-distinct Variable terms. Callers building a
// Formula by hand should keep one VarGen per formula and reuse the Term
// returned for a given source variable everywhere it recurs, the same way a
// parser reuses one Term per named variable within a clause.
type VarGen struct {
	next uint64
}

// Fresh returns a new Variable term distinct from every other term this
// VarGen has produced.
func (g *VarGen) Fresh() Term {
	g.next++
	return Term{kind: Variable, fresh: g.next}
}

// Str constructs a constant String term.
func Str(s string) Term { return Term{kind: String, str: s} }

// Num constructs a constant Number term. NaN is accepted here; it is
// rejected later, by the codec at encode time and by the SQL compiler when
// rendering a literal.
func Num(n float64) Term { return Term{kind: Number, num: n} }

// Bool constructs a constant Boolean term.
func Bool(b bool) Term { return Term{kind: Boolean, b: b} }

// Kind returns the term's variant.
func (t Term) Kind() Kind { return t.kind }

// IsVariable reports whether t is a Variable (fresh or canonical).
func (t Term) IsVariable() bool { return t.kind == Variable }

// IsConstant reports whether t is a String, Number, or Boolean term.
func (t Term) IsConstant() bool { return t.kind != Variable }

// IsCanonical reports whether t is a canonical-indexed Variable. Always
// false for non-Variable terms.
func (t Term) IsCanonical() bool { return t.kind == Variable && t.canonical }

// FreshID returns the pre-canonical identity of a non-canonical Variable.
// The second return value is false for any other term.
func (t Term) FreshID() (uint64, bool) {
	if t.kind == Variable && !t.canonical {
		return t.fresh, true
	}
	return 0, false
}

// Index returns the canonical index of a canonical Variable. The second
// return value is false for any other term.
func (t Term) Index() (uint8, bool) {
	if t.kind == Variable && t.canonical {
		return t.index, true
	}
	return 0, false
}

// StringValue returns the value of a String term and true, or "" and false.
func (t Term) StringValue() (string, bool) {
	if t.kind == String {
		return t.str, true
	}
	return "", false
}

// NumberValue returns the value of a Number term and true, or 0 and false.
func (t Term) NumberValue() (float64, bool) {
	if t.kind == Number {
		return t.num, true
	}
	return 0, false
}

// BoolValue returns the value of a Boolean term and true, or false and false.
func (t Term) BoolValue() (bool, bool) {
	if t.kind == Boolean {
		return t.b, true
	}
	return false, false
}

// withIndex returns a canonical Variable term with the given index. Used
// only by Canonicalize.
func withIndex(idx uint8) Term {
	return Term{kind: Variable, canonical: true, index: idx}
}

// Canonical constructs a canonical Variable term directly from its index.
// Used by decoders that read an already-canonical encoding back into terms.
func Canonical(idx uint8) Term { return withIndex(idx) }

// Equal reports whether two terms are the same per the equality rules of
// each variant: fresh variables compare by identity, canonical variables by
// index, constants by value and kind.
func (t Term) Equal(o Term) bool {
	if t.kind != o.kind {
		return false
	}
	switch t.kind {
	case Variable:
		if t.canonical != o.canonical {
			return false
		}
		if t.canonical {
			return t.index == o.index
		}
		return t.fresh == o.fresh
	case String:
		return t.str == o.str
	case Number:
		// NaN is never produced by a canonical formula (the codec rejects it
		// at encode time), but Equal must still be well-defined pre-encode.
		if math.IsNaN(t.num) || math.IsNaN(o.num) {
			return math.IsNaN(t.num) && math.IsNaN(o.num)
		}
		return t.num == o.num
	case Boolean:
		return t.b == o.b
	}
	return false
}

// variantRank orders Term variants for Less: Variable first, then the
// constant kinds in a fixed, arbitrary-but-deterministic order. spec.md only
// specifies "variable < constant"; the relative order among distinct
// constant kinds is this implementation's choice.
func variantRank(k Kind) int {
	switch k {
	case Variable:
		return 0
	case Boolean:
		return 1
	case Number:
		return 2
	case String:
		return 3
	default:
		return 4
	}
}

// Less defines the total order on terms used by canonicalization and body
// sorting: variables before constants, then by payload. Canonical variables
// compare by index; fresh variables compare by their mint order (Fresh id),
// which is deterministic within a single VarGen but is not meaningful across
// formulas — Less on fresh terms is only ever called before canonicalization
// assigns indices.
func (t Term) Less(o Term) bool {
	if t.kind != o.kind {
		return variantRank(t.kind) < variantRank(o.kind)
	}
	switch t.kind {
	case Variable:
		if t.canonical != o.canonical {
			return !t.canonical // fresh sorts before canonical, arbitrarily; unreachable post-canonicalization
		}
		if t.canonical {
			return t.index < o.index
		}
		return t.fresh < o.fresh
	case String:
		return t.str < o.str
	case Number:
		return t.num < o.num
	case Boolean:
		// false < true, matching the SQL engine's 0 < 1.
		return !t.b && o.b
	}
	return false
}
