package term

import (
	"errors"
	"sort"
)

// ErrTooManyVariables is returned by Canonicalize when a formula mentions
// more than 256 distinct variables, exceeding the canonical index range.
var ErrTooManyVariables = errors.New("term: too many variables in formula (max 256)")

// varKey identifies a distinct variable occurrence for first-occurrence
// traversal, whether it is still fresh or already canonical. Canonicalize
// treats a Formula whose variables are already canonical as a no-op
// (mapping each index to itself), which is what makes Canonicalize
// idempotent: Canonicalize(Canonicalize(f)) == Canonicalize(f).
type varKey struct {
	canonical bool
	fresh     uint64
	index     uint8
}

func keyOf(t Term) varKey {
	if idx, ok := t.Index(); ok {
		return varKey{canonical: true, index: idx}
	}
	id, _ := t.FreshID()
	return varKey{canonical: false, fresh: id}
}

// Canonicalize rewrites f so that every variable carries a canonical index
// assigned in first-occurrence order (head arguments, then body predicates
// in the given order, constants skipped), and sorts the body predicates by
// the total predicate order. It fails with ErrTooManyVariables if more than
// 256 distinct variables occur.
func Canonicalize(f Formula) (Formula, error) {
	order := make([]varKey, 0, 8)
	mapping := make(map[varKey]uint8, 8)
	next := uint8(0)
	overflow := false

	visit := func(p Predicate) {
		for _, a := range p.Args {
			if !a.IsVariable() {
				continue
			}
			k := keyOf(a)
			if _, ok := mapping[k]; ok {
				continue
			}
			if len(order) >= 256 {
				overflow = true
				return
			}
			if k.canonical {
				mapping[k] = k.index
				if int(k.index)+1 > int(next) {
					next = k.index + 1
				}
			} else {
				mapping[k] = next
				next++
			}
			order = append(order, k)
		}
	}

	visit(f.Head)
	for _, p := range f.Body {
		if overflow {
			break
		}
		visit(p)
	}
	if overflow || len(order) > 256 {
		return Formula{}, ErrTooManyVariables
	}

	rewrite := func(t Term) Term {
		if !t.IsVariable() {
			return t
		}
		return withIndex(mapping[keyOf(t)])
	}

	head := f.Head.rewriteArgs(rewrite)
	body := make([]Predicate, len(f.Body))
	for i, p := range f.Body {
		body[i] = p.rewriteArgs(rewrite)
	}
	sort.SliceStable(body, func(i, j int) bool { return body[i].Less(body[j]) })

	return Formula{Head: head, Body: body}, nil
}
