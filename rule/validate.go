// Package rule implements the Validator (spec.md §4.3) and the
// Rule-to-SQL Compiler (spec.md §4.4): turning a canonical Horn clause into
// a proof that it is safe, and into the SQL that computes it.
package rule

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rbdb/rbdb/term"
)

// UnsafeVariablesError reports head variables absent from the rule's body,
// identified by their canonical index, in ascending order.
type UnsafeVariablesError struct {
	Variables []uint8
}

func (e *UnsafeVariablesError) Error() string {
	names := make([]string, len(e.Variables))
	for i, idx := range e.Variables {
		names[i] = DisplayName(idx)
	}
	return fmt.Sprintf("rule: unsafe variables in head: %s", strings.Join(names, ", "))
}

// Validate checks that a canonicalized Formula is a safe rule: every
// variable in the head also appears in at least one body predicate. Facts
// (empty body, ground head) have no variables and so are always safe; an
// empty-body formula with head variables is reported as unsafe. Validate
// assumes f is already canonical so the reported indices are deterministic;
// calling it on a non-canonical Formula produces meaningless results.
func Validate(f term.Formula) error {
	bodyVars := make(map[uint8]struct{})
	for _, idx := range term.Variables(f.Body...) {
		bodyVars[idx] = struct{}{}
	}
	var unsafe []uint8
	for _, idx := range term.Variables(f.Head) {
		if _, ok := bodyVars[idx]; !ok {
			unsafe = append(unsafe, idx)
		}
	}
	if len(unsafe) == 0 {
		return nil
	}
	sort.Slice(unsafe, func(i, j int) bool { return unsafe[i] < unsafe[j] })
	return &UnsafeVariablesError{Variables: unsafe}
}

// DisplayName renders a canonical variable index as the uppercase-letter
// display name used in formula queries: 0-25 map to "A".."Z", higher indices
// get a numeric suffix ("A1", "B1", ... "A2", ...), per spec.md §4.4's
// "uppercase letter for canonical indices 0-25, multi-letter for higher
// indices".
func DisplayName(idx uint8) string {
	letter := rune('A' + int(idx)%26)
	suffix := int(idx) / 26
	if suffix == 0 {
		return string(letter)
	}
	return fmt.Sprintf("%c%d", letter, suffix)
}
