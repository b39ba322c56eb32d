package cursor

import "fmt"

// MissingRelationError reports that the underlying engine could not find a
// predicate's view at prepare or execute time. The Cursor hands this to a
// RescueFunc before ever surfacing it to a caller (spec.md §4.7, §4.9).
type MissingRelationError struct {
	Name string
}

func (e *MissingRelationError) Error() string {
	return fmt.Sprintf("cursor: missing relation %q", e.Name)
}

// WrongParameterCountError reports that the number of `?` placeholders
// across all statements in a cursor's SQL text did not match the number of
// arguments supplied, on construction or on Rerun.
type WrongParameterCountError struct {
	Expected, Got int
}

func (e *WrongParameterCountError) Error() string {
	return fmt.Sprintf("cursor: expected %d parameters, got %d", e.Expected, e.Got)
}
