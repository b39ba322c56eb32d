// Package catalog implements the Rule Store (spec.md §4.8): entity
// minting, the fixed _entity/_predicate/_rule schema, and the DDL
// Interceptor (spec.md §4.5) that turns a CREATE TABLE statement into a
// predicate declaration instead of a physical table.
package catalog

import (
	"fmt"

	"github.com/google/uuid"
)

// NewEntityID mints a 128-bit v7 UUID: the first 48 bits are a big-endian
// millisecond Unix timestamp, the version nibble is 7, and the variant bits
// are 10. This is what the new_entity_id() SQL function (registered by
// package udf) returns as a BLOB default for every row of _entity.
func NewEntityID() ([]byte, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("catalog: mint entity id: %w", err)
	}
	return append([]byte(nil), id[:]...), nil
}

// ParseEntityID parses either the canonical hyphenated form or the
// 32-hex-digit unhyphenated form of a v7 UUID into its 16 raw bytes. Any
// other length or non-hex input is rejected.
func ParseEntityID(s string) ([16]byte, error) {
	if len(s) != 36 && len(s) != 32 {
		return [16]byte{}, fmt.Errorf("catalog: parse entity id %q: invalid length %d", s, len(s))
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return [16]byte{}, fmt.Errorf("catalog: parse entity id %q: %w", s, err)
	}
	return [16]byte(id), nil
}
