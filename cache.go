package rbdb

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Cache is an interface for memoizing compiled query results. Users supply
// their own implementation (in-memory, Redis, Memcached) through WithCache;
// Session stores it and returns it from Session.Cache, but never reads or
// writes it itself.
type Cache interface {
	// Get retrieves a value from the cache.
	// Returns nil, nil if the key doesn't exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in the cache with an optional TTL.
	// If ttl is 0, the value should not expire.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from the cache.
	Delete(ctx context.Context, key string) error

	// DeletePrefix removes all values whose key has the given prefix. Used
	// to invalidate every cached result for a predicate after an assertion
	// changes its view.
	DeletePrefix(ctx context.Context, prefix string) error

	// Clear removes all values from the cache.
	Clear(ctx context.Context) error
}

// CacheKey identifies a cached query result by the compiled SQL the Query
// Coordinator produced (rule.CompileQuery's CompiledSQL) and the argument
// list bound to it. Two formulas that compile to the same SQL and args
// share a cache entry even if their variable names differ, since
// Session.Query canonicalizes the formula before compiling it.
type CacheKey struct {
	Predicate string
	SQL       string
	Args      []any
}

// String returns the string representation of the cache key, used as the
// literal key passed to Cache.Get/Set.
func (k CacheKey) String() string {
	var b strings.Builder
	b.WriteString(k.Predicate)
	b.WriteByte(':')
	b.WriteString(k.SQL)
	for _, a := range k.Args {
		fmt.Fprintf(&b, ":%v", a)
	}
	return b.String()
}

// Prefix returns the key prefix shared by every cache entry for a
// predicate, for use with Cache.DeletePrefix when an assertion invalidates
// that predicate's view.
func (k CacheKey) Prefix() string {
	return k.Predicate + ":"
}
