package rbdb_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rbdb/rbdb"
	"github.com/rbdb/rbdb/term"
)

func open(t *testing.T) (*rbdb.Session, context.Context) {
	t.Helper()
	ctx := context.Background()
	s, err := rbdb.Open(ctx, "file::memory:?cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, ctx
}

func rows(t *testing.T, s *rbdb.Session, ctx context.Context, sqlText string, args ...any) []map[string]any {
	t.Helper()
	c, err := s.Execute(ctx, sqlText, args...)
	require.NoError(t, err)
	require.NotNil(t, c)
	defer c.Close()

	var out []map[string]any
	for {
		row, ok, err := c.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		out = append(out, row)
	}
	return out
}

// Scenario A: declare human(name); assert human("Socrates"); SELECT * FROM
// human returns one row {name:"Socrates"}.
func TestSceneFactThenView(t *testing.T) {
	s, ctx := open(t)

	_, err := s.Execute(ctx, `CREATE TABLE human(name)`)
	require.NoError(t, err)

	err = s.Assert(ctx, term.NewFormula(term.NewPredicate("human", term.Str("Socrates"))))
	require.NoError(t, err)

	got := rows(t, s, ctx, `SELECT * FROM human`)
	require.Len(t, got, 1)
	require.Equal(t, "Socrates", got[0]["name"])
}

// Scenario B: declare human(name) and mortal(name); INSERT INTO human
// VALUES("Socrates"); assert mortal(X) :- human(X); SELECT * FROM mortal
// returns {name:"Socrates"}. Dropping the human view and re-querying still
// returns Socrates (rescue rebuilds it).
func TestSceneRuleTriggersViewDrop(t *testing.T) {
	s, ctx := open(t)

	_, err := s.Execute(ctx, `CREATE TABLE human(name)`)
	require.NoError(t, err)
	_, err = s.Execute(ctx, `CREATE TABLE mortal(name)`)
	require.NoError(t, err)

	_, err = s.Execute(ctx, `INSERT INTO human VALUES(?)`, "Socrates")
	require.NoError(t, err)

	var gen term.VarGen
	x := gen.Fresh()
	err = s.Assert(ctx, term.NewFormula(
		term.NewPredicate("mortal", x),
		term.NewPredicate("human", x),
	))
	require.NoError(t, err)

	got := rows(t, s, ctx, `SELECT * FROM mortal`)
	require.Len(t, got, 1)
	require.Equal(t, "Socrates", got[0]["name"])

	require.NoError(t, s.DropPredicateView(ctx, "human"))

	got = rows(t, s, ctx, `SELECT * FROM mortal`)
	require.Len(t, got, 1)
	require.Equal(t, "Socrates", got[0]["name"])

	stats := s.Stats()
	require.GreaterOrEqual(t, stats.Rescues, int64(1))
	require.GreaterOrEqual(t, stats.Recovered, int64(1))
}

// Session.Stats counts statements run through Execute and Query, and the
// rescue attempts those statements triggered: none for a SELECT on a
// predicate whose view is already present.
func TestSessionStatsCountsStatementsAndRescues(t *testing.T) {
	s, ctx := open(t)

	_, err := s.Execute(ctx, `CREATE TABLE human(name)`)
	require.NoError(t, err)
	require.NoError(t, s.Assert(ctx, term.NewFormula(term.NewPredicate("human", term.Str("Socrates")))))

	before := s.Stats()
	_ = rows(t, s, ctx, `SELECT * FROM human`)
	after := s.Stats()

	require.Equal(t, before.Statements+1, after.Statements)
	require.Equal(t, before.Rescues, after.Rescues)
}

// Scenario C: declare parent(a,b) and ancestor(a,b); assert
// ancestor(X,Y):-parent(X,Y) and ancestor(X,Z):-parent(X,Y),ancestor(Y,Z);
// insert parent("john","douglas") and parent("mary","john"). SELECT * FROM
// ancestor yields 3 rows.
func TestSceneRecursion(t *testing.T) {
	s, ctx := open(t)

	_, err := s.Execute(ctx, `CREATE TABLE parent(a,b)`)
	require.NoError(t, err)
	_, err = s.Execute(ctx, `CREATE TABLE ancestor(a,b)`)
	require.NoError(t, err)

	var gen term.VarGen
	x, y, z := gen.Fresh(), gen.Fresh(), gen.Fresh()

	err = s.Assert(ctx, term.NewFormula(
		term.NewPredicate("ancestor", x, y),
		term.NewPredicate("parent", x, y),
	))
	require.NoError(t, err)

	err = s.Assert(ctx, term.NewFormula(
		term.NewPredicate("ancestor", x, z),
		term.NewPredicate("parent", x, y),
		term.NewPredicate("ancestor", y, z),
	))
	require.NoError(t, err)

	_, err = s.Execute(ctx, `INSERT INTO parent VALUES(?,?)`, "john", "douglas")
	require.NoError(t, err)
	_, err = s.Execute(ctx, `INSERT INTO parent VALUES(?,?)`, "mary", "john")
	require.NoError(t, err)

	got := rows(t, s, ctx, `SELECT * FROM ancestor`)
	require.Len(t, got, 3)
}

// Scenario D: declare parent(parent,child) and
// grandparent(grandparent,grandchild); insert parent("Alice","Bob") and
// parent("Bob","Charlie"); assert grandparent(X,Z):-parent(X,Y),parent(Y,Z);
// SELECT * FROM grandparent yields {grandparent:"Alice",grandchild:"Charlie"}.
func TestSceneGrandparentMultiJoin(t *testing.T) {
	s, ctx := open(t)

	_, err := s.Execute(ctx, `CREATE TABLE parent(parent,child)`)
	require.NoError(t, err)
	_, err = s.Execute(ctx, `CREATE TABLE grandparent(grandparent,grandchild)`)
	require.NoError(t, err)

	_, err = s.Execute(ctx, `INSERT INTO parent VALUES(?,?)`, "Alice", "Bob")
	require.NoError(t, err)
	_, err = s.Execute(ctx, `INSERT INTO parent VALUES(?,?)`, "Bob", "Charlie")
	require.NoError(t, err)

	var gen term.VarGen
	x, y, z := gen.Fresh(), gen.Fresh(), gen.Fresh()
	err = s.Assert(ctx, term.NewFormula(
		term.NewPredicate("grandparent", x, z),
		term.NewPredicate("parent", x, y),
		term.NewPredicate("parent", y, z),
	))
	require.NoError(t, err)

	got := rows(t, s, ctx, `SELECT * FROM grandparent`)
	require.Len(t, got, 1)
	require.Equal(t, "Alice", got[0]["grandparent"])
	require.Equal(t, "Charlie", got[0]["grandchild"])
}

// Scenario E: with scenario D's state, formula queries return bindings, a
// satisfaction flag, or nothing.
func TestSceneFormulaQueryWithBindings(t *testing.T) {
	s, ctx := open(t)

	_, err := s.Execute(ctx, `CREATE TABLE parent(parent,child)`)
	require.NoError(t, err)
	_, err = s.Execute(ctx, `CREATE TABLE grandparent(grandparent,grandchild)`)
	require.NoError(t, err)
	_, err = s.Execute(ctx, `INSERT INTO parent VALUES(?,?)`, "Alice", "Bob")
	require.NoError(t, err)
	_, err = s.Execute(ctx, `INSERT INTO parent VALUES(?,?)`, "Bob", "Charlie")
	require.NoError(t, err)

	var gen term.VarGen
	x, y, z := gen.Fresh(), gen.Fresh(), gen.Fresh()
	err = s.Assert(ctx, term.NewFormula(
		term.NewPredicate("grandparent", x, z),
		term.NewPredicate("parent", x, y),
		term.NewPredicate("parent", y, z),
	))
	require.NoError(t, err)

	var gen2 term.VarGen
	zVar := gen2.Fresh()
	c, err := s.Query(ctx, term.NewFormula(term.NewPredicate("grandparent", term.Str("Alice"), zVar)))
	require.NoError(t, err)
	row, ok, err := c.Next()
	require.NoError(t, err)
	require.True(t, ok)
	// The query's sole variable canonicalizes to index 0, whose display
	// name (rule.DisplayName) is "A" regardless of the source variable's
	// original name.
	require.Equal(t, "Charlie", row["A"])
	c.Close()

	c, err = s.Query(ctx, term.NewFormula(term.NewPredicate("grandparent", term.Str("Alice"), term.Str("Charlie"))))
	require.NoError(t, err)
	row, ok, err = c.Next()
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 1, row["sat"])
	c.Close()

	c, err = s.Query(ctx, term.NewFormula(term.NewPredicate("grandparent", term.Str("Alice"), term.Str("Zeus"))))
	require.NoError(t, err)
	_, ok, err = c.Next()
	require.NoError(t, err)
	require.False(t, ok)
	c.Close()
}

// Scenario F: declare human(name) and mortal(name,age); asserting
// mortal(X,Y):-human(X) raises UnsafeVariables([Y]).
func TestSceneUnsafeRuleRejected(t *testing.T) {
	s, ctx := open(t)

	_, err := s.Execute(ctx, `CREATE TABLE human(name)`)
	require.NoError(t, err)
	_, err = s.Execute(ctx, `CREATE TABLE mortal(name, age)`)
	require.NoError(t, err)

	var gen term.VarGen
	x, y := gen.Fresh(), gen.Fresh()
	err = s.Assert(ctx, term.NewFormula(
		term.NewPredicate("mortal", x, y),
		term.NewPredicate("human", x),
	))
	require.Error(t, err)
	require.True(t, rbdb.IsUnsafeVariables(err))
}

// A predicate declared with a mixed-case name must still be assertable
// through term.NewPredicate's lowercased form: both sides of the DDL
// Interceptor / Symbol Algebra boundary fold to the same _predicate.name.
func TestDeclareMixedCaseNameMatchesLowercasedAssert(t *testing.T) {
	s, ctx := open(t)

	_, err := s.Execute(ctx, `CREATE TABLE Human(name)`)
	require.NoError(t, err)

	err = s.Assert(ctx, term.NewFormula(term.NewPredicate("Human", term.Str("Socrates"))))
	require.NoError(t, err)

	got := rows(t, s, ctx, `SELECT * FROM human`)
	require.Len(t, got, 1)
	require.Equal(t, "Socrates", got[0]["name"])
}

// Invariant 4: re-asserting the same canonical form raises DuplicateAssertion.
func TestAssertDuplicateRejected(t *testing.T) {
	s, ctx := open(t)

	_, err := s.Execute(ctx, `CREATE TABLE human(name)`)
	require.NoError(t, err)

	f := term.NewFormula(term.NewPredicate("human", term.Str("Socrates")))
	require.NoError(t, s.Assert(ctx, f))

	err = s.Assert(ctx, f)
	require.Error(t, err)
	require.True(t, rbdb.IsDuplicateAssertion(err))
}

// Asserting a fact for an undeclared predicate raises UnknownPredicate.
func TestAssertUnknownPredicateRejected(t *testing.T) {
	s, ctx := open(t)

	f := term.NewFormula(term.NewPredicate("ghost", term.Str("nobody")))
	err := s.Assert(ctx, f)
	require.Error(t, err)
	require.True(t, rbdb.IsUnknownPredicate(err))
}

// Querying a formula with a non-empty body is rejected, per spec.md §4.10.
func TestQueryRejectsRuleShapedFormula(t *testing.T) {
	s, ctx := open(t)

	_, err := s.Execute(ctx, `CREATE TABLE human(name)`)
	require.NoError(t, err)
	_, err = s.Execute(ctx, `CREATE TABLE mortal(name)`)
	require.NoError(t, err)

	var gen term.VarGen
	x := gen.Fresh()
	_, err = s.Query(ctx, term.NewFormula(
		term.NewPredicate("mortal", x),
		term.NewPredicate("human", x),
	))
	require.Error(t, err)
	require.True(t, rbdb.IsUnsupportedQuery(err))
}
