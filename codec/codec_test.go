package codec_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/rbdb/rbdb/codec"
	"github.com/rbdb/rbdb/term"
)

func mustCanon(t *testing.T, f term.Formula) term.Formula {
	t.Helper()
	out, err := term.Canonicalize(f)
	require.NoError(t, err)
	return out
}

func TestRoundTripFact(t *testing.T) {
	f := mustCanon(t, term.NewFormula(term.NewPredicate("human", term.Str("Socrates"))))

	data, err := codec.Encode(f)
	require.NoError(t, err)

	got, err := codec.Decode(data)
	require.NoError(t, err)
	assert.True(t, f.Equal(got), "round trip changed the formula: %+v != %+v", f, got)
}

func TestRoundTripRule(t *testing.T) {
	var g term.VarGen
	x, y, z := g.Fresh(), g.Fresh(), g.Fresh()
	f := mustCanon(t, term.NewFormula(
		term.NewPredicate("grandparent", x, z),
		term.NewPredicate("parent", x, y),
		term.NewPredicate("parent", y, z),
	))

	data, err := codec.Encode(f)
	require.NoError(t, err)

	got, err := codec.Decode(data)
	require.NoError(t, err)
	assert.True(t, f.Equal(got))
}

func TestRoundTripQuery(t *testing.T) {
	var g term.VarGen
	y := g.Fresh()
	f := mustCanon(t, term.NewFormula(term.NewPredicate("human", term.Str("Alice"), y)))

	data, err := codec.Encode(f)
	require.NoError(t, err)
	got, err := codec.Decode(data)
	require.NoError(t, err)
	assert.True(t, f.Equal(got))
}

func TestRoundTripMixedConstantKinds(t *testing.T) {
	f := mustCanon(t, term.NewFormula(
		term.NewPredicate("record", term.Str("a"), term.Num(3.5), term.Bool(true), term.Num(-2)),
	))

	data, err := codec.Encode(f)
	require.NoError(t, err)
	got, err := codec.Decode(data)
	require.NoError(t, err)
	assert.True(t, f.Equal(got))
}

func TestEncodeRejectsNonCanonical(t *testing.T) {
	var g term.VarGen
	f := term.NewFormula(term.NewPredicate("human", g.Fresh()))

	_, err := codec.Encode(f)
	require.Error(t, err)
	var encErr *codec.EncodingError
	require.ErrorAs(t, err, &encErr)
}

func TestEncodeRejectsNonFiniteNumber(t *testing.T) {
	f := mustCanon(t, term.NewFormula(term.NewPredicate("measurement", term.Num(math.NaN()))))

	_, err := codec.Encode(f)
	require.Error(t, err)
	var encErr *codec.EncodingError
	require.ErrorAs(t, err, &encErr)
}

func TestDecodeToleratesUnknownMapKeys(t *testing.T) {
	// A forward-compatible writer that adds an extra "meta" key alongside the
	// recognized constant key must still decode.
	raw := []interface{}{
		"@human",
		map[string]interface{}{"": "Socrates", "meta": "source:census"},
	}
	data, err := msgpack.Marshal(raw)
	require.NoError(t, err)

	got, err := codec.Decode(data)
	require.NoError(t, err)
	want := term.NewFormula(term.NewPredicate("human", term.Str("Socrates")))
	assert.True(t, want.Equal(got))
}

func TestDecodePrefersVariableOverConstantWhenBothPresent(t *testing.T) {
	raw := []interface{}{
		"@human",
		map[string]interface{}{"": "stale", "v": uint8(0)},
	}
	data, err := msgpack.Marshal(raw)
	require.NoError(t, err)

	got, err := codec.Decode(data)
	require.NoError(t, err)
	require.Len(t, got.Head.Args, 1)
	idx, ok := got.Head.Args[0].Index()
	require.True(t, ok)
	assert.Equal(t, uint8(0), idx)
}

func TestDecodeRejectsUnrecognizedVariant(t *testing.T) {
	raw := []interface{}{
		"@human",
		map[string]interface{}{"unknown": "x"},
	}
	data, err := msgpack.Marshal(raw)
	require.NoError(t, err)

	_, err = codec.Decode(data)
	require.Error(t, err)
	var decErr *codec.DecodingError
	require.ErrorAs(t, err, &decErr)
}
