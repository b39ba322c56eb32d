// Package codec implements the Codec (spec.md §4.2): encoding a canonical
// Formula into a self-describing structured value — nested MessagePack
// arrays and single-key maps — and decoding it back. The wire shape is:
//
//	[ "@"+head.Name, headArg0, headArg1, ..., bodyPred0, bodyPred1, ... ]
//
// where each headArgN is a term encoded as a one-key map ({"": constant} or
// {"v": index}) and each bodyPredN is itself an array
// [name, arg0, arg1, ...] of the same term encoding. Facts and question
// patterns (empty body) encode with no trailing predicate arrays.
package codec

import (
	"fmt"
	"math"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/rbdb/rbdb/term"
)

// constantKey and variableKey are the two recognized single keys of a
// term's encoded map. A decoder that sees both prefers variableKey, since it
// is the later-defined variant (spec.md §4.2's forward-compatibility rule:
// "a decoder presented with more than one recognized variant on the same
// term prefers the one defined more recently").
const (
	constantKey = ""
	variableKey = "v"
)

// EncodingError reports that a Formula could not be encoded: it was not
// canonical, or it carried a non-finite Number constant.
type EncodingError struct {
	Reason string
}

func (e *EncodingError) Error() string { return "codec: " + e.Reason }

// DecodingError reports malformed or unrecognized wire data.
type DecodingError struct {
	Reason string
}

func (e *DecodingError) Error() string { return "codec: " + e.Reason }

// Encode serializes a canonical Formula. It refuses a non-canonical formula
// (one containing a fresh, not-yet-indexed variable) and a formula
// containing a non-finite Number constant (NaN or ±Inf), per spec.md §4.2.
func Encode(f term.Formula) ([]byte, error) {
	if err := checkCanonicalAndFinite(f); err != nil {
		return nil, err
	}

	wire := make([]interface{}, 0, 1+len(f.Head.Args)+len(f.Body))
	wire = append(wire, "@"+f.Head.Name)
	for _, a := range f.Head.Args {
		wire = append(wire, encodeTerm(a))
	}
	for _, p := range f.Body {
		pred := make([]interface{}, 0, 1+len(p.Args))
		pred = append(pred, p.Name)
		for _, a := range p.Args {
			pred = append(pred, encodeTerm(a))
		}
		wire = append(wire, pred)
	}
	return msgpack.Marshal(wire)
}

func checkCanonicalAndFinite(f term.Formula) error {
	check := func(p term.Predicate) error {
		for _, a := range p.Args {
			if a.IsVariable() && !a.IsCanonical() {
				return &EncodingError{Reason: "formula contains a non-canonical variable"}
			}
			if n, ok := a.NumberValue(); ok && (math.IsNaN(n) || math.IsInf(n, 0)) {
				return &EncodingError{Reason: fmt.Sprintf("non-finite number constant %v", n)}
			}
		}
		return nil
	}
	if err := check(f.Head); err != nil {
		return err
	}
	for _, p := range f.Body {
		if err := check(p); err != nil {
			return err
		}
	}
	return nil
}

func encodeTerm(t term.Term) map[string]interface{} {
	if idx, ok := t.Index(); ok {
		return map[string]interface{}{variableKey: idx}
	}
	if s, ok := t.StringValue(); ok {
		return map[string]interface{}{constantKey: s}
	}
	if n, ok := t.NumberValue(); ok {
		return map[string]interface{}{constantKey: n}
	}
	if b, ok := t.BoolValue(); ok {
		return map[string]interface{}{constantKey: b}
	}
	// Unreachable: checkCanonicalAndFinite rejects every other shape first.
	return map[string]interface{}{constantKey: nil}
}

// Decode parses wire data produced by Encode (or by a forward-compatible
// writer using the same term-variant keys) back into a canonical Formula.
func Decode(data []byte) (term.Formula, error) {
	var wire []interface{}
	if err := msgpack.Unmarshal(data, &wire); err != nil {
		return term.Formula{}, &DecodingError{Reason: "not a msgpack array: " + err.Error()}
	}
	if len(wire) == 0 {
		return term.Formula{}, &DecodingError{Reason: "empty formula array"}
	}
	tag, ok := wire[0].(string)
	if !ok || len(tag) == 0 || tag[0] != '@' {
		return term.Formula{}, &DecodingError{Reason: "missing type tag"}
	}
	headName := tag[1:]

	i := 1
	var headArgs []term.Term
	for i < len(wire) {
		m, isMap := asStringMap(wire[i])
		if !isMap {
			break
		}
		t, err := decodeTerm(m)
		if err != nil {
			return term.Formula{}, err
		}
		headArgs = append(headArgs, t)
		i++
	}

	var body []term.Predicate
	for ; i < len(wire); i++ {
		p, err := decodePredicate(wire[i])
		if err != nil {
			return term.Formula{}, err
		}
		body = append(body, p)
	}

	return term.NewFormula(term.NewPredicate(headName, headArgs...), body...), nil
}

func decodePredicate(v interface{}) (term.Predicate, error) {
	arr, ok := v.([]interface{})
	if !ok {
		return term.Predicate{}, &DecodingError{Reason: "body predicate is not an array"}
	}
	if len(arr) == 0 {
		return term.Predicate{}, &DecodingError{Reason: "body predicate array is empty"}
	}
	name, ok := arr[0].(string)
	if !ok {
		return term.Predicate{}, &DecodingError{Reason: "body predicate name is not a string"}
	}
	args := make([]term.Term, 0, len(arr)-1)
	for _, raw := range arr[1:] {
		m, isMap := asStringMap(raw)
		if !isMap {
			return term.Predicate{}, &DecodingError{Reason: "body predicate argument is not a term map"}
		}
		t, err := decodeTerm(m)
		if err != nil {
			return term.Predicate{}, err
		}
		args = append(args, t)
	}
	return term.NewPredicate(name, args...), nil
}

// decodeTerm tolerates unknown keys in m, as long as at least one recognized
// key (constantKey or variableKey) is present; if both are present it
// prefers variableKey, the later-defined variant.
func decodeTerm(m map[string]interface{}) (term.Term, error) {
	if raw, ok := m[variableKey]; ok {
		idx, err := asIndex(raw)
		if err != nil {
			return term.Term{}, err
		}
		return term.Canonical(idx), nil
	}
	if raw, ok := m[constantKey]; ok {
		return decodeConstant(raw)
	}
	return term.Term{}, &DecodingError{Reason: "term map has no recognized variant"}
}

func decodeConstant(raw interface{}) (term.Term, error) {
	switch v := raw.(type) {
	case string:
		return term.Str(v), nil
	case bool:
		return term.Bool(v), nil
	case float64:
		return term.Num(v), nil
	case float32:
		return term.Num(float64(v)), nil
	case int64:
		return term.Num(float64(v)), nil
	case int:
		return term.Num(float64(v)), nil
	case uint64:
		return term.Num(float64(v)), nil
	default:
		return term.Term{}, &DecodingError{Reason: fmt.Sprintf("constant has unsupported wire type %T", raw)}
	}
}

func asIndex(raw interface{}) (uint8, error) {
	switch v := raw.(type) {
	case int8:
		return uint8(v), nil
	case uint8:
		return v, nil
	case int16:
		return uint8(v), nil
	case uint16:
		return uint8(v), nil
	case int32:
		return uint8(v), nil
	case uint32:
		return uint8(v), nil
	case int64:
		return uint8(v), nil
	case uint64:
		return uint8(v), nil
	case int:
		return uint8(v), nil
	default:
		return 0, &DecodingError{Reason: fmt.Sprintf("variable index has unsupported wire type %T", raw)}
	}
}

func asStringMap(v interface{}) (map[string]interface{}, bool) {
	m, ok := v.(map[string]interface{})
	return m, ok
}
