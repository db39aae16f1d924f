// Package codec implements the wire encoding for the Backbox Control
// Protocol: one ASCII/UTF-8 line per command, built from a command name
// and a map of typed parameters. Typed scalars round-trip through the
// wire; nested collections fall back to a single JSON parameter.
package codec

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// Kind tags the dynamic type carried by a Value.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindFloat
	KindBool
	KindNull
	KindList
	KindObject
)

// Value is the tagged sum type for a BCP parameter. Only Kind decides how
// a Value is interpreted; nothing outside this package should switch on
// the concrete Go type stored in Raw.
type Value struct {
	Kind Kind
	Str  string
	Int  int64
	Flt  float64
	Bool bool
	// Raw holds the decoded payload for KindList/KindObject (produced by
	// encoding/json: []interface{} or map[string]interface{}).
	Raw interface{}
}

func String(s string) Value  { return Value{Kind: KindString, Str: s} }
func Int(i int64) Value      { return Value{Kind: KindInt, Int: i} }
func Float(f float64) Value  { return Value{Kind: KindFloat, Flt: f} }
func Bool(b bool) Value      { return Value{Kind: KindBool, Bool: b} }
func Null() Value            { return Value{Kind: KindNull} }
func List(v []interface{}) Value   { return Value{Kind: KindList, Raw: v} }
func Object(v map[string]interface{}) Value { return Value{Kind: KindObject, Raw: v} }

// percentEncode percent-encodes every byte outside the RFC 3986 unreserved
// set, matching the original protocol's use of urllib.parse.quote with an
// empty safe set (in particular, spaces become "%20", not "+").
func percentEncode(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			b.WriteByte(c)
		} else {
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') ||
		c == '-' || c == '.' || c == '_' || c == '~'
}

// CodecError reports a malformed line, percent-escape, JSON payload or
// type-tag body. Per spec the whole message is rejected on any of these.
type CodecError struct {
	Line   string
	Reason string
}

func (e *CodecError) Error() string {
	return fmt.Sprintf("bcp codec: %s: %q", e.Reason, e.Line)
}

// Encode serializes a command name and parameter map into a single line
// with no trailing terminator. If any value is a list or object, the
// entire parameter map is instead serialized as JSON under a single
// "json" query parameter.
func Encode(command string, params map[string]Value) (string, error) {
	command = strings.ToLower(command)

	for _, v := range params {
		if v.Kind == KindList || v.Kind == KindObject {
			return encodeJSON(command, params)
		}
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var query []string
	for _, k := range keys {
		v := params[k]
		token, err := encodeScalar(v)
		if err != nil {
			return "", err
		}
		query = append(query, percentEncode(strings.ToLower(k))+"="+token)
	}

	if len(query) == 0 {
		return percentEncode(command), nil
	}
	return percentEncode(command) + "?" + strings.Join(query, "&"), nil
}

func encodeJSON(command string, params map[string]Value) (string, error) {
	plain := make(map[string]interface{}, len(params))
	for k, v := range params {
		val, err := valueToInterface(v)
		if err != nil {
			return "", err
		}
		plain[k] = val
	}

	blob, err := json.Marshal(plain)
	if err != nil {
		return "", &CodecError{Line: command, Reason: "json encode: " + err.Error()}
	}

	return percentEncode(command) + "?json=" + jsonQueryEscaper.Replace(string(blob)), nil
}

// jsonQueryEscaper percent-encodes only the characters that would keep a
// raw JSON value from surviving url.ParseQuery in Decode ('%', '+', ';'
// and '#'); json.Marshal already escapes '&' and control characters, so
// the rest of the JSON text is written as is.
var jsonQueryEscaper = strings.NewReplacer("%", "%25", "+", "%2B", ";", "%3B", "#", "%23")

func valueToInterface(v Value) (interface{}, error) {
	switch v.Kind {
	case KindString:
		return v.Str, nil
	case KindInt:
		return v.Int, nil
	case KindFloat:
		return v.Flt, nil
	case KindBool:
		return v.Bool, nil
	case KindNull:
		return nil, nil
	case KindList, KindObject:
		return v.Raw, nil
	default:
		return nil, &CodecError{Reason: "unknown value kind"}
	}
}

// encodeScalar renders a scalar Value to its percent-encoded wire token.
// Booleans are checked before integers: in the original implementation a
// bool is also an int, and the order here preserves that precedence.
func encodeScalar(v Value) (string, error) {
	switch v.Kind {
	case KindBool:
		// The wire tag mirrors the original protocol's str(bool) casing
		// ("True"/"False"); Decode accepts either case.
		if v.Bool {
			return "bool:True", nil
		}
		return "bool:False", nil
	case KindInt:
		return "int:" + strconv.FormatInt(v.Int, 10), nil
	case KindFloat:
		return "float:" + percentEncode(strconv.FormatFloat(v.Flt, 'g', -1, 64)), nil
	case KindNull:
		return "NoneType:", nil
	case KindString:
		return percentEncode(v.Str), nil
	default:
		return "", &CodecError{Reason: "value is not scalar"}
	}
}

// Decode parses one wire line into a lowercased command name and its
// parameter map. A "json" query parameter, if present, overrides every
// other parameter and supplies the whole map verbatim (its keys are not
// lowercased, matching the asymmetry observed in the source protocol).
func Decode(line string) (command string, params map[string]Value, err error) {
	u, err := url.Parse(line)
	if err != nil {
		return "", nil, &CodecError{Line: line, Reason: "malformed line: " + err.Error()}
	}
	command = strings.ToLower(u.Path)

	query, err := url.ParseQuery(u.RawQuery)
	if err != nil {
		return "", nil, &CodecError{Line: line, Reason: "malformed query: " + err.Error()}
	}

	if raw, ok := query["json"]; ok && len(raw) > 0 {
		dec := json.NewDecoder(strings.NewReader(raw[0]))
		dec.UseNumber()
		var obj map[string]interface{}
		if err := dec.Decode(&obj); err != nil {
			return "", nil, &CodecError{Line: line, Reason: "malformed json: " + err.Error()}
		}
		return command, objectToValues(obj), nil
	}

	params = make(map[string]Value, len(query))
	for k, vs := range query {
		if len(vs) == 0 {
			continue
		}
		key := strings.ToLower(k)
		if _, exists := params[key]; exists {
			continue // repeated keys keep the first value
		}
		val, err := decodeScalar(vs[0])
		if err != nil {
			return "", nil, &CodecError{Line: line, Reason: err.Error()}
		}
		params[key] = val
	}

	return command, params, nil
}

func decodeScalar(raw string) (Value, error) {
	switch {
	case strings.HasPrefix(raw, "int:"):
		n, err := strconv.ParseInt(raw[len("int:"):], 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("malformed int tag %q", raw)
		}
		return Int(n), nil
	case strings.HasPrefix(raw, "float:"):
		f, err := strconv.ParseFloat(raw[len("float:"):], 64)
		if err != nil {
			return Value{}, fmt.Errorf("malformed float tag %q", raw)
		}
		return Float(f), nil
	case strings.EqualFold(raw, "bool:true"):
		return Bool(true), nil
	case strings.EqualFold(raw, "bool:false"):
		return Bool(false), nil
	case raw == "NoneType:":
		return Null(), nil
	default:
		return String(raw), nil
	}
}

// StringValue renders v the way the original protocol's str() coercion
// would for template substitution, independent of its wire encoding.
func (v Value) StringValue() string {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindFloat:
		return strconv.FormatFloat(v.Flt, 'g', -1, 64)
	case KindBool:
		if v.Bool {
			return "True"
		}
		return "False"
	case KindNull:
		return "None"
	default:
		return fmt.Sprint(v.Raw)
	}
}

// objectToValues wraps a decoded JSON object's fields as Values without
// lowercasing keys, per the JSON-branch asymmetry in spec §4.1 rule 2.
func objectToValues(obj map[string]interface{}) map[string]Value {
	out := make(map[string]Value, len(obj))
	for k, v := range obj {
		out[k] = fromInterface(v)
	}
	return out
}

func fromInterface(v interface{}) Value {
	switch t := v.(type) {
	case nil:
		return Null()
	case bool:
		return Bool(t)
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return Int(n)
		}
		f, _ := t.Float64()
		return Float(f)
	case string:
		return String(t)
	case []interface{}:
		return List(t)
	case map[string]interface{}:
		return Object(t)
	default:
		return String(fmt.Sprint(t))
	}
}
