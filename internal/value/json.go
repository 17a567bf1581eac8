package value

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Non-finite floats travel as {"$float": <spelling>}. A plain string would
// read back as Text.
const (
	floatKey   = "$float"
	jsonPosInf = "Infinity"
	jsonNegInf = "-Infinity"
	jsonNaN    = "NaN"
)

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindInteger:
		return strconv.AppendInt(nil, v.i, 10), nil
	case KindFloat:
		return marshalFloat(v.f), nil
	case KindText:
		return json.Marshal(v.s)
	case KindBlob:
		return marshalBlob(v.b), nil
	default:
		return []byte("null"), nil
	}
}

func marshalFloat(f float64) []byte {
	switch {
	case math.IsInf(f, 1):
		return nonFinite(jsonPosInf)
	case math.IsInf(f, -1):
		return nonFinite(jsonNegInf)
	case math.IsNaN(f):
		return nonFinite(jsonNaN)
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	// Keep integral floats distinguishable from integers on the wire.
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return []byte(s)
}

func nonFinite(spelling string) []byte {
	return []byte(`{"` + floatKey + `":"` + spelling + `"}`)
}

func marshalBlob(b []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(len(b)*4 + 2)
	buf.WriteByte('[')
	for i, c := range b {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(strconv.Itoa(int(c)))
	}
	buf.WriteByte(']')
	return buf.Bytes()
}

// UnmarshalJSON implements json.Unmarshaler using ParseJSON.
func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := ParseJSON(data)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// ParseJSON decodes one JSON value into a Value.
//
// Numbers without a fraction or exponent that fit in int64 become Integer,
// other numbers become Float. Booleans become Integer 0/1. Arrays must hold
// integers in 0..255 and become Blob. The only object accepted is
// {"$float": "Infinity" | "-Infinity" | "NaN"}.
func ParseJSON(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return Value{}, fmt.Errorf("%w: %w", ErrUnsupported, err)
	}
	if dec.More() {
		return Value{}, fmt.Errorf("%w: trailing data after value", ErrUnsupported)
	}
	return fromJSON(raw)
}

// ParseJSONList decodes each raw element with ParseJSON. A nil list yields an
// empty parameter list.
func ParseJSONList(raws []json.RawMessage) ([]Value, error) {
	out := make([]Value, len(raws))
	for i, raw := range raws {
		v, err := ParseJSON(raw)
		if err != nil {
			return nil, fmt.Errorf("values[%d]: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

func fromJSON(raw any) (Value, error) {
	switch t := raw.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case json.Number:
		return fromNumber(t)
	case string:
		return Text(t), nil
	case []any:
		return blobFromJSON(t)
	case map[string]any:
		return floatFromJSON(t)
	default:
		return Value{}, fmt.Errorf("%w: JSON %T", ErrUnsupported, raw)
	}
}

func fromNumber(n json.Number) (Value, error) {
	s := n.String()
	if !strings.ContainsAny(s, ".eE") {
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return Integer(i), nil
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Value{}, fmt.Errorf("%w: number %s out of range", ErrUnsupported, s)
	}
	return Float(f), nil
}

func blobFromJSON(items []any) (Value, error) {
	b := make([]byte, len(items))
	for i, item := range items {
		n, ok := item.(json.Number)
		if !ok {
			return Value{}, fmt.Errorf("%w: blob element %d is %T", ErrUnsupported, i, item)
		}
		c, err := strconv.ParseUint(n.String(), 10, 8)
		if err != nil {
			return Value{}, fmt.Errorf("%w: blob element %d (%s) is not a byte", ErrUnsupported, i, n)
		}
		b[i] = byte(c)
	}
	return Value{kind: KindBlob, b: b}, nil
}

func floatFromJSON(obj map[string]any) (Value, error) {
	spelling, ok := obj[floatKey].(string)
	if !ok || len(obj) != 1 {
		return Value{}, fmt.Errorf("%w: JSON object", ErrUnsupported)
	}
	switch spelling {
	case jsonPosInf:
		return Float(math.Inf(1)), nil
	case jsonNegInf:
		return Float(math.Inf(-1)), nil
	case jsonNaN:
		return Float(math.NaN()), nil
	default:
		return Value{}, fmt.Errorf("%w: %s %q", ErrUnsupported, floatKey, spelling)
	}
}
