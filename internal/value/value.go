package value

import (
	"bytes"
	"database/sql/driver"
	"fmt"
	"math"
	"strconv"
	"time"
)

// Kind identifies which storage class a Value holds.
type Kind uint8

// Storage classes, matching SQLite's fundamental datatypes.
const (
	KindNull Kind = iota
	KindInteger
	KindFloat
	KindText
	KindBlob
)

// String returns the lower-case SQLite name of the kind.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindInteger:
		return "integer"
	case KindFloat:
		return "float"
	case KindText:
		return "text"
	case KindBlob:
		return "blob"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// timestampLayout is SQLite's canonical datetime text layout.
const timestampLayout = "2006-01-02 15:04:05.999999999-07:00"

// Value is a single bound parameter or result cell.
//
// The zero Value is Null. Values are immutable; Blob copies its input and
// Bytes returns a copy.
type Value struct {
	kind Kind
	i    int64
	f    float64
	s    string
	b    []byte
}

// Null returns the SQL NULL value.
func Null() Value { return Value{} }

// Integer returns a 64-bit integer value.
func Integer(i int64) Value { return Value{kind: KindInteger, i: i} }

// Float returns a 64-bit float value.
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// Text returns a UTF-8 text value.
func Text(s string) Value { return Value{kind: KindText, s: s} }

// Blob returns a binary value holding a copy of b. A nil b yields an empty
// blob, not NULL.
func Blob(b []byte) Value {
	cp := make([]byte, len(b))
	copy(cp, b)
	return Value{kind: KindBlob, b: cp}
}

// Bool returns Integer(1) for true and Integer(0) for false.
func Bool(v bool) Value {
	if v {
		return Integer(1)
	}
	return Integer(0)
}

// Kind reports the storage class of v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is NULL.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Int returns the integer payload. It is 0 unless Kind is KindInteger.
func (v Value) Int() int64 { return v.i }

// Float64 returns the float payload. It is 0 unless Kind is KindFloat.
func (v Value) Float64() float64 { return v.f }

// Str returns the text payload. It is "" unless Kind is KindText.
func (v Value) Str() string { return v.s }

// Bytes returns a copy of the blob payload. It is nil unless Kind is KindBlob.
func (v Value) Bytes() []byte {
	if v.kind != KindBlob {
		return nil
	}
	cp := make([]byte, len(v.b))
	copy(cp, v.b)
	return cp
}

// Equal reports whether v and o hold the same kind and payload.
// Float comparison is bitwise so NaN equals NaN and -0 differs from +0.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindInteger:
		return v.i == o.i
	case KindFloat:
		return math.Float64bits(v.f) == math.Float64bits(o.f)
	case KindText:
		return v.s == o.s
	case KindBlob:
		return bytes.Equal(v.b, o.b)
	default:
		return true
	}
}

// String implements fmt.Stringer for logging and test output.
func (v Value) String() string {
	switch v.kind {
	case KindInteger:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindText:
		return strconv.Quote(v.s)
	case KindBlob:
		return fmt.Sprintf("blob(%d)", len(v.b))
	default:
		return "NULL"
	}
}

// Driver converts v to the driver.Value bound for it.
func (v Value) Driver() driver.Value {
	switch v.kind {
	case KindInteger:
		return v.i
	case KindFloat:
		return v.f
	case KindText:
		return v.s
	case KindBlob:
		if v.b == nil {
			return []byte{}
		}
		return v.b
	default:
		return nil
	}
}

// From coerces a Go value into a Value.
//
// nil maps to Null, every integer kind to Integer, float32/float64 to Float,
// bool to Integer 0/1, string to Text, []byte to Blob and time.Time to Text
// in SQLite's datetime layout. Values implementing
// fmt.Stringer or error bind as their text form. Unsigned integers that do
// not fit in int64 and every other type fail with ErrUnsupported.
func From(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Null(), nil
	case Value:
		return t, nil
	case int:
		return Integer(int64(t)), nil
	case int8:
		return Integer(int64(t)), nil
	case int16:
		return Integer(int64(t)), nil
	case int32:
		return Integer(int64(t)), nil
	case int64:
		return Integer(t), nil
	case uint:
		return fromUint(uint64(t))
	case uint8:
		return Integer(int64(t)), nil
	case uint16:
		return Integer(int64(t)), nil
	case uint32:
		return Integer(int64(t)), nil
	case uint64:
		return fromUint(t)
	case float32:
		return Float(float64(t)), nil
	case float64:
		return Float(t), nil
	case bool:
		return Bool(t), nil
	case string:
		return Text(t), nil
	case []byte:
		return Blob(t), nil
	case time.Time:
		return Text(t.Format(timestampLayout)), nil
	case fmt.Stringer:
		return Text(t.String()), nil
	case error:
		return Text(t.Error()), nil
	default:
		return Value{}, fmt.Errorf("%w: %T", ErrUnsupported, x)
	}
}

func fromUint(u uint64) (Value, error) {
	if u > math.MaxInt64 {
		return Value{}, fmt.Errorf("%w: %d overflows int64", ErrUnsupported, u)
	}
	return Integer(int64(u)), nil
}

// FromDriver decodes a cell returned by a database/sql driver. Only the
// types drivers use for SQLite's storage classes are accepted: nil, int64,
// float64, string and []byte. Any other type means the driver converted the
// stored value, which fails with ErrUnsupported.
func FromDriver(dv driver.Value) (Value, error) {
	switch dv.(type) {
	case nil, int64, float64, string, []byte:
		return From(dv)
	default:
		return Value{}, fmt.Errorf("%w: driver returned %T", ErrUnsupported, dv)
	}
}
