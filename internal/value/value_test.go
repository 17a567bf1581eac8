package value

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"
)

type stringerID int

func (s stringerID) String() string { return "id-" + string(rune('0'+int(s))) }

func TestFrom(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  Value
	}{
		{name: "nil", input: nil, want: Null()},
		{name: "int", input: 42, want: Integer(42)},
		{name: "negative int64", input: int64(-7), want: Integer(-7)},
		{name: "uint8", input: uint8(255), want: Integer(255)},
		{name: "uint64 in range", input: uint64(math.MaxInt64), want: Integer(math.MaxInt64)},
		{name: "float64", input: 2.5, want: Float(2.5)},
		{name: "float32", input: float32(0.5), want: Float(0.5)},
		{name: "true", input: true, want: Integer(1)},
		{name: "false", input: false, want: Integer(0)},
		{name: "string", input: "héllo", want: Text("héllo")},
		{name: "bytes", input: []byte{0, 128, 255}, want: Blob([]byte{0, 128, 255})},
		{name: "stringer", input: stringerID(3), want: Text("id-3")},
		{name: "error", input: errors.New("boom"), want: Text("boom")},
		{name: "value passthrough", input: Text("x"), want: Text("x")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := From(tt.input)
			if err != nil {
				t.Fatalf("From(%v) error = %v", tt.input, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("From(%v) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestFrom_Unsupported(t *testing.T) {
	inputs := []any{
		uint64(math.MaxInt64) + 1,
		map[string]int{"a": 1},
		[]int{1, 2},
		struct{}{},
	}
	for _, in := range inputs {
		if _, err := From(in); !errors.Is(err, ErrUnsupported) {
			t.Errorf("From(%T) error = %v, want ErrUnsupported", in, err)
		}
	}
}

func TestFromDriver(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  Value
	}{
		{name: "nil", input: nil, want: Null()},
		{name: "int64", input: int64(9), want: Integer(9)},
		{name: "float64", input: 1.25, want: Float(1.25)},
		{name: "bytes", input: []byte("ab"), want: Blob([]byte("ab"))},
		{name: "empty bytes", input: []byte{}, want: Blob(nil)},
		{name: "string", input: "s", want: Text("s")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromDriver(tt.input)
			if err != nil {
				t.Fatalf("FromDriver(%v) error = %v", tt.input, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("FromDriver(%v) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

// TestFromDriver_RejectsConverted covers the types a driver only produces
// after rewriting a cell from its declared column type.
func TestFromDriver_RejectsConverted(t *testing.T) {
	for _, in := range []any{true, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), int32(1)} {
		if _, err := FromDriver(in); !errors.Is(err, ErrUnsupported) {
			t.Errorf("FromDriver(%T) error = %v, want ErrUnsupported", in, err)
		}
	}
}

func TestBlob_CopiesInput(t *testing.T) {
	src := []byte{1, 2, 3}
	v := Blob(src)
	src[0] = 99

	if got := v.Bytes(); got[0] != 1 {
		t.Errorf("Blob() shares caller memory: got %v", got)
	}

	out := v.Bytes()
	out[1] = 99
	if again := v.Bytes(); again[1] != 2 {
		t.Errorf("Bytes() exposes internal memory: got %v", again)
	}
}

func TestEqual_FloatBits(t *testing.T) {
	if !Float(math.NaN()).Equal(Float(math.NaN())) {
		t.Error("NaN should equal NaN bitwise")
	}
	if Float(0).Equal(Float(math.Copysign(0, -1))) {
		t.Error("+0 should differ from -0")
	}
	if Integer(1).Equal(Float(1)) {
		t.Error("Integer(1) should differ from Float(1)")
	}
}

func TestMarshalJSON(t *testing.T) {
	tests := []struct {
		name string
		in   Value
		want string
	}{
		{name: "null", in: Null(), want: `null`},
		{name: "integer", in: Integer(-12), want: `-12`},
		{name: "float", in: Float(4.5), want: `4.5`},
		{name: "integral float", in: Float(2), want: `2.0`},
		{name: "exponent float", in: Float(1e21), want: `1e+21`},
		{name: "inf", in: Float(math.Inf(1)), want: `{"$float":"Infinity"}`},
		{name: "neg inf", in: Float(math.Inf(-1)), want: `{"$float":"-Infinity"}`},
		{name: "nan", in: Float(math.NaN()), want: `{"$float":"NaN"}`},
		{name: "text", in: Text(`a"b`), want: `"a\"b"`},
		{name: "blob", in: Blob([]byte{0, 127, 128, 255}), want: `[0,127,128,255]`},
		{name: "empty blob", in: Blob(nil), want: `[]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := json.Marshal(tt.in)
			if err != nil {
				t.Fatalf("Marshal() error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("Marshal() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestParseJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Value
	}{
		{name: "null", in: `null`, want: Null()},
		{name: "integer", in: `42`, want: Integer(42)},
		{name: "max int64", in: `9223372036854775807`, want: Integer(math.MaxInt64)},
		{name: "beyond int64", in: `9223372036854775808`, want: Float(9223372036854775808)},
		{name: "fraction", in: `0.25`, want: Float(0.25)},
		{name: "integral float", in: `2.0`, want: Float(2)},
		{name: "exponent", in: `1e3`, want: Float(1000)},
		{name: "true", in: `true`, want: Integer(1)},
		{name: "string", in: `"hi"`, want: Text("hi")},
		{name: "infinity spelling is text", in: `"Infinity"`, want: Text("Infinity")},
		{name: "tagged infinity", in: `{"$float": "Infinity"}`, want: Float(math.Inf(1))},
		{name: "tagged nan", in: `{"$float":"NaN"}`, want: Float(math.NaN())},
		{name: "blob", in: `[0, 255, 128]`, want: Blob([]byte{0, 255, 128})},
		{name: "empty array", in: `[]`, want: Blob(nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseJSON([]byte(tt.in))
			if err != nil {
				t.Fatalf("ParseJSON(%s) error = %v", tt.in, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("ParseJSON(%s) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseJSON_Rejects(t *testing.T) {
	inputs := []string{
		`{"a": 1}`,
		`{"$float": "Inf"}`,
		`{"$float": 1}`,
		`{"$float": "NaN", "x": 1}`,
		`[256]`,
		`[-1]`,
		`[1.5]`,
		`["x"]`,
		`1e999`,
		`1 2`,
		`not json`,
	}
	for _, in := range inputs {
		if _, err := ParseJSON([]byte(in)); !errors.Is(err, ErrUnsupported) {
			t.Errorf("ParseJSON(%s) error = %v, want ErrUnsupported", in, err)
		}
	}
}

func TestJSONRoundTrip(t *testing.T) {
	all := make([]byte, 256)
	for i := range all {
		all[i] = byte(i)
	}
	values := []Value{
		Null(),
		Integer(0),
		Integer(math.MinInt64),
		Integer(math.MaxInt64),
		Float(-3.75),
		Float(10),
		Float(math.Inf(1)),
		Float(math.Inf(-1)),
		Float(math.NaN()),
		Text(""),
		Text("Infinity"),
		Text("NaN"),
		Text("ünïcode ✓"),
		Blob(all),
	}

	for _, v := range values {
		data, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("Marshal(%v) error = %v", v, err)
		}
		var back Value
		if err := json.Unmarshal(data, &back); err != nil {
			t.Fatalf("Unmarshal(%s) error = %v", data, err)
		}
		if !back.Equal(v) {
			t.Errorf("round trip %v -> %s -> %v", v, data, back)
		}
	}
}

func TestRow_OrderAndDuplicates(t *testing.T) {
	row := NewRow(3)
	row.Set("b", Integer(1))
	row.Set("a", Text("x"))
	row.Set("b", Integer(2))

	if row.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", row.Len())
	}
	cols := row.Columns()
	if cols[0] != "b" || cols[1] != "a" {
		t.Errorf("Columns() = %v, want [b a]", cols)
	}
	if v, _ := row.Get("b"); !v.Equal(Integer(2)) {
		t.Errorf("Get(b) = %v, want 2 (last write wins)", v)
	}

	data, err := json.Marshal(row)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(data) != `{"b":2,"a":"x"}` {
		t.Errorf("Marshal() = %s", data)
	}

	var back Row
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if got := back.Columns(); len(got) != 2 || got[0] != "b" {
		t.Errorf("Unmarshal() columns = %v", got)
	}
}
