package value

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Row is one result row: column names mapped to values in the order the
// statement produced them.
//
// Duplicate column names keep the position of their first occurrence and the
// value of their last.
type Row struct {
	columns []string
	values  []Value
}

// NewRow creates an empty row with room for n columns.
func NewRow(n int) Row {
	return Row{
		columns: make([]string, 0, n),
		values:  make([]Value, 0, n),
	}
}

// Set stores v under column name.
func (r *Row) Set(name string, v Value) {
	for i, c := range r.columns {
		if c == name {
			r.values[i] = v
			return
		}
	}
	r.columns = append(r.columns, name)
	r.values = append(r.values, v)
}

// Get returns the value stored under name.
func (r Row) Get(name string) (Value, bool) {
	for i, c := range r.columns {
		if c == name {
			return r.values[i], true
		}
	}
	return Value{}, false
}

// Columns returns the column names in order.
func (r Row) Columns() []string {
	out := make([]string, len(r.columns))
	copy(out, r.columns)
	return out
}

// Len returns the number of distinct columns.
func (r Row) Len() int { return len(r.columns) }

// MarshalJSON writes the row as a JSON object with keys in column order.
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range r.columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(c)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := r.values[i].MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object, keeping key order.
func (r *Row) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("%w: row must be a JSON object", ErrUnsupported)
	}

	row := NewRow(0)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("%w: row key %v", ErrUnsupported, keyTok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		v, err := ParseJSON(raw)
		if err != nil {
			return fmt.Errorf("column %q: %w", key, err)
		}
		row.Set(key, v)
	}
	*r = row
	return nil
}
