// Package value defines the values exchanged between sqlbridge callers and
// SQLite.
//
// A Value is a closed tagged union of the five SQLite storage classes:
//
//	Null     SQL NULL
//	Integer  64-bit signed integer
//	Float    64-bit IEEE 754 float
//	Text     UTF-8 string
//	Blob     raw bytes
//
// Values are built with the constructors (Integer, Text, ...) or coerced from
// Go values with From. Results read back from SQLite are decoded strictly by
// the storage class SQLite reports for each cell, never by the column's
// declared type: SQLite is dynamically typed per value. FromDriver rejects
// driver types such as time.Time or bool that only appear when a driver has
// converted a cell.
//
// # Wire Format
//
// Values marshal to JSON as the plugin protocol expects:
//
//	null      -> Null
//	42        -> Integer
//	4.5, 2.0  -> Float (integral floats always carry a decimal point)
//	"text"    -> Text
//	[0, 255]  -> Blob (array of unsigned bytes)
//
// Non-finite floats, which JSON cannot carry as numbers, are written as
// {"$float":"Infinity"}, {"$float":"-Infinity"} and {"$float":"NaN"}, so
// they never read back as Text.
//
// ParseJSON is the strict inverse used at the transport boundary. Objects,
// arrays with elements outside 0..255 and out-of-range numbers are rejected
// with ErrUnsupported before anything reaches the engine.
//
// Row is an ordered column -> Value mapping that preserves the column order
// of the statement and marshals to a JSON object in that order.
package value
