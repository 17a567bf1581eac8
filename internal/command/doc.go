// Package command is the typed operation surface of sqlbridge.
//
// Each external operation is one struct implementing the sealed Command
// interface. Commands carry already-validated arguments (parameters are
// value.Value, never loosely typed input) and are executed through a single
// entry point, Dispatcher.Dispatch.
//
// Decode is the only place an operation name string is interpreted. It maps
// the wire argument object used by every transport (HTTP, WebSocket, MQTT)
// onto a Command:
//
//	{"database": "notes", "statement": "INSERT INTO t(x) VALUES (?)", "values": [42]}
//
// Results marshal to the response shapes callers expect:
//
//	open, close, deleteDatabase  {}
//	execute, executeSet          {"changes": {"changes": n}}
//	run                          {"changes": {"changes": n, "lastId": id}}
//	query                        {"values": [{...}, ...]}
//	isDBOpen                     {"result": true}
//	getVersion                   {"version": n}
package command
