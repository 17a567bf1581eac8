// Package api provides the HTTP and WebSocket command bridge for sqlbridge.
//
// Every route funnels into the command dispatcher, so HTTP, WebSocket and
// MQTT callers see identical results and error codes.
//
//	POST   /api/v1/command                      {"op":"query","args":{...}}
//	POST   /api/v1/databases/{name}/open
//	POST   /api/v1/databases/{name}/close
//	POST   /api/v1/databases/{name}/execute     {"statements":"..."}
//	POST   /api/v1/databases/{name}/run         {"statement":"...","values":[...]}
//	POST   /api/v1/databases/{name}/query       {"statement":"...","values":[...]}
//	POST   /api/v1/databases/{name}/execute-set {"set":[...],"transaction":true}
//	GET    /api/v1/databases/{name}             isDBOpen
//	GET    /api/v1/databases/{name}/version     getVersion
//	DELETE /api/v1/databases/{name}             deleteDatabase
//	GET    /api/v1/ws                           WebSocket
//
// WebSocket clients subscribe to "database.<name>" (or "database.*") to
// receive a change event after every successful write.
//
// The server follows the same lifecycle as the other components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// When security.jwt.secret is set every route except /health requires a
// bearer token; read-scoped tokens may only run query, isDBOpen and
// getVersion.
package api
