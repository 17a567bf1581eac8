// Package auth signs and verifies the bearer tokens accepted by the HTTP and
// WebSocket bridges.
//
// Tokens are HS256 JWTs carrying a subject and a scope. A read token may run
// query, isDBOpen and getVersion; a write token may run every operation.
// Tokens are minted offline with "sqlbridge token <subject>".
package auth
