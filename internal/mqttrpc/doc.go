// Package mqttrpc exposes the command set over MQTT.
//
// Callers publish a request on <prefix>/request/<op>:
//
//	sqlbridge/request/query
//	{"id":"42","args":{"database":"notes","statement":"SELECT * FROM notes","values":[]}}
//
// and receive the reply on reply_to, or <prefix>/response/<id> when no
// reply topic is given:
//
//	{"id":"42","ok":true,"result":{"values":[{"id":1,"body":"hi"}]},"timestamp":"..."}
//
// Failures carry the same stable error codes as the HTTP bridge:
//
//	{"id":"42","ok":false,"error":{"code":"not_open","message":"..."}}
//
// Successful writes are announced on <prefix>/event/<database>.
package mqttrpc
