package mqttrpc

import (
	"encoding/json"
	"time"
)

// RequestMessage is published by callers on <prefix>/request/<op>.
type RequestMessage struct {
	// ID correlates the response. A missing ID is replaced with a UUID.
	ID string `json:"id"`

	// ReplyTo overrides the response topic. Empty means <prefix>/response/<id>.
	ReplyTo string `json:"reply_to,omitempty"`

	// Args holds the operation arguments, e.g. {"database":"notes"}.
	Args json.RawMessage `json:"args"`
}

// ResponseMessage answers exactly one RequestMessage.
type ResponseMessage struct {
	ID        string         `json:"id"`
	OK        bool           `json:"ok"`
	Result    any            `json:"result,omitempty"`
	Error     *ResponseError `json:"error,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// ResponseError carries the stable error code and a readable message.
type ResponseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
