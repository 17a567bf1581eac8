package mqtt

import "strings"

// DefaultTopicPrefix is used when no prefix is configured.
const DefaultTopicPrefix = "sqlbridge"

// Topics builds the sqlbridge MQTT topic hierarchy under one prefix:
//
//	<prefix>/request/<op>          commands in (payload {"id","reply_to","args"})
//	<prefix>/response/<id>         default reply topic
//	<prefix>/event/<database>      change events after successful writes
//	<prefix>/status                retained online/offline status (LWT)
type Topics struct {
	Prefix string
}

func (t Topics) prefix() string {
	p := strings.TrimSuffix(t.Prefix, "/")
	if p == "" {
		return DefaultTopicPrefix
	}
	return p
}

// Request returns the topic a caller publishes op requests to.
//
// Example: sqlbridge/request/query
func (t Topics) Request(op string) string {
	return t.prefix() + "/request/" + op
}

// AllRequests returns the wildcard matching every request topic.
func (t Topics) AllRequests() string {
	return t.prefix() + "/request/+"
}

// Response returns the default reply topic for a request ID.
//
// Example: sqlbridge/response/4f1c...
func (t Topics) Response(requestID string) string {
	return t.prefix() + "/response/" + requestID
}

// Event returns the change event topic for a database.
//
// Example: sqlbridge/event/notes
func (t Topics) Event(database string) string {
	return t.prefix() + "/event/" + database
}

// AllEvents returns the wildcard matching every change event topic.
func (t Topics) AllEvents() string {
	return t.prefix() + "/event/+"
}

// Status returns the retained service status topic.
func (t Topics) Status() string {
	return t.prefix() + "/status"
}

// OpFromRequest extracts the operation name from a request topic.
// It returns false if topic is not a request topic under this prefix.
func (t Topics) OpFromRequest(topic string) (string, bool) {
	rest, ok := strings.CutPrefix(topic, t.prefix()+"/request/")
	if !ok || rest == "" || strings.Contains(rest, "/") {
		return "", false
	}
	return rest, true
}
