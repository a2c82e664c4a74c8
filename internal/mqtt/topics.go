package mqtt

import "strings"

// DefaultTopicPrefix is used when the configured prefix is blank.
const DefaultTopicPrefix = "gpiogw"

// Topics builds topic names under a prefix.
type Topics struct {
	Prefix string
}

func (t Topics) prefix() string {
	p := strings.Trim(strings.TrimSpace(t.Prefix), "/")
	if p == "" {
		return DefaultTopicPrefix
	}
	return p
}

// SystemStatus is the retained online/offline topic.
func (t Topics) SystemStatus() string {
	return t.prefix() + "/system/status"
}

// Event returns the topic for one lifecycle event type. Dots in the type
// become topic levels, so action.completed maps to events/action/completed.
func (t Topics) Event(eventType string) string {
	return t.prefix() + "/events/" + strings.ReplaceAll(eventType, ".", "/")
}
