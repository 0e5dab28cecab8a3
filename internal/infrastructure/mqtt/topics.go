package mqtt

import (
	"fmt"
	"strings"
)

// TopicPrefix is the base for every Gray Logic topic.
//
// Bridge topics use the flat scheme graylogic/{category}/{protocol}/{address_or_id},
// shared with the Core and the other protocol bridges.
const TopicPrefix = "graylogic"

// DefaultProtocol is the protocol segment used when Topics.Protocol is empty.
const DefaultProtocol = "eltako"

// Topics builds the topics of one protocol bridge.
//
//	topics := mqtt.Topics{}
//	topics.State("01-02-03-04")
//	// Returns: "graylogic/state/eltako/01-02-03-04"
type Topics struct {
	Protocol string
}

func (t Topics) protocol() string {
	if t.Protocol == "" {
		return DefaultProtocol
	}
	return t.Protocol
}

func (t Topics) build(category, leaf string) string {
	if leaf == "" {
		return fmt.Sprintf("%s/%s/%s", TopicPrefix, category, t.protocol())
	}
	return fmt.Sprintf("%s/%s/%s/%s", TopicPrefix, category, t.protocol(), leaf)
}

// State returns the retained state topic of a device.
//
// Example: graylogic/state/eltako/01-02-03-04
func (t Topics) State(address string) string { return t.build("state", address) }

// Command returns the command topic of a device.
//
// Example: graylogic/command/eltako/kitchen-light
func (t Topics) Command(deviceID string) string { return t.build("command", deviceID) }

// Ack returns the acknowledgement topic of a device.
//
// Example: graylogic/ack/eltako/kitchen-light
func (t Topics) Ack(deviceID string) string { return t.build("ack", deviceID) }

// Event returns the topic for bridge events of one kind.
//
// Example: graylogic/event/eltako/unresolved
func (t Topics) Event(kind string) string { return t.build("event", kind) }

// Request returns the topic for a request to the bridge.
//
// Example: graylogic/request/eltako/req-abc123
func (t Topics) Request(requestID string) string { return t.build("request", requestID) }

// Response returns the topic for the response to a request.
//
// Example: graylogic/response/eltako/req-abc123
func (t Topics) Response(requestID string) string { return t.build("response", requestID) }

// Health returns the retained bridge health topic.
//
// Example: graylogic/health/eltako
func (t Topics) Health() string { return t.build("health", "") }

// Discovery returns the topic for discovered addresses.
//
// Example: graylogic/discovery/eltako
func (t Topics) Discovery() string { return t.build("discovery", "") }

// AllCommands matches every command to the bridge.
//
// Pattern: graylogic/command/eltako/+
func (t Topics) AllCommands() string { return t.build("command", "+") }

// AllRequests matches every request to the bridge.
//
// Pattern: graylogic/request/eltako/+
func (t Topics) AllRequests() string { return t.build("request", "+") }

// AllStates matches every device state of the bridge.
//
// Pattern: graylogic/state/eltako/+
func (t Topics) AllStates() string { return t.build("state", "+") }

// Leaf returns the last segment of a topic: the device id of a command
// topic or the request id of a request topic.
func Leaf(topic string) string {
	if i := strings.LastIndexByte(topic, '/'); i >= 0 {
		return topic[i+1:]
	}
	return topic
}

// ValidSegment reports whether s can be used as a single topic level.
// Wildcards and separators would change what a subscription matches.
func ValidSegment(s string) bool {
	return s != "" && !strings.ContainsAny(s, "/+#\x00")
}
