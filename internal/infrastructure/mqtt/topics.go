package mqtt

import "fmt"

// Topic prefixes for the AlarmBridge broadcast hierarchy.
//
// Decoded events go out under alarmbridge/event/{kind}, raw panel traffic
// under alarmbridge/message/{type}, and service status under
// alarmbridge/system.
const (
	// TopicPrefix is the base for all AlarmBridge topics.
	TopicPrefix = "alarmbridge"

	// TopicPrefixEvent is the base for decoded panel events.
	TopicPrefixEvent = "alarmbridge/event"

	// TopicPrefixMessage is the base for raw panel message broadcasts.
	TopicPrefixMessage = "alarmbridge/message"

	// TopicPrefixSystem is the base for service status topics.
	TopicPrefixSystem = "alarmbridge/system"

	// TopicPrefixCommand is the base for inbound operator commands.
	TopicPrefixCommand = "alarmbridge/command"
)

// Topics provides builders for AlarmBridge MQTT topics.
// Using these helpers keeps topic naming consistent across the codebase.
//
//	topics := mqtt.Topics{}
//	topic := topics.Event("zone_fault")
//	// Returns: "alarmbridge/event/zone_fault"
type Topics struct{}

// Event returns the topic for a decoded panel event of a given kind.
//
// Example: alarmbridge/event/alarm
func (Topics) Event(kind string) string {
	return fmt.Sprintf("%s/%s", TopicPrefixEvent, kind)
}

// Message returns the topic for raw panel messages of a given type.
//
// Example: alarmbridge/message/keypad
func (Topics) Message(messageType string) string {
	return fmt.Sprintf("%s/%s", TopicPrefixMessage, messageType)
}

// PanelStatus returns the retained topic for the current panel
// connection state.
//
// Example: alarmbridge/system/panel
func (Topics) PanelStatus() string {
	return fmt.Sprintf("%s/panel", TopicPrefixSystem)
}

// SystemStatus returns the service status topic (also used for LWT).
//
// Example: alarmbridge/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// Command returns the topic for one inbound operator command.
//
// Example: alarmbridge/command/reconnect
func (Topics) Command(action string) string {
	return fmt.Sprintf("%s/%s", TopicPrefixCommand, action)
}

// AllCommands returns a pattern matching every operator command.
//
// Pattern: alarmbridge/command/+
func (Topics) AllCommands() string {
	return fmt.Sprintf("%s/+", TopicPrefixCommand)
}

// AllEvents returns a pattern matching all decoded event broadcasts.
//
// Pattern: alarmbridge/event/+
func (Topics) AllEvents() string {
	return fmt.Sprintf("%s/+", TopicPrefixEvent)
}

// AllMessages returns a pattern matching all raw message broadcasts.
//
// Pattern: alarmbridge/message/+
func (Topics) AllMessages() string {
	return fmt.Sprintf("%s/+", TopicPrefixMessage)
}

// AllTopics returns a pattern matching every AlarmBridge topic.
// Use with caution, this receives ALL traffic.
//
// Pattern: alarmbridge/#
func (Topics) AllTopics() string {
	return "alarmbridge/#"
}
