package mqtt

import "fmt"

// Topic prefixes for the Station PM event bus.
//
// All event topics use the flat scheme: stationpm/events/{category}/{id...}
// so external integrations (CMMS connectors, notification services) can
// subscribe with simple wildcards.
const (
	// TopicPrefix is the base for all Station PM topics.
	TopicPrefix = "stationpm"

	// TopicPrefixEvents is the base for all event topics.
	TopicPrefixEvents = "stationpm/events"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "stationpm/system"
)

// Topics provides builders for Station PM MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	topic := topics.ImportCommitted("platform", "ctl-7f2a")
//	// Returns: "stationpm/events/import/platform/ctl-7f2a"
type Topics struct{}

// ImportCommitted returns the topic for committed import events.
// Kind is "platform", "devices", or "resources".
//
// Example: stationpm/events/import/platform/ctl-7f2a
func (Topics) ImportCommitted(kind, controllerID string) string {
	return fmt.Sprintf("%s/import/%s/%s", TopicPrefixEvents, kind, controllerID)
}

// ControllerUpdated returns the topic for controller record changes.
//
// Example: stationpm/events/controller/ctl-7f2a
func (Topics) ControllerUpdated(controllerID string) string {
	return fmt.Sprintf("%s/controller/%s", TopicPrefixEvents, controllerID)
}

// VisitStatus returns the topic for maintenance visit lifecycle events.
//
// Example: stationpm/events/visit/visit-0017/status
func (Topics) VisitStatus(visitID string) string {
	return fmt.Sprintf("%s/visit/%s/status", TopicPrefixEvents, visitID)
}

// ResourceAlert returns the topic for resource capacity alerts raised when
// an imported metric crosses its licence limit.
//
// Example: stationpm/events/alert/ctl-7f2a
func (Topics) ResourceAlert(controllerID string) string {
	return fmt.Sprintf("%s/alert/%s", TopicPrefixEvents, controllerID)
}

// SystemStatus returns the system status topic used for online/offline
// presence (including the Last Will message).
//
// Example: stationpm/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllImportEvents returns a pattern matching all committed imports.
//
// Pattern: stationpm/events/import/+/+
func (Topics) AllImportEvents() string {
	return fmt.Sprintf("%s/import/+/+", TopicPrefixEvents)
}

// AllControllerEvents returns a pattern matching all controller changes.
//
// Pattern: stationpm/events/controller/+
func (Topics) AllControllerEvents() string {
	return fmt.Sprintf("%s/controller/+", TopicPrefixEvents)
}

// AllVisitEvents returns a pattern matching all visit lifecycle events.
//
// Pattern: stationpm/events/visit/+/status
func (Topics) AllVisitEvents() string {
	return fmt.Sprintf("%s/visit/+/status", TopicPrefixEvents)
}

// AllAlerts returns a pattern matching all resource alerts.
//
// Pattern: stationpm/events/alert/+
func (Topics) AllAlerts() string {
	return fmt.Sprintf("%s/alert/+", TopicPrefixEvents)
}

// AllEvents returns a pattern matching every event topic.
//
// Pattern: stationpm/events/#
func (Topics) AllEvents() string {
	return TopicPrefixEvents + "/#"
}

// AllTopics returns a pattern matching all Station PM topics.
// Use with caution - this receives ALL traffic.
//
// Pattern: stationpm/#
func (Topics) AllTopics() string {
	return TopicPrefix + "/#"
}
