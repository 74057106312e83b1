// Package events provides event types and publishing infrastructure for
// workspace operations.
package events

import (
	"time"
)

// EventType defines the type of event.
type EventType string

const (
	// EventExported indicates an archive was produced.
	EventExported EventType = "workspace_exported"
	// EventImported indicates an archive was restored.
	EventImported EventType = "workspace_imported"
	// EventWiped indicates the workspace was reset.
	EventWiped EventType = "workspace_wiped"
	// EventError indicates an operation failed.
	EventError EventType = "workspace_error"
)

// Topics group events by the operation that produced them.
const (
	TopicExport = "export"
	TopicImport = "import"
	TopicWipe   = "wipe"
)

// Event represents a published event.
type Event struct {
	Type        EventType `json:"type"`
	Topic       string    `json:"topic"`
	OperationID string    `json:"operation_id"`
	Data        any       `json:"data,omitempty"`
	Time        time.Time `json:"time"`
}

// NewEvent creates a new event with the current timestamp.
func NewEvent(eventType EventType, topic, operationID string, data any) Event {
	return Event{
		Type:        eventType,
		Topic:       topic,
		OperationID: operationID,
		Data:        data,
		Time:        time.Now(),
	}
}

// ErrorData is the payload of EventError.
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
