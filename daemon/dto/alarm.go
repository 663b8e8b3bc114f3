package dto

import "time"

// AlarmLevel is the severity of an AlarmMessage.
type AlarmLevel string

const (
	AlarmLow      AlarmLevel = "low"
	AlarmMedium   AlarmLevel = "medium"
	AlarmHigh     AlarmLevel = "high"
	AlarmCritical AlarmLevel = "critical"
)

// AlarmMessage is published to an AlarmSink when a rule triggers, or when
// the engine/an analyzer raises a fault alarm about itself.
type AlarmMessage struct {
	Level           AlarmLevel `json:"level"`
	ApplicationName string     `json:"applicationName"`
	Summary         string     `json:"summary"`
	Detail          string     `json:"detail,omitempty"`
	EventID         *EventID   `json:"eventId,omitempty"`
	RaisedAt        time.Time  `json:"raisedAt"`
}

// EngineMessage is a UTC-stamped diagnostic string for operator introspection.
// It is never sent to an AlarmSink.
type EngineMessage struct {
	Timestamp time.Time `json:"timestamp"`
	Text      string    `json:"text"`
}
