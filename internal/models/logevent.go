package models

import "time"

// LogEventType distinguishes log lines from keepalives and terminal errors.
type LogEventType string

const (
	// EventLine carries one complete log line.
	EventLine LogEventType = "line"
	// EventPing is the keepalive emitted while a stream is active.
	EventPing LogEventType = "ping"
	// EventError is the terminal event of a failed stream.
	EventError LogEventType = "error"
)

// LogChannel tags which stream a line came from.
type LogChannel string

const (
	// ChannelOut is the process stdout log.
	ChannelOut LogChannel = "out"
	// ChannelError is the process stderr log.
	ChannelError LogChannel = "error"
)

// LogEvent is delivered to log stream subscribers.
type LogEvent struct {
	Time    time.Time    `json:"time"`
	Type    LogEventType `json:"type"`
	Channel LogChannel   `json:"channel,omitempty"`
	Data    string       `json:"data"`
}
