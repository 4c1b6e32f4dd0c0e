package ws

import "time"

// ConnInfo identifies a websocket connection in logs and lifecycle events.
type ConnInfo struct {
	ConnID      string
	TopicID     int
	UserID      int
	Username    string
	DeviceID    string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}
