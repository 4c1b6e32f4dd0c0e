package models

// Inbound command types.
const (
	CommandNewMessage  = "new_message"
	CommandReact       = "react"
	CommandEditMessage = "edit_message"
)

// Outbound event types.
const (
	EventMessage  = "message"
	EventReaction = "reaction"
	EventEdit     = "edit"
)

// RoomEvent is broadcasted through websockets to every member of a topic room.
type RoomEvent struct {
	Type    string   `json:"type"`
	Message *Message `json:"message"`
}
