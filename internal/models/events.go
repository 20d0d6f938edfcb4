package models

// EventKind identifies a typed event delivered over the push channel or
// raised by the channel manager itself.
type EventKind string

const (
	// Server-originated entity events.
	EventEntityNew     EventKind = "entity:new"
	EventEntityUpdated EventKind = "entity:updated"
	EventEntityDeleted EventKind = "entity:deleted"

	// Room membership events.
	EventRoomJoined    EventKind = "room:joined"
	EventRoomJoinError EventKind = "room:join:error"

	// Connection lifecycle events raised by the channel manager.
	EventConnected    EventKind = "channel:connected"
	EventDisconnected EventKind = "channel:disconnected"
	EventDegraded     EventKind = "channel:degraded"
)

// DeleteNotice is the payload of an entity:deleted event. The entity itself
// is gone; only its identity is delivered.
type DeleteNotice struct {
	ID          string `json:"id"`
	TenantScope string `json:"tenantScope"`
}

// RoomError is the payload of a room:join:error event.
type RoomError struct {
	Room  string `json:"room"`
	Error string `json:"error"`
}

// Event is one item in the channel manager's mailbox. Exactly one of the
// payload fields is populated, depending on Kind.
type Event struct {
	Kind    EventKind
	Message *Message
	Delete  *DeleteNotice
	Room    string
	Err     string
}
