package ws

import (
	"sync"
)

// Handle is one live connection registered in a room.
type Handle interface {
	ID() string
	Send(payload []byte) error
	Close() error
}

// Hub maintains active topic rooms. Rooms that lose their last handle are
// deleted.
type Hub struct {
	rooms map[int]map[Handle]struct{}
	mu    sync.RWMutex
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{rooms: make(map[int]map[Handle]struct{})}
}

// Join registers a handle in a topic room.
func (h *Hub) Join(topicID int, handle Handle) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[topicID]
	if !ok {
		room = make(map[Handle]struct{})
		h.rooms[topicID] = room
	}
	room[handle] = struct{}{}
}

// Leave removes a handle from a topic room. Leaving twice is a no-op.
func (h *Hub) Leave(topicID int, handle Handle) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if room, ok := h.rooms[topicID]; ok {
		delete(room, handle)
		if len(room) == 0 {
			delete(h.rooms, topicID)
		}
	}
}

// Snapshot returns a copy of the handles currently in a room, in no
// particular order.
func (h *Hub) Snapshot(topicID int) []Handle {
	h.mu.RLock()
	defer h.mu.RUnlock()
	room := h.rooms[topicID]
	handles := make([]Handle, 0, len(room))
	for handle := range room {
		handles = append(handles, handle)
	}
	return handles
}

// RoomSize reports how many handles are in a room.
func (h *Hub) RoomSize(topicID int) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[topicID])
}

// Rooms reports how many rooms currently exist.
func (h *Hub) Rooms() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

// CloseAll closes every registered handle. Connection loops observe the
// closed socket and leave their rooms on their own.
func (h *Hub) CloseAll() int {
	h.mu.RLock()
	var handles []Handle
	for _, room := range h.rooms {
		for handle := range room {
			handles = append(handles, handle)
		}
	}
	h.mu.RUnlock()

	for _, handle := range handles {
		_ = handle.Close()
	}
	return len(handles)
}
