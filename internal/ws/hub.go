package ws

import (
	"sync"
)

// Hub keeps client sets per postID.
type Hub struct {
	rooms sync.Map // postID -> *room
}

func NewHub() *Hub { return &Hub{} }

// Broadcast is called by the per-post feed goroutine.
func (h *Hub) Broadcast(postID string, msg []byte) {
	if v, ok := h.rooms.Load(postID); ok {
		v.(*room).broadcast(msg)
	}
}

func (h *Hub) Join(postID string, c *clientConn) {
	r, _ := h.rooms.LoadOrStore(postID, newRoom())
	r.(*room).add(c)
}

func (h *Hub) Leave(postID string, c *clientConn) {
	if v, ok := h.rooms.Load(postID); ok {
		v.(*room).remove(c)
	}
}
