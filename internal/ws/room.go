package ws

import (
	"sync"

	"github.com/gorilla/websocket"
)

// room is the set of viewers watching one post's bid feed.
type room struct {
	mu      sync.RWMutex
	viewers map[*clientConn]struct{}
}

func newRoom() *room { return &room{viewers: map[*clientConn]struct{}{}} }

func (r *room) add(c *clientConn) {
	r.mu.Lock()
	r.viewers[c] = struct{}{}
	r.mu.Unlock()
}

func (r *room) remove(c *clientConn) {
	r.mu.Lock()
	delete(r.viewers, c)
	r.mu.Unlock()
	c.rawConn.Close()
}

// broadcast fans one bid event out to every viewer of the post.
func (r *room) broadcast(event []byte) {
	// Snapshot the viewer set, then do the I/O outside the lock.
	r.mu.RLock()
	viewers := make([]*clientConn, 0, len(r.viewers))
	for c := range r.viewers {
		viewers = append(viewers, c)
	}
	r.mu.RUnlock()

	var failed []*clientConn
	for _, c := range viewers {
		if err := c.write(websocket.TextMessage, event); err != nil {
			failed = append(failed, c)
		}
	}
	for _, c := range failed {
		r.remove(c)
	}
}
