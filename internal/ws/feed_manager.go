package ws

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"oddjobsgo/internal/bidrank"
	"oddjobsgo/internal/bidset"
	"oddjobsgo/internal/models"
	"oddjobsgo/internal/services/post"
)

// feedManager guarantees that we have **exactly one** live feed per
// "post:<id>:events" channel ― no matter how many websocket clients join the
// same post room. A feed owns the post's bid reconciler and the single Redis
// subscription driving it; one goroutine applies events strictly in arrival
// order, so the duplicate check always sees every prior event.
type feedManager struct {
	rdb *redis.Client
	hub *Hub
	svc post.IPostService

	mu    sync.Mutex
	feeds map[string]*feedEntry // postID ➜ feed data
}

type feedEntry struct {
	refCnt int
	cancel context.CancelFunc
	rec    *bidset.Reconciler
}

func newFeedManager(rdb *redis.Client, hub *Hub, svc post.IPostService) *feedManager {
	return &feedManager{
		rdb:   rdb,
		hub:   hub,
		svc:   svc,
		feeds: make(map[string]*feedEntry),
	}
}

// Subscribe ensures a live feed for the post; subsequent calls for the same
// post only increment the ref-counter.
func (fm *feedManager) Subscribe(postID string) {
	fm.mu.Lock()
	if e, ok := fm.feeds[postID]; ok {
		e.refCnt++
		fm.mu.Unlock()
		return
	}

	// First watcher → create Redis SUB, reconciler and apply loop.
	ctx, cancel := context.WithCancel(context.Background())
	ps := fm.rdb.Subscribe(ctx, post.EventsChannel(postID))
	rec := bidset.New(postID)

	fm.feeds[postID] = &feedEntry{refCnt: 1, cancel: cancel, rec: rec}
	fm.mu.Unlock()

	go fm.run(ctx, postID, ps, rec)
}

// Unsubscribe decrements the ref-counter and tears the feed down when the
// last websocket client leaves the room.
func (fm *feedManager) Unsubscribe(postID string) {
	fm.mu.Lock()
	e, ok := fm.feeds[postID]
	if !ok {
		fm.mu.Unlock()
		return
	}
	e.refCnt--
	if e.refCnt > 0 {
		fm.mu.Unlock()
		return
	}
	delete(fm.feeds, postID)
	fm.mu.Unlock()

	// Outside the lock → stop the apply goroutine.
	e.cancel()
}

// Snapshot returns the live ranked view; ok is false when no feed is up for
// the post (caller falls back to a service fetch).
func (fm *feedManager) Snapshot(postID string, mode bidrank.SortMode) ([]models.Bid, bool) {
	fm.mu.Lock()
	e, ok := fm.feeds[postID]
	fm.mu.Unlock()
	if !ok {
		return nil, false
	}
	return e.rec.Ranked(mode), true
}

func (fm *feedManager) run(ctx context.Context, postID string, ps *redis.PubSub, rec *bidset.Reconciler) {
	defer ps.Close()

	// Seed after subscribing: events that race the fetch sit buffered in the
	// pub/sub channel and are deduped by bid ID on ingest.
	if bids, err := fm.svc.GetBids(ctx, postID, bidrank.SortLowest); err != nil {
		zap.L().Warn("ws.feed_seed", zap.String("post_id", postID), zap.Error(err))
	} else {
		rec.ReplaceAll(bids)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-ps.Channel():
			if !ok { // Redis connection closed.
				return
			}
			fm.apply(postID, rec, m.Payload)
		}
	}
}

func (fm *feedManager) apply(postID string, rec *bidset.Reconciler, payload string) {
	var ev post.PushEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		zap.L().Warn("ws.feed_event_decode", zap.Error(err))
		return
	}

	switch ev.Event {
	case post.EventBid:
		if ev.Bid == nil {
			return
		}
		if !rec.IngestPushed(*ev.Bid) {
			return // duplicate delivery, already applied and announced
		}
	case post.EventBidDeleted:
		rec.Remove(ev.BidID)
	}

	wrapped, err := wrapPushEvent(payload, topBids(rec))
	if err != nil {
		zap.L().Warn("ws.wrap_event_failed", zap.Error(err))
		wrapped = []byte(payload) // Fallback: forward as-is.
	}
	fm.hub.Broadcast(postID, wrapped)
}

// topBids recomputes the leading bid under every mode so clients never hold
// a stale head regardless of their chosen sort.
func topBids(rec *bidset.Reconciler) map[string]any {
	out := make(map[string]any, 3)
	for _, mode := range []bidrank.SortMode{bidrank.SortLowest, bidrank.SortHighest, bidrank.SortRating} {
		if top, ok := rec.CurrentTopBid(mode); ok {
			out[string(mode)] = top
		}
	}
	return out
}

// ─────────────────────────────── helpers ─────────────────────────────────────

// wrapPushEvent turns
//
//	{"event":"bid","bid":{…}}
//
// into
//
//	{"event":"posts/bid","body":{"bid":{…},"top_bids":{…}}}
func wrapPushEvent(payload string, tops map[string]any) ([]byte, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, err
	}

	evt, _ := raw["event"].(string)
	if evt == "" {
		evt = "unknown"
	}
	delete(raw, "event") // Avoid duplication inside "body".
	raw["top_bids"] = tops

	env := map[string]interface{}{
		"event": "posts/" + evt,
		"body":  raw,
	}
	return json.Marshal(env)
}
