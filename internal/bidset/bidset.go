package bidset

import (
	"sync"

	"oddjobsgo/internal/bidrank"
	"oddjobsgo/internal/models"
)

// Reconciler owns the canonical bid collection for one post. Two paths feed
// it: bulk fetch results (ReplaceAll) and one-at-a-time push events
// (IngestPushed). The push channel is at-least-once and races the fetch
// path, so every merge is keyed on bid ID — whichever signal lands first is
// authoritative and the echo is dropped.
type Reconciler struct {
	mu     sync.Mutex
	postID string
	bids   []models.Bid
	seen   map[string]struct{}
}

func New(postID string) *Reconciler {
	return &Reconciler{
		postID: postID,
		seen:   make(map[string]struct{}),
	}
}

func (r *Reconciler) PostID() string { return r.postID }

// ReplaceAll discards the held collection in favour of bids. Called after
// any authoritative fetch so the local view cannot drift. Duplicate IDs in
// the input keep their first occurrence.
func (r *Reconciler) ReplaceAll(bids []models.Bid) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.bids = make([]models.Bid, 0, len(bids))
	r.seen = make(map[string]struct{}, len(bids))
	for _, b := range bids {
		if _, dup := r.seen[b.BidID]; dup {
			continue
		}
		r.seen[b.BidID] = struct{}{}
		r.bids = append(r.bids, b)
	}
}

// IngestPushed appends one pushed bid. Idempotent under duplicate delivery:
// a bid ID already present makes the call a no-op and returns false. Content
// equality is deliberately not consulted — two distinct bids of equal amount
// and time must both survive.
func (r *Reconciler) IngestPushed(b models.Bid) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.seen[b.BidID]; dup {
		return false
	}
	r.seen[b.BidID] = struct{}{}
	r.bids = append(r.bids, b)
	return true
}

// Remove drops a bid by ID, reporting whether it was present.
func (r *Reconciler) Remove(bidID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.seen[bidID]; !ok {
		return false
	}
	delete(r.seen, bidID)
	for i, b := range r.bids {
		if b.BidID == bidID {
			r.bids = append(r.bids[:i], r.bids[i+1:]...)
			break
		}
	}
	return true
}

// Ranked returns the live collection ordered under mode.
func (r *Reconciler) Ranked(mode bidrank.SortMode) []models.Bid {
	r.mu.Lock()
	defer r.mu.Unlock()
	return bidrank.Rank(r.bids, mode)
}

// CurrentTopBid recomputes the leading bid from the live collection. Never
// cached: both the bid set and the mode may change between calls.
func (r *Reconciler) CurrentTopBid(mode bidrank.SortMode) (models.Bid, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return bidrank.TopBid(r.bids, mode)
}

func (r *Reconciler) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.bids)
}

// Has reports whether a bid ID is in the live collection.
func (r *Reconciler) Has(bidID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.seen[bidID]
	return ok
}
