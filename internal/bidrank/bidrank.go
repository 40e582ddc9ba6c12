package bidrank

import (
	"sort"

	"oddjobsgo/internal/models"
)

// SortMode selects the primary ranking key for a post's bid list.
type SortMode string

const (
	// SortLowest ranks by amount ascending — the default for gig posts,
	// where the cheapest offer leads the card.
	SortLowest SortMode = "lowest"
	// SortHighest ranks by amount descending.
	SortHighest SortMode = "highest"
	// SortRating ranks by the bidder's average rating descending. A bidder
	// with no ratings counts as 0.
	SortRating SortMode = "rating"
)

// Valid reports whether m is one of the three known modes.
func (m SortMode) Valid() bool {
	switch m {
	case SortLowest, SortHighest, SortRating:
		return true
	}
	return false
}

// Rank returns a new slice with bids ordered under mode. The order is total:
// amount (or rating) first, then full verification, then creation time
// ascending, then bid ID ascending. The input is never mutated and equal-key
// runs keep their relative input order before the ID tie-break kicks in.
func Rank(bids []models.Bid, mode SortMode) []models.Bid {
	out := append([]models.Bid(nil), bids...)
	sort.SliceStable(out, func(i, j int) bool {
		return less(out[i], out[j], mode)
	})
	return out
}

// TopBid returns the head of Rank and false when the set is empty.
func TopBid(bids []models.Bid, mode SortMode) (models.Bid, bool) {
	if len(bids) == 0 {
		return models.Bid{}, false
	}
	top := bids[0]
	for _, b := range bids[1:] {
		if less(b, top, mode) {
			top = b
		}
	}
	return top, true
}

func less(a, b models.Bid, mode SortMode) bool {
	if c := primary(a, b, mode); c != 0 {
		return c < 0
	}
	av, bv := a.Bidder.FullyVerified(), b.Bidder.FullyVerified()
	if av != bv {
		return av
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.BidID < b.BidID
}

func primary(a, b models.Bid, mode SortMode) int {
	switch mode {
	case SortHighest:
		return cmpFloat(b.Amount, a.Amount)
	case SortRating:
		return cmpFloat(b.Bidder.AverageRating, a.Bidder.AverageRating)
	default: // SortLowest
		return cmpFloat(a.Amount, b.Amount)
	}
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
