package ws

import (
	"encoding/json"

	"oddjobsgo/internal/models"
)

// Envelope wraps every WS frame.
type Envelope struct {
	Event string          `json:"event"`          // e.g. "posts/bid"
	Body  json.RawMessage `json:"body,omitempty"` // arbitrary JSON object
}

// ──────────────────────────── Request / Response DTOs ─────────────────────────

// BidRequest is the body for "posts/bid". It carries the same bidder
// snapshot the HTTP path does, so ws-placed bids compete in the
// verification and rating tie-breaks on equal footing.
type BidRequest struct {
	Username      string  `json:"username,omitempty"`
	EmailVerified bool    `json:"email_verified,omitempty"`
	PhoneVerified bool    `json:"phone_verified,omitempty"`
	AverageRating float64 `json:"average_rating,omitempty"`
	Amount        float64 `json:"amount"  validate:"gt=0"`
	Comment       string  `json:"comment,omitempty"`
}

// SortRequest is the body for "posts/sort": the client picks the mode its
// ranked view uses from now on.
type SortRequest struct {
	Mode string `json:"mode"`
}

// SnapshotBody carries a full ranked view of one post's bid set.
type SnapshotBody struct {
	PostID string       `json:"post_id"`
	Mode   string       `json:"mode"`
	Bids   []models.Bid `json:"bids"`
	TopBid *models.Bid  `json:"top_bid,omitempty"`
}

// Empty ACK body (useful for many handlers).
type AckBody struct{}

// ErrorBody is returned for failures.
type ErrorBody struct {
	Error string `json:"error"`
}
