package models

import "time"

// User is a snapshot of a marketplace participant. The user service owns the
// record; we only carry the fields that influence ranking and display.
type User struct {
	UserID        string  `json:"user_id"`
	Username      string  `json:"username"`
	EmailVerified bool    `json:"email_verified"`
	PhoneVerified bool    `json:"phone_verified"`
	AverageRating float64 `json:"average_rating"`
	TotalRating   int     `json:"total_rating"`
}

// FullyVerified reports whether both verification channels are confirmed.
func (u User) FullyVerified() bool {
	return u.EmailVerified && u.PhoneVerified
}

// Bid is one user's offer on a post. Bids are immutable after creation; the
// only legal mutation is deletion, and never of a winning bid.
type Bid struct {
	BidID     string    `json:"bid_id"`
	PostID    string    `json:"post_id"`
	Bidder    User      `json:"bidder"`
	Amount    float64   `json:"amount"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// PostDTO is the wire shape of a job post.
type PostDTO struct {
	ID          string   `json:"id"`
	OwnerID     string   `json:"owner_id"`
	Description string   `json:"description"`
	Media       []string `json:"media,omitempty"`
	MinBid      float64  `json:"min_bid"`
	MaxBid      *float64 `json:"max_bid,omitempty"`
	Status      string   `json:"status"      example:"open"`

	WinningBidID       string `json:"winning_bid_id,omitempty"`
	SelectedWinnerID   string `json:"selected_winner_id,omitempty"`
	ProviderConfirmed  bool   `json:"provider_confirmed"`
	WorkerConfirmed    bool   `json:"worker_confirmed"`
	ReviewedByProvider bool   `json:"reviewed_by_provider"`
	ReviewedByWorker   bool   `json:"reviewed_by_worker"`

	// Cached leading bid for post cards; refreshed by the synctop mirror.
	TopAmount float64 `json:"top_amount,omitempty"`
	TopBidder string  `json:"top_bidder,omitempty"`
}
