package post

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"oddjobsgo/internal/models"
)

// Push events fan out on "post:<id>:events". Delivery is at-least-once from
// the consumer's point of view: the creating client also receives the echo
// of its own bid, so consumers dedup by bid ID.
const (
	EventBid            = "bid"
	EventBidDeleted     = "bid_deleted"
	EventWinnerSelected = "winner_selected"
)

// PushEvent is the payload published on a post's events channel.
type PushEvent struct {
	Event    string      `json:"event"`
	Bid      *models.Bid `json:"bid,omitempty"`
	BidID    string      `json:"bid_id,omitempty"`
	WinnerID string      `json:"winner_id,omitempty"`
}

// EventsChannel returns the pub/sub channel name for one post.
func EventsChannel(postID string) string {
	return "post:" + postID + ":events"
}

// publishEvent is best effort: the row is already committed, a lost push is
// healed by the next authoritative fetch.
func publishEvent(ctx context.Context, rdc *redis.Client, postID string, ev PushEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		zap.L().Warn("post.event_marshal", zap.Error(err))
		return
	}
	if err := rdc.Publish(ctx, EventsChannel(postID), payload).Err(); err != nil {
		zap.L().Warn("post.event_publish",
			zap.String("post_id", postID),
			zap.String("event", ev.Event),
			zap.Error(err))
	}
}
