// Package notify is the fire-and-forget notification sink. Events land on a
// Redis stream; the syncnotify tailer persists them for the notification
// fan-out workers. Correctness of the engine never depends on this path.
package notify

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const Stream = "notifications_stream"

const (
	KindBidPlaced      = "bid_placed"
	KindWinnerSelected = "winner_selected"
)

// Notification is one entry on the stream. UserID is the recipient.
type Notification struct {
	Kind   string
	PostID string
	UserID string
	Actor  string
	Amount float64
}

// Publish appends the notification to the stream. Errors are logged and
// swallowed; callers must not fail their request over a missed notification.
func Publish(ctx context.Context, rdc *redis.Client, n Notification) {
	err := rdc.XAdd(ctx, &redis.XAddArgs{
		Stream: Stream,
		Values: map[string]any{
			"kind":   n.Kind,
			"pid":    n.PostID,
			"uid":    n.UserID,
			"actor":  n.Actor,
			"amount": strconv.FormatFloat(n.Amount, 'f', -1, 64),
			"at":     strconv.FormatInt(time.Now().Unix(), 10),
		},
	}).Err()
	if err != nil {
		zap.L().Warn("notify.xadd",
			zap.String("kind", n.Kind),
			zap.String("post_id", n.PostID),
			zap.Error(err))
	}
}
