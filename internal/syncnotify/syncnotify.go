package syncnotify

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"oddjobsgo/internal/notify"
)

// Run tails the notification stream and persists every entry so the fan-out
// workers have a durable queue. Delivery to end users is out of scope here.
func Run(ctx context.Context, rdc *redis.Client, db *sql.DB) {
	go func() {
		lastID := "0-0"
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			// block up to 2 s for new entries
			res, err := rdc.XRead(ctx, &redis.XReadArgs{
				Streams: []string{notify.Stream, lastID},
				Count:   100,
				Block:   2000 * time.Millisecond,
			}).Result()
			if err != nil && err != redis.Nil {
				zap.L().Warn("syncnotify.xread", zap.Error(err))
				time.Sleep(time.Second)
				continue
			}
			if len(res) == 0 {
				continue
			}
			entries := res[0].Messages
			if err := persist(ctx, db, entries); err != nil {
				zap.L().Warn("syncnotify.persist", zap.Error(err))
			}
			lastID = entries[len(entries)-1].ID
		}
	}()
}

func persist(ctx context.Context, db *sql.DB, msgs []redis.XMessage) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	const ins = `INSERT INTO notifications (stream_id, kind, post_id, user_id, actor_id, amount, created_at)
	             VALUES ($1, $2, $3, $4, $5, $6, to_timestamp($7))
	             ON CONFLICT DO NOTHING`
	for _, m := range msgs {
		kind, _ := m.Values["kind"].(string)
		pid, _ := m.Values["pid"].(string)
		uid, _ := m.Values["uid"].(string)
		actor, _ := m.Values["actor"].(string)
		amt, _ := m.Values["amount"].(string)
		at, _ := m.Values["at"].(string)

		amount, _ := strconv.ParseFloat(amt, 64)
		ts, _ := strconv.ParseInt(at, 10, 64)
		if _, err := tx.ExecContext(ctx, ins, m.ID, kind, pid, uid, actor, amount, ts); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}
