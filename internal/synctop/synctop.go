package synctop

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"
)

const syncInterval = 10 * time.Second

// Every 10 s, mirror each open post's leading bid (lowest amount; fully
// verified bidder, then earliest, then ID on ties, same order the in-memory
// ranking uses) into cached columns on posts. Post-card listings read the
// cache; live detail views rank in memory and never consult it.
func Run(ctx context.Context, db *sql.DB) {
	tk := time.NewTicker(syncInterval)
	go func() {
		defer tk.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-tk.C:
				syncOnce(ctx, db)
			}
		}
	}()
}

func syncOnce(ctx context.Context, db *sql.DB) {
	const mirror = `
	UPDATE posts p
	   SET top_amount = lb.amount,
	       top_bidder = lb.bidder_username
	  FROM (
	       SELECT DISTINCT ON (post_id) post_id, amount, bidder_username
	         FROM bids
	        ORDER BY post_id, amount ASC, (bidder_email_verified AND bidder_phone_verified) DESC, created_at ASC, id ASC
	       ) lb
	 WHERE lb.post_id = p.id
	   AND p.status = 'open'
	   AND (p.top_amount IS DISTINCT FROM lb.amount
	        OR p.top_bidder IS DISTINCT FROM lb.bidder_username)`

	if _, err := db.ExecContext(ctx, mirror); err != nil {
		zap.L().Error("synctop.mirror", zap.Error(err))
	}
}
