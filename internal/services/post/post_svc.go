package post

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"oddjobsgo/internal/bidrank"
	"oddjobsgo/internal/joberrors"
	"oddjobsgo/internal/joblife"
	"oddjobsgo/internal/models"
	"oddjobsgo/internal/notify"
	"oddjobsgo/internal/reviewgate"
)

type IPostService interface {
	CreatePost(ctx context.Context, ownerID, description string, media []string, minBid float64, maxBid *float64) (*models.PostDTO, error)
	GetPost(ctx context.Context, postID string) (*models.PostDTO, error)
	ListPosts(ctx context.Context, status string, limit, offset int) ([]models.PostDTO, error)
	DeletePost(ctx context.Context, postID, actorID string) error

	GetBids(ctx context.Context, postID string, mode bidrank.SortMode) ([]models.Bid, error)
	CreateBid(ctx context.Context, postID string, bidder models.User, amount float64, comment string) (*models.Bid, error)
	DeleteBid(ctx context.Context, postID, bidID, actorID string) error

	SelectWinner(ctx context.Context, postID, bidID, winnerUserID, actorID string) error
	SetBidRange(ctx context.Context, postID, actorID string, minBid float64, maxBid *float64) error
	SetStatus(ctx context.Context, postID, actorID string, open bool) error
	ConfirmCompletion(ctx context.Context, postID, actorID string) error
	SubmitReview(ctx context.Context, postID, actorID string, rating int, body string) (targetUserType string, err error)
	ReviewPrompt(ctx context.Context, postID, actorID string) (bool, error)
}

type postService struct {
	rdc *redis.Client
	db  *sql.DB
}

func NewPostService(rdc *redis.Client, db *sql.DB) IPostService {
	return &postService{rdc: rdc, db: db}
}

const selectPostQ = `SELECT id, owner_id, description, coalesce(media,'[]'),
                            min_bid, max_bid, status, winning_bid_id, selected_winner,
                            provider_confirmed, worker_confirmed,
                            reviewed_by_provider, reviewed_by_worker,
                            coalesce(top_amount,0), coalesce(top_bidder,'')
                       FROM posts WHERE id = $1`

const selectPostForUpdateQ = selectPostQ + ` FOR UPDATE`

const updatePostQ = `UPDATE posts
                        SET min_bid = $2, max_bid = $3, status = $4,
                            winning_bid_id = $5, selected_winner = $6,
                            provider_confirmed = $7, worker_confirmed = $8,
                            reviewed_by_provider = $9, reviewed_by_worker = $10
                      WHERE id = $1`

const selectBidsQ = `SELECT id, post_id, bidder_id, bidder_username,
                            bidder_email_verified, bidder_phone_verified,
                            bidder_avg_rating, bidder_total_rating,
                            amount, coalesce(comment,''), created_at
                       FROM bids WHERE post_id = $1`

type rowScanner interface {
	Scan(dest ...any) error
}

// loadJob scans one posts row into the lifecycle machine plus its DTO view.
func loadJob(row rowScanner) (*joblife.Job, *models.PostDTO, error) {
	var (
		dto       models.PostDTO
		media     []byte
		maxBid    sql.NullFloat64
		winBid    sql.NullString
		winner    sql.NullString
		provConf  bool
		workConf  bool
		provRev   bool
		workRev   bool
		topAmount float64
		topBidder string
	)
	err := row.Scan(&dto.ID, &dto.OwnerID, &dto.Description, &media,
		&dto.MinBid, &maxBid, &dto.Status, &winBid, &winner,
		&provConf, &workConf, &provRev, &workRev,
		&topAmount, &topBidder)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, joberrors.NotFoundf("post not found")
		}
		return nil, nil, err
	}
	if err := json.Unmarshal(media, &dto.Media); err != nil {
		zap.L().Warn("post.media_decode", zap.String("post_id", dto.ID), zap.Error(err))
	}

	var maxPtr *float64
	if maxBid.Valid {
		v := maxBid.Float64
		maxPtr = &v
	}
	var award *joblife.Award
	if winBid.Valid || winner.Valid {
		award = &joblife.Award{
			WinningBidID:       winBid.String,
			WinnerID:           winner.String,
			ProviderConfirmed:  provConf,
			WorkerConfirmed:    workConf,
			ReviewedByProvider: provRev,
			ReviewedByWorker:   workRev,
		}
	}
	job, err := joblife.Restore(dto.ID, dto.OwnerID, dto.MinBid, maxPtr, joblife.Status(dto.Status), award)
	if err != nil {
		return nil, nil, err
	}

	dto.MaxBid = maxPtr
	dto.WinningBidID = winBid.String
	dto.SelectedWinnerID = winner.String
	dto.ProviderConfirmed = provConf
	dto.WorkerConfirmed = workConf
	dto.ReviewedByProvider = provRev
	dto.ReviewedByWorker = workRev
	dto.TopAmount = topAmount
	dto.TopBidder = topBidder
	return job, &dto, nil
}

// saveJob writes the machine's state back; the row stays locked by the
// surrounding transaction.
func saveJob(ctx context.Context, tx *sql.Tx, job *joblife.Job) error {
	var (
		maxBid sql.NullFloat64
		winBid sql.NullString
		winner sql.NullString
		award  joblife.Award
	)
	if job.MaxBid != nil {
		maxBid = sql.NullFloat64{Float64: *job.MaxBid, Valid: true}
	}
	if a, ok := job.Award(); ok {
		award = a
		winBid = sql.NullString{String: a.WinningBidID, Valid: true}
		winner = sql.NullString{String: a.WinnerID, Valid: true}
	}
	_, err := tx.ExecContext(ctx, updatePostQ,
		job.PostID, job.MinBid, maxBid, string(job.Status()),
		winBid, winner,
		award.ProviderConfirmed, award.WorkerConfirmed,
		award.ReviewedByProvider, award.ReviewedByWorker)
	return err
}

func scanBid(rows rowScanner) (models.Bid, error) {
	var b models.Bid
	err := rows.Scan(&b.BidID, &b.PostID,
		&b.Bidder.UserID, &b.Bidder.Username,
		&b.Bidder.EmailVerified, &b.Bidder.PhoneVerified,
		&b.Bidder.AverageRating, &b.Bidder.TotalRating,
		&b.Amount, &b.Comment, &b.CreatedAt)
	return b, err
}

func (svc *postService) CreatePost(ctx context.Context, ownerID, description string, media []string, minBid float64, maxBid *float64) (*models.PostDTO, error) {
	if ownerID == "" {
		return nil, joberrors.Validationf("post owner is required")
	}
	job, err := joblife.New(uuid.NewString(), ownerID, minBid, maxBid)
	if err != nil {
		return nil, err
	}

	mediaJSON, _ := json.Marshal(media)
	const insQ = `INSERT INTO posts (id, owner_id, description, media,
	                                 min_bid, max_bid, status, created_at)
	              VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`
	var maxCol sql.NullFloat64
	if maxBid != nil {
		maxCol = sql.NullFloat64{Float64: *maxBid, Valid: true}
	}
	if _, err := svc.db.ExecContext(ctx, insQ,
		job.PostID, ownerID, description, mediaJSON,
		minBid, maxCol, string(job.Status()), time.Now().UTC()); err != nil {
		return nil, err
	}

	return &models.PostDTO{
		ID:          job.PostID,
		OwnerID:     ownerID,
		Description: description,
		Media:       media,
		MinBid:      minBid,
		MaxBid:      maxBid,
		Status:      string(job.Status()),
	}, nil
}

func (svc *postService) GetPost(ctx context.Context, postID string) (*models.PostDTO, error) {
	_, dto, err := loadJob(svc.db.QueryRowContext(ctx, selectPostQ, postID))
	return dto, err
}

func (svc *postService) ListPosts(ctx context.Context, status string, limit, offset int) ([]models.PostDTO, error) {
	if limit == 0 {
		limit = 10
	}
	var (
		rows *sql.Rows
		err  error
	)
	base := `SELECT id, owner_id, description, coalesce(media,'[]'),
                    min_bid, max_bid, status, winning_bid_id, selected_winner,
                    provider_confirmed, worker_confirmed,
                    reviewed_by_provider, reviewed_by_worker,
                    coalesce(top_amount,0), coalesce(top_bidder,'')
               FROM posts`
	switch status {
	case string(joblife.StatusOpen), string(joblife.StatusClosed), string(joblife.StatusWinnerSelected):
		base += " WHERE status = $1"
		rows, err = svc.db.QueryContext(ctx, base+" ORDER BY created_at DESC LIMIT $2 OFFSET $3",
			status, limit, offset)
	default:
		rows, err = svc.db.QueryContext(ctx, base+" ORDER BY created_at DESC LIMIT $1 OFFSET $2",
			limit, offset)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := make([]models.PostDTO, 0, limit)
	for rows.Next() {
		_, dto, err := loadJob(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *dto)
	}
	return list, rows.Err()
}

func (svc *postService) DeletePost(ctx context.Context, postID, actorID string) error {
	tx, err := svc.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	job, _, err := loadJob(tx.QueryRowContext(ctx, selectPostForUpdateQ, postID))
	if err != nil {
		return err
	}
	if err := job.AuthorizePostDeletion(actorID); err != nil {
		return err
	}

	// Bids are owned by the post and go with it.
	if _, err := tx.ExecContext(ctx, `DELETE FROM bids WHERE post_id = $1`, postID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM posts WHERE id = $1`, postID); err != nil {
		return err
	}
	return tx.Commit()
}

// GetBids returns the post's bids ranked under mode. Ranking happens in
// memory: the verification and ID tie-breaks are the comparator's contract,
// not the database's.
func (svc *postService) GetBids(ctx context.Context, postID string, mode bidrank.SortMode) ([]models.Bid, error) {
	if !mode.Valid() {
		return nil, joberrors.Validationf("unknown sort mode %q", mode)
	}
	rows, err := svc.db.QueryContext(ctx, selectBidsQ, postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bids := make([]models.Bid, 0, 16)
	for rows.Next() {
		b, err := scanBid(rows)
		if err != nil {
			return nil, err
		}
		bids = append(bids, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return bidrank.Rank(bids, mode), nil
}

func (svc *postService) CreateBid(ctx context.Context, postID string, bidder models.User, amount float64, comment string) (*models.Bid, error) {
	if bidder.UserID == "" {
		return nil, joberrors.Validationf("bidder is required")
	}

	tx, err := svc.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	job, _, err := loadJob(tx.QueryRowContext(ctx, selectPostForUpdateQ, postID))
	if err != nil {
		return nil, err
	}
	if err := job.ValidateBidAmount(amount); err != nil {
		return nil, err
	}

	bid := models.Bid{
		BidID:     uuid.NewString(),
		PostID:    postID,
		Bidder:    bidder,
		Amount:    amount,
		Comment:   comment,
		CreatedAt: time.Now().UTC(),
	}
	const insQ = `INSERT INTO bids (id, post_id, bidder_id, bidder_username,
	                                bidder_email_verified, bidder_phone_verified,
	                                bidder_avg_rating, bidder_total_rating,
	                                amount, comment, created_at)
	              VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`
	if _, err := tx.ExecContext(ctx, insQ,
		bid.BidID, bid.PostID,
		bidder.UserID, bidder.Username,
		bidder.EmailVerified, bidder.PhoneVerified,
		bidder.AverageRating, bidder.TotalRating,
		bid.Amount, bid.Comment, bid.CreatedAt); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	publishEvent(ctx, svc.rdc, postID, PushEvent{Event: EventBid, Bid: &bid})
	notify.Publish(ctx, svc.rdc, notify.Notification{
		Kind:   notify.KindBidPlaced,
		PostID: postID,
		UserID: job.OwnerID,
		Actor:  bidder.UserID,
		Amount: amount,
	})
	return &bid, nil
}

func (svc *postService) DeleteBid(ctx context.Context, postID, bidID, actorID string) error {
	tx, err := svc.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	job, _, err := loadJob(tx.QueryRowContext(ctx, selectPostForUpdateQ, postID))
	if err != nil {
		return err
	}

	var bidAuthorID string
	err = tx.QueryRowContext(ctx,
		`SELECT bidder_id FROM bids WHERE id = $1 AND post_id = $2`,
		bidID, postID).Scan(&bidAuthorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return joberrors.NotFoundf("bid not found")
		}
		return err
	}

	if err := job.AuthorizeBidDeletion(actorID, bidID, bidAuthorID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM bids WHERE id = $1`, bidID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	publishEvent(ctx, svc.rdc, postID, PushEvent{Event: EventBidDeleted, BidID: bidID})
	return nil
}

func (svc *postService) SelectWinner(ctx context.Context, postID, bidID, winnerUserID, actorID string) error {
	tx, err := svc.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	job, _, err := loadJob(tx.QueryRowContext(ctx, selectPostForUpdateQ, postID))
	if err != nil {
		return err
	}

	// The winning bid must exist in the post's current bid set.
	var bidderID string
	err = tx.QueryRowContext(ctx,
		`SELECT bidder_id FROM bids WHERE id = $1 AND post_id = $2`,
		bidID, postID).Scan(&bidderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return joberrors.NotFoundf("bid not found")
		}
		return err
	}
	if winnerUserID != "" && winnerUserID != bidderID {
		return joberrors.Validationf("winner %s does not match the author of bid %s", winnerUserID, bidID)
	}

	if err := job.SelectWinner(actorID, bidID, bidderID); err != nil {
		return err
	}
	if err := saveJob(ctx, tx, job); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	publishEvent(ctx, svc.rdc, postID, PushEvent{
		Event:    EventWinnerSelected,
		BidID:    bidID,
		WinnerID: bidderID,
	})
	notify.Publish(ctx, svc.rdc, notify.Notification{
		Kind:   notify.KindWinnerSelected,
		PostID: postID,
		UserID: bidderID,
		Actor:  actorID,
	})
	return nil
}

func (svc *postService) SetBidRange(ctx context.Context, postID, actorID string, minBid float64, maxBid *float64) error {
	return svc.mutateJob(ctx, postID, func(job *joblife.Job) error {
		return job.SetBidRange(actorID, minBid, maxBid)
	})
}

func (svc *postService) SetStatus(ctx context.Context, postID, actorID string, open bool) error {
	return svc.mutateJob(ctx, postID, func(job *joblife.Job) error {
		return job.SetOpen(actorID, open)
	})
}

func (svc *postService) ConfirmCompletion(ctx context.Context, postID, actorID string) error {
	return svc.mutateJob(ctx, postID, func(job *joblife.Job) error {
		_, err := job.ConfirmCompletion(actorID)
		return err
	})
}

func (svc *postService) SubmitReview(ctx context.Context, postID, actorID string, rating int, body string) (string, error) {
	if rating < 1 || rating > 5 {
		return "", joberrors.Validationf("rating must be between 1 and 5")
	}

	tx, err := svc.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	job, _, err := loadJob(tx.QueryRowContext(ctx, selectPostForUpdateQ, postID))
	if err != nil {
		return "", err
	}
	target, err := job.RecordReview(actorID)
	if err != nil {
		return "", err
	}
	award, _ := job.Award()
	targetUserID := award.WinnerID
	if target == joblife.TargetProvider {
		targetUserID = job.OwnerID
	}

	if err := saveJob(ctx, tx, job); err != nil {
		return "", err
	}
	const insQ = `INSERT INTO reviews (post_id, reviewer_id, target_user_id,
	                                   target_user_type, rating, body, created_at)
	              VALUES ($1,$2,$3,$4,$5,$6,$7)`
	if _, err := tx.ExecContext(ctx, insQ,
		postID, actorID, targetUserID, target, rating, body, time.Now().UTC()); err != nil {
		return "", err
	}

	// Fold the new rating into the reviewed user's denormalized snapshot on
	// their bid rows. Each row carries its own copy of the aggregate, so the
	// per-row formula keeps every copy equal.
	const updRatingQ = `UPDATE bids
	                       SET bidder_avg_rating = (bidder_avg_rating * bidder_total_rating + $2)
	                                               / (bidder_total_rating + 1),
	                           bidder_total_rating = bidder_total_rating + 1
	                     WHERE bidder_id = $1`
	if _, err := tx.ExecContext(ctx, updRatingQ, targetUserID, float64(rating)); err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return target, nil
}

func (svc *postService) ReviewPrompt(ctx context.Context, postID, actorID string) (bool, error) {
	job, _, err := loadJob(svc.db.QueryRowContext(ctx, selectPostQ, postID))
	if err != nil {
		return false, err
	}
	return reviewgate.ShouldPromptReview(job, actorID), nil
}

// mutateJob runs one lifecycle transition inside a row-locked transaction.
func (svc *postService) mutateJob(ctx context.Context, postID string, apply func(*joblife.Job) error) error {
	tx, err := svc.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	job, _, err := loadJob(tx.QueryRowContext(ctx, selectPostForUpdateQ, postID))
	if err != nil {
		return err
	}
	if err := apply(job); err != nil {
		return err
	}
	if err := saveJob(ctx, tx, job); err != nil {
		return err
	}
	return tx.Commit()
}
