package post

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/require"

	"oddjobsgo/internal/bidrank"
	"oddjobsgo/internal/joberrors"
	"oddjobsgo/internal/models"
)

var postCols = []string{
	"id", "owner_id", "description", "media",
	"min_bid", "max_bid", "status", "winning_bid_id", "selected_winner",
	"provider_confirmed", "worker_confirmed",
	"reviewed_by_provider", "reviewed_by_worker",
	"top_amount", "top_bidder",
}

var bidCols = []string{
	"id", "post_id", "bidder_id", "bidder_username",
	"bidder_email_verified", "bidder_phone_verified",
	"bidder_avg_rating", "bidder_total_rating",
	"amount", "comment", "created_at",
}

func newService(t *testing.T) (IPostService, sqlmock.Sqlmock) {
	t.Helper()
	db, dbMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	// Push/notify failures are swallowed by design, so an expectation-free
	// redis mock is enough for paths that are not about publishing.
	rdc, _ := redismock.NewClientMock()
	return NewPostService(rdc, db), dbMock
}

func openPostRow(minBid float64, maxBid any) *sqlmock.Rows {
	return sqlmock.NewRows(postCols).AddRow(
		"post1", "owner1", "fix my fence", []byte(`[]`),
		minBid, maxBid, "open", nil, nil,
		false, false, false, false,
		0.0, "")
}

func awardedPostRow() *sqlmock.Rows {
	return sqlmock.NewRows(postCols).AddRow(
		"post1", "owner1", "fix my fence", []byte(`[]`),
		50.0, 500.0, "winnerSelected", "bid-x", "worker1",
		true, false, false, false,
		0.0, "")
}

func TestCreateBid_BelowMinimumRejected(t *testing.T) {
	svc, dbMock := newService(t)

	dbMock.ExpectBegin()
	dbMock.ExpectQuery("SELECT .+ FROM posts WHERE id = .+ FOR UPDATE").
		WithArgs("post1").
		WillReturnRows(openPostRow(50, 500.0))
	dbMock.ExpectRollback()

	_, err := svc.CreateBid(context.Background(), "post1",
		models.User{UserID: "u1"}, 40, "")
	require.True(t, joberrors.IsValidation(err), "got %v", err)
	require.EqualError(t, err, "bid out of range: 50 to 500")
	require.NoError(t, dbMock.ExpectationsWereMet())
}

func TestCreateBid_OK(t *testing.T) {
	svc, dbMock := newService(t)

	dbMock.ExpectBegin()
	dbMock.ExpectQuery("SELECT .+ FROM posts WHERE id = .+ FOR UPDATE").
		WithArgs("post1").
		WillReturnRows(openPostRow(50, nil))
	dbMock.ExpectExec("INSERT INTO bids").
		WillReturnResult(sqlmock.NewResult(0, 1))
	dbMock.ExpectCommit()

	bid, err := svc.CreateBid(context.Background(), "post1",
		models.User{UserID: "u1", Username: "worker", EmailVerified: true},
		120, "can start monday")
	require.NoError(t, err)
	require.NotEmpty(t, bid.BidID)
	require.Equal(t, "post1", bid.PostID)
	require.Equal(t, 120.0, bid.Amount)
	require.Equal(t, "u1", bid.Bidder.UserID)
	require.NoError(t, dbMock.ExpectationsWereMet())
}

func TestCreateBid_PostNotFound(t *testing.T) {
	svc, dbMock := newService(t)

	dbMock.ExpectBegin()
	dbMock.ExpectQuery("SELECT .+ FROM posts WHERE id = .+ FOR UPDATE").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)
	dbMock.ExpectRollback()

	_, err := svc.CreateBid(context.Background(), "missing",
		models.User{UserID: "u1"}, 120, "")
	require.True(t, joberrors.IsNotFound(err), "got %v", err)
}

func TestCreateBid_ClosedPostRejected(t *testing.T) {
	svc, dbMock := newService(t)

	closed := sqlmock.NewRows(postCols).AddRow(
		"post1", "owner1", "fix my fence", []byte(`[]`),
		50.0, nil, "closed", nil, nil,
		false, false, false, false,
		0.0, "")

	dbMock.ExpectBegin()
	dbMock.ExpectQuery("SELECT .+ FROM posts WHERE id = .+ FOR UPDATE").
		WillReturnRows(closed)
	dbMock.ExpectRollback()

	_, err := svc.CreateBid(context.Background(), "post1",
		models.User{UserID: "u1"}, 120, "")
	require.True(t, joberrors.IsValidation(err), "got %v", err)
}

func TestSelectWinner_OK(t *testing.T) {
	svc, dbMock := newService(t)

	dbMock.ExpectBegin()
	dbMock.ExpectQuery("SELECT .+ FROM posts WHERE id = .+ FOR UPDATE").
		WithArgs("post1").
		WillReturnRows(openPostRow(50, nil))
	dbMock.ExpectQuery("SELECT bidder_id FROM bids WHERE id = .+ AND post_id = .+").
		WithArgs("bid-1", "post1").
		WillReturnRows(sqlmock.NewRows([]string{"bidder_id"}).AddRow("worker1"))
	dbMock.ExpectExec("UPDATE posts").
		WillReturnResult(sqlmock.NewResult(0, 1))
	dbMock.ExpectCommit()

	err := svc.SelectWinner(context.Background(), "post1", "bid-1", "worker1", "owner1")
	require.NoError(t, err)
	require.NoError(t, dbMock.ExpectationsWereMet())
}

func TestSelectWinner_AlreadySelectedConflicts(t *testing.T) {
	svc, dbMock := newService(t)

	dbMock.ExpectBegin()
	dbMock.ExpectQuery("SELECT .+ FROM posts WHERE id = .+ FOR UPDATE").
		WillReturnRows(awardedPostRow())
	dbMock.ExpectQuery("SELECT bidder_id FROM bids WHERE id = .+ AND post_id = .+").
		WillReturnRows(sqlmock.NewRows([]string{"bidder_id"}).AddRow("worker2"))
	dbMock.ExpectRollback()

	err := svc.SelectWinner(context.Background(), "post1", "bid-y", "", "owner1")
	require.True(t, joberrors.IsConflict(err), "got %v", err)
}

func TestSelectWinner_UnknownBid(t *testing.T) {
	svc, dbMock := newService(t)

	dbMock.ExpectBegin()
	dbMock.ExpectQuery("SELECT .+ FROM posts WHERE id = .+ FOR UPDATE").
		WillReturnRows(openPostRow(50, nil))
	dbMock.ExpectQuery("SELECT bidder_id FROM bids WHERE id = .+ AND post_id = .+").
		WillReturnError(sql.ErrNoRows)
	dbMock.ExpectRollback()

	err := svc.SelectWinner(context.Background(), "post1", "nope", "", "owner1")
	require.True(t, joberrors.IsNotFound(err), "got %v", err)
}

func TestDeleteBid_WinningBidForbidden(t *testing.T) {
	svc, dbMock := newService(t)

	dbMock.ExpectBegin()
	dbMock.ExpectQuery("SELECT .+ FROM posts WHERE id = .+ FOR UPDATE").
		WillReturnRows(awardedPostRow())
	dbMock.ExpectQuery("SELECT bidder_id FROM bids WHERE id = .+ AND post_id = .+").
		WithArgs("bid-x", "post1").
		WillReturnRows(sqlmock.NewRows([]string{"bidder_id"}).AddRow("worker1"))
	dbMock.ExpectRollback()

	err := svc.DeleteBid(context.Background(), "post1", "bid-x", "owner1")
	require.True(t, joberrors.IsConflict(err), "got %v", err)
}

func TestDeleteBid_ByAuthor(t *testing.T) {
	svc, dbMock := newService(t)

	dbMock.ExpectBegin()
	dbMock.ExpectQuery("SELECT .+ FROM posts WHERE id = .+ FOR UPDATE").
		WillReturnRows(openPostRow(50, nil))
	dbMock.ExpectQuery("SELECT bidder_id FROM bids WHERE id = .+ AND post_id = .+").
		WillReturnRows(sqlmock.NewRows([]string{"bidder_id"}).AddRow("u1"))
	dbMock.ExpectExec("DELETE FROM bids WHERE id = .+").
		WithArgs("bid-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	dbMock.ExpectCommit()

	require.NoError(t, svc.DeleteBid(context.Background(), "post1", "bid-1", "u1"))
	require.NoError(t, dbMock.ExpectationsWereMet())
}

func TestConfirmCompletion_WrongActor(t *testing.T) {
	svc, dbMock := newService(t)

	dbMock.ExpectBegin()
	dbMock.ExpectQuery("SELECT .+ FROM posts WHERE id = .+ FOR UPDATE").
		WillReturnRows(awardedPostRow())
	dbMock.ExpectRollback()

	err := svc.ConfirmCompletion(context.Background(), "post1", "stranger")
	require.True(t, joberrors.IsAuthorization(err), "got %v", err)
}

func TestSubmitReview_RatingBounds(t *testing.T) {
	svc, _ := newService(t)

	_, err := svc.SubmitReview(context.Background(), "post1", "owner1", 0, "")
	require.True(t, joberrors.IsValidation(err))
	_, err = svc.SubmitReview(context.Background(), "post1", "owner1", 6, "")
	require.True(t, joberrors.IsValidation(err))
}

func TestSubmitReview_ProviderTargetsWorker(t *testing.T) {
	svc, dbMock := newService(t)

	dbMock.ExpectBegin()
	dbMock.ExpectQuery("SELECT .+ FROM posts WHERE id = .+ FOR UPDATE").
		WillReturnRows(awardedPostRow()) // provider confirmed, not yet reviewed
	dbMock.ExpectExec("UPDATE posts").
		WillReturnResult(sqlmock.NewResult(0, 1))
	dbMock.ExpectExec("INSERT INTO reviews").
		WillReturnResult(sqlmock.NewResult(0, 1))
	dbMock.ExpectExec("UPDATE bids").
		WithArgs("worker1", 5.0).
		WillReturnResult(sqlmock.NewResult(0, 2))
	dbMock.ExpectCommit()

	target, err := svc.SubmitReview(context.Background(), "post1", "owner1", 5, "great work")
	require.NoError(t, err)
	require.Equal(t, "worker", target)
	require.NoError(t, dbMock.ExpectationsWereMet())
}

func TestSubmitReview_UpdatesWorkerRatingAggregate(t *testing.T) {
	svc, dbMock := newService(t)

	dbMock.ExpectBegin()
	dbMock.ExpectQuery("SELECT .+ FROM posts WHERE id = .+ FOR UPDATE").
		WillReturnRows(awardedPostRow())
	dbMock.ExpectExec("UPDATE posts").
		WillReturnResult(sqlmock.NewResult(0, 1))
	dbMock.ExpectExec("INSERT INTO reviews").
		WillReturnResult(sqlmock.NewResult(0, 1))
	// The reviewed worker's snapshot rows absorb the rating in the same tx.
	dbMock.ExpectExec(`(?s)UPDATE bids.+bidder_total_rating = bidder_total_rating \+ 1.+WHERE bidder_id = .+`).
		WithArgs("worker1", 3.0).
		WillReturnResult(sqlmock.NewResult(0, 4))
	dbMock.ExpectCommit()

	_, err := svc.SubmitReview(context.Background(), "post1", "owner1", 3, "ok")
	require.NoError(t, err)
	require.NoError(t, dbMock.ExpectationsWereMet())
}

func TestGetPost_CorruptMediaTolerated(t *testing.T) {
	svc, dbMock := newService(t)

	row := sqlmock.NewRows(postCols).AddRow(
		"post1", "owner1", "fix my fence", []byte(`{not json`),
		50.0, nil, "open", nil, nil,
		false, false, false, false,
		0.0, "")
	dbMock.ExpectQuery("SELECT .+ FROM posts WHERE id = .+").
		WithArgs("post1").
		WillReturnRows(row)

	dto, err := svc.GetPost(context.Background(), "post1")
	require.NoError(t, err, "a corrupt media column must not hide the post")
	require.Empty(t, dto.Media)
}

func TestReviewPrompt(t *testing.T) {
	svc, dbMock := newService(t)

	dbMock.ExpectQuery("SELECT .+ FROM posts WHERE id = .+").
		WithArgs("post1").
		WillReturnRows(awardedPostRow())

	prompt, err := svc.ReviewPrompt(context.Background(), "post1", "owner1")
	require.NoError(t, err)
	require.True(t, prompt, "provider confirmed and not yet reviewed")

	// The worker has not confirmed, so the worker is not prompted.
	dbMock.ExpectQuery("SELECT .+ FROM posts WHERE id = .+").
		WillReturnRows(awardedPostRow())
	prompt, err = svc.ReviewPrompt(context.Background(), "post1", "worker1")
	require.NoError(t, err)
	require.False(t, prompt)
}

func TestGetBids_RanksInMemory(t *testing.T) {
	svc, dbMock := newService(t)

	now := time.Now().UTC()
	rows := sqlmock.NewRows(bidCols).
		AddRow("b1", "post1", "u1", "alice", false, false, 0.0, 0, 300.0, "", now).
		AddRow("b2", "post1", "u2", "bob", true, true, 4.0, 8, 100.0, "", now.Add(time.Second)).
		AddRow("b3", "post1", "u3", "carol", false, false, 2.0, 3, 200.0, "", now.Add(2*time.Second))

	dbMock.ExpectQuery("SELECT .+ FROM bids WHERE post_id = .+").
		WithArgs("post1").
		WillReturnRows(rows)

	bids, err := svc.GetBids(context.Background(), "post1", bidrank.SortLowest)
	require.NoError(t, err)
	require.Len(t, bids, 3)
	require.Equal(t, "b2", bids[0].BidID)
	require.Equal(t, "b3", bids[1].BidID)
	require.Equal(t, "b1", bids[2].BidID)
}

func TestGetBids_UnknownMode(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.GetBids(context.Background(), "post1", bidrank.SortMode("price"))
	require.True(t, joberrors.IsValidation(err))
}
