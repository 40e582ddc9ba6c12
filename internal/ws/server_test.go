package ws

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"oddjobsgo/internal/bidrank"
	"oddjobsgo/internal/models"
	"oddjobsgo/internal/services/post"
)

type bidCaptureService struct {
	post.IPostService
	bidder models.User
	amount float64
}

func (s *bidCaptureService) CreateBid(_ context.Context, postID string, bidder models.User, amount float64, comment string) (*models.Bid, error) {
	s.bidder = bidder
	s.amount = amount
	return &models.Bid{BidID: "bid-1", PostID: postID, Bidder: bidder, Amount: amount, Comment: comment}, nil
}

func TestPostsBid_CarriesBidderSnapshot(t *testing.T) {
	svc := &bidCaptureService{}
	srv := NewWsServer(NewHub(), nil, svc, bidrank.SortLowest)
	cc := &ConnContext{PostID: "post1", UserID: "u1", Server: srv, mode: string(bidrank.SortLowest)}

	body := json.RawMessage(`{"amount":120,"comment":"can start monday",
		"username":"worker","email_verified":true,"phone_verified":true,"average_rating":4.5}`)
	res, err := srv.router.dispatch(context.Background(), cc,
		Envelope{Event: "posts/bid", Body: body})
	require.NoError(t, err)

	bid, ok := res.(*models.Bid)
	require.True(t, ok)
	require.Equal(t, "bid-1", bid.BidID)

	// Identity comes from the connection, the snapshot from the request.
	require.Equal(t, "u1", svc.bidder.UserID)
	require.Equal(t, "worker", svc.bidder.Username)
	require.True(t, svc.bidder.FullyVerified())
	require.Equal(t, 4.5, svc.bidder.AverageRating)
	require.Equal(t, 120.0, svc.amount)
}

func TestPostsSort_RejectsUnknownMode(t *testing.T) {
	srv := NewWsServer(NewHub(), nil, &bidCaptureService{}, bidrank.SortLowest)
	cc := &ConnContext{PostID: "post1", UserID: "u1", Server: srv, mode: string(bidrank.SortLowest)}

	_, err := srv.router.dispatch(context.Background(), cc,
		Envelope{Event: "posts/sort", Body: json.RawMessage(`{"mode":"price"}`)})
	require.Error(t, err)
	require.Equal(t, string(bidrank.SortLowest), cc.Mode(), "mode unchanged on rejection")
}
