package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"oddjobsgo/internal/bidrank"
	"oddjobsgo/internal/joberrors"
	"oddjobsgo/internal/models"
	"oddjobsgo/internal/services/post"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 12 * time.Second
	pingPeriod = 3 * time.Second // must be < pongWait
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true }, // dev-only
}

type WsServer struct {
	hub         *Hub
	feeds       *feedManager
	router      *Router
	postSvc     post.IPostService
	defaultMode bidrank.SortMode
}

func NewWsServer(h *Hub, rdc *redis.Client, postSvc post.IPostService, defaultMode bidrank.SortMode) *WsServer {
	if !defaultMode.Valid() {
		defaultMode = bidrank.SortLowest
	}
	srv := &WsServer{
		hub:         h,
		feeds:       newFeedManager(rdc, h, postSvc),
		router:      NewRouter(),
		postSvc:     postSvc,
		defaultMode: defaultMode,
	}
	srv.registerHandlers() // ← all WS endpoints configured here
	return srv
}

// ---------------------------------------------------------------------------
//  Public: Gin entry-point
// ---------------------------------------------------------------------------

func (s *WsServer) Handle(ginCtx *gin.Context) {
	postID := ginCtx.Query("post_id")
	userID := ginCtx.Query("user_id")
	if postID == "" || userID == "" {
		ginCtx.JSON(http.StatusBadRequest, gin.H{"error": "post_id and user_id are required"})
		return
	}

	rawConn, err := upgrader.Upgrade(ginCtx.Writer, ginCtx.Request, nil)
	if err != nil {
		zap.L().Warn("ws.accept", zap.Error(err))
		return
	}
	rawConn.SetReadLimit(512)
	_ = rawConn.SetReadDeadline(time.Now().Add(pongWait))
	rawConn.SetPongHandler(func(string) error {
		return rawConn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// ─────────────────── Client joined ────────────────────────
	wsConn := &clientConn{rawConn: rawConn}
	s.hub.Join(postID, wsConn)
	s.feeds.Subscribe(postID) // may be a no-op (already live)

	cc := &ConnContext{PostID: postID, UserID: userID, Server: s, mode: string(s.defaultMode)}

	// Initial ranked snapshot.
	if err := s.pushSnapshot(ginCtx.Request.Context(), cc, wsConn); err != nil &&
		!joberrors.IsNotFound(err) {
		zap.L().Warn("ws.snapshot", zap.Error(err))
	}

	go s.reader(cc, wsConn)
	go s.pinger(wsConn)
}

// ---------------------------------------------------------------------------
//  Private helpers
// ---------------------------------------------------------------------------

func (s *WsServer) registerHandlers() {
	// 🔹 posts/bid ------------------------------------------------------------
	Register(
		s.router,
		"posts/bid",
		func(ctx context.Context, cc *ConnContext, req BidRequest) (*models.Bid, error) {
			bidder := models.User{
				UserID:        cc.UserID,
				Username:      req.Username,
				EmailVerified: req.EmailVerified,
				PhoneVerified: req.PhoneVerified,
				AverageRating: req.AverageRating,
			}
			// The push echo of this create races the response below; the
			// per-post reconciler drops whichever arrives second.
			return s.postSvc.CreateBid(ctx, cc.PostID, bidder, req.Amount, req.Comment)
		},
	)

	// 🔹 posts/sort -----------------------------------------------------------
	Register(
		s.router,
		"posts/sort",
		func(ctx context.Context, cc *ConnContext, req SortRequest) (SnapshotBody, error) {
			mode := bidrank.SortMode(req.Mode)
			if !mode.Valid() {
				return SnapshotBody{}, joberrors.Validationf("unknown sort mode %q", req.Mode)
			}
			cc.setMode(req.Mode)
			return s.snapshot(ctx, cc.PostID, mode)
		},
	)
}

// snapshot prefers the live feed and falls back to an authoritative fetch.
func (s *WsServer) snapshot(ctx context.Context, postID string, mode bidrank.SortMode) (SnapshotBody, error) {
	bids, live := s.feeds.Snapshot(postID, mode)
	if !live {
		var err error
		bids, err = s.postSvc.GetBids(ctx, postID, mode)
		if err != nil {
			return SnapshotBody{}, err
		}
	}
	body := SnapshotBody{PostID: postID, Mode: string(mode), Bids: bids}
	if len(bids) > 0 {
		body.TopBid = &bids[0]
	}
	return body, nil
}

func (s *WsServer) pushSnapshot(ctx context.Context, cc *ConnContext, conn *clientConn) error {
	ctx, cancel := context.WithTimeout(ctx, 4*time.Second)
	defer cancel()

	body, err := s.snapshot(ctx, cc.PostID, bidrank.SortMode(cc.Mode()))
	if err != nil {
		return err
	}
	return conn.writeJSON(gin.H{
		"event": "posts/snapshot",
		"body":  body,
	})
}

func (s *WsServer) reader(cc *ConnContext, conn *clientConn) {
	defer func() {
		s.hub.Leave(cc.PostID, conn)
		s.feeds.Unsubscribe(cc.PostID)
	}()

	for {
		var env Envelope
		if err := conn.rawConn.ReadJSON(&env); err != nil {
			return // client closed or errored
		}

		ctx, cancel := context.WithTimeout(context.Background(), 1900*time.Millisecond)
		res, err := s.router.dispatch(ctx, cc, env)
		cancel()

		// ---- error -> {"event":"error", "body":{...}} ---------------
		if err != nil {
			_ = conn.writeJSON(map[string]any{
				"event": "error",
				"body":  ErrorBody{Error: err.Error()},
			})
			continue
		}

		// ---- success -> {"event":"<evt>-ack", "body":{...}} --------
		reply := map[string]any{"event": env.Event + "-ack"}
		if res != nil {
			reply["body"] = res
		}
		_ = conn.writeJSON(reply)
	}
}

func (s *WsServer) pinger(conn *clientConn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for range ticker.C {
		if err := conn.write(websocket.PingMessage, nil); err != nil {
			conn.rawConn.Close()
			return
		}
	}
}
