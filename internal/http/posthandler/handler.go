package posthandler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"oddjobsgo/internal/bidrank"
	"oddjobsgo/internal/joberrors"
	"oddjobsgo/internal/models"
	"oddjobsgo/internal/services/post"
)

type Handler struct {
	svc         post.IPostService
	defaultSort bidrank.SortMode
}

func New(svc post.IPostService, defaultSort bidrank.SortMode) *Handler {
	if !defaultSort.Valid() {
		defaultSort = bidrank.SortLowest
	}
	return &Handler{svc: svc, defaultSort: defaultSort}
}

func (h *Handler) Register(r gin.IRoutes) {
	r.GET("/posts", h.list)
	r.POST("/posts", h.create)
	r.GET("/posts/:id", h.info)
	r.DELETE("/posts/:id", h.deletePost)

	r.GET("/posts/:id/bids", h.bids)
	r.POST("/posts/:id/bids", h.bid)
	r.DELETE("/posts/:id/bids/:bidId", h.deleteBid)

	r.POST("/posts/:id/winner", h.selectWinner)
	r.PUT("/posts/:id/bid-range", h.bidRange)
	r.POST("/posts/:id/status", h.setStatus)
	r.POST("/posts/:id/confirm", h.confirm)
	r.POST("/posts/:id/reviews", h.review)
	r.GET("/posts/:id/review-prompt", h.reviewPrompt)
}

// statusFromErr maps the engine's error kinds onto HTTP statuses.
func statusFromErr(err error) int {
	switch {
	case joberrors.IsValidation(err):
		return http.StatusBadRequest
	case joberrors.IsAuthorization(err):
		return http.StatusForbidden
	case joberrors.IsNotFound(err):
		return http.StatusNotFound
	case joberrors.IsConflict(err):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func abortWith(ginCtx *gin.Context, err error) {
	ginCtx.JSON(statusFromErr(err), ErrorResponse{Error: err.Error()})
}

// @Summary		Get post details
// @Description	Returns full information about a single job post.
// @Tags			Posts
// @Param			id	path		string	true	"Post ID"	default(post123)
// @Success		200	{object}	models.PostDTO
// @Failure		404	{object}	ErrorResponse
// @Router			/posts/{id} [get]
func (h *Handler) info(ginCtx *gin.Context) {
	dto, err := h.svc.GetPost(ginCtx, ginCtx.Param("id"))
	if err != nil {
		abortWith(ginCtx, err)
		return
	}
	ginCtx.JSON(http.StatusOK, dto)
}

// @Summary		List posts
// @Description	Retrieves a paginated list of job posts, optionally filtered by status.
// @Tags			Posts
// @Param			status	query		string	false	"Status filter"			Enums(open,closed,winnerSelected)
// @Param			limit	query		int		false	"Max results (0-100)"	minimum(0)	maximum(100)	default(10)
// @Param			offset	query		int		false	"Offset for pagination"	minimum(0)	default(0)
// @Success		200		{array}		models.PostDTO
// @Failure		400		{object}	ErrorResponse
// @Router			/posts [get]
func (h *Handler) list(ginCtx *gin.Context) {
	var q ListPostsQuery
	if err := ginCtx.ShouldBindQuery(&q); err != nil {
		ginCtx.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	out, err := h.svc.ListPosts(ginCtx, q.Status, q.Limit, q.Offset)
	if err != nil {
		ginCtx.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	ginCtx.JSON(http.StatusOK, out)
}

// @Summary		Create a post
// @Description	Provider publishes a job post with an optional bid ceiling.
// @Tags			Posts
// @Param			body	body		CreatePostBody	true	"Post payload"
// @Success		201		{object}	models.PostDTO
// @Failure		400		{object}	ErrorResponse
// @Router			/posts [post]
func (h *Handler) create(ginCtx *gin.Context) {
	var body CreatePostBody
	if err := ginCtx.ShouldBindJSON(&body); err != nil {
		ginCtx.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	dto, err := h.svc.CreatePost(ginCtx.Request.Context(),
		body.OwnerID, body.Description, body.Media, body.MinBid, body.MaxBid)
	if err != nil {
		abortWith(ginCtx, err)
		return
	}
	ginCtx.JSON(http.StatusCreated, dto)
}

// @Summary		Delete a post
// @Description	Owner deletes a post and its bids; forbidden once a winner is recorded.
// @Tags			Posts
// @Param			id			path	string	true	"Post ID"
// @Param			actor_id	query	string	true	"Acting user"
// @Success		204
// @Failure		409	{object}	ErrorResponse
// @Router			/posts/{id} [delete]
func (h *Handler) deletePost(ginCtx *gin.Context) {
	if err := h.svc.DeletePost(ginCtx.Request.Context(),
		ginCtx.Param("id"), ginCtx.Query("actor_id")); err != nil {
		abortWith(ginCtx, err)
		return
	}
	ginCtx.Status(http.StatusNoContent)
}

// @Summary		List ranked bids
// @Description	Returns the post's bids ordered under the requested sort mode.
// @Tags			Bids
// @Param			id		path		string	true	"Post ID"
// @Param			sort	query		string	false	"Sort mode"	Enums(lowest,highest,rating)
// @Success		200		{array}		models.Bid
// @Failure		400		{object}	ErrorResponse
// @Router			/posts/{id}/bids [get]
func (h *Handler) bids(ginCtx *gin.Context) {
	mode := bidrank.SortMode(ginCtx.DefaultQuery("sort", string(h.defaultSort)))
	out, err := h.svc.GetBids(ginCtx, ginCtx.Param("id"), mode)
	if err != nil {
		abortWith(ginCtx, err)
		return
	}
	ginCtx.JSON(http.StatusOK, out)
}

// @Summary		Place a bid
// @Description	Worker places a bid inside the post's acceptance window.
// @Tags			Bids
// @Param			id		path		string			true	"Post ID"
// @Param			body	body		PlaceBidBody	true	"Bid payload"
// @Success		201		{object}	models.Bid
// @Failure		400		{object}	ErrorResponse
// @Failure		404		{object}	ErrorResponse
// @Router			/posts/{id}/bids [post]
func (h *Handler) bid(ginCtx *gin.Context) {
	var body PlaceBidBody
	if err := ginCtx.ShouldBindJSON(&body); err != nil {
		ginCtx.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	bidder := models.User{
		UserID:        body.BidderID,
		Username:      body.Username,
		EmailVerified: body.EmailVerified,
		PhoneVerified: body.PhoneVerified,
		AverageRating: body.AverageRating,
	}
	bid, err := h.svc.CreateBid(ginCtx.Request.Context(),
		ginCtx.Param("id"), bidder, body.Amount, body.Comment)
	if err != nil {
		abortWith(ginCtx, err)
		return
	}
	ginCtx.JSON(http.StatusCreated, bid)
}

// @Summary		Delete a bid
// @Description	Bid author or post owner removes a bid; the winning bid is immutable.
// @Tags			Bids
// @Param			id			path	string	true	"Post ID"
// @Param			bidId		path	string	true	"Bid ID"
// @Param			actor_id	query	string	true	"Acting user"
// @Success		204
// @Failure		403	{object}	ErrorResponse
// @Failure		409	{object}	ErrorResponse
// @Router			/posts/{id}/bids/{bidId} [delete]
func (h *Handler) deleteBid(ginCtx *gin.Context) {
	if err := h.svc.DeleteBid(ginCtx.Request.Context(),
		ginCtx.Param("id"), ginCtx.Param("bidId"), ginCtx.Query("actor_id")); err != nil {
		abortWith(ginCtx, err)
		return
	}
	ginCtx.Status(http.StatusNoContent)
}

// @Summary		Select the winning bid
// @Description	Owner awards the post to one bid. Irreversible.
// @Tags			Lifecycle
// @Param			id		path	string				true	"Post ID"
// @Param			body	body	SelectWinnerBody	true	"Winner payload"
// @Success		202
// @Failure		409	{object}	ErrorResponse
// @Router			/posts/{id}/winner [post]
func (h *Handler) selectWinner(ginCtx *gin.Context) {
	var body SelectWinnerBody
	if err := ginCtx.ShouldBindJSON(&body); err != nil {
		ginCtx.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	if err := h.svc.SelectWinner(ginCtx.Request.Context(),
		ginCtx.Param("id"), body.BidID, body.WinnerUserID, body.ActorID); err != nil {
		abortWith(ginCtx, err)
		return
	}
	ginCtx.Status(http.StatusAccepted)
}

// @Summary		Change the bid range
// @Tags			Lifecycle
// @Param			id		path	string			true	"Post ID"
// @Param			body	body	BidRangeBody	true	"Range payload"
// @Success		202
// @Failure		400	{object}	ErrorResponse
// @Router			/posts/{id}/bid-range [put]
func (h *Handler) bidRange(ginCtx *gin.Context) {
	var body BidRangeBody
	if err := ginCtx.ShouldBindJSON(&body); err != nil {
		ginCtx.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	if err := h.svc.SetBidRange(ginCtx.Request.Context(),
		ginCtx.Param("id"), body.ActorID, body.MinBid, body.MaxBid); err != nil {
		abortWith(ginCtx, err)
		return
	}
	ginCtx.Status(http.StatusAccepted)
}

// @Summary		Open or close bidding
// @Tags			Lifecycle
// @Param			id		path	string			true	"Post ID"
// @Param			body	body	SetStatusBody	true	"Status payload"
// @Success		202
// @Failure		409	{object}	ErrorResponse
// @Router			/posts/{id}/status [post]
func (h *Handler) setStatus(ginCtx *gin.Context) {
	var body SetStatusBody
	if err := ginCtx.ShouldBindJSON(&body); err != nil {
		ginCtx.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	if err := h.svc.SetStatus(ginCtx.Request.Context(),
		ginCtx.Param("id"), body.ActorID, *body.Open); err != nil {
		abortWith(ginCtx, err)
		return
	}
	ginCtx.Status(http.StatusAccepted)
}

// @Summary		Confirm completion
// @Description	Provider or selected worker confirms the job is done. Idempotent.
// @Tags			Lifecycle
// @Param			id		path	string		true	"Post ID"
// @Param			body	body	ConfirmBody	true	"Confirmation payload"
// @Success		202
// @Failure		403	{object}	ErrorResponse
// @Failure		409	{object}	ErrorResponse
// @Router			/posts/{id}/confirm [post]
func (h *Handler) confirm(ginCtx *gin.Context) {
	var body ConfirmBody
	if err := ginCtx.ShouldBindJSON(&body); err != nil {
		ginCtx.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	if err := h.svc.ConfirmCompletion(ginCtx.Request.Context(),
		ginCtx.Param("id"), body.ActorID); err != nil {
		abortWith(ginCtx, err)
		return
	}
	ginCtx.Status(http.StatusAccepted)
}

// @Summary		Submit a review
// @Description	Confirmed side reviews the other party, once.
// @Tags			Lifecycle
// @Param			id		path		string		true	"Post ID"
// @Param			body	body		ReviewBody	true	"Review payload"
// @Success		201		{object}	ReviewResponse
// @Failure		409		{object}	ErrorResponse
// @Router			/posts/{id}/reviews [post]
func (h *Handler) review(ginCtx *gin.Context) {
	var body ReviewBody
	if err := ginCtx.ShouldBindJSON(&body); err != nil {
		ginCtx.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	target, err := h.svc.SubmitReview(ginCtx.Request.Context(),
		ginCtx.Param("id"), body.ActorID, body.Rating, body.Text)
	if err != nil {
		abortWith(ginCtx, err)
		return
	}
	ginCtx.JSON(http.StatusCreated, ReviewResponse{TargetUserType: target})
}

// @Summary		Review prompt
// @Description	Whether the actor should be prompted to review this post.
// @Tags			Lifecycle
// @Param			id			path		string	true	"Post ID"
// @Param			actor_id	query		string	true	"Acting user"
// @Success		200			{object}	ReviewPromptResponse
// @Failure		404			{object}	ErrorResponse
// @Router			/posts/{id}/review-prompt [get]
func (h *Handler) reviewPrompt(ginCtx *gin.Context) {
	prompt, err := h.svc.ReviewPrompt(ginCtx, ginCtx.Param("id"), ginCtx.Query("actor_id"))
	if err != nil {
		abortWith(ginCtx, err)
		return
	}
	ginCtx.JSON(http.StatusOK, ReviewPromptResponse{Prompt: prompt})
}
