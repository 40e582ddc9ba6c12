package posthandler

type CreatePostBody struct {
	OwnerID     string   `json:"owner_id"    binding:"required"       example:"provider123"`
	Description string   `json:"description" binding:"required"`
	Media       []string `json:"media"`
	MinBid      float64  `json:"min_bid"     binding:"gte=0"          example:"50"`
	MaxBid      *float64 `json:"max_bid"     binding:"omitempty,gt=0" example:"500"`
} // @name CreatePostRequest

type PlaceBidBody struct {
	BidderID      string  `json:"bidder_id" binding:"required"      example:"worker123"`
	Username      string  `json:"username"                          example:"worker123"`
	EmailVerified bool    `json:"email_verified"`
	PhoneVerified bool    `json:"phone_verified"`
	AverageRating float64 `json:"average_rating"`
	Amount        float64 `json:"amount"    binding:"required,gt=0" example:"120"`
	Comment       string  `json:"comment"`
} // @name PlaceBidRequest

type SelectWinnerBody struct {
	ActorID      string `json:"actor_id"       binding:"required" example:"provider123"`
	BidID        string `json:"bid_id"         binding:"required" example:"bid123"`
	WinnerUserID string `json:"winner_user_id"                    example:"worker123"`
} // @name SelectWinnerRequest

type BidRangeBody struct {
	ActorID string   `json:"actor_id" binding:"required" example:"provider123"`
	MinBid  float64  `json:"min_bid"  binding:"gte=0"    example:"50"`
	MaxBid  *float64 `json:"max_bid"  binding:"omitempty,gt=0"`
} // @name BidRangeRequest

type SetStatusBody struct {
	ActorID string `json:"actor_id" binding:"required" example:"provider123"`
	Open    *bool  `json:"open"     binding:"required"`
} // @name SetStatusRequest

type ConfirmBody struct {
	ActorID string `json:"actor_id" binding:"required" example:"provider123"`
} // @name ConfirmCompletionRequest

type ReviewBody struct {
	ActorID string `json:"actor_id" binding:"required"             example:"provider123"`
	Rating  int    `json:"rating"   binding:"required,gte=1,lte=5" example:"5"`
	Text    string `json:"text"`
} // @name SubmitReviewRequest

type ReviewResponse struct {
	TargetUserType string `json:"target_user_type" example:"worker"`
} // @name SubmitReviewResponse

type ReviewPromptResponse struct {
	Prompt bool `json:"prompt"`
} // @name ReviewPromptResponse

type ErrorResponse struct {
	Error string `json:"error"`
} // @name ErrorResponse

type ListPostsQuery struct {
	Status string `form:"status"  binding:"omitempty,oneof=open closed winnerSelected"`
	Limit  int    `form:"limit,default=10"  binding:"gte=0,lte=100"`
	Offset int    `form:"offset,default=0"  binding:"gte=0"`
} // @name ListPostsQuery
