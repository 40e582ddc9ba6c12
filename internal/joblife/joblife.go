package joblife

import (
	"math"

	"oddjobsgo/internal/joberrors"
)

// Status is the pre-award phase of a post plus the terminal awarded phase.
type Status string

const (
	StatusOpen           Status = "open"
	StatusClosed         Status = "closed"
	StatusWinnerSelected Status = "winnerSelected"
)

// Award holds everything that only exists once a winner is selected. Keeping
// it behind a pointer makes "confirmed flags on an open post" unrepresentable
// instead of merely invalid.
type Award struct {
	WinningBidID       string
	WinnerID           string
	ProviderConfirmed  bool
	WorkerConfirmed    bool
	ReviewedByProvider bool
	ReviewedByWorker   bool
}

// Completed reports whether both sides confirmed. There is no separate
// terminal status; both flags true is the completion signal.
func (a Award) Completed() bool { return a.ProviderConfirmed && a.WorkerConfirmed }

// Job is the lifecycle state machine for one post. All mutation goes through
// methods that validate the transition and the acting identity; on error the
// Job is unchanged.
type Job struct {
	PostID  string
	OwnerID string
	MinBid  float64
	MaxBid  *float64 // nil means unbounded

	status Status
	award  *Award
}

// New creates an open job, validating the bid range.
func New(postID, ownerID string, minBid float64, maxBid *float64) (*Job, error) {
	if err := checkRange(minBid, maxBid); err != nil {
		return nil, err
	}
	return &Job{
		PostID:  postID,
		OwnerID: ownerID,
		MinBid:  minBid,
		MaxBid:  maxBid,
		status:  StatusOpen,
	}, nil
}

// Restore rebuilds a job from stored fields, rejecting combinations the
// state machine could never have produced.
func Restore(postID, ownerID string, minBid float64, maxBid *float64, status Status, award *Award) (*Job, error) {
	switch status {
	case StatusOpen, StatusClosed:
		if award != nil {
			return nil, joberrors.Conflictf("post %s: award recorded while status is %s", postID, status)
		}
	case StatusWinnerSelected:
		if award == nil || award.WinningBidID == "" || award.WinnerID == "" {
			return nil, joberrors.Conflictf("post %s: winnerSelected without a complete award", postID)
		}
	default:
		return nil, joberrors.Conflictf("post %s: unknown status %q", postID, status)
	}
	return &Job{
		PostID:  postID,
		OwnerID: ownerID,
		MinBid:  minBid,
		MaxBid:  maxBid,
		status:  status,
		award:   award,
	}, nil
}

func (j *Job) Status() Status { return j.status }

// Award returns a copy of the award block and false before winner selection.
func (j *Job) Award() (Award, bool) {
	if j.award == nil {
		return Award{}, false
	}
	return *j.award, true
}

// SetOpen toggles between open and closed. Owner only; a retried toggle to
// the current state is a no-op. No path leads out of winnerSelected.
func (j *Job) SetOpen(actorID string, open bool) error {
	if actorID != j.OwnerID {
		return joberrors.Authorizationf("only the post owner may open or close post %s", j.PostID)
	}
	if j.status == StatusWinnerSelected {
		return joberrors.Conflictf("post %s already has a selected winner", j.PostID)
	}
	if open {
		j.status = StatusOpen
	} else {
		j.status = StatusClosed
	}
	return nil
}

// SetBidRange mutates the acceptance window. Owner only, open posts only.
func (j *Job) SetBidRange(actorID string, minBid float64, maxBid *float64) error {
	if actorID != j.OwnerID {
		return joberrors.Authorizationf("only the post owner may change the bid range of post %s", j.PostID)
	}
	if j.status != StatusOpen {
		return joberrors.Validationf("bid range can only change while post %s is open", j.PostID)
	}
	if err := checkRange(minBid, maxBid); err != nil {
		return err
	}
	j.MinBid = minBid
	j.MaxBid = maxBid
	return nil
}

// ValidateBidAmount gates bid creation: post open, amount finite and
// positive, and inside [MinBid, MaxBid].
func (j *Job) ValidateBidAmount(amount float64) error {
	if j.status != StatusOpen {
		return joberrors.Validationf("post %s is not open for bidding", j.PostID)
	}
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return joberrors.Validationf("bid amount must be a positive number")
	}
	if amount < j.MinBid || (j.MaxBid != nil && amount > *j.MaxBid) {
		if j.MaxBid != nil {
			return joberrors.Validationf("bid out of range: %g to %g", j.MinBid, *j.MaxBid)
		}
		return joberrors.Validationf("bid out of range: at least %g", j.MinBid)
	}
	return nil
}

// SelectWinner is the irreversible award transition. Owner only, open posts
// only, at most once. Existence of bidID in the live bid set is the caller's
// check; this machine only records the decision.
func (j *Job) SelectWinner(actorID, bidID, winnerID string) error {
	if actorID != j.OwnerID {
		return joberrors.Authorizationf("only the post owner may select a winner for post %s", j.PostID)
	}
	if j.award != nil {
		return joberrors.Conflictf("post %s already has winning bid %s", j.PostID, j.award.WinningBidID)
	}
	if j.status != StatusOpen {
		return joberrors.Conflictf("winner can only be selected while post %s is open", j.PostID)
	}
	if bidID == "" || winnerID == "" {
		return joberrors.Validationf("winner selection requires a bid and a winner")
	}
	j.award = &Award{WinningBidID: bidID, WinnerID: winnerID}
	j.status = StatusWinnerSelected
	return nil
}

// AuthorizeBidDeletion checks whether actorID may delete the given bid.
// Allowed for the bid author and the post owner; never for the winning bid,
// which is immutable history.
func (j *Job) AuthorizeBidDeletion(actorID, bidID, bidAuthorID string) error {
	if actorID != bidAuthorID && actorID != j.OwnerID {
		return joberrors.Authorizationf("bid %s may only be deleted by its author or the post owner", bidID)
	}
	if j.award != nil && j.award.WinningBidID == bidID {
		return joberrors.Conflictf("bid %s is the winning bid of post %s and cannot be deleted", bidID, j.PostID)
	}
	return nil
}

// AuthorizePostDeletion: owner only, and never once a winner is recorded.
func (j *Job) AuthorizePostDeletion(actorID string) error {
	if actorID != j.OwnerID {
		return joberrors.Authorizationf("only the post owner may delete post %s", j.PostID)
	}
	if j.award != nil {
		return joberrors.Conflictf("post %s has a winning bid and cannot be deleted", j.PostID)
	}
	return nil
}

// ConfirmCompletion records one side's confirmation. Idempotent: a repeated
// confirmation reports changed=false instead of failing, so retried requests
// are harmless.
func (j *Job) ConfirmCompletion(actorID string) (changed bool, err error) {
	if j.status != StatusWinnerSelected {
		return false, joberrors.Conflictf("post %s has no selected winner to confirm completion for", j.PostID)
	}
	switch actorID {
	case j.OwnerID:
		if j.award.ProviderConfirmed {
			return false, nil
		}
		j.award.ProviderConfirmed = true
	case j.award.WinnerID:
		if j.award.WorkerConfirmed {
			return false, nil
		}
		j.award.WorkerConfirmed = true
	default:
		return false, joberrors.Authorizationf("only the provider or the selected worker may confirm completion of post %s", j.PostID)
	}
	return true, nil
}

// Review target roles.
const (
	TargetWorker   = "worker"
	TargetProvider = "provider"
)

// RecordReview marks the actor's side as reviewed and returns the role the
// review is addressed at. A side must have confirmed before reviewing and
// may review exactly once; the flag never resets.
func (j *Job) RecordReview(actorID string) (targetUserType string, err error) {
	if j.status != StatusWinnerSelected {
		return "", joberrors.Conflictf("post %s has no selected winner to review", j.PostID)
	}
	switch actorID {
	case j.OwnerID:
		if !j.award.ProviderConfirmed {
			return "", joberrors.Validationf("confirm completion of post %s before reviewing", j.PostID)
		}
		if j.award.ReviewedByProvider {
			return "", joberrors.Conflictf("post %s was already reviewed by the provider", j.PostID)
		}
		j.award.ReviewedByProvider = true
		return TargetWorker, nil
	case j.award.WinnerID:
		if !j.award.WorkerConfirmed {
			return "", joberrors.Validationf("confirm completion of post %s before reviewing", j.PostID)
		}
		if j.award.ReviewedByWorker {
			return "", joberrors.Conflictf("post %s was already reviewed by the worker", j.PostID)
		}
		j.award.ReviewedByWorker = true
		return TargetProvider, nil
	}
	return "", joberrors.Authorizationf("only the provider or the selected worker may review post %s", j.PostID)
}

func checkRange(minBid float64, maxBid *float64) error {
	if math.IsNaN(minBid) || minBid < 0 {
		return joberrors.Validationf("minimum bid must be zero or more")
	}
	if maxBid != nil && (math.IsNaN(*maxBid) || *maxBid < minBid) {
		return joberrors.Validationf("maximum bid must be at least the minimum bid (%g)", minBid)
	}
	return nil
}
