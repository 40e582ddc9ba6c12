package joblife

import (
	"testing"

	"github.com/stretchr/testify/require"

	"oddjobsgo/internal/joberrors"
)

const (
	ownerID  = "owner1"
	workerID = "worker1"
	otherID  = "stranger"
)

func openJob(t *testing.T) *Job {
	t.Helper()
	max := 500.0
	j, err := New("post1", ownerID, 50, &max)
	require.NoError(t, err)
	return j
}

func awardedJob(t *testing.T) *Job {
	t.Helper()
	j := openJob(t)
	require.NoError(t, j.SelectWinner(ownerID, "bid-x", workerID))
	return j
}

func TestNew_RangeValidation(t *testing.T) {
	neg := -1.0
	lowMax := 10.0

	_, err := New("p", ownerID, -5, nil)
	require.True(t, joberrors.IsValidation(err))

	_, err = New("p", ownerID, 50, &lowMax)
	require.True(t, joberrors.IsValidation(err))

	_, err = New("p", ownerID, 0, nil)
	require.NoError(t, err)

	_, err = New("p", ownerID, 50, &neg)
	require.True(t, joberrors.IsValidation(err))
}

func TestSetOpen(t *testing.T) {
	j := openJob(t)

	require.True(t, joberrors.IsAuthorization(j.SetOpen(otherID, false)))
	require.Equal(t, StatusOpen, j.Status())

	require.NoError(t, j.SetOpen(ownerID, false))
	require.Equal(t, StatusClosed, j.Status())

	// Retried toggle is harmless.
	require.NoError(t, j.SetOpen(ownerID, false))
	require.Equal(t, StatusClosed, j.Status())

	require.NoError(t, j.SetOpen(ownerID, true))
	require.Equal(t, StatusOpen, j.Status())
}

func TestValidateBidAmount(t *testing.T) {
	tests := []struct {
		name   string
		amount float64
		valid  bool
	}{
		{"below_minimum", 40, false},
		{"at_minimum", 50, true},
		{"inside_range", 300, true},
		{"at_maximum", 500, true},
		{"above_maximum", 501, false},
		{"zero", 0, false},
		{"negative", -10, false},
	}
	j := openJob(t)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := j.ValidateBidAmount(tc.amount)
			if tc.valid {
				require.NoError(t, err)
			} else {
				require.True(t, joberrors.IsValidation(err), "got %v", err)
			}
		})
	}
}

func TestValidateBidAmount_RangeMessageIsActionable(t *testing.T) {
	j := openJob(t)
	err := j.ValidateBidAmount(40)
	require.EqualError(t, err, "bid out of range: 50 to 500")
}

func TestValidateBidAmount_UnboundedMax(t *testing.T) {
	j, err := New("p", ownerID, 50, nil)
	require.NoError(t, err)
	require.NoError(t, j.ValidateBidAmount(1e9))
	require.Error(t, j.ValidateBidAmount(49))
}

func TestValidateBidAmount_ClosedPost(t *testing.T) {
	j := openJob(t)
	require.NoError(t, j.SetOpen(ownerID, false))
	require.True(t, joberrors.IsValidation(j.ValidateBidAmount(100)))
}

func TestSetBidRange(t *testing.T) {
	j := openJob(t)

	require.True(t, joberrors.IsAuthorization(j.SetBidRange(otherID, 10, nil)))

	require.NoError(t, j.SetBidRange(ownerID, 100, nil))
	require.Equal(t, 100.0, j.MinBid)
	require.Nil(t, j.MaxBid)

	bad := 10.0
	require.True(t, joberrors.IsValidation(j.SetBidRange(ownerID, 100, &bad)))
	require.True(t, joberrors.IsValidation(j.SetBidRange(ownerID, -1, nil)))

	require.NoError(t, j.SetOpen(ownerID, false))
	require.True(t, joberrors.IsValidation(j.SetBidRange(ownerID, 10, nil)),
		"range is frozen while the post is not open")
}

func TestSelectWinner(t *testing.T) {
	j := openJob(t)

	require.True(t, joberrors.IsAuthorization(j.SelectWinner(otherID, "bid-x", workerID)))

	require.NoError(t, j.SelectWinner(ownerID, "bid-x", workerID))
	require.Equal(t, StatusWinnerSelected, j.Status())
	award, ok := j.Award()
	require.True(t, ok)
	require.Equal(t, "bid-x", award.WinningBidID)
	require.Equal(t, workerID, award.WinnerID)

	// Second selection for a different bid conflicts.
	err := j.SelectWinner(ownerID, "bid-y", otherID)
	require.True(t, joberrors.IsConflict(err))
	award, _ = j.Award()
	require.Equal(t, "bid-x", award.WinningBidID)
}

func TestSelectWinner_OnlyFromOpen(t *testing.T) {
	j := openJob(t)
	require.NoError(t, j.SetOpen(ownerID, false))
	require.True(t, joberrors.IsConflict(j.SelectWinner(ownerID, "bid-x", workerID)))
}

func TestWinnerSelected_IsTerminal(t *testing.T) {
	j := awardedJob(t)

	require.True(t, joberrors.IsConflict(j.SetOpen(ownerID, true)))
	require.True(t, joberrors.IsConflict(j.SetOpen(ownerID, false)))
	require.True(t, joberrors.IsValidation(j.SetBidRange(ownerID, 10, nil)))
	require.Equal(t, StatusWinnerSelected, j.Status())
}

func TestAuthorizeBidDeletion(t *testing.T) {
	j := awardedJob(t)

	require.NoError(t, j.AuthorizeBidDeletion("author1", "bid-a", "author1"))
	require.NoError(t, j.AuthorizeBidDeletion(ownerID, "bid-a", "author1"))
	require.True(t, joberrors.IsAuthorization(j.AuthorizeBidDeletion(otherID, "bid-a", "author1")))

	// The winning bid is immutable history, even for the owner.
	err := j.AuthorizeBidDeletion(ownerID, "bid-x", workerID)
	require.True(t, joberrors.IsConflict(err))
	err = j.AuthorizeBidDeletion(workerID, "bid-x", workerID)
	require.True(t, joberrors.IsConflict(err))
}

func TestAuthorizePostDeletion(t *testing.T) {
	j := openJob(t)
	require.True(t, joberrors.IsAuthorization(j.AuthorizePostDeletion(otherID)))
	require.NoError(t, j.AuthorizePostDeletion(ownerID))

	awarded := awardedJob(t)
	require.True(t, joberrors.IsConflict(awarded.AuthorizePostDeletion(ownerID)))
}

func TestConfirmCompletion(t *testing.T) {
	j := awardedJob(t)

	changed, err := j.ConfirmCompletion(ownerID)
	require.NoError(t, err)
	require.True(t, changed)

	// Idempotent on retry.
	changed, err = j.ConfirmCompletion(ownerID)
	require.NoError(t, err)
	require.False(t, changed)

	award, _ := j.Award()
	require.True(t, award.ProviderConfirmed)
	require.False(t, award.WorkerConfirmed)
	require.False(t, award.Completed())

	changed, err = j.ConfirmCompletion(workerID)
	require.NoError(t, err)
	require.True(t, changed)
	award, _ = j.Award()
	require.True(t, award.Completed())

	_, err = j.ConfirmCompletion(otherID)
	require.True(t, joberrors.IsAuthorization(err))
}

func TestConfirmCompletion_RequiresAward(t *testing.T) {
	j := openJob(t)
	_, err := j.ConfirmCompletion(ownerID)
	require.True(t, joberrors.IsConflict(err))
}

func TestRecordReview(t *testing.T) {
	j := awardedJob(t)

	// Reviewing before confirming is rejected.
	_, err := j.RecordReview(ownerID)
	require.True(t, joberrors.IsValidation(err))

	_, err = j.ConfirmCompletion(ownerID)
	require.NoError(t, err)

	target, err := j.RecordReview(ownerID)
	require.NoError(t, err)
	require.Equal(t, TargetWorker, target)

	// Second review from the same side conflicts; the flag never resets.
	_, err = j.RecordReview(ownerID)
	require.True(t, joberrors.IsConflict(err))

	_, err = j.ConfirmCompletion(workerID)
	require.NoError(t, err)
	target, err = j.RecordReview(workerID)
	require.NoError(t, err)
	require.Equal(t, TargetProvider, target)

	_, err = j.RecordReview(otherID)
	require.True(t, joberrors.IsAuthorization(err))
}

func TestRestore(t *testing.T) {
	// Confirmed flags on an open post cannot be rebuilt.
	_, err := Restore("p", ownerID, 0, nil, StatusOpen, &Award{WinningBidID: "b", WinnerID: workerID})
	require.True(t, joberrors.IsConflict(err))

	// winnerSelected without an award is equally illegal.
	_, err = Restore("p", ownerID, 0, nil, StatusWinnerSelected, nil)
	require.True(t, joberrors.IsConflict(err))

	_, err = Restore("p", ownerID, 0, nil, Status("done"), nil)
	require.True(t, joberrors.IsConflict(err))

	j, err := Restore("p", ownerID, 0, nil, StatusWinnerSelected,
		&Award{WinningBidID: "b", WinnerID: workerID, ProviderConfirmed: true})
	require.NoError(t, err)
	award, ok := j.Award()
	require.True(t, ok)
	require.True(t, award.ProviderConfirmed)
}
