// Package reviewgate derives whether a review prompt should be shown to an
// actor for a post. A side is prompted once it has confirmed completion and
// has not yet submitted its review of the other party.
package reviewgate

import "oddjobsgo/internal/joblife"

// ShouldPromptReview reports whether actorID should see the review prompt
// for job. Only awarded posts prompt, and only the actor's own side of the
// confirmation gates the actor's prompt.
func ShouldPromptReview(job *joblife.Job, actorID string) bool {
	award, ok := job.Award()
	if !ok {
		return false
	}
	switch actorID {
	case job.OwnerID:
		return award.ProviderConfirmed && !award.ReviewedByProvider
	case award.WinnerID:
		return award.WorkerConfirmed && !award.ReviewedByWorker
	}
	return false
}

// Target returns the role the actor's review would be addressed at and false
// when the actor is neither party.
func Target(job *joblife.Job, actorID string) (string, bool) {
	award, ok := job.Award()
	if !ok {
		return "", false
	}
	switch actorID {
	case job.OwnerID:
		return joblife.TargetWorker, true
	case award.WinnerID:
		return joblife.TargetProvider, true
	}
	return "", false
}
