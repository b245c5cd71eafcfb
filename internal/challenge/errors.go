package challenge

import "errors"

// Validation errors surfaced directly to callers. Concurrency losers map
// onto the same values: a duplicate completion that loses the unique-insert
// race gets ErrAlreadyCompleted, a finalizer that loses the claim gets
// ErrAlreadyFinalized. The end state is correct either way.
var (
	ErrChallengeNotFound = errors.New("challenge not found")
	ErrChallengeClosed   = errors.New("challenge is already finished")
	ErrChallengeFull     = errors.New("challenge has reached max participants")
	ErrTaskNotFound      = errors.New("challenge task not found")
	ErrTaskNotUnlocked   = errors.New("task is not unlocked yet")
	ErrAlreadyCompleted  = errors.New("task already completed")
	ErrAlreadyEnrolled   = errors.New("already enrolled in challenge")
	ErrNotEnrolled       = errors.New("not enrolled in challenge")
	ErrAlreadyFinalized  = errors.New("challenge is already finalized")
	ErrPhotoRequired     = errors.New("this task requires a photo")

	// ErrStoreUnavailable wraps transient database failures (timeouts,
	// broken connections). Idempotent reads may retry on it.
	ErrStoreUnavailable = errors.New("data store unavailable")
)
