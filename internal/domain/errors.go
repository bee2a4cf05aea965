package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidAttempt is returned for malformed scoring input, e.g. an
	// attempt with zero questions. The submission must be rejected before
	// anything is persisted.
	ErrInvalidAttempt = errors.New("invalid attempt input")
	// ErrAttemptNotFound indicates the attempt id is unknown.
	ErrAttemptNotFound = errors.New("attempt not found")
	// ErrAttemptCompleted is returned when completing an attempt that has
	// already been completed; score and points are written exactly once.
	ErrAttemptCompleted = errors.New("attempt already completed")
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrUserNotFound indicates the participant has no stats row.
	ErrUserNotFound = errors.New("user not found")
)

// AwardError reports a non-duplicate storage failure while recording an
// achievement award. Duplicate-key conflicts are never wrapped in this type;
// they are an expected no-op. The attempt's own score stands regardless.
type AwardError struct {
	AchievementID string
	Err           error
}

func (e *AwardError) Error() string {
	return fmt.Sprintf("award achievement %s: %v", e.AchievementID, e.Err)
}

func (e *AwardError) Unwrap() error { return e.Err }
