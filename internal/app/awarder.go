package app

import (
	"context"

	"itqan-progress-service/internal/domain"
)

// AwardStore records achievement awards durably. Award must be at-most-once
// per (user, achievement): the storage layer's uniqueness constraint, not an
// application lock, decides the winner under concurrency. A duplicate award
// is reported as (false, nil), never as an error. A newly recorded award must
// credit the achievement's point reward to the user atomically with the
// award row.
type AwardStore interface {
	Award(ctx context.Context, userID, achievementID string) (newly bool, err error)
	Owned(ctx context.Context, userID string) (map[string]struct{}, error)
}

// Awarder applies an evaluator's decisions through an AwardStore.
type Awarder struct {
	store AwardStore
}

func NewAwarder(store AwardStore) *Awarder {
	return &Awarder{store: store}
}

// Award records each achievement for the user and returns the ids that were
// newly persisted. Duplicates no-op silently. A storage failure on one
// achievement does not stop the rest of the batch; the first failure comes
// back as a *domain.AwardError alongside whatever was recorded, so the caller
// can log and retry the award step without touching the attempt itself.
func (a *Awarder) Award(ctx context.Context, userID string, achievementIDs []string) ([]string, error) {
	var awarded []string
	var firstErr error
	for _, id := range achievementIDs {
		newly, err := a.store.Award(ctx, userID, id)
		if err != nil {
			if firstErr == nil {
				firstErr = &domain.AwardError{AchievementID: id, Err: err}
			}
			continue
		}
		if newly {
			awarded = append(awarded, id)
		}
	}
	return awarded, firstErr
}
