package app

import "itqan-progress-service/internal/domain"

// AttemptEvent is the snapshot an achievement evaluation runs against: the
// just-computed score plus the user's post-update aggregates. The caller must
// populate Streak and CompletedQuizzes from state that already reflects this
// attempt, never from a stale read.
type AttemptEvent struct {
	Score            float64
	Perfect          bool
	ElapsedSeconds   int
	Grade            int // 0 when the participant has no grade level
	Streak           int
	CompletedQuizzes int
}

// EvaluateAchievements returns the ids of catalog achievements the user now
// qualifies for and does not already own, in catalog order. When one event
// crosses several tiers at once, every crossed tier is returned so the
// awarder can record them as a batch. The function is pure; it never touches
// a store.
func EvaluateAchievements(event AttemptEvent, catalog []domain.Achievement, owned map[string]struct{}) []string {
	var qualified []string
	for _, def := range catalog {
		if _, has := owned[def.ID]; has {
			continue
		}
		if !def.AppliesTo(event.Grade) {
			continue
		}
		if meetsCriteria(event, def) {
			qualified = append(qualified, def.ID)
		}
	}
	return qualified
}

func meetsCriteria(event AttemptEvent, def domain.Achievement) bool {
	switch def.Criteria {
	case domain.CriteriaScore:
		return event.Score >= def.Threshold
	case domain.CriteriaStreak:
		return float64(event.Streak) >= def.Threshold
	case domain.CriteriaSpeed:
		return float64(event.ElapsedSeconds) <= def.Threshold
	case domain.CriteriaPerfect:
		// Threshold is a fixed sentinel here, not a knob.
		return event.Perfect
	case domain.CriteriaCount:
		return float64(event.CompletedQuizzes) >= def.Threshold
	default:
		return false
	}
}
