package app

import "time"

// UpdateStreak computes a user's new consecutive-day streak from the date of
// their last streak-counted activity and today's date. The function is total:
// every input maps to a defined output and it never errors.
//
// Same calendar day leaves the streak untouched (multiple quizzes in one day
// do not inflate it), activity yesterday extends it by one, and anything else
// (no prior activity, a gap of two or more days, or a future last-activity
// date from clock skew) resets it to 1. The caller persists the new streak
// and sets lastActivity to today whenever changed is true.
func UpdateStreak(lastActivity *time.Time, today time.Time, current int) (newStreak int, changed bool) {
	if lastActivity == nil {
		return 1, true
	}

	last := toDate(*lastActivity)
	day := toDate(today)

	switch {
	case last.Equal(day):
		if current < 1 {
			// A same-day activity with no counted streak still starts one.
			return 1, true
		}
		return current, false
	case last.Equal(day.AddDate(0, 0, -1)):
		return current + 1, true
	default:
		return 1, true
	}
}

// toDate truncates a timestamp to its UTC calendar day.
func toDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
