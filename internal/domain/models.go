package domain

import "time"

// Option represents a possible answer for a question.
type Option struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Correct bool   `json:"correct"`
}

// Question models an MCQ question with exactly one correct option.
// Points is the weight a correct answer contributes to the attempt total.
type Question struct {
	ID      string   `json:"id"`
	Prompt  string   `json:"prompt"`
	Options []Option `json:"options"`
	Points  int      `json:"points"` // defaults to 1 if zero
}

// Quiz is a collection of questions plus the time allotted to answer them.
type Quiz struct {
	ID               string     `json:"id"`
	Title            string     `json:"title"`
	Questions        []Question `json:"questions"`
	TimeLimitMinutes int        `json:"timeLimitMinutes"` // 0 means untimed
}

// AnswerSubmission is one selected option for one question.
type AnswerSubmission struct {
	QuestionID string `json:"questionId"`
	OptionID   string `json:"optionId"`
}

// Attempt is a single participant's run through a quiz. Exactly one of
// UserID / GuestName is set. Score and points are written once, at
// completion, and never mutated afterward.
type Attempt struct {
	ID             string     `json:"id"`
	QuizID         string     `json:"quizId"`
	UserID         string     `json:"userId,omitempty"`
	GuestName      string     `json:"guestName,omitempty"`
	StartedAt      time.Time  `json:"startedAt"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
	ElapsedSeconds int        `json:"elapsedSeconds"`
	CorrectCount   int        `json:"correctCount"`
	TotalQuestions int        `json:"totalQuestions"`
	Score          float64    `json:"score"`
	Points         int        `json:"points"`
}

// IsGuest reports whether the attempt belongs to an anonymous participant.
func (a Attempt) IsGuest() bool {
	return a.UserID == ""
}

// UserStats is the per-user aggregate row mutated by the scoring pipeline.
// Points and CompletedQuizzes only ever grow; Streak resets to 1 on a gap.
type UserStats struct {
	UserID           string     `json:"userId"`
	Grade            int        `json:"grade"` // 0 when the user has no grade level
	Points           int        `json:"points"`
	Streak           int        `json:"streak"`
	LastActivityDate *time.Time `json:"lastActivityDate,omitempty"`
	CompletedQuizzes int        `json:"completedQuizzes"`
}

// CriteriaKind categorizes the rule an achievement tests.
type CriteriaKind string

const (
	CriteriaScore   CriteriaKind = "score"   // final score >= threshold
	CriteriaStreak  CriteriaKind = "streak"  // consecutive-day streak >= threshold
	CriteriaSpeed   CriteriaKind = "speed"   // elapsed seconds <= threshold
	CriteriaPerfect CriteriaKind = "perfect" // all questions correct; threshold unused
	CriteriaCount   CriteriaKind = "count"   // lifetime completed quizzes >= threshold
)

// GradeGroup limits an achievement to a school band.
type GradeGroup string

const (
	GradeAll        GradeGroup = "all"
	GradeElementary GradeGroup = "elementary" // grades 1-6
	GradeMiddle     GradeGroup = "middle"     // grades 7-9
	GradeHigh       GradeGroup = "high"       // grades 10-12
)

// GradeGroupFor maps a numeric grade level onto its band. Grade 0 (teachers,
// guests, admins acting as participants) belongs to no band and matches only
// GradeAll achievements.
func GradeGroupFor(grade int) GradeGroup {
	switch {
	case grade >= 1 && grade <= 6:
		return GradeElementary
	case grade >= 7 && grade <= 9:
		return GradeMiddle
	case grade >= 10 && grade <= 12:
		return GradeHigh
	default:
		return ""
	}
}

// Achievement is one badge definition from the catalog. Immutable during
// evaluation.
type Achievement struct {
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	Criteria   CriteriaKind `json:"criteria"`
	Threshold  float64      `json:"threshold"`
	GradeGroup GradeGroup   `json:"gradeGroup"`
	Reward     int          `json:"reward"` // points credited on award
}

// AppliesTo reports whether the achievement's grade group admits a
// participant with the given grade level.
func (a Achievement) AppliesTo(grade int) bool {
	if a.GradeGroup == GradeAll || a.GradeGroup == "" {
		return true
	}
	return a.GradeGroup == GradeGroupFor(grade)
}

// AttemptResult is the outcome of completing one attempt, as reported to the
// submitting client and the progress feed.
type AttemptResult struct {
	AttemptID       string   `json:"attemptId"`
	QuizID          string   `json:"quizId"`
	UserID          string   `json:"userId,omitempty"`
	CorrectCount    int      `json:"correctCount"`
	TotalQuestions  int      `json:"totalQuestions"`
	Score           float64  `json:"score"`
	Points          int      `json:"points"`
	SpeedBonus      bool     `json:"speedBonus"`
	Perfect         bool     `json:"perfect"`
	Streak          int      `json:"streak,omitempty"`
	NewAchievements []string `json:"newAchievements,omitempty"`
}
