package app

import (
	"math"

	"itqan-progress-service/internal/config"
	"itqan-progress-service/internal/domain"
)

// ScoreInput is everything ComputeScore needs about one finished attempt.
// CorrectPoints is the sum of the point weights of the correctly answered
// questions; GradeAnswers produces both counts from raw submissions.
type ScoreInput struct {
	CorrectCount     int
	TotalQuestions   int
	CorrectPoints    int
	ElapsedSeconds   int
	TimeLimitMinutes int
}

// ScoreResult is the computed outcome: a percentage score in [0,100] and the
// integer points earned.
type ScoreResult struct {
	FinalScore   float64
	PointsEarned int
	SpeedBonus   bool
	Perfect      bool
}

// ComputeScore turns a finished attempt into a final score and points. It is
// deterministic and has no side effects.
//
// The base score is the fraction of correct answers as a percentage. When the
// speed bonus is enabled, the quiz is timed, and the attempt used no more
// than half of the allotted time, the score gains basePercentage*bonus/100
// (capped at 100) and the points are scaled by the same factor, rounded to
// the nearest integer. Over-time attempts still score, just without a bonus.
func ComputeScore(in ScoreInput, cfg config.Gamification) (ScoreResult, error) {
	if in.TotalQuestions <= 0 || in.CorrectCount < 0 || in.CorrectCount > in.TotalQuestions ||
		in.ElapsedSeconds < 0 || in.CorrectPoints < 0 {
		return ScoreResult{}, domain.ErrInvalidAttempt
	}

	base := float64(in.CorrectCount) / float64(in.TotalQuestions) * 100

	result := ScoreResult{
		FinalScore:   base,
		PointsEarned: in.CorrectPoints,
		Perfect:      in.CorrectCount == in.TotalQuestions,
	}

	if cfg.SpeedBonusEnabled && in.TimeLimitMinutes > 0 && withinHalfTime(in.ElapsedSeconds, in.TimeLimitMinutes) {
		result.SpeedBonus = true
		result.FinalScore = base + base*cfg.SpeedBonusPercentage/100
		if result.FinalScore > 100 {
			result.FinalScore = 100
		}
		result.PointsEarned = int(math.Round(float64(in.CorrectPoints) * (1 + cfg.SpeedBonusPercentage/100)))
	}

	return result, nil
}

func withinHalfTime(elapsedSeconds, limitMinutes int) bool {
	return elapsedSeconds*2 <= limitMinutes*60
}

// GradeAnswers checks each submission against the quiz content and returns
// the correct-answer count and the summed point weights of those answers.
// Unknown question or option ids simply count as incorrect; at most one
// answer per question is considered.
func GradeAnswers(quiz domain.Quiz, answers []domain.AnswerSubmission) (correct, points int) {
	graded := make(map[string]struct{}, len(answers))
	for _, answer := range answers {
		if _, done := graded[answer.QuestionID]; done {
			continue
		}
		question := findQuestion(quiz, answer.QuestionID)
		if question == nil {
			continue
		}
		graded[answer.QuestionID] = struct{}{}
		option := findOption(*question, answer.OptionID)
		if option == nil || !option.Correct {
			continue
		}
		correct++
		if question.Points > 0 {
			points += question.Points
		} else {
			points++
		}
	}
	return correct, points
}

func findQuestion(quiz domain.Quiz, id string) *domain.Question {
	for i := range quiz.Questions {
		if quiz.Questions[i].ID == id {
			return &quiz.Questions[i]
		}
	}
	return nil
}

func findOption(q domain.Question, id string) *domain.Option {
	for i := range q.Options {
		if q.Options[i].ID == id {
			return &q.Options[i]
		}
	}
	return nil
}
