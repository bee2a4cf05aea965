package app

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"itqan-progress-service/internal/config"
	"itqan-progress-service/internal/domain"
)

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// CatalogRepository loads the achievement catalog in its definition order.
type CatalogRepository interface {
	GetCatalog(ctx context.Context) ([]domain.Achievement, error)
}

// AttemptStore persists attempts. Complete must succeed at most once per
// attempt: the store rejects a second completion with
// domain.ErrAttemptCompleted regardless of how the requests interleave.
type AttemptStore interface {
	Create(ctx context.Context, attempt domain.Attempt) error
	Get(ctx context.Context, id string) (domain.Attempt, error)
	Complete(ctx context.Context, attempt domain.Attempt) error
}

// UserStore reads and updates per-user aggregate state. ApplyCompletion must
// add points and bump the completed-quiz count atomically (no
// read-modify-write) and return the post-update row.
type UserStore interface {
	GetUser(ctx context.Context, userID string) (domain.UserStats, error)
	ApplyCompletion(ctx context.Context, userID string, streak int, activityDate time.Time, points int) (domain.UserStats, error)
}

// ProgressService runs the attempt-submission pipeline: grade, score,
// complete the attempt, update the streak and aggregates, then evaluate and
// award achievements. Award failures are logged, never fatal — the attempt's
// own score stands.
type ProgressService struct {
	quizzes  QuizRepository
	catalog  CatalogRepository
	attempts AttemptStore
	users    UserStore
	awarder  *Awarder
	cfg      config.Gamification
	now      func() time.Time

	mu    sync.Mutex
	feeds map[string]map[chan domain.AttemptResult]struct{}
}

func NewProgressService(quizzes QuizRepository, catalog CatalogRepository, attempts AttemptStore, users UserStore, awards AwardStore, cfg config.Gamification) *ProgressService {
	return &ProgressService{
		quizzes:  quizzes,
		catalog:  catalog,
		attempts: attempts,
		users:    users,
		awarder:  NewAwarder(awards),
		cfg:      cfg,
		now:      time.Now,
		feeds:    make(map[string]map[chan domain.AttemptResult]struct{}),
	}
}

// WithClock is test-only for deterministic timestamps.
func (s *ProgressService) WithClock(now func() time.Time) *ProgressService {
	s.now = now
	return s
}

// StartAttempt opens an attempt for a registered user or a named guest.
// Exactly one of userID / guestName must be set.
func (s *ProgressService) StartAttempt(ctx context.Context, quizID, userID, guestName string) (domain.Attempt, error) {
	if (userID == "") == (guestName == "") {
		return domain.Attempt{}, domain.ErrInvalidAttempt
	}
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.Attempt{}, err
	}
	if len(quiz.Questions) == 0 {
		return domain.Attempt{}, domain.ErrInvalidAttempt
	}

	attempt := domain.Attempt{
		ID:             uuid.NewString(),
		QuizID:         quizID,
		UserID:         userID,
		GuestName:      guestName,
		StartedAt:      s.now(),
		TotalQuestions: len(quiz.Questions),
	}
	if err := s.attempts.Create(ctx, attempt); err != nil {
		return domain.Attempt{}, err
	}
	return attempt, nil
}

// CompleteAttempt grades the submitted answers and drives the whole pipeline
// for one attempt. Completion is a one-time transition: a second call for the
// same attempt returns domain.ErrAttemptCompleted and changes nothing.
func (s *ProgressService) CompleteAttempt(ctx context.Context, attemptID string, answers []domain.AnswerSubmission) (domain.AttemptResult, error) {
	attempt, err := s.attempts.Get(ctx, attemptID)
	if err != nil {
		return domain.AttemptResult{}, err
	}
	if attempt.CompletedAt != nil {
		return domain.AttemptResult{}, domain.ErrAttemptCompleted
	}

	quiz, err := s.quizzes.GetQuiz(ctx, attempt.QuizID)
	if err != nil {
		return domain.AttemptResult{}, err
	}

	now := s.now()
	elapsed := int(now.Sub(attempt.StartedAt).Seconds())
	if elapsed < 0 {
		elapsed = 0
	}

	correct, correctPoints := GradeAnswers(quiz, answers)
	score, err := ComputeScore(ScoreInput{
		CorrectCount:     correct,
		TotalQuestions:   len(quiz.Questions),
		CorrectPoints:    correctPoints,
		ElapsedSeconds:   elapsed,
		TimeLimitMinutes: quiz.TimeLimitMinutes,
	}, s.cfg)
	if err != nil {
		return domain.AttemptResult{}, err
	}

	attempt.CompletedAt = &now
	attempt.ElapsedSeconds = elapsed
	attempt.CorrectCount = correct
	attempt.TotalQuestions = len(quiz.Questions)
	attempt.Score = score.FinalScore
	attempt.Points = score.PointsEarned
	if err := s.attempts.Complete(ctx, attempt); err != nil {
		return domain.AttemptResult{}, err
	}

	result := domain.AttemptResult{
		AttemptID:      attempt.ID,
		QuizID:         attempt.QuizID,
		UserID:         attempt.UserID,
		CorrectCount:   correct,
		TotalQuestions: len(quiz.Questions),
		Score:          score.FinalScore,
		Points:         score.PointsEarned,
		SpeedBonus:     score.SpeedBonus,
		Perfect:        score.Perfect,
	}

	// Guests get a score and nothing else: no stats row, no streak, no badges.
	if attempt.IsGuest() {
		return result, nil
	}

	stats, err := s.users.GetUser(ctx, attempt.UserID)
	if err != nil {
		return domain.AttemptResult{}, err
	}

	newStreak, _ := UpdateStreak(stats.LastActivityDate, now, stats.Streak)
	updated, err := s.users.ApplyCompletion(ctx, attempt.UserID, newStreak, now, score.PointsEarned)
	if err != nil {
		return domain.AttemptResult{}, err
	}
	result.Streak = updated.Streak

	result.NewAchievements = s.evaluateAndAward(ctx, attempt, score, elapsed, updated)

	s.broadcast(attempt.UserID, result)
	return result, nil
}

// evaluateAndAward runs the achievement step against post-update aggregates.
// Failures here are surfaced in the log and swallowed; whatever was already
// awarded is still reported.
func (s *ProgressService) evaluateAndAward(ctx context.Context, attempt domain.Attempt, score ScoreResult, elapsed int, stats domain.UserStats) []string {
	catalog, err := s.catalog.GetCatalog(ctx)
	if err != nil {
		log.Printf("load achievement catalog for user %s: %v", attempt.UserID, err)
		return nil
	}
	owned, err := s.awarder.store.Owned(ctx, attempt.UserID)
	if err != nil {
		log.Printf("load awards for user %s: %v", attempt.UserID, err)
		return nil
	}

	qualified := EvaluateAchievements(AttemptEvent{
		Score:            score.FinalScore,
		Perfect:          score.Perfect,
		ElapsedSeconds:   elapsed,
		Grade:            stats.Grade,
		Streak:           stats.Streak,
		CompletedQuizzes: stats.CompletedQuizzes,
	}, catalog, owned)
	if len(qualified) == 0 {
		return nil
	}

	awarded, err := s.awarder.Award(ctx, attempt.UserID, qualified)
	if err != nil {
		log.Printf("award achievements for user %s: %v", attempt.UserID, err)
	}
	return awarded
}

// Subscribe returns a channel that receives attempt results for a user.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *ProgressService) Subscribe(_ context.Context, userID string) (<-chan domain.AttemptResult, func()) {
	ch := make(chan domain.AttemptResult, 8)

	s.mu.Lock()
	subs, ok := s.feeds[userID]
	if !ok {
		subs = make(map[chan domain.AttemptResult]struct{})
		s.feeds[userID] = subs
	}
	subs[ch] = struct{}{}
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if subs, ok := s.feeds[userID]; ok {
			if _, ok := subs[ch]; ok {
				delete(subs, ch)
				close(ch)
			}
			if len(subs) == 0 {
				delete(s.feeds, userID)
			}
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *ProgressService) broadcast(userID string, result domain.AttemptResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.feeds[userID] {
		select {
		case ch <- result:
		default:
			// Drop the stale update so a slow subscriber never blocks completion.
			select {
			case <-ch:
			default:
			}
			ch <- result
		}
	}
}
