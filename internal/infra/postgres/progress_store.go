package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"itqan-progress-service/internal/domain"
)

// ProgressStore implements the attempt, user, and award stores on Postgres.
// Concurrency correctness leans entirely on the database: attempt completion
// is a guarded UPDATE, point increments are atomic adds, and award
// uniqueness comes from the user_achievements primary key.
type ProgressStore struct {
	pool *pgxpool.Pool
}

func NewProgressStore(pool *pgxpool.Pool) *ProgressStore {
	return &ProgressStore{pool: pool}
}

func (s *ProgressStore) Create(ctx context.Context, attempt domain.Attempt) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO attempts (id, quiz_id, user_id, guest_name, started_at, total_questions)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5, $6)`,
		attempt.ID, attempt.QuizID, attempt.UserID, attempt.GuestName, attempt.StartedAt, attempt.TotalQuestions)
	if err != nil {
		return fmt.Errorf("create attempt: %w", err)
	}
	return nil
}

func (s *ProgressStore) Get(ctx context.Context, id string) (domain.Attempt, error) {
	var (
		attempt   domain.Attempt
		userID    *string
		guestName *string
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, quiz_id, user_id, guest_name, started_at, completed_at,
		       elapsed_seconds, correct_count, total_questions, score, points
		FROM attempts WHERE id=$1`, id).Scan(
		&attempt.ID, &attempt.QuizID, &userID, &guestName, &attempt.StartedAt, &attempt.CompletedAt,
		&attempt.ElapsedSeconds, &attempt.CorrectCount, &attempt.TotalQuestions, &attempt.Score, &attempt.Points)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	if err != nil {
		return domain.Attempt{}, fmt.Errorf("get attempt: %w", err)
	}
	if userID != nil {
		attempt.UserID = *userID
	}
	if guestName != nil {
		attempt.GuestName = *guestName
	}
	return attempt, nil
}

// Complete writes the final score exactly once. The completed_at IS NULL
// guard makes the transition one-way even under concurrent submissions.
func (s *ProgressStore) Complete(ctx context.Context, attempt domain.Attempt) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE attempts
		SET completed_at=$2, elapsed_seconds=$3, correct_count=$4,
		    total_questions=$5, score=$6, points=$7
		WHERE id=$1 AND completed_at IS NULL`,
		attempt.ID, attempt.CompletedAt, attempt.ElapsedSeconds, attempt.CorrectCount,
		attempt.TotalQuestions, attempt.Score, attempt.Points)
	if err != nil {
		return fmt.Errorf("complete attempt: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.Get(ctx, attempt.ID); errors.Is(err, domain.ErrAttemptNotFound) {
			return domain.ErrAttemptNotFound
		}
		return domain.ErrAttemptCompleted
	}
	return nil
}

func (s *ProgressStore) GetUser(ctx context.Context, userID string) (domain.UserStats, error) {
	stats := domain.UserStats{UserID: userID}
	err := s.pool.QueryRow(ctx, `
		SELECT grade, points, streak, last_activity_date, completed_quizzes
		FROM users WHERE id=$1`, userID).Scan(
		&stats.Grade, &stats.Points, &stats.Streak, &stats.LastActivityDate, &stats.CompletedQuizzes)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.UserStats{}, domain.ErrUserNotFound
	}
	if err != nil {
		return domain.UserStats{}, fmt.Errorf("get user stats: %w", err)
	}
	return stats, nil
}

// ApplyCompletion updates the streak and adds the attempt's points in one
// atomic statement, returning the post-update row the evaluator needs.
func (s *ProgressStore) ApplyCompletion(ctx context.Context, userID string, streak int, activityDate time.Time, points int) (domain.UserStats, error) {
	stats := domain.UserStats{UserID: userID}
	err := s.pool.QueryRow(ctx, `
		UPDATE users
		SET streak=$2, last_activity_date=$3, points=points+$4,
		    completed_quizzes=completed_quizzes+1
		WHERE id=$1
		RETURNING grade, points, streak, last_activity_date, completed_quizzes`,
		userID, streak, activityDate.UTC(), points).Scan(
		&stats.Grade, &stats.Points, &stats.Streak, &stats.LastActivityDate, &stats.CompletedQuizzes)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.UserStats{}, domain.ErrUserNotFound
	}
	if err != nil {
		return domain.UserStats{}, fmt.Errorf("apply completion: %w", err)
	}
	return stats, nil
}

// Award inserts the (user, achievement) pair and credits the reward in one
// transaction. A duplicate pair is a silent no-op: ON CONFLICT DO NOTHING
// affects zero rows and no points move.
func (s *ProgressStore) Award(ctx context.Context, userID, achievementID string) (bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin award: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		INSERT INTO user_achievements (user_id, achievement_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, achievement_id) DO NOTHING`,
		userID, achievementID)
	if err != nil {
		return false, fmt.Errorf("insert award: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	_, err = tx.Exec(ctx, `
		UPDATE users
		SET points = points + (SELECT reward FROM achievements WHERE id=$2)
		WHERE id=$1`,
		userID, achievementID)
	if err != nil {
		return false, fmt.Errorf("credit reward: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit award: %w", err)
	}
	return true, nil
}

func (s *ProgressStore) Owned(ctx context.Context, userID string) (map[string]struct{}, error) {
	rows, err := s.pool.Query(ctx, `SELECT achievement_id FROM user_achievements WHERE user_id=$1`, userID)
	if err != nil {
		return nil, fmt.Errorf("load awards: %w", err)
	}
	defer rows.Close()

	owned := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan award: %w", err)
		}
		owned[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load awards: %w", err)
	}
	return owned, nil
}
