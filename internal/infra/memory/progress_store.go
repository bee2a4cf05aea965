package memory

import (
	"context"
	"sync"
	"time"

	"itqan-progress-service/internal/domain"
)

// ProgressStore is an in-memory implementation of the attempt, user, and
// award stores, used in demo mode and tests. A single mutex stands in for
// the database's transactional guarantees: completion happens at most once
// per attempt, point increments never race, and the (user, achievement)
// pair is unique.
type ProgressStore struct {
	mu       sync.Mutex
	attempts map[string]domain.Attempt
	users    map[string]domain.UserStats
	awards   map[string]map[string]struct{}
	rewards  map[string]int
}

func NewProgressStore() *ProgressStore {
	return &ProgressStore{
		attempts: make(map[string]domain.Attempt),
		users:    make(map[string]domain.UserStats),
		awards:   make(map[string]map[string]struct{}),
		rewards:  make(map[string]int),
	}
}

// SeedUser registers a user's aggregate row.
func (s *ProgressStore) SeedUser(stats domain.UserStats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[stats.UserID] = stats
}

// SeedRewards registers the point reward per achievement so awards can
// credit points the way the database trigger-free transaction does.
func (s *ProgressStore) SeedRewards(defs []domain.Achievement) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, def := range defs {
		s.rewards[def.ID] = def.Reward
	}
}

func (s *ProgressStore) Create(_ context.Context, attempt domain.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts[attempt.ID] = attempt
	return nil
}

func (s *ProgressStore) Get(_ context.Context, id string) (domain.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	attempt, ok := s.attempts[id]
	if !ok {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	return attempt, nil
}

func (s *ProgressStore) Complete(_ context.Context, attempt domain.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.attempts[attempt.ID]
	if !ok {
		return domain.ErrAttemptNotFound
	}
	if existing.CompletedAt != nil {
		return domain.ErrAttemptCompleted
	}
	s.attempts[attempt.ID] = attempt
	return nil
}

func (s *ProgressStore) GetUser(ctx context.Context, userID string) (domain.UserStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userLocked(userID)
}

func (s *ProgressStore) ApplyCompletion(_ context.Context, userID string, streak int, activityDate time.Time, points int) (domain.UserStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats, err := s.userLocked(userID)
	if err != nil {
		return domain.UserStats{}, err
	}
	day := activityDate.UTC().Truncate(24 * time.Hour)
	stats.Streak = streak
	stats.LastActivityDate = &day
	stats.Points += points
	stats.CompletedQuizzes++
	s.users[userID] = stats
	return stats, nil
}

func (s *ProgressStore) Award(_ context.Context, userID, achievementID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats, err := s.userLocked(userID)
	if err != nil {
		return false, err
	}
	owned, ok := s.awards[userID]
	if !ok {
		owned = make(map[string]struct{})
		s.awards[userID] = owned
	}
	if _, has := owned[achievementID]; has {
		return false, nil
	}
	owned[achievementID] = struct{}{}
	stats.Points += s.rewards[achievementID]
	s.users[userID] = stats
	return true, nil
}

func (s *ProgressStore) Owned(_ context.Context, userID string) (map[string]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	owned := make(map[string]struct{}, len(s.awards[userID]))
	for id := range s.awards[userID] {
		owned[id] = struct{}{}
	}
	return owned, nil
}

func (s *ProgressStore) userLocked(userID string) (domain.UserStats, error) {
	stats, ok := s.users[userID]
	if !ok {
		return domain.UserStats{}, domain.ErrUserNotFound
	}
	return stats, nil
}
