package app

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"itqan-progress-service/internal/domain"
)

type scriptedAwardStore struct {
	newly map[string]bool
	fail  map[string]error
	calls []string
}

func (s *scriptedAwardStore) Award(_ context.Context, _, achievementID string) (bool, error) {
	s.calls = append(s.calls, achievementID)
	if err, ok := s.fail[achievementID]; ok {
		return false, err
	}
	return s.newly[achievementID], nil
}

func (s *scriptedAwardStore) Owned(context.Context, string) (map[string]struct{}, error) {
	return nil, nil
}

func TestAwarderSkipsDuplicatesSilently(t *testing.T) {
	store := &scriptedAwardStore{newly: map[string]bool{"a": true, "b": false, "c": true}}
	awarder := NewAwarder(store)

	awarded, err := awarder.Award(context.Background(), "u1", []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("duplicates are not errors: %v", err)
	}
	if !reflect.DeepEqual(awarded, []string{"a", "c"}) {
		t.Fatalf("expected [a c], got %v", awarded)
	}
}

func TestAwarderContinuesPastFailures(t *testing.T) {
	boom := errors.New("connection reset")
	store := &scriptedAwardStore{
		newly: map[string]bool{"a": true, "c": true},
		fail:  map[string]error{"b": boom},
	}
	awarder := NewAwarder(store)

	awarded, err := awarder.Award(context.Background(), "u1", []string{"a", "b", "c"})
	if !reflect.DeepEqual(awarded, []string{"a", "c"}) {
		t.Fatalf("the rest of the batch should still be awarded, got %v", awarded)
	}

	var awardErr *domain.AwardError
	if !errors.As(err, &awardErr) {
		t.Fatalf("expected *domain.AwardError, got %v", err)
	}
	if awardErr.AchievementID != "b" || !errors.Is(err, boom) {
		t.Fatalf("expected wrapped failure for b, got %+v", awardErr)
	}
	if !reflect.DeepEqual(store.calls, []string{"a", "b", "c"}) {
		t.Fatalf("expected every achievement attempted, got %v", store.calls)
	}
}
