package model

import (
	"testing"
	"time"
)

func TestStatusGroupsArePartition(t *testing.T) {
	for s := range allStatuses {
		if s.IsCompleted() == s.IsIncomplete() {
			t.Errorf("status %q must be in exactly one group", s)
		}
	}
}

func TestCompletedGroup(t *testing.T) {
	completed := []AttemptStatus{
		AttemptStatusDeclined, AttemptStatusTimedOut, AttemptStatusSubmitted,
		AttemptStatusSecondReviewRequired, AttemptStatusVerified,
		AttemptStatusRejected, AttemptStatusError, AttemptStatusExpired,
	}
	for _, s := range completed {
		if !s.IsCompleted() {
			t.Errorf("%q should be completed", s)
		}
	}

	incomplete := []AttemptStatus{
		AttemptStatusEligible, AttemptStatusCreated, AttemptStatusDownloadClicked,
		AttemptStatusReadyToStart, AttemptStatusStarted, AttemptStatusReadyToSubmit,
	}
	for _, s := range incomplete {
		if !s.IsIncomplete() {
			t.Errorf("%q should be incomplete", s)
		}
	}
}

func TestNeedsCreditUpdate(t *testing.T) {
	want := map[AttemptStatus]bool{
		AttemptStatusVerified:             true,
		AttemptStatusRejected:             true,
		AttemptStatusDeclined:             true,
		AttemptStatusSubmitted:            true,
		AttemptStatusError:                true,
		AttemptStatusSecondReviewRequired: false,
		AttemptStatusStarted:              false,
		AttemptStatusExpired:              false,
	}
	for s, expected := range want {
		if got := s.NeedsCreditUpdate(); got != expected {
			t.Errorf("NeedsCreditUpdate(%q) = %v, want %v", s, got, expected)
		}
	}
}

func TestNeedsGradeOverride(t *testing.T) {
	if !AttemptStatusRejected.NeedsGradeOverride() {
		t.Error("rejected should require a grade override")
	}
	for s := range allStatuses {
		if s != AttemptStatusRejected && s.NeedsGradeOverride() {
			t.Errorf("%q should not require a grade override", s)
		}
	}
}

func TestIsCascadableFailure(t *testing.T) {
	if !AttemptStatusDeclined.IsCascadableFailure() {
		t.Error("declined should cascade")
	}
	if AttemptStatusRejected.IsCascadableFailure() {
		t.Error("rejected should not cascade")
	}
}

func TestIsValid(t *testing.T) {
	if AttemptStatus("banana").IsValid() {
		t.Error("unknown status should be invalid")
	}
	if !AttemptStatusCreated.IsValid() {
		t.Error("created should be valid")
	}
}

func TestTimeRemaining(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	a := &Attempt{AllowedTimeLimitMins: 30}
	if got := a.TimeRemaining(now); got != 0 {
		t.Errorf("unstarted attempt should have 0 remaining, got %v", got)
	}

	started := now.Add(-10 * time.Minute)
	a.StartedAt = &started
	if got := a.TimeRemaining(now); got != 20*time.Minute {
		t.Errorf("expected 20m remaining, got %v", got)
	}

	expired := now.Add(-45 * time.Minute)
	a.StartedAt = &expired
	if got := a.TimeRemaining(now); got != 0 {
		t.Errorf("elapsed attempt should clamp to 0, got %v", got)
	}
}
