package service

import (
	"context"
	"errors"
	"testing"

	"github.com/provigil/proctor-backend/internal/model"
)

func TestAllowanceAddAndRead(t *testing.T) {
	e := newEnv(t)
	exam := e.addExam(t, proctoredExam())
	user := e.addUser(t, "learner", "learner@example.com")
	ctx := context.Background()

	_, err := e.allowanceSvc.Add(ctx, exam.ID, &model.AddAllowanceRequest{
		Username: "learner",
		Key:      string(model.AllowanceAdditionalTime),
		Value:    "15",
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	mins, err := e.allowanceSvc.AdditionalTimeGranted(ctx, exam.ID, user.ID)
	if err != nil || mins != 15 {
		t.Errorf("additional time = %d, %v; want 15", mins, err)
	}
}

func TestAllowanceRejectsBadInput(t *testing.T) {
	e := newEnv(t)
	exam := e.addExam(t, proctoredExam())
	e.addUser(t, "learner", "learner@example.com")
	ctx := context.Background()

	cases := []struct {
		name string
		req  model.AddAllowanceRequest
		want error
	}{
		{"unknown key", model.AddAllowanceRequest{Username: "learner", Key: "free_lunch", Value: "1"}, ErrInvalidAllowanceValue},
		{"negative minutes", model.AddAllowanceRequest{Username: "learner", Key: string(model.AllowanceAdditionalTime), Value: "-5"}, ErrInvalidAllowanceValue},
		{"multiplier below one", model.AddAllowanceRequest{Username: "learner", Key: string(model.AllowanceTimeMultiplier), Value: "0.5"}, ErrInvalidAllowanceValue},
		{"unknown user", model.AddAllowanceRequest{Username: "ghost", Key: string(model.AllowanceAdditionalTime), Value: "5"}, ErrUserNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := e.allowanceSvc.Add(ctx, exam.ID, &tc.req); !errors.Is(err, tc.want) {
				t.Errorf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestAllowanceInactiveExam(t *testing.T) {
	e := newEnv(t)
	exam := proctoredExam()
	exam.IsActive = false
	seeded := e.addExam(t, exam)
	e.addUser(t, "learner", "learner@example.com")

	_, err := e.allowanceSvc.Add(context.Background(), seeded.ID, &model.AddAllowanceRequest{
		Username: "learner",
		Key:      string(model.AllowanceAdditionalTime),
		Value:    "5",
	})
	if !errors.Is(err, ErrExamNotActive) {
		t.Errorf("err = %v, want ErrExamNotActive", err)
	}
}

func TestAllowanceRegrantArchivesPriorValue(t *testing.T) {
	e := newEnv(t)
	exam := e.addExam(t, proctoredExam())
	e.addUser(t, "learner", "learner@example.com")
	ctx := context.Background()

	add := func(value string) {
		t.Helper()
		if _, err := e.allowanceSvc.Add(ctx, exam.ID, &model.AddAllowanceRequest{
			Username: "learner",
			Key:      string(model.AllowanceAdditionalTime),
			Value:    value,
		}); err != nil {
			t.Fatalf("add %s: %v", value, err)
		}
	}

	add("10")
	if len(e.allowances.snapshots) != 0 {
		t.Errorf("snapshots after first grant = %d, want 0", len(e.allowances.snapshots))
	}
	add("20")
	add("30")
	if len(e.allowances.snapshots) != 2 {
		t.Fatalf("snapshots = %d, want 2", len(e.allowances.snapshots))
	}
	if e.allowances.snapshots[0].Value != "10" || e.allowances.snapshots[1].Value != "20" {
		t.Errorf("archived values = %s, %s; want 10, 20",
			e.allowances.snapshots[0].Value, e.allowances.snapshots[1].Value)
	}
}

func TestAllowanceRemoveIsIdempotent(t *testing.T) {
	e := newEnv(t)
	exam := e.addExam(t, proctoredExam())
	user := e.addUser(t, "learner", "learner@example.com")
	ctx := context.Background()

	_, _ = e.allowanceSvc.Add(ctx, exam.ID, &model.AddAllowanceRequest{
		Username: "learner",
		Key:      string(model.AllowanceAdditionalTime),
		Value:    "10",
	})
	for i := 0; i < 2; i++ {
		if err := e.allowanceSvc.Remove(ctx, exam.ID, user.ID, string(model.AllowanceAdditionalTime)); err != nil {
			t.Fatalf("remove #%d: %v", i+1, err)
		}
	}
	mins, _ := e.allowanceSvc.AdditionalTimeGranted(ctx, exam.ID, user.ID)
	if mins != 0 {
		t.Errorf("additional time after removal = %d, want 0", mins)
	}
	// Removal archives the value it deleted, once.
	if len(e.allowances.snapshots) != 1 {
		t.Errorf("snapshots = %d, want 1", len(e.allowances.snapshots))
	}
}

func TestAllowanceAbsentReadsAreZeroValues(t *testing.T) {
	e := newEnv(t)
	exam := e.addExam(t, proctoredExam())
	ctx := context.Background()

	mins, err := e.allowanceSvc.AdditionalTimeGranted(ctx, exam.ID, 7)
	if err != nil || mins != 0 {
		t.Errorf("additional time = %d, %v; want 0, nil", mins, err)
	}
	mult, ok, err := e.allowanceSvc.TimeMultiplier(ctx, exam.ID, 7)
	if err != nil || ok || mult != 0 {
		t.Errorf("multiplier = %v, %v, %v; want absent", mult, ok, err)
	}
	policy, err := e.allowanceSvc.ReviewPolicyException(ctx, exam.ID, 7)
	if err != nil || policy != "" {
		t.Errorf("policy = %q, %v; want empty", policy, err)
	}
}
