package model

import (
	"fmt"
	"strconv"
	"time"
)

// AllowanceKey is the closed set of per-student override kinds.
// Each key carries its own value validator; free-form keys are rejected.
type AllowanceKey string

const (
	// AllowanceAdditionalTime grants extra whole minutes on top of the
	// exam's base time limit. Value: non-negative integer string.
	AllowanceAdditionalTime AllowanceKey = "additional_time_granted"
	// AllowanceTimeMultiplier scales the computed time limit.
	// Value: decimal string >= 1, e.g. "1.5".
	AllowanceTimeMultiplier AllowanceKey = "time_multiplier"
	// AllowanceReviewPolicyException attaches free-text reviewer guidance
	// for this student's attempts.
	AllowanceReviewPolicyException AllowanceKey = "review_policy_exception"
)

// ParseAllowanceKey validates a raw key string against the closed set.
func ParseAllowanceKey(raw string) (AllowanceKey, error) {
	switch AllowanceKey(raw) {
	case AllowanceAdditionalTime, AllowanceTimeMultiplier, AllowanceReviewPolicyException:
		return AllowanceKey(raw), nil
	}
	return "", fmt.Errorf("unknown allowance key %q", raw)
}

// ValidateValue checks a candidate value against the key's rules.
// Invalid values are rejected before persisting, never coerced.
func (k AllowanceKey) ValidateValue(value string) error {
	switch k {
	case AllowanceAdditionalTime:
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("%s requires a non-negative integer, got %q", k, value)
		}
	case AllowanceTimeMultiplier:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil || f < 1 {
			return fmt.Errorf("%s requires a decimal >= 1, got %q", k, value)
		}
	case AllowanceReviewPolicyException:
		if value == "" {
			return fmt.Errorf("%s requires a non-empty value", k)
		}
	default:
		return fmt.Errorf("unknown allowance key %q", k)
	}
	return nil
}

// Allowance is a per-(user, exam, key) override on top of an exam's
// default rules.
type Allowance struct {
	ID        int64        `json:"id"`
	ExamID    int64        `json:"exam_id"`
	UserID    int          `json:"user_id"`
	Key       AllowanceKey `json:"key"`
	Value     string       `json:"value"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// AllowanceSnapshot is one archived pre-image of an allowance row.
// The first grant writes no snapshot; every later mutation writes one.
type AllowanceSnapshot struct {
	ID          int64        `json:"id"`
	AllowanceID int64        `json:"allowance_id"`
	ExamID      int64        `json:"exam_id"`
	UserID      int          `json:"user_id"`
	Key         AllowanceKey `json:"key"`
	Value       string       `json:"value"`
	CreatedAt   time.Time    `json:"created_at"`
}

// Snapshot copies the allowance's current field values into an archive row.
func (a *Allowance) Snapshot() *AllowanceSnapshot {
	return &AllowanceSnapshot{
		AllowanceID: a.ID,
		ExamID:      a.ExamID,
		UserID:      a.UserID,
		Key:         a.Key,
		Value:       a.Value,
	}
}

// AddAllowanceRequest is the staff payload for granting an allowance.
// The student is addressed by username so staff never need raw ids.
type AddAllowanceRequest struct {
	Username string `json:"username" binding:"required,max=255"`
	Key      string `json:"key" binding:"required,max=100"`
	Value    string `json:"value" binding:"required,max=255"`
}
