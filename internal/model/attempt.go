package model

import (
	"time"
)

// AttemptStatus enumerates the states an exam attempt moves through.
type AttemptStatus string

const (
	// In-progress group.
	AttemptStatusEligible        AttemptStatus = "eligible"
	AttemptStatusCreated         AttemptStatus = "created"
	AttemptStatusDownloadClicked AttemptStatus = "download_software_clicked"
	AttemptStatusReadyToStart    AttemptStatus = "ready_to_start"
	AttemptStatusStarted         AttemptStatus = "started"
	AttemptStatusReadyToSubmit   AttemptStatus = "ready_to_submit"

	// Completed group. Once an attempt lands in this group it can never
	// return to the in-progress group.
	AttemptStatusDeclined             AttemptStatus = "declined"
	AttemptStatusTimedOut             AttemptStatus = "timed_out"
	AttemptStatusSubmitted            AttemptStatus = "submitted"
	AttemptStatusSecondReviewRequired AttemptStatus = "second_review_required"
	AttemptStatusVerified             AttemptStatus = "verified"
	AttemptStatusRejected             AttemptStatus = "rejected"
	AttemptStatusError                AttemptStatus = "error"
	AttemptStatusExpired              AttemptStatus = "expired"
)

// allStatuses is the closed vocabulary of attempt statuses.
var allStatuses = map[AttemptStatus]bool{
	AttemptStatusEligible:             true,
	AttemptStatusCreated:              true,
	AttemptStatusDownloadClicked:      true,
	AttemptStatusReadyToStart:         true,
	AttemptStatusStarted:              true,
	AttemptStatusReadyToSubmit:        true,
	AttemptStatusDeclined:             true,
	AttemptStatusTimedOut:             true,
	AttemptStatusSubmitted:            true,
	AttemptStatusSecondReviewRequired: true,
	AttemptStatusVerified:             true,
	AttemptStatusRejected:             true,
	AttemptStatusError:                true,
	AttemptStatusExpired:              true,
}

// IsValid reports whether s is a known attempt status.
func (s AttemptStatus) IsValid() bool {
	return allStatuses[s]
}

// IsCompleted reports whether s belongs to the completed group.
// Note timed_out counts as completed even though it is never stored:
// it is rewritten to submitted before any persistence.
func (s AttemptStatus) IsCompleted() bool {
	switch s {
	case AttemptStatusDeclined, AttemptStatusTimedOut, AttemptStatusSubmitted,
		AttemptStatusSecondReviewRequired, AttemptStatusVerified,
		AttemptStatusRejected, AttemptStatusError, AttemptStatusExpired:
		return true
	}
	return false
}

// IsIncomplete reports whether s belongs to the in-progress group.
func (s AttemptStatus) IsIncomplete() bool {
	switch s {
	case AttemptStatusEligible, AttemptStatusCreated, AttemptStatusDownloadClicked,
		AttemptStatusReadyToStart, AttemptStatusStarted, AttemptStatusReadyToSubmit:
		return true
	}
	return false
}

// NeedsCreditUpdate reports whether entering s must update the learner's
// credit requirement for the exam's course.
func (s AttemptStatus) NeedsCreditUpdate() bool {
	switch s {
	case AttemptStatusVerified, AttemptStatusRejected, AttemptStatusDeclined,
		AttemptStatusSubmitted, AttemptStatusError:
		return true
	}
	return false
}

// NeedsGradeOverride reports whether entering s must force a zero grade
// override for the exam content.
func (s AttemptStatus) NeedsGradeOverride() bool {
	return s == AttemptStatusRejected
}

// IsCascadableFailure reports whether entering s must auto-decline the
// learner's other gated exams in the same course.
func (s AttemptStatus) IsCascadableFailure() bool {
	return s == AttemptStatusDeclined
}

// Attempt represents one learner's run at a specific exam.
// At most one live attempt per (user, exam) exists at any instant;
// the database unique constraint is the authoritative guard.
type Attempt struct {
	ID                   int64         `json:"id"`
	ExamID               int64         `json:"exam_id"`
	UserID               int           `json:"user_id"`
	Status               AttemptStatus `json:"status"`
	AttemptCode          string        `json:"attempt_code"`
	ExternalID           *string       `json:"external_id,omitempty"`
	StartedAt            *time.Time    `json:"started_at,omitempty"`
	CompletedAt          *time.Time    `json:"completed_at,omitempty"`
	AllowedTimeLimitMins int           `json:"allowed_time_limit_mins"`
	TakingAsProctored    bool          `json:"taking_as_proctored"`
	IsSampleAttempt      bool          `json:"is_sample_attempt"`
	// ReviewPolicyID is a snapshot pointer, not a foreign key: the
	// referenced policy row may be archived by the time a review lands.
	ReviewPolicyID     *string   `json:"review_policy_id,omitempty"`
	StatusAcknowledged bool      `json:"status_acknowledged"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// AttemptSnapshot is one archived pre-image of an attempt row.
// Snapshots are append-only and survive deletion of the live row.
type AttemptSnapshot struct {
	ID                   int64         `json:"id"`
	AttemptID            int64         `json:"attempt_id"`
	ExamID               int64         `json:"exam_id"`
	UserID               int           `json:"user_id"`
	Status               AttemptStatus `json:"status"`
	AttemptCode          string        `json:"attempt_code"`
	ExternalID           *string       `json:"external_id,omitempty"`
	StartedAt            *time.Time    `json:"started_at,omitempty"`
	CompletedAt          *time.Time    `json:"completed_at,omitempty"`
	AllowedTimeLimitMins int           `json:"allowed_time_limit_mins"`
	TakingAsProctored    bool          `json:"taking_as_proctored"`
	IsSampleAttempt      bool          `json:"is_sample_attempt"`
	ReviewPolicyID       *string       `json:"review_policy_id,omitempty"`
	StatusAcknowledged   bool          `json:"status_acknowledged"`
	CreatedAt            time.Time     `json:"created_at"`
}

// Snapshot copies the attempt's current field values into an archive row.
func (a *Attempt) Snapshot() *AttemptSnapshot {
	return &AttemptSnapshot{
		AttemptID:            a.ID,
		ExamID:               a.ExamID,
		UserID:               a.UserID,
		Status:               a.Status,
		AttemptCode:          a.AttemptCode,
		ExternalID:           a.ExternalID,
		StartedAt:            a.StartedAt,
		CompletedAt:          a.CompletedAt,
		AllowedTimeLimitMins: a.AllowedTimeLimitMins,
		TakingAsProctored:    a.TakingAsProctored,
		IsSampleAttempt:      a.IsSampleAttempt,
		ReviewPolicyID:       a.ReviewPolicyID,
		StatusAcknowledged:   a.StatusAcknowledged,
	}
}

// TimeRemaining returns how long the attempt's clock still has to run at
// the given instant. Zero for an attempt that has not started.
func (a *Attempt) TimeRemaining(now time.Time) time.Duration {
	if a.StartedAt == nil {
		return 0
	}
	deadline := a.StartedAt.Add(time.Duration(a.AllowedTimeLimitMins) * time.Minute)
	if remaining := deadline.Sub(now); remaining > 0 {
		return remaining
	}
	return 0
}

// CreateAttemptRequest is the payload for a student beginning an exam.
type CreateAttemptRequest struct {
	TakingAsProctored bool `json:"taking_as_proctored"`
}
