package model

import (
	"encoding/json"
	"time"
)

// ReviewStatus is the internal classification of a vendor review verdict.
type ReviewStatus string

const (
	ReviewStatusPassed      ReviewStatus = "passed"
	ReviewStatusViolation   ReviewStatus = "violation"
	ReviewStatusSuspicious  ReviewStatus = "suspicious"
	ReviewStatusNotReviewed ReviewStatus = "not_reviewed"
)

// Vendor-native review status vocabulary. Callback payloads carrying any
// other value are rejected before persistence.
const (
	VendorReviewClean          = "Clean"
	VendorReviewNotSuspicious  = "Not Suspicious"
	VendorReviewRulesViolation = "Rules Violation"
	VendorReviewSuspicious     = "Suspicious"
	VendorReviewNotReviewed    = "Not Reviewed"
)

// vendorStatusMap is the fixed vendor-to-internal translation table.
var vendorStatusMap = map[string]ReviewStatus{
	VendorReviewClean:          ReviewStatusPassed,
	VendorReviewNotSuspicious:  ReviewStatusPassed,
	VendorReviewRulesViolation: ReviewStatusViolation,
	VendorReviewSuspicious:     ReviewStatusSuspicious,
	VendorReviewNotReviewed:    ReviewStatusNotReviewed,
}

// MapVendorReviewStatus translates a vendor-native status string into the
// internal enum. The second return is false for unrecognized statuses.
func MapVendorReviewStatus(vendor string) (ReviewStatus, bool) {
	s, ok := vendorStatusMap[vendor]
	return s, ok
}

// IsPassing reports whether the verdict clears the attempt.
func (s ReviewStatus) IsPassing() bool {
	return s == ReviewStatusPassed
}

// Review is the verdict an external proctoring reviewer returned for one
// attempt, correlated by attempt_code rather than a structural reference:
// the attempt may already be archived when the review arrives.
type Review struct {
	ID           int64        `json:"id"`
	AttemptCode  string       `json:"attempt_code"`
	ReviewStatus ReviewStatus `json:"review_status"`
	VendorStatus string       `json:"vendor_status"`
	// RawData is the payload as received, after sensitive-field redaction.
	RawData json.RawMessage `json:"raw_data,omitempty"`
	// ReviewedBy is nil for server-to-server callbacks and set to the
	// staff user id when a human edits the review.
	ReviewedBy *int `json:"reviewed_by,omitempty"`
	// Exam and student are denormalized for lookup and search.
	ExamID    int64           `json:"exam_id"`
	UserID    int             `json:"user_id"`
	Comments  []ReviewComment `json:"comments,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// ReviewComment is one timestamped reviewer annotation within a review.
type ReviewComment struct {
	ID       int64  `json:"id"`
	ReviewID int64  `json:"review_id"`
	StartMs  int    `json:"start_ms"`
	StopMs   int    `json:"stop_ms"`
	Duration int    `json:"duration"`
	Comment  string `json:"comment"`
	Status   string `json:"status"`
}

// ReviewSnapshot is one archived pre-image of a review row, written
// before any update when review resubmission is permitted.
type ReviewSnapshot struct {
	ID           int64           `json:"id"`
	ReviewID     int64           `json:"review_id"`
	AttemptCode  string          `json:"attempt_code"`
	ReviewStatus ReviewStatus    `json:"review_status"`
	VendorStatus string          `json:"vendor_status"`
	RawData      json.RawMessage `json:"raw_data,omitempty"`
	ReviewedBy   *int            `json:"reviewed_by,omitempty"`
	ExamID       int64           `json:"exam_id"`
	UserID       int             `json:"user_id"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Snapshot copies the review's current field values into an archive row.
func (r *Review) Snapshot() *ReviewSnapshot {
	return &ReviewSnapshot{
		ReviewID:     r.ID,
		AttemptCode:  r.AttemptCode,
		ReviewStatus: r.ReviewStatus,
		VendorStatus: r.VendorStatus,
		RawData:      r.RawData,
		ReviewedBy:   r.ReviewedBy,
		ExamID:       r.ExamID,
		UserID:       r.UserID,
	}
}

// SaveReviewRequest is the staff payload for editing a review verdict.
type SaveReviewRequest struct {
	VendorStatus string `json:"vendor_status" binding:"required,max=100"`
	// AllowStatusUpdateOnFail lets a human reviewer push a failing
	// verdict straight to rejected even under the second-review policy.
	AllowStatusUpdateOnFail bool `json:"allow_status_update_on_fail"`
}
