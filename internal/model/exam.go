package model

import (
	"time"
)

// Exam represents a timed/proctored exam definition. An exam is identified
// by its (course_id, content_id) pair; the pair is unique among exams.
// Exams are soft-disabled via is_active rather than deleted so the audit
// trail of their attempts stays resolvable.
type Exam struct {
	ID            int64      `json:"id"`
	CourseID      string     `json:"course_id"`
	ContentID     string     `json:"content_id"`
	ExamName      string     `json:"exam_name"`
	TimeLimitMins int        `json:"time_limit_mins"`
	DueDate       *time.Time `json:"due_date,omitempty"`
	IsProctored   bool       `json:"is_proctored"`
	IsPractice    bool       `json:"is_practice_exam"`
	IsActive      bool       `json:"is_active"`
	HideAfterDue  bool       `json:"hide_after_due"`
	// Backend selects the proctoring vendor integration by name.
	// Empty means the configured default.
	Backend string `json:"backend,omitempty"`
	// ExternalID is the vendor-assigned identifier for the exam's
	// mirrored copy, populated after the first on-save sync.
	ExternalID *string   `json:"external_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// CreateExamRequest is the payload for registering a new exam.
type CreateExamRequest struct {
	CourseID      string     `json:"course_id" binding:"required,max=255"`
	ContentID     string     `json:"content_id" binding:"required,max=255"`
	ExamName      string     `json:"exam_name" binding:"required,min=1,max=255"`
	TimeLimitMins int        `json:"time_limit_mins" binding:"required,min=1,max=480"`
	DueDate       *time.Time `json:"due_date" binding:"omitempty"`
	IsProctored   bool       `json:"is_proctored"`
	IsPractice    bool       `json:"is_practice_exam"`
	IsActive      *bool      `json:"is_active" binding:"omitempty"`
	HideAfterDue  bool       `json:"hide_after_due"`
	Backend       string     `json:"backend" binding:"omitempty,max=50"`
}

// UpdateExamRequest is the payload for updating an exam.
// Only supplied fields are mutated.
type UpdateExamRequest struct {
	ExamName      *string    `json:"exam_name" binding:"omitempty,min=1,max=255"`
	TimeLimitMins *int       `json:"time_limit_mins" binding:"omitempty,min=1,max=480"`
	DueDate       *time.Time `json:"due_date" binding:"omitempty"`
	IsProctored   *bool      `json:"is_proctored" binding:"omitempty"`
	IsPractice    *bool      `json:"is_practice_exam" binding:"omitempty"`
	IsActive      *bool      `json:"is_active" binding:"omitempty"`
	HideAfterDue  *bool      `json:"hide_after_due" binding:"omitempty"`
	Backend       *string    `json:"backend" binding:"omitempty,max=50"`
}
