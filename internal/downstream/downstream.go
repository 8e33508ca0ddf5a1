// Package downstream holds the narrow capability interfaces through which
// the attempt engine notifies the rest of the learning platform. The
// concrete clients are injected at construction time; the engine never
// resolves them through a global registry.
package downstream

import (
	"context"
)

// CreditRequirementStatus is the value space of the platform's credit
// requirement tracker for the "proctored_exam" namespace.
type CreditRequirementStatus string

const (
	CreditSatisfied CreditRequirementStatus = "satisfied"
	CreditFailed    CreditRequirementStatus = "failed"
	CreditSubmitted CreditRequirementStatus = "submitted"
)

// CreditService updates a learner's credit requirement state.
type CreditService interface {
	SetRequirementStatus(ctx context.Context, userID int, courseID, name string, status CreditRequirementStatus) error
	RemoveRequirementStatus(ctx context.Context, userID int, courseID, name string) error
}

// GradesService overrides a learner's grade for specific exam content.
type GradesService interface {
	OverrideGrade(ctx context.Context, userID int, courseID, contentID string, earned float64) error
	UndoGradeOverride(ctx context.Context, userID int, courseID, contentID string) error
}

// InstructorService answers course staff membership queries.
type InstructorService interface {
	IsCourseStaff(ctx context.Context, userID int, courseID string) (bool, error)
}

// EmailMessage is one queued attempt-status notification.
type EmailMessage struct {
	UserID   int    `json:"user_id"`
	To       string `json:"to"`
	ExamName string `json:"exam_name"`
	CourseID string `json:"course_id"`
	Status   string `json:"status"`
	Template string `json:"template"`
}

// EmailSender delivers attempt-status notification emails. Delivery is
// fire-and-forget relative to the status transition: failures are logged
// by the caller, never propagated.
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// Services bundles every downstream capability the attempt engine needs.
type Services struct {
	Credit     CreditService
	Grades     GradesService
	Instructor InstructorService
	Email      EmailSender
}

// vendorTemplates lists backends that ship their own notification email
// templates per attempt status.
var vendorTemplates = map[string]map[string]bool{
	"rest": {
		"submitted": true,
		"verified":  true,
		"rejected":  true,
	},
}

// TemplateFor selects the notification template for a backend and attempt
// status: the vendor-specific template when one exists, else the default.
// Never both.
func TemplateFor(backendName, status string) string {
	if vendorTemplates[backendName][status] {
		return "proctoring/" + backendName + "/" + status
	}
	return "proctoring/default/" + status
}
