package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrSessionActive      ErrCode = "SESSION_ALREADY_ACTIVE"
	ErrSessionInvalidated ErrCode = "SESSION_INVALIDATED"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden         ErrCode = "FORBIDDEN"
	ErrStudentAccessOnly ErrCode = "STUDENT_ACCESS_ONLY"
	ErrStaffAccessOnly   ErrCode = "STAFF_ACCESS_ONLY"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"
	ErrConflict ErrCode = "CONFLICT"

	// ─── Exam registry ─────────────────────────────────────────────────
	ErrExamExists    ErrCode = "EXAM_ALREADY_EXISTS"
	ErrExamNotFound  ErrCode = "EXAM_NOT_FOUND"
	ErrExamNotActive ErrCode = "EXAM_NOT_ACTIVE"

	// ─── Attempts ──────────────────────────────────────────────────────
	ErrAttemptExists         ErrCode = "ATTEMPT_ALREADY_EXISTS"
	ErrAttemptNotFound       ErrCode = "ATTEMPT_NOT_FOUND"
	ErrAttemptAlreadyStarted ErrCode = "ATTEMPT_ALREADY_STARTED"
	ErrIllegalTransition     ErrCode = "ILLEGAL_STATUS_TRANSITION"
	ErrRegistrationFailed    ErrCode = "VENDOR_REGISTRATION_FAILED"

	// ─── Allowances ────────────────────────────────────────────────────
	ErrInvalidAllowance ErrCode = "INVALID_ALLOWANCE_VALUE"
	ErrUserNotFound     ErrCode = "USER_NOT_FOUND"

	// ─── Reviews ───────────────────────────────────────────────────────
	ErrReviewExists     ErrCode = "REVIEW_ALREADY_EXISTS"
	ErrReviewNotFound   ErrCode = "REVIEW_NOT_FOUND"
	ErrBadReviewStatus  ErrCode = "BAD_REVIEW_STATUS"
	ErrSuspiciousLookup ErrCode = "SUSPICIOUS_LOOKUP"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal          ErrCode = "INTERNAL_ERROR"
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrInvalidCredentials:
		return "Invalid username or password."
	case ErrSessionActive:
		return "You are already logged in on another device."
	case ErrSessionInvalidated:
		return "Your session has ended. Please log in again."
	case ErrTokenRequired:
		return "An authentication token is required."
	case ErrTokenInvalid:
		return "The authentication token is invalid."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "You do not have permission to access this resource."
	case ErrStudentAccessOnly:
		return "This resource is restricted to learners."
	case ErrStaffAccessOnly:
		return "This resource is restricted to course staff."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid identifier format."
	case ErrInvalidPayload:
		return "Invalid request payload."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Resource not found."
	case ErrConflict:
		return "Resource already exists."

	// ─── Exam registry ─────────────────────────────────────────────────
	case ErrExamExists:
		return "An exam already exists for this course content."
	case ErrExamNotFound:
		return "Exam not found."
	case ErrExamNotActive:
		return "This exam is not active."

	// ─── Attempts ──────────────────────────────────────────────────────
	case ErrAttemptExists:
		return "An attempt for this exam is already in progress."
	case ErrAttemptNotFound:
		return "Exam attempt not found."
	case ErrAttemptAlreadyStarted:
		return "This attempt has already been started."
	case ErrIllegalTransition:
		return "The attempt cannot move to the requested status."
	case ErrRegistrationFailed:
		return "The proctoring provider could not register this attempt."

	// ─── Allowances ────────────────────────────────────────────────────
	case ErrInvalidAllowance:
		return "The allowance value is invalid for this key."
	case ErrUserNotFound:
		return "No user matches that identifier."

	// ─── Reviews ───────────────────────────────────────────────────────
	case ErrReviewExists:
		return "A review was already submitted for this attempt."
	case ErrReviewNotFound:
		return "Review not found."
	case ErrBadReviewStatus:
		return "Unrecognized review status."
	case ErrSuspiciousLookup:
		return "Review callback could not be correlated with the attempt."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "An internal server error occurred."
	case ErrRateLimitExceeded:
		return "Too many requests. Please slow down."
	default:
		return "An unexpected error occurred."
	}
}
