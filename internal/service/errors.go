package service

import (
	"errors"
)

// Domain errors shared across services. Handlers translate them into
// response codes; none of them carry transport concerns.
var (
	ErrExamNotFound  = errors.New("proctored exam not found")
	ErrExamExists    = errors.New("an exam already exists for this course content")
	ErrExamNotActive = errors.New("exam is not active")

	ErrAttemptNotFound       = errors.New("student exam attempt does not exist")
	ErrAttemptExists         = errors.New("an active attempt already exists for this exam")
	ErrAttemptAlreadyStarted = errors.New("attempt has already been started")

	// ErrIllegalStatusTransition guards the one-way completed set: a
	// completed attempt can never be rewound to an in-progress status.
	ErrIllegalStatusTransition = errors.New("illegal attempt status transition")
	ErrUnknownStatus           = errors.New("unknown attempt status")

	ErrUserNotFound          = errors.New("user not found")
	ErrInvalidAllowanceValue = errors.New("invalid allowance value")

	ErrReviewNotFound      = errors.New("review not found")
	ErrReviewAlreadyExists = errors.New("a review already exists for this attempt")
	ErrBadReviewStatus     = errors.New("unrecognized vendor review status")
	// ErrSuspiciousLookup means a review callback's vendor correlation id
	// did not match the attempt's stored external id.
	ErrSuspiciousLookup = errors.New("review callback failed attempt correlation")
)
