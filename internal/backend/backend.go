// Package backend defines the pluggable proctoring vendor integration.
// The attempt engine and review reconciliation reach the configured vendor
// only through the Backend interface; variants are registered by name in
// an explicit registry built at startup.
package backend

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/provigil/proctor-backend/internal/model"
)

// Backend is the capability contract for one proctoring vendor integration.
// Start/Stop/Remove notifications are best effort: a vendor error is
// reported to the caller for logging but local state stays authoritative.
type Backend interface {
	Name() string

	// RegisterAttempt obtains the vendor correlation id for a new attempt.
	// Called before the local row is persisted; failure aborts creation.
	RegisterAttempt(ctx context.Context, exam *model.Exam, attempt *model.Attempt) (string, error)

	StartAttempt(ctx context.Context, exam *model.Exam, attempt *model.Attempt) error
	StopAttempt(ctx context.Context, exam *model.Exam, attempt *model.Attempt) error
	RemoveAttempt(ctx context.Context, exam *model.Exam, attempt *model.Attempt) error

	// SoftwareDownloadURL points learners at the vendor's client download.
	SoftwareDownloadURL() string

	// DecodeReviewPayload parses a vendor callback body into the
	// normalized review fields the reconciliation engine consumes.
	DecodeReviewPayload(raw []byte) (*ReviewPayload, error)

	// OnExamSaved mirrors exam metadata to the vendor. Returns the
	// vendor-assigned exam id, empty when the vendor assigns none.
	OnExamSaved(ctx context.Context, exam *model.Exam) (string, error)

	// ShouldBlockExamMaterial gates content visibility while the vendor's
	// client has not yet verified the proctoring session.
	ShouldBlockExamMaterial() bool
}

// ReviewPayload is the normalized form of a vendor review callback.
type ReviewPayload struct {
	// ExternalID is the vendor's correlation id for the attempt; it must
	// match the attempt's stored external_id.
	ExternalID  string
	AttemptCode string
	// Status is the vendor-native review status string, validated against
	// the known vocabulary before any persistence.
	Status   string
	Comments []model.ReviewComment
	Raw      json.RawMessage
}

// RegistrationError reports a vendor-side rejection during attempt
// registration, carrying the vendor's HTTP status for the API layer.
type RegistrationError struct {
	Reason     string
	HTTPStatus int
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("vendor registration failed (%d): %s", e.HTTPStatus, e.Reason)
}

// Registry resolves backends by name with an explicit configuration map.
// No runtime plugin discovery: every variant is registered at startup.
type Registry struct {
	backends    map[string]Backend
	defaultName string
}

// NewRegistry creates a registry whose ForExam falls back to defaultName
// when an exam does not select a backend.
func NewRegistry(defaultName string) *Registry {
	return &Registry{
		backends:    make(map[string]Backend),
		defaultName: defaultName,
	}
}

// Register adds a backend under its own name.
func (r *Registry) Register(b Backend) {
	r.backends[b.Name()] = b
}

// Get resolves a backend by name, or the default for an empty name.
func (r *Registry) Get(name string) (Backend, error) {
	if name == "" {
		name = r.defaultName
	}
	b, ok := r.backends[name]
	if !ok {
		return nil, fmt.Errorf("unknown proctoring backend %q", name)
	}
	return b, nil
}

// ForExam resolves the backend an exam is configured to use.
func (r *Registry) ForExam(exam *model.Exam) (Backend, error) {
	return r.Get(exam.Backend)
}
