package backend

import (
	"context"
	"fmt"

	"github.com/provigil/proctor-backend/internal/model"
)

// Null is the backend for timed-but-unproctored exams: every vendor
// interaction is a no-op and exam material is never blocked.
type Null struct{}

// NewNull creates the null backend.
func NewNull() *Null {
	return &Null{}
}

func (n *Null) Name() string { return "null" }

func (n *Null) RegisterAttempt(ctx context.Context, exam *model.Exam, attempt *model.Attempt) (string, error) {
	return "", nil
}

func (n *Null) StartAttempt(ctx context.Context, exam *model.Exam, attempt *model.Attempt) error {
	return nil
}

func (n *Null) StopAttempt(ctx context.Context, exam *model.Exam, attempt *model.Attempt) error {
	return nil
}

func (n *Null) RemoveAttempt(ctx context.Context, exam *model.Exam, attempt *model.Attempt) error {
	return nil
}

func (n *Null) SoftwareDownloadURL() string { return "" }

func (n *Null) DecodeReviewPayload(raw []byte) (*ReviewPayload, error) {
	return nil, fmt.Errorf("null backend does not accept review callbacks")
}

func (n *Null) OnExamSaved(ctx context.Context, exam *model.Exam) (string, error) {
	return "", nil
}

func (n *Null) ShouldBlockExamMaterial() bool { return false }
