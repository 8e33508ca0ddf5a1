package backend

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/provigil/proctor-backend/internal/model"
)

// Mock is an in-process backend for development and tests. It hands out
// predictable correlation ids and records every call it receives.
type Mock struct {
	// AttemptExternalID, when set, is returned verbatim from
	// RegisterAttempt; otherwise a fresh uuid is generated per attempt.
	AttemptExternalID string
	// ExamExternalID is returned from OnExamSaved.
	ExamExternalID string
	// RegisterErr, when set, makes RegisterAttempt fail.
	RegisterErr error
	// BlockMaterial controls ShouldBlockExamMaterial.
	BlockMaterial bool

	mu    sync.Mutex
	calls []string
}

// NewMock creates a mock backend.
func NewMock() *Mock {
	return &Mock{}
}

func (m *Mock) Name() string { return "mock" }

func (m *Mock) record(call string) {
	m.mu.Lock()
	m.calls = append(m.calls, call)
	m.mu.Unlock()
}

// Calls returns the ordered method names invoked so far.
func (m *Mock) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	copy(out, m.calls)
	return out
}

func (m *Mock) RegisterAttempt(ctx context.Context, exam *model.Exam, attempt *model.Attempt) (string, error) {
	m.record("register_attempt")
	if m.RegisterErr != nil {
		return "", m.RegisterErr
	}
	if m.AttemptExternalID != "" {
		return m.AttemptExternalID, nil
	}
	return uuid.New().String(), nil
}

func (m *Mock) StartAttempt(ctx context.Context, exam *model.Exam, attempt *model.Attempt) error {
	m.record("start_attempt")
	return nil
}

func (m *Mock) StopAttempt(ctx context.Context, exam *model.Exam, attempt *model.Attempt) error {
	m.record("stop_attempt")
	return nil
}

func (m *Mock) RemoveAttempt(ctx context.Context, exam *model.Exam, attempt *model.Attempt) error {
	m.record("remove_attempt")
	return nil
}

func (m *Mock) SoftwareDownloadURL() string {
	return "http://mockprov.example.com/download"
}

func (m *Mock) DecodeReviewPayload(raw []byte) (*ReviewPayload, error) {
	return decodeSSIPayload(raw)
}

func (m *Mock) OnExamSaved(ctx context.Context, exam *model.Exam) (string, error) {
	m.record("on_exam_saved")
	return m.ExamExternalID, nil
}

func (m *Mock) ShouldBlockExamMaterial() bool { return m.BlockMaterial }
