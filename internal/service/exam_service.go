package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/provigil/proctor-backend/internal/backend"
	"github.com/provigil/proctor-backend/internal/model"
	"github.com/provigil/proctor-backend/internal/repository"
)

// ExamService owns the exam registry: creation, partial update, lookup,
// and vendor metadata mirroring for proctored exams.
type ExamService struct {
	exams    ExamStore
	registry *backend.Registry
	log      zerolog.Logger
}

// NewExamService creates an exam service.
func NewExamService(exams ExamStore, registry *backend.Registry, log zerolog.Logger) *ExamService {
	return &ExamService{
		exams:    exams,
		registry: registry,
		log:      log.With().Str("component", "exam_service").Logger(),
	}
}

// Create registers a new exam for a (course, content) pair and mirrors it
// to the proctoring vendor when proctored.
func (s *ExamService) Create(ctx context.Context, req *model.CreateExamRequest) (*model.Exam, error) {
	exam := &model.Exam{
		CourseID:      req.CourseID,
		ContentID:     req.ContentID,
		ExamName:      req.ExamName,
		TimeLimitMins: req.TimeLimitMins,
		DueDate:       req.DueDate,
		IsProctored:   req.IsProctored,
		IsPractice:    req.IsPractice,
		IsActive:      true,
		HideAfterDue:  req.HideAfterDue,
		Backend:       req.Backend,
	}
	if req.IsActive != nil {
		exam.IsActive = *req.IsActive
	}

	if exam.IsProctored {
		if err := s.syncToVendor(ctx, exam); err != nil {
			return nil, err
		}
	}
	if err := s.exams.Create(ctx, exam); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrExamExists
		}
		return nil, fmt.Errorf("create exam: %w", err)
	}

	s.log.Info().Int64("exam_id", exam.ID).Str("course_id", exam.CourseID).
		Str("content_id", exam.ContentID).Bool("is_proctored", exam.IsProctored).
		Msg("exam created")
	return exam, nil
}

// Update applies a partial update. When the update flips a proctored exam
// to non-proctored, the vendor receives one final "proctored but inactive"
// sync so it stops expecting sessions, and no further syncs happen.
func (s *ExamService) Update(ctx context.Context, id int64, req *model.UpdateExamRequest) (*model.Exam, error) {
	exam, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	wasProctored := exam.IsProctored
	prevBackend := exam.Backend

	if req.ExamName != nil {
		exam.ExamName = *req.ExamName
	}
	if req.TimeLimitMins != nil {
		exam.TimeLimitMins = *req.TimeLimitMins
	}
	if req.DueDate != nil {
		exam.DueDate = req.DueDate
	}
	if req.IsProctored != nil {
		exam.IsProctored = *req.IsProctored
	}
	if req.IsPractice != nil {
		exam.IsPractice = *req.IsPractice
	}
	if req.IsActive != nil {
		exam.IsActive = *req.IsActive
	}
	if req.HideAfterDue != nil {
		exam.HideAfterDue = *req.HideAfterDue
	}
	if req.Backend != nil {
		exam.Backend = *req.Backend
	}

	switch {
	case exam.IsProctored:
		if err := s.syncToVendor(ctx, exam); err != nil {
			return nil, err
		}
	case wasProctored:
		// One-shot farewell sync on the previous backend: present the exam
		// as proctored-but-inactive so the vendor retires it.
		farewell := *exam
		farewell.IsProctored = true
		farewell.IsActive = false
		farewell.Backend = prevBackend
		if err := s.syncToVendor(ctx, &farewell); err != nil {
			return nil, err
		}
	}

	if err := s.exams.Update(ctx, exam); err != nil {
		return nil, fmt.Errorf("update exam: %w", err)
	}
	s.log.Info().Int64("exam_id", exam.ID).Bool("is_active", exam.IsActive).Msg("exam updated")
	return exam, nil
}

// GetByID fetches one exam.
func (s *ExamService) GetByID(ctx context.Context, id int64) (*model.Exam, error) {
	exam, err := s.exams.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("get exam: %w", err)
	}
	return exam, nil
}

// GetByContent fetches the exam bound to a (course, content) pair.
func (s *ExamService) GetByContent(ctx context.Context, courseID, contentID string) (*model.Exam, error) {
	exam, err := s.exams.GetByContent(ctx, courseID, contentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("get exam by content: %w", err)
	}
	return exam, nil
}

// ListForCourse returns the course's exams, optionally restricted to
// active or proctored ones.
func (s *ExamService) ListForCourse(ctx context.Context, courseID string, activeOnly, proctoredOnly bool) ([]model.Exam, error) {
	exams, err := s.exams.ListByCourse(ctx, courseID, activeOnly, proctoredOnly)
	if err != nil {
		return nil, fmt.Errorf("list exams: %w", err)
	}
	return exams, nil
}

// syncToVendor mirrors exam metadata to the exam's backend and records the
// vendor-assigned external id when one comes back.
func (s *ExamService) syncToVendor(ctx context.Context, exam *model.Exam) error {
	be, err := s.registry.ForExam(exam)
	if err != nil {
		return err
	}
	extID, err := be.OnExamSaved(ctx, exam)
	if err != nil {
		return fmt.Errorf("sync exam to vendor: %w", err)
	}
	if extID != "" {
		exam.ExternalID = &extID
	}
	return nil
}
