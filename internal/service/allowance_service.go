package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/provigil/proctor-backend/internal/model"
)

// AllowanceService manages per-student overrides (extra time, time
// multiplier, review policy exceptions) keyed by (exam, user, key).
type AllowanceService struct {
	allowances AllowanceStore
	exams      ExamStore
	users      UserStore
	log        zerolog.Logger
}

// NewAllowanceService creates an allowance service.
func NewAllowanceService(allowances AllowanceStore, exams ExamStore, users UserStore, log zerolog.Logger) *AllowanceService {
	return &AllowanceService{
		allowances: allowances,
		exams:      exams,
		users:      users,
		log:        log.With().Str("component", "allowance_service").Logger(),
	}
}

// Add grants or replaces an allowance. The student is addressed by
// username; the exam must exist and be active; key and value are validated
// against the closed key vocabulary before anything persists.
func (s *AllowanceService) Add(ctx context.Context, examID int64, req *model.AddAllowanceRequest) (*model.Allowance, error) {
	exam, err := s.exams.GetByID(ctx, examID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("get exam: %w", err)
	}
	if !exam.IsActive {
		return nil, ErrExamNotActive
	}

	user, err := s.users.GetByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	key, err := model.ParseAllowanceKey(req.Key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAllowanceValue, err)
	}
	if err := key.ValidateValue(req.Value); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAllowanceValue, err)
	}

	allowance := &model.Allowance{
		ExamID: exam.ID,
		UserID: user.ID,
		Key:    key,
		Value:  req.Value,
	}
	if err := s.allowances.Upsert(ctx, allowance); err != nil {
		return nil, fmt.Errorf("upsert allowance: %w", err)
	}

	s.log.Info().Int64("exam_id", exam.ID).Int("user_id", user.ID).
		Str("key", string(key)).Str("value", req.Value).Msg("allowance granted")
	return allowance, nil
}

// Remove deletes an allowance. Removing one that does not exist is a no-op.
func (s *AllowanceService) Remove(ctx context.Context, examID int64, userID int, rawKey string) error {
	key, err := model.ParseAllowanceKey(rawKey)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAllowanceValue, err)
	}
	found, err := s.allowances.Delete(ctx, examID, userID, key)
	if err != nil {
		return fmt.Errorf("delete allowance: %w", err)
	}
	if found {
		s.log.Info().Int64("exam_id", examID).Int("user_id", userID).
			Str("key", string(key)).Msg("allowance removed")
	}
	return nil
}

// ListForUser returns a student's allowances on one exam.
func (s *AllowanceService) ListForUser(ctx context.Context, examID int64, userID int) ([]model.Allowance, error) {
	return s.allowances.ListByUser(ctx, examID, userID)
}

// ListForCourse returns every allowance granted across a course's exams.
func (s *AllowanceService) ListForCourse(ctx context.Context, courseID string) ([]model.Allowance, error) {
	return s.allowances.ListByCourse(ctx, courseID)
}

// AdditionalTimeGranted returns the student's extra minutes on an exam,
// zero when no grant exists.
func (s *AllowanceService) AdditionalTimeGranted(ctx context.Context, examID int64, userID int) (int, error) {
	a, err := s.allowances.Get(ctx, examID, userID, model.AllowanceAdditionalTime)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("get additional time allowance: %w", err)
	}
	mins, err := strconv.Atoi(a.Value)
	if err != nil {
		// Stored values are validated on the way in; treat corruption as absent.
		s.log.Error().Str("value", a.Value).Msg("stored additional time allowance is not an integer")
		return 0, nil
	}
	return mins, nil
}

// TimeMultiplier returns the student's time multiplier on an exam. The
// second return is false when no multiplier is granted.
func (s *AllowanceService) TimeMultiplier(ctx context.Context, examID int64, userID int) (float64, bool, error) {
	a, err := s.allowances.Get(ctx, examID, userID, model.AllowanceTimeMultiplier)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("get time multiplier allowance: %w", err)
	}
	mult, err := strconv.ParseFloat(a.Value, 64)
	if err != nil {
		s.log.Error().Str("value", a.Value).Msg("stored time multiplier is not a decimal")
		return 0, false, nil
	}
	return mult, true, nil
}

// ReviewPolicyException returns the student's reviewer guidance text for an
// exam, empty when none is granted.
func (s *AllowanceService) ReviewPolicyException(ctx context.Context, examID int64, userID int) (string, error) {
	a, err := s.allowances.Get(ctx, examID, userID, model.AllowanceReviewPolicyException)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("get review policy exception: %w", err)
	}
	return a.Value, nil
}
