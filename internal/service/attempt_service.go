package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/provigil/proctor-backend/internal/backend"
	"github.com/provigil/proctor-backend/internal/config"
	"github.com/provigil/proctor-backend/internal/downstream"
	"github.com/provigil/proctor-backend/internal/model"
	"github.com/provigil/proctor-backend/internal/repository"
)

// AttemptService is the attempt state machine: creation with vendor
// registration, start/stop, status transitions with their downstream
// effects, and the student-facing view of where an attempt stands.
type AttemptService struct {
	attempts   AttemptStore
	exams      ExamStore
	users      UserStore
	allowances *AllowanceService
	registry   *backend.Registry
	platform   downstream.Services
	cfg        *config.Config
	log        zerolog.Logger

	// now is swapped out in tests.
	now func() time.Time
}

// NewAttemptService creates an attempt service.
func NewAttemptService(
	attempts AttemptStore,
	exams ExamStore,
	users UserStore,
	allowances *AllowanceService,
	registry *backend.Registry,
	platform downstream.Services,
	cfg *config.Config,
	log zerolog.Logger,
) *AttemptService {
	return &AttemptService{
		attempts:   attempts,
		exams:      exams,
		users:      users,
		allowances: allowances,
		registry:   registry,
		platform:   platform,
		cfg:        cfg,
		log:        log.With().Str("component", "attempt_service").Logger(),
		now:        time.Now,
	}
}

// Create opens a new attempt on an exam for a student. The allowed time
// limit is resolved from the exam's base limit plus the student's
// allowances. For proctored runs the vendor is registered first; a vendor
// rejection aborts creation and no local row is written.
func (s *AttemptService) Create(ctx context.Context, examID int64, userID int, takingAsProctored bool) (*model.Attempt, error) {
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

	if existing, err := s.attempts.GetByExamAndUser(ctx, examID, userID); err == nil {
		// Practice exams are retakeable: the old attempt is archived and
		// deleted so a fresh one can take its slot.
		if !exam.IsPractice {
			return nil, ErrAttemptExists
		}
		if _, err := s.attempts.Delete(ctx, existing.ID); err != nil {
			return nil, fmt.Errorf("retire practice attempt: %w", err)
		}
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("check existing attempt: %w", err)
	}

	allowed, err := s.resolveTimeLimit(ctx, exam, userID)
	if err != nil {
		return nil, err
	}
	policy, err := s.allowances.ReviewPolicyException(ctx, examID, userID)
	if err != nil {
		return nil, err
	}

	attempt := &model.Attempt{
		ExamID:               exam.ID,
		UserID:               userID,
		Status:               model.AttemptStatusCreated,
		AttemptCode:          uuid.New().String(),
		AllowedTimeLimitMins: allowed,
		TakingAsProctored:    takingAsProctored && exam.IsProctored,
		IsSampleAttempt:      exam.IsPractice,
	}
	if policy != "" {
		attempt.ReviewPolicyID = &policy
	}

	if attempt.TakingAsProctored {
		be, err := s.registry.ForExam(exam)
		if err != nil {
			return nil, err
		}
		extID, err := be.RegisterAttempt(ctx, exam, attempt)
		if err != nil {
			return nil, fmt.Errorf("register attempt with vendor: %w", err)
		}
		attempt.ExternalID = &extID
	}

	if err := s.attempts.Create(ctx, attempt); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrAttemptExists
		}
		return nil, fmt.Errorf("create attempt: %w", err)
	}

	s.log.Info().Int64("attempt_id", attempt.ID).Int64("exam_id", exam.ID).
		Int("user_id", userID).Str("attempt_code", attempt.AttemptCode).
		Int("allowed_mins", allowed).Bool("proctored", attempt.TakingAsProctored).
		Msg("attempt created")
	return attempt, nil
}

// resolveTimeLimit computes (base + additional minutes) scaled by the
// student's time multiplier, rounded to whole minutes.
func (s *AttemptService) resolveTimeLimit(ctx context.Context, exam *model.Exam, userID int) (int, error) {
	extra, err := s.allowances.AdditionalTimeGranted(ctx, exam.ID, userID)
	if err != nil {
		return 0, err
	}
	allowed := exam.TimeLimitMins + extra
	mult, ok, err := s.allowances.TimeMultiplier(ctx, exam.ID, userID)
	if err != nil {
		return 0, err
	}
	if ok {
		allowed = int(math.Round(float64(allowed) * mult))
	}
	return allowed, nil
}

// Start moves the student's attempt to started and stamps the clock.
func (s *AttemptService) Start(ctx context.Context, examID int64, userID int) (*model.Attempt, error) {
	attempt, err := s.GetForUser(ctx, examID, userID)
	if err != nil {
		return nil, err
	}
	if attempt.StartedAt != nil {
		return nil, ErrAttemptAlreadyStarted
	}
	updated, err := s.UpdateStatus(ctx, attempt.ID, model.AttemptStatusStarted)
	if err != nil {
		return nil, err
	}
	s.notifyVendor(ctx, updated, func(be backend.Backend, exam *model.Exam) error {
		return be.StartAttempt(ctx, exam, updated)
	})
	return updated, nil
}

// Stop ends the student's in-progress run, parking the attempt at
// ready_to_submit pending final submission.
func (s *AttemptService) Stop(ctx context.Context, examID int64, userID int) (*model.Attempt, error) {
	attempt, err := s.GetForUser(ctx, examID, userID)
	if err != nil {
		return nil, err
	}
	if attempt.StartedAt == nil {
		return nil, ErrAttemptNotFound
	}
	updated, err := s.UpdateStatus(ctx, attempt.ID, model.AttemptStatusReadyToSubmit)
	if err != nil {
		return nil, err
	}
	s.notifyVendor(ctx, updated, func(be backend.Backend, exam *model.Exam) error {
		return be.StopAttempt(ctx, exam, updated)
	})
	return updated, nil
}

// UpdateStatus is the single write path for attempt status. A timed_out
// request is rewritten to submitted before any check or persistence.
// Entering the completed group is one-way: completed attempts accept
// further completed statuses (review outcomes) but never rewind. Each
// stored transition archives the pre-image and fires the downstream
// effects the new status demands.
func (s *AttemptService) UpdateStatus(ctx context.Context, attemptID int64, to model.AttemptStatus) (*model.Attempt, error) {
	if to == model.AttemptStatusTimedOut {
		to = model.AttemptStatusSubmitted
	}
	if !to.IsValid() {
		return nil, ErrUnknownStatus
	}

	now := s.now()
	prev, updated, err := s.attempts.UpdateWithHistory(ctx, attemptID, func(a *model.Attempt) error {
		if a.Status.IsCompleted() && to.IsIncomplete() {
			return ErrIllegalStatusTransition
		}
		a.Status = to
		switch {
		case to == model.AttemptStatusStarted && a.StartedAt == nil:
			a.StartedAt = &now
		case to == model.AttemptStatusReadyToSubmit && a.CompletedAt == nil:
			a.CompletedAt = &now
		case to.IsCompleted() && a.CompletedAt == nil:
			a.CompletedAt = &now
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAttemptNotFound
		}
		return nil, err
	}

	if prev.Status != updated.Status {
		s.log.Info().Int64("attempt_id", updated.ID).
			Str("from", string(prev.Status)).Str("to", string(updated.Status)).
			Msg("attempt status changed")
		s.fireStatusEffects(ctx, updated)
	}
	return updated, nil
}

// UpdateStatusByCode transitions an attempt addressed by its opaque code.
func (s *AttemptService) UpdateStatusByCode(ctx context.Context, code string, to model.AttemptStatus) (*model.Attempt, error) {
	attempt, err := s.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	return s.UpdateStatus(ctx, attempt.ID, to)
}

// MarkReady records the vendor client's start ping: the desktop software
// is up and the attempt may begin.
func (s *AttemptService) MarkReady(ctx context.Context, code string) (*model.Attempt, error) {
	return s.UpdateStatusByCode(ctx, code, model.AttemptStatusReadyToStart)
}

// MarkTimeout expires an attempt whose clock ran out. The stored status is
// submitted; timed_out is never persisted.
func (s *AttemptService) MarkTimeout(ctx context.Context, attemptID int64) (*model.Attempt, error) {
	return s.UpdateStatus(ctx, attemptID, model.AttemptStatusTimedOut)
}

// Acknowledge records that the student has seen their attempt's terminal
// status. Acknowledging twice is a no-op.
func (s *AttemptService) Acknowledge(ctx context.Context, examID int64, userID int) error {
	attempt, err := s.GetForUser(ctx, examID, userID)
	if err != nil {
		return err
	}
	_, _, err = s.attempts.UpdateWithHistory(ctx, attempt.ID, func(a *model.Attempt) error {
		a.StatusAcknowledged = true
		return nil
	})
	if err != nil {
		return fmt.Errorf("acknowledge attempt: %w", err)
	}
	return nil
}

// Remove archives and deletes an attempt, telling the vendor to discard
// its session. Vendor failures are logged; the local delete is what counts.
func (s *AttemptService) Remove(ctx context.Context, attemptID int64) error {
	deleted, err := s.attempts.Delete(ctx, attemptID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrAttemptNotFound
		}
		return fmt.Errorf("delete attempt: %w", err)
	}
	if deleted.TakingAsProctored {
		s.notifyVendor(ctx, deleted, func(be backend.Backend, exam *model.Exam) error {
			return be.RemoveAttempt(ctx, exam, deleted)
		})
	}
	s.log.Info().Int64("attempt_id", attemptID).Msg("attempt removed")
	return nil
}

// GetByID fetches one attempt.
func (s *AttemptService) GetByID(ctx context.Context, id int64) (*model.Attempt, error) {
	attempt, err := s.attempts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("get attempt: %w", err)
	}
	return attempt, nil
}

// GetByCode fetches one live attempt by its opaque code.
func (s *AttemptService) GetByCode(ctx context.Context, code string) (*model.Attempt, error) {
	attempt, err := s.attempts.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("get attempt by code: %w", err)
	}
	return attempt, nil
}

// History returns the archived pre-images of an attempt, oldest first.
func (s *AttemptService) History(ctx context.Context, attemptID int64) ([]model.AttemptSnapshot, error) {
	return s.attempts.ListSnapshots(ctx, attemptID)
}

// ListForCourse returns every attempt on a course's exams.
func (s *AttemptService) ListForCourse(ctx context.Context, courseID string) ([]model.Attempt, error) {
	return s.attempts.ListByCourse(ctx, courseID)
}

// SweepOverdue times out started attempts whose clocks have run past
// their limit. Returns the number of attempts expired.
func (s *AttemptService) SweepOverdue(ctx context.Context, limit int) (int, error) {
	overdue, err := s.attempts.ListOverdue(ctx, s.now(), limit)
	if err != nil {
		return 0, fmt.Errorf("list overdue attempts: %w", err)
	}
	expired := 0
	for i := range overdue {
		if _, err := s.MarkTimeout(ctx, overdue[i].ID); err != nil {
			s.log.Error().Err(err).Int64("attempt_id", overdue[i].ID).Msg("sweep: timeout failed")
			continue
		}
		expired++
	}
	return expired, nil
}

// StudentViewState is what the learner-facing UI needs to render an exam:
// the attempt's stage, the remaining clock, and vendor client pointers.
type StudentViewState struct {
	Exam                 *model.Exam    `json:"exam"`
	Attempt              *model.Attempt `json:"attempt,omitempty"`
	Status               string         `json:"status"`
	TimeRemainingSeconds int            `json:"time_remaining_seconds"`
	SoftwareDownloadURL  string         `json:"software_download_url,omitempty"`
	BlockExamMaterial    bool           `json:"block_exam_material"`
}

// StudentView assembles the learner's current standing on an exam. It is
// also the opportunistic timeout point: a started attempt whose clock has
// run out is expired here, before rendering.
func (s *AttemptService) StudentView(ctx context.Context, examID int64, userID int) (*StudentViewState, error) {
	exam, err := s.exams.GetByID(ctx, examID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("get exam: %w", err)
	}

	state := &StudentViewState{
		Exam:   exam,
		Status: string(model.AttemptStatusEligible),
	}

	attempt, err := s.attempts.GetByExamAndUser(ctx, examID, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return state, nil
		}
		return nil, fmt.Errorf("get attempt: %w", err)
	}

	now := s.now()
	if attempt.Status == model.AttemptStatusStarted && attempt.TimeRemaining(now) == 0 {
		if attempt, err = s.MarkTimeout(ctx, attempt.ID); err != nil {
			return nil, err
		}
	}

	state.Attempt = attempt
	state.Status = string(attempt.Status)
	state.TimeRemainingSeconds = int(attempt.TimeRemaining(now) / time.Second)

	if attempt.TakingAsProctored && attempt.Status.IsIncomplete() {
		be, err := s.registry.ForExam(exam)
		if err != nil {
			return nil, err
		}
		state.SoftwareDownloadURL = be.SoftwareDownloadURL()
		state.BlockExamMaterial = be.ShouldBlockExamMaterial() && attempt.Status != model.AttemptStatusStarted
	}
	return state, nil
}

// GetForUser fetches the student's attempt on an exam.
func (s *AttemptService) GetForUser(ctx context.Context, examID int64, userID int) (*model.Attempt, error) {
	attempt, err := s.attempts.GetByExamAndUser(ctx, examID, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("get attempt: %w", err)
	}
	return attempt, nil
}

// notifyVendor runs a best-effort vendor notification. Local state is
// authoritative; vendor errors are logged and dropped.
func (s *AttemptService) notifyVendor(ctx context.Context, attempt *model.Attempt, fn func(backend.Backend, *model.Exam) error) {
	exam, err := s.exams.GetByID(ctx, attempt.ExamID)
	if err != nil {
		s.log.Error().Err(err).Int64("attempt_id", attempt.ID).Msg("vendor notify: exam lookup failed")
		return
	}
	be, err := s.registry.ForExam(exam)
	if err != nil {
		s.log.Error().Err(err).Int64("attempt_id", attempt.ID).Msg("vendor notify: backend unresolved")
		return
	}
	if err := fn(be, exam); err != nil {
		s.log.Error().Err(err).Int64("attempt_id", attempt.ID).
			Str("backend", be.Name()).Msg("vendor notify failed")
	}
}

// fireStatusEffects runs the downstream consequences of a stored status
// change: credit requirement updates, grade overrides, failure cascades,
// and notification emails. Effects never fail the transition; each error
// is logged and the rest still run.
func (s *AttemptService) fireStatusEffects(ctx context.Context, attempt *model.Attempt) {
	exam, err := s.exams.GetByID(ctx, attempt.ExamID)
	if err != nil {
		s.log.Error().Err(err).Int64("attempt_id", attempt.ID).Msg("status effects: exam lookup failed")
		return
	}

	status := attempt.Status
	if status.NeedsCreditUpdate() && !attempt.IsSampleAttempt && !exam.IsPractice {
		if err := s.platform.Credit.SetRequirementStatus(ctx, attempt.UserID, exam.CourseID,
			exam.ContentID, creditStatusFor(status)); err != nil {
			s.log.Error().Err(err).Int64("attempt_id", attempt.ID).Msg("credit requirement update failed")
		}
	}

	if status.NeedsGradeOverride() && s.cfg.EnableGradeOverrides && !exam.IsPractice {
		if err := s.platform.Grades.OverrideGrade(ctx, attempt.UserID, exam.CourseID, exam.ContentID, 0); err != nil {
			s.log.Error().Err(err).Int64("attempt_id", attempt.ID).Msg("grade override failed")
		}
	}

	if status.IsCascadableFailure() && !exam.IsPractice {
		s.cascadeDecline(ctx, attempt, exam)
	}

	s.maybeSendStatusEmail(ctx, attempt, exam)
}

// creditStatusFor maps a terminal attempt status onto the platform's
// credit requirement vocabulary.
func creditStatusFor(status model.AttemptStatus) downstream.CreditRequirementStatus {
	switch status {
	case model.AttemptStatusVerified:
		return downstream.CreditSatisfied
	case model.AttemptStatusSubmitted:
		return downstream.CreditSubmitted
	default:
		return downstream.CreditFailed
	}
}

// cascadeDecline auto-declines the student's other unattempted gated
// exams in the same course: declining one proctored exam declines them all.
func (s *AttemptService) cascadeDecline(ctx context.Context, attempt *model.Attempt, exam *model.Exam) {
	siblings, err := s.exams.ListByCourse(ctx, exam.CourseID, true, true)
	if err != nil {
		s.log.Error().Err(err).Str("course_id", exam.CourseID).Msg("cascade: sibling listing failed")
		return
	}
	for i := range siblings {
		sib := &siblings[i]
		if sib.ID == exam.ID || sib.IsPractice {
			continue
		}
		if _, err := s.attempts.GetByExamAndUser(ctx, sib.ID, attempt.UserID); err == nil {
			continue
		} else if !errors.Is(err, pgx.ErrNoRows) {
			s.log.Error().Err(err).Int64("exam_id", sib.ID).Msg("cascade: attempt lookup failed")
			continue
		}
		now := s.now()
		declined := &model.Attempt{
			ExamID:               sib.ID,
			UserID:               attempt.UserID,
			Status:               model.AttemptStatusDeclined,
			AttemptCode:          uuid.New().String(),
			AllowedTimeLimitMins: sib.TimeLimitMins,
			CompletedAt:          &now,
		}
		if err := s.attempts.Create(ctx, declined); err != nil {
			s.log.Error().Err(err).Int64("exam_id", sib.ID).Msg("cascade: decline create failed")
			continue
		}
		s.log.Info().Int64("exam_id", sib.ID).Int("user_id", attempt.UserID).
			Msg("cascade declined sibling exam")
		s.fireStatusEffects(ctx, declined)
	}
}

// maybeSendStatusEmail enqueues a notification for statuses students are
// told about. Practice and sample runs, and non-proctored runs, are silent.
func (s *AttemptService) maybeSendStatusEmail(ctx context.Context, attempt *model.Attempt, exam *model.Exam) {
	switch attempt.Status {
	case model.AttemptStatusSubmitted, model.AttemptStatusVerified, model.AttemptStatusRejected:
	default:
		return
	}
	if attempt.IsSampleAttempt || exam.IsPractice || !attempt.TakingAsProctored {
		return
	}

	user, err := s.users.GetByID(ctx, attempt.UserID)
	if err != nil {
		s.log.Error().Err(err).Int("user_id", attempt.UserID).Msg("status email: user lookup failed")
		return
	}
	backendName := exam.Backend
	if backendName == "" {
		backendName = s.cfg.DefaultBackend
	}
	msg := downstream.EmailMessage{
		UserID:   user.ID,
		To:       user.Email,
		ExamName: exam.ExamName,
		CourseID: exam.CourseID,
		Status:   string(attempt.Status),
		Template: downstream.TemplateFor(backendName, string(attempt.Status)),
	}
	if err := s.platform.Email.Send(ctx, msg); err != nil {
		s.log.Error().Err(err).Int64("attempt_id", attempt.ID).Msg("status email enqueue failed")
	}
}
