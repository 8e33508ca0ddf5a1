package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/provigil/proctor-backend/internal/backend"
	"github.com/provigil/proctor-backend/internal/config"
	"github.com/provigil/proctor-backend/internal/model"
	"github.com/provigil/proctor-backend/internal/repository"
)

// ReviewService reconciles vendor review verdicts with attempts: the
// server-to-server callback path and the staff edit path both land here.
type ReviewService struct {
	reviews  ReviewStore
	attempts AttemptStore
	exams    ExamStore
	engine   *AttemptService
	registry *backend.Registry
	cfg      *config.Config
	log      zerolog.Logger
}

// NewReviewService creates a review service.
func NewReviewService(
	reviews ReviewStore,
	attempts AttemptStore,
	exams ExamStore,
	engine *AttemptService,
	registry *backend.Registry,
	cfg *config.Config,
	log zerolog.Logger,
) *ReviewService {
	return &ReviewService{
		reviews:  reviews,
		attempts: attempts,
		exams:    exams,
		engine:   engine,
		registry: registry,
		cfg:      cfg,
		log:      log.With().Str("component", "review_service").Logger(),
	}
}

// OnReviewCallback ingests one vendor review callback for the attempt
// addressed by code. The attempt is resolved against live rows first and
// archived snapshots second; a review for an archived attempt is still
// persisted but triggers no status transition. Unless simulation is
// enabled, the payload's correlation id must match the attempt's stored
// external id (case-insensitive) or the callback is treated as hostile.
func (s *ReviewService) OnReviewCallback(ctx context.Context, attemptCode string, raw []byte) (*model.Review, error) {
	attempt, archived, err := s.resolveAttempt(ctx, attemptCode)
	if err != nil {
		return nil, err
	}

	exam, err := s.exams.GetByID(ctx, attempt.ExamID)
	if err != nil {
		return nil, fmt.Errorf("get exam for review: %w", err)
	}
	be, err := s.registry.ForExam(exam)
	if err != nil {
		return nil, err
	}
	payload, err := be.DecodeReviewPayload(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadReviewStatus, err)
	}
	internal, ok := model.MapVendorReviewStatus(payload.Status)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrBadReviewStatus, payload.Status)
	}

	if !s.cfg.AllowCallbackSimulation {
		if attempt.ExternalID == nil || !strings.EqualFold(*attempt.ExternalID, payload.ExternalID) {
			s.log.Error().Str("attempt_code", attemptCode).
				Str("payload_external_id", payload.ExternalID).
				Msg("review callback external id mismatch")
			return nil, ErrSuspiciousLookup
		}
	}

	review := &model.Review{
		AttemptCode:  attempt.AttemptCode,
		ReviewStatus: internal,
		VendorStatus: payload.Status,
		RawData:      s.sanitizeRaw(payload.Raw),
		ExamID:       attempt.ExamID,
		UserID:       attempt.UserID,
		Comments:     payload.Comments,
	}
	if err := s.persist(ctx, review); err != nil {
		return nil, err
	}

	if archived {
		s.log.Info().Str("attempt_code", attemptCode).
			Msg("review stored for archived attempt; no status transition")
		return review, nil
	}
	if _, err := s.engine.UpdateStatus(ctx, attempt.ID, s.attemptStatusFor(internal, false)); err != nil {
		return nil, err
	}
	return review, nil
}

// OnReviewSaved applies a staff edit to an existing review. The prior
// verdict is archived and the attempt is re-resolved; with the override
// flag a human can push a failing verdict straight to rejected even under
// the second-review policy.
func (s *ReviewService) OnReviewSaved(ctx context.Context, reviewID int64, reviewedBy int, req *model.SaveReviewRequest) (*model.Review, error) {
	review, err := s.reviews.GetByID(ctx, reviewID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrReviewNotFound
		}
		return nil, fmt.Errorf("get review: %w", err)
	}
	internal, ok := model.MapVendorReviewStatus(req.VendorStatus)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrBadReviewStatus, req.VendorStatus)
	}

	review.ReviewStatus = internal
	review.VendorStatus = req.VendorStatus
	review.ReviewedBy = &reviewedBy
	if err := s.reviews.UpdateWithHistory(ctx, review); err != nil {
		return nil, fmt.Errorf("update review: %w", err)
	}
	s.log.Info().Int64("review_id", review.ID).Int("reviewed_by", reviewedBy).
		Str("vendor_status", req.VendorStatus).Msg("review edited")

	attempt, err := s.attempts.GetByCode(ctx, review.AttemptCode)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.log.Info().Str("attempt_code", review.AttemptCode).
				Msg("review edit targets archived attempt; no status transition")
			return review, nil
		}
		return nil, fmt.Errorf("get attempt for review edit: %w", err)
	}
	if _, err := s.engine.UpdateStatus(ctx, attempt.ID, s.attemptStatusFor(internal, req.AllowStatusUpdateOnFail)); err != nil {
		return nil, err
	}
	return review, nil
}

// GetByCode fetches the review for an attempt code.
func (s *ReviewService) GetByCode(ctx context.Context, attemptCode string) (*model.Review, error) {
	review, err := s.reviews.GetByCode(ctx, attemptCode)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrReviewNotFound
		}
		return nil, fmt.Errorf("get review: %w", err)
	}
	return review, nil
}

// resolveAttempt finds the attempt a review addresses, falling back to
// the newest archived snapshot when the live row is gone.
func (s *ReviewService) resolveAttempt(ctx context.Context, code string) (*model.Attempt, bool, error) {
	attempt, err := s.attempts.GetByCode(ctx, code)
	if err == nil {
		return attempt, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("get attempt by code: %w", err)
	}
	snap, err := s.attempts.GetLatestSnapshotByCode(ctx, code)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, ErrAttemptNotFound
		}
		return nil, false, fmt.Errorf("get attempt snapshot by code: %w", err)
	}
	return &model.Attempt{
		ID:                   snap.AttemptID,
		ExamID:               snap.ExamID,
		UserID:               snap.UserID,
		Status:               snap.Status,
		AttemptCode:          snap.AttemptCode,
		ExternalID:           snap.ExternalID,
		StartedAt:            snap.StartedAt,
		CompletedAt:          snap.CompletedAt,
		AllowedTimeLimitMins: snap.AllowedTimeLimitMins,
		TakingAsProctored:    snap.TakingAsProctored,
		IsSampleAttempt:      snap.IsSampleAttempt,
		ReviewPolicyID:       snap.ReviewPolicyID,
	}, true, nil
}

// persist stores the review, overwriting an existing one only when review
// updates are enabled; the overwritten verdict is archived first.
func (s *ReviewService) persist(ctx context.Context, review *model.Review) error {
	existing, err := s.reviews.GetByCode(ctx, review.AttemptCode)
	switch {
	case err == nil:
		if !s.cfg.AllowReviewUpdates {
			return ErrReviewAlreadyExists
		}
		review.ID = existing.ID
		review.CreatedAt = existing.CreatedAt
		if err := s.reviews.UpdateWithHistory(ctx, review); err != nil {
			return fmt.Errorf("update review: %w", err)
		}
	case errors.Is(err, pgx.ErrNoRows):
		if err := s.reviews.Create(ctx, review); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return ErrReviewAlreadyExists
			}
			return fmt.Errorf("create review: %w", err)
		}
	default:
		return fmt.Errorf("get existing review: %w", err)
	}
	return nil
}

// attemptStatusFor maps an internal review verdict onto the attempt
// status to apply: passing verdicts verify; failing ones reject, or park
// at second_review_required when the policy demands a human look first.
func (s *ReviewService) attemptStatusFor(status model.ReviewStatus, humanOverride bool) model.AttemptStatus {
	if status.IsPassing() {
		return model.AttemptStatusVerified
	}
	if s.cfg.RequireFailureSecondReviews && !humanOverride {
		return model.AttemptStatusSecondReviewRequired
	}
	return model.AttemptStatusRejected
}

// sanitizeRaw strips the vendor's session video link from the stored
// payload when redaction is on. Everything else is kept verbatim.
func (s *ReviewService) sanitizeRaw(raw json.RawMessage) json.RawMessage {
	if !s.cfg.RedactReviewVideoURLs || len(raw) == 0 {
		return raw
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return raw
	}
	if _, ok := m["videoReviewLink"]; !ok {
		return raw
	}
	delete(m, "videoReviewLink")
	cleaned, err := json.Marshal(m)
	if err != nil {
		return raw
	}
	return cleaned
}
