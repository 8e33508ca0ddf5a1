package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/provigil/proctor-backend/internal/model"
)

func ssiCallback(externalID, attemptCode, reviewStatus string) []byte {
	return []byte(fmt.Sprintf(`{
		"examMetaData": {"ssiRecordLocator": %q, "examCode": %q},
		"reviewStatus": %q,
		"videoReviewLink": "http://video.example.com/review/1",
		"webCamComments": [
			{"comments": "looked away", "eventStart": 100, "eventFinish": 200, "duration": 100, "eventStatus": "Suspicious"}
		],
		"desktopComments": []
	}`, externalID, attemptCode, reviewStatus))
}

// submittedAttempt seeds a proctored attempt that has run to submission,
// with a known vendor correlation id.
func submittedAttempt(t *testing.T, e *env) *model.Attempt {
	t.Helper()
	e.mock.AttemptExternalID = "ext-123"
	exam := e.addExam(t, proctoredExam())
	ctx := context.Background()
	attempt, err := e.attemptSvc.Create(ctx, exam.ID, 7, true)
	if err != nil {
		t.Fatalf("seed attempt: %v", err)
	}
	if _, err := e.attemptSvc.UpdateStatus(ctx, attempt.ID, model.AttemptStatusSubmitted); err != nil {
		t.Fatalf("seed submit: %v", err)
	}
	return attempt
}

func TestCallbackVerifiesPassingReview(t *testing.T) {
	e := newEnv(t)
	attempt := submittedAttempt(t, e)
	ctx := context.Background()

	review, err := e.reviewSvc.OnReviewCallback(ctx, attempt.AttemptCode,
		ssiCallback("ext-123", attempt.AttemptCode, model.VendorReviewClean))
	if err != nil {
		t.Fatalf("callback: %v", err)
	}
	if review.ReviewStatus != model.ReviewStatusPassed {
		t.Errorf("review status = %s, want passed", review.ReviewStatus)
	}
	if len(review.Comments) != 1 || review.Comments[0].Comment != "looked away" {
		t.Errorf("comments = %+v", review.Comments)
	}

	after, _ := e.attempts.GetByID(ctx, attempt.ID)
	if after.Status != model.AttemptStatusVerified {
		t.Errorf("attempt status = %s, want verified", after.Status)
	}
}

func TestCallbackRejectsFailingReview(t *testing.T) {
	e := newEnv(t)
	attempt := submittedAttempt(t, e)
	ctx := context.Background()

	if _, err := e.reviewSvc.OnReviewCallback(ctx, attempt.AttemptCode,
		ssiCallback("ext-123", attempt.AttemptCode, model.VendorReviewSuspicious)); err != nil {
		t.Fatalf("callback: %v", err)
	}
	after, _ := e.attempts.GetByID(ctx, attempt.ID)
	if after.Status != model.AttemptStatusRejected {
		t.Errorf("attempt status = %s, want rejected", after.Status)
	}
}

func TestCallbackSecondReviewPolicy(t *testing.T) {
	e := newEnv(t)
	e.cfg.RequireFailureSecondReviews = true
	attempt := submittedAttempt(t, e)
	ctx := context.Background()

	review, err := e.reviewSvc.OnReviewCallback(ctx, attempt.AttemptCode,
		ssiCallback("ext-123", attempt.AttemptCode, model.VendorReviewSuspicious))
	if err != nil {
		t.Fatalf("callback: %v", err)
	}
	after, _ := e.attempts.GetByID(ctx, attempt.ID)
	if after.Status != model.AttemptStatusSecondReviewRequired {
		t.Fatalf("attempt status = %s, want second_review_required", after.Status)
	}

	// A human reviewer can push the failing verdict through to rejected.
	_, err = e.reviewSvc.OnReviewSaved(ctx, review.ID, 42, &model.SaveReviewRequest{
		VendorStatus:            model.VendorReviewSuspicious,
		AllowStatusUpdateOnFail: true,
	})
	if err != nil {
		t.Fatalf("review save: %v", err)
	}
	after, _ = e.attempts.GetByID(ctx, attempt.ID)
	if after.Status != model.AttemptStatusRejected {
		t.Errorf("attempt status = %s, want rejected after human push", after.Status)
	}
	saved, _ := e.reviews.GetByID(ctx, review.ID)
	if saved.ReviewedBy == nil || *saved.ReviewedBy != 42 {
		t.Errorf("reviewed_by = %v, want 42", saved.ReviewedBy)
	}
	if len(e.reviews.snapshots) != 1 {
		t.Errorf("review snapshots = %d, want 1 (pre-edit verdict archived)", len(e.reviews.snapshots))
	}
}

func TestCallbackNotReviewedCountsAsFailing(t *testing.T) {
	e := newEnv(t)
	attempt := submittedAttempt(t, e)
	ctx := context.Background()

	if _, err := e.reviewSvc.OnReviewCallback(ctx, attempt.AttemptCode,
		ssiCallback("ext-123", attempt.AttemptCode, model.VendorReviewNotReviewed)); err != nil {
		t.Fatalf("callback: %v", err)
	}
	after, _ := e.attempts.GetByID(ctx, attempt.ID)
	if after.Status != model.AttemptStatusRejected {
		t.Errorf("attempt status = %s, want rejected for not-reviewed", after.Status)
	}
}

func TestCallbackUnknownVendorStatus(t *testing.T) {
	e := newEnv(t)
	attempt := submittedAttempt(t, e)

	_, err := e.reviewSvc.OnReviewCallback(context.Background(), attempt.AttemptCode,
		ssiCallback("ext-123", attempt.AttemptCode, "Perfectly Fine"))
	if !errors.Is(err, ErrBadReviewStatus) {
		t.Errorf("err = %v, want ErrBadReviewStatus", err)
	}
}

func TestCallbackExternalIDMismatchIsSuspicious(t *testing.T) {
	e := newEnv(t)
	attempt := submittedAttempt(t, e)
	ctx := context.Background()

	_, err := e.reviewSvc.OnReviewCallback(ctx, attempt.AttemptCode,
		ssiCallback("someone-else", attempt.AttemptCode, model.VendorReviewClean))
	if !errors.Is(err, ErrSuspiciousLookup) {
		t.Fatalf("err = %v, want ErrSuspiciousLookup", err)
	}
	// Nothing persisted, attempt untouched.
	if len(e.reviews.reviews) != 0 {
		t.Error("review persisted despite suspicious lookup")
	}
	after, _ := e.attempts.GetByID(ctx, attempt.ID)
	if after.Status != model.AttemptStatusSubmitted {
		t.Errorf("attempt status = %s, want submitted unchanged", after.Status)
	}
}

func TestCallbackExternalIDCheckIsCaseInsensitive(t *testing.T) {
	e := newEnv(t)
	attempt := submittedAttempt(t, e)

	if _, err := e.reviewSvc.OnReviewCallback(context.Background(), attempt.AttemptCode,
		ssiCallback("EXT-123", attempt.AttemptCode, model.VendorReviewClean)); err != nil {
		t.Errorf("case-insensitive match rejected: %v", err)
	}
}

func TestCallbackSimulationSkipsCorrelation(t *testing.T) {
	e := newEnv(t)
	e.cfg.AllowCallbackSimulation = true
	attempt := submittedAttempt(t, e)

	if _, err := e.reviewSvc.OnReviewCallback(context.Background(), attempt.AttemptCode,
		ssiCallback("whatever", attempt.AttemptCode, model.VendorReviewClean)); err != nil {
		t.Errorf("simulation callback rejected: %v", err)
	}
}

func TestDuplicateCallbackPolicy(t *testing.T) {
	e := newEnv(t)
	attempt := submittedAttempt(t, e)
	ctx := context.Background()

	first := ssiCallback("ext-123", attempt.AttemptCode, model.VendorReviewClean)
	if _, err := e.reviewSvc.OnReviewCallback(ctx, attempt.AttemptCode, first); err != nil {
		t.Fatalf("first callback: %v", err)
	}

	second := ssiCallback("ext-123", attempt.AttemptCode, model.VendorReviewSuspicious)
	if _, err := e.reviewSvc.OnReviewCallback(ctx, attempt.AttemptCode, second); !errors.Is(err, ErrReviewAlreadyExists) {
		t.Fatalf("duplicate err = %v, want ErrReviewAlreadyExists", err)
	}

	e.cfg.AllowReviewUpdates = true
	review, err := e.reviewSvc.OnReviewCallback(ctx, attempt.AttemptCode, second)
	if err != nil {
		t.Fatalf("update callback: %v", err)
	}
	if review.ReviewStatus != model.ReviewStatusSuspicious {
		t.Errorf("review status = %s, want suspicious", review.ReviewStatus)
	}
	if len(e.reviews.snapshots) != 1 {
		t.Errorf("review snapshots = %d, want 1 (first verdict archived)", len(e.reviews.snapshots))
	}
	after, _ := e.attempts.GetByID(ctx, attempt.ID)
	if after.Status != model.AttemptStatusRejected {
		t.Errorf("attempt status = %s, want rejected after re-review", after.Status)
	}
}

func TestCallbackForArchivedAttemptPersistsWithoutTransition(t *testing.T) {
	e := newEnv(t)
	attempt := submittedAttempt(t, e)
	ctx := context.Background()

	if err := e.attemptSvc.Remove(ctx, attempt.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}

	review, err := e.reviewSvc.OnReviewCallback(ctx, attempt.AttemptCode,
		ssiCallback("ext-123", attempt.AttemptCode, model.VendorReviewClean))
	if err != nil {
		t.Fatalf("callback for archived attempt: %v", err)
	}
	if review.ReviewStatus != model.ReviewStatusPassed {
		t.Errorf("review status = %s, want passed", review.ReviewStatus)
	}
	if _, err := e.attempts.GetByID(ctx, attempt.ID); err == nil {
		t.Error("attempt resurrected by archived-attempt review")
	}
}

func TestCallbackUnknownAttemptCode(t *testing.T) {
	e := newEnv(t)
	_ = submittedAttempt(t, e)

	_, err := e.reviewSvc.OnReviewCallback(context.Background(), "no-such-code",
		ssiCallback("ext-123", "no-such-code", model.VendorReviewClean))
	if !errors.Is(err, ErrAttemptNotFound) {
		t.Errorf("err = %v, want ErrAttemptNotFound", err)
	}
}

func TestCallbackRedactsVideoLink(t *testing.T) {
	e := newEnv(t)
	attempt := submittedAttempt(t, e)

	review, err := e.reviewSvc.OnReviewCallback(context.Background(), attempt.AttemptCode,
		ssiCallback("ext-123", attempt.AttemptCode, model.VendorReviewClean))
	if err != nil {
		t.Fatalf("callback: %v", err)
	}
	if bytes.Contains(review.RawData, []byte("videoReviewLink")) {
		t.Error("video review link survived redaction")
	}
	if !bytes.Contains(review.RawData, []byte("ssiRecordLocator")) {
		t.Error("redaction dropped unrelated fields")
	}
}

func TestCallbackKeepsVideoLinkWhenRedactionOff(t *testing.T) {
	e := newEnv(t)
	e.cfg.RedactReviewVideoURLs = false
	attempt := submittedAttempt(t, e)

	review, err := e.reviewSvc.OnReviewCallback(context.Background(), attempt.AttemptCode,
		ssiCallback("ext-123", attempt.AttemptCode, model.VendorReviewClean))
	if err != nil {
		t.Fatalf("callback: %v", err)
	}
	if !bytes.Contains(review.RawData, []byte("videoReviewLink")) {
		t.Error("video review link missing with redaction off")
	}
}

func TestReviewSavedUnknownStatus(t *testing.T) {
	e := newEnv(t)
	attempt := submittedAttempt(t, e)
	ctx := context.Background()

	review, err := e.reviewSvc.OnReviewCallback(ctx, attempt.AttemptCode,
		ssiCallback("ext-123", attempt.AttemptCode, model.VendorReviewClean))
	if err != nil {
		t.Fatalf("callback: %v", err)
	}
	_, err = e.reviewSvc.OnReviewSaved(ctx, review.ID, 42, &model.SaveReviewRequest{VendorStatus: "Great"})
	if !errors.Is(err, ErrBadReviewStatus) {
		t.Errorf("err = %v, want ErrBadReviewStatus", err)
	}
}
