package backend

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/provigil/proctor-backend/internal/config"
	"github.com/provigil/proctor-backend/internal/model"
	"github.com/rs/zerolog"
)

// REST integrates an SSI-style proctoring vendor over HTTP. All calls are
// synchronous with a bounded timeout; the caller decides whether a failure
// is fatal (registration) or merely logged (start/stop/remove).
type REST struct {
	baseURL     string
	clientKey   string
	secret      string
	softwareURL string
	registerTag string
	httpc       *http.Client
	log         zerolog.Logger
}

// NewREST creates the REST vendor backend from configuration.
func NewREST(cfg *config.Config, log zerolog.Logger) *REST {
	return &REST{
		baseURL:     cfg.VendorBaseURL,
		clientKey:   cfg.VendorClientKey,
		secret:      cfg.VendorClientSecret,
		softwareURL: cfg.VendorSoftwareURL,
		registerTag: cfg.VendorExamRegisterTag,
		httpc:       &http.Client{Timeout: cfg.VendorRequestTimeout},
		log:         log.With().Str("component", "rest_backend").Logger(),
	}
}

func (r *REST) Name() string { return "rest" }

// sign computes the request signature the vendor verifies: HMAC-SHA256 of
// the body keyed by the shared client secret.
func (r *REST) sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(r.secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func (r *REST) post(ctx context.Context, path string, payload interface{}, out interface{}) (int, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Client-Key", r.clientKey)
	req.Header.Set("X-Signature", r.sign(body))

	resp, err := r.httpc.Do(req)
	if err != nil {
		return 0, fmt.Errorf("vendor request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, fmt.Errorf("read vendor response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("vendor returned %d: %s", resp.StatusCode, respBody)
	}
	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode vendor response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

// RegisterAttempt creates the vendor-side attempt record and returns its
// correlation id. Vendor rejection surfaces as a RegistrationError.
func (r *REST) RegisterAttempt(ctx context.Context, exam *model.Exam, attempt *model.Attempt) (string, error) {
	payload := map[string]interface{}{
		"examCode":       attempt.AttemptCode,
		"examName":       exam.ExamName,
		"courseID":       exam.CourseID,
		"duration":       attempt.AllowedTimeLimitMins,
		"reviewPolicy":   attempt.ReviewPolicyID,
		"orgExtra":       map[string]string{"registeredBy": r.registerTag},
		"examSponsor":    exam.CourseID,
		"ssiProduct":     "rp-now",
		"reviewedExam":   !exam.IsPractice,
		"clientTimeout":  int(r.httpc.Timeout.Seconds()),
		"examStartTimes": startWindow(exam),
	}

	var resp struct {
		SSIRecordLocator string `json:"ssiRecordLocator"`
	}
	status, err := r.post(ctx, "/exams/"+attempt.AttemptCode+"/register", payload, &resp)
	if err != nil {
		return "", &RegistrationError{Reason: err.Error(), HTTPStatus: status}
	}
	if resp.SSIRecordLocator == "" {
		return "", &RegistrationError{Reason: "vendor returned no record locator", HTTPStatus: status}
	}
	return resp.SSIRecordLocator, nil
}

func startWindow(exam *model.Exam) map[string]interface{} {
	w := map[string]interface{}{}
	if exam.DueDate != nil {
		w["end"] = exam.DueDate.UTC().Format(time.RFC3339)
	}
	return w
}

func (r *REST) StartAttempt(ctx context.Context, exam *model.Exam, attempt *model.Attempt) error {
	_, err := r.post(ctx, "/attempts/"+attempt.AttemptCode+"/start", map[string]string{
		"externalID": deref(attempt.ExternalID),
	}, nil)
	return err
}

func (r *REST) StopAttempt(ctx context.Context, exam *model.Exam, attempt *model.Attempt) error {
	_, err := r.post(ctx, "/attempts/"+attempt.AttemptCode+"/stop", map[string]string{
		"externalID": deref(attempt.ExternalID),
	}, nil)
	return err
}

func (r *REST) RemoveAttempt(ctx context.Context, exam *model.Exam, attempt *model.Attempt) error {
	_, err := r.post(ctx, "/attempts/"+attempt.AttemptCode+"/remove", map[string]string{
		"externalID": deref(attempt.ExternalID),
	}, nil)
	return err
}

func (r *REST) SoftwareDownloadURL() string { return r.softwareURL }

func (r *REST) DecodeReviewPayload(raw []byte) (*ReviewPayload, error) {
	return decodeSSIPayload(raw)
}

// OnExamSaved mirrors the exam definition to the vendor. The exam service
// sends a proctored-but-inactive payload when an exam leaves the proctored
// category so the vendor deactivates its copy instead of orphaning it.
func (r *REST) OnExamSaved(ctx context.Context, exam *model.Exam) (string, error) {
	payload := map[string]interface{}{
		"examName":    exam.ExamName,
		"courseID":    exam.CourseID,
		"contentID":   exam.ContentID,
		"duration":    exam.TimeLimitMins,
		"isProctored": exam.IsProctored,
		"isActive":    exam.IsActive,
	}
	if exam.ExternalID != nil {
		payload["externalID"] = *exam.ExternalID
	}

	var resp struct {
		ID string `json:"id"`
	}
	if _, err := r.post(ctx, "/exams", payload, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (r *REST) ShouldBlockExamMaterial() bool { return true }

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
