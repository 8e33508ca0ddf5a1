package downstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/provigil/proctor-backend/internal/config"
)

// platformClient is the shared JSON-over-HTTP plumbing for the platform's
// internal credit, grades and instructor APIs.
type platformClient struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
}

func newPlatformClient(baseURL, apiKey string) *platformClient {
	return &platformClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpc:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *platformClient) do(ctx context.Context, method, path string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Api-Key "+c.apiKey)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("platform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("platform returned %d: %s", resp.StatusCode, raw)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode platform response: %w", err)
		}
	}
	return nil
}

// HTTPCredit talks to the platform's credit requirement API.
type HTTPCredit struct {
	client *platformClient
}

// NewHTTPCredit creates the credit API client.
func NewHTTPCredit(cfg *config.Config) *HTTPCredit {
	return &HTTPCredit{client: newPlatformClient(cfg.CreditServiceURL, cfg.PlatformAPIKey)}
}

func (c *HTTPCredit) SetRequirementStatus(ctx context.Context, userID int, courseID, name string, status CreditRequirementStatus) error {
	return c.client.do(ctx, http.MethodPut, "/requirements", map[string]interface{}{
		"user_id":   userID,
		"course_id": courseID,
		"namespace": "proctored_exam",
		"name":      name,
		"status":    status,
	}, nil)
}

func (c *HTTPCredit) RemoveRequirementStatus(ctx context.Context, userID int, courseID, name string) error {
	return c.client.do(ctx, http.MethodDelete, "/requirements", map[string]interface{}{
		"user_id":   userID,
		"course_id": courseID,
		"namespace": "proctored_exam",
		"name":      name,
	}, nil)
}

// HTTPGrades talks to the platform's grade override API.
type HTTPGrades struct {
	client *platformClient
}

// NewHTTPGrades creates the grades API client.
func NewHTTPGrades(cfg *config.Config) *HTTPGrades {
	return &HTTPGrades{client: newPlatformClient(cfg.GradesServiceURL, cfg.PlatformAPIKey)}
}

func (c *HTTPGrades) OverrideGrade(ctx context.Context, userID int, courseID, contentID string, earned float64) error {
	return c.client.do(ctx, http.MethodPut, "/overrides", map[string]interface{}{
		"user_id":    userID,
		"course_id":  courseID,
		"content_id": contentID,
		"earned":     earned,
	}, nil)
}

func (c *HTTPGrades) UndoGradeOverride(ctx context.Context, userID int, courseID, contentID string) error {
	return c.client.do(ctx, http.MethodDelete, "/overrides", map[string]interface{}{
		"user_id":    userID,
		"course_id":  courseID,
		"content_id": contentID,
	}, nil)
}

// HTTPInstructor talks to the platform's course team API.
type HTTPInstructor struct {
	client *platformClient
}

// NewHTTPInstructor creates the instructor API client.
func NewHTTPInstructor(cfg *config.Config) *HTTPInstructor {
	return &HTTPInstructor{client: newPlatformClient(cfg.InstructorServiceURL, cfg.PlatformAPIKey)}
}

func (c *HTTPInstructor) IsCourseStaff(ctx context.Context, userID int, courseID string) (bool, error) {
	var out struct {
		IsStaff bool `json:"is_staff"`
	}
	path := fmt.Sprintf("/courses/%s/staff/%d", courseID, userID)
	if err := c.client.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return false, err
	}
	return out.IsStaff, nil
}
