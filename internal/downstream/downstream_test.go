package downstream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/provigil/proctor-backend/internal/config"
)

func TestTemplateForVendorOverride(t *testing.T) {
	if got := TemplateFor("rest", "verified"); got != "proctoring/rest/verified" {
		t.Errorf("vendor template = %q", got)
	}
	if got := TemplateFor("mock", "verified"); got != "proctoring/default/verified" {
		t.Errorf("fallback template = %q", got)
	}
	// Vendor override exists only for the statuses the vendor ships.
	if got := TemplateFor("rest", "declined"); got != "proctoring/default/declined" {
		t.Errorf("unshipped vendor status should fall back, got %q", got)
	}
}

func TestHTTPCreditSetRequirementStatus(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/requirements" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Api-Key pk-1" {
			t.Errorf("authorization = %q", auth)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	credit := NewHTTPCredit(&config.Config{CreditServiceURL: srv.URL, PlatformAPIKey: "pk-1"})
	err := credit.SetRequirementStatus(context.Background(), 7, "course-1", "final", CreditFailed)
	if err != nil {
		t.Fatalf("set requirement: %v", err)
	}
	if got["namespace"] != "proctored_exam" || got["status"] != "failed" {
		t.Errorf("payload = %v", got)
	}
}

func TestHTTPInstructorIsCourseStaff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/courses/course-1/staff/7" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"is_staff": true}`))
	}))
	defer srv.Close()

	inst := NewHTTPInstructor(&config.Config{InstructorServiceURL: srv.URL})
	ok, err := inst.IsCourseStaff(context.Background(), 7, "course-1")
	if err != nil || !ok {
		t.Errorf("is staff = %v, %v", ok, err)
	}
}
