package backend

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/provigil/proctor-backend/internal/config"
	"github.com/rs/zerolog"
)

func newTestREST(t *testing.T, handler http.HandlerFunc) *REST {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := &config.Config{
		VendorBaseURL:         srv.URL,
		VendorClientKey:       "key-1",
		VendorClientSecret:    "secret-1",
		VendorRequestTimeout:  2 * time.Second,
		VendorSoftwareURL:     "https://vendor.example.com/download",
		VendorExamRegisterTag: "proctor-backend",
	}
	return NewREST(cfg, zerolog.Nop())
}

func TestRESTRegisterAttempt(t *testing.T) {
	var gotSig, gotBody string
	be := newTestREST(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		gotSig = r.Header.Get("X-Signature")
		w.Write([]byte(`{"ssiRecordLocator": "SSI-777"}`))
	})

	exam := testExam()
	attempt := testAttempt()
	id, err := be.RegisterAttempt(context.Background(), exam, attempt)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if id != "SSI-777" {
		t.Errorf("external id = %q", id)
	}

	mac := hmac.New(sha256.New, []byte("secret-1"))
	mac.Write([]byte(gotBody))
	if want := hex.EncodeToString(mac.Sum(nil)); gotSig != want {
		t.Errorf("signature mismatch: got %q want %q", gotSig, want)
	}
}

func TestRESTRegisterAttemptVendorRejection(t *testing.T) {
	be := newTestREST(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "exam quota exceeded", http.StatusPaymentRequired)
	})

	_, err := be.RegisterAttempt(context.Background(), testExam(), testAttempt())
	var regErr *RegistrationError
	if !errors.As(err, &regErr) {
		t.Fatalf("expected RegistrationError, got %v", err)
	}
	if regErr.HTTPStatus != http.StatusPaymentRequired {
		t.Errorf("http status = %d", regErr.HTTPStatus)
	}
}

func TestRESTRegisterAttemptMissingLocator(t *testing.T) {
	be := newTestREST(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})

	_, err := be.RegisterAttempt(context.Background(), testExam(), testAttempt())
	var regErr *RegistrationError
	if !errors.As(err, &regErr) {
		t.Fatalf("expected RegistrationError, got %v", err)
	}
}

func TestRESTOnExamSaved(t *testing.T) {
	be := newTestREST(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id": "vendor-exam-9"}`))
	})

	id, err := be.OnExamSaved(context.Background(), testExam())
	if err != nil {
		t.Fatalf("on exam saved: %v", err)
	}
	if id != "vendor-exam-9" {
		t.Errorf("vendor exam id = %q", id)
	}
}
