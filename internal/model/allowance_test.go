package model

import (
	"testing"
)

func TestParseAllowanceKey(t *testing.T) {
	for _, raw := range []string{"additional_time_granted", "time_multiplier", "review_policy_exception"} {
		if _, err := ParseAllowanceKey(raw); err != nil {
			t.Errorf("ParseAllowanceKey(%q) unexpected error: %v", raw, err)
		}
	}
	if _, err := ParseAllowanceKey("extra_credit"); err == nil {
		t.Error("unknown key should be rejected")
	}
}

func TestValidateAdditionalTime(t *testing.T) {
	cases := []struct {
		value string
		ok    bool
	}{
		{"0", true},
		{"10", true},
		{"-1", false},
		{"ten", false},
		{"1.5", false},
		{"", false},
	}
	for _, tc := range cases {
		err := AllowanceAdditionalTime.ValidateValue(tc.value)
		if tc.ok && err != nil {
			t.Errorf("value %q should be accepted: %v", tc.value, err)
		}
		if !tc.ok && err == nil {
			t.Errorf("value %q should be rejected", tc.value)
		}
	}
}

func TestValidateTimeMultiplier(t *testing.T) {
	cases := []struct {
		value string
		ok    bool
	}{
		{"1", true},
		{"1.5", true},
		{"2.0", true},
		{"0.5", false},
		{"0", false},
		{"fast", false},
	}
	for _, tc := range cases {
		err := AllowanceTimeMultiplier.ValidateValue(tc.value)
		if tc.ok && err != nil {
			t.Errorf("value %q should be accepted: %v", tc.value, err)
		}
		if !tc.ok && err == nil {
			t.Errorf("value %q should be rejected", tc.value)
		}
	}
}

func TestValidateReviewPolicyException(t *testing.T) {
	if err := AllowanceReviewPolicyException.ValidateValue("allow bathroom breaks"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := AllowanceReviewPolicyException.ValidateValue(""); err == nil {
		t.Error("empty exception text should be rejected")
	}
}

func TestMapVendorReviewStatus(t *testing.T) {
	cases := map[string]ReviewStatus{
		VendorReviewClean:          ReviewStatusPassed,
		VendorReviewNotSuspicious:  ReviewStatusPassed,
		VendorReviewRulesViolation: ReviewStatusViolation,
		VendorReviewSuspicious:     ReviewStatusSuspicious,
		VendorReviewNotReviewed:    ReviewStatusNotReviewed,
	}
	for vendor, want := range cases {
		got, ok := MapVendorReviewStatus(vendor)
		if !ok || got != want {
			t.Errorf("MapVendorReviewStatus(%q) = %q, %v; want %q", vendor, got, ok, want)
		}
	}
	if _, ok := MapVendorReviewStatus("Fine I Guess"); ok {
		t.Error("unknown vendor status should not map")
	}
}
