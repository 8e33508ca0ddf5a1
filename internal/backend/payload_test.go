package backend

import (
	"testing"
)

const sampleCallback = `{
	"examMetaData": {
		"ssiRecordLocator": "SSI-123-ABC",
		"examCode": "d9f6b5a4-0000-0000-0000-000000000001"
	},
	"reviewStatus": "Rules Violation",
	"videoReviewLink": "https://vendor.example.com/review/123",
	"webCamComments": [
		{"comments": "second person in frame", "eventStart": 1000, "eventFinish": 4000, "duration": 3000, "eventStatus": "Suspicious"}
	],
	"desktopComments": [
		{"comments": "browser switched away", "eventStart": 9000, "eventFinish": 9500, "duration": 500, "eventStatus": "Rules Violation"}
	]
}`

func TestDecodeSSIPayload(t *testing.T) {
	p, err := decodeSSIPayload([]byte(sampleCallback))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.ExternalID != "SSI-123-ABC" {
		t.Errorf("external id = %q", p.ExternalID)
	}
	if p.AttemptCode != "d9f6b5a4-0000-0000-0000-000000000001" {
		t.Errorf("attempt code = %q", p.AttemptCode)
	}
	if p.Status != "Rules Violation" {
		t.Errorf("status = %q", p.Status)
	}
	if len(p.Comments) != 2 {
		t.Fatalf("expected 2 comments, got %d", len(p.Comments))
	}
	first := p.Comments[0]
	if first.StartMs != 1000 || first.StopMs != 4000 || first.Duration != 3000 {
		t.Errorf("webcam comment timing = %+v", first)
	}
	if first.Comment != "second person in frame" || first.Status != "Suspicious" {
		t.Errorf("webcam comment content = %+v", first)
	}
}

func TestDecodeSSIPayloadRejectsMissingStatus(t *testing.T) {
	if _, err := decodeSSIPayload([]byte(`{"examMetaData": {"examCode": "x"}}`)); err == nil {
		t.Error("payload without reviewStatus should be rejected")
	}
}

func TestDecodeSSIPayloadRejectsGarbage(t *testing.T) {
	if _, err := decodeSSIPayload([]byte(`{{not json`)); err == nil {
		t.Error("malformed JSON should be rejected")
	}
}

func TestRegistryResolution(t *testing.T) {
	reg := NewRegistry("null")
	reg.Register(NewNull())
	mock := NewMock()
	reg.Register(mock)

	b, err := reg.Get("")
	if err != nil || b.Name() != "null" {
		t.Errorf("empty name should resolve default, got %v, %v", b, err)
	}

	b, err = reg.Get("mock")
	if err != nil || b.Name() != "mock" {
		t.Errorf("mock lookup failed: %v, %v", b, err)
	}

	if _, err := reg.Get("holodeck"); err == nil {
		t.Error("unknown backend should error")
	}
}
