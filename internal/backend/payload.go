package backend

import (
	"encoding/json"
	"fmt"

	"github.com/provigil/proctor-backend/internal/model"
)

// ssiPayload mirrors the vendor's review callback JSON shape.
type ssiPayload struct {
	ExamMetaData struct {
		SSIRecordLocator string `json:"ssiRecordLocator"`
		ExamCode         string `json:"examCode"`
	} `json:"examMetaData"`
	ReviewStatus    string       `json:"reviewStatus"`
	VideoReviewLink string       `json:"videoReviewLink"`
	WebCamComments  []ssiComment `json:"webCamComments"`
	DesktopComments []ssiComment `json:"desktopComments"`
}

type ssiComment struct {
	Comments    string `json:"comments"`
	EventStart  int    `json:"eventStart"`
	EventFinish int    `json:"eventFinish"`
	Duration    int    `json:"duration"`
	EventStatus string `json:"eventStatus"`
}

// decodeSSIPayload parses the SSI-style callback body shared by the REST
// and mock backends into the normalized review payload.
func decodeSSIPayload(raw []byte) (*ReviewPayload, error) {
	var p ssiPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode review payload: %w", err)
	}
	if p.ReviewStatus == "" {
		return nil, fmt.Errorf("review payload missing reviewStatus")
	}

	out := &ReviewPayload{
		ExternalID:  p.ExamMetaData.SSIRecordLocator,
		AttemptCode: p.ExamMetaData.ExamCode,
		Status:      p.ReviewStatus,
		Raw:         json.RawMessage(raw),
	}
	for _, c := range p.WebCamComments {
		out.Comments = append(out.Comments, toReviewComment(c))
	}
	for _, c := range p.DesktopComments {
		out.Comments = append(out.Comments, toReviewComment(c))
	}
	return out, nil
}

func toReviewComment(c ssiComment) model.ReviewComment {
	return model.ReviewComment{
		StartMs:  c.EventStart,
		StopMs:   c.EventFinish,
		Duration: c.Duration,
		Comment:  c.Comments,
		Status:   c.EventStatus,
	}
}
