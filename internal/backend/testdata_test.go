package backend

import (
	"github.com/provigil/proctor-backend/internal/model"
)

func testExam() *model.Exam {
	return &model.Exam{
		ID:            1,
		CourseID:      "course-v1:Uni+CS101+2026",
		ContentID:     "block-v1:final-exam",
		ExamName:      "Final Exam",
		TimeLimitMins: 60,
		IsProctored:   true,
		IsActive:      true,
		Backend:       "rest",
	}
}

func testAttempt() *model.Attempt {
	return &model.Attempt{
		ID:                   10,
		ExamID:               1,
		UserID:               42,
		Status:               model.AttemptStatusCreated,
		AttemptCode:          "code-abc",
		AllowedTimeLimitMins: 60,
		TakingAsProctored:    true,
	}
}
