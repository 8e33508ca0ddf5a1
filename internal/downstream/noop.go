package downstream

import (
	"context"

	"github.com/rs/zerolog"
)

// NoopServices returns a downstream bundle that only logs. Used in dev
// when the platform APIs are not reachable.
func NoopServices(log zerolog.Logger) Services {
	l := log.With().Str("component", "downstream_noop").Logger()
	return Services{
		Credit:     &noopCredit{log: l},
		Grades:     &noopGrades{log: l},
		Instructor: &noopInstructor{},
		Email:      &noopEmail{log: l},
	}
}

type noopCredit struct {
	log zerolog.Logger
}

func (n *noopCredit) SetRequirementStatus(ctx context.Context, userID int, courseID, name string, status CreditRequirementStatus) error {
	n.log.Info().Int("user_id", userID).Str("course_id", courseID).
		Str("name", name).Str("status", string(status)).Msg("credit requirement update (noop)")
	return nil
}

func (n *noopCredit) RemoveRequirementStatus(ctx context.Context, userID int, courseID, name string) error {
	n.log.Info().Int("user_id", userID).Str("course_id", courseID).
		Str("name", name).Msg("credit requirement removal (noop)")
	return nil
}

type noopGrades struct {
	log zerolog.Logger
}

func (n *noopGrades) OverrideGrade(ctx context.Context, userID int, courseID, contentID string, earned float64) error {
	n.log.Info().Int("user_id", userID).Str("content_id", contentID).
		Float64("earned", earned).Msg("grade override (noop)")
	return nil
}

func (n *noopGrades) UndoGradeOverride(ctx context.Context, userID int, courseID, contentID string) error {
	n.log.Info().Int("user_id", userID).Str("content_id", contentID).Msg("grade override undo (noop)")
	return nil
}

type noopInstructor struct{}

func (n *noopInstructor) IsCourseStaff(ctx context.Context, userID int, courseID string) (bool, error) {
	return false, nil
}

type noopEmail struct {
	log zerolog.Logger
}

func (n *noopEmail) Send(ctx context.Context, msg EmailMessage) error {
	n.log.Info().Int("user_id", msg.UserID).Str("template", msg.Template).Msg("notification email (noop)")
	return nil
}
