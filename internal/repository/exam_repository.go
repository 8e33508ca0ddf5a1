package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/provigil/proctor-backend/internal/model"
)

// ErrDuplicate is returned when an insert hits a unique constraint.
// The constraint violation is the authoritative conflict signal; callers
// must not rely on a prior existence check alone.
var ErrDuplicate = errors.New("duplicate row")

// isUniqueViolation reports whether err is a PostgreSQL unique-constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// ExamRepository handles exam data access.
type ExamRepository struct {
	pool *pgxpool.Pool
}

// NewExamRepository creates a new ExamRepository.
func NewExamRepository(pool *pgxpool.Pool) *ExamRepository {
	return &ExamRepository{pool: pool}
}

const examColumns = `id, course_id, content_id, exam_name, time_limit_mins, due_date,
	is_proctored, is_practice_exam, is_active, hide_after_due, backend,
	external_id, created_at, updated_at`

func scanExam(row interface{ Scan(...any) error }) (*model.Exam, error) {
	e := &model.Exam{}
	err := row.Scan(&e.ID, &e.CourseID, &e.ContentID, &e.ExamName, &e.TimeLimitMins,
		&e.DueDate, &e.IsProctored, &e.IsPractice, &e.IsActive, &e.HideAfterDue,
		&e.Backend, &e.ExternalID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// Create inserts a new exam. Returns ErrDuplicate when the
// (course_id, content_id) pair is already registered.
func (r *ExamRepository) Create(ctx context.Context, e *model.Exam) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO exams (course_id, content_id, exam_name, time_limit_mins, due_date,
		                    is_proctored, is_practice_exam, is_active, hide_after_due, backend, external_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING id, created_at, updated_at`,
		e.CourseID, e.ContentID, e.ExamName, e.TimeLimitMins, e.DueDate,
		e.IsProctored, e.IsPractice, e.IsActive, e.HideAfterDue, e.Backend, e.ExternalID,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// GetByID retrieves an exam by id.
func (r *ExamRepository) GetByID(ctx context.Context, id int64) (*model.Exam, error) {
	return scanExam(r.pool.QueryRow(ctx,
		`SELECT `+examColumns+` FROM exams WHERE id = $1`, id))
}

// GetByContent retrieves an exam by its (course_id, content_id) identity.
func (r *ExamRepository) GetByContent(ctx context.Context, courseID, contentID string) (*model.Exam, error) {
	return scanExam(r.pool.QueryRow(ctx,
		`SELECT `+examColumns+` FROM exams WHERE course_id = $1 AND content_id = $2`,
		courseID, contentID))
}

// Update persists all mutable exam fields.
func (r *ExamRepository) Update(ctx context.Context, e *model.Exam) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE exams SET exam_name = $1, time_limit_mins = $2, due_date = $3,
		        is_proctored = $4, is_practice_exam = $5, is_active = $6,
		        hide_after_due = $7, backend = $8, external_id = $9, updated_at = NOW()
		 WHERE id = $10`,
		e.ExamName, e.TimeLimitMins, e.DueDate, e.IsProctored, e.IsPractice,
		e.IsActive, e.HideAfterDue, e.Backend, e.ExternalID, e.ID)
	return err
}

// ListByCourse retrieves a course's exams ordered by creation time.
func (r *ExamRepository) ListByCourse(ctx context.Context, courseID string, activeOnly, proctoredOnly bool) ([]model.Exam, error) {
	query := `SELECT ` + examColumns + ` FROM exams WHERE course_id = $1`
	if activeOnly {
		query += ` AND is_active = TRUE`
	}
	if proctoredOnly {
		query += ` AND is_proctored = TRUE`
	}
	query += ` ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, query, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exams []model.Exam
	for rows.Next() {
		e, err := scanExam(rows)
		if err != nil {
			return nil, err
		}
		exams = append(exams, *e)
	}
	return exams, rows.Err()
}
