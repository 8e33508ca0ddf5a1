package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/provigil/proctor-backend/internal/model"
)

// AttemptRepository handles exam attempt data access, including the
// append-only attempt_history archive. Every status-changing write runs
// as a single transaction: lock current row, archive pre-image, write new
// values. History rows are never deleted, so "deleted" attempts remain
// queryable through their snapshots.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

const attemptColumns = `id, exam_id, user_id, status, attempt_code, external_id,
	started_at, completed_at, allowed_time_limit_mins, taking_as_proctored,
	is_sample_attempt, review_policy_id, status_acknowledged, created_at, updated_at`

func scanAttempt(row interface{ Scan(...any) error }) (*model.Attempt, error) {
	a := &model.Attempt{}
	err := row.Scan(&a.ID, &a.ExamID, &a.UserID, &a.Status, &a.AttemptCode,
		&a.ExternalID, &a.StartedAt, &a.CompletedAt, &a.AllowedTimeLimitMins,
		&a.TakingAsProctored, &a.IsSampleAttempt, &a.ReviewPolicyID,
		&a.StatusAcknowledged, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Create inserts a new attempt. Returns ErrDuplicate when a live attempt
// for the (user, exam) pair already exists — the unique constraint, not an
// application-level check, decides concurrent creation races.
func (r *AttemptRepository) Create(ctx context.Context, a *model.Attempt) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO exam_attempts (exam_id, user_id, status, attempt_code, external_id,
		        started_at, completed_at, allowed_time_limit_mins, taking_as_proctored,
		        is_sample_attempt, review_policy_id, status_acknowledged)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 RETURNING id, created_at, updated_at`,
		a.ExamID, a.UserID, a.Status, a.AttemptCode, a.ExternalID,
		a.StartedAt, a.CompletedAt, a.AllowedTimeLimitMins, a.TakingAsProctored,
		a.IsSampleAttempt, a.ReviewPolicyID, a.StatusAcknowledged,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// GetByID retrieves an attempt by id.
func (r *AttemptRepository) GetByID(ctx context.Context, id int64) (*model.Attempt, error) {
	return scanAttempt(r.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM exam_attempts WHERE id = $1`, id))
}

// GetByExamAndUser retrieves the live attempt for a (exam, user) pair.
func (r *AttemptRepository) GetByExamAndUser(ctx context.Context, examID int64, userID int) (*model.Attempt, error) {
	return scanAttempt(r.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM exam_attempts WHERE exam_id = $1 AND user_id = $2`,
		examID, userID))
}

// GetByCode retrieves the live attempt with the given attempt code.
func (r *AttemptRepository) GetByCode(ctx context.Context, code string) (*model.Attempt, error) {
	return scanAttempt(r.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM exam_attempts WHERE attempt_code = $1`, code))
}

// GetLatestSnapshotByCode retrieves the most recent archived snapshot for
// an attempt code. Used when a review arrives after the attempt was removed.
func (r *AttemptRepository) GetLatestSnapshotByCode(ctx context.Context, code string) (*model.AttemptSnapshot, error) {
	s := &model.AttemptSnapshot{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, attempt_id, exam_id, user_id, status, attempt_code, external_id,
		        started_at, completed_at, allowed_time_limit_mins, taking_as_proctored,
		        is_sample_attempt, review_policy_id, status_acknowledged, created_at
		 FROM exam_attempt_history WHERE attempt_code = $1
		 ORDER BY id DESC LIMIT 1`, code,
	).Scan(&s.ID, &s.AttemptID, &s.ExamID, &s.UserID, &s.Status, &s.AttemptCode,
		&s.ExternalID, &s.StartedAt, &s.CompletedAt, &s.AllowedTimeLimitMins,
		&s.TakingAsProctored, &s.IsSampleAttempt, &s.ReviewPolicyID,
		&s.StatusAcknowledged, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// ListSnapshots returns every archived snapshot of an attempt in creation
// order. The status column, read in order, reproduces every distinct
// status the attempt ever held.
func (r *AttemptRepository) ListSnapshots(ctx context.Context, attemptID int64) ([]model.AttemptSnapshot, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, attempt_id, exam_id, user_id, status, attempt_code, external_id,
		        started_at, completed_at, allowed_time_limit_mins, taking_as_proctored,
		        is_sample_attempt, review_policy_id, status_acknowledged, created_at
		 FROM exam_attempt_history WHERE attempt_id = $1 ORDER BY id ASC`, attemptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snaps []model.AttemptSnapshot
	for rows.Next() {
		var s model.AttemptSnapshot
		if err := rows.Scan(&s.ID, &s.AttemptID, &s.ExamID, &s.UserID, &s.Status,
			&s.AttemptCode, &s.ExternalID, &s.StartedAt, &s.CompletedAt,
			&s.AllowedTimeLimitMins, &s.TakingAsProctored, &s.IsSampleAttempt,
			&s.ReviewPolicyID, &s.StatusAcknowledged, &s.CreatedAt); err != nil {
			return nil, err
		}
		snaps = append(snaps, s)
	}
	return snaps, rows.Err()
}

// ListByCourse returns all live attempts for exams in a course.
func (r *AttemptRepository) ListByCourse(ctx context.Context, courseID string) ([]model.Attempt, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT a.id, a.exam_id, a.user_id, a.status, a.attempt_code, a.external_id,
		        a.started_at, a.completed_at, a.allowed_time_limit_mins, a.taking_as_proctored,
		        a.is_sample_attempt, a.review_policy_id, a.status_acknowledged, a.created_at, a.updated_at
		 FROM exam_attempts a
		 JOIN exams e ON e.id = a.exam_id
		 WHERE e.course_id = $1
		 ORDER BY a.created_at ASC`, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []model.Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, *a)
	}
	return attempts, rows.Err()
}

// ListOverdue returns up to limit started, still-incomplete attempts whose
// clock elapsed before now. Consumed by the operational timeout sweep.
func (r *AttemptRepository) ListOverdue(ctx context.Context, now time.Time, limit int) ([]model.Attempt, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+attemptColumns+` FROM exam_attempts
		 WHERE started_at IS NOT NULL
		   AND status IN ('started', 'ready_to_submit')
		   AND started_at + (allowed_time_limit_mins * INTERVAL '1 minute') < $1
		 ORDER BY id ASC LIMIT $2`, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []model.Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, *a)
	}
	return attempts, rows.Err()
}

// UpdateWithHistory applies mutate to the locked current row and persists
// the result. When mutate changes the status, the pre-image is archived
// into exam_attempt_history inside the same transaction, so concurrent
// transitions cannot interleave and the archive keeps every distinct
// status in order. Returns the pre-image and the updated row.
func (r *AttemptRepository) UpdateWithHistory(ctx context.Context, id int64, mutate func(*model.Attempt) error) (prev *model.Attempt, updated *model.Attempt, err error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	current, err := scanAttempt(tx.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM exam_attempts WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, nil, err
	}

	pre := *current
	if err := mutate(current); err != nil {
		return &pre, nil, err
	}

	if current.Status != pre.Status {
		if err := insertAttemptSnapshot(ctx, tx, pre.Snapshot()); err != nil {
			return &pre, nil, fmt.Errorf("archive attempt: %w", err)
		}
	}

	err = tx.QueryRow(ctx,
		`UPDATE exam_attempts SET status = $1, external_id = $2, started_at = $3,
		        completed_at = $4, allowed_time_limit_mins = $5, status_acknowledged = $6,
		        updated_at = NOW()
		 WHERE id = $7 RETURNING updated_at`,
		current.Status, current.ExternalID, current.StartedAt, current.CompletedAt,
		current.AllowedTimeLimitMins, current.StatusAcknowledged, id,
	).Scan(&current.UpdatedAt)
	if err != nil {
		return &pre, nil, fmt.Errorf("update attempt: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return &pre, nil, fmt.Errorf("commit: %w", err)
	}
	return &pre, current, nil
}

// Delete archives the current row and removes it, in one transaction.
// The snapshot keeps the "deleted" attempt queryable forever.
func (r *AttemptRepository) Delete(ctx context.Context, id int64) (*model.Attempt, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	current, err := scanAttempt(tx.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM exam_attempts WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, err
	}

	if err := insertAttemptSnapshot(ctx, tx, current.Snapshot()); err != nil {
		return nil, fmt.Errorf("archive attempt: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM exam_attempts WHERE id = $1`, id); err != nil {
		return nil, fmt.Errorf("delete attempt: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return current, nil
}

func insertAttemptSnapshot(ctx context.Context, tx pgx.Tx, s *model.AttemptSnapshot) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO exam_attempt_history (attempt_id, exam_id, user_id, status, attempt_code,
		        external_id, started_at, completed_at, allowed_time_limit_mins,
		        taking_as_proctored, is_sample_attempt, review_policy_id, status_acknowledged)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		s.AttemptID, s.ExamID, s.UserID, s.Status, s.AttemptCode, s.ExternalID,
		s.StartedAt, s.CompletedAt, s.AllowedTimeLimitMins, s.TakingAsProctored,
		s.IsSampleAttempt, s.ReviewPolicyID, s.StatusAcknowledged)
	return err
}
