package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/provigil/proctor-backend/internal/model"
)

// AllowanceRepository handles per-(user, exam, key) override storage with
// an append-only allowance_history archive. The first grant writes no
// history row; every later update or delete archives the pre-image first.
type AllowanceRepository struct {
	pool *pgxpool.Pool
}

// NewAllowanceRepository creates a new AllowanceRepository.
func NewAllowanceRepository(pool *pgxpool.Pool) *AllowanceRepository {
	return &AllowanceRepository{pool: pool}
}

const allowanceColumns = `id, exam_id, user_id, key, value, created_at, updated_at`

func scanAllowance(row interface{ Scan(...any) error }) (*model.Allowance, error) {
	a := &model.Allowance{}
	err := row.Scan(&a.ID, &a.ExamID, &a.UserID, &a.Key, &a.Value, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Get retrieves one allowance by its (exam, user, key) identity.
func (r *AllowanceRepository) Get(ctx context.Context, examID int64, userID int, key model.AllowanceKey) (*model.Allowance, error) {
	return scanAllowance(r.pool.QueryRow(ctx,
		`SELECT `+allowanceColumns+` FROM allowances
		 WHERE exam_id = $1 AND user_id = $2 AND key = $3`,
		examID, userID, key))
}

// Upsert creates or updates an allowance. On update, the pre-change row is
// archived within the same transaction before the new value is written.
func (r *AllowanceRepository) Upsert(ctx context.Context, a *model.Allowance) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	existing, err := scanAllowance(tx.QueryRow(ctx,
		`SELECT `+allowanceColumns+` FROM allowances
		 WHERE exam_id = $1 AND user_id = $2 AND key = $3 FOR UPDATE`,
		a.ExamID, a.UserID, a.Key))
	switch {
	case err == nil:
		if err := insertAllowanceSnapshot(ctx, tx, existing.Snapshot()); err != nil {
			return fmt.Errorf("archive allowance: %w", err)
		}
		err = tx.QueryRow(ctx,
			`UPDATE allowances SET value = $1, updated_at = NOW()
			 WHERE id = $2 RETURNING id, created_at, updated_at`,
			a.Value, existing.ID,
		).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
		if err != nil {
			return fmt.Errorf("update allowance: %w", err)
		}
	case errors.Is(err, pgx.ErrNoRows):
		err = tx.QueryRow(ctx,
			`INSERT INTO allowances (exam_id, user_id, key, value)
			 VALUES ($1, $2, $3, $4)
			 RETURNING id, created_at, updated_at`,
			a.ExamID, a.UserID, a.Key, a.Value,
		).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicate
			}
			return fmt.Errorf("insert allowance: %w", err)
		}
	default:
		return err
	}

	return tx.Commit(ctx)
}

// Delete archives and removes an allowance. Reports found=false (and no
// error) when the allowance does not exist, making removal idempotent.
func (r *AllowanceRepository) Delete(ctx context.Context, examID int64, userID int, key model.AllowanceKey) (found bool, err error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	existing, err := scanAllowance(tx.QueryRow(ctx,
		`SELECT `+allowanceColumns+` FROM allowances
		 WHERE exam_id = $1 AND user_id = $2 AND key = $3 FOR UPDATE`,
		examID, userID, key))
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if err := insertAllowanceSnapshot(ctx, tx, existing.Snapshot()); err != nil {
		return false, fmt.Errorf("archive allowance: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM allowances WHERE id = $1`, existing.ID); err != nil {
		return false, fmt.Errorf("delete allowance: %w", err)
	}

	return true, tx.Commit(ctx)
}

// ListByUser returns a user's allowances for one exam.
func (r *AllowanceRepository) ListByUser(ctx context.Context, examID int64, userID int) ([]model.Allowance, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+allowanceColumns+` FROM allowances
		 WHERE exam_id = $1 AND user_id = $2 ORDER BY key ASC`, examID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAllowances(rows)
}

// ListByCourse returns every allowance granted for exams in a course.
func (r *AllowanceRepository) ListByCourse(ctx context.Context, courseID string) ([]model.Allowance, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT a.id, a.exam_id, a.user_id, a.key, a.value, a.created_at, a.updated_at
		 FROM allowances a
		 JOIN exams e ON e.id = a.exam_id
		 WHERE e.course_id = $1
		 ORDER BY a.exam_id, a.user_id, a.key`, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAllowances(rows)
}

func collectAllowances(rows pgx.Rows) ([]model.Allowance, error) {
	var out []model.Allowance
	for rows.Next() {
		a, err := scanAllowance(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func insertAllowanceSnapshot(ctx context.Context, tx pgx.Tx, s *model.AllowanceSnapshot) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO allowance_history (allowance_id, exam_id, user_id, key, value)
		 VALUES ($1, $2, $3, $4, $5)`,
		s.AllowanceID, s.ExamID, s.UserID, s.Key, s.Value)
	return err
}
