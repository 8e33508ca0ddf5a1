package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/provigil/proctor-backend/internal/model"
)

// ReviewRepository handles proctoring review storage: at most one live
// review per attempt_code, reviewer comments, and an append-only
// review_history archive written before any overwrite.
type ReviewRepository struct {
	pool *pgxpool.Pool
}

// NewReviewRepository creates a new ReviewRepository.
func NewReviewRepository(pool *pgxpool.Pool) *ReviewRepository {
	return &ReviewRepository{pool: pool}
}

const reviewColumns = `id, attempt_code, review_status, vendor_status, raw_data,
	reviewed_by, exam_id, user_id, created_at, updated_at`

func scanReview(row interface{ Scan(...any) error }) (*model.Review, error) {
	r := &model.Review{}
	err := row.Scan(&r.ID, &r.AttemptCode, &r.ReviewStatus, &r.VendorStatus,
		&r.RawData, &r.ReviewedBy, &r.ExamID, &r.UserID, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// GetByCode retrieves the live review for an attempt code, with comments.
func (r *ReviewRepository) GetByCode(ctx context.Context, attemptCode string) (*model.Review, error) {
	rev, err := scanReview(r.pool.QueryRow(ctx,
		`SELECT `+reviewColumns+` FROM reviews WHERE attempt_code = $1`, attemptCode))
	if err != nil {
		return nil, err
	}
	if rev.Comments, err = r.listComments(ctx, rev.ID); err != nil {
		return nil, err
	}
	return rev, nil
}

// GetByID retrieves a review by id, with comments.
func (r *ReviewRepository) GetByID(ctx context.Context, id int64) (*model.Review, error) {
	rev, err := scanReview(r.pool.QueryRow(ctx,
		`SELECT `+reviewColumns+` FROM reviews WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	if rev.Comments, err = r.listComments(ctx, rev.ID); err != nil {
		return nil, err
	}
	return rev, nil
}

// Create inserts a new review and its comments. Returns ErrDuplicate when
// a review already exists for the attempt code.
func (r *ReviewRepository) Create(ctx context.Context, rev *model.Review) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO reviews (attempt_code, review_status, vendor_status, raw_data,
		        reviewed_by, exam_id, user_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at, updated_at`,
		rev.AttemptCode, rev.ReviewStatus, rev.VendorStatus, rev.RawData,
		rev.ReviewedBy, rev.ExamID, rev.UserID,
	).Scan(&rev.ID, &rev.CreatedAt, &rev.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert review: %w", err)
	}

	if err := insertComments(ctx, tx, rev.ID, rev.Comments); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// UpdateWithHistory overwrites an existing review after archiving its
// pre-image (and dropping its old comments) in the same transaction.
// Only legal when review resubmission is enabled by configuration.
func (r *ReviewRepository) UpdateWithHistory(ctx context.Context, rev *model.Review) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	existing, err := scanReview(tx.QueryRow(ctx,
		`SELECT `+reviewColumns+` FROM reviews WHERE attempt_code = $1 FOR UPDATE`,
		rev.AttemptCode))
	if err != nil {
		return err
	}

	if err := insertReviewSnapshot(ctx, tx, existing.Snapshot()); err != nil {
		return fmt.Errorf("archive review: %w", err)
	}

	err = tx.QueryRow(ctx,
		`UPDATE reviews SET review_status = $1, vendor_status = $2, raw_data = $3,
		        reviewed_by = $4, updated_at = NOW()
		 WHERE id = $5 RETURNING id, created_at, updated_at`,
		rev.ReviewStatus, rev.VendorStatus, rev.RawData, rev.ReviewedBy, existing.ID,
	).Scan(&rev.ID, &rev.CreatedAt, &rev.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update review: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM review_comments WHERE review_id = $1`, existing.ID); err != nil {
		return fmt.Errorf("clear comments: %w", err)
	}
	if err := insertComments(ctx, tx, rev.ID, rev.Comments); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// ListSnapshots returns the archived pre-images of a review in creation order.
func (r *ReviewRepository) ListSnapshots(ctx context.Context, reviewID int64) ([]model.ReviewSnapshot, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, review_id, attempt_code, review_status, vendor_status, raw_data,
		        reviewed_by, exam_id, user_id, created_at
		 FROM review_history WHERE review_id = $1 ORDER BY id ASC`, reviewID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snaps []model.ReviewSnapshot
	for rows.Next() {
		var s model.ReviewSnapshot
		if err := rows.Scan(&s.ID, &s.ReviewID, &s.AttemptCode, &s.ReviewStatus,
			&s.VendorStatus, &s.RawData, &s.ReviewedBy, &s.ExamID, &s.UserID,
			&s.CreatedAt); err != nil {
			return nil, err
		}
		snaps = append(snaps, s)
	}
	return snaps, rows.Err()
}

func (r *ReviewRepository) listComments(ctx context.Context, reviewID int64) ([]model.ReviewComment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, review_id, start_ms, stop_ms, duration, comment, status
		 FROM review_comments WHERE review_id = $1 ORDER BY id ASC`, reviewID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var comments []model.ReviewComment
	for rows.Next() {
		var c model.ReviewComment
		if err := rows.Scan(&c.ID, &c.ReviewID, &c.StartMs, &c.StopMs,
			&c.Duration, &c.Comment, &c.Status); err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

func insertComments(ctx context.Context, tx pgx.Tx, reviewID int64, comments []model.ReviewComment) error {
	for i := range comments {
		c := &comments[i]
		err := tx.QueryRow(ctx,
			`INSERT INTO review_comments (review_id, start_ms, stop_ms, duration, comment, status)
			 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
			reviewID, c.StartMs, c.StopMs, c.Duration, c.Comment, c.Status,
		).Scan(&c.ID)
		if err != nil {
			return fmt.Errorf("insert comment: %w", err)
		}
		c.ReviewID = reviewID
	}
	return nil
}

func insertReviewSnapshot(ctx context.Context, tx pgx.Tx, s *model.ReviewSnapshot) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO review_history (review_id, attempt_code, review_status, vendor_status,
		        raw_data, reviewed_by, exam_id, user_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		s.ReviewID, s.AttemptCode, s.ReviewStatus, s.VendorStatus, s.RawData,
		s.ReviewedBy, s.ExamID, s.UserID)
	return err
}
