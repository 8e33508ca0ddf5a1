package service

import (
	"context"
	"time"

	"github.com/provigil/proctor-backend/internal/model"
)

// Consumer-side store contracts. The pgx repositories satisfy them; unit
// tests substitute in-memory fakes. Absent rows surface as pgx.ErrNoRows
// from either implementation.

// ExamStore is the persistence contract for exam definitions.
type ExamStore interface {
	Create(ctx context.Context, e *model.Exam) error
	GetByID(ctx context.Context, id int64) (*model.Exam, error)
	GetByContent(ctx context.Context, courseID, contentID string) (*model.Exam, error)
	Update(ctx context.Context, e *model.Exam) error
	ListByCourse(ctx context.Context, courseID string, activeOnly, proctoredOnly bool) ([]model.Exam, error)
}

// AttemptStore is the persistence contract for exam attempts and their
// append-only history.
type AttemptStore interface {
	Create(ctx context.Context, a *model.Attempt) error
	GetByID(ctx context.Context, id int64) (*model.Attempt, error)
	GetByExamAndUser(ctx context.Context, examID int64, userID int) (*model.Attempt, error)
	GetByCode(ctx context.Context, code string) (*model.Attempt, error)
	GetLatestSnapshotByCode(ctx context.Context, code string) (*model.AttemptSnapshot, error)
	ListSnapshots(ctx context.Context, attemptID int64) ([]model.AttemptSnapshot, error)
	ListByCourse(ctx context.Context, courseID string) ([]model.Attempt, error)
	ListOverdue(ctx context.Context, now time.Time, limit int) ([]model.Attempt, error)
	UpdateWithHistory(ctx context.Context, id int64, mutate func(*model.Attempt) error) (prev *model.Attempt, updated *model.Attempt, err error)
	Delete(ctx context.Context, id int64) (*model.Attempt, error)
}

// AllowanceStore is the persistence contract for per-student overrides.
type AllowanceStore interface {
	Get(ctx context.Context, examID int64, userID int, key model.AllowanceKey) (*model.Allowance, error)
	Upsert(ctx context.Context, a *model.Allowance) error
	Delete(ctx context.Context, examID int64, userID int, key model.AllowanceKey) (found bool, err error)
	ListByUser(ctx context.Context, examID int64, userID int) ([]model.Allowance, error)
	ListByCourse(ctx context.Context, courseID string) ([]model.Allowance, error)
}

// ReviewStore is the persistence contract for proctoring reviews.
type ReviewStore interface {
	GetByCode(ctx context.Context, attemptCode string) (*model.Review, error)
	GetByID(ctx context.Context, id int64) (*model.Review, error)
	Create(ctx context.Context, r *model.Review) error
	UpdateWithHistory(ctx context.Context, r *model.Review) error
}

// UserStore is the persistence contract for user accounts.
type UserStore interface {
	GetByID(ctx context.Context, id int) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	Create(ctx context.Context, u *model.User) error
}
