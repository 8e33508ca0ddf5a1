package service

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/provigil/proctor-backend/internal/backend"
	"github.com/provigil/proctor-backend/internal/config"
	"github.com/provigil/proctor-backend/internal/downstream"
	"github.com/provigil/proctor-backend/internal/model"
	"github.com/provigil/proctor-backend/internal/repository"
)

// In-memory store fakes mirroring the pgx repositories' contracts:
// pgx.ErrNoRows for absent rows, repository.ErrDuplicate for unique
// conflicts, and the same archive-before-write history behavior.

type fakeExamStore struct {
	nextID int64
	exams  map[int64]*model.Exam
}

func newFakeExamStore() *fakeExamStore {
	return &fakeExamStore{exams: make(map[int64]*model.Exam)}
}

func (f *fakeExamStore) Create(ctx context.Context, e *model.Exam) error {
	for _, ex := range f.exams {
		if ex.CourseID == e.CourseID && ex.ContentID == e.ContentID {
			return repository.ErrDuplicate
		}
	}
	f.nextID++
	e.ID = f.nextID
	e.CreatedAt = time.Now()
	cp := *e
	f.exams[e.ID] = &cp
	return nil
}

func (f *fakeExamStore) GetByID(ctx context.Context, id int64) (*model.Exam, error) {
	e, ok := f.exams[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *e
	return &cp, nil
}

func (f *fakeExamStore) GetByContent(ctx context.Context, courseID, contentID string) (*model.Exam, error) {
	for _, e := range f.exams {
		if e.CourseID == courseID && e.ContentID == contentID {
			cp := *e
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeExamStore) Update(ctx context.Context, e *model.Exam) error {
	if _, ok := f.exams[e.ID]; !ok {
		return pgx.ErrNoRows
	}
	cp := *e
	f.exams[e.ID] = &cp
	return nil
}

func (f *fakeExamStore) ListByCourse(ctx context.Context, courseID string, activeOnly, proctoredOnly bool) ([]model.Exam, error) {
	var out []model.Exam
	for id := int64(1); id <= f.nextID; id++ {
		e, ok := f.exams[id]
		if !ok || e.CourseID != courseID {
			continue
		}
		if activeOnly && !e.IsActive {
			continue
		}
		if proctoredOnly && !e.IsProctored {
			continue
		}
		out = append(out, *e)
	}
	return out, nil
}

type fakeAttemptStore struct {
	nextID    int64
	snapID    int64
	attempts  map[int64]*model.Attempt
	snapshots []model.AttemptSnapshot
	exams     *fakeExamStore
}

func newFakeAttemptStore(exams *fakeExamStore) *fakeAttemptStore {
	return &fakeAttemptStore{attempts: make(map[int64]*model.Attempt), exams: exams}
}

func (f *fakeAttemptStore) Create(ctx context.Context, a *model.Attempt) error {
	for _, at := range f.attempts {
		if at.ExamID == a.ExamID && at.UserID == a.UserID {
			return repository.ErrDuplicate
		}
	}
	f.nextID++
	a.ID = f.nextID
	a.CreatedAt = time.Now()
	cp := *a
	f.attempts[a.ID] = &cp
	return nil
}

func (f *fakeAttemptStore) GetByID(ctx context.Context, id int64) (*model.Attempt, error) {
	a, ok := f.attempts[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *a
	return &cp, nil
}

func (f *fakeAttemptStore) GetByExamAndUser(ctx context.Context, examID int64, userID int) (*model.Attempt, error) {
	for _, a := range f.attempts {
		if a.ExamID == examID && a.UserID == userID {
			cp := *a
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeAttemptStore) GetByCode(ctx context.Context, code string) (*model.Attempt, error) {
	for _, a := range f.attempts {
		if a.AttemptCode == code {
			cp := *a
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeAttemptStore) GetLatestSnapshotByCode(ctx context.Context, code string) (*model.AttemptSnapshot, error) {
	for i := len(f.snapshots) - 1; i >= 0; i-- {
		if f.snapshots[i].AttemptCode == code {
			cp := f.snapshots[i]
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeAttemptStore) ListSnapshots(ctx context.Context, attemptID int64) ([]model.AttemptSnapshot, error) {
	var out []model.AttemptSnapshot
	for _, s := range f.snapshots {
		if s.AttemptID == attemptID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeAttemptStore) ListByCourse(ctx context.Context, courseID string) ([]model.Attempt, error) {
	var out []model.Attempt
	for id := int64(1); id <= f.nextID; id++ {
		a, ok := f.attempts[id]
		if !ok {
			continue
		}
		if e, ok := f.exams.exams[a.ExamID]; ok && e.CourseID == courseID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeAttemptStore) ListOverdue(ctx context.Context, now time.Time, limit int) ([]model.Attempt, error) {
	var out []model.Attempt
	for id := int64(1); id <= f.nextID; id++ {
		a, ok := f.attempts[id]
		if !ok || a.Status != model.AttemptStatusStarted || a.StartedAt == nil {
			continue
		}
		if a.TimeRemaining(now) == 0 {
			out = append(out, *a)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (f *fakeAttemptStore) UpdateWithHistory(ctx context.Context, id int64, mutate func(*model.Attempt) error) (*model.Attempt, *model.Attempt, error) {
	a, ok := f.attempts[id]
	if !ok {
		return nil, nil, pgx.ErrNoRows
	}
	prev := *a
	work := *a
	if err := mutate(&work); err != nil {
		return nil, nil, err
	}
	if work.Status != prev.Status {
		f.archive(&prev)
	}
	work.UpdatedAt = time.Now()
	cp := work
	f.attempts[id] = &cp
	prevCp, workCp := prev, work
	return &prevCp, &workCp, nil
}

func (f *fakeAttemptStore) Delete(ctx context.Context, id int64) (*model.Attempt, error) {
	a, ok := f.attempts[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	f.archive(a)
	delete(f.attempts, id)
	cp := *a
	return &cp, nil
}

func (f *fakeAttemptStore) archive(a *model.Attempt) {
	snap := a.Snapshot()
	f.snapID++
	snap.ID = f.snapID
	snap.CreatedAt = time.Now()
	f.snapshots = append(f.snapshots, *snap)
}

type allowanceKey struct {
	examID int64
	userID int
	key    model.AllowanceKey
}

type fakeAllowanceStore struct {
	nextID    int64
	snapID    int64
	items     map[allowanceKey]*model.Allowance
	snapshots []model.AllowanceSnapshot
	exams     *fakeExamStore
}

func newFakeAllowanceStore(exams *fakeExamStore) *fakeAllowanceStore {
	return &fakeAllowanceStore{items: make(map[allowanceKey]*model.Allowance), exams: exams}
}

func (f *fakeAllowanceStore) Get(ctx context.Context, examID int64, userID int, key model.AllowanceKey) (*model.Allowance, error) {
	a, ok := f.items[allowanceKey{examID, userID, key}]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *a
	return &cp, nil
}

func (f *fakeAllowanceStore) Upsert(ctx context.Context, a *model.Allowance) error {
	k := allowanceKey{a.ExamID, a.UserID, a.Key}
	if existing, ok := f.items[k]; ok {
		f.archive(existing)
		a.ID = existing.ID
	} else {
		f.nextID++
		a.ID = f.nextID
	}
	cp := *a
	f.items[k] = &cp
	return nil
}

func (f *fakeAllowanceStore) Delete(ctx context.Context, examID int64, userID int, key model.AllowanceKey) (bool, error) {
	k := allowanceKey{examID, userID, key}
	existing, ok := f.items[k]
	if !ok {
		return false, nil
	}
	f.archive(existing)
	delete(f.items, k)
	return true, nil
}

func (f *fakeAllowanceStore) ListByUser(ctx context.Context, examID int64, userID int) ([]model.Allowance, error) {
	var out []model.Allowance
	for k, a := range f.items {
		if k.examID == examID && k.userID == userID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeAllowanceStore) ListByCourse(ctx context.Context, courseID string) ([]model.Allowance, error) {
	var out []model.Allowance
	for _, a := range f.items {
		if e, ok := f.exams.exams[a.ExamID]; ok && e.CourseID == courseID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeAllowanceStore) archive(a *model.Allowance) {
	snap := a.Snapshot()
	f.snapID++
	snap.ID = f.snapID
	snap.CreatedAt = time.Now()
	f.snapshots = append(f.snapshots, *snap)
}

type fakeReviewStore struct {
	nextID    int64
	snapID    int64
	reviews   map[int64]*model.Review
	snapshots []model.ReviewSnapshot
}

func newFakeReviewStore() *fakeReviewStore {
	return &fakeReviewStore{reviews: make(map[int64]*model.Review)}
}

func (f *fakeReviewStore) GetByCode(ctx context.Context, attemptCode string) (*model.Review, error) {
	for _, r := range f.reviews {
		if r.AttemptCode == attemptCode {
			cp := *r
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeReviewStore) GetByID(ctx context.Context, id int64) (*model.Review, error) {
	r, ok := f.reviews[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *r
	return &cp, nil
}

func (f *fakeReviewStore) Create(ctx context.Context, r *model.Review) error {
	for _, ex := range f.reviews {
		if ex.AttemptCode == r.AttemptCode {
			return repository.ErrDuplicate
		}
	}
	f.nextID++
	r.ID = f.nextID
	r.CreatedAt = time.Now()
	cp := *r
	f.reviews[r.ID] = &cp
	return nil
}

func (f *fakeReviewStore) UpdateWithHistory(ctx context.Context, r *model.Review) error {
	existing, ok := f.reviews[r.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	snap := existing.Snapshot()
	f.snapID++
	snap.ID = f.snapID
	snap.CreatedAt = time.Now()
	f.snapshots = append(f.snapshots, *snap)
	r.UpdatedAt = time.Now()
	cp := *r
	f.reviews[r.ID] = &cp
	return nil
}

type fakeUserStore struct {
	nextID int
	users  map[int]*model.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[int]*model.User)}
}

func (f *fakeUserStore) GetByID(ctx context.Context, id int) (*model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUserStore) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	for _, u := range f.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeUserStore) Create(ctx context.Context, u *model.User) error {
	for _, ex := range f.users {
		if ex.Username == u.Username {
			return repository.ErrDuplicate
		}
	}
	f.nextID++
	u.ID = f.nextID
	cp := *u
	f.users[u.ID] = &cp
	return nil
}

// Recording downstream doubles.

type creditCall struct {
	userID   int
	courseID string
	name     string
	status   downstream.CreditRequirementStatus
}

type recCredit struct {
	calls []creditCall
}

func (r *recCredit) SetRequirementStatus(ctx context.Context, userID int, courseID, name string, status downstream.CreditRequirementStatus) error {
	r.calls = append(r.calls, creditCall{userID, courseID, name, status})
	return nil
}

func (r *recCredit) RemoveRequirementStatus(ctx context.Context, userID int, courseID, name string) error {
	return nil
}

type gradeCall struct {
	userID    int
	contentID string
	earned    float64
}

type recGrades struct {
	calls []gradeCall
}

func (r *recGrades) OverrideGrade(ctx context.Context, userID int, courseID, contentID string, earned float64) error {
	r.calls = append(r.calls, gradeCall{userID, contentID, earned})
	return nil
}

func (r *recGrades) UndoGradeOverride(ctx context.Context, userID int, courseID, contentID string) error {
	return nil
}

type recEmail struct {
	msgs []downstream.EmailMessage
}

func (r *recEmail) Send(ctx context.Context, msg downstream.EmailMessage) error {
	r.msgs = append(r.msgs, msg)
	return nil
}

type stubInstructor struct {
	staff bool
}

func (s *stubInstructor) IsCourseStaff(ctx context.Context, userID int, courseID string) (bool, error) {
	return s.staff, nil
}

// env wires the services over the fakes with a frozen clock.
type env struct {
	exams      *fakeExamStore
	attempts   *fakeAttemptStore
	allowances *fakeAllowanceStore
	reviews    *fakeReviewStore
	users      *fakeUserStore

	mock   *backend.Mock
	credit *recCredit
	grades *recGrades
	email  *recEmail
	cfg    *config.Config
	now    time.Time

	examSvc      *ExamService
	attemptSvc   *AttemptService
	allowanceSvc *AllowanceService
	reviewSvc    *ReviewService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		exams:  newFakeExamStore(),
		users:  newFakeUserStore(),
		mock:   backend.NewMock(),
		credit: &recCredit{},
		grades: &recGrades{},
		email:  &recEmail{},
		cfg: &config.Config{
			DefaultBackend:        "mock",
			EnableGradeOverrides:  true,
			RedactReviewVideoURLs: true,
		},
		now: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
	}
	e.attempts = newFakeAttemptStore(e.exams)
	e.allowances = newFakeAllowanceStore(e.exams)
	e.reviews = newFakeReviewStore()

	registry := backend.NewRegistry("mock")
	registry.Register(e.mock)

	platform := downstream.Services{
		Credit:     e.credit,
		Grades:     e.grades,
		Instructor: &stubInstructor{},
		Email:      e.email,
	}
	log := zerolog.Nop()

	e.examSvc = NewExamService(e.exams, registry, log)
	e.allowanceSvc = NewAllowanceService(e.allowances, e.exams, e.users, log)
	e.attemptSvc = NewAttemptService(e.attempts, e.exams, e.users, e.allowanceSvc, registry, platform, e.cfg, log)
	e.attemptSvc.now = func() time.Time { return e.now }
	e.reviewSvc = NewReviewService(e.reviews, e.attempts, e.exams, e.attemptSvc, registry, e.cfg, log)
	return e
}

func (e *env) addExam(t *testing.T, exam model.Exam) *model.Exam {
	t.Helper()
	if err := e.exams.Create(context.Background(), &exam); err != nil {
		t.Fatalf("seed exam: %v", err)
	}
	return &exam
}

func (e *env) addUser(t *testing.T, username, email string) *model.User {
	t.Helper()
	u := &model.User{Username: username, Email: email}
	if err := e.users.Create(context.Background(), u); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}
