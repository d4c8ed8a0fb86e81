package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/yigit/admissions/internal/app/auth"
	"github.com/yigit/admissions/internal/app/models"
	"github.com/yigit/admissions/internal/app/repositories"
	"github.com/yigit/admissions/internal/pkg/apperrors"
)

var testLog = zerolog.Nop()

func student(id string) auth.Principal {
	return auth.Principal{ID: id, Role: models.RoleStudent, Name: "Student " + id, Email: id + "@example.com"}
}

func institute(id string) auth.Principal {
	return auth.Principal{ID: id, Role: models.RoleInstitute, Name: "Institution " + id}
}

func company(id string) auth.Principal {
	return auth.Principal{ID: id, Role: models.RoleCompany}
}

var admin = auth.Principal{ID: "admin-1", Role: models.RoleAdmin}

// memRoot is the committed state shared by every view of the fake store
type memRoot struct {
	mu         sync.Mutex
	rows       map[string]models.Application
	failUpdate func(app *models.Application) error
	locks      [][]string
}

// memApplications is an in-memory ApplicationRepository. Atomically serializes all units of work
// and commits a copy of the rows only when fn succeeds.
type memApplications struct {
	root *memRoot
	rows map[string]models.Application
	tx   bool
}

func newMemApplications(seed ...*models.Application) *memApplications {
	root := &memRoot{rows: map[string]models.Application{}}
	for _, a := range seed {
		root.rows[a.ID] = *a
	}
	return &memApplications{root: root}
}

func (m *memApplications) with(fn func(rows map[string]models.Application) error) error {
	if m.tx {
		return fn(m.rows)
	}
	m.root.mu.Lock()
	defer m.root.mu.Unlock()
	return fn(m.root.rows)
}

func (m *memApplications) Atomically(ctx context.Context, lockKeys []string, fn func(ctx context.Context, store repositories.ApplicationRepository) error) error {
	if m.tx {
		m.root.locks = append(m.root.locks, append([]string(nil), lockKeys...))
		return fn(ctx, m)
	}
	m.root.mu.Lock()
	defer m.root.mu.Unlock()
	m.root.locks = append(m.root.locks, append([]string(nil), lockKeys...))

	snapshot := make(map[string]models.Application, len(m.root.rows))
	for k, v := range m.root.rows {
		snapshot[k] = v
	}
	if err := fn(ctx, &memApplications{root: m.root, rows: snapshot, tx: true}); err != nil {
		return err
	}
	m.root.rows = snapshot
	return nil
}

// lockLog returns the lock keys of every unit of work in call order, nested ones included
func (m *memApplications) lockLog() [][]string {
	m.root.mu.Lock()
	defer m.root.mu.Unlock()
	return append([][]string(nil), m.root.locks...)
}

// staleApplications lists extra admitted rows outside a unit of work, as if they were read
// just before another writer changed them
type staleApplications struct {
	*memApplications
	stale []*models.Application
}

func (s *staleApplications) List(ctx context.Context, f models.ApplicationFilter) ([]*models.Application, error) {
	out, err := s.memApplications.List(ctx, f)
	if err == nil && f.ExcludeID != "" {
		out = append(out, s.stale...)
	}
	return out, err
}

// get returns the committed copy of an application
func (m *memApplications) get(id string) models.Application {
	m.root.mu.Lock()
	defer m.root.mu.Unlock()
	return m.root.rows[id]
}

func (m *memApplications) GetByID(_ context.Context, id string) (*models.Application, error) {
	var out *models.Application
	err := m.with(func(rows map[string]models.Application) error {
		a, ok := rows[id]
		if !ok {
			return repositories.ErrNotFound
		}
		out = &a
		return nil
	})
	return out, err
}

func matches(a models.Application, f models.ApplicationFilter) bool {
	if f.StudentID != "" && a.StudentID != f.StudentID {
		return false
	}
	if f.InstitutionID != "" && a.InstitutionID != f.InstitutionID {
		return false
	}
	if f.CourseID != "" && a.CourseID != f.CourseID {
		return false
	}
	if f.ExcludeID != "" && a.ID == f.ExcludeID {
		return false
	}
	if len(f.Statuses) > 0 {
		for _, s := range f.Statuses {
			if a.Status == s {
				return true
			}
		}
		return false
	}
	return true
}

func (m *memApplications) List(_ context.Context, f models.ApplicationFilter) ([]*models.Application, error) {
	out := []*models.Application{}
	_ = m.with(func(rows map[string]models.Application) error {
		for _, a := range rows {
			if matches(a, f) {
				a := a
				out = append(out, &a)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, k int) bool {
		if out[i].CreatedAt.Equal(out[k].CreatedAt) {
			return out[i].ID < out[k].ID
		}
		return out[i].CreatedAt.Before(out[k].CreatedAt)
	})
	if f.Limit > 0 {
		if f.Offset >= uint64(len(out)) {
			return []*models.Application{}, nil
		}
		end := f.Offset + f.Limit
		if end > uint64(len(out)) {
			end = uint64(len(out))
		}
		out = out[f.Offset:end]
	}
	return out, nil
}

func (m *memApplications) Count(ctx context.Context, f models.ApplicationFilter) (int64, error) {
	f.Limit, f.Offset = 0, 0
	apps, err := m.List(ctx, f)
	return int64(len(apps)), err
}

// checkConstraints mirrors the unique indexes of the applications table
func checkConstraints(rows map[string]models.Application, a models.Application) error {
	for _, o := range rows {
		if o.ID == a.ID || o.StudentID != a.StudentID {
			continue
		}
		if o.InstitutionID == a.InstitutionID && o.CourseID == a.CourseID {
			return apperrors.NewCustomError(apperrors.ErrDuplicateApplication, "An application for this course already exists")
		}
		if o.InstitutionID == a.InstitutionID && o.Status == models.StatusAdmitted && a.Status == models.StatusAdmitted {
			return apperrors.NewCustomError(apperrors.ErrDuplicateAdmission, "Student is already admitted at this institution")
		}
		if o.Confirmed && a.Confirmed {
			return apperrors.NewCustomError(apperrors.ErrAlreadyConfirmed, "Student has already confirmed an enrollment")
		}
	}
	return nil
}

func (m *memApplications) Create(_ context.Context, app *models.Application) error {
	return m.with(func(rows map[string]models.Application) error {
		if err := checkConstraints(rows, *app); err != nil {
			return err
		}
		rows[app.ID] = *app
		return nil
	})
}

func (m *memApplications) Update(_ context.Context, app *models.Application) error {
	if m.root.failUpdate != nil {
		if err := m.root.failUpdate(app); err != nil {
			return err
		}
	}
	return m.with(func(rows map[string]models.Application) error {
		if _, ok := rows[app.ID]; !ok {
			return repositories.ErrNotFound
		}
		if err := checkConstraints(rows, *app); err != nil {
			return err
		}
		rows[app.ID] = *app
		return nil
	})
}

func (m *memApplications) PublishAdmitted(_ context.Context, institutionID, publishedBy string, at time.Time) (int64, error) {
	var n int64
	err := m.with(func(rows map[string]models.Application) error {
		for id, a := range rows {
			if a.InstitutionID == institutionID && a.Status == models.StatusAdmitted && !a.Published {
				a.Published = true
				a.PublishedAt = &at
				a.PublishedBy = &publishedBy
				rows[id] = a
				n++
			}
		}
		return nil
	})
	return n, err
}

func (m *memApplications) AdmissionCounts(_ context.Context, studentIDs []string) (map[string]int, error) {
	counts := map[string]int{}
	want := map[string]bool{}
	for _, id := range studentIDs {
		want[id] = true
	}
	_ = m.with(func(rows map[string]models.Application) error {
		for _, a := range rows {
			if want[a.StudentID] && (a.Status == models.StatusAdmitted || a.Status == models.StatusConfirmed) {
				counts[a.StudentID]++
			}
		}
		return nil
	})
	return counts, nil
}

var baseTime = time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)

// app builds a seeded application created minutes after baseTime
func app(id, studentID, institutionID, courseID string, status models.ApplicationStatus, minutes int) *models.Application {
	return &models.Application{
		ID:                id,
		StudentID:         studentID,
		InstitutionID:     institutionID,
		CourseID:          courseID,
		CourseName:        "Course " + courseID,
		Level:             models.LevelUndergraduate,
		PreviousEducation: "High School",
		Status:            status,
		Confirmed:         status == models.StatusConfirmed,
		CreatedAt:         baseTime.Add(time.Duration(minutes) * time.Minute),
		UpdatedAt:         baseTime.Add(time.Duration(minutes) * time.Minute),
	}
}

type recordingBus struct {
	mu     sync.Mutex
	topics []string
	events []interface{}
}

func (b *recordingBus) Publish(topic string, args ...interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.topics = append(b.topics, topic)
	var payload interface{}
	if len(args) > 0 {
		payload = args[0]
	}
	b.events = append(b.events, payload)
}

// last returns the most recent payload published on topic
func (b *recordingBus) last(topic string) interface{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := len(b.topics) - 1; i >= 0; i-- {
		if b.topics[i] == topic {
			return b.events[i]
		}
	}
	return nil
}

func (b *recordingBus) count(topic string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, t := range b.topics {
		if t == topic {
			n++
		}
	}
	return n
}

type memStudents struct {
	profiles map[string]*models.StudentProfile
}

func (m *memStudents) GetProfile(_ context.Context, id string) (*models.StudentProfile, error) {
	p, ok := m.profiles[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return p, nil
}

func (m *memStudents) ListProfiles(_ context.Context) ([]*models.StudentProfile, error) {
	out := make([]*models.StudentProfile, 0, len(m.profiles))
	for _, p := range m.profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID < out[k].ID })
	return out, nil
}

type memDocuments struct {
	types map[string]map[string]bool
	calls int
}

func (m *memDocuments) HasDocumentType(_ context.Context, studentID, docType string) (bool, error) {
	return m.types[studentID][docType], nil
}

func (m *memDocuments) DocumentTypes(_ context.Context, studentIDs []string) (map[string]map[string]bool, error) {
	m.calls++
	out := map[string]map[string]bool{}
	for _, id := range studentIDs {
		if t, ok := m.types[id]; ok {
			out[id] = t
		}
	}
	return out, nil
}

type memJobs struct {
	jobs map[string]*models.Job
}

func (m *memJobs) GetByID(_ context.Context, id string) (*models.Job, error) {
	j, ok := m.jobs[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (m *memJobs) List(_ context.Context, f repositories.JobFilter) ([]*models.Job, error) {
	out := []*models.Job{}
	for _, j := range m.jobs {
		if f.CompanyID != "" && j.CompanyID != f.CompanyID {
			continue
		}
		if f.Status != "" && j.Status != f.Status {
			continue
		}
		cp := *j
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID < out[k].ID })
	return out, nil
}

func (m *memJobs) UpdateRequirements(_ context.Context, id string, req models.JobRequirements, at time.Time) error {
	j, ok := m.jobs[id]
	if !ok {
		return repositories.ErrNotFound
	}
	j.Requirements = req
	j.UpdatedAt = at
	return nil
}

type memJobApplications struct {
	mu   sync.Mutex
	rows map[string]*models.JobApplication
}

func (m *memJobApplications) Create(_ context.Context, ja *models.JobApplication) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.JobID == ja.JobID && r.StudentID == ja.StudentID {
			return apperrors.NewCustomError(apperrors.ErrDuplicateApplication, "You have already applied for this job")
		}
	}
	m.rows[ja.ID] = ja
	return nil
}

func (m *memJobApplications) Exists(_ context.Context, jobID, studentID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.JobID == jobID && r.StudentID == studentID {
			return true, nil
		}
	}
	return false, nil
}
