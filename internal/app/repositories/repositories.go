package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/yigit/admissions/internal/app/models"
	"github.com/yigit/admissions/internal/db"
	"github.com/yigit/admissions/internal/pkg/apperrors"
)

// ErrNotFound is returned when a lookup matches no row
var ErrNotFound = apperrors.ErrResourceNotFound

// ApplicationStore reads and writes applications
type ApplicationStore interface {
	GetByID(ctx context.Context, id string) (*models.Application, error)
	// List returns matching applications oldest first
	List(ctx context.Context, filter models.ApplicationFilter) ([]*models.Application, error)
	Count(ctx context.Context, filter models.ApplicationFilter) (int64, error)
	Create(ctx context.Context, app *models.Application) error
	Update(ctx context.Context, app *models.Application) error
	PublishAdmitted(ctx context.Context, institutionID, publishedBy string, at time.Time) (int64, error)
	// AdmissionCounts returns, per student, the number of admitted or confirmed applications
	AdmissionCounts(ctx context.Context, studentIDs []string) (map[string]int, error)
}

// ApplicationRepository is an ApplicationStore that can run a unit of work atomically.
//
// Atomically runs fn in one transaction after taking an exclusive lock for every key.
// Calling Atomically on the store handed to fn joins the running transaction and takes the extra keys.
type ApplicationRepository interface {
	ApplicationStore
	Atomically(ctx context.Context, lockKeys []string, fn func(ctx context.Context, store ApplicationRepository) error) error
}

// StudentStore reads student profiles
type StudentStore interface {
	GetProfile(ctx context.Context, id string) (*models.StudentProfile, error)
	ListProfiles(ctx context.Context) ([]*models.StudentProfile, error)
}

// DocumentStore answers document existence questions
type DocumentStore interface {
	HasDocumentType(ctx context.Context, studentID, docType string) (bool, error)
	// DocumentTypes returns the set of document types held by each student
	DocumentTypes(ctx context.Context, studentIDs []string) (map[string]map[string]bool, error)
}

// JobFilter narrows a job query; zero fields are ignored
type JobFilter struct {
	CompanyID string
	Status    models.JobStatus
}

// JobStore reads job postings and edits their requirements
type JobStore interface {
	GetByID(ctx context.Context, id string) (*models.Job, error)
	List(ctx context.Context, filter JobFilter) ([]*models.Job, error)
	UpdateRequirements(ctx context.Context, id string, req models.JobRequirements, at time.Time) error
}

// JobApplicationStore persists job applications
type JobApplicationStore interface {
	Create(ctx context.Context, ja *models.JobApplication) error
	Exists(ctx context.Context, jobID, studentID string) (bool, error)
}

// Repositories holds all the repository instances
type Repositories struct {
	Applications    ApplicationRepository
	Students        StudentStore
	Documents       DocumentStore
	Jobs            JobStore
	JobApplications JobApplicationStore
}

// NewRepositories initializes all repositories
func NewRepositories(database *db.PostgresDB) *Repositories {
	return &Repositories{
		Applications:    NewPgApplicationRepository(database),
		Students:        NewStudentRepository(database.Pool),
		Documents:       NewDocumentRepository(database.Pool),
		Jobs:            NewJobRepository(database.Pool),
		JobApplications: NewJobApplicationRepository(database.Pool),
	}
}

func statementBuilder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// IsNotFound reports whether err means the row does not exist
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
