package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/yigit/admissions/internal/app/models"
	"github.com/yigit/admissions/internal/pkg/apperrors"
	"github.com/yigit/admissions/internal/pkg/dberrors"
	"github.com/yigit/admissions/internal/pkg/logger"
)

const constraintJobStudent = "uq_job_applications_job_student"

var jobColumns = []string{
	"id", "company_id", "company_name", "title", "description", "location", "status",
	"minimum_gpa", "fields_of_study", "skills", "minimum_experience", "created_at", "updated_at",
}

// JobRepository handles job posting database operations
type JobRepository struct {
	db *pgxpool.Pool
	sb squirrel.StatementBuilderType
}

// NewJobRepository creates a new JobRepository
func NewJobRepository(db *pgxpool.Pool) *JobRepository {
	return &JobRepository{db: db, sb: statementBuilder()}
}

// GetByID retrieves a job by ID
func (r *JobRepository) GetByID(ctx context.Context, id string) (*models.Job, error) {
	sql, args, err := r.sb.Select(jobColumns...).From("jobs").Where(squirrel.Eq{"id": id}).Limit(1).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build get job query: %w", err)
	}

	job, err := scanJob(r.db.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		logger.Error().Err(err).Str("jobID", id).Msg("Error scanning job row")
		return nil, fmt.Errorf("error getting job by ID: %w", err)
	}
	return job, nil
}

// List returns jobs matching filter, newest first
func (r *JobRepository) List(ctx context.Context, filter JobFilter) ([]*models.Job, error) {
	query := r.sb.Select(jobColumns...).From("jobs").OrderBy("created_at DESC")
	if filter.CompanyID != "" {
		query = query.Where(squirrel.Eq{"company_id": filter.CompanyID})
	}
	if filter.Status != "" {
		query = query.Where(squirrel.Eq{"status": string(filter.Status)})
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build list jobs query: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Msg("Error executing list jobs query")
		return nil, fmt.Errorf("error querying jobs: %w", err)
	}
	defer rows.Close()

	jobs := []*models.Job{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning job row: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// UpdateRequirements replaces a job's requirement columns
func (r *JobRepository) UpdateRequirements(ctx context.Context, id string, req models.JobRequirements, at time.Time) error {
	sql, args, err := r.sb.Update("jobs").
		Set("minimum_gpa", req.MinimumGPA).
		Set("fields_of_study", req.FieldsOfStudy).
		Set("skills", req.Skills).
		Set("minimum_experience", req.MinimumExperience).
		Set("updated_at", at).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update requirements query: %w", err)
	}

	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("error updating job requirements: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanJob(row pgx.Row) (*models.Job, error) {
	j := &models.Job{}
	var status string
	err := row.Scan(
		&j.ID, &j.CompanyID, &j.CompanyName, &j.Title, &j.Description, &j.Location, &status,
		&j.Requirements.MinimumGPA, &j.Requirements.FieldsOfStudy, &j.Requirements.Skills,
		&j.Requirements.MinimumExperience, &j.CreatedAt, &j.UpdatedAt,
	)
	j.Status = models.JobStatus(status)
	return j, err
}

// JobApplicationRepository persists job applications
type JobApplicationRepository struct {
	db *pgxpool.Pool
	sb squirrel.StatementBuilderType
}

// NewJobApplicationRepository creates a new JobApplicationRepository
func NewJobApplicationRepository(db *pgxpool.Pool) *JobApplicationRepository {
	return &JobApplicationRepository{db: db, sb: statementBuilder()}
}

// Create inserts a job application; a second one for the same job and student is a duplicate
func (r *JobApplicationRepository) Create(ctx context.Context, ja *models.JobApplication) error {
	sql, args, err := r.sb.Insert("job_applications").
		Columns("id", "job_id", "student_id", "company_id", "status", "created_at").
		Values(ja.ID, ja.JobID, ja.StudentID, ja.CompanyID, ja.Status, ja.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build create job application query: %w", err)
	}

	if _, err := r.db.Exec(ctx, sql, args...); err != nil {
		if dberrors.IsDuplicateConstraintError(err, constraintJobStudent) {
			return apperrors.NewCustomError(apperrors.ErrDuplicateApplication, "You have already applied for this job")
		}
		logger.Error().Err(err).Msg("Error executing create job application query")
		return fmt.Errorf("error creating job application: %w", err)
	}
	return nil
}

// Exists reports whether the student already applied for the job
func (r *JobApplicationRepository) Exists(ctx context.Context, jobID, studentID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM job_applications WHERE job_id = $1 AND student_id = $2)`,
		jobID, studentID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("error checking job application: %w", err)
	}
	return exists, nil
}
