package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/yigit/admissions/internal/app/models"
	"github.com/yigit/admissions/internal/db"
	"github.com/yigit/admissions/internal/pkg/apperrors"
	"github.com/yigit/admissions/internal/pkg/dberrors"
	"github.com/yigit/admissions/internal/pkg/logger"
)

// Constraint names from migrations/001_init.sql
const (
	constraintStudentCourse = "uq_applications_student_course"
	constraintOneAdmitted   = "uq_applications_one_admitted"
	constraintOneConfirmed  = "uq_applications_one_confirmed"
)

// maxTxAttempts bounds retries of a unit of work aborted by a deadlock or serialization failure
const maxTxAttempts = 3

var applicationColumns = []string{
	"id", "student_id", "student_name", "student_email",
	"institution_id", "institution_name", "course_id", "course_name",
	"level", "previous_education", "status", "remarks",
	"confirmed", "published", "published_by", "promoted_from",
	"created_at", "updated_at", "processed_at", "confirmed_at",
	"declined_at", "promoted_at", "published_at",
}

// PgApplicationRepository stores applications in PostgreSQL
type PgApplicationRepository struct {
	database *db.PostgresDB
	q        db.DBTX
	tx       pgx.Tx
	sb       squirrel.StatementBuilderType
}

// NewPgApplicationRepository creates a pool-backed application repository
func NewPgApplicationRepository(database *db.PostgresDB) *PgApplicationRepository {
	return &PgApplicationRepository{
		database: database,
		q:        database.Pool,
		sb:       statementBuilder(),
	}
}

// Atomically implements ApplicationRepository
func (r *PgApplicationRepository) Atomically(ctx context.Context, lockKeys []string, fn func(ctx context.Context, store ApplicationRepository) error) error {
	if r.tx != nil {
		if err := db.AcquireAdvisoryLocks(ctx, r.tx, lockKeys); err != nil {
			return apperrors.NewDependencyError("failed to lock applications", err)
		}
		return fn(ctx, r)
	}

	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = r.database.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
			if err := db.AcquireAdvisoryLocks(ctx, tx, lockKeys); err != nil {
				return apperrors.NewDependencyError("failed to lock applications", err)
			}
			return fn(ctx, &PgApplicationRepository{database: r.database, q: tx, tx: tx, sb: r.sb})
		})
		if err == nil || !dberrors.IsRetryable(err) {
			return err
		}
		logger.Warn().Err(err).Int("attempt", attempt).Strs("locks", lockKeys).Msg("retrying aborted application transaction")
	}
	return err
}

// GetByID retrieves an application by ID
func (r *PgApplicationRepository) GetByID(ctx context.Context, id string) (*models.Application, error) {
	query := r.sb.Select(applicationColumns...).
		From("applications").
		Where(squirrel.Eq{"id": id}).
		Limit(1)
	if r.tx != nil {
		// Re-reads inside a unit of work must see the row as it will be written
		query = query.Suffix("FOR UPDATE")
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build get application query: %w", err)
	}

	app, err := scanApplication(r.q.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		logger.Error().Err(err).Str("applicationID", id).Msg("Error scanning application row")
		return nil, fmt.Errorf("error getting application by ID: %w", err)
	}
	return app, nil
}

func applyApplicationFilter(q squirrel.SelectBuilder, f models.ApplicationFilter) squirrel.SelectBuilder {
	if f.StudentID != "" {
		q = q.Where(squirrel.Eq{"student_id": f.StudentID})
	}
	if f.InstitutionID != "" {
		q = q.Where(squirrel.Eq{"institution_id": f.InstitutionID})
	}
	if f.CourseID != "" {
		q = q.Where(squirrel.Eq{"course_id": f.CourseID})
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		q = q.Where(squirrel.Eq{"status": statuses})
	}
	if f.ExcludeID != "" {
		q = q.Where(squirrel.NotEq{"id": f.ExcludeID})
	}
	return q
}

// List returns applications matching filter ordered by creation time
func (r *PgApplicationRepository) List(ctx context.Context, filter models.ApplicationFilter) ([]*models.Application, error) {
	query := applyApplicationFilter(r.sb.Select(applicationColumns...).From("applications"), filter).
		OrderBy("created_at ASC")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit).Offset(filter.Offset)
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build list applications query: %w", err)
	}

	rows, err := r.q.Query(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Msg("Error executing list applications query")
		return nil, fmt.Errorf("error querying applications: %w", err)
	}
	defer rows.Close()

	apps := []*models.Application{}
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning application row: %w", err)
		}
		apps = append(apps, app)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating application rows: %w", err)
	}
	return apps, nil
}

// Count returns the number of applications matching filter
func (r *PgApplicationRepository) Count(ctx context.Context, filter models.ApplicationFilter) (int64, error) {
	sql, args, err := applyApplicationFilter(r.sb.Select("COUNT(*)").From("applications"), filter).ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build count applications query: %w", err)
	}

	var count int64
	if err := r.q.QueryRow(ctx, sql, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("error counting applications: %w", err)
	}
	return count, nil
}

// Create inserts a new application
func (r *PgApplicationRepository) Create(ctx context.Context, app *models.Application) error {
	sql, args, err := r.sb.Insert("applications").
		Columns(applicationColumns...).
		Values(applicationValues(app)...).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build create application query: %w", err)
	}

	if _, err := r.q.Exec(ctx, sql, args...); err != nil {
		return translateApplicationWriteError(err, "error creating application")
	}
	return nil
}

// Update writes every mutable column of app
func (r *PgApplicationRepository) Update(ctx context.Context, app *models.Application) error {
	sql, args, err := r.sb.Update("applications").
		SetMap(map[string]interface{}{
			"status":        string(app.Status),
			"remarks":       app.Remarks,
			"confirmed":     app.Confirmed,
			"published":     app.Published,
			"published_by":  app.PublishedBy,
			"promoted_from": app.PromotedFrom,
			"updated_at":    app.UpdatedAt,
			"processed_at":  app.ProcessedAt,
			"confirmed_at":  app.ConfirmedAt,
			"declined_at":   app.DeclinedAt,
			"promoted_at":   app.PromotedAt,
			"published_at":  app.PublishedAt,
		}).
		Where(squirrel.Eq{"id": app.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update application query: %w", err)
	}

	tag, err := r.q.Exec(ctx, sql, args...)
	if err != nil {
		return translateApplicationWriteError(err, "error updating application")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// PublishAdmitted marks every admitted, unpublished application of an institution as published
func (r *PgApplicationRepository) PublishAdmitted(ctx context.Context, institutionID, publishedBy string, at time.Time) (int64, error) {
	sql, args, err := r.sb.Update("applications").
		Set("published", true).
		Set("published_at", at).
		Set("published_by", publishedBy).
		Set("updated_at", at).
		Where(squirrel.Eq{"institution_id": institutionID, "status": string(models.StatusAdmitted), "published": false}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build publish query: %w", err)
	}

	tag, err := r.q.Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("error publishing admissions: %w", err)
	}
	return tag.RowsAffected(), nil
}

// AdmissionCounts implements ApplicationStore
func (r *PgApplicationRepository) AdmissionCounts(ctx context.Context, studentIDs []string) (map[string]int, error) {
	counts := make(map[string]int, len(studentIDs))
	if len(studentIDs) == 0 {
		return counts, nil
	}

	sql, args, err := r.sb.Select("student_id", "COUNT(*)").
		From("applications").
		Where(squirrel.Eq{
			"student_id": studentIDs,
			"status":     []string{string(models.StatusAdmitted), string(models.StatusConfirmed)},
		}).
		GroupBy("student_id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build admission counts query: %w", err)
	}

	rows, err := r.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying admission counts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("error scanning admission count: %w", err)
		}
		counts[id] = n
	}
	return counts, rows.Err()
}

func applicationValues(a *models.Application) []interface{} {
	return []interface{}{
		a.ID, a.StudentID, a.StudentName, a.StudentEmail,
		a.InstitutionID, a.InstitutionName, a.CourseID, a.CourseName,
		string(a.Level), a.PreviousEducation, string(a.Status), a.Remarks,
		a.Confirmed, a.Published, a.PublishedBy, a.PromotedFrom,
		a.CreatedAt, a.UpdatedAt, a.ProcessedAt, a.ConfirmedAt,
		a.DeclinedAt, a.PromotedAt, a.PublishedAt,
	}
}

func scanApplication(row pgx.Row) (*models.Application, error) {
	a := &models.Application{}
	var level, status string
	err := row.Scan(
		&a.ID, &a.StudentID, &a.StudentName, &a.StudentEmail,
		&a.InstitutionID, &a.InstitutionName, &a.CourseID, &a.CourseName,
		&level, &a.PreviousEducation, &status, &a.Remarks,
		&a.Confirmed, &a.Published, &a.PublishedBy, &a.PromotedFrom,
		&a.CreatedAt, &a.UpdatedAt, &a.ProcessedAt, &a.ConfirmedAt,
		&a.DeclinedAt, &a.PromotedAt, &a.PublishedAt,
	)
	if err != nil {
		return nil, err
	}
	a.Level = models.ProgramLevel(level)
	a.Status = models.ApplicationStatus(status)
	return a, nil
}

// translateApplicationWriteError maps constraint violations onto admission error kinds
func translateApplicationWriteError(err error, msg string) error {
	switch {
	case dberrors.IsDuplicateConstraintError(err, constraintStudentCourse):
		return apperrors.NewCustomError(apperrors.ErrDuplicateApplication, "An application for this course already exists")
	case dberrors.IsDuplicateConstraintError(err, constraintOneAdmitted):
		return apperrors.NewCustomError(apperrors.ErrDuplicateAdmission, "Student is already admitted at this institution")
	case dberrors.IsDuplicateConstraintError(err, constraintOneConfirmed):
		return apperrors.NewCustomError(apperrors.ErrAlreadyConfirmed, "Student has already confirmed an enrollment")
	}
	logger.Error().Err(err).Msg(msg)
	return fmt.Errorf("%s: %w", msg, err)
}
