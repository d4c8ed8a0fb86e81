package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/yigit/admissions/internal/app/models"
	"github.com/yigit/admissions/internal/pkg/logger"
)

var studentColumns = []string{
	"id", "name", "email", "gpa", "field_of_study", "previous_education", "skills", "years_experience", "updated_at",
}

// StudentRepository handles student profile reads
type StudentRepository struct {
	db *pgxpool.Pool
	sb squirrel.StatementBuilderType
}

// NewStudentRepository creates a new StudentRepository
func NewStudentRepository(db *pgxpool.Pool) *StudentRepository {
	return &StudentRepository{db: db, sb: statementBuilder()}
}

// GetProfile retrieves a student profile by ID
func (r *StudentRepository) GetProfile(ctx context.Context, id string) (*models.StudentProfile, error) {
	sql, args, err := r.sb.Select(studentColumns...).
		From("students").
		Where(squirrel.Eq{"id": id}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build get student query: %w", err)
	}

	p, err := scanStudent(r.db.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		logger.Error().Err(err).Str("studentID", id).Msg("Error scanning student row")
		return nil, fmt.Errorf("error getting student profile: %w", err)
	}
	return p, nil
}

// ListProfiles returns every student profile
func (r *StudentRepository) ListProfiles(ctx context.Context) ([]*models.StudentProfile, error) {
	sql, args, err := r.sb.Select(studentColumns...).From("students").OrderBy("name ASC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build list students query: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Msg("Error executing list students query")
		return nil, fmt.Errorf("error querying students: %w", err)
	}
	defer rows.Close()

	profiles := []*models.StudentProfile{}
	for rows.Next() {
		p, err := scanStudent(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning student row: %w", err)
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

func scanStudent(row pgx.Row) (*models.StudentProfile, error) {
	p := &models.StudentProfile{}
	err := row.Scan(&p.ID, &p.Name, &p.Email, &p.GPA, &p.FieldOfStudy, &p.PreviousEducation, &p.Skills, &p.YearsExperience, &p.UpdatedAt)
	return p, err
}
