package dberrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestIsDuplicateConstraintError(t *testing.T) {
	err := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: "uq_applications_one_admitted"})

	assert.True(t, IsDuplicateConstraintError(err, "uq_applications_one_admitted"))
	assert.False(t, IsDuplicateConstraintError(err, "uq_applications_student_course"))
	assert.True(t, IsUniqueViolation(err))
	assert.False(t, IsUniqueViolation(errors.New("boom")))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(&pgconn.PgError{Code: "40P01"}))
	assert.True(t, IsRetryable(&pgconn.PgError{Code: "40001"}))
	assert.False(t, IsRetryable(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsRetryable(nil))
}
