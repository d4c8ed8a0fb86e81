package repositories

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DocumentRepository answers questions about uploaded student documents
type DocumentRepository struct {
	db *pgxpool.Pool
	sb squirrel.StatementBuilderType
}

// NewDocumentRepository creates a new DocumentRepository
func NewDocumentRepository(db *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{db: db, sb: statementBuilder()}
}

// HasDocumentType reports whether the student uploaded at least one document of docType
func (r *DocumentRepository) HasDocumentType(ctx context.Context, studentID, docType string) (bool, error) {
	sql, args, err := r.sb.Select("1").
		From("documents").
		Where(squirrel.Eq{"student_id": studentID, "type": docType}).
		Prefix("SELECT EXISTS (").
		Suffix(")").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build document exists query: %w", err)
	}

	var exists bool
	if err := r.db.QueryRow(ctx, sql, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("error checking documents: %w", err)
	}
	return exists, nil
}

// DocumentTypes implements DocumentStore
func (r *DocumentRepository) DocumentTypes(ctx context.Context, studentIDs []string) (map[string]map[string]bool, error) {
	out := make(map[string]map[string]bool, len(studentIDs))
	if len(studentIDs) == 0 {
		return out, nil
	}

	sql, args, err := r.sb.Select("student_id", "type").
		Distinct().
		From("documents").
		Where(squirrel.Eq{"student_id": studentIDs}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build document types query: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying document types: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var studentID, docType string
		if err := rows.Scan(&studentID, &docType); err != nil {
			return nil, fmt.Errorf("error scanning document type: %w", err)
		}
		if out[studentID] == nil {
			out[studentID] = map[string]bool{}
		}
		out[studentID][docType] = true
	}
	return out, rows.Err()
}
