package auth

import (
	"github.com/yigit/admissions/internal/app/models"
	"github.com/yigit/admissions/internal/pkg/apperrors"
)

// Principal is the verified caller of a request. Every service operation receives it explicitly.
type Principal struct {
	ID    string
	Role  models.RoleType
	Name  string
	Email string
}

func (p Principal) IsAdmin() bool     { return p.Role == models.RoleAdmin }
func (p Principal) IsStudent() bool   { return p.Role == models.RoleStudent }
func (p Principal) IsInstitute() bool { return p.Role == models.RoleInstitute }
func (p Principal) IsCompany() bool   { return p.Role == models.RoleCompany }

// RequireRole fails with a forbidden error unless the principal holds one of roles.
func (p Principal) RequireRole(roles ...models.RoleType) error {
	for _, r := range roles {
		if p.Role == r {
			return nil
		}
	}
	return apperrors.NewForbiddenError("role " + string(p.Role) + " may not perform this action")
}

// CanManageInstitution is true for administrators and for the institution itself.
func (p Principal) CanManageInstitution(institutionID string) bool {
	return p.IsAdmin() || (p.IsInstitute() && p.ID == institutionID)
}

// CanViewApplication reports read access to an application.
func (p Principal) CanViewApplication(app *models.Application) bool {
	switch p.Role {
	case models.RoleAdmin:
		return true
	case models.RoleStudent:
		return app.StudentID == p.ID
	case models.RoleInstitute:
		return app.InstitutionID == p.ID
	}
	return false
}

// CanManageJob is true for administrators and for the owning company.
func (p Principal) CanManageJob(job *models.Job) bool {
	return p.IsAdmin() || (p.IsCompany() && job.CompanyID == p.ID)
}

// ScopeInstitution resolves which institution an institute or admin acts for.
// Institutes always act for themselves; administrators must name one.
func (p Principal) ScopeInstitution(requested string) (string, error) {
	switch {
	case p.IsInstitute():
		if requested != "" && requested != p.ID {
			return "", apperrors.NewForbiddenError("institutions may only act on their own records")
		}
		return p.ID, nil
	case p.IsAdmin():
		if requested == "" {
			return "", apperrors.NewValidationError("institutionId is required")
		}
		return requested, nil
	}
	return "", apperrors.NewForbiddenError("role " + string(p.Role) + " may not act for an institution")
}
