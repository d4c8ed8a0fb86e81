package models

// RoleType defines the caller role carried in the identity token
type RoleType string

const (
	RoleStudent   RoleType = "student"
	RoleInstitute RoleType = "institute"
	RoleCompany   RoleType = "company"
	RoleAdmin     RoleType = "admin"
)

// Valid reports whether r is one of the known roles
func (r RoleType) Valid() bool {
	switch r {
	case RoleStudent, RoleInstitute, RoleCompany, RoleAdmin:
		return true
	}
	return false
}
