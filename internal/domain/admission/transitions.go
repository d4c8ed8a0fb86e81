package admission

import (
	"fmt"

	"github.com/yigit/admissions/internal/app/models"
)

// MaxActivePerInstitution caps applications in an active status per student and institution.
const MaxActivePerInstitution = 2

var allowedTransitions = map[models.ApplicationStatus][]models.ApplicationStatus{
	models.StatusPending:  {models.StatusPending, models.StatusAdmitted, models.StatusRejected, models.StatusWaiting},
	models.StatusWaiting:  {models.StatusPending, models.StatusWaiting, models.StatusAdmitted, models.StatusRejected},
	models.StatusAdmitted: {models.StatusPending, models.StatusWaiting, models.StatusConfirmed, models.StatusDeclined},
}

// CanTransition reports whether the status machine allows from -> to.
func CanTransition(from, to models.ApplicationStatus) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports statuses with no outgoing transitions.
func IsTerminal(s models.ApplicationStatus) bool {
	return len(allowedTransitions[s]) == 0
}

// ActiveStatuses are the statuses counted against MaxActivePerInstitution.
var ActiveStatuses = []models.ApplicationStatus{models.StatusPending, models.StatusAdmitted, models.StatusWaiting}

// CountsTowardCap reports whether s is one of ActiveStatuses.
func CountsTowardCap(s models.ApplicationStatus) bool {
	for _, a := range ActiveStatuses {
		if a == s {
			return true
		}
	}
	return false
}

// RequiresSelection is true while a student holds two or more admissions and has confirmed none.
func RequiresSelection(apps []*models.Application) bool {
	admitted := 0
	for _, a := range apps {
		if a.Confirmed || a.Status == models.StatusConfirmed {
			return false
		}
		if a.Status == models.StatusAdmitted {
			admitted++
		}
	}
	return admitted >= 2
}

// AdmissionLockKey serializes admission decisions for a student at one institution.
func AdmissionLockKey(studentID, institutionID string) string {
	return fmt.Sprintf("admission:%s:%s", studentID, institutionID)
}

// EnrollmentLockKey serializes confirmation for a student across institutions.
func EnrollmentLockKey(studentID string) string {
	return "enrollment:" + studentID
}

// WaitlistLockKey serializes promotions for one course's waiting list.
func WaitlistLockKey(institutionID, courseID string) string {
	return fmt.Sprintf("waitlist:%s:%s", institutionID, courseID)
}
