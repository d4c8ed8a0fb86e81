package models

import "time"

// ApplicationStatus is the lifecycle state of an Application
type ApplicationStatus string

const (
	StatusPending   ApplicationStatus = "pending"
	StatusAdmitted  ApplicationStatus = "admitted"
	StatusRejected  ApplicationStatus = "rejected"
	StatusWaiting   ApplicationStatus = "waiting"
	StatusConfirmed ApplicationStatus = "confirmed"
	StatusDeclined  ApplicationStatus = "declined"
)

// AllStatuses lists every status in display order
var AllStatuses = []ApplicationStatus{
	StatusPending, StatusAdmitted, StatusRejected, StatusWaiting, StatusConfirmed, StatusDeclined,
}

// ParseApplicationStatus returns the status and whether it is known
func ParseApplicationStatus(s string) (ApplicationStatus, bool) {
	for _, st := range AllStatuses {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

// ProgramLevel is the academic level of the course applied for
type ProgramLevel string

const (
	LevelCertificate   ProgramLevel = "Certificate"
	LevelDiploma       ProgramLevel = "Diploma"
	LevelUndergraduate ProgramLevel = "Undergraduate"
	LevelPostgraduate  ProgramLevel = "Postgraduate"
	LevelMasters       ProgramLevel = "Masters"
	LevelPhD           ProgramLevel = "PhD"
)

// PromotedFromWaiting tags applications admitted through the waiting list
const PromotedFromWaiting = "waiting"

// Application is one student's bid for one course at one institution
type Application struct {
	ID                string            `json:"id" db:"id"`
	StudentID         string            `json:"studentId" db:"student_id"`
	StudentName       string            `json:"studentName" db:"student_name"`
	StudentEmail      string            `json:"studentEmail" db:"student_email"`
	InstitutionID     string            `json:"institutionId" db:"institution_id"`
	InstitutionName   string            `json:"institutionName" db:"institution_name"`
	CourseID          string            `json:"courseId" db:"course_id"`
	CourseName        string            `json:"courseName" db:"course_name"`
	Level             ProgramLevel      `json:"level" db:"level"`
	PreviousEducation string            `json:"previousEducation" db:"previous_education"`
	Status            ApplicationStatus `json:"status" db:"status"`
	Remarks           *string           `json:"remarks,omitempty" db:"remarks"`
	Confirmed         bool              `json:"confirmed" db:"confirmed"`
	Published         bool              `json:"published" db:"published"`
	PublishedBy       *string           `json:"publishedBy,omitempty" db:"published_by"`
	PromotedFrom      *string           `json:"promotedFrom,omitempty" db:"promoted_from"`
	CreatedAt         time.Time         `json:"createdAt" db:"created_at"`
	UpdatedAt         time.Time         `json:"updatedAt" db:"updated_at"`
	ProcessedAt       *time.Time        `json:"processedAt,omitempty" db:"processed_at"`
	ConfirmedAt       *time.Time        `json:"confirmedAt,omitempty" db:"confirmed_at"`
	DeclinedAt        *time.Time        `json:"declinedAt,omitempty" db:"declined_at"`
	PromotedAt        *time.Time        `json:"promotedAt,omitempty" db:"promoted_at"`
	PublishedAt       *time.Time        `json:"publishedAt,omitempty" db:"published_at"`
}

// ApplicationFilter narrows an application query; zero fields are ignored
type ApplicationFilter struct {
	StudentID     string
	InstitutionID string
	CourseID      string
	Statuses      []ApplicationStatus
	ExcludeID     string
	Offset        uint64
	Limit         uint64
}
