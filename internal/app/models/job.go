package models

import "time"

// JobStatus is the publication state of a job posting
type JobStatus string

const (
	JobStatusActive JobStatus = "active"
	JobStatusClosed JobStatus = "closed"
)

// JobRequirements are the criteria a company attaches to a posting
type JobRequirements struct {
	MinimumGPA        float64  `json:"minimumGPA" db:"minimum_gpa"`
	FieldsOfStudy     []string `json:"fieldsOfStudy" db:"fields_of_study"`
	Skills            []string `json:"skills" db:"skills"`
	MinimumExperience float64  `json:"minimumExperience" db:"minimum_experience"`
}

// Job is a posting owned by a company
type Job struct {
	ID           string          `json:"id" db:"id"`
	CompanyID    string          `json:"companyId" db:"company_id"`
	CompanyName  string          `json:"companyName" db:"company_name"`
	Title        string          `json:"title" db:"title"`
	Description  string          `json:"description" db:"description"`
	Location     string          `json:"location" db:"location"`
	Status       JobStatus       `json:"status" db:"status"`
	Requirements JobRequirements `json:"requirements"`
	CreatedAt    time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time       `json:"updatedAt" db:"updated_at"`
}

// JobApplication is a student's bid for a job posting
type JobApplication struct {
	ID        string    `json:"id" db:"id"`
	JobID     string    `json:"jobId" db:"job_id"`
	StudentID string    `json:"studentId" db:"student_id"`
	CompanyID string    `json:"companyId" db:"company_id"`
	Status    string    `json:"status" db:"status"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}
