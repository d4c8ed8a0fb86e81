package models

import "time"

// DocumentTypeTranscript and DocumentTypeCertificate are the document kinds the core inspects
const (
	DocumentTypeTranscript  = "Transcript"
	DocumentTypeCertificate = "Certificate"
)

// StudentProfile holds the academic attributes used for scoring
type StudentProfile struct {
	ID                string    `json:"id" db:"id"`
	Name              string    `json:"name" db:"name"`
	Email             string    `json:"email" db:"email"`
	GPA               float64   `json:"gpa" db:"gpa"`
	FieldOfStudy      string    `json:"fieldOfStudy" db:"field_of_study"`
	PreviousEducation string    `json:"previousEducation" db:"previous_education"`
	Skills            []string  `json:"skills" db:"skills"`
	YearsExperience   float64   `json:"yearsExperience" db:"years_experience"`
	UpdatedAt         time.Time `json:"updatedAt" db:"updated_at"`
}

// Document is an uploaded student document; only its type matters here
type Document struct {
	ID         string    `json:"id" db:"id"`
	StudentID  string    `json:"studentId" db:"student_id"`
	Type       string    `json:"type" db:"type"`
	FileName   string    `json:"fileName" db:"file_name"`
	UploadedAt time.Time `json:"uploadedAt" db:"uploaded_at"`
}
