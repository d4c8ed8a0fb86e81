package dto

import "github.com/yigit/admissions/internal/app/models"

// UpdateRequirementsRequest is the body of PUT /jobs/:id/requirements
type UpdateRequirementsRequest struct {
	MinimumGPA        float64  `json:"minimumGPA" binding:"min=0,max=5" example:"3.0"`
	FieldsOfStudy     []string `json:"fieldsOfStudy" binding:"max=20,dive,max=128"`
	Skills            []string `json:"skills" binding:"max=50,dive,max=64"`
	MinimumExperience float64  `json:"minimumExperience" binding:"min=0,max=60" example:"1"`
}

// ToModel converts the request into job requirements
func (r UpdateRequirementsRequest) ToModel() models.JobRequirements {
	return models.JobRequirements{
		MinimumGPA:        r.MinimumGPA,
		FieldsOfStudy:     r.FieldsOfStudy,
		Skills:            r.Skills,
		MinimumExperience: r.MinimumExperience,
	}
}

// JobFeedItem is a job with the caller's match result, used in the student feed
type JobFeedItem struct {
	Job       *models.Job `json:"job"`
	Score     *int        `json:"score,omitempty"`
	Qualified *bool       `json:"qualified,omitempty"`
	Reasons   []string    `json:"reasons,omitempty"`
}

// CandidateResponse is one ranked candidate for a job
type CandidateResponse struct {
	StudentID       string   `json:"studentId"`
	Name            string   `json:"name"`
	Email           string   `json:"email"`
	GPA             float64  `json:"gpa"`
	FieldOfStudy    string   `json:"fieldOfStudy"`
	Skills          []string `json:"skills"`
	YearsExperience float64  `json:"yearsExperience"`
	Score           int      `json:"score" example:"88"`
	Qualified       bool     `json:"qualified"`
	Reasons         []string `json:"reasons"`
	HasTranscripts  bool     `json:"hasTranscripts"`
	HasCertificates bool     `json:"hasCertificates"`
	AdmissionsCount int      `json:"admissionsCount"`
}
