package events

import "time"

var (
	ApplicationSubmittedTopic    = "ApplicationSubmittedEvent"
	ApplicationTransitionedTopic = "ApplicationTransitionedEvent"
	ApplicantPromotedTopic       = "ApplicantPromotedEvent"
	InstitutionSelectedTopic     = "InstitutionSelectedEvent"
	AdmissionsPublishedTopic     = "AdmissionsPublishedEvent"
	JobApplicationCreatedTopic   = "JobApplicationCreatedEvent"
)

type ApplicationSubmitted struct {
	ApplicationID string
	StudentID     string
	InstitutionID string
	CourseID      string
	Level         string
	At            time.Time
}

type ApplicationTransitioned struct {
	ApplicationID string
	StudentID     string
	InstitutionID string
	From          string
	To            string
	ActorID       string
	At            time.Time
}

type ApplicantPromoted struct {
	ApplicationID string
	StudentID     string
	InstitutionID string
	CourseID      string
	At            time.Time
}

type InstitutionSelected struct {
	StudentID              string
	ConfirmedApplicationID string
	Declined               int
	Failed                 int
	At                     time.Time
}

type AdmissionsPublished struct {
	InstitutionID string
	PublishedBy   string
	Count         int64
	At            time.Time
}

type JobApplicationCreated struct {
	JobApplicationID string
	JobID            string
	StudentID        string
	At               time.Time
}
