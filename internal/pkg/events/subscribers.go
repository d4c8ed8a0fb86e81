package events

import (
	"fmt"

	"github.com/asaskevich/EventBus"
	"github.com/rs/zerolog"
	"github.com/yigit/admissions/internal/pkg/metrics"
)

// AuditSubscriber writes every domain event to the audit log.
type AuditSubscriber struct {
	log zerolog.Logger
}

func NewAuditSubscriber(log zerolog.Logger) *AuditSubscriber {
	return &AuditSubscriber{log: log.With().Str("component", "audit").Logger()}
}

// Attach subscribes the audit and metrics handlers to the bus.
func (a *AuditSubscriber) Attach(bus EventBus.Bus) error {
	handlers := map[string]interface{}{
		ApplicationSubmittedTopic:    a.onSubmitted,
		ApplicationTransitionedTopic: a.onTransitioned,
		ApplicantPromotedTopic:       a.onPromoted,
		InstitutionSelectedTopic:     a.onSelected,
		AdmissionsPublishedTopic:     a.onPublished,
		JobApplicationCreatedTopic:   a.onJobApplication,
	}
	for topic, fn := range handlers {
		if err := bus.Subscribe(topic, fn); err != nil {
			return fmt.Errorf("subscribe %s: %w", topic, err)
		}
	}
	return nil
}

func (a *AuditSubscriber) onSubmitted(e ApplicationSubmitted) {
	metrics.ApplicationsSubmitted.WithLabelValues(e.Level).Inc()
	a.log.Info().
		Str("applicationId", e.ApplicationID).
		Str("studentId", e.StudentID).
		Str("institutionId", e.InstitutionID).
		Str("courseId", e.CourseID).
		Msg("application submitted")
}

func (a *AuditSubscriber) onTransitioned(e ApplicationTransitioned) {
	metrics.StatusTransitions.WithLabelValues(e.From, e.To).Inc()
	a.log.Info().
		Str("applicationId", e.ApplicationID).
		Str("from", e.From).
		Str("to", e.To).
		Str("actorId", e.ActorID).
		Msg("application status changed")
}

func (a *AuditSubscriber) onPromoted(e ApplicantPromoted) {
	metrics.WaitingListPromotions.Inc()
	a.log.Info().
		Str("applicationId", e.ApplicationID).
		Str("studentId", e.StudentID).
		Str("institutionId", e.InstitutionID).
		Str("courseId", e.CourseID).
		Msg("waiting applicant promoted")
}

func (a *AuditSubscriber) onSelected(e InstitutionSelected) {
	metrics.SelectionCascades.Observe(float64(e.Declined))
	ev := a.log.Info()
	if e.Failed > 0 {
		ev = a.log.Warn()
	}
	ev.Str("studentId", e.StudentID).
		Str("confirmedApplicationId", e.ConfirmedApplicationID).
		Int("declined", e.Declined).
		Int("failed", e.Failed).
		Msg("institution selected")
}

func (a *AuditSubscriber) onPublished(e AdmissionsPublished) {
	a.log.Info().
		Str("institutionId", e.InstitutionID).
		Str("publishedBy", e.PublishedBy).
		Int64("count", e.Count).
		Msg("admissions published")
}

func (a *AuditSubscriber) onJobApplication(e JobApplicationCreated) {
	a.log.Info().
		Str("jobApplicationId", e.JobApplicationID).
		Str("jobId", e.JobID).
		Str("studentId", e.StudentID).
		Msg("job application created")
}
