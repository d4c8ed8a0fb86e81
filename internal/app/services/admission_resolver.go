package services

import (
	"context"
	"errors"

	"github.com/asaskevich/EventBus"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"github.com/yigit/admissions/internal/app/auth"
	"github.com/yigit/admissions/internal/app/models"
	"github.com/yigit/admissions/internal/app/repositories"
	"github.com/yigit/admissions/internal/domain/admission"
	"github.com/yigit/admissions/internal/pkg/apperrors"
	"github.com/yigit/admissions/internal/pkg/events"
	"github.com/yigit/admissions/internal/pkg/helpers"
)

// SelectionOutcome is what happened to one competing admission
type SelectionOutcome struct {
	ApplicationID string
	InstitutionID string
	CourseID      string
	Declined      bool
	Promoted      *models.Application
	Err           error
}

// SelectionResult is the confirmed application and one outcome per competing admission
type SelectionResult struct {
	Confirmed *models.Application
	Outcomes  []SelectionOutcome
}

// Failed counts outcomes that carry an error
func (r *SelectionResult) Failed() int {
	return failedOutcomes(r.Outcomes)
}

func failedOutcomes(outcomes []SelectionOutcome) int {
	return lo.CountBy(outcomes, func(o SelectionOutcome) bool { return o.Err != nil })
}

// AdmissionResolver collapses a student's simultaneous admissions into one enrollment
type AdmissionResolver interface {
	SelectionRequired(ctx context.Context, studentID string) (bool, error)
	SelectInstitution(ctx context.Context, p auth.Principal, selectedApplicationID string) (*SelectionResult, error)
}

type admissionResolverImpl struct {
	apps repositories.ApplicationRepository
	bus  EventBus.BusPublisher
	log  zerolog.Logger
}

// NewAdmissionResolver creates a new resolver instance
func NewAdmissionResolver(apps repositories.ApplicationRepository, bus EventBus.BusPublisher, log zerolog.Logger) AdmissionResolver {
	return &admissionResolverImpl{
		apps: apps,
		bus:  bus,
		log:  log.With().Str("service", "admission_resolver").Logger(),
	}
}

func (s *admissionResolverImpl) SelectionRequired(ctx context.Context, studentID string) (bool, error) {
	apps, err := s.apps.List(ctx, models.ApplicationFilter{
		StudentID: studentID,
		Statuses:  []models.ApplicationStatus{models.StatusAdmitted, models.StatusConfirmed},
	})
	if err != nil {
		return false, storeError("failed to load admissions", err)
	}
	return admission.RequiresSelection(apps), nil
}

var errSelectionNotFound = apperrors.NewResourceNotFoundError("Admitted application not found")

func (s *admissionResolverImpl) SelectInstitution(ctx context.Context, p auth.Principal, selectedApplicationID string) (*SelectionResult, error) {
	if err := p.RequireRole(models.RoleStudent); err != nil {
		return nil, err
	}
	if selectedApplicationID == "" {
		return nil, apperrors.NewValidationError("selectedApplicationId is required")
	}

	selected, err := s.apps.GetByID(ctx, selectedApplicationID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, errSelectionNotFound
		}
		return nil, storeError("failed to load application", err)
	}
	if selected.StudentID != p.ID || selected.Status != models.StatusAdmitted {
		return nil, errSelectionNotFound
	}

	result := &SelectionResult{}
	locks := []string{
		admission.EnrollmentLockKey(p.ID),
		admission.AdmissionLockKey(p.ID, selected.InstitutionID),
	}
	err = s.apps.Atomically(ctx, locks, func(ctx context.Context, store repositories.ApplicationRepository) error {
		app, err := store.GetByID(ctx, selectedApplicationID)
		if err != nil {
			return err
		}
		if app.StudentID != p.ID || app.Status != models.StatusAdmitted {
			return errSelectionNotFound
		}
		if err := ensureNotConfirmed(ctx, store, app); err != nil {
			return err
		}

		t := now()
		app.Status = models.StatusConfirmed
		app.Confirmed = true
		app.ConfirmedAt = helpers.TimePtr(t)
		app.ProcessedAt = helpers.TimePtr(t)
		app.UpdatedAt = t
		if err := store.Update(ctx, app); err != nil {
			return err
		}
		result.Confirmed = app
		return nil
	})
	if err != nil {
		return nil, storeError("failed to confirm enrollment", err)
	}

	evs := []pendingEvent{transitionedEvent(result.Confirmed, models.StatusAdmitted, p.ID)}

	outcomes, cascade, err := releaseCompeting(ctx, s.apps, s.log, p.ID, result.Confirmed)
	publishAll(s.bus, append(evs, cascade...))
	if err != nil {
		return nil, err
	}
	result.Outcomes = outcomes
	return result, nil
}

// releaseCompeting declines every other admission of a student who just confirmed and fills each
// vacated seat from its waiting list. Each decline is its own unit of work so one failure does not
// undo the rest. The returned events include the InstitutionSelected summary.
func releaseCompeting(ctx context.Context, apps repositories.ApplicationRepository, log zerolog.Logger, actorID string, confirmed *models.Application) ([]SelectionOutcome, []pendingEvent, error) {
	competing, err := apps.List(ctx, models.ApplicationFilter{
		StudentID: confirmed.StudentID,
		Statuses:  []models.ApplicationStatus{models.StatusAdmitted},
		ExcludeID: confirmed.ID,
	})
	if err != nil {
		// The confirmation stands; nothing was declined
		log.Error().Err(err).Str("studentId", confirmed.StudentID).Msg("failed to load competing admissions after confirmation")
		return nil, nil, storeError("enrollment confirmed but competing admissions could not be loaded", err)
	}

	outcomes := make([]SelectionOutcome, 0, len(competing))
	var evs []pendingEvent
	for _, other := range competing {
		outcome := declineAndPromote(ctx, apps, log, other)
		outcomes = append(outcomes, outcome)
		if outcome.Err != nil {
			log.Warn().Err(outcome.Err).
				Str("studentId", confirmed.StudentID).
				Str("applicationId", other.ID).
				Msg("failed to decline competing admission")
			continue
		}
		if outcome.Declined {
			declined := *other
			declined.Status = models.StatusDeclined
			declined.UpdatedAt = now()
			evs = append(evs, transitionedEvent(&declined, models.StatusAdmitted, actorID))
		}
		if outcome.Promoted != nil {
			evs = append(evs, promotedEvent(outcome.Promoted))
		}
	}

	evs = append(evs, pendingEvent{
		topic: events.InstitutionSelectedTopic,
		payload: events.InstitutionSelected{
			StudentID:              confirmed.StudentID,
			ConfirmedApplicationID: confirmed.ID,
			Declined:               lo.CountBy(outcomes, func(o SelectionOutcome) bool { return o.Declined }),
			Failed:                 failedOutcomes(outcomes),
			At:                     now(),
		},
	})
	return outcomes, evs, nil
}

var errNoLongerAdmitted = errors.New("application is no longer admitted")

// declineAndPromote declines one competing admission and fills its seat in a single unit of work
func declineAndPromote(ctx context.Context, apps repositories.ApplicationRepository, log zerolog.Logger, other *models.Application) SelectionOutcome {
	outcome := SelectionOutcome{
		ApplicationID: other.ID,
		InstitutionID: other.InstitutionID,
		CourseID:      other.CourseID,
	}

	lock := admission.AdmissionLockKey(other.StudentID, other.InstitutionID)
	err := apps.Atomically(ctx, []string{lock}, func(ctx context.Context, store repositories.ApplicationRepository) error {
		app, err := store.GetByID(ctx, other.ID)
		if err != nil {
			return err
		}
		if app.Status != models.StatusAdmitted {
			return errNoLongerAdmitted
		}

		t := now()
		app.Status = models.StatusDeclined
		app.DeclinedAt = helpers.TimePtr(t)
		app.ProcessedAt = helpers.TimePtr(t)
		app.UpdatedAt = t
		if err := store.Update(ctx, app); err != nil {
			return err
		}

		promoted, err := promoteNext(ctx, store, app.InstitutionID, app.CourseID, log)
		if err != nil {
			return err
		}
		outcome.Promoted = promoted
		return nil
	})

	switch {
	case errors.Is(err, errNoLongerAdmitted):
		// Changed concurrently; nothing to decline
		outcome.Promoted = nil
	case err != nil:
		outcome.Promoted = nil
		outcome.Err = storeError("failed to decline admission", err)
	default:
		outcome.Declined = true
	}
	return outcome
}
