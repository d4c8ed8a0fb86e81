package services

import (
	"context"
	"errors"
	"strings"

	"github.com/asaskevich/EventBus"
	"github.com/rs/zerolog"
	"github.com/yigit/admissions/internal/app/auth"
	"github.com/yigit/admissions/internal/app/models"
	"github.com/yigit/admissions/internal/app/repositories"
	"github.com/yigit/admissions/internal/domain/admission"
	"github.com/yigit/admissions/internal/pkg/apperrors"
	"github.com/yigit/admissions/internal/pkg/events"
	"github.com/yigit/admissions/internal/pkg/helpers"
)

// WaitingListService fills vacated seats from a course's waiting list
type WaitingListService interface {
	// Promote admits the earliest waiting applicant, or returns nil when nobody is waiting
	Promote(ctx context.Context, p auth.Principal, institutionID, courseID string) (*models.Application, error)
	Count(ctx context.Context, p auth.Principal, institutionID, courseID string) (int64, error)
}

type waitingListServiceImpl struct {
	apps repositories.ApplicationRepository
	bus  EventBus.BusPublisher
	log  zerolog.Logger
}

// NewWaitingListService creates a new waiting list service instance
func NewWaitingListService(apps repositories.ApplicationRepository, bus EventBus.BusPublisher, log zerolog.Logger) WaitingListService {
	return &waitingListServiceImpl{
		apps: apps,
		bus:  bus,
		log:  log.With().Str("service", "waiting_list").Logger(),
	}
}

func (s *waitingListServiceImpl) scope(p auth.Principal, institutionID, courseID string) (string, string, error) {
	inst, err := p.ScopeInstitution(institutionID)
	if err != nil {
		return "", "", err
	}
	courseID = strings.TrimSpace(courseID)
	if courseID == "" {
		return "", "", apperrors.NewValidationError("courseId is required")
	}
	return inst, courseID, nil
}

func (s *waitingListServiceImpl) Promote(ctx context.Context, p auth.Principal, institutionID, courseID string) (*models.Application, error) {
	inst, course, err := s.scope(p, institutionID, courseID)
	if err != nil {
		return nil, err
	}

	var promoted *models.Application
	err = s.apps.Atomically(ctx, nil, func(ctx context.Context, store repositories.ApplicationRepository) error {
		var err error
		promoted, err = promoteNext(ctx, store, inst, course, s.log)
		return err
	})
	if err != nil {
		return nil, storeError("failed to promote from waiting list", err)
	}

	if promoted != nil {
		publishAll(s.bus, []pendingEvent{promotedEvent(promoted)})
	}
	return promoted, nil
}

func (s *waitingListServiceImpl) Count(ctx context.Context, p auth.Principal, institutionID, courseID string) (int64, error) {
	inst, course, err := s.scope(p, institutionID, courseID)
	if err != nil {
		return 0, err
	}

	n, err := s.apps.Count(ctx, models.ApplicationFilter{
		InstitutionID: inst,
		CourseID:      course,
		Statuses:      []models.ApplicationStatus{models.StatusWaiting},
	})
	if err != nil {
		return 0, storeError("failed to count waiting list", err)
	}
	return n, nil
}

var errSkipCandidate = errors.New("candidate not eligible for promotion")

// promoteNext admits the oldest waiting application for the course inside the caller's unit of work.
// A candidate already admitted elsewhere at the institution is skipped in favour of the next one.
func promoteNext(ctx context.Context, store repositories.ApplicationRepository, institutionID, courseID string, log zerolog.Logger) (*models.Application, error) {
	var promoted *models.Application

	err := store.Atomically(ctx, []string{admission.WaitlistLockKey(institutionID, courseID)}, func(ctx context.Context, store repositories.ApplicationRepository) error {
		waiting, err := store.List(ctx, models.ApplicationFilter{
			InstitutionID: institutionID,
			CourseID:      courseID,
			Statuses:      []models.ApplicationStatus{models.StatusWaiting},
		})
		if err != nil {
			return err
		}

		for _, candidate := range waiting {
			lock := admission.AdmissionLockKey(candidate.StudentID, institutionID)
			err := store.Atomically(ctx, []string{lock}, func(ctx context.Context, store repositories.ApplicationRepository) error {
				app, err := store.GetByID(ctx, candidate.ID)
				if err != nil {
					return err
				}
				if app.Status != models.StatusWaiting {
					return errSkipCandidate
				}

				held, err := store.List(ctx, models.ApplicationFilter{
					StudentID:     app.StudentID,
					InstitutionID: institutionID,
					Statuses:      []models.ApplicationStatus{models.StatusAdmitted},
					ExcludeID:     app.ID,
				})
				if err != nil {
					return err
				}
				if len(held) > 0 {
					log.Info().
						Str("applicationId", app.ID).
						Str("heldApplicationId", held[0].ID).
						Msg("skipping waiting applicant already admitted at institution")
					return errSkipCandidate
				}

				t := now()
				app.Status = models.StatusAdmitted
				app.PromotedAt = helpers.TimePtr(t)
				app.PromotedFrom = strPtr(models.PromotedFromWaiting)
				app.ProcessedAt = helpers.TimePtr(t)
				app.UpdatedAt = t
				if err := store.Update(ctx, app); err != nil {
					return err
				}
				promoted = app
				return nil
			})
			if errors.Is(err, errSkipCandidate) {
				continue
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return promoted, nil
}

func promotedEvent(app *models.Application) pendingEvent {
	return pendingEvent{
		topic: events.ApplicantPromotedTopic,
		payload: events.ApplicantPromoted{
			ApplicationID: app.ID,
			StudentID:     app.StudentID,
			InstitutionID: app.InstitutionID,
			CourseID:      app.CourseID,
			At:            *app.PromotedAt,
		},
	}
}
