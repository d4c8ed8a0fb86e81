package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/asaskevich/EventBus"
	"github.com/google/uuid"
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

// SubmitInput carries the fields of a new application
type SubmitInput struct {
	InstitutionID     string
	InstitutionName   string
	CourseID          string
	CourseName        string
	Level             string
	PreviousEducation string
}

// TransitionResult is the updated application and, for a decline, the applicant promoted into the seat.
// A confirmation also releases the student's other admissions, reported in Outcomes.
type TransitionResult struct {
	Application *models.Application
	Promoted    *models.Application
	Outcomes    []SelectionOutcome
}

// AdmissionsView lists a student's offers
type AdmissionsView struct {
	Admissions        []*models.Application
	Confirmed         *models.Application
	SelectionRequired bool
}

// ApplicationService enforces the admission policy on application writes
type ApplicationService interface {
	Submit(ctx context.Context, p auth.Principal, in SubmitInput) (*models.Application, error)
	Transition(ctx context.Context, p auth.Principal, id string, status models.ApplicationStatus, remarks *string) (*TransitionResult, error)
	Get(ctx context.Context, p auth.Principal, id string) (*models.Application, error)
	List(ctx context.Context, p auth.Principal, filter models.ApplicationFilter) ([]*models.Application, int64, error)
	Admissions(ctx context.Context, p auth.Principal) (*AdmissionsView, error)
	Publish(ctx context.Context, p auth.Principal, institutionID string) (int64, error)
}

type applicationServiceImpl struct {
	apps repositories.ApplicationRepository
	bus  EventBus.BusPublisher
	log  zerolog.Logger
}

// NewApplicationService creates a new application service instance
func NewApplicationService(apps repositories.ApplicationRepository, bus EventBus.BusPublisher, log zerolog.Logger) ApplicationService {
	return &applicationServiceImpl{
		apps: apps,
		bus:  bus,
		log:  log.With().Str("service", "applications").Logger(),
	}
}

func (s *applicationServiceImpl) validateSubmit(in *SubmitInput) (models.ProgramLevel, error) {
	in.InstitutionID = strings.TrimSpace(in.InstitutionID)
	in.CourseID = strings.TrimSpace(in.CourseID)
	in.PreviousEducation = strings.TrimSpace(in.PreviousEducation)

	if in.InstitutionID == "" {
		return "", apperrors.NewValidationError("institutionId is required")
	}
	if in.CourseID == "" {
		return "", apperrors.NewValidationError("courseId is required")
	}
	if in.PreviousEducation == "" {
		return "", apperrors.NewValidationError("previousEducation is required")
	}
	level, ok := admission.ParseLevel(in.Level)
	if !ok {
		return "", apperrors.NewValidationError(fmt.Sprintf("unknown program level %q", in.Level))
	}
	if strings.TrimSpace(in.CourseName) == "" {
		in.CourseName = in.CourseID
	}
	return level, nil
}

func (s *applicationServiceImpl) Submit(ctx context.Context, p auth.Principal, in SubmitInput) (*models.Application, error) {
	if err := p.RequireRole(models.RoleStudent); err != nil {
		return nil, err
	}
	level, err := s.validateSubmit(&in)
	if err != nil {
		return nil, err
	}

	var created *models.Application
	lock := admission.AdmissionLockKey(p.ID, in.InstitutionID)
	err = s.apps.Atomically(ctx, []string{lock}, func(ctx context.Context, store repositories.ApplicationRepository) error {
		existing, err := store.List(ctx, models.ApplicationFilter{StudentID: p.ID})
		if err != nil {
			return err
		}
		if admission.RequiresSelection(existing) {
			return reject("selection_required", apperrors.NewCustomError(apperrors.ErrSelectionRequired,
				"You hold more than one admission. Select an institution before making further changes"))
		}

		atInstitution := lo.Filter(existing, func(a *models.Application, _ int) bool {
			return a.InstitutionID == in.InstitutionID
		})
		if dup, ok := lo.Find(atInstitution, func(a *models.Application) bool { return a.CourseID == in.CourseID }); ok {
			return reject("duplicate_application", apperrors.NewCustomError(apperrors.ErrDuplicateApplication,
				fmt.Sprintf("You have already applied for %s at this institution", dup.CourseName)))
		}

		active := lo.CountBy(atInstitution, func(a *models.Application) bool { return admission.CountsTowardCap(a.Status) })
		if active >= admission.MaxActivePerInstitution {
			return reject("capacity_exceeded", apperrors.NewCustomError(apperrors.ErrCapacityExceeded,
				fmt.Sprintf("You can apply to a maximum of %d courses per institution", admission.MaxActivePerInstitution)))
		}

		eligible, err := admission.Evaluate(level, in.PreviousEducation)
		if err != nil {
			return apperrors.NewValidationError(err.Error())
		}
		if !eligible {
			accepted, _ := admission.AcceptedKeywords(level)
			return reject("not_qualified", apperrors.NewCustomError(apperrors.ErrNotQualified,
				fmt.Sprintf("Your previous education does not meet the requirements for %s programs. Accepted qualifications: %s",
					level, strings.Join(accepted, ", "))))
		}

		t := now()
		app := &models.Application{
			ID:                uuid.NewString(),
			StudentID:         p.ID,
			StudentName:       p.Name,
			StudentEmail:      p.Email,
			InstitutionID:     in.InstitutionID,
			InstitutionName:   in.InstitutionName,
			CourseID:          in.CourseID,
			CourseName:        in.CourseName,
			Level:             level,
			PreviousEducation: in.PreviousEducation,
			Status:            models.StatusPending,
			CreatedAt:         t,
			UpdatedAt:         t,
		}
		if err := store.Create(ctx, app); err != nil {
			return err
		}
		created = app
		return nil
	})
	if err != nil {
		return nil, storeError("failed to submit application", err)
	}

	publishAll(s.bus, []pendingEvent{{
		topic: events.ApplicationSubmittedTopic,
		payload: events.ApplicationSubmitted{
			ApplicationID: created.ID,
			StudentID:     created.StudentID,
			InstitutionID: created.InstitutionID,
			CourseID:      created.CourseID,
			Level:         string(created.Level),
			At:            created.CreatedAt,
		},
	}})
	return created, nil
}

func (s *applicationServiceImpl) Transition(ctx context.Context, p auth.Principal, id string, status models.ApplicationStatus, remarks *string) (*TransitionResult, error) {
	if err := p.RequireRole(models.RoleInstitute, models.RoleAdmin); err != nil {
		return nil, err
	}
	if _, ok := models.ParseApplicationStatus(string(status)); !ok {
		return nil, apperrors.NewValidationError(fmt.Sprintf("unknown status %q", status))
	}

	current, err := s.apps.GetByID(ctx, id)
	if err != nil {
		return nil, notFound("Application not found", err)
	}
	if !p.CanManageInstitution(current.InstitutionID) {
		return nil, apperrors.NewForbiddenError("Only the owning institution or an administrator may change this application")
	}

	locks := []string{admission.AdmissionLockKey(current.StudentID, current.InstitutionID)}
	if status == models.StatusConfirmed || status == models.StatusAdmitted {
		locks = append(locks, admission.EnrollmentLockKey(current.StudentID))
	}

	result := &TransitionResult{}
	var from models.ApplicationStatus
	err = s.apps.Atomically(ctx, locks, func(ctx context.Context, store repositories.ApplicationRepository) error {
		app, err := store.GetByID(ctx, id)
		if err != nil {
			return err
		}
		from = app.Status

		if !admission.CanTransition(app.Status, status) {
			return reject("invalid_transition", apperrors.NewValidationError(
				fmt.Sprintf("Cannot change status from %s to %s", app.Status, status)))
		}

		t := now()
		switch status {
		case models.StatusAdmitted:
			held, err := store.List(ctx, models.ApplicationFilter{
				StudentID:     app.StudentID,
				InstitutionID: app.InstitutionID,
				Statuses:      []models.ApplicationStatus{models.StatusAdmitted},
				ExcludeID:     app.ID,
			})
			if err != nil {
				return err
			}
			if len(held) > 0 {
				return reject("duplicate_admission", apperrors.NewCustomError(apperrors.ErrDuplicateAdmission,
					fmt.Sprintf("Student is already admitted to %s", held[0].CourseName)))
			}
			offers, err := store.List(ctx, models.ApplicationFilter{
				StudentID: app.StudentID,
				Statuses:  []models.ApplicationStatus{models.StatusAdmitted, models.StatusConfirmed},
			})
			if err != nil {
				return err
			}
			if admission.RequiresSelection(offers) {
				return reject("selection_required", apperrors.NewCustomError(apperrors.ErrSelectionRequired,
					"Student holds more than one admission and must select an institution first"))
			}
		case models.StatusConfirmed:
			if err := ensureNotConfirmed(ctx, store, app); err != nil {
				return err
			}
			app.Confirmed = true
			app.ConfirmedAt = helpers.TimePtr(t)
		case models.StatusDeclined:
			app.DeclinedAt = helpers.TimePtr(t)
		}

		app.Status = status
		if remarks != nil {
			app.Remarks = remarks
		}
		app.ProcessedAt = helpers.TimePtr(t)
		app.UpdatedAt = t
		if err := store.Update(ctx, app); err != nil {
			return err
		}
		result.Application = app

		if status == models.StatusDeclined {
			promoted, err := promoteNext(ctx, store, app.InstitutionID, app.CourseID, s.log)
			if err != nil {
				return err
			}
			result.Promoted = promoted
		}
		return nil
	})
	if err != nil {
		return nil, storeError("failed to update application status", err)
	}

	evs := []pendingEvent{transitionedEvent(result.Application, from, p.ID)}
	if result.Promoted != nil {
		evs = append(evs, promotedEvent(result.Promoted))
	}

	if status == models.StatusConfirmed {
		outcomes, cascade, err := releaseCompeting(ctx, s.apps, s.log, p.ID, result.Application)
		publishAll(s.bus, append(evs, cascade...))
		if err != nil {
			return nil, err
		}
		result.Outcomes = outcomes
		return result, nil
	}

	publishAll(s.bus, evs)
	return result, nil
}

// ensureNotConfirmed fails when the student already confirmed a different application
func ensureNotConfirmed(ctx context.Context, store repositories.ApplicationStore, app *models.Application) error {
	confirmed, err := store.List(ctx, models.ApplicationFilter{
		StudentID: app.StudentID,
		Statuses:  []models.ApplicationStatus{models.StatusConfirmed},
		ExcludeID: app.ID,
	})
	if err != nil {
		return err
	}
	if len(confirmed) > 0 {
		return reject("already_confirmed", apperrors.NewCustomError(apperrors.ErrAlreadyConfirmed,
			fmt.Sprintf("Student has already confirmed enrollment in %s", confirmed[0].CourseName)))
	}
	return nil
}

func (s *applicationServiceImpl) Get(ctx context.Context, p auth.Principal, id string) (*models.Application, error) {
	app, err := s.apps.GetByID(ctx, id)
	if err != nil {
		return nil, notFound("Application not found", err)
	}
	if !p.CanViewApplication(app) {
		// Hide existence from other students
		if p.IsStudent() {
			return nil, apperrors.NewResourceNotFoundError("Application not found")
		}
		return nil, apperrors.NewForbiddenError("You may not view this application")
	}
	return app, nil
}

func (s *applicationServiceImpl) List(ctx context.Context, p auth.Principal, filter models.ApplicationFilter) ([]*models.Application, int64, error) {
	switch p.Role {
	case models.RoleStudent:
		filter.StudentID = p.ID
	case models.RoleInstitute:
		filter.InstitutionID = p.ID
	case models.RoleAdmin:
	default:
		return nil, 0, apperrors.NewForbiddenError("role " + string(p.Role) + " may not list applications")
	}

	total, err := s.apps.Count(ctx, filter)
	if err != nil {
		return nil, 0, storeError("failed to count applications", err)
	}
	apps, err := s.apps.List(ctx, filter)
	if err != nil {
		return nil, 0, storeError("failed to list applications", err)
	}
	return apps, total, nil
}

func (s *applicationServiceImpl) Admissions(ctx context.Context, p auth.Principal) (*AdmissionsView, error) {
	if err := p.RequireRole(models.RoleStudent); err != nil {
		return nil, err
	}

	apps, err := s.apps.List(ctx, models.ApplicationFilter{
		StudentID: p.ID,
		Statuses:  []models.ApplicationStatus{models.StatusAdmitted, models.StatusConfirmed},
	})
	if err != nil {
		return nil, storeError("failed to load admissions", err)
	}

	view := &AdmissionsView{
		Admissions:        lo.Filter(apps, func(a *models.Application, _ int) bool { return a.Status == models.StatusAdmitted }),
		SelectionRequired: admission.RequiresSelection(apps),
	}
	if c, ok := lo.Find(apps, func(a *models.Application) bool { return a.Confirmed }); ok {
		view.Confirmed = c
	}
	return view, nil
}

func (s *applicationServiceImpl) Publish(ctx context.Context, p auth.Principal, institutionID string) (int64, error) {
	inst, err := p.ScopeInstitution(institutionID)
	if err != nil {
		return 0, err
	}

	t := now()
	n, err := s.apps.PublishAdmitted(ctx, inst, p.ID, t)
	if err != nil {
		return 0, storeError("failed to publish admissions", err)
	}

	publishAll(s.bus, []pendingEvent{{
		topic: events.AdmissionsPublishedTopic,
		payload: events.AdmissionsPublished{
			InstitutionID: inst,
			PublishedBy:   p.ID,
			Count:         n,
			At:            t,
		},
	}})
	return n, nil
}

func transitionedEvent(app *models.Application, from models.ApplicationStatus, actorID string) pendingEvent {
	return pendingEvent{
		topic: events.ApplicationTransitionedTopic,
		payload: events.ApplicationTransitioned{
			ApplicationID: app.ID,
			StudentID:     app.StudentID,
			InstitutionID: app.InstitutionID,
			From:          string(from),
			To:            string(app.Status),
			ActorID:       actorID,
			At:            app.UpdatedAt,
		},
	}
}
