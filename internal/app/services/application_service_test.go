package services

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yigit/admissions/internal/app/models"
	"github.com/yigit/admissions/internal/pkg/apperrors"
	"github.com/yigit/admissions/internal/pkg/events"
)

func submitInput(inst, course, level, prev string) SubmitInput {
	return SubmitInput{
		InstitutionID:     inst,
		InstitutionName:   "Institution " + inst,
		CourseID:          course,
		CourseName:        "Course " + course,
		Level:             level,
		PreviousEducation: prev,
	}
}

func TestSubmit_CreatesPendingApplication(t *testing.T) {
	repo := newMemApplications()
	bus := &recordingBus{}
	svc := NewApplicationService(repo, bus, testLog)

	app, err := svc.Submit(context.Background(), student("s1"), submitInput("i1", "c1", "undergraduate", "High School Diploma"))
	require.NoError(t, err)

	assert.Equal(t, models.StatusPending, app.Status)
	assert.Equal(t, "s1", app.StudentID)
	assert.Equal(t, models.LevelUndergraduate, app.Level)
	assert.False(t, app.Confirmed)
	assert.Equal(t, 1, bus.count(events.ApplicationSubmittedTopic))

	stored := repo.get(app.ID)
	assert.Equal(t, "c1", stored.CourseID)
}

func TestSubmit_RejectsThirdActiveApplicationAtInstitution(t *testing.T) {
	repo := newMemApplications(
		app("a1", "s1", "i1", "c1", models.StatusPending, 0),
		app("a2", "s1", "i1", "c2", models.StatusAdmitted, 1),
	)
	svc := NewApplicationService(repo, nil, testLog)

	_, err := svc.Submit(context.Background(), student("s1"), submitInput("i1", "c3", "undergraduate", "high school"))
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrCapacityExceeded)
}

func TestSubmit_InactiveApplicationsDoNotCountTowardCap(t *testing.T) {
	repo := newMemApplications(
		app("a1", "s1", "i1", "c1", models.StatusRejected, 0),
		app("a2", "s1", "i1", "c2", models.StatusPending, 1),
	)
	svc := NewApplicationService(repo, nil, testLog)

	_, err := svc.Submit(context.Background(), student("s1"), submitInput("i1", "c3", "undergraduate", "high school"))
	assert.NoError(t, err)
}

func TestSubmit_CapIsPerInstitution(t *testing.T) {
	repo := newMemApplications(
		app("a1", "s1", "i1", "c1", models.StatusPending, 0),
		app("a2", "s1", "i1", "c2", models.StatusPending, 1),
	)
	svc := NewApplicationService(repo, nil, testLog)

	_, err := svc.Submit(context.Background(), student("s1"), submitInput("i2", "c1", "undergraduate", "high school"))
	assert.NoError(t, err)
}

func TestSubmit_DuplicateCourse(t *testing.T) {
	repo := newMemApplications(
		app("a1", "s1", "i1", "c1", models.StatusRejected, 0),
		app("a2", "s1", "i1", "c2", models.StatusPending, 1),
		app("a3", "s1", "i1", "c3", models.StatusPending, 2),
	)
	svc := NewApplicationService(repo, nil, testLog)

	// Duplicate wins over the cap even when the institution is full
	_, err := svc.Submit(context.Background(), student("s1"), submitInput("i1", "c1", "undergraduate", "high school"))
	assert.ErrorIs(t, err, apperrors.ErrDuplicateApplication)
}

func TestSubmit_NotQualified(t *testing.T) {
	svc := NewApplicationService(newMemApplications(), nil, testLog)

	_, err := svc.Submit(context.Background(), student("s1"), submitInput("i1", "c1", "postgraduate", "High School Diploma"))
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrNotQualified)
	assert.Contains(t, apperrors.Message(err), "Bachelor")
}

func TestSubmit_UnknownLevel(t *testing.T) {
	svc := NewApplicationService(newMemApplications(), nil, testLog)

	_, err := svc.Submit(context.Background(), student("s1"), submitInput("i1", "c1", "kindergarten", "anything"))
	assert.ErrorIs(t, err, apperrors.ErrValidationFailed)
}

func TestSubmit_RequiresStudent(t *testing.T) {
	svc := NewApplicationService(newMemApplications(), nil, testLog)

	_, err := svc.Submit(context.Background(), institute("i1"), submitInput("i1", "c1", "undergraduate", "high school"))
	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)
}

func TestSubmit_BlockedWhileSelectionRequired(t *testing.T) {
	repo := newMemApplications(
		app("a1", "s1", "i1", "c1", models.StatusAdmitted, 0),
		app("a2", "s1", "i2", "c1", models.StatusAdmitted, 1),
	)
	svc := NewApplicationService(repo, nil, testLog)

	_, err := svc.Submit(context.Background(), student("s1"), submitInput("i3", "c9", "undergraduate", "high school"))
	assert.ErrorIs(t, err, apperrors.ErrSelectionRequired)
}

func TestTransition_AdmitSecondCourseAtSameInstitution(t *testing.T) {
	repo := newMemApplications(
		app("a1", "s1", "i1", "c1", models.StatusAdmitted, 0),
		app("a2", "s1", "i1", "c2", models.StatusPending, 1),
	)
	svc := NewApplicationService(repo, nil, testLog)

	_, err := svc.Transition(context.Background(), institute("i1"), "a2", models.StatusAdmitted, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrDuplicateAdmission)
	assert.Contains(t, apperrors.Message(err), "Course c1")
	assert.Equal(t, models.StatusPending, repo.get("a2").Status)
}

func TestTransition_ConcurrentAdmitsOnlyOneSucceeds(t *testing.T) {
	repo := newMemApplications(
		app("a1", "s1", "i1", "c1", models.StatusPending, 0),
		app("a2", "s1", "i1", "c2", models.StatusPending, 1),
	)
	svc := NewApplicationService(repo, nil, testLog)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []string{"a1", "a2"} {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, errs[i] = svc.Transition(context.Background(), institute("i1"), id, models.StatusAdmitted, nil)
		}(i, id)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, apperrors.ErrDuplicateAdmission)
	}
	assert.Equal(t, 1, succeeded)

	admitted, err := repo.Count(context.Background(), models.ApplicationFilter{
		StudentID: "s1",
		Statuses:  []models.ApplicationStatus{models.StatusAdmitted},
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, admitted)
}

func TestTransition_OtherInstitutionForbidden(t *testing.T) {
	repo := newMemApplications(app("a1", "s1", "i1", "c1", models.StatusPending, 0))
	svc := NewApplicationService(repo, nil, testLog)

	_, err := svc.Transition(context.Background(), institute("i2"), "a1", models.StatusAdmitted, nil)
	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)

	_, err = svc.Transition(context.Background(), student("s1"), "a1", models.StatusAdmitted, nil)
	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)
}

func TestTransition_InvalidMove(t *testing.T) {
	repo := newMemApplications(app("a1", "s1", "i1", "c1", models.StatusRejected, 0))
	svc := NewApplicationService(repo, nil, testLog)

	_, err := svc.Transition(context.Background(), admin, "a1", models.StatusAdmitted, nil)
	assert.ErrorIs(t, err, apperrors.ErrValidationFailed)
}

func TestTransition_UnknownApplication(t *testing.T) {
	svc := NewApplicationService(newMemApplications(), nil, testLog)

	_, err := svc.Transition(context.Background(), admin, "missing", models.StatusAdmitted, nil)
	assert.ErrorIs(t, err, apperrors.ErrResourceNotFound)
}

func TestTransition_DeclinePromotesEarliestWaiting(t *testing.T) {
	repo := newMemApplications(
		app("a1", "s1", "i1", "c1", models.StatusAdmitted, 0),
		app("w2", "s3", "i1", "c1", models.StatusWaiting, 5),
		app("w1", "s2", "i1", "c1", models.StatusWaiting, 2),
	)
	bus := &recordingBus{}
	svc := NewApplicationService(repo, bus, testLog)

	remarks := "seat released"
	res, err := svc.Transition(context.Background(), institute("i1"), "a1", models.StatusDeclined, &remarks)
	require.NoError(t, err)

	assert.Equal(t, models.StatusDeclined, res.Application.Status)
	require.NotNil(t, res.Application.DeclinedAt)
	require.NotNil(t, res.Application.Remarks)
	assert.Equal(t, remarks, *res.Application.Remarks)

	require.NotNil(t, res.Promoted)
	assert.Equal(t, "w1", res.Promoted.ID)

	w1 := repo.get("w1")
	assert.Equal(t, models.StatusAdmitted, w1.Status)
	require.NotNil(t, w1.PromotedFrom)
	assert.Equal(t, models.PromotedFromWaiting, *w1.PromotedFrom)
	assert.NotNil(t, w1.PromotedAt)
	assert.Equal(t, models.StatusWaiting, repo.get("w2").Status)

	assert.Equal(t, 1, bus.count(events.ApplicationTransitionedTopic))
	assert.Equal(t, 1, bus.count(events.ApplicantPromotedTopic))
}

func TestTransition_ConfirmSetsFlag(t *testing.T) {
	repo := newMemApplications(app("a1", "s1", "i1", "c1", models.StatusAdmitted, 0))
	svc := NewApplicationService(repo, nil, testLog)

	res, err := svc.Transition(context.Background(), admin, "a1", models.StatusConfirmed, nil)
	require.NoError(t, err)
	assert.True(t, res.Application.Confirmed)
	assert.NotNil(t, res.Application.ConfirmedAt)
}

func TestTransition_SecondConfirmationRejected(t *testing.T) {
	repo := newMemApplications(
		app("a1", "s1", "i1", "c1", models.StatusConfirmed, 0),
		app("a2", "s1", "i2", "c1", models.StatusAdmitted, 1),
	)
	svc := NewApplicationService(repo, nil, testLog)

	_, err := svc.Transition(context.Background(), admin, "a2", models.StatusConfirmed, nil)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyConfirmed)
}

func TestGet_HidesOtherStudentsApplications(t *testing.T) {
	repo := newMemApplications(app("a1", "s1", "i1", "c1", models.StatusPending, 0))
	svc := NewApplicationService(repo, nil, testLog)

	_, err := svc.Get(context.Background(), student("s2"), "a1")
	assert.ErrorIs(t, err, apperrors.ErrResourceNotFound)

	_, err = svc.Get(context.Background(), institute("i2"), "a1")
	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)

	got, err := svc.Get(context.Background(), institute("i1"), "a1")
	require.NoError(t, err)
	assert.Equal(t, "a1", got.ID)
}

func TestList_ScopedByRole(t *testing.T) {
	repo := newMemApplications(
		app("a1", "s1", "i1", "c1", models.StatusPending, 0),
		app("a2", "s2", "i1", "c1", models.StatusPending, 1),
		app("a3", "s1", "i2", "c1", models.StatusPending, 2),
	)
	svc := NewApplicationService(repo, nil, testLog)
	ctx := context.Background()

	apps, total, err := svc.List(ctx, student("s1"), models.ApplicationFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, apps, 2)

	apps, total, err = svc.List(ctx, institute("i1"), models.ApplicationFilter{StudentID: "s2"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, "a2", apps[0].ID)

	_, total, err = svc.List(ctx, admin, models.ApplicationFilter{Limit: 1})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)

	_, _, err = svc.List(ctx, company("co1"), models.ApplicationFilter{})
	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)
}

func TestAdmissions_ReportsSelectionRequired(t *testing.T) {
	repo := newMemApplications(
		app("a1", "s1", "i1", "c1", models.StatusAdmitted, 0),
		app("a2", "s1", "i2", "c1", models.StatusAdmitted, 1),
		app("a3", "s1", "i3", "c1", models.StatusPending, 2),
	)
	svc := NewApplicationService(repo, nil, testLog)

	view, err := svc.Admissions(context.Background(), student("s1"))
	require.NoError(t, err)
	assert.Len(t, view.Admissions, 2)
	assert.True(t, view.SelectionRequired)
	assert.Nil(t, view.Confirmed)
}

func TestPublish_MarksAdmittedOnly(t *testing.T) {
	repo := newMemApplications(
		app("a1", "s1", "i1", "c1", models.StatusAdmitted, 0),
		app("a2", "s2", "i1", "c1", models.StatusPending, 1),
		app("a3", "s3", "i2", "c1", models.StatusAdmitted, 2),
	)
	bus := &recordingBus{}
	svc := NewApplicationService(repo, bus, testLog)

	n, err := svc.Publish(context.Background(), institute("i1"), "")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	assert.True(t, repo.get("a1").Published)
	assert.False(t, repo.get("a3").Published)
	assert.Equal(t, 1, bus.count(events.AdmissionsPublishedTopic))

	_, err = svc.Publish(context.Background(), admin, "")
	assert.ErrorIs(t, err, apperrors.ErrValidationFailed)
}

func TestTransition_ConfirmReleasesOtherAdmissions(t *testing.T) {
	repo := newMemApplications(
		app("a1", "s1", "i1", "c1", models.StatusAdmitted, 0),
		app("a2", "s1", "i2", "c1", models.StatusAdmitted, 1),
		app("w1", "s2", "i2", "c1", models.StatusWaiting, 2),
	)
	bus := &recordingBus{}
	svc := NewApplicationService(repo, bus, testLog)

	res, err := svc.Transition(context.Background(), institute("i1"), "a1", models.StatusConfirmed, nil)
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, res.Application.Status)

	require.Len(t, res.Outcomes, 1)
	assert.Equal(t, "a2", res.Outcomes[0].ApplicationID)
	assert.True(t, res.Outcomes[0].Declined)
	require.NotNil(t, res.Outcomes[0].Promoted)
	assert.Equal(t, "w1", res.Outcomes[0].Promoted.ID)

	assert.Equal(t, models.StatusDeclined, repo.get("a2").Status)
	assert.Equal(t, models.StatusAdmitted, repo.get("w1").Status)
	assert.Equal(t, 1, bus.count(events.InstitutionSelectedTopic))
	assert.Equal(t, 1, bus.count(events.ApplicantPromotedTopic))

	view, err := svc.Admissions(context.Background(), student("s1"))
	require.NoError(t, err)
	assert.False(t, view.SelectionRequired)
	require.NotNil(t, view.Confirmed)
	assert.Equal(t, "a1", view.Confirmed.ID)
	assert.Empty(t, view.Admissions)
}

func TestTransition_AdmitBlockedWhileSelectionRequired(t *testing.T) {
	repo := newMemApplications(
		app("a1", "s1", "i1", "c1", models.StatusAdmitted, 0),
		app("a2", "s1", "i2", "c1", models.StatusAdmitted, 1),
		app("a3", "s1", "i3", "c1", models.StatusPending, 2),
		app("b1", "s2", "i1", "c1", models.StatusAdmitted, 3),
		app("b2", "s2", "i3", "c1", models.StatusWaiting, 4),
	)
	svc := NewApplicationService(repo, nil, testLog)

	_, err := svc.Transition(context.Background(), institute("i3"), "a3", models.StatusAdmitted, nil)
	assert.ErrorIs(t, err, apperrors.ErrSelectionRequired)
	assert.Equal(t, models.StatusPending, repo.get("a3").Status)

	// A second admission is what opens the forced choice, so it is allowed
	_, err = svc.Transition(context.Background(), institute("i3"), "b2", models.StatusAdmitted, nil)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAdmitted, repo.get("b2").Status)

	_, err = svc.Transition(context.Background(), institute("i3"), "a3", models.StatusRejected, nil)
	require.NoError(t, err)
}

func TestTransition_AdmitLocksStudentAtInstitution(t *testing.T) {
	repo := newMemApplications(app("a1", "s1", "i1", "c1", models.StatusPending, 0))
	svc := NewApplicationService(repo, nil, testLog)

	_, err := svc.Transition(context.Background(), institute("i1"), "a1", models.StatusAdmitted, nil)
	require.NoError(t, err)

	locks := repo.lockLog()
	require.Len(t, locks, 1)
	assert.Contains(t, locks[0], "admission:s1:i1")
	assert.Contains(t, locks[0], "enrollment:s1")
}
