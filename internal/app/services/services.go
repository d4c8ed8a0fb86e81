package services

import (
	"errors"
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/yigit/admissions/internal/app/repositories"
	"github.com/yigit/admissions/internal/pkg/apperrors"
	"github.com/yigit/admissions/internal/pkg/metrics"
)

// now is the service clock
var now = func() time.Time { return time.Now().UTC() }

func strPtr(s string) *string { return &s }

// domainErrors are kinds a repository may return that must reach the caller unchanged
var domainErrors = []error{
	apperrors.ErrResourceNotFound,
	apperrors.ErrPermissionDenied,
	apperrors.ErrValidationFailed,
	apperrors.ErrConflict,
	apperrors.ErrCapacityExceeded,
	apperrors.ErrDuplicateApplication,
	apperrors.ErrDuplicateAdmission,
	apperrors.ErrNotQualified,
	apperrors.ErrSelectionRequired,
	apperrors.ErrAlreadyConfirmed,
	apperrors.ErrDependencyUnavailable,
}

// storeError passes domain errors through and wraps everything else as DependencyUnavailable
func storeError(message string, err error) error {
	if err == nil {
		return nil
	}
	for _, kind := range domainErrors {
		if errors.Is(err, kind) {
			return err
		}
	}
	return apperrors.NewDependencyError(message, err)
}

// notFound turns a missing row into a NotFound error carrying message
func notFound(message string, err error) error {
	if repositories.IsNotFound(err) {
		return apperrors.NewResourceNotFoundError(message)
	}
	return storeError(message, err)
}

// reject counts a policy refusal and returns it
func reject(reason string, err error) error {
	metrics.Rejections.WithLabelValues(reason).Inc()
	return err
}

type pendingEvent struct {
	topic   string
	payload interface{}
}

// publishAll emits events collected during a committed unit of work
func publishAll(bus EventBus.BusPublisher, evs []pendingEvent) {
	if bus == nil {
		return
	}
	for _, e := range evs {
		bus.Publish(e.topic, e.payload)
	}
}
