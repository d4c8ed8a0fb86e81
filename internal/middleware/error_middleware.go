package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yigit/admissions/internal/app/models/dto"
	"github.com/yigit/admissions/internal/pkg/apperrors"
	"github.com/yigit/admissions/internal/pkg/logger"
)

type errorMapping struct {
	kind   error
	status int
	code   dto.ErrorCode
}

// errorMappings is checked in order; the first kind matched by errors.Is wins
var errorMappings = []errorMapping{
	{apperrors.ErrValidationFailed, http.StatusBadRequest, dto.ErrorCodeValidationFailed},
	{apperrors.ErrCapacityExceeded, http.StatusBadRequest, dto.ErrorCodeCapacityExceeded},
	{apperrors.ErrDuplicateApplication, http.StatusBadRequest, dto.ErrorCodeDuplicateApplication},
	{apperrors.ErrNotQualified, http.StatusUnprocessableEntity, dto.ErrorCodeNotQualified},
	{apperrors.ErrTokenExpired, http.StatusUnauthorized, dto.ErrorCodeExpiredToken},
	{apperrors.ErrTokenInvalid, http.StatusUnauthorized, dto.ErrorCodeInvalidToken},
	{apperrors.ErrPermissionDenied, http.StatusForbidden, dto.ErrorCodeForbidden},
	{apperrors.ErrResourceNotFound, http.StatusNotFound, dto.ErrorCodeResourceNotFound},
	{apperrors.ErrDuplicateAdmission, http.StatusConflict, dto.ErrorCodeDuplicateAdmission},
	{apperrors.ErrSelectionRequired, http.StatusConflict, dto.ErrorCodeSelectionRequired},
	{apperrors.ErrAlreadyConfirmed, http.StatusConflict, dto.ErrorCodeAlreadyConfirmed},
	{apperrors.ErrConflict, http.StatusConflict, dto.ErrorCodeConflict},
	{apperrors.ErrDependencyUnavailable, http.StatusServiceUnavailable, dto.ErrorCodeDependencyUnavailable},
}

// StatusFor returns the HTTP status and error code for err
func StatusFor(err error) (int, dto.ErrorCode) {
	for _, m := range errorMappings {
		if errors.Is(err, m.kind) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, dto.ErrorCodeInternalServer
}

// HandleAPIError handles common API errors and returns appropriate responses
func HandleAPIError(c *gin.Context, err error) {
	status, code := StatusFor(err)

	message := apperrors.Message(err)
	switch status {
	case http.StatusInternalServerError:
		logger.Error().Err(err).Str("path", c.Request.URL.Path).Msg("unhandled error")
		message = "Internal server error"
	case http.StatusServiceUnavailable:
		logger.Warn().Err(err).Str("path", c.Request.URL.Path).Msg("dependency unavailable")
	}

	errorDetail := dto.NewErrorDetail(code, message)
	if status < http.StatusInternalServerError {
		errorDetail = errorDetail.WithSeverity(dto.ErrorSeverityWarning)
	}
	c.AbortWithStatusJSON(status, dto.NewErrorResponse(errorDetail))
}
