package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	appauth "github.com/yigit/admissions/internal/app/auth"
	"github.com/yigit/admissions/internal/app/models"
	"github.com/yigit/admissions/internal/app/models/dto"
	"github.com/yigit/admissions/internal/pkg/apperrors"
	"github.com/yigit/admissions/internal/pkg/auth"
	"github.com/yigit/admissions/internal/pkg/ratelimit"
)

const testSecret = "test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func signToken(t *testing.T, claims auth.Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func validClaims(role string) auth.Claims {
	return auth.Claims{
		UserID: "user-1",
		Email:  "user@example.com",
		Name:   "Test User",
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "admissions.app",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func newAuthRouter(roles ...models.RoleType) *gin.Engine {
	m := NewAuthMiddleware(auth.NewJWTService(auth.JWTConfig{SecretKey: testSecret, TokenIssuer: "admissions.app"}))
	r := gin.New()
	r.GET("/me", m.JWTAuth(), m.RoleRequired(roles...), func(c *gin.Context) {
		p, _ := PrincipalFromContext(c)
		c.JSON(http.StatusOK, p)
	})
	return r
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) dto.ErrorResponse {
	t.Helper()
	var resp dto.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	return resp
}

func TestJWTAuth_SetsPrincipal(t *testing.T) {
	r := newAuthRouter(models.RoleStudent)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, validClaims("student")))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var p appauth.Principal
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	assert.Equal(t, "user-1", p.ID)
	assert.Equal(t, models.RoleStudent, p.Role)
}

func TestJWTAuth_Rejections(t *testing.T) {
	expired := validClaims("student")
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))

	wrongIssuer := validClaims("student")
	wrongIssuer.Issuer = "someone-else"

	tests := []struct {
		name   string
		header string
		code   dto.ErrorCode
	}{
		{"missing header", "", dto.ErrorCodeUnauthorized},
		{"garbage", "Bearer not-a-token", dto.ErrorCodeInvalidToken},
		{"expired", "Bearer " + signToken(t, expired), dto.ErrorCodeExpiredToken},
		{"wrong issuer", "Bearer " + signToken(t, wrongIssuer), dto.ErrorCodeInvalidToken},
		{"unknown role", "Bearer " + signToken(t, validClaims("janitor")), dto.ErrorCodeInvalidToken},
	}

	r := newAuthRouter(models.RoleStudent)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, tt.code, decodeError(t, w).Error.Code)
		})
	}
}

func TestRoleRequired_Forbidden(t *testing.T) {
	r := newAuthRouter(models.RoleInstitute, models.RoleAdmin)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, validClaims("student")))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, dto.ErrorCodeForbidden, decodeError(t, w).Error.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   dto.ErrorCode
	}{
		{apperrors.NewValidationError("bad"), http.StatusBadRequest, dto.ErrorCodeValidationFailed},
		{apperrors.NewCustomError(apperrors.ErrCapacityExceeded, "full"), http.StatusBadRequest, dto.ErrorCodeCapacityExceeded},
		{apperrors.NewCustomError(apperrors.ErrDuplicateApplication, "dup"), http.StatusBadRequest, dto.ErrorCodeDuplicateApplication},
		{apperrors.NewCustomError(apperrors.ErrNotQualified, "no"), http.StatusUnprocessableEntity, dto.ErrorCodeNotQualified},
		{apperrors.NewForbiddenError("no"), http.StatusForbidden, dto.ErrorCodeForbidden},
		{apperrors.NewResourceNotFoundError("gone"), http.StatusNotFound, dto.ErrorCodeResourceNotFound},
		{apperrors.NewCustomError(apperrors.ErrDuplicateAdmission, "dup"), http.StatusConflict, dto.ErrorCodeDuplicateAdmission},
		{apperrors.NewCustomError(apperrors.ErrSelectionRequired, "pick"), http.StatusConflict, dto.ErrorCodeSelectionRequired},
		{apperrors.NewCustomError(apperrors.ErrAlreadyConfirmed, "done"), http.StatusConflict, dto.ErrorCodeAlreadyConfirmed},
		{apperrors.NewConflictError("closed"), http.StatusConflict, dto.ErrorCodeConflict},
		{apperrors.NewDependencyError("db", errors.New("down")), http.StatusServiceUnavailable, dto.ErrorCodeDependencyUnavailable},
		{errors.New("boom"), http.StatusInternalServerError, dto.ErrorCodeInternalServer},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			status, code := StatusFor(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, code)
		})
	}
}

func TestHandleAPIError_HidesInternalMessages(t *testing.T) {
	r := gin.New()
	r.GET("/fail", func(c *gin.Context) { HandleAPIError(c, errors.New("pq: secret detail")) })
	r.GET("/dup", func(c *gin.Context) {
		HandleAPIError(c, apperrors.NewCustomError(apperrors.ErrDuplicateAdmission, "Student is already admitted to Physics"))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/fail", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Internal server error", decodeError(t, w).Error.Message)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/dup", nil))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "Student is already admitted to Physics", decodeError(t, w).Error.Message)
}

func TestRateLimit_PerUser(t *testing.T) {
	limiter := ratelimit.NewLocalLimiter(2, time.Minute)
	r := gin.New()
	r.GET("/x", func(c *gin.Context) {
		SetPrincipal(c, appauth.Principal{ID: c.Query("user"), Role: models.RoleStudent})
		c.Next()
	}, RateLimit(limiter), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	codes := make([]int, 0, 4)
	for _, user := range []string{"a", "a", "a", "b"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x?user="+user, nil))
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusNoContent, http.StatusNoContent, http.StatusTooManyRequests, http.StatusNoContent}, codes)
}
