package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	appauth "github.com/yigit/admissions/internal/app/auth"
	"github.com/yigit/admissions/internal/app/models"
	"github.com/yigit/admissions/internal/app/models/dto"
	"github.com/yigit/admissions/internal/pkg/auth"
)

const principalKey = "principal"

// AuthMiddleware for authentication and authorization
type AuthMiddleware struct {
	jwtService *auth.JWTService
}

// NewAuthMiddleware creates a new AuthMiddleware
func NewAuthMiddleware(jwtService *auth.JWTService) *AuthMiddleware {
	return &AuthMiddleware{
		jwtService: jwtService,
	}
}

func abortUnauthorized(c *gin.Context, code dto.ErrorCode, details string) {
	errorDetail := dto.NewErrorDetail(code, "Authentication failed").WithDetails(details)
	c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponse(errorDetail))
}

// JWTAuth validates the bearer token and stores the caller's Principal on the context
func (m *AuthMiddleware) JWTAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")

		// Swagger UI sometimes puts the token in the query string
		if authHeader == "" {
			if queryToken := c.Query("token"); queryToken != "" {
				authHeader = queryToken
			}
		}

		if authHeader == "" {
			errorDetail := dto.NewErrorDetail(dto.ErrorCodeUnauthorized, "Authentication required").
				WithDetails("Authorization header missing")
			c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponse(errorDetail))
			return
		}

		tokenString, err := auth.ExtractBearerToken(authHeader)
		if err != nil {
			abortUnauthorized(c, dto.ErrorCodeInvalidToken, "Invalid token format")
			return
		}

		claims, err := m.jwtService.ValidateAndExtractClaims(tokenString)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrExpiredToken):
				abortUnauthorized(c, dto.ErrorCodeExpiredToken, "Token has expired")
			case errors.Is(err, auth.ErrInvalidFormat):
				abortUnauthorized(c, dto.ErrorCodeInvalidToken, "Invalid token format")
			default:
				abortUnauthorized(c, dto.ErrorCodeInvalidToken, "Invalid token")
			}
			return
		}

		role := models.RoleType(claims.Role)
		if !role.Valid() {
			abortUnauthorized(c, dto.ErrorCodeInvalidToken, "Unknown role")
			return
		}

		c.Set(principalKey, appauth.Principal{
			ID:    claims.UserID,
			Role:  role,
			Name:  claims.Name,
			Email: claims.Email,
		})
		c.Next()
	}
}

// PrincipalFromContext returns the Principal stored by JWTAuth
func PrincipalFromContext(c *gin.Context) (appauth.Principal, bool) {
	v, exists := c.Get(principalKey)
	if !exists {
		return appauth.Principal{}, false
	}
	p, ok := v.(appauth.Principal)
	return p, ok
}

// SetPrincipal stores p on the context. Used by JWTAuth and by tests.
func SetPrincipal(c *gin.Context, p appauth.Principal) {
	c.Set(principalKey, p)
}

// RoleRequired middleware to check if user has one of the required roles
func (m *AuthMiddleware) RoleRequired(roles ...models.RoleType) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := PrincipalFromContext(c)
		if !ok {
			errorDetail := dto.NewErrorDetail(dto.ErrorCodeUnauthorized, "Authentication required").
				WithDetails("User role not found")
			c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponse(errorDetail))
			return
		}

		if err := p.RequireRole(roles...); err != nil {
			errorDetail := dto.NewErrorDetail(dto.ErrorCodeForbidden, "Access denied").
				WithDetails("You don't have sufficient permissions for this operation")
			c.AbortWithStatusJSON(http.StatusForbidden, dto.NewErrorResponse(errorDetail))
			return
		}

		c.Next()
	}
}
