package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yigit/admissions/internal/app/models/dto"
)

// BindJSON binds and validates the request body into obj, writing a 400 response on failure
func BindJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, dto.NewErrorResponse(dto.HandleValidationError(err)))
		return false
	}
	return true
}

// BindQuery binds and validates query parameters into obj, writing a 400 response on failure
func BindQuery(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindQuery(obj); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, dto.NewErrorResponse(dto.HandleValidationError(err)))
		return false
	}
	return true
}
