package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/yigit/admissions/internal/app/models/dto"
	"github.com/yigit/admissions/internal/pkg/metrics"
	"github.com/yigit/admissions/internal/pkg/ratelimit"
)

const requestIDHeader = "X-Request-ID"

// RequestID propagates or assigns a request id
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("requestID", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// RequestLogger logs one line per request
func RequestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		var event *zerolog.Event
		switch {
		case status >= http.StatusInternalServerError:
			event = log.Error()
		case status >= http.StatusBadRequest:
			event = log.Warn()
		default:
			event = log.Info()
		}

		event = event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("ip", c.ClientIP()).
			Str("requestId", c.GetString("requestID"))
		if p, ok := PrincipalFromContext(c); ok {
			event = event.Str("userId", p.ID).Str("role", string(p.Role))
		}
		if len(c.Errors) > 0 {
			event = event.Str("errors", c.Errors.String())
		}
		event.Msg("request")
	}
}

// Metrics records request durations by route template
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequestDuration.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}

// RateLimit rejects callers over their budget with 429. Authenticated callers are keyed by user id.
func RateLimit(limiter ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}

		key := "ip:" + c.ClientIP()
		if p, ok := PrincipalFromContext(c); ok {
			key = "user:" + p.ID
		}

		if !limiter.Allow(c.Request.Context(), key) {
			errorDetail := dto.NewErrorDetail(dto.ErrorCodeRateLimited, "Too many requests").
				WithSeverity(dto.ErrorSeverityWarning)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, dto.NewErrorResponse(errorDetail))
			return
		}
		c.Next()
	}
}
