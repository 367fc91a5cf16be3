// Package api exposes the engine over HTTP with gin.
//
// Every response is JSON. Engine error codes map onto status codes:
// INVALID_ARGUMENT is 400, NOT_FOUND is 404, CONFLICT and
// INVALID_TRANSITION are 409, anything else is 500. Error bodies carry the
// code and message.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/roach88/coffeematch/internal/engine"
)

// NewRouter builds the HTTP handler for eng.
func NewRouter(eng *engine.Engine, logger *slog.Logger) *gin.Engine {
	if logger == nil {
		logger = slog.Default()
	}
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/status", StatusHandler(eng))

	p := r.Group("/participants")
	p.GET("", ListSubscribersHandler(eng))
	p.GET("/:id", ParticipantHandler(eng))
	p.POST("/:id/subscribe", SubscribeHandler(eng))
	p.DELETE("/:id/subscription", UnsubscribeHandler(eng))
	p.POST("/:id/unreachable", UnreachableHandler(eng))

	r.POST("/rounds/:period", RunRoundHandler(eng))
	r.POST("/rounds/:period/follow-ups", DispatchFollowUpsHandler(eng))
	r.POST("/follow-ups/:id/answer", AnswerHandler(eng))
	r.POST("/matches/:id/rematch", RematchHandler(eng))
	r.POST("/inactivity/:period", InactivityHandler(eng))

	return r
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"error"`
}

// StatusCode returns the HTTP status for an engine error.
func StatusCode(err error) int {
	switch engine.CodeOf(err) {
	case engine.ErrCodeInvalidArgument:
		return http.StatusBadRequest
	case engine.ErrCodeNotFound:
		return http.StatusNotFound
	case engine.ErrCodeConflict, engine.ErrCodeInvalidTransition:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	code := string(engine.CodeOf(err))
	if code == "" {
		code = string(engine.ErrCodeStorageFailure)
	}
	c.JSON(StatusCode(err), ErrorResponse{Code: code, Message: err.Error()})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Code: string(engine.ErrCodeInvalidArgument), Message: msg})
}
