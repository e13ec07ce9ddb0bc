package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"mood/internal/middleware"
	"mood/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Render helper to inject common variables like 'current user'
func Render(c *gin.Context, code int, name string, obj gin.H) {
	if obj == nil {
		obj = gin.H{}
	}

	if user := middleware.CurrentUser(c); user != nil {
		obj["CurrentUser"] = user
	}
	obj["CurrentPath"] = c.Request.URL.Path

	c.HTML(code, name, obj)
}

// RenderError renders the error page
func RenderError(c *gin.Context, code int, message string) {
	Render(c, code, "error.html", gin.H{"Error": message, "Code": code})
}

func statusFor(kind services.ErrorKind) int {
	switch kind {
	case services.KindNotFound:
		return http.StatusNotFound
	case services.KindBadRequest:
		return http.StatusBadRequest
	case services.KindConflict:
		return http.StatusConflict
	case services.KindUnauthorized:
		return http.StatusUnauthorized
	case services.KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// describe maps err to a status and a message safe for end users.
// Server errors are logged here and never leak their cause.
func describe(c *gin.Context, logger *zap.SugaredLogger, err error) (int, *services.Error) {
	var se *services.Error
	if !errors.As(err, &se) {
		se = services.Internal("unexpected", err)
	}
	code := statusFor(se.Kind)
	if code == http.StatusInternalServerError {
		logger.Errorw("request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
	}
	return code, se
}

// JSONError writes {error, redirect?} for err.
func JSONError(c *gin.Context, logger *zap.SugaredLogger, err error) {
	code, se := describe(c, logger, err)
	body := gin.H{"error": se.Message}
	if se.Redirect != "" {
		body["redirect"] = se.Redirect
	}
	c.AbortWithStatusJSON(code, body)
}

// PageError renders the error page for err.
func PageError(c *gin.Context, logger *zap.SugaredLogger, err error) {
	code, se := describe(c, logger, err)
	RenderError(c, code, se.Message)
	c.Abort()
}

// paramID parses a positive numeric path parameter.
func paramID(c *gin.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, services.BadRequest("ID de campagne invalide")
	}
	return uint(id), nil
}

func ownerID(c *gin.Context) uint {
	if user := middleware.CurrentUser(c); user != nil {
		return user.ID
	}
	return 0
}
