package middleware

import (
	"errors"
	"fmt"
	"runtime/debug"

	"travelmate/backend/internal/apperr"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Errors recovers panics and renders the last error attached with c.Error
// if the handler did not write a response.
func Errors(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.WithFields(logrus.Fields{
					"panic": fmt.Sprintf("%v", r),
					"stack": string(debug.Stack()),
					"path":  c.Request.URL.Path,
				}).Error("panic recovered")
				WriteError(c, apperr.New(apperr.CodeInternal, "unexpected error"))
			}
		}()

		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			err := c.Errors.Last().Err
			if apperr.CodeOf(err) == apperr.CodeInternal {
				log.WithError(err).WithField("path", c.Request.URL.Path).Error("request failed")
			}
			WriteError(c, err)
		}
	}
}

// WriteError aborts with {"error": {"code", "message"}}. Causes of internal
// errors are never rendered.
func WriteError(c *gin.Context, err error) {
	code := apperr.CodeOf(err)
	message := "internal error"
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		message = appErr.Message
	}
	c.AbortWithStatusJSON(apperr.StatusOf(code), gin.H{
		"error": gin.H{"code": code, "message": message},
	})
}
