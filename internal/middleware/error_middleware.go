package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/Palindrome-Puzzles/jolly-roger/internal/transport/httpdto"
	"github.com/Palindrome-Puzzles/jolly-roger/pkg/logger"
)

func ErrorHandler(l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		if l != nil {
			l.Errorf("request error: %s", err.Error())
		}
		status, body := httpdto.FromError(err)
		c.JSON(status, body)
	}
}
