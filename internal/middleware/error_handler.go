package middleware

import (
	apiError "clurb/internal/errors"
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func ErrorHandler(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next() // Execute the handler first

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err

		var apiErr *apiError.APIError
		var numErr *strconv.NumError
		switch {
		case errors.As(err, &apiErr):
		case errors.As(err, &numErr):
			// malformed ids in the path never match a row
			apiErr = apiError.NotFound("Resource not found", err)
		default:
			apiErr = apiError.Internal(err)
		}

		if apiErr.Status >= 500 {
			logger.Error("request failed",
				zap.String("path", c.FullPath()),
				zap.Error(apiErr.Internal))
		} else {
			logger.Info(apiErr.Message,
				zap.String("path", c.FullPath()),
				zap.Int("status", apiErr.Status),
				zap.NamedError("cause", apiErr.Internal))
		}

		c.AbortWithStatusJSON(apiErr.Status, apiErr)
	}
}
