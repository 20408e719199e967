package handlers

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "registra/internal/errors"
	"registra/internal/logger"
	"registra/internal/middleware"
	"registra/internal/services"
	"registra/internal/uuid"
)

// ErrorDetail is the inner error body of an ErrorResponse.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse is the JSON body returned for any failed request.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// MessageResponse is a simple confirmation body.
type MessageResponse struct {
	Message string `json:"message"`
}

// getActor extracts the authenticated actor (id plus role codes) from the
// Gin context. Returns ErrUnauthorized if not present.
func getActor(c *gin.Context) (services.Actor, error) {
	actorID, exists := c.Get(middleware.ContextActorID)
	if !exists {
		return services.Actor{}, apperrors.ErrUnauthorized
	}
	actor := services.Actor{ID: actorID.(string)}
	if roles, ok := c.Get(middleware.ContextRoles); ok {
		actor.Roles, _ = roles.([]string)
	}
	return actor, nil
}

// parsePathID parses a UUID path parameter.
// Returns ErrValidation if the parameter is not a valid UUID.
//
//nolint:unparam // param is intentionally generic for reuse across handlers with different path params
func parsePathID(c *gin.Context, param string) (string, error) {
	id := c.Param(param)
	if !uuid.IsValid(id) {
		return "", apperrors.WithMessage(apperrors.ErrValidation, "Invalid "+param)
	}
	return id, nil
}

// parseDate parses an ISO date (2006-01-02) into a *time.Time, or nil when
// the value is empty.
func parseDate(value, field string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil, apperrors.WithMessage(apperrors.ErrValidation, field+" must be an ISO date (YYYY-MM-DD)")
	}
	return &t, nil
}

// respondWithError writes a consistent JSON error response. If the error is an
// *AppError it uses the error's status code, code, and message. Otherwise it
// logs the unexpected error and returns a generic internal server error.
func respondWithError(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		if appErr.Internal != nil {
			logger.Get().Errorw("app error",
				"code", appErr.Code,
				"internal", appErr.Internal.Error(),
				"path", c.Request.URL.Path,
			)
		}
		c.JSON(appErr.StatusCode, gin.H{
			"error": gin.H{
				"code":    appErr.Code,
				"message": appErr.Message,
			},
		})
		return
	}

	logger.Get().Errorw("unexpected error",
		"error", err.Error(),
		"path", c.Request.URL.Path,
		"method", c.Request.Method,
	)
	c.JSON(apperrors.ErrInternalServer.StatusCode, gin.H{
		"error": gin.H{
			"code":    apperrors.ErrInternalServer.Code,
			"message": apperrors.ErrInternalServer.Message,
		},
	})
}
