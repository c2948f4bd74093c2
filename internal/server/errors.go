package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	lifecycledomain "github.com/smallbiznis/ratecard/internal/lifecycle/domain"
	"github.com/smallbiznis/ratecard/internal/pricing"
	ratetabledomain "github.com/smallbiznis/ratecard/internal/ratetable/domain"
	versionchaindomain "github.com/smallbiznis/ratecard/internal/versionchain/domain"
	"github.com/smallbiznis/ratecard/pkg/db"
	"gorm.io/gorm"
)

type errorPayload struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

// ErrorHandlingMiddleware converts collected handler errors into one JSON
// error body. Domain errors are never swallowed; whatever a handler pushed
// propagates to the caller with the matching status.
func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func mapError(err error) (int, errorPayload) {
	switch {
	case errors.Is(err, ratetabledomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound, payload("not_found", err)

	case errors.Is(err, lifecycledomain.ErrNoActiveRate):
		return http.StatusNotFound, payload("no_active_rate", err)

	case errors.Is(err, lifecycledomain.ErrOverlap):
		return http.StatusConflict, payload("overlapping_schedule", err)

	case errors.Is(err, lifecycledomain.ErrInvalidState),
		errors.Is(err, ratetabledomain.ErrNotDraft),
		errors.Is(err, versionchaindomain.ErrAlreadyLinked):
		return http.StatusConflict, payload("invalid_state", err)

	case errors.Is(err, lifecycledomain.ErrScopeBusy):
		return http.StatusConflict, payload("scope_busy", err)

	case errors.Is(err, ratetabledomain.ErrInvalidRate),
		errors.Is(err, ratetabledomain.ErrUnknownCategory),
		errors.Is(err, pricing.ErrUnknownUrgency),
		errors.Is(err, pricing.ErrInvalidRequest),
		errors.Is(err, ratetabledomain.ErrInvalidRateType),
		errors.Is(err, ratetabledomain.ErrInvalidCurrency),
		errors.Is(err, ratetabledomain.ErrInvalidID):
		return http.StatusBadRequest, payload("validation_error", err)

	case errors.Is(err, ratetabledomain.ErrInvalidOrganization):
		return http.StatusUnauthorized, payload("invalid_organization", err)

	case db.IsDuplicateKeyErr(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Code:    "duplicate_record",
			Message: "record already exists",
		}

	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Code:    "internal_error",
			Message: "internal error",
		}
	}
}

func payload(code string, err error) errorPayload {
	return errorPayload{
		Type:    code,
		Code:    code,
		Message: err.Error(),
	}
}

func classifyErrorForLog(err error) (string, string) {
	status, p := mapError(err)
	if status >= http.StatusInternalServerError {
		return "internal_error", p.Code
	}
	if status == http.StatusConflict {
		return "conflict", p.Code
	}
	return "validation_error", p.Code
}
