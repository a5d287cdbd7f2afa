package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	documentdomain "github.com/smallbiznis/peppolway/internal/document/domain"
	statsdomain "github.com/smallbiznis/peppolway/internal/exchangestats/domain"
	"github.com/smallbiznis/peppolway/internal/identifier"
	participantdomain "github.com/smallbiznis/peppolway/internal/participant/domain"
	transmissiondomain "github.com/smallbiznis/peppolway/internal/transmission/domain"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrConflict       = errors.New("conflict")
	ErrInternal       = errors.New("internal_error")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
)

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

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if convErr := documentdomain.AsConversionError(err); convErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "conversion_error",
			Message: "conversion error",
			Errors: []ValidationError{
				{
					Field:   convErr.Field,
					Code:    "conversion_error",
					Message: convErr.Reason,
				},
			},
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case errors.Is(err, participantdomain.ErrRoleConflict):
		return http.StatusConflict, errorPayload{
			Type:    "role_conflict",
			Message: "role requires at least one identifier",
		}
	case errors.Is(err, participantdomain.ErrIdentifierTaken):
		return http.StatusConflict, errorPayload{
			Type:    "identifier_taken",
			Message: "identifier already registered in this environment",
		}
	case errors.Is(err, transmissiondomain.ErrAlreadyInFlight):
		return http.StatusConflict, errorPayload{
			Type:    "already_in_flight",
			Message: "a transmission for this document is already in flight",
		}
	case errors.Is(err, transmissiondomain.ErrTransitionConflict),
		errors.Is(err, ErrConflict):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "conflict",
		}
	case errors.Is(err, documentdomain.ErrNotConfigured):
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "not_configured",
			Message: "participant is not configured for this exchange",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrInternal):
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, identifier.ErrInvalidFormat),
		errors.Is(err, participantdomain.ErrInvalidEnvironment),
		errors.Is(err, participantdomain.ErrInvalidLegalName),
		errors.Is(err, participantdomain.ErrInvalidCountry),
		errors.Is(err, participantdomain.ErrInvalidRole),
		errors.Is(err, participantdomain.ErrInvalidID),
		errors.Is(err, documentdomain.ErrInvalidEnvironment),
		errors.Is(err, documentdomain.ErrInvalidID),
		errors.Is(err, transmissiondomain.ErrInvalidEnvironment),
		errors.Is(err, transmissiondomain.ErrInvalidID),
		errors.Is(err, statsdomain.ErrInvalidEnvironment),
		errors.Is(err, statsdomain.ErrInvalidID),
		errors.Is(err, statsdomain.ErrInvalidYear):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, participantdomain.ErrNotFound),
		errors.Is(err, documentdomain.ErrNotFound),
		errors.Is(err, transmissiondomain.ErrNotFound),
		errors.Is(err, transmissiondomain.ErrDocumentNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	default:
		return err.Error()
	}
}

func validationErrorField(code string) string {
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	if code == "invalid_request" {
		return "request"
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	default:
		return "invalid value"
	}
}

// classifyErrorForLog gives the request logger a stable (type, code) pair
// without leaking internals into log fields.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	switch {
	case status >= http.StatusInternalServerError:
		return "server_error", payload.Type
	case status >= http.StatusBadRequest:
		return "client_error", payload.Type
	default:
		return "none", ""
	}
}
