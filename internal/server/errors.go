package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	donationdomain "github.com/smallbiznis/sadaqah/internal/donation/domain"
	pooldomain "github.com/smallbiznis/sadaqah/internal/matchingpool/domain"
	tierdomain "github.com/smallbiznis/sadaqah/internal/tier/domain"
	"github.com/smallbiznis/sadaqah/pkg/db/pagination"
	"gorm.io/gorm"
)

// ValidationError names one rejected request field.
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
	ErrNotFound           = errors.New("not_found")
	ErrRateLimited        = errors.New("rate_limited")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

// inputErrors are the domain sentinels that mean "fix your request". The
// sentinel text doubles as the client-facing error code.
var inputErrors = []error{
	errInvalidLimit,
	pagination.ErrInvalidPageToken,
	tierdomain.ErrInvalidPoints,
	pooldomain.ErrInvalidUser,
	pooldomain.ErrInvalidDonation,
	pooldomain.ErrInvalidAmount,
	pooldomain.ErrInvalidBusiness,
	pooldomain.ErrInvalidEntryID,
	pooldomain.ErrInvalidLimit,
	donationdomain.ErrInvalidUser,
	donationdomain.ErrInvalidAmount,
	donationdomain.ErrInvalidCurrency,
	donationdomain.ErrInvalidLimit,
}

// errorClass maps a family of errors onto one HTTP status and error type.
// Classes are tried in order; anything unmatched is an internal error.
type errorClass struct {
	status  int
	typ     string
	message string
	match   func(error) bool
}

var errorClasses = []errorClass{
	{http.StatusNotFound, "not_found", "not found", func(err error) bool {
		return errors.Is(err, ErrNotFound) ||
			errors.Is(err, pooldomain.ErrNotFound) ||
			errors.Is(err, tierdomain.ErrUnknownKind) ||
			errors.Is(err, gorm.ErrRecordNotFound)
	}},
	{http.StatusTooManyRequests, "rate_limited", "too many requests", func(err error) bool {
		return errors.Is(err, ErrRateLimited)
	}},
	{http.StatusServiceUnavailable, "service_unavailable", "service unavailable", func(err error) bool {
		return errors.Is(err, ErrServiceUnavailable) ||
			errors.Is(err, pooldomain.ErrStorageUnavailable) ||
			errors.Is(err, pooldomain.ErrLedgerContention)
	}},
}

var internalError = errorPayload{Type: "internal_error", Message: "internal server error"}

// ErrorHandlingMiddleware renders the last handler error as the JSON error
// envelope unless the handler already wrote a response.
func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		lastErr := c.Errors.Last()
		if lastErr == nil || c.Writer.Written() {
			return
		}
		status, payload := mapError(lastErr.Err)
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
	return &ValidationErrors{Errors: []ValidationError{{Field: field, Code: code, Message: message}}}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, internalError
	}

	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return http.StatusBadRequest, validationPayload(vErr.Errors)
	}
	if code, ok := inputErrorCode(err); ok {
		return http.StatusBadRequest, validationPayload([]ValidationError{{
			Field:   strings.TrimPrefix(code, "invalid_"),
			Code:    code,
			Message: "invalid value",
		}})
	}

	for _, class := range errorClasses {
		if class.match(err) {
			return class.status, errorPayload{Type: class.typ, Message: class.message}
		}
	}
	return http.StatusInternalServerError, internalError
}

func validationPayload(fields []ValidationError) errorPayload {
	return errorPayload{Type: "validation_error", Message: "validation error", Errors: fields}
}

func inputErrorCode(err error) (string, bool) {
	for _, sentinel := range inputErrors {
		if errors.Is(err, sentinel) {
			return sentinel.Error(), true
		}
	}
	return "", false
}

// classifyErrorForLog feeds the request logger the same type/code the client
// sees, so 4xx noise can be told apart from real failures.
func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	code := payload.Type
	var decodeErr *pooldomain.DecodeError
	switch {
	case len(payload.Errors) > 0:
		code = payload.Errors[0].Code
	case tierdomain.IsConfigurationError(err):
		code = "tier_configuration"
	case errors.Is(err, pooldomain.ErrLedgerContention):
		code = pooldomain.ErrLedgerContention.Error()
	case errors.As(err, &decodeErr):
		code = "ledger_decode"
	}
	return payload.Type, code
}
