package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	appointmentdomain "github.com/dentora/dentora/internal/appointment/domain"
	auditdomain "github.com/dentora/dentora/internal/audit/domain"
	"github.com/dentora/dentora/internal/authorization"
	invoicedomain "github.com/dentora/dentora/internal/invoice/domain"
	patientdomain "github.com/dentora/dentora/internal/patient/domain"
	paymentdomain "github.com/dentora/dentora/internal/payment/domain"
	productdomain "github.com/dentora/dentora/internal/product/domain"
	treatmentplandomain "github.com/dentora/dentora/internal/treatmentplan/domain"
	userdomain "github.com/dentora/dentora/internal/user/domain"
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
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
	ErrRateLimited    = errors.New("rate_limited")
	ErrInternal       = errors.New("internal_error")
)

// ErrorHandlingMiddleware renders the last handler error as the JSON
// error envelope. Handlers that already wrote a body are left alone.
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

	if isValidationError(err) {
		code := err.Error()
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: "invalid value",
				},
			},
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, userdomain.ErrInvalidCredentials),
		errors.Is(err, userdomain.ErrInvalidSession),
		errors.Is(err, userdomain.ErrSessionNotFound),
		errors.Is(err, userdomain.ErrSessionExpired),
		errors.Is(err, userdomain.ErrSessionRevoked):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, authorization.ErrForbidden),
		errors.Is(err, userdomain.ErrUserInactive):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: conflictMessage(err),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog feeds the request logger the same taxonomy the
// response envelope uses.
func classifyErrorForLog(err error) (string, string) {
	if err == nil {
		return "", ""
	}
	_, payload := mapError(err)
	code := payload.Type
	if len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	}
	return payload.Type, code
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
		errors.Is(err, userdomain.ErrInvalidRole),
		errors.Is(err, userdomain.ErrInvalidID),
		errors.Is(err, patientdomain.ErrInvalidName),
		errors.Is(err, patientdomain.ErrInvalidEmail),
		errors.Is(err, patientdomain.ErrInvalidDateOfBirth),
		errors.Is(err, patientdomain.ErrInvalidStatus),
		errors.Is(err, patientdomain.ErrInvalidID),
		errors.Is(err, productdomain.ErrInvalidCode),
		errors.Is(err, productdomain.ErrInvalidName),
		errors.Is(err, productdomain.ErrInvalidType),
		errors.Is(err, productdomain.ErrInvalidPrice),
		errors.Is(err, productdomain.ErrInvalidID),
		errors.Is(err, appointmentdomain.ErrInvalidID),
		errors.Is(err, appointmentdomain.ErrInvalidPatient),
		errors.Is(err, appointmentdomain.ErrInvalidPractitioner),
		errors.Is(err, appointmentdomain.ErrInvalidDate),
		errors.Is(err, appointmentdomain.ErrInvalidTime),
		errors.Is(err, appointmentdomain.ErrInvalidDuration),
		errors.Is(err, appointmentdomain.ErrOutsideOpeningHours),
		errors.Is(err, appointmentdomain.ErrInvalidPageToken),
		errors.Is(err, invoicedomain.ErrInvalidID),
		errors.Is(err, invoicedomain.ErrInvalidPatient),
		errors.Is(err, invoicedomain.ErrInvalidItem),
		errors.Is(err, invoicedomain.ErrInvalidQuantity),
		errors.Is(err, invoicedomain.ErrInvalidPrice),
		errors.Is(err, invoicedomain.ErrInvalidTaxRate),
		errors.Is(err, invoicedomain.ErrInvalidDiscount),
		errors.Is(err, invoicedomain.ErrInvalidPageToken),
		errors.Is(err, paymentdomain.ErrInvalidID),
		errors.Is(err, paymentdomain.ErrInvalidAmount),
		errors.Is(err, paymentdomain.ErrInvalidMethod),
		errors.Is(err, paymentdomain.ErrRefundExceedsAmount),
		errors.Is(err, paymentdomain.ErrInvalidPageToken),
		errors.Is(err, treatmentplandomain.ErrInvalidID),
		errors.Is(err, treatmentplandomain.ErrInvalidPatient),
		errors.Is(err, treatmentplandomain.ErrInvalidTitle),
		errors.Is(err, treatmentplandomain.ErrInvalidItem),
		errors.Is(err, treatmentplandomain.ErrInvalidEstimate),
		errors.Is(err, treatmentplandomain.ErrInvalidPageToken),
		errors.Is(err, auditdomain.ErrInvalidPageToken),
		errors.Is(err, auditdomain.ErrInvalidTimeRange),
		errors.Is(err, auditdomain.ErrInvalidAction):
		return true
	default:
		return false
	}
}

// Conflicts are requests that are well formed but collide with the
// current state of the record: double bookings, lifecycle guards, and
// payment reversal rules.
func isConflictError(err error) bool {
	switch {
	case errors.Is(err, appointmentdomain.ErrSchedulingConflict),
		errors.Is(err, appointmentdomain.ErrInvalidTransition),
		errors.Is(err, treatmentplandomain.ErrInvalidTransition),
		errors.Is(err, treatmentplandomain.ErrPlanLocked),
		errors.Is(err, invoicedomain.ErrNotDraft),
		errors.Is(err, invoicedomain.ErrAlreadyPaid),
		errors.Is(err, invoicedomain.ErrCancelled),
		errors.Is(err, paymentdomain.ErrInvoiceCancelled),
		errors.Is(err, paymentdomain.ErrInvoiceNotPayable),
		errors.Is(err, paymentdomain.ErrPaymentNotReversible),
		errors.Is(err, userdomain.ErrUserExists):
		return true
	default:
		return false
	}
}

func conflictMessage(err error) string {
	if errors.Is(err, appointmentdomain.ErrSchedulingConflict) {
		return "time slot unavailable"
	}
	return err.Error()
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, userdomain.ErrUserNotFound),
		errors.Is(err, patientdomain.ErrNotFound),
		errors.Is(err, productdomain.ErrNotFound),
		errors.Is(err, appointmentdomain.ErrNotFound),
		errors.Is(err, appointmentdomain.ErrPatientNotFound),
		errors.Is(err, appointmentdomain.ErrPractitionerNotFound),
		errors.Is(err, invoicedomain.ErrNotFound),
		errors.Is(err, invoicedomain.ErrPatientNotFound),
		errors.Is(err, invoicedomain.ErrItemNotFound),
		errors.Is(err, paymentdomain.ErrNotFound),
		errors.Is(err, paymentdomain.ErrInvoiceNotFound),
		errors.Is(err, treatmentplandomain.ErrNotFound),
		errors.Is(err, treatmentplandomain.ErrItemNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorField(code string) string {
	if code == "refund_exceeds_payment" {
		return "amount_cents"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}
