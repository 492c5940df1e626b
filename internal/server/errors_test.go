package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	appointmentdomain "github.com/dentora/dentora/internal/appointment/domain"
	invoicedomain "github.com/dentora/dentora/internal/invoice/domain"
	paymentdomain "github.com/dentora/dentora/internal/payment/domain"
	treatmentplandomain "github.com/dentora/dentora/internal/treatmentplan/domain"
	userdomain "github.com/dentora/dentora/internal/user/domain"
)

func TestMapError_StatusCodes(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
	}{
		{"unauthorized", ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
		{"bad credentials", userdomain.ErrInvalidCredentials, http.StatusUnauthorized, "unauthorized"},
		{"expired session", userdomain.ErrSessionExpired, http.StatusUnauthorized, "unauthorized"},
		{"forbidden", ErrForbidden, http.StatusForbidden, "forbidden"},
		{"not found", invoicedomain.ErrNotFound, http.StatusNotFound, "not_found"},
		{"item not found", invoicedomain.ErrItemNotFound, http.StatusNotFound, "not_found"},
		{"booking patient missing", appointmentdomain.ErrPatientNotFound, http.StatusNotFound, "not_found"},
		{"booking practitioner missing", appointmentdomain.ErrPractitionerNotFound, http.StatusNotFound, "not_found"},
		{"invoice patient missing", invoicedomain.ErrPatientNotFound, http.StatusNotFound, "not_found"},
		{"double booking", appointmentdomain.ErrSchedulingConflict, http.StatusConflict, "conflict"},
		{"bad transition", appointmentdomain.ErrInvalidTransition, http.StatusConflict, "conflict"},
		{"invoice not draft", invoicedomain.ErrNotDraft, http.StatusConflict, "conflict"},
		{"invoice has payments", invoicedomain.ErrAlreadyPaid, http.StatusConflict, "conflict"},
		{"plan locked", treatmentplandomain.ErrPlanLocked, http.StatusConflict, "conflict"},
		{"refund too large", paymentdomain.ErrRefundExceedsAmount, http.StatusBadRequest, "validation_error"},
		{"bad tax rate", invoicedomain.ErrInvalidTaxRate, http.StatusBadRequest, "validation_error"},
		{"bad method", paymentdomain.ErrInvalidMethod, http.StatusBadRequest, "validation_error"},
		{"rate limited", ErrRateLimited, http.StatusTooManyRequests, "rate_limited"},
		{"unknown", errFake, http.StatusInternalServerError, "internal_error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, payload := mapError(tc.err)
			if status != tc.wantStatus {
				t.Errorf("status = %d, want %d", status, tc.wantStatus)
			}
			if payload.Type != tc.wantType {
				t.Errorf("type = %q, want %q", payload.Type, tc.wantType)
			}
		})
	}
}

var errFake = &fakeError{}

type fakeError struct{}

func (*fakeError) Error() string { return "boom" }

func TestMapError_ValidationCarriesFieldAndCode(t *testing.T) {
	status, payload := mapError(invoicedomain.ErrInvalidDiscount)
	if status != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", status)
	}
	if len(payload.Errors) != 1 {
		t.Fatalf("expected one validation entry, got %d", len(payload.Errors))
	}
	if payload.Errors[0].Code != "invalid_discount" {
		t.Errorf("code = %q, want invalid_discount", payload.Errors[0].Code)
	}
	if payload.Errors[0].Field != "discount" {
		t.Errorf("field = %q, want discount", payload.Errors[0].Field)
	}
}

func TestMapError_RefundCapIsValidation(t *testing.T) {
	status, payload := mapError(paymentdomain.ErrRefundExceedsAmount)
	if status != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", status)
	}
	if len(payload.Errors) != 1 {
		t.Fatalf("expected one validation entry, got %d", len(payload.Errors))
	}
	if payload.Errors[0].Code != "refund_exceeds_payment" {
		t.Errorf("code = %q, want refund_exceeds_payment", payload.Errors[0].Code)
	}
	if payload.Errors[0].Field != "amount_cents" {
		t.Errorf("field = %q, want amount_cents", payload.Errors[0].Field)
	}
}

func TestMapError_InternalErrorIsOpaque(t *testing.T) {
	_, payload := mapError(errFake)
	if payload.Message != "internal server error" {
		t.Errorf("internal error message leaked: %q", payload.Message)
	}
}

func TestErrorHandlingMiddleware_WritesEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ErrorHandlingMiddleware())
	r.GET("/boom", func(c *gin.Context) {
		AbortWithError(c, appointmentdomain.ErrSchedulingConflict)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}

	var body errorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Error.Type != "conflict" {
		t.Errorf("type = %q, want conflict", body.Error.Type)
	}
	if body.Error.Message != "time slot unavailable" {
		t.Errorf("message = %q, want time slot unavailable", body.Error.Message)
	}
}

func TestErrorHandlingMiddleware_LeavesWrittenResponses(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ErrorHandlingMiddleware())
	r.GET("/ok", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		_ = c.Error(errFake)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}
