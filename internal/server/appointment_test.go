package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func jsonContext(t *testing.T, body string) *gin.Context {
	t.Helper()
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	req := httptest.NewRequest(http.MethodPost, "/appointments/1/cancel", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c
}

func TestBindOptionalJSON_EmptyBodyIsZeroValue(t *testing.T) {
	var req CancelAppointmentRequest
	if err := bindOptionalJSON(jsonContext(t, ""), &req); err != nil {
		t.Fatalf("empty body: %v", err)
	}
	if req.Reason != "" {
		t.Errorf("reason: got %q, want empty", req.Reason)
	}
}

func TestBindOptionalJSON_DecodesProvidedBody(t *testing.T) {
	var req CancelAppointmentRequest
	if err := bindOptionalJSON(jsonContext(t, `{"reason":"patient request"}`), &req); err != nil {
		t.Fatalf("bind: %v", err)
	}
	if req.Reason != "patient request" {
		t.Errorf("reason: got %q, want patient request", req.Reason)
	}
}

func TestBindOptionalJSON_RejectsMalformedBody(t *testing.T) {
	var req CancelAppointmentRequest
	if err := bindOptionalJSON(jsonContext(t, `{"reason":`), &req); err == nil {
		t.Fatal("expected error for malformed body")
	}
}
