package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(CodeInvalidInput, "bad request", http.StatusBadRequest)

	if err.Code != CodeInvalidInput {
		t.Errorf("expected code %s, got %s", CodeInvalidInput, err.Code)
	}
	if err.Message != "bad request" {
		t.Errorf("expected message 'bad request', got %s", err.Message)
	}
	if err.HTTPStatus != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, err.HTTPStatus)
	}
}

func TestWrap(t *testing.T) {
	originalErr := errors.New("database connection failed")
	wrapped := Wrap(originalErr, CodeInternal, "internal error", http.StatusInternalServerError)

	if wrapped.Err != originalErr {
		t.Errorf("expected wrapped error to contain original error")
	}
	if wrapped.Code != CodeInternal {
		t.Errorf("expected code %s, got %s", CodeInternal, wrapped.Code)
	}
}

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appErr   *AppError
		expected string
	}{
		{
			name: "without underlying error",
			appErr: &AppError{
				Code:    CodeNotFound,
				Message: "resource not found",
			},
			expected: "NOT_FOUND: resource not found",
		},
		{
			name: "with underlying error",
			appErr: &AppError{
				Code:    CodeInternal,
				Message: "internal error",
				Err:     errors.New("database connection failed"),
			},
			expected: "INTERNAL_ERROR: internal error (caused by: database connection failed)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.appErr.Error()
			if got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	originalErr := errors.New("original error")
	appErr := Wrap(originalErr, CodeInternal, "wrapped", http.StatusInternalServerError)

	if errors.Unwrap(appErr) != originalErr {
		t.Errorf("Unwrap() should return original error")
	}
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		wantCode   string
		wantStatus int
	}{
		{"not found", NotFound("Reservation"), CodeNotFound, http.StatusNotFound},
		{"not found with id", NotFoundWithID("Reservation", int64(7)), CodeNotFound, http.StatusNotFound},
		{"invalid input", InvalidInput("bad"), CodeInvalidInput, http.StatusBadRequest},
		{"invalid argument", InvalidArgument("bad", map[string]any{"field": "start_date"}), CodeInvalidInput, http.StatusBadRequest},
		{"failed precondition", FailedPrecondition("not pending"), CodeFailedPrecondition, http.StatusConflict},
		{"conflict", Conflict("overlap"), CodeConflict, http.StatusConflict},
		{"internal", Internal("boom", errors.New("db")), CodeInternal, http.StatusInternalServerError},
		{"timeout", Timeout("lock wait"), CodeTimeout, http.StatusGatewayTimeout},
		{"unavailable", Unavailable("Store"), CodeUnavailable, http.StatusServiceUnavailable},
		{"too many requests", TooManyRequests("slow down"), CodeTooManyRequests, http.StatusTooManyRequests},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.wantCode {
				t.Errorf("code = %s, want %s", tt.err.Code, tt.wantCode)
			}
			if tt.err.StatusCode() != tt.wantStatus {
				t.Errorf("status = %d, want %d", tt.err.StatusCode(), tt.wantStatus)
			}
		})
	}
}

func TestNotFoundWithID(t *testing.T) {
	err := NotFoundWithID("Reservation", int64(42))

	if err.Message != "No Reservation with id: 42" {
		t.Errorf("unexpected message %q", err.Message)
	}
	if err.Details["id"] != int64(42) {
		t.Errorf("expected id 42, got %v", err.Details["id"])
	}
	if err.Details["resource"] != "Reservation" {
		t.Errorf("expected resource 'Reservation', got %v", err.Details["resource"])
	}
}

func TestAppError_WithDetails(t *testing.T) {
	err := Conflict("overlap").WithDetails(map[string]any{
		"conflicting_ids": []int64{1, 3},
	})

	ids, ok := err.Details["conflicting_ids"].([]int64)
	if !ok || len(ids) != 2 {
		t.Fatalf("expected two conflicting ids, got %v", err.Details["conflicting_ids"])
	}
}

func TestIsAppError(t *testing.T) {
	appErr := NotFound("Reservation")
	wrapped := fmt.Errorf("transaction failed: %w", appErr)

	if !IsAppError(appErr) {
		t.Errorf("IsAppError() should return true for AppError")
	}
	if !IsAppError(wrapped) {
		t.Errorf("IsAppError() should see through wrapping")
	}
	if IsAppError(errors.New("regular error")) {
		t.Errorf("IsAppError() should return false for regular error")
	}
}

func TestAsAppError(t *testing.T) {
	appErr := NotFound("Reservation")
	regularErr := errors.New("regular error")

	if AsAppError(appErr) != appErr {
		t.Errorf("AsAppError() should return same AppError")
	}
	if AsAppError(fmt.Errorf("wrapped: %w", appErr)) != appErr {
		t.Errorf("AsAppError() should unwrap to the AppError")
	}

	result := AsAppError(regularErr)
	if result.Code != CodeInternal {
		t.Errorf("AsAppError() should wrap regular error as internal error")
	}
	if result.Err != regularErr {
		t.Errorf("AsAppError() should wrap the original error")
	}
}

func TestHasCode(t *testing.T) {
	err := fmt.Errorf("tx: %w", FailedPrecondition("already cancelled"))

	if !HasCode(err, CodeFailedPrecondition) {
		t.Errorf("HasCode() should match wrapped FailedPrecondition")
	}
	if HasCode(err, CodeConflict) {
		t.Errorf("HasCode() should not match a different code")
	}
}

func TestAppError_ToJSON(t *testing.T) {
	jsonStr := string(NotFoundWithID("Reservation", int64(5)).ToJSON())

	if !strings.Contains(jsonStr, "NOT_FOUND") {
		t.Errorf("ToJSON() should contain error code")
	}
	if !strings.Contains(jsonStr, "No Reservation with id: 5") {
		t.Errorf("ToJSON() should contain error message, got %s", jsonStr)
	}
}
